package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateToken_HasPrefixAndEntropy(t *testing.T) {
	a, err := generateToken()
	assert.NoError(t, err)
	b, err := generateToken()
	assert.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, tokenPrefix))
	assert.True(t, strings.HasPrefix(b, tokenPrefix))
	assert.NotEqual(t, a, b, "two generated tokens must not collide")

	raw := strings.TrimPrefix(a, tokenPrefix)
	assert.Greater(t, len(raw), 32, "encoded 256-bit token should exceed 32 characters")
}

func TestCacheKey_Namespaced(t *testing.T) {
	assert.Equal(t, "mcp:auth:token:abc", cacheKey("abc"))
}

func TestHashToken_DeterministicAndHexEncoded(t *testing.T) {
	a := hashToken("mcp_example-token")
	b := hashToken("mcp_example-token")
	assert.Equal(t, a, b, "hashing the same token twice must produce the same digest")
	assert.Len(t, a, 64, "blake2b-256 digest hex-encodes to 64 characters")
	assert.Regexp(t, "^[0-9a-f]{64}$", a)
}

func TestHashToken_DifferentTokensDiffer(t *testing.T) {
	assert.NotEqual(t, hashToken("mcp_one"), hashToken("mcp_two"))
}

func TestEncodeDecodeClientInfo_RoundTrips(t *testing.T) {
	in := map[string]string{"remote_addr": "10.0.0.1", "user_agent": "test"}
	raw := encodeClientInfo(in)
	out := decodeClientInfo(raw)
	assert.Equal(t, in, out)
}

func TestEncodeClientInfo_EmptyIsEmptyObject(t *testing.T) {
	assert.Equal(t, []byte("{}"), encodeClientInfo(nil))
}

func TestDecodeClientInfo_EmptyBytesIsNil(t *testing.T) {
	assert.Nil(t, decodeClientInfo(nil))
}
