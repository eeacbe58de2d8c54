package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snorlak1/mem0-server-mcp/internal/types"
)

func TestParseExtractedMemories_FiltersNoneAndEmpty(t *testing.T) {
	raw := `[
		{"content": "uses postgres for durability", "action": "ADD"},
		{"content": "", "action": "ADD"},
		{"content": "irrelevant chit chat", "action": "NONE"}
	]`

	out, err := parseExtractedMemories(raw)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "uses postgres for durability", out[0].Content)
	assert.Equal(t, types.ActionAdd, out[0].Action)
}

func TestParseExtractedMemories_RejectsMalformedJSON(t *testing.T) {
	_, err := parseExtractedMemories("not json")
	assert.Error(t, err)
}

func TestStripCodeFence_RemovesJSONFence(t *testing.T) {
	in := "```json\n[{\"content\":\"x\",\"action\":\"ADD\"}]\n```"
	out := stripCodeFence(in)
	assert.Equal(t, `[{"content":"x","action":"ADD"}]`, out)
}

func TestStripCodeFence_LeavesPlainJSONUntouched(t *testing.T) {
	in := `[{"content":"x","action":"ADD"}]`
	assert.Equal(t, in, stripCodeFence(in))
}
