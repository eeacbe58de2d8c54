// Package auth implements the token/audit store that gates the MCP
// gateway and the administrative REST surface: Postgres-backed tokens
// and an append-only audit log, fronted by a short-lived Redis cache so
// a hot validate path doesn't round-trip to Postgres on every call.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"golang.org/x/crypto/blake2b"

	"github.com/snorlak1/mem0-server-mcp/internal/apperr"
	"github.com/snorlak1/mem0-server-mcp/internal/config"
	"github.com/snorlak1/mem0-server-mcp/internal/types"
)

// tokenPrefix marks every issued token so a leaked credential is
// recognizable in logs and grep output without revealing its entropy.
const tokenPrefix = "mcp_"

// schema is applied at startup; idempotent, mirrors graph.Store's pattern.
// auth_tokens stores only a blake2b-256 digest of each bearer token —
// never the plaintext — so a database dump doesn't hand out live
// credentials. The plaintext is shown to the caller exactly once, at
// CreateToken time.
const schema = `
CREATE TABLE IF NOT EXISTS auth_tokens (
	token_hash   TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	enabled      BOOLEAN NOT NULL DEFAULT TRUE,
	expires_at   TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL,
	last_used_at TIMESTAMPTZ,
	permissions  TEXT[] NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_auth_tokens_user ON auth_tokens(user_id);

CREATE TABLE IF NOT EXISTS auth_audit (
	id            BIGSERIAL PRIMARY KEY,
	ts            TIMESTAMPTZ NOT NULL,
	user_id       TEXT NOT NULL,
	token_hash    TEXT NOT NULL DEFAULT '',
	action        TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	client_info   JSONB
);

CREATE INDEX IF NOT EXISTS idx_auth_audit_user ON auth_audit(user_id);
CREATE INDEX IF NOT EXISTS idx_auth_audit_ts   ON auth_audit(ts);
`

// hashToken returns the hex-encoded blake2b-256 digest of a bearer
// token, used as the indexable, non-reversible lookup key stored in
// Postgres and Redis in place of the plaintext credential.
func hashToken(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Store is the durable token/audit store plus its validation cache.
type Store struct {
	db    *sql.DB
	cache *cache
}

// NewStore opens Postgres and Redis and applies the auth schema.
func NewStore(pg config.PostgresConfig, rd config.RedisConfig) (*Store, error) {
	db, err := sql.Open("postgres", pg.DSN)
	if err != nil {
		return nil, fmt.Errorf("auth: open db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("auth: apply schema: %w", err)
	}
	return &Store{db: db, cache: newCache(rd)}, nil
}

// Close releases the Postgres pool and Redis client.
func (s *Store) Close() error {
	_ = s.cache.close()
	return s.db.Close()
}

// generateToken returns a prefixed, base64url-encoded 256-bit random
// token, following the teacher's internal/security/auth.go crypto/rand
// idiom for bearer-credential generation.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate token: %w", err)
	}
	return tokenPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// CreateToken issues and persists a new token for userID.
func (s *Store) CreateToken(ctx context.Context, userID, displayName, email string, expiresAt *time.Time, permissions []string) (*types.AuthToken, error) {
	if userID == "" {
		return nil, apperr.New(apperr.BadInput, "user_id is required")
	}
	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	rec := types.AuthToken{
		Token:       token,
		UserID:      userID,
		DisplayName: displayName,
		Email:       email,
		Enabled:     true,
		ExpiresAt:   expiresAt,
		CreatedAt:   now(),
		Permissions: permissions,
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO auth_tokens (token_hash, user_id, display_name, email, enabled, expires_at, created_at, permissions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		hashToken(rec.Token), rec.UserID, rec.DisplayName, rec.Email, rec.Enabled, rec.ExpiresAt, rec.CreatedAt, pq.Array(rec.Permissions))
	if err != nil {
		return nil, fmt.Errorf("auth: create token: %w", err)
	}
	// rec.Token carries the plaintext credential; it is shown here and
	// only here — every subsequent read of this row returns the hash.
	return &rec, nil
}

// Validate checks token against the cache, falling back to Postgres on a
// miss, and records the outcome to auth_audit before returning. The
// subtle.ConstantTimeCompare guards the in-memory comparison against a
// cached record so a timing side channel can't distinguish a near-miss
// from a far-miss once the record has left the database.
func (s *Store) Validate(ctx context.Context, token string, clientInfo map[string]string) (*types.AuthToken, error) {
	hash := hashToken(token)
	rec, err := s.lookup(ctx, hash)
	if err != nil {
		s.audit(ctx, "", hash, types.AuditAuthFailed, err.Error(), clientInfo)
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(rec.Token), []byte(hash)) != 1 {
		s.audit(ctx, rec.UserID, hash, types.AuditAuthFailed, "token mismatch", clientInfo)
		return nil, apperr.New(apperr.Unauthenticated, "invalid token")
	}
	if !rec.Enabled {
		s.audit(ctx, rec.UserID, hash, types.AuditRevoked, "token disabled", clientInfo)
		return nil, apperr.New(apperr.Unauthenticated, "token disabled")
	}
	if rec.ExpiresAt != nil && now().After(*rec.ExpiresAt) {
		s.audit(ctx, rec.UserID, hash, types.AuditExpired, "token expired", clientInfo)
		return nil, apperr.New(apperr.Unauthenticated, "token expired")
	}

	s.audit(ctx, rec.UserID, hash, types.AuditSuccess, "", clientInfo)
	s.touchLastUsed(ctx, hash)
	return rec, nil
}

// lookup and fetch take an already-hashed token: every caller hashes the
// bearer credential once at the public entrypoint so the plaintext never
// reaches the cache or a second query.
func (s *Store) lookup(ctx context.Context, hash string) (*types.AuthToken, error) {
	if rec, ok := s.cache.get(ctx, hash); ok {
		return rec, nil
	}
	rec, err := s.fetch(ctx, hash)
	if err != nil {
		return nil, err
	}
	s.cache.set(ctx, *rec)
	return rec, nil
}

func (s *Store) fetch(ctx context.Context, hash string) (*types.AuthToken, error) {
	var rec types.AuthToken
	err := s.db.QueryRowContext(ctx, `
		SELECT token_hash, user_id, display_name, email, enabled, expires_at, created_at, last_used_at, permissions
		FROM auth_tokens WHERE token_hash = $1`, hash).Scan(
		&rec.Token, &rec.UserID, &rec.DisplayName, &rec.Email, &rec.Enabled,
		&rec.ExpiresAt, &rec.CreatedAt, &rec.LastUsedAt, pq.Array(&rec.Permissions))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.Unauthenticated, "unknown token")
	}
	if err != nil {
		return nil, fmt.Errorf("auth: fetch token: %w", err)
	}
	// rec.Token holds the stored hash here, not the plaintext credential.
	return &rec, nil
}

func (s *Store) touchLastUsed(ctx context.Context, hash string) {
	_, _ = s.db.ExecContext(ctx, `UPDATE auth_tokens SET last_used_at = $1 WHERE token_hash = $2`, now(), hash)
}

// Revoke disables a token (distinct from Delete: the row and its audit
// trail survive).
func (s *Store) Revoke(ctx context.Context, token string) error {
	return s.setEnabled(ctx, token, false)
}

// Enable re-activates a previously revoked token.
func (s *Store) Enable(ctx context.Context, token string) error {
	return s.setEnabled(ctx, token, true)
}

func (s *Store) setEnabled(ctx context.Context, token string, enabled bool) error {
	hash := hashToken(token)
	res, err := s.db.ExecContext(ctx, `UPDATE auth_tokens SET enabled = $1 WHERE token_hash = $2`, enabled, hash)
	if err != nil {
		return fmt.Errorf("auth: set enabled=%v: %w", enabled, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.NotFound, "unknown token")
	}
	s.cache.invalidate(ctx, hash)
	return nil
}

// Delete permanently removes a token and its row.
func (s *Store) Delete(ctx context.Context, token string) error {
	hash := hashToken(token)
	res, err := s.db.ExecContext(ctx, `DELETE FROM auth_tokens WHERE token_hash = $1`, hash)
	if err != nil {
		return fmt.Errorf("auth: delete token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.NotFound, "unknown token")
	}
	s.cache.invalidate(ctx, hash)
	return nil
}

// List returns every token for userID, or every token if userID is empty.
// The returned AuthToken.Token field carries each row's stored hash, not
// the original bearer credential. Revoke/Enable/Delete hash their
// argument before the lookup, so they take the plaintext token; passing
// them the hash from List matches no row.
func (s *Store) List(ctx context.Context, userID string) ([]types.AuthToken, error) {
	var rows *sql.Rows
	var err error
	if userID == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT token_hash, user_id, display_name, email, enabled, expires_at, created_at, last_used_at, permissions
			FROM auth_tokens ORDER BY created_at DESC`)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT token_hash, user_id, display_name, email, enabled, expires_at, created_at, last_used_at, permissions
			FROM auth_tokens WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("auth: list tokens: %w", err)
	}
	defer rows.Close()

	var out []types.AuthToken
	for rows.Next() {
		var rec types.AuthToken
		if err := rows.Scan(&rec.Token, &rec.UserID, &rec.DisplayName, &rec.Email, &rec.Enabled,
			&rec.ExpiresAt, &rec.CreatedAt, &rec.LastUsedAt, pq.Array(&rec.Permissions)); err != nil {
			return nil, fmt.Errorf("auth: scan token: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Audit returns auth_audit rows between since and until, newest first.
func (s *Store) Audit(ctx context.Context, since, until time.Time, userID string) ([]types.AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, user_id, token_hash, action, error_message, client_info
		FROM auth_audit
		WHERE ts BETWEEN $1 AND $2 AND ($3 = '' OR user_id = $3)
		ORDER BY ts DESC`, since, until, userID)
	if err != nil {
		return nil, fmt.Errorf("auth: query audit: %w", err)
	}
	defer rows.Close()

	var out []types.AuditEvent
	for rows.Next() {
		var ev types.AuditEvent
		var clientInfo []byte
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &ev.UserID, &ev.Token, &ev.Action, &ev.ErrorMessage, &clientInfo); err != nil {
			return nil, fmt.Errorf("auth: scan audit row: %w", err)
		}
		ev.ClientInfo = decodeClientInfo(clientInfo)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Stats summarizes success/failure counts and last use for userID.
func (s *Store) Stats(ctx context.Context, userID string) (types.TokenStats, error) {
	stats := types.TokenStats{UserID: userID}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE action = 'success'),
			COUNT(*) FILTER (WHERE action != 'success'),
			MAX(ts) FILTER (WHERE action = 'success')
		FROM auth_audit WHERE user_id = $1`, userID).Scan(&stats.SuccessCount, &stats.FailureCount, &stats.LastUsedAt)
	if err != nil {
		return stats, fmt.Errorf("auth: query stats: %w", err)
	}
	return stats, nil
}

// audit takes an already-hashed token; every caller in this file hashes
// the bearer credential before recording it so auth_audit never stores
// a plaintext token.
func (s *Store) audit(ctx context.Context, userID, tokenHash string, action types.AuditAction, errMsg string, clientInfo map[string]string) {
	_, _ = s.db.ExecContext(ctx, `
		INSERT INTO auth_audit (ts, user_id, token_hash, action, error_message, client_info)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		now(), userID, tokenHash, action, errMsg, encodeClientInfo(clientInfo))
}

func now() time.Time { return time.Now().UTC() }

func encodeClientInfo(m map[string]string) []byte {
	if len(m) == 0 {
		return []byte("{}")
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return []byte("{}")
	}
	return raw
}

func decodeClientInfo(raw []byte) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
