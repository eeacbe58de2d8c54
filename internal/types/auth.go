package types

import "time"

// AuditAction enumerates the outcomes an auth attempt can record.
type AuditAction string

const (
	AuditSuccess    AuditAction = "success"
	AuditAuthFailed AuditAction = "auth_failed"
	AuditRevoked    AuditAction = "revoked"
	AuditExpired    AuditAction = "expired"
	AuditDenied     AuditAction = "denied"
)

// AuthToken is one row of the auth_tokens table.
type AuthToken struct {
	Token       string     `json:"token"`
	UserID      string     `json:"user_id"`
	DisplayName string     `json:"display_name"`
	Email       string     `json:"email"`
	Enabled     bool       `json:"enabled"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	Permissions []string   `json:"permissions,omitempty"`
}

// AuditEvent is one append-only row of the auth_audit table.
type AuditEvent struct {
	ID           int64             `json:"id"`
	Timestamp    time.Time         `json:"timestamp"`
	UserID       string            `json:"user_id"`
	Token        string            `json:"token"`
	Action       AuditAction       `json:"action"`
	ErrorMessage string            `json:"error_message,omitempty"`
	ClientInfo   map[string]string `json:"client_info,omitempty"`
}

// TokenStats summarizes auth_audit activity for one user.
type TokenStats struct {
	UserID       string     `json:"user_id"`
	SuccessCount int64      `json:"success_count"`
	FailureCount int64      `json:"failure_count"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
}
