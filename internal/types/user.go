package types

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is the credential-store row. Password is the bcrypt hash and is never
// serialized.
type User struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	Username  string     `json:"username"`
	Password  string     `json:"-"`
	IsAdmin   bool       `json:"is_admin"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Claims are the access-token claims. The jti (RegisteredClaims.ID) is
// minted once at login and shared by the access/refresh pair, so revoking it
// covers any access token derived from either.
type Claims struct {
	UserID  int64  `json:"id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// RefreshClaims are the refresh-token claims, deliberately minimal.
type RefreshClaims struct {
	UserID int64 `json:"id"`
	jwt.RegisteredClaims
}

// AuditLog is an append-only record of an admin action.
type AuditLog struct {
	ID           int64          `json:"id"`
	AdminID      int64          `json:"admin_id"`
	Action       string         `json:"action"`
	TargetUserID int64          `json:"target_user_id"`
	TargetEmail  string         `json:"target_email"`
	Details      map[string]any `json:"details"`
	Timestamp    time.Time      `json:"timestamp"`
}

const (
	AuditActionSoftDelete = "SOFT_DELETE_USER"
	AuditActionRestore    = "RESTORE_USER"
)
