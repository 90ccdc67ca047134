// models/refresh_token.go
package models

import "time"

// RefreshToken tracks an issued refresh JWT by its jti so rotation can
// reject tokens that were already exchanged.
type RefreshToken struct {
	ID         string     `gorm:"primaryKey;type:varchar(36)" json:"id"` // JWT jti
	UserID     string     `gorm:"index;size:36;not null" json:"user_id"`
	ExpiresAt  time.Time  `gorm:"not null;index" json:"expires_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	ReplacedBy *string    `gorm:"size:36" json:"replaced_by,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// Active reports whether the token can still be exchanged at now.
func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
