// models/user.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is an account that can play, refer others, and hold a points balance.
type User struct {
	Base
	Email        string  `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string  `gorm:"not null" json:"-"`
	ReferralCode *string `gorm:"uniqueIndex;size:16" json:"referral_code,omitempty"`

	// ReferredBy points at the referrer. It is a lookup only: no FK cascade,
	// and it is never changed after signup.
	ReferredBy *string `gorm:"index;size:36" json:"referred_by,omitempty"`

	// Balance caches the ledger sums. The ledgers are authoritative.
	Balance decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"balance"`

	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
