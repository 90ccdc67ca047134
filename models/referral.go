// models/referral.go
package models

import "github.com/shopspring/decimal"

// Referral is the edge created once per referred signup.
type Referral struct {
	Base
	ReferrerID  string          `gorm:"index;size:36;not null" json:"referrer_id"`
	ReferredID  string          `gorm:"uniqueIndex;size:36;not null" json:"referred_id"` // one referrer per user
	SignupBonus decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"signup_bonus"`
}
