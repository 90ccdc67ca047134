// models/referral_earning.go
package models

import "github.com/shopspring/decimal"

// ReferralEarningType classifies a referral-ledger row.
type ReferralEarningType string

const (
	ReferralEarningNewReferral ReferralEarningType = "New_Referral"
	ReferralEarningGamePlayed  ReferralEarningType = "game_played"
)

func (t ReferralEarningType) Valid() bool {
	return t == ReferralEarningNewReferral || t == ReferralEarningGamePlayed
}

// ReferralEarning credits a referrer for something the referred user did.
// Kept in its own table so it never mixes with the referred user's own rows.
type ReferralEarning struct {
	Base
	ReferrerID   string              `gorm:"index;size:36;not null" json:"referrer_id"`
	ReferredID   string              `gorm:"index;size:36;not null" json:"referred_id"`
	EarningType  ReferralEarningType `gorm:"size:32;not null;index" json:"earning_type"`
	PointsEarned decimal.Decimal     `gorm:"type:numeric(20,4);not null" json:"points_earned"`
}
