// models/earning.go
package models

import "github.com/shopspring/decimal"

// EarningType classifies a player-ledger row.
type EarningType string

const (
	EarningTypeDeposit    EarningType = "Deposit"
	EarningTypeGamePlayed EarningType = "game_played"
)

func (t EarningType) Valid() bool {
	return t == EarningTypeDeposit || t == EarningTypeGamePlayed
}

// Earning is an append-only point delta on a user's own ledger.
// Negative for spends, positive for credits.
type Earning struct {
	Base
	UserID       string          `gorm:"index;size:36;not null" json:"user_id"`
	EarningType  EarningType     `gorm:"size:32;not null" json:"earning_type"`
	PointsEarned decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"points_earned"`
}
