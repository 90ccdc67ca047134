// models/models.go
package models

import "github.com/shopspring/decimal"

// All lists every table for AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&Referral{},
		&Earning{},
		&ReferralEarning{},
		&Setting{},
		&RefreshToken{},
	}
}

func init() {
	// points serialise as JSON numbers, not strings
	decimal.MarshalJSONWithoutQuotes = true
}
