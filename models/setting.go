// models/setting.go
package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Setting is the platform-wide singleton. At most one row exists.
type Setting struct {
	ID                     uint                     `gorm:"primaryKey" json:"-"`
	NewReferralPoints      decimal.Decimal          `gorm:"type:numeric(20,4);not null" json:"new_referral_points"`
	PlatformEarnPercentage decimal.Decimal          `gorm:"type:numeric(9,4);not null" json:"platform_earn_percentage"`
	ReferralEarnPercentage decimal.Decimal          `gorm:"type:numeric(9,4);not null" json:"referral_earn_percentage"`
	DurationFilterData     datatypes.JSONSlice[int] `json:"duration_filter_data"`
}

// SettingsSingletonID is the fixed primary key of the settings row.
const SettingsSingletonID uint = 1
