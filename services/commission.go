// services/commission.go
package services

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// LedgerScale is the number of decimal places the ledger columns store.
const LedgerScale int32 = 4

// CalculateReferralCommission returns the referrer's share of a stake.
// The platform cut is taken first and the referral percentage is applied to
// that cut: stake * platformPct/100 * referralPct/100. Keep the two steps.
// The result is rounded half away from zero to LedgerScale places so the
// value returned matches the stored row.
func CalculateReferralCommission(stake, platformPct, referralPct decimal.Decimal) decimal.Decimal {
	platformEarnings := stake.Mul(platformPct).Div(hundred)
	return platformEarnings.Mul(referralPct).Div(hundred).Round(LedgerScale)
}
