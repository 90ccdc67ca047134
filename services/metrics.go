// services/metrics.go
package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Metrics holds the service counters. A nil *Metrics records nothing.
type Metrics struct {
	Signups        *prometheus.CounterVec
	Logins         *prometheus.CounterVec
	Settlements    *prometheus.CounterVec
	ReferralPoints prometheus.Counter
	BalanceDrift   prometheus.Counter
	TokenRefreshes *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "referral",
			Name:      "signups_total",
			Help:      "Completed signups, by whether a referral code was used.",
		}, []string{"referred"}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "referral",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		Settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "referral",
			Name:      "game_settlements_total",
			Help:      "Settled game outcomes by decision.",
		}, []string{"decision"}),
		ReferralPoints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "referral",
			Name:      "commission_points_total",
			Help:      "Points credited to referrers from game losses.",
		}),
		BalanceDrift: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "referral",
			Name:      "balance_drift_total",
			Help:      "Cached balances corrected by reconciliation.",
		}),
		TokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "referral",
			Name:      "token_refreshes_total",
			Help:      "Refresh token exchanges by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.Signups, m.Logins, m.Settlements, m.ReferralPoints, m.BalanceDrift, m.TokenRefreshes)
	}
	return m
}

func (m *Metrics) signup(referred bool) {
	if m == nil {
		return
	}
	label := "false"
	if referred {
		label = "true"
	}
	m.Signups.WithLabelValues(label).Inc()
}

func (m *Metrics) login(result string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(result).Inc()
}

func (m *Metrics) settlement(decision Decision, commission decimal.Decimal) {
	if m == nil {
		return
	}
	m.Settlements.WithLabelValues(string(decision)).Inc()
	if commission.IsPositive() {
		m.ReferralPoints.Add(commission.InexactFloat64())
	}
}

func (m *Metrics) drift(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BalanceDrift.Add(float64(n))
}

func (m *Metrics) refresh(result string) {
	if m == nil {
		return
	}
	m.TokenRefreshes.WithLabelValues(result).Inc()
}
