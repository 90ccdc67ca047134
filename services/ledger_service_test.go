package services

import (
	"testing"

	"referral-points-system/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newLedger(t *testing.T) (*LedgerService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	settings := NewSettingsService(db, nil, testLogger())
	return NewLedgerService(db, settings, NewMetrics(prometheus.NewRegistry()), testLogger()), db
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestLosingSettlementCreditsReferrer(t *testing.T) {
	ledger, db := newLedger(t)
	referrer := seedUser(t, db, "referrer@example.com", nil)
	player := seedUser(t, db, "player@example.com", referrer)

	res, err := ledger.SettleGameOutcome(bg, player.ID, DecisionLose, d("500"))
	require.NoError(t, err)

	require.NotNil(t, res.PlayerEntry)
	assert.Equal(t, player.ID, res.PlayerEntry.UserID)
	assert.Equal(t, models.EarningTypeGamePlayed, res.PlayerEntry.EarningType)
	assert.True(t, res.PlayerEntry.PointsEarned.Equal(d("-500")))

	require.NotNil(t, res.ReferralEntry)
	assert.Equal(t, referrer.ID, res.ReferralEntry.ReferrerID)
	assert.Equal(t, player.ID, res.ReferralEntry.ReferredID)
	assert.Equal(t, models.ReferralEarningGamePlayed, res.ReferralEntry.EarningType)
	assert.True(t, res.ReferralEntry.PointsEarned.Equal(d("1")), "got %s", res.ReferralEntry.PointsEarned)

	assert.EqualValues(t, 1, countRows(t, db, &models.Earning{}))
	assert.EqualValues(t, 1, countRows(t, db, &models.ReferralEarning{}))
	assert.Equal(t, 1.0, testutil.ToFloat64(ledger.Metrics.Settlements.WithLabelValues("lose")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ledger.Metrics.ReferralPoints))
}

func TestLosingSettlementWithoutReferrer(t *testing.T) {
	ledger, db := newLedger(t)
	player := seedUser(t, db, "solo@example.com", nil)

	res, err := ledger.SettleGameOutcome(bg, player.ID, DecisionLose, d("40"))
	require.NoError(t, err)
	assert.True(t, res.PlayerEntry.PointsEarned.Equal(d("-40")))
	assert.Nil(t, res.ReferralEntry)
	assert.Zero(t, countRows(t, db, &models.ReferralEarning{}))
}

func TestWinningSettlementCreditsOnlyPlayer(t *testing.T) {
	ledger, db := newLedger(t)
	referrer := seedUser(t, db, "referrer@example.com", nil)
	player := seedUser(t, db, "player@example.com", referrer)

	res, err := ledger.SettleGameOutcome(bg, player.ID, DecisionWin, d("75"))
	require.NoError(t, err)
	assert.True(t, res.PlayerEntry.PointsEarned.Equal(d("75")))
	assert.Nil(t, res.ReferralEntry)
	assert.EqualValues(t, 1, countRows(t, db, &models.Earning{}))
	assert.Zero(t, countRows(t, db, &models.ReferralEarning{}))
}

func TestSettlementUsesStoredSettings(t *testing.T) {
	ledger, db := newLedger(t)
	referrer := seedUser(t, db, "referrer@example.com", nil)
	player := seedUser(t, db, "player@example.com", referrer)

	in := DefaultSettings()
	in.PlatformEarnPercentage = d("10")
	in.ReferralEarnPercentage = d("20")
	_, err := ledger.Settings.Update(bg, in)
	require.NoError(t, err)

	res, err := ledger.SettleGameOutcome(bg, player.ID, DecisionLose, d("1000"))
	require.NoError(t, err)
	assert.True(t, res.ReferralEntry.PointsEarned.Equal(d("20")))
}

func TestSettlementCommissionMatchesStoredRow(t *testing.T) {
	ledger, db := newLedger(t)
	referrer := seedUser(t, db, "referrer@example.com", nil)
	player := seedUser(t, db, "player@example.com", referrer)

	res, err := ledger.SettleGameOutcome(bg, player.ID, DecisionLose, d("0.075"))
	require.NoError(t, err)
	require.NotNil(t, res.ReferralEntry)
	assert.True(t, res.ReferralEntry.PointsEarned.Equal(d("0.0002")), "got %s", res.ReferralEntry.PointsEarned)

	var stored models.ReferralEarning
	require.NoError(t, db.First(&stored, "id = ?", res.ReferralEntry.ID).Error)
	assert.True(t, stored.PointsEarned.Equal(res.ReferralEntry.PointsEarned), "stored %s", stored.PointsEarned)
}

func TestSettlementRejectsStakeBelowLedgerScale(t *testing.T) {
	ledger, db := newLedger(t)
	player := seedUser(t, db, "player@example.com", nil)

	_, err := ledger.SettleGameOutcome(bg, player.ID, DecisionLose, d("0.00001"))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, countRows(t, db, &models.Earning{}))
}

func TestSettlementRejectsBadInputBeforeWriting(t *testing.T) {
	ledger, db := newLedger(t)
	player := seedUser(t, db, "player@example.com", nil)

	cases := []struct {
		name     string
		userID   string
		decision Decision
		stake    decimal.Decimal
	}{
		{"missing user", "", DecisionWin, d("10")},
		{"unknown decision", player.ID, Decision("draw"), d("10")},
		{"zero stake", player.ID, DecisionLose, decimal.Zero},
		{"negative stake", player.ID, DecisionWin, d("-5")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ledger.SettleGameOutcome(bg, tc.userID, tc.decision, tc.stake)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Zero(t, countRows(t, db, &models.Earning{}))
}

func TestUnknownUserIsNotFoundEverywhere(t *testing.T) {
	ledger, db := newLedger(t)
	const ghost = "00000000-0000-0000-0000-000000000000"

	_, err := ledger.SettleGameOutcome(bg, ghost, DecisionLose, d("10"))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = ledger.RecordGamePlay(bg, ghost, d("10"))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = ledger.RecordPlayerEarning(bg, ghost, models.EarningTypeDeposit, d("10"))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = ledger.RecomputeBalance(bg, ghost)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = ledger.ListEarnings(bg, ghost)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Zero(t, countRows(t, db, &models.Earning{}))
}

func TestRecordGamePlayDebitsStake(t *testing.T) {
	ledger, db := newLedger(t)
	player := seedUser(t, db, "player@example.com", nil)

	entry, err := ledger.RecordGamePlay(bg, player.ID, d("25"))
	require.NoError(t, err)
	assert.True(t, entry.PointsEarned.Equal(d("-25")))
	assert.Equal(t, models.EarningTypeGamePlayed, entry.EarningType)
}

func TestRecordReferralEarningRequiresEdge(t *testing.T) {
	ledger, db := newLedger(t)
	referrer := seedUser(t, db, "referrer@example.com", nil)
	stranger := seedUser(t, db, "stranger@example.com", nil)
	referred := seedUser(t, db, "referred@example.com", referrer)

	_, err := ledger.RecordReferralEarning(bg, referrer.ID, stranger.ID, models.ReferralEarningGamePlayed, d("3"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ledger.RecordReferralEarning(bg, stranger.ID, referred.ID, models.ReferralEarningGamePlayed, d("3"))
	assert.ErrorIs(t, err, ErrValidation)

	entry, err := ledger.RecordReferralEarning(bg, referrer.ID, referred.ID, models.ReferralEarningGamePlayed, d("3"))
	require.NoError(t, err)
	assert.True(t, entry.PointsEarned.Equal(d("3")))
	assert.EqualValues(t, 1, countRows(t, db, &models.ReferralEarning{}))
}

func TestRecordPlayerEarningValidates(t *testing.T) {
	ledger, db := newLedger(t)
	player := seedUser(t, db, "player@example.com", nil)

	_, err := ledger.RecordPlayerEarning(bg, player.ID, models.EarningType("bonus"), d("1"))
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ledger.RecordPlayerEarning(bg, player.ID, models.EarningTypeDeposit, decimal.Zero)
	assert.ErrorIs(t, err, ErrValidation)

	entry, err := ledger.RecordPlayerEarning(bg, player.ID, models.EarningTypeDeposit, d("300"))
	require.NoError(t, err)
	assert.Equal(t, models.EarningTypeDeposit, entry.EarningType)
	assert.NotEmpty(t, entry.ID)

	// recording never touches the cached balance
	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", player.ID).Error)
	assert.True(t, stored.Balance.IsZero())
}

func TestRecomputeBalanceSumsBothLedgers(t *testing.T) {
	ledger, db := newLedger(t)
	referrer := seedUser(t, db, "referrer@example.com", nil)
	player := seedUser(t, db, "player@example.com", referrer)

	_, err := ledger.RecordPlayerEarning(bg, referrer.ID, models.EarningTypeDeposit, d("200"))
	require.NoError(t, err)
	_, err = ledger.RecordPlayerEarning(bg, player.ID, models.EarningTypeDeposit, d("1000"))
	require.NoError(t, err)
	_, err = ledger.SettleGameOutcome(bg, player.ID, DecisionLose, d("500"))
	require.NoError(t, err)
	_, err = ledger.SettleGameOutcome(bg, player.ID, DecisionWin, d("50"))
	require.NoError(t, err)

	playerBalance, err := ledger.RecomputeBalance(bg, player.ID)
	require.NoError(t, err)
	assert.True(t, playerBalance.Equal(d("550")), "got %s", playerBalance)

	referrerBalance, err := ledger.RecomputeBalance(bg, referrer.ID)
	require.NoError(t, err)
	assert.True(t, referrerBalance.Equal(d("201")), "got %s", referrerBalance)

	again, err := ledger.RecomputeBalance(bg, referrer.ID)
	require.NoError(t, err)
	assert.True(t, again.Equal(referrerBalance))

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", referrer.ID).Error)
	assert.True(t, stored.Balance.Equal(d("201")))
}

func TestListEarningsNewestFirst(t *testing.T) {
	ledger, db := newLedger(t)
	player := seedUser(t, db, "player@example.com", nil)
	other := seedUser(t, db, "other@example.com", nil)

	for _, amount := range []string{"1", "2", "3"} {
		_, err := ledger.RecordPlayerEarning(bg, player.ID, models.EarningTypeDeposit, d(amount))
		require.NoError(t, err)
	}
	_, err := ledger.RecordPlayerEarning(bg, other.ID, models.EarningTypeDeposit, d("9"))
	require.NoError(t, err)

	got, err := ledger.ListEarnings(bg, player.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].CreatedAt.After(got[i-1].CreatedAt))
	}
	for _, e := range got {
		assert.Equal(t, player.ID, e.UserID)
	}
}

func TestRecomputeAllBalancesFixesDrift(t *testing.T) {
	ledger, db := newLedger(t)
	referrer := seedUser(t, db, "referrer@example.com", nil)
	player := seedUser(t, db, "player@example.com", referrer)
	seedUser(t, db, "idle@example.com", nil)

	_, err := ledger.SettleGameOutcome(bg, player.ID, DecisionLose, d("500"))
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", referrer.ID).Update("balance", d("999")).Error)

	res, err := ledger.RecomputeAllBalances(bg)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Users)
	assert.Equal(t, 2, res.Drifted)

	var users []models.User
	require.NoError(t, db.Find(&users).Error)
	want := map[string]string{referrer.ID: "1", player.ID: "-500"}
	for _, u := range users {
		exp, ok := want[u.ID]
		if !ok {
			exp = "0"
		}
		assert.True(t, u.Balance.Equal(d(exp)), "%s: got %s want %s", u.Email, u.Balance, exp)
	}

	res, err = ledger.RecomputeAllBalances(bg)
	require.NoError(t, err)
	assert.Zero(t, res.Drifted)
}
