package workers

import (
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"referral-points-system/database"
	"referral-points-system/logging"
	"referral-points-system/models"
	"referral-points-system/services"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type memoryStore struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func (m *memoryStore) PutObject(_ context.Context, key string, body []byte, contentType string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
		m.types = map[string]string{}
	}
	m.objects[key] = body
	m.types[key] = contentType
	return "mem://" + key, nil
}

type fixture struct {
	db       *gorm.DB
	ledger   *services.LedgerService
	referrer *models.User
	player   *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenTest()
	require.NoError(t, err)
	log := logging.NewTestLogger()

	referrer := &models.User{Email: "referrer@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(referrer).Error)
	player := &models.User{Email: "player@example.com", PasswordHash: "x", ReferredBy: &referrer.ID}
	require.NoError(t, db.Create(player).Error)

	settings := services.NewSettingsService(db, nil, log)
	return &fixture{
		db:       db,
		ledger:   services.NewLedgerService(db, settings, nil, log),
		referrer: referrer,
		player:   player,
	}
}

func TestBalanceReconcilerCorrectsDrift(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.SettleGameOutcome(context.Background(), f.player.ID, services.DecisionLose, decimal.NewFromInt(500))
	require.NoError(t, err)

	r := NewBalanceReconciler(f.ledger, logging.NewTestLogger())
	require.NoError(t, r.Run(context.Background()))

	var referrer models.User
	require.NoError(t, f.db.First(&referrer, "id = ?", f.referrer.ID).Error)
	assert.True(t, referrer.Balance.Equal(decimal.NewFromInt(1)), "got %s", referrer.Balance)

	var player models.User
	require.NoError(t, f.db.First(&player, "id = ?", f.player.ID).Error)
	assert.True(t, player.Balance.Equal(decimal.NewFromInt(-500)), "got %s", player.Balance)

	job := r.Job(time.Minute)
	assert.Equal(t, "balance-reconcile", job.Name)
	assert.Equal(t, time.Minute, job.Every)
}

func TestLedgerExporterWritesCSV(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.SettleGameOutcome(context.Background(), f.player.ID, services.DecisionLose, decimal.NewFromInt(500))
	require.NoError(t, err)

	store := &memoryStore{}
	e := NewLedgerExporter(f.db, store, time.Hour, logging.NewTestLogger())
	e.now = func() time.Time { return time.Now().Add(time.Second) }
	require.NoError(t, e.Run(context.Background()))

	require.Len(t, store.objects, 1)
	for key, body := range store.objects {
		assert.True(t, strings.HasPrefix(key, exportPrefix))
		assert.True(t, strings.HasSuffix(key, ".csv"))
		assert.Equal(t, "text/csv", store.types[key])

		records, err := csv.NewReader(strings.NewReader(string(body))).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, exportHeader, records[0])

		assert.Equal(t, "player", records[1][0])
		assert.Equal(t, f.player.ID, records[1][2])
		assert.Equal(t, "-500", records[1][5])

		assert.Equal(t, "referral", records[2][0])
		assert.Equal(t, f.referrer.ID, records[2][2])
		assert.Equal(t, f.player.ID, records[2][3])
		assert.Equal(t, "1", records[2][5])
	}
}

func TestLedgerExporterSkipsRowsOutsideWindow(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.RecordPlayerEarning(context.Background(), f.player.ID, models.EarningTypeDeposit, decimal.NewFromInt(10))
	require.NoError(t, err)

	store := &memoryStore{}
	e := NewLedgerExporter(f.db, store, time.Hour, logging.NewTestLogger())
	e.now = func() time.Time { return time.Now().Add(3 * time.Hour) }
	require.NoError(t, e.Run(context.Background()))

	for _, body := range store.objects {
		records, err := csv.NewReader(strings.NewReader(string(body))).ReadAll()
		require.NoError(t, err)
		assert.Len(t, records, 1)
	}
}

func TestLedgerExporterPropagatesUploadErrors(t *testing.T) {
	f := newFixture(t)
	e := NewLedgerExporter(f.db, &memoryStore{err: errors.New("bucket gone")}, time.Hour, logging.NewTestLogger())
	assert.ErrorContains(t, e.Run(context.Background()), "bucket gone")
}

func TestExportKey(t *testing.T) {
	from := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	assert.Equal(t, "ledger-exports/ledger-2026-10-16-0000-to-2026-10-17-0000.csv", ExportKey(from, to))
}

func TestTokenPrunerDeletesExpiredRows(t *testing.T) {
	f := newFixture(t)
	log := logging.NewTestLogger()
	settings := services.NewSettingsService(f.db, nil, log)
	tokens := services.NewTokenCodec("access", "refresh", time.Minute, time.Hour)
	auth := services.NewAuthService(f.db, tokens, services.NewReferralCodeGenerator(), settings, nil, log)

	now := time.Now()
	require.NoError(t, f.db.Create(&models.RefreshToken{ID: "expired", UserID: f.player.ID, ExpiresAt: now.Add(-time.Minute)}).Error)
	require.NoError(t, f.db.Create(&models.RefreshToken{ID: "live", UserID: f.player.ID, ExpiresAt: now.Add(time.Hour)}).Error)

	p := NewTokenPruner(auth, log)
	require.NoError(t, p.Run(context.Background()))

	var ids []string
	require.NoError(t, f.db.Model(&models.RefreshToken{}).Pluck("id", &ids).Error)
	assert.Equal(t, []string{"live"}, ids)

	job := p.Job(time.Hour)
	assert.Equal(t, "refresh-token-prune", job.Name)
	assert.Equal(t, time.Hour, job.Every)
}
