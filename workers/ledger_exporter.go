package workers

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"referral-points-system/logging"
	"referral-points-system/models"
	"referral-points-system/services"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const exportPrefix = "ledger-exports/"

// ObjectStore is where exports end up. utils.R2Client satisfies it.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// LedgerExporter dumps both ledgers for the last window to CSV in object storage.
type LedgerExporter struct {
	DB     *gorm.DB
	Store  ObjectStore
	Window time.Duration
	log    *logging.Logger
	now    func() time.Time
}

func NewLedgerExporter(db *gorm.DB, store ObjectStore, window time.Duration, log *logging.Logger) *LedgerExporter {
	return &LedgerExporter{DB: db, Store: store, Window: window, log: log.Named("exporter"), now: time.Now}
}

var exportHeader = []string{"ledger", "id", "user_id", "referred_id", "earning_type", "points_earned", "created_at"}

func (e *LedgerExporter) Run(ctx context.Context) error {
	to := e.now()
	from := to.Add(-e.Window)

	body, rows, err := e.render(ctx, from, to)
	if err != nil {
		return err
	}

	key := ExportKey(from, to)
	url, err := e.Store.PutObject(ctx, key, body, "text/csv")
	if err != nil {
		return err
	}
	e.log.Info("ledger exported", zap.String("key", key), zap.String("url", url), zap.Int("rows", rows))
	return nil
}

// Job wraps the exporter for the scheduler, using the window as the interval.
func (e *LedgerExporter) Job() services.Job {
	return services.Job{Name: "ledger-export", Every: e.Window, Run: e.Run}
}

// ExportKey names the object for the window [from, to).
func ExportKey(from, to time.Time) string {
	name := fmt.Sprintf("ledger %s to %s", from.UTC().Format("2006-01-02 1504"), to.UTC().Format("2006-01-02 1504"))
	return exportPrefix + slug.Make(name) + ".csv"
}

func (e *LedgerExporter) render(ctx context.Context, from, to time.Time) ([]byte, int, error) {
	db := e.DB.WithContext(ctx)

	var earnings []models.Earning
	if err := db.Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at").Find(&earnings).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to load earnings: %w", err)
	}
	var referralEarnings []models.ReferralEarning
	if err := db.Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at").Find(&referralEarnings).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to load referral earnings: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(exportHeader)
	for _, r := range earnings {
		_ = w.Write([]string{"player", r.ID, r.UserID, "", string(r.EarningType), r.PointsEarned.String(), r.CreatedAt.UTC().Format(time.RFC3339)})
	}
	for _, r := range referralEarnings {
		_ = w.Write([]string{"referral", r.ID, r.ReferrerID, r.ReferredID, string(r.EarningType), r.PointsEarned.String(), r.CreatedAt.UTC().Format(time.RFC3339)})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, 0, fmt.Errorf("failed to write csv: %w", err)
	}
	return buf.Bytes(), len(earnings) + len(referralEarnings), nil
}
