// services/referral_service.go
package services

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"referral-points-system/logging"
	"referral-points-system/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HistoryFilter narrows ReferralHistory. Zero values mean no filter.
type HistoryFilter struct {
	Kind models.ReferralEarningType
	Days int
}

// ReferredSummary is one referred user as seen by their referrer.
type ReferredSummary struct {
	ReferredID   string          `json:"referred_id"`
	ReferredUser string          `json:"referred_user"`
	ReferralDate time.Time       `json:"referral_date"`
	PointsEarned decimal.Decimal `json:"points_earned"`
}

type MyReferrals struct {
	Referrals   []ReferredSummary `json:"referrals"`
	TotalPoints decimal.Decimal   `json:"total_points"`
}

type TopReferrer struct {
	ReferrerID    string          `json:"referrer_id"`
	Email         string          `json:"email"`
	ReferralCount int             `json:"referral_count"`
	TotalPoints   decimal.Decimal `json:"total_points"`
}

type ReferralService struct {
	DB       *gorm.DB
	Codes    *ReferralCodeGenerator
	Settings *SettingsService
	log      *logging.Logger
	now      func() time.Time
}

func NewReferralService(db *gorm.DB, codes *ReferralCodeGenerator, settings *SettingsService, log *logging.Logger) *ReferralService {
	return &ReferralService{DB: db, Codes: codes, Settings: settings, log: log.Named("referral"), now: time.Now}
}

// EnsureReferralCode returns the user's code, assigning one if they have none.
// created reports whether this call assigned it.
func (s *ReferralService) EnsureReferralCode(ctx context.Context, userID string) (code string, created bool, err error) {
	db := s.DB.WithContext(ctx)
	user, err := findUser(db, userID)
	if err != nil {
		return "", false, err
	}
	if user.ReferralCode != nil && *user.ReferralCode != "" {
		return *user.ReferralCode, false, nil
	}

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		candidate, err := s.Codes.Generate(ctx, s.DB)
		if err != nil {
			return "", false, err
		}

		res := db.Model(&models.User{}).
			Where("id = ? AND referral_code IS NULL", userID).
			Update("referral_code", candidate)
		if isDuplicateKey(res.Error) {
			s.log.Warn("referral code collided on update, retrying", zap.Int("attempt", attempt))
			continue
		}
		if res.Error != nil {
			return "", false, fmt.Errorf("failed to assign referral code: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// assigned concurrently
			user, err = findUser(db, userID)
			if err != nil {
				return "", false, err
			}
			if user.ReferralCode == nil {
				return "", false, fmt.Errorf("referral code for %s vanished", userID)
			}
			return *user.ReferralCode, false, nil
		}
		s.log.Info("referral code assigned", zap.String("user_id", userID))
		return candidate, true, nil
	}
	return "", false, ConflictError("could not allocate a unique referral code")
}

// ValidateReferralCode reports not-found when no user holds code.
func (s *ReferralService) ValidateReferralCode(ctx context.Context, code string) error {
	if code == "" {
		return ValidationError("referral code is required")
	}
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("referral_code = ?", code).Count(&n).Error; err != nil {
		return fmt.Errorf("failed to look up referral code: %w", err)
	}
	if n == 0 {
		return NotFoundError("invalid referral code")
	}
	return nil
}

// ReferralHistory lists the referral-ledger rows credited to referrerID, newest first.
func (s *ReferralService) ReferralHistory(ctx context.Context, referrerID string, filter HistoryFilter) ([]models.ReferralEarning, error) {
	if referrerID == "" {
		return nil, ValidationError("user id is required")
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, ValidationError("filter must be %q or %q", models.ReferralEarningNewReferral, models.ReferralEarningGamePlayed)
	}
	if filter.Days < 0 {
		return nil, ValidationError("days must be positive")
	}
	if filter.Days > 0 {
		settings, err := s.Settings.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		if len(settings.DurationFilterData) > 0 && !slices.Contains([]int(settings.DurationFilterData), filter.Days) {
			return nil, ValidationError("days must be one of %v", []int(settings.DurationFilterData))
		}
	}

	db := s.DB.WithContext(ctx)
	if _, err := findUser(db, referrerID); err != nil {
		return nil, err
	}

	q := db.Where("referrer_id = ?", referrerID)
	if filter.Kind != "" {
		q = q.Where("earning_type = ?", filter.Kind)
	}
	if filter.Days > 0 {
		q = q.Where("created_at >= ?", s.now().AddDate(0, 0, -filter.Days))
	}

	var rows []models.ReferralEarning
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load referral history: %w", err)
	}
	return rows, nil
}

// MyReferrals lists everyone referrerID signed up with the points each one
// has earned them, highest first.
func (s *ReferralService) MyReferrals(ctx context.Context, referrerID string) (*MyReferrals, error) {
	if referrerID == "" {
		return nil, ValidationError("user id is required")
	}
	db := s.DB.WithContext(ctx)
	if _, err := findUser(db, referrerID); err != nil {
		return nil, err
	}

	var edges []struct {
		ReferredID string
		Email      string
		CreatedAt  time.Time
	}
	if err := db.Model(&models.Referral{}).
		Select("referrals.referred_id, users.email, referrals.created_at").
		Joins("JOIN users ON users.id = referrals.referred_id").
		Where("referrals.referrer_id = ?", referrerID).
		Scan(&edges).Error; err != nil {
		return nil, fmt.Errorf("failed to load referrals: %w", err)
	}

	var earnings []models.ReferralEarning
	if err := db.Select("referred_id", "points_earned").
		Where("referrer_id = ?", referrerID).
		Find(&earnings).Error; err != nil {
		return nil, fmt.Errorf("failed to load referral earnings: %w", err)
	}
	perReferred := make(map[string]decimal.Decimal, len(edges))
	for _, e := range earnings {
		perReferred[e.ReferredID] = perReferred[e.ReferredID].Add(e.PointsEarned)
	}

	out := &MyReferrals{Referrals: make([]ReferredSummary, 0, len(edges)), TotalPoints: decimal.Zero}
	for _, e := range edges {
		points := perReferred[e.ReferredID]
		out.Referrals = append(out.Referrals, ReferredSummary{
			ReferredID:   e.ReferredID,
			ReferredUser: e.Email,
			ReferralDate: e.CreatedAt,
			PointsEarned: points,
		})
		out.TotalPoints = out.TotalPoints.Add(points)
	}
	sort.SliceStable(out.Referrals, func(i, j int) bool {
		return out.Referrals[i].PointsEarned.GreaterThan(out.Referrals[j].PointsEarned)
	})
	return out, nil
}

// TopReferrers ranks referrers by total referral-ledger points.
func (s *ReferralService) TopReferrers(ctx context.Context, limit int) ([]TopReferrer, error) {
	if limit <= 0 {
		limit = 10
	}
	db := s.DB.WithContext(ctx)

	var edges []models.Referral
	if err := db.Select("referrer_id", "referred_id").Find(&edges).Error; err != nil {
		return nil, fmt.Errorf("failed to load referrals: %w", err)
	}
	if len(edges) == 0 {
		return []TopReferrer{}, nil
	}

	byReferrer := map[string]*TopReferrer{}
	ids := make([]string, 0)
	for _, e := range edges {
		t, ok := byReferrer[e.ReferrerID]
		if !ok {
			t = &TopReferrer{ReferrerID: e.ReferrerID, TotalPoints: decimal.Zero}
			byReferrer[e.ReferrerID] = t
			ids = append(ids, e.ReferrerID)
		}
		t.ReferralCount++
	}

	var earnings []models.ReferralEarning
	if err := db.Select("referrer_id", "points_earned").
		Where("referrer_id IN ?", ids).
		Find(&earnings).Error; err != nil {
		return nil, fmt.Errorf("failed to load referral earnings: %w", err)
	}
	for _, e := range earnings {
		byReferrer[e.ReferrerID].TotalPoints = byReferrer[e.ReferrerID].TotalPoints.Add(e.PointsEarned)
	}

	var users []models.User
	if err := db.Select("id", "email").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to load referrers: %w", err)
	}
	for _, u := range users {
		byReferrer[u.ID].Email = u.Email
	}

	out := make([]TopReferrer, 0, len(byReferrer))
	for _, id := range ids {
		out = append(out, *byReferrer[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalPoints.GreaterThan(out[j].TotalPoints)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
