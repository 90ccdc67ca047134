// services/ledger_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"referral-points-system/logging"
	"referral-points-system/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Decision is the outcome of a played game.
type Decision string

const (
	DecisionWin  Decision = "win"
	DecisionLose Decision = "lose"
)

func (d Decision) Valid() bool {
	return d == DecisionWin || d == DecisionLose
}

// Settlement is everything one game outcome wrote.
// ReferralEntry is nil for wins and for players without a referrer.
type Settlement struct {
	PlayerEntry   *models.Earning         `json:"player_entry"`
	ReferralEntry *models.ReferralEarning `json:"referral_entry,omitempty"`
}

// ReconcileResult summarises a RecomputeAllBalances run.
type ReconcileResult struct {
	Users   int
	Drifted int
}

type LedgerService struct {
	DB       *gorm.DB
	Settings *SettingsService
	Metrics  *Metrics
	log      *logging.Logger
}

func NewLedgerService(db *gorm.DB, settings *SettingsService, metrics *Metrics, log *logging.Logger) *LedgerService {
	return &LedgerService{DB: db, Settings: settings, Metrics: metrics, log: log.Named("ledger")}
}

// RecordPlayerEarning appends one row to the user's own ledger.
// It does not touch the cached balance.
func (s *LedgerService) RecordPlayerEarning(ctx context.Context, userID string, kind models.EarningType, amount decimal.Decimal) (*models.Earning, error) {
	if userID == "" {
		return nil, ValidationError("user id is required")
	}
	if !kind.Valid() {
		return nil, ValidationError("unknown earning type %q", kind)
	}
	if amount.IsZero() {
		return nil, ValidationError("points_earned is required")
	}

	var entry *models.Earning
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findUser(tx, userID); err != nil {
			return err
		}
		var err error
		entry, err = appendEarning(tx, userID, kind, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// RecordReferralEarning credits referrerID for something referredID did.
// The referred user must have been signed up by that referrer.
func (s *LedgerService) RecordReferralEarning(ctx context.Context, referrerID, referredID string, kind models.ReferralEarningType, amount decimal.Decimal) (*models.ReferralEarning, error) {
	if referrerID == "" || referredID == "" {
		return nil, ValidationError("referrer and referred user ids are required")
	}
	if !kind.Valid() {
		return nil, ValidationError("unknown referral earning type %q", kind)
	}
	if amount.IsZero() {
		return nil, ValidationError("points_earned is required")
	}

	var entry *models.ReferralEarning
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		referred, err := findUser(tx, referredID)
		if err != nil {
			return err
		}
		if referred.ReferredBy == nil || *referred.ReferredBy != referrerID {
			return ValidationError("user %s was not referred by %s", referredID, referrerID)
		}
		entry, err = appendReferralEarning(tx, referrerID, referredID, kind, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// RecordGamePlay debits the stake when a game starts.
func (s *LedgerService) RecordGamePlay(ctx context.Context, userID string, stake decimal.Decimal) (*models.Earning, error) {
	if err := validateStake(stake); err != nil {
		return nil, err
	}
	return s.RecordPlayerEarning(ctx, userID, models.EarningTypeGamePlayed, stake.Neg())
}

// SettleGameOutcome writes the ledger rows for a finished game in one transaction.
// A win credits +stake. A loss debits -stake and, when the player has a
// referrer, credits that referrer the commission on the stake.
func (s *LedgerService) SettleGameOutcome(ctx context.Context, userID string, decision Decision, stake decimal.Decimal) (*Settlement, error) {
	if userID == "" {
		return nil, ValidationError("user id is required")
	}
	if !decision.Valid() {
		return nil, ValidationError("decision must be %q or %q", DecisionWin, DecisionLose)
	}
	if err := validateStake(stake); err != nil {
		return nil, err
	}

	result := &Settlement{}
	commission := decimal.Zero
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		player, err := findUser(tx, userID)
		if err != nil {
			return err
		}

		if decision == DecisionWin {
			result.PlayerEntry, err = appendEarning(tx, userID, models.EarningTypeGamePlayed, stake)
			return err
		}

		if player.ReferredBy != nil {
			settings, err := resolveSettings(ctx, tx, s.Settings)
			if err != nil {
				return err
			}
			commission = CalculateReferralCommission(stake, settings.PlatformEarnPercentage, settings.ReferralEarnPercentage)
			result.ReferralEntry, err = appendReferralEarning(tx, *player.ReferredBy, userID, models.ReferralEarningGamePlayed, commission)
			if err != nil {
				return err
			}
		}

		result.PlayerEntry, err = appendEarning(tx, userID, models.EarningTypeGamePlayed, stake.Neg())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Metrics.settlement(decision, commission)
	s.log.Debug("game settled",
		zap.String("user_id", userID),
		zap.String("decision", string(decision)),
		zap.String("stake", stake.String()),
		zap.String("commission", commission.String()),
	)
	return result, nil
}

// RecomputeBalance sums the user's ledgers into users.balance and returns it.
func (s *LedgerService) RecomputeBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	if userID == "" {
		return decimal.Zero, ValidationError("user id is required")
	}

	var balance decimal.Decimal
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findUser(tx, userID); err != nil {
			return err
		}
		var err error
		balance, err = ledgerSum(tx, userID)
		if err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).Update("balance", balance).Error
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// ListEarnings returns the user's own ledger, newest first.
func (s *LedgerService) ListEarnings(ctx context.Context, userID string) ([]models.Earning, error) {
	if userID == "" {
		return nil, ValidationError("user id is required")
	}
	if _, err := findUser(s.DB.WithContext(ctx), userID); err != nil {
		return nil, err
	}

	var earnings []models.Earning
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&earnings).Error; err != nil {
		return nil, fmt.Errorf("failed to list earnings: %w", err)
	}
	return earnings, nil
}

// RecomputeAllBalances walks every user and rewrites balances that drifted
// from the ledgers.
func (s *LedgerService) RecomputeAllBalances(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult
	var users []models.User

	err := s.DB.WithContext(ctx).
		Select("id", "balance").
		FindInBatches(&users, 200, func(tx *gorm.DB, _ int) error {
			for _, u := range users {
				if err := ctx.Err(); err != nil {
					return err
				}
				res.Users++

				sum, err := ledgerSum(s.DB.WithContext(ctx), u.ID)
				if err != nil {
					return err
				}
				if sum.Equal(u.Balance) {
					continue
				}
				if err := s.DB.WithContext(ctx).Model(&models.User{}).
					Where("id = ?", u.ID).
					Update("balance", sum).Error; err != nil {
					return fmt.Errorf("failed to update balance for %s: %w", u.ID, err)
				}
				res.Drifted++
			}
			return nil
		}).Error
	if err != nil {
		return res, err
	}

	s.Metrics.drift(res.Drifted)
	return res, nil
}

func validateStake(stake decimal.Decimal) error {
	if !stake.IsPositive() {
		return ValidationError("stake must be a positive amount")
	}
	if !stake.Equal(stake.Round(LedgerScale)) {
		return ValidationError("stake supports at most %d decimal places", LedgerScale)
	}
	return nil
}

func findUser(db *gorm.DB, userID string) (*models.User, error) {
	var user models.User
	err := db.Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundError("user %s not found", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

func appendEarning(tx *gorm.DB, userID string, kind models.EarningType, amount decimal.Decimal) (*models.Earning, error) {
	entry := &models.Earning{UserID: userID, EarningType: kind, PointsEarned: amount}
	if err := tx.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to record earning: %w", err)
	}
	return entry, nil
}

func appendReferralEarning(tx *gorm.DB, referrerID, referredID string, kind models.ReferralEarningType, amount decimal.Decimal) (*models.ReferralEarning, error) {
	entry := &models.ReferralEarning{
		ReferrerID:   referrerID,
		ReferredID:   referredID,
		EarningType:  kind,
		PointsEarned: amount,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to record referral earning: %w", err)
	}
	return entry, nil
}

// ledgerSum adds the user's own rows and the referral rows credited to them.
func ledgerSum(db *gorm.DB, userID string) (decimal.Decimal, error) {
	var own, referral []decimal.Decimal
	if err := db.Model(&models.Earning{}).Where("user_id = ?", userID).Pluck("points_earned", &own).Error; err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum earnings: %w", err)
	}
	if err := db.Model(&models.ReferralEarning{}).Where("referrer_id = ?", userID).Pluck("points_earned", &referral).Error; err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum referral earnings: %w", err)
	}
	sum := decimal.Zero
	for _, v := range own {
		sum = sum.Add(v)
	}
	for _, v := range referral {
		sum = sum.Add(v)
	}
	return sum, nil
}
