// services/settings_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"referral-points-system/logging"
	"referral-points-system/models"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultSettings is what every reader falls back to while no row is stored.
func DefaultSettings() models.Setting {
	return models.Setting{
		ID:                     models.SettingsSingletonID,
		NewReferralPoints:      decimal.NewFromInt(100),
		PlatformEarnPercentage: decimal.NewFromInt(10),
		ReferralEarnPercentage: decimal.NewFromInt(2),
		DurationFilterData:     datatypes.JSONSlice[int]{1, 7, 30},
	}
}

// SettingsCache is an optional read-through cache in front of the settings row.
type SettingsCache interface {
	Get(ctx context.Context) (*models.Setting, error)
	Set(ctx context.Context, s *models.Setting) error
	Invalidate(ctx context.Context) error
}

// errCacheMiss is returned by SettingsCache.Get when nothing is cached.
var errCacheMiss = errors.New("settings cache miss")

type SettingsService struct {
	DB    *gorm.DB
	Cache SettingsCache
	log   *logging.Logger
}

func NewSettingsService(db *gorm.DB, cache SettingsCache, log *logging.Logger) *SettingsService {
	return &SettingsService{DB: db, Cache: cache, log: log.Named("settings")}
}

// Get returns the stored settings, inserting the defaults on first use.
func (s *SettingsService) Get(ctx context.Context) (*models.Setting, error) {
	if cached := s.fromCache(ctx); cached != nil {
		return cached, nil
	}

	var setting models.Setting
	err := s.DB.WithContext(ctx).First(&setting, models.SettingsSingletonID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		setting = DefaultSettings()
		err = s.DB.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&setting).Error
		if err == nil {
			// a concurrent writer may have won; read back what is stored
			err = s.DB.WithContext(ctx).First(&setting, models.SettingsSingletonID).Error
		}
		if err == nil {
			s.log.Info("created default settings")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	s.toCache(ctx, &setting)
	return &setting, nil
}

// Resolve returns the stored settings or the defaults. It never writes.
func (s *SettingsService) Resolve(ctx context.Context) (*models.Setting, error) {
	return resolveSettings(ctx, s.DB, s)
}

// resolveSettings reads through db so callers inside a transaction see their own view.
func resolveSettings(ctx context.Context, db *gorm.DB, s *SettingsService) (*models.Setting, error) {
	if s != nil {
		if cached := s.fromCache(ctx); cached != nil {
			return cached, nil
		}
	}

	var setting models.Setting
	err := db.WithContext(ctx).First(&setting, models.SettingsSingletonID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		def := DefaultSettings()
		return &def, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	if s != nil {
		s.toCache(ctx, &setting)
	}
	return &setting, nil
}

// Update validates and replaces the singleton wholesale.
func (s *SettingsService) Update(ctx context.Context, in models.Setting) (*models.Setting, error) {
	if err := validateSettings(&in); err != nil {
		return nil, err
	}
	in.ID = models.SettingsSingletonID

	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&in).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}

	if s.Cache != nil {
		if err := s.Cache.Invalidate(ctx); err != nil {
			s.log.Warn("settings cache invalidate failed", zap.Error(err))
		}
	}
	s.log.Info("settings updated",
		zap.String("new_referral_points", in.NewReferralPoints.String()),
		zap.String("platform_earn_percentage", in.PlatformEarnPercentage.String()),
		zap.String("referral_earn_percentage", in.ReferralEarnPercentage.String()),
	)
	return &in, nil
}

func validateSettings(in *models.Setting) error {
	if in.NewReferralPoints.IsNegative() {
		return ValidationError("new_referral_points must not be negative")
	}
	for name, pct := range map[string]decimal.Decimal{
		"platform_earn_percentage": in.PlatformEarnPercentage,
		"referral_earn_percentage": in.ReferralEarnPercentage,
	} {
		if pct.IsNegative() || pct.GreaterThan(hundred) {
			return ValidationError("%s must be between 0 and 100", name)
		}
	}
	for _, days := range in.DurationFilterData {
		if days <= 0 {
			return ValidationError("duration_filter_data entries must be positive")
		}
	}
	return nil
}

func (s *SettingsService) fromCache(ctx context.Context) *models.Setting {
	if s.Cache == nil {
		return nil
	}
	cached, err := s.Cache.Get(ctx)
	if err != nil {
		if !errors.Is(err, errCacheMiss) {
			s.log.Warn("settings cache read failed", zap.Error(err))
		}
		return nil
	}
	return cached
}

func (s *SettingsService) toCache(ctx context.Context, setting *models.Setting) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Set(ctx, setting); err != nil {
		s.log.Warn("settings cache write failed", zap.Error(err))
	}
}

const settingsCacheKey = "referral:settings"

// RedisSettingsCache stores the settings row as JSON under a single key.
type RedisSettingsCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisSettingsCache(client *redis.Client, ttl time.Duration) *RedisSettingsCache {
	return &RedisSettingsCache{Client: client, TTL: ttl}
}

func (c *RedisSettingsCache) Get(ctx context.Context) (*models.Setting, error) {
	raw, err := c.Client.Get(ctx, settingsCacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errCacheMiss
	}
	if err != nil {
		return nil, err
	}
	var s models.Setting
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode cached settings: %w", err)
	}
	s.ID = models.SettingsSingletonID
	return &s, nil
}

func (c *RedisSettingsCache) Set(ctx context.Context, s *models.Setting) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, settingsCacheKey, raw, c.TTL).Err()
}

func (c *RedisSettingsCache) Invalidate(ctx context.Context) error {
	return c.Client.Del(ctx, settingsCacheKey).Err()
}
