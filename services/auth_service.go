// services/auth_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"referral-points-system/logging"
	"referral-points-system/models"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var errInvalidCredentials = UnauthorizedError("invalid email or password", nil)

// revokedTokenRetention is how long a rotated or logged-out refresh token row
// is kept before PruneRefreshTokens removes it.
const revokedTokenRetention = 24 * time.Hour

type RegisterInput struct {
	Email        string `json:"email" validate:"required,email,max=255"`
	Password     string `json:"password" validate:"required,max=72"`
	ReferralCode string `json:"referral_code" validate:"omitempty,max=16"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is what a successful login or refresh hands back to the client.
type Session struct {
	User    *models.User
	Access  IssuedToken
	Refresh IssuedToken
}

type AuthService struct {
	DB       *gorm.DB
	Tokens   *TokenCodec
	Codes    *ReferralCodeGenerator
	Settings *SettingsService
	Metrics  *Metrics
	log      *logging.Logger
	now      func() time.Time
}

func NewAuthService(db *gorm.DB, tokens *TokenCodec, codes *ReferralCodeGenerator, settings *SettingsService, metrics *Metrics, log *logging.Logger) *AuthService {
	return &AuthService{
		DB:       db,
		Tokens:   tokens,
		Codes:    codes,
		Settings: settings,
		Metrics:  metrics,
		log:      log.Named("auth"),
		now:      time.Now,
	}
}

// Register creates the user and, when a referral code is given, the referral
// edge and the referrer's New_Referral credit. All rows commit together.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.ReferralCode = strings.TrimSpace(in.ReferralCode)
	if err := Validate(in); err != nil {
		return nil, err
	}

	taken, err := s.emailTaken(s.DB.WithContext(ctx), in.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ConflictError("email %s is already registered", in.Email)
	}

	var referrer *models.User
	if in.ReferralCode != "" {
		referrer, err = s.findByReferralCode(ctx, in.ReferralCode)
		if err != nil {
			return nil, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	settings, err := s.Settings.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.Codes.Generate(ctx, s.DB)
		if err != nil {
			return nil, err
		}

		user := &models.User{Email: in.Email, PasswordHash: string(hash), ReferralCode: &code}
		if referrer != nil {
			user.ReferredBy = &referrer.ID
		}

		err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(user).Error; err != nil {
				return err
			}
			if referrer == nil {
				return nil
			}
			edge := &models.Referral{
				ReferrerID:  referrer.ID,
				ReferredID:  user.ID,
				SignupBonus: settings.NewReferralPoints,
			}
			if err := tx.Create(edge).Error; err != nil {
				return fmt.Errorf("failed to create referral: %w", err)
			}
			_, err := appendReferralEarning(tx, referrer.ID, user.ID, models.ReferralEarningNewReferral, settings.NewReferralPoints)
			return err
		})
		if err == nil {
			s.Metrics.signup(referrer != nil)
			s.log.Info("user registered",
				zap.String("user_id", user.ID),
				zap.Bool("referred", referrer != nil),
			)
			return user, nil
		}
		if !isDuplicateKey(err) {
			return nil, fmt.Errorf("failed to register user: %w", err)
		}

		// duplicate key: either the email raced in or the code did
		if taken, terr := s.emailTaken(s.DB.WithContext(ctx), in.Email); terr == nil && taken {
			return nil, ConflictError("email %s is already registered", in.Email)
		}
		s.log.Warn("referral code collided on insert, retrying",
			zap.Int("attempt", attempt),
		)
	}
	return nil, ConflictError("could not allocate a unique referral code")
}

// Login checks the password and opens a new session.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := Validate(in); err != nil {
		return nil, err
	}

	var user models.User
	err := s.DB.WithContext(ctx).Where("email = ?", in.Email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.Metrics.login("unknown_email")
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		s.Metrics.login("bad_password")
		return nil, errInvalidCredentials
	}

	session, err := s.openSession(s.DB.WithContext(ctx), &user)
	if err != nil {
		return nil, err
	}
	s.Metrics.login("ok")
	s.log.Info("user logged in", zap.String("user_id", user.ID))
	return session, nil
}

// Refresh exchanges a refresh token for a new pair. The old token is revoked
// in the same transaction, so a replayed token fails.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.Tokens.VerifyRefresh(refreshToken)
	if err != nil {
		s.Metrics.refresh("invalid")
		return nil, err
	}

	var session *Session
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stored models.RefreshToken
		err := tx.Where("id = ?", claims.ID).First(&stored).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return UnauthorizedError("refresh token not recognised", nil)
		}
		if err != nil {
			return fmt.Errorf("failed to load refresh token: %w", err)
		}
		if stored.UserID != claims.Subject || !stored.Active(s.now()) {
			return UnauthorizedError("refresh token is no longer valid", nil)
		}

		var user models.User
		err = tx.Where("id = ?", claims.Subject).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return UnauthorizedError("user no longer exists", nil)
		}
		if err != nil {
			return fmt.Errorf("failed to load user: %w", err)
		}

		session, err = s.openSession(tx, &user)
		if err != nil {
			return err
		}

		now := s.now()
		res := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", stored.ID).
			Updates(map[string]any{"revoked_at": now, "replaced_by": session.Refresh.ID})
		if res.Error != nil {
			return fmt.Errorf("failed to revoke refresh token: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return UnauthorizedError("refresh token is no longer valid", nil)
		}
		return nil
	})
	if err != nil {
		s.Metrics.refresh("rejected")
		return nil, err
	}

	s.Metrics.refresh("ok")
	return session, nil
}

// Logout revokes the presented refresh token. Unknown or invalid tokens are
// ignored so logging out twice is harmless.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.Tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil
	}
	err = s.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("id = ? AND revoked_at IS NULL", claims.ID).
		Update("revoked_at", s.now()).Error
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	s.log.Info("user logged out", zap.String("user_id", claims.Subject))
	return nil
}

// PruneRefreshTokens deletes expired refresh token rows and rows revoked more
// than revokedTokenRetention ago. A pruned token is rejected as unrecognised.
func (s *AuthService) PruneRefreshTokens(ctx context.Context) (int64, error) {
	now := s.now()
	res := s.DB.WithContext(ctx).
		Where("expires_at <= ?", now).
		Or("revoked_at IS NOT NULL AND revoked_at <= ?", now.Add(-revokedTokenRetention)).
		Delete(&models.RefreshToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune refresh tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Authenticate verifies an access token and loads its user.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := s.Tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, err
	}

	var user models.User
	err = s.DB.WithContext(ctx).Where("id = ?", claims.Subject).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, UnauthorizedError("user no longer exists", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

func (s *AuthService) openSession(db *gorm.DB, user *models.User) (*Session, error) {
	access, refresh, err := s.Tokens.issuePair(user)
	if err != nil {
		return nil, err
	}
	row := &models.RefreshToken{ID: refresh.ID, UserID: user.ID, ExpiresAt: refresh.ExpiresAt}
	if err := db.Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}
	return &Session{User: user, Access: access, Refresh: refresh}, nil
}

func (s *AuthService) emailTaken(db *gorm.DB, email string) (bool, error) {
	var n int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return n > 0, nil
}

func (s *AuthService) findByReferralCode(ctx context.Context, code string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("referral_code = ?", code).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundError("referral code %s not found", code)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up referral code: %w", err)
	}
	return &user, nil
}
