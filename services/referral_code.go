// services/referral_code.go
package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"referral-points-system/models"

	"gorm.io/gorm"
)

const (
	referralCodeBytes     = 3
	referralCodeBatchSize = 10
	// maxCodeAttempts bounds insert retries after a unique-index race.
	maxCodeAttempts = 5
)

// ReferralCodeGenerator hands out short hex codes that no stored user holds.
type ReferralCodeGenerator struct {
	BatchSize int
	Random    io.Reader
}

func NewReferralCodeGenerator() *ReferralCodeGenerator {
	return &ReferralCodeGenerator{BatchSize: referralCodeBatchSize, Random: rand.Reader}
}

// Generate checks a whole batch of candidates in one query and returns the
// first one not taken, drawing a fresh batch when all of them collide.
// The unique index on users.referral_code still decides races at insert time.
func (g *ReferralCodeGenerator) Generate(ctx context.Context, db *gorm.DB) (string, error) {
	size := g.BatchSize
	if size < 1 {
		size = referralCodeBatchSize
	}
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		candidates := make([]string, 0, size)
		seen := make(map[string]bool, size)
		for len(candidates) < size {
			code, err := g.randomCode()
			if err != nil {
				return "", err
			}
			if !seen[code] {
				seen[code] = true
				candidates = append(candidates, code)
			}
		}

		var taken []string
		if err := db.WithContext(ctx).Model(&models.User{}).
			Where("referral_code IN ?", candidates).
			Pluck("referral_code", &taken).Error; err != nil {
			return "", fmt.Errorf("failed to check referral codes: %w", err)
		}
		for _, code := range taken {
			delete(seen, code)
		}

		for _, code := range candidates {
			if seen[code] {
				return code, nil
			}
		}
	}
}

func (g *ReferralCodeGenerator) randomCode() (string, error) {
	src := g.Random
	if src == nil {
		src = rand.Reader
	}
	buf := make([]byte, referralCodeBytes)
	if _, err := io.ReadFull(src, buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// isDuplicateKey reports a unique-constraint violation.
func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
