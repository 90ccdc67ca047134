package workers

import (
	"context"
	"time"

	"referral-points-system/logging"
	"referral-points-system/services"

	"go.uber.org/zap"
)

// TokenPruner clears refresh token rows that can no longer be exchanged.
type TokenPruner struct {
	Auth *services.AuthService
	log  *logging.Logger
}

func NewTokenPruner(auth *services.AuthService, log *logging.Logger) *TokenPruner {
	return &TokenPruner{Auth: auth, log: log.Named("token-pruner")}
}

func (p *TokenPruner) Run(ctx context.Context) error {
	n, err := p.Auth.PruneRefreshTokens(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		p.log.Info("pruned refresh tokens", zap.Int64("deleted", n))
	}
	return nil
}

func (p *TokenPruner) Job(every time.Duration) services.Job {
	return services.Job{Name: "refresh-token-prune", Every: every, Run: p.Run}
}
