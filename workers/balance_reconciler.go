package workers

import (
	"context"
	"time"

	"referral-points-system/logging"
	"referral-points-system/services"

	"go.uber.org/zap"
)

// BalanceReconciler rewrites cached balances that no longer match the ledgers.
type BalanceReconciler struct {
	Ledger *services.LedgerService
	log    *logging.Logger
}

func NewBalanceReconciler(ledger *services.LedgerService, log *logging.Logger) *BalanceReconciler {
	return &BalanceReconciler{Ledger: ledger, log: log.Named("reconciler")}
}

func (r *BalanceReconciler) Run(ctx context.Context) error {
	res, err := r.Ledger.RecomputeAllBalances(ctx)
	if err != nil {
		return err
	}
	if res.Drifted > 0 {
		r.log.Warn("corrected drifted balances",
			zap.Int("users", res.Users),
			zap.Int("drifted", res.Drifted),
		)
		return nil
	}
	r.log.Debug("balances consistent", zap.Int("users", res.Users))
	return nil
}

// Job wraps the reconciler for the scheduler.
func (r *BalanceReconciler) Job(every time.Duration) services.Job {
	return services.Job{Name: "balance-reconcile", Every: every, Run: r.Run}
}
