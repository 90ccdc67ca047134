// services/scheduler.go
package services

import (
	"context"
	"fmt"
	"time"

	"referral-points-system/logging"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Job is a recurring background task. Jobs with a zero interval are skipped.
type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error
}

// StartScheduler registers jobs with gocron and starts it. A job never
// overlaps itself; a slow run pushes the next one back. Call Shutdown on the
// returned scheduler when ctx is done.
func StartScheduler(ctx context.Context, log *logging.Logger, jobs ...Job) (gocron.Scheduler, error) {
	log = log.Named("scheduler")

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	for _, job := range jobs {
		job := job // per-iteration copy for the task closure (go < 1.22 loop semantics)
		if job.Every <= 0 || job.Run == nil {
			log.Info("job disabled", zap.String("job", job.Name))
			continue
		}

		_, err := sched.NewJob(
			gocron.DurationJob(job.Every),
			gocron.NewTask(func() {
				started := time.Now()
				if err := job.Run(ctx); err != nil {
					log.Error("job failed", zap.String("job", job.Name), zap.Error(err))
					return
				}
				log.Debug("job finished", zap.String("job", job.Name), zap.Duration("took", time.Since(started)))
			}),
			gocron.WithName(job.Name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = sched.Shutdown()
			return nil, fmt.Errorf("failed to schedule %s: %w", job.Name, err)
		}
		log.Info("job scheduled", zap.String("job", job.Name), zap.Duration("every", job.Every))
	}

	sched.Start()
	return sched, nil
}
