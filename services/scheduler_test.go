package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSchedulerRunsEnabledJobs(t *testing.T) {
	var runs, disabled atomic.Int32
	sched, err := StartScheduler(context.Background(), testLogger(),
		Job{Name: "tick", Every: 20 * time.Millisecond, Run: func(context.Context) error {
			runs.Add(1)
			return nil
		}},
		Job{Name: "off", Run: func(context.Context) error {
			disabled.Add(1)
			return nil
		}},
	)
	require.NoError(t, err)
	defer func() { _ = sched.Shutdown() }()

	assert.Len(t, sched.Jobs(), 1)
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, disabled.Load())
}
