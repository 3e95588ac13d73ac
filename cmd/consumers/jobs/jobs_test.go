package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"resort/internal/service"

	"github.com/stretchr/testify/assert"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) CheckAndUpdateReservationStatus(ctx context.Context) (*service.SweepResult, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &service.SweepResult{}, nil
}

type countingSender struct {
	calls atomic.Int32
}

func (s *countingSender) SendDue(ctx context.Context, window time.Duration) (int, error) {
	s.calls.Add(1)
	return 1, nil
}

func TestStatusSweeperJob(t *testing.T) {
	sweeper := &countingSweeper{}
	job := NewStatusSweeperJob(sweeper, 10*time.Millisecond)
	job.Start(context.Background())

	assert.Eventually(t, func() bool { return sweeper.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	job.Stop()

	stopped := sweeper.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, sweeper.calls.Load(), stopped+1)
}

func TestStatusSweeperJob_KeepsRunningAfterErrors(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("database unavailable")}
	ctx, cancel := context.WithCancel(context.Background())
	job := NewStatusSweeperJob(sweeper, 10*time.Millisecond)
	job.Start(ctx)
	defer job.Stop()

	assert.Eventually(t, func() bool { return sweeper.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
}

func TestReminderJob(t *testing.T) {
	sender := &countingSender{}
	job := NewReminderJob(sender, time.Hour, 24*time.Hour)
	job.Start(context.Background())
	defer job.Stop()

	// The first run happens immediately, not after the first interval.
	assert.Eventually(t, func() bool { return sender.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}
