package jobs

import (
	"context"
	"log/slog"
	"time"

	"resort/internal/service"
)

type StatusSweeper interface {
	CheckAndUpdateReservationStatus(ctx context.Context) (*service.SweepResult, error)
}

// StatusSweeperJob cancels stale pending reservations and completes elapsed
// confirmed ones on a fixed interval.
type StatusSweeperJob struct {
	sweeper  StatusSweeper
	interval time.Duration
	ticker   *time.Ticker
	done     chan bool
}

func NewStatusSweeperJob(sweeper StatusSweeper, interval time.Duration) *StatusSweeperJob {
	return &StatusSweeperJob{
		sweeper:  sweeper,
		interval: interval,
		done:     make(chan bool),
	}
}

// Start runs one sweep immediately and then one per interval.
func (j *StatusSweeperJob) Start(ctx context.Context) {
	slog.Info("Starting reservation status sweeper", "check_interval", j.interval)

	j.ticker = time.NewTicker(j.interval)

	go func() {
		j.sweep(ctx)
		for {
			select {
			case <-j.ticker.C:
				j.sweep(ctx)
			case <-j.done:
				slog.Info("Reservation status sweeper stopped")
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (j *StatusSweeperJob) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
}

// sweep runs sequentially in the job goroutine so two sweeps never overlap.
func (j *StatusSweeperJob) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, j.interval)
	defer cancel()

	result, err := j.sweeper.CheckAndUpdateReservationStatus(sweepCtx)
	if err != nil {
		slog.Error("Reservation status sweep failed", "error", err)
		return
	}

	if len(result.Cancelled) == 0 && len(result.Completed) == 0 {
		slog.Debug("No reservations to transition")
	}
}
