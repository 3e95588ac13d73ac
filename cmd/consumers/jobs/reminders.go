package jobs

import (
	"context"
	"log/slog"
	"time"
)

type ReminderSender interface {
	SendDue(ctx context.Context, window time.Duration) (int, error)
}

// ReminderJob queues reminders for confirmed stays starting within window.
type ReminderJob struct {
	sender   ReminderSender
	interval time.Duration
	window   time.Duration
	ticker   *time.Ticker
	done     chan bool
}

func NewReminderJob(sender ReminderSender, interval, window time.Duration) *ReminderJob {
	return &ReminderJob{
		sender:   sender,
		interval: interval,
		window:   window,
		done:     make(chan bool),
	}
}

func (j *ReminderJob) Start(ctx context.Context) {
	slog.Info("Starting reminder job", "check_interval", j.interval, "window", j.window)

	j.ticker = time.NewTicker(j.interval)

	go func() {
		j.send(ctx)
		for {
			select {
			case <-j.ticker.C:
				j.send(ctx)
			case <-j.done:
				slog.Info("Reminder job stopped")
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (j *ReminderJob) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
}

func (j *ReminderJob) send(ctx context.Context) {
	sent, err := j.sender.SendDue(ctx, j.window)
	if err != nil {
		slog.Error("Failed to send reminders", "error", err)
		return
	}
	if sent > 0 {
		slog.Info("Reminders queued", "count", sent)
	}
}
