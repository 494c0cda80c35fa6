package service

import (
	"context"
	"log/slog"
	"time"
)

// ReminderJobs is the work done on each scheduler tick.
type ReminderJobs interface {
	SendDue(ctx context.Context) (int, error)
	SendAutoReminders(ctx context.Context) (int, error)
}

type ReminderScheduler struct {
	Jobs     ReminderJobs
	Interval time.Duration
	Logger   *slog.Logger
}

// Run ticks until ctx is cancelled.
func (s ReminderScheduler) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.Logger.Info("reminder scheduler started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("reminder scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

func (s ReminderScheduler) Tick(ctx context.Context) {
	if n, err := s.Jobs.SendDue(ctx); err != nil {
		s.Logger.Error("scheduled notifications failed", "err", err)
	} else if n > 0 {
		s.Logger.Info("scheduled notifications sent", "count", n)
	}
	if n, err := s.Jobs.SendAutoReminders(ctx); err != nil {
		s.Logger.Error("auto reminders failed", "err", err)
	} else if n > 0 {
		s.Logger.Info("auto reminders sent", "count", n)
	}
}
