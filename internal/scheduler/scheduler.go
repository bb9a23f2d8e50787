// Package scheduler fires periodic safety-net drains. Edge triggers
// and enqueue triggers cover the normal cases; the schedule catches a
// queue left pending when no new edge or enqueue arrives, for example
// after a drain failed mid-window.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs a trigger on a fixed interval or cron expression.
type Scheduler struct {
	interval time.Duration
	schedule cron.Schedule
	trigger  func(ctx context.Context)
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a scheduler. A non-empty cron expression takes
// precedence over the interval; an interval of zero with no expression
// disables the scheduler (Start becomes a no-op).
func New(interval time.Duration, cronExpr string, trigger func(ctx context.Context), logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		interval: interval,
		trigger:  trigger,
		logger:   logger.With("component", "scheduler"),
	}
	if cronExpr != "" {
		schedule, err := cron.ParseStandard(cronExpr)
		if err != nil {
			return nil, fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
		}
		s.schedule = schedule
	}
	return s, nil
}

// Start launches the schedule loop until ctx ends or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	if s.schedule == nil && s.interval <= 0 {
		s.logger.Info("periodic sync disabled")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		if s.schedule != nil {
			s.cronLoop(ctx)
		} else {
			s.intervalLoop(ctx)
		}
	}()
	s.logger.Info("periodic sync started", "interval", s.interval, "cron", s.schedule != nil)
}

// Stop halts the loop. Safe to call after Start.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Scheduler) intervalLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.trigger(ctx)
		}
	}
}

func (s *Scheduler) cronLoop(ctx context.Context) {
	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.trigger(ctx)
		}
	}
}
