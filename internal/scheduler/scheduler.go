package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Job is invoked on every interval tick.
type Job func(ctx context.Context) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	AlignToStart bool
	StartupDelay time.Duration
}

// Scheduler drives one chain's sampling timeline. Each monitored chain runs
// its own Scheduler on its own goroutine, so timelines are independent and a
// stall on one chain never delays another.
type Scheduler struct {
	name   string
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance. name labels the timeline in logs.
func New(name string, opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{
		name:   name,
		opts:   opts,
		logger: logger.With().Str("component", "scheduler").Str("timeline", name).Logger(),
	}
}

// Run blocks, invoking the job once per interval until ctx is cancelled.
// The job runs synchronously on this goroutine, so at most one invocation is
// in flight; a tick that fires while the job is still running is dropped
// rather than queued. Job errors are logged and the loop continues.
func (s *Scheduler) Run(ctx context.Context, job Job) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	next := s.nextTick(time.Now().UTC())
	for {
		delay := time.Until(next)
		if delay < 0 {
			// Overran past one or more ticks; skip them.
			next = s.nextTick(time.Now().UTC())
			delay = time.Until(next)
		}

		timer := time.NewTimer(delay)
		s.logger.Debug().Time("next_tick", next).Msg("waiting for next tick")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			timer.Stop()
		}

		started := time.Now()
		if err := job(ctx); err != nil {
			s.logger.Error().Err(err).Time("tick", next).Msg("scheduled job failed")
		}
		s.logger.Debug().Dur("elapsed", time.Since(started)).Msg("tick complete")

		next = next.Add(s.opts.Interval)
	}
}

func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	tick := now.Truncate(s.opts.Interval)
	if !tick.After(now) {
		tick = tick.Add(s.opts.Interval)
	}
	return tick
}
