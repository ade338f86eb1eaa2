// Package schedule runs a job on fixed wall-clock interval boundaries.
package schedule

import (
	"context"
	"log/slog"
	"time"
)

// DefaultLateness is how far behind its boundary a firing may start before
// it is reported as past due.
const DefaultLateness = time.Minute

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// Next returns the first multiple of interval after now. Boundaries are
// aligned to the zero time, so an hourly interval fires on the hour.
func Next(now time.Time, interval time.Duration) time.Time {
	return now.Truncate(interval).Add(interval)
}

// Loop fires a job on every interval boundary until its context ends.
type Loop struct {
	Interval     time.Duration
	RunOnStartup bool
	Lateness     time.Duration
	Log          *slog.Logger

	// Now and After default to the time package.
	Now   func() time.Time
	After func(d time.Duration) <-chan time.Time
}

// Run blocks until ctx is cancelled. A failing job is logged and the loop
// keeps going.
func (l *Loop) Run(ctx context.Context, job Job) error {
	now := l.Now
	if now == nil {
		now = time.Now
	}
	after := l.After
	if after == nil {
		after = time.After
	}
	lateness := l.Lateness
	if lateness <= 0 {
		lateness = DefaultLateness
	}
	log := l.Log
	if log == nil {
		log = slog.Default()
	}

	if l.RunOnStartup {
		log.Info("running on startup")
		l.fire(ctx, log, job)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		current := now()
		next := Next(current, l.Interval)
		log.Debug("next run scheduled", "at", next)

		select {
		case <-ctx.Done():
			return nil
		case <-after(next.Sub(current)):
		}

		if late := now().Sub(next); late > lateness {
			log.Warn("scheduled run is past due", "scheduled", next, "late", late.Round(time.Second))
		}
		l.fire(ctx, log, job)
	}
}

func (l *Loop) fire(ctx context.Context, log *slog.Logger, job Job) {
	if err := job(ctx); err != nil {
		log.Error("scheduled run failed", "error", err)
	}
}
