// Package report publishes the summary of a reaping run.
package report

import (
	"context"
	"errors"
	"log/slog"

	"github.com/picklr-io/reaper/internal/engine"
)

// Sink receives the stats of a finished run.
type Sink interface {
	Publish(ctx context.Context, stats *engine.RunStats) error
}

// LogSink writes the summary as a single log line.
type LogSink struct {
	Log *slog.Logger
}

func (s LogSink) Publish(ctx context.Context, stats *engine.RunStats) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, "run summary", "deleted", stats.Deleted, "stats", stats)
	return nil
}

// Multi publishes to every sink and joins their errors.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, stats *engine.RunStats) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, stats); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
