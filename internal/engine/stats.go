package engine

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// RunStats summarizes one reaping run. Deleted counts only delete calls
// that completed without error.
type RunStats struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DryRun     bool      `json:"dry_run"`

	GroupsListed int `json:"groups_listed"`
	GroupsFailed int `json:"groups_failed"`

	Evaluated        int `json:"evaluated"`
	Expired          int `json:"expired"`
	DeferredOwned    int `json:"deferred_owned"`
	Unparsable       int `json:"unparsable"`
	MissingCreatedAt int `json:"missing_created_at"`
	Unresolved       int `json:"unresolved"`
	DeleteFailed     int `json:"delete_failed"`
	WouldDelete      int `json:"would_delete"`
	Deleted          int `json:"deleted"`

	DeletedIDs []string `json:"deleted_ids,omitempty"`
}

// Duration returns how long the run took.
func (s *RunStats) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// LogValue renders the counters as a log group.
func (s *RunStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("run_id", s.RunID),
		slog.Bool("dry_run", s.DryRun),
		slog.Int("groups_listed", s.GroupsListed),
		slog.Int("groups_failed", s.GroupsFailed),
		slog.Int("evaluated", s.Evaluated),
		slog.Int("expired", s.Expired),
		slog.Int("deferred_owned", s.DeferredOwned),
		slog.Int("unparsable", s.Unparsable),
		slog.Int("missing_created_at", s.MissingCreatedAt),
		slog.Int("unresolved", s.Unresolved),
		slog.Int("delete_failed", s.DeleteFailed),
		slog.Int("would_delete", s.WouldDelete),
		slog.Int("deleted", s.Deleted),
		slog.Duration("duration", s.Duration()),
	)
}

// tally guards RunStats while deletions run concurrently.
type tally struct {
	mu    sync.Mutex
	stats RunStats
}

func (t *tally) update(fn func(*RunStats)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.stats)
}

func (t *tally) finish(at time.Time) *RunStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.stats
	out.FinishedAt = at
	out.DeletedIDs = append([]string(nil), t.stats.DeletedIDs...)
	sort.Strings(out.DeletedIDs)
	return &out
}
