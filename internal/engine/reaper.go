package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/picklr-io/reaper/internal/cloud"
	"github.com/picklr-io/reaper/internal/lifetime"
)

// DefaultTagKey is the tag holding a resource's lifetime.
const DefaultTagKey = "lifetime"

// ErrListResourceGroups is returned when the subscription's resource groups
// cannot be listed. Nothing else aborts a run.
var ErrListResourceGroups = errors.New("failed to list resource groups")

// UnparsablePolicy decides what happens to a resource whose lifetime tag
// holds no recognized stanza.
type UnparsablePolicy string

const (
	// UnparsableSkip leaves the resource alone and logs a warning.
	UnparsableSkip UnparsablePolicy = "skip"
	// UnparsableExpire treats the tag as a zero lifetime, making the
	// resource due as soon as it exists.
	UnparsableExpire UnparsablePolicy = "expire"
)

// ParseUnparsablePolicy validates a policy name. Empty means skip.
func ParseUnparsablePolicy(s string) (UnparsablePolicy, error) {
	switch UnparsablePolicy(s) {
	case "", UnparsableSkip:
		return UnparsableSkip, nil
	case UnparsableExpire:
		return UnparsableExpire, nil
	default:
		return "", fmt.Errorf("unknown unparsable lifetime policy %q (want %q or %q)", s, UnparsableSkip, UnparsableExpire)
	}
}

// Options tunes a Reaper. The zero value is usable.
type Options struct {
	// TagKey is the tag holding the lifetime. Defaults to DefaultTagKey.
	TagKey string
	// DryRun evaluates and resolves but never deletes.
	DryRun bool
	// Parallelism bounds concurrent deletions. Values below 1 mean 1.
	Parallelism int
	// DeleteTimeout bounds each delete. Defaults to DefaultDeleteTimeout.
	DeleteTimeout time.Duration
	// Unparsable defaults to UnparsableSkip.
	Unparsable UnparsablePolicy
	// ListRetry governs retries of the resource group listing.
	ListRetry *RetryPolicy
	// Now defaults to time.Now.
	Now func() time.Time
}

// Reaper deletes resources whose lifetime tag says they have expired.
type Reaper struct {
	client cloud.Client
	opts   Options
	log    *slog.Logger
}

func NewReaper(client cloud.Client, opts Options, log *slog.Logger) *Reaper {
	if opts.TagKey == "" {
		opts.TagKey = DefaultTagKey
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	if opts.DeleteTimeout <= 0 {
		opts.DeleteTimeout = DefaultDeleteTimeout
	}
	if opts.Unparsable == "" {
		opts.Unparsable = UnparsableSkip
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reaper{client: client, opts: opts, log: log}
}

// verdict is the outcome of evaluating one resource.
type verdict int

const (
	verdictNoTags verdict = iota
	verdictNoLifetime
	verdictNoCreatedAt
	verdictUnparsable
	verdictNotDue
	verdictOwned
	verdictDue
)

// Run performs one pass over every resource group. Failures listing a
// single group, resolving an API version or deleting a resource are logged
// and counted; only a failure to list resource groups is returned.
func (r *Reaper) Run(ctx context.Context) (*RunStats, error) {
	t := &tally{stats: RunStats{
		RunID:     uuid.NewString(),
		StartedAt: r.opts.Now(),
		DryRun:    r.opts.DryRun,
	}}
	log := r.log.With("run_id", t.stats.RunID)
	resolver := NewResolver(r.client, log)

	var groups []cloud.ResourceGroup
	err := RetryWithBackoff(ctx, r.opts.ListRetry, func() error {
		var err error
		groups, err = r.client.ListResourceGroups(ctx)
		return err
	}, IsTransientError)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListResourceGroups, err)
	}

	var g errgroup.Group
	g.SetLimit(r.opts.Parallelism)

	for _, group := range groups {
		if ctx.Err() != nil {
			break
		}

		resources, err := r.client.ListResources(ctx, group.Name)
		if err != nil {
			log.Error("failed to list resources", "resource_group", group.Name, "error", err)
			t.update(func(s *RunStats) { s.GroupsFailed++ })
			continue
		}
		t.update(func(s *RunStats) { s.GroupsListed++ })

		for _, res := range resources {
			if !r.due(log, t, res) {
				continue
			}
			g.Go(func() error {
				r.reap(ctx, log, resolver, t, res)
				return nil
			})
		}
	}
	_ = g.Wait()

	stats := t.finish(r.opts.Now())
	log.Info("reaping run finished", "deleted", stats.Deleted, "stats", stats)

	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("run interrupted: %w", err)
	}
	return stats, nil
}

// due evaluates res, records the verdict and reports whether it should be
// deleted.
func (r *Reaper) due(log *slog.Logger, t *tally, res cloud.Resource) bool {
	v, expiry := r.evaluate(res)

	t.update(func(s *RunStats) {
		s.Evaluated++
		switch v {
		case verdictNoCreatedAt:
			s.MissingCreatedAt++
		case verdictUnparsable:
			s.Unparsable++
		case verdictOwned:
			s.Expired++
			s.DeferredOwned++
		case verdictDue:
			s.Expired++
		}
	})

	switch v {
	case verdictNoCreatedAt:
		log.Warn("resource has no creation time, skipping", "resource", res.Name, "id", res.ID)
	case verdictUnparsable:
		tag, _ := res.Tags.Lookup(r.opts.TagKey)
		log.Warn("lifetime tag has no recognized stanza, skipping", "resource", res.Name, "id", res.ID, "tag", tag)
	case verdictOwned:
		log.Info("resource is managed by another resource, deferring to a later run",
			"resource", res.Name, "managed_by", res.ManagedBy, "expiry", expiry)
	case verdictDue:
		log.Info("resource is past its lifetime", "resource", res.Name, "expiry", expiry)
	}
	return v == verdictDue
}

func (r *Reaper) evaluate(res cloud.Resource) (verdict, time.Time) {
	if !res.Tags.Present() {
		return verdictNoTags, time.Time{}
	}
	tag, ok := res.Tags.Lookup(r.opts.TagKey)
	if !ok {
		return verdictNoLifetime, time.Time{}
	}
	if res.CreatedAt == nil {
		return verdictNoCreatedAt, time.Time{}
	}

	spec := lifetime.Parse(tag)
	if spec.Empty() && r.opts.Unparsable == UnparsableSkip {
		return verdictUnparsable, time.Time{}
	}

	expiry := spec.Expiry(*res.CreatedAt)
	if r.opts.Now().Before(expiry) {
		return verdictNotDue, expiry
	}
	if res.Owned() {
		return verdictOwned, expiry
	}
	return verdictDue, expiry
}

func (r *Reaper) reap(ctx context.Context, log *slog.Logger, resolver *Resolver, t *tally, res cloud.Resource) {
	version, ok := resolver.Resolve(ctx, res.Type)
	if !ok {
		log.Warn("could not find API version for resource type, not deleting",
			"id", res.ID, "type", res.Type)
		t.update(func(s *RunStats) { s.Unresolved++ })
		return
	}

	if r.opts.DryRun {
		log.Info("dry run, resource would be deleted", "resource", res.Name, "id", res.ID, "api_version", version)
		t.update(func(s *RunStats) { s.WouldDelete++ })
		return
	}

	dctx, cancel := WithTimeout(ctx, r.opts.DeleteTimeout)
	defer cancel()

	start := r.opts.Now()
	if err := r.client.DeleteByID(dctx, res.ID, version); err != nil {
		log.Error("failed to delete resource", "id", res.ID, "error", err)
		t.update(func(s *RunStats) { s.DeleteFailed++ })
		return
	}

	log.Info("resource deleted", "resource", res.Name, "id", res.ID, "took", r.opts.Now().Sub(start))
	t.update(func(s *RunStats) {
		s.Deleted++
		s.DeletedIDs = append(s.DeletedIDs, res.ID)
	})
}
