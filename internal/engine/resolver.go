package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/picklr-io/reaper/internal/cloud"
)

// Resolver finds the newest API version for a resource type. Results,
// failures included, are memoized for the lifetime of the Resolver, and
// each type is looked up at most once even under concurrent callers. A
// Resolver is meant to live for a single run.
type Resolver struct {
	client cloud.Client
	log    *slog.Logger

	mu      sync.Mutex
	entries map[string]*versionEntry
}

type versionEntry struct {
	once    sync.Once
	version string
	ok      bool
}

func NewResolver(client cloud.Client, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		client:  client,
		log:     log,
		entries: make(map[string]*versionEntry),
	}
}

// Resolve returns the API version to use for resourceType, or false if
// none could be found. A failed lookup is not retried by this Resolver.
func (r *Resolver) Resolve(ctx context.Context, resourceType string) (string, bool) {
	r.mu.Lock()
	entry, ok := r.entries[resourceType]
	if !ok {
		entry = &versionEntry{}
		r.entries[resourceType] = entry
	}
	r.mu.Unlock()

	entry.once.Do(func() {
		entry.version, entry.ok = r.lookup(ctx, resourceType)
	})
	return entry.version, entry.ok
}

// Cached reports how many resource types have an entry, resolved or not.
func (r *Resolver) Cached() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Resolver) lookup(ctx context.Context, resourceType string) (string, bool) {
	namespace, subtype, ok := cloud.SplitType(resourceType)
	if !ok {
		r.log.Error("malformed resource type", "type", resourceType)
		return "", false
	}

	provider, err := r.client.GetProvider(ctx, namespace)
	if err != nil {
		r.log.Error("failed to get provider", "namespace", namespace, "error", err)
		return "", false
	}

	rt, found := provider.Lookup(subtype)
	if !found || len(rt.APIVersions) == 0 {
		return "", false
	}
	return rt.APIVersions[0], true
}
