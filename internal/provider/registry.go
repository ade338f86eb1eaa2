package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/picklr-io/reaper/internal/cloud"
	"github.com/picklr-io/reaper/internal/config"
	"github.com/picklr-io/reaper/providers/azure"
	"github.com/picklr-io/reaper/providers/memory"
)

// Factory builds a cloud client from the configuration.
type Factory func(ctx context.Context, cfg *config.Config) (cloud.Client, error)

// Registry maps backend names to the factories that build them and keeps
// the clients it has built.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	clients   map[string]cloud.Client
}

// NewRegistry returns a registry with the built-in backends.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		clients:   make(map[string]cloud.Client),
	}
	r.Register(config.BackendAzure, func(ctx context.Context, cfg *config.Config) (cloud.Client, error) {
		return azure.New(cfg.SubscriptionID, azure.Options{})
	})
	r.Register(config.BackendMemory, func(ctx context.Context, cfg *config.Config) (cloud.Client, error) {
		return memory.LoadFixture(cfg.FixturePath)
	})
	return r
}

// Register adds or replaces a backend.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
	delete(r.clients, name)
}

// Load builds the named backend once and returns it.
func (r *Registry) Load(ctx context.Context, name string, cfg *config.Config) (cloud.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, exists := r.clients[name]; exists {
		return c, nil
	}

	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q (available: %s)", name, strings.Join(r.names(), ", "))
	}
	c, err := f(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load backend %s: %w", name, err)
	}
	r.clients[name] = c
	return c, nil
}

// Names lists the registered backends.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names()
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
