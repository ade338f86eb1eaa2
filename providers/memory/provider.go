// Package memory is a cloud.Client that lives entirely in process. It backs
// the engine tests and offline rehearsals against a fixture inventory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/picklr-io/reaper/internal/cloud"
)

// Deletion records a delete call that succeeded.
type Deletion struct {
	ID         string
	APIVersion string
}

// Provider is an in-process cloud.Client. It holds resource groups,
// resources and provider registrations in memory and records every call.
// Deleting a resource clears ManagedBy on the resources it owned, the way
// a parent's cascade releases its children.
type Provider struct {
	mu sync.Mutex

	groupOrder []string
	groups     map[string][]cloud.Resource
	providers  map[string]cloud.Provider

	groupsErr    error
	listErrs     map[string]error
	deleteErrs   map[string]error
	providerErrs map[string]error

	deleted       []Deletion
	deleteCalls   []Deletion
	providerCalls map[string]int
}

var _ cloud.Client = (*Provider)(nil)

func New() *Provider {
	return &Provider{
		groups:        make(map[string][]cloud.Resource),
		providers:     make(map[string]cloud.Provider),
		listErrs:      make(map[string]error),
		deleteErrs:    make(map[string]error),
		providerErrs:  make(map[string]error),
		providerCalls: make(map[string]int),
	}
}

// AddGroup registers a resource group holding resources. Adding to an
// existing group appends.
func (p *Provider) AddGroup(name string, resources ...cloud.Resource) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.groups[name]; !ok {
		p.groupOrder = append(p.groupOrder, name)
	}
	p.groups[name] = append(p.groups[name], resources...)
	return p
}

// AddProvider registers a namespace's resource types.
func (p *Provider) AddProvider(provider cloud.Provider) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.providers[provider.Namespace] = provider
	return p
}

// FailGroupListing makes ListResourceGroups return err.
func (p *Provider) FailGroupListing(err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.groupsErr = err
	return p
}

// FailListing makes ListResources for group return err.
func (p *Provider) FailListing(group string, err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listErrs[group] = err
	return p
}

// FailDelete makes DeleteByID for id return err.
func (p *Provider) FailDelete(id string, err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleteErrs[id] = err
	return p
}

// FailProvider makes GetProvider for namespace return err.
func (p *Provider) FailProvider(namespace string, err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.providerErrs[namespace] = err
	return p
}

func (p *Provider) ListResourceGroups(ctx context.Context) ([]cloud.ResourceGroup, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.groupsErr != nil {
		return nil, p.groupsErr
	}
	out := make([]cloud.ResourceGroup, 0, len(p.groupOrder))
	for _, name := range p.groupOrder {
		out = append(out, cloud.ResourceGroup{Name: name})
	}
	return out, nil
}

func (p *Provider) ListResources(ctx context.Context, group string) ([]cloud.Resource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.listErrs[group]; err != nil {
		return nil, err
	}
	resources, ok := p.groups[group]
	if !ok {
		return nil, fmt.Errorf("resource group %q not found", group)
	}
	return append([]cloud.Resource(nil), resources...), nil
}

func (p *Provider) GetProvider(ctx context.Context, namespace string) (*cloud.Provider, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.providerCalls[namespace]++
	if err := p.providerErrs[namespace]; err != nil {
		return nil, err
	}
	provider, ok := p.providers[namespace]
	if !ok {
		return nil, fmt.Errorf("provider namespace %q not found", namespace)
	}
	return &provider, nil
}

func (p *Provider) DeleteByID(ctx context.Context, id, apiVersion string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleteCalls = append(p.deleteCalls, Deletion{ID: id, APIVersion: apiVersion})
	if err := p.deleteErrs[id]; err != nil {
		return err
	}

	found := false
	for group, resources := range p.groups {
		kept := resources[:0]
		for _, r := range resources {
			if r.ID == id {
				found = true
				continue
			}
			if r.ManagedBy == id {
				r.ManagedBy = ""
			}
			kept = append(kept, r)
		}
		p.groups[group] = kept
	}
	if !found {
		return fmt.Errorf("resource %q not found", id)
	}

	p.deleted = append(p.deleted, Deletion{ID: id, APIVersion: apiVersion})
	return nil
}

// Deleted returns the successful deletions in call order.
func (p *Provider) Deleted() []Deletion {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Deletion(nil), p.deleted...)
}

// DeletedIDs returns the IDs of deleted resources, sorted.
func (p *Provider) DeletedIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.deleted))
	for _, d := range p.deleted {
		ids = append(ids, d.ID)
	}
	sort.Strings(ids)
	return ids
}

// DeleteCalls returns every delete attempt, failed ones included.
func (p *Provider) DeleteCalls() []Deletion {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Deletion(nil), p.deleteCalls...)
}

// ProviderCalls returns how many times GetProvider was asked for namespace.
func (p *Provider) ProviderCalls(namespace string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.providerCalls[namespace]
}
