// Package cloud defines the read-only views of cloud resources the reaper
// works with and the Client contract a cloud backend has to satisfy.
package cloud

import (
	"context"
	"strings"
	"time"
)

// Client is the resource-management surface the reaper needs.
type Client interface {
	// ListResourceGroups returns every resource group in the subscription.
	ListResourceGroups(ctx context.Context) ([]ResourceGroup, error)

	// ListResources returns the resources of one group, with their
	// creation timestamps populated where the provider knows them.
	ListResources(ctx context.Context, group string) ([]Resource, error)

	// GetProvider returns the resource types registered by a namespace.
	GetProvider(ctx context.Context, namespace string) (*Provider, error)

	// DeleteByID starts deleting a resource and waits for the operation
	// to finish.
	DeleteByID(ctx context.Context, id, apiVersion string) error
}

// ResourceGroup is a named container of resources.
type ResourceGroup struct {
	Name     string
	Location string
}

// Resource is a single cloud resource.
type Resource struct {
	ID   string
	Name string
	// Type is "<namespace>/<type>", e.g. "Microsoft.Compute/disks".
	Type string
	Tags Tags
	// CreatedAt is nil when the provider does not report a creation time.
	CreatedAt *time.Time
	// ManagedBy is the ID of the owning resource, or empty.
	ManagedBy string
}

// Owned reports whether another resource manages this one's lifecycle.
func (r Resource) Owned() bool {
	return r.ManagedBy != ""
}

// Provider lists the resource types a namespace registers.
type Provider struct {
	Namespace     string
	ResourceTypes []ProviderResourceType
}

// ProviderResourceType is one registered type and its API versions,
// newest first.
type ProviderResourceType struct {
	ResourceType string
	APIVersions  []string
}

// Lookup returns the registered entry for subtype. Resource type names are
// case-insensitive.
func (p *Provider) Lookup(subtype string) (ProviderResourceType, bool) {
	for _, rt := range p.ResourceTypes {
		if strings.EqualFold(rt.ResourceType, subtype) {
			return rt, true
		}
	}
	return ProviderResourceType{}, false
}

// SplitType splits a resource type on its first slash. Nested types such as
// "Microsoft.Sql/servers/databases" keep the rest as the subtype.
func SplitType(resourceType string) (namespace, subtype string, ok bool) {
	namespace, subtype, ok = strings.Cut(resourceType, "/")
	if !ok || namespace == "" || subtype == "" {
		return "", "", false
	}
	return namespace, subtype, true
}
