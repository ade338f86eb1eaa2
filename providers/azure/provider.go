// Package azure implements cloud.Client on top of Azure Resource Manager.
package azure

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"

	"github.com/picklr-io/reaper/internal/cloud"
)

// DefaultPollFrequency is how often a pending delete is polled.
const DefaultPollFrequency = 10 * time.Second

// createdTimeExpand asks ARM to include createdTime in resource listings.
const createdTimeExpand = "createdTime"

type Provider struct {
	groups    *armresources.ResourceGroupsClient
	resources *armresources.Client
	providers *armresources.ProvidersClient

	pollFrequency time.Duration
}

var _ cloud.Client = (*Provider)(nil)

// Options configures New.
type Options struct {
	// Credential defaults to azidentity.DefaultAzureCredential.
	Credential    azcore.TokenCredential
	ClientOptions *arm.ClientOptions
	PollFrequency time.Duration
}

// New creates a Provider for subscriptionID.
func New(subscriptionID string, opts Options) (*Provider, error) {
	if subscriptionID == "" {
		return nil, fmt.Errorf("azure provider requires a subscription ID")
	}

	cred := opts.Credential
	if cred == nil {
		c, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire Azure credential: %w", err)
		}
		cred = c
	}

	factory, err := armresources.NewClientFactory(subscriptionID, cred, opts.ClientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource management client: %w", err)
	}

	poll := opts.PollFrequency
	if poll <= 0 {
		poll = DefaultPollFrequency
	}

	return &Provider{
		groups:        factory.NewResourceGroupsClient(),
		resources:     factory.NewClient(),
		providers:     factory.NewProvidersClient(),
		pollFrequency: poll,
	}, nil
}

func (p *Provider) ListResourceGroups(ctx context.Context) ([]cloud.ResourceGroup, error) {
	var out []cloud.ResourceGroup
	pager := p.groups.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list resource groups: %w", err)
		}
		for _, g := range page.Value {
			if g == nil {
				continue
			}
			out = append(out, cloud.ResourceGroup{
				Name:     deref(g.Name),
				Location: deref(g.Location),
			})
		}
	}
	return out, nil
}

func (p *Provider) ListResources(ctx context.Context, group string) ([]cloud.Resource, error) {
	var out []cloud.Resource
	pager := p.resources.NewListByResourceGroupPager(group, &armresources.ClientListByResourceGroupOptions{
		Expand: to.Ptr(createdTimeExpand),
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list resources in %s: %w", group, err)
		}
		for _, r := range page.Value {
			if r == nil {
				continue
			}
			out = append(out, toResource(r))
		}
	}
	return out, nil
}

func (p *Provider) GetProvider(ctx context.Context, namespace string) (*cloud.Provider, error) {
	resp, err := p.providers.Get(ctx, namespace, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get provider %s: %w", namespace, err)
	}
	provider := toProvider(namespace, resp.Provider)
	return &provider, nil
}

func (p *Provider) DeleteByID(ctx context.Context, id, apiVersion string) error {
	poller, err := p.resources.BeginDeleteByID(ctx, id, apiVersion, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	if _, err := poller.PollUntilDone(ctx, &runtime.PollUntilDoneOptions{Frequency: p.pollFrequency}); err != nil {
		return fmt.Errorf("delete did not complete: %w", err)
	}
	return nil
}

func toResource(r *armresources.GenericResourceExpanded) cloud.Resource {
	tags := cloud.NoTags()
	if r.Tags != nil {
		m := make(map[string]string, len(r.Tags))
		for k, v := range r.Tags {
			m[k] = deref(v)
		}
		tags = cloud.NewTags(m)
	}

	var created *time.Time
	if r.CreatedTime != nil {
		t := *r.CreatedTime
		created = &t
	}

	return cloud.Resource{
		ID:        deref(r.ID),
		Name:      deref(r.Name),
		Type:      deref(r.Type),
		Tags:      tags,
		CreatedAt: created,
		ManagedBy: deref(r.ManagedBy),
	}
}

func toProvider(namespace string, p armresources.Provider) cloud.Provider {
	out := cloud.Provider{Namespace: namespace}
	if p.Namespace != nil {
		out.Namespace = *p.Namespace
	}
	for _, rt := range p.ResourceTypes {
		if rt == nil {
			continue
		}
		entry := cloud.ProviderResourceType{ResourceType: deref(rt.ResourceType)}
		for _, v := range rt.APIVersions {
			if v != nil && *v != "" {
				entry.APIVersions = append(entry.APIVersions, *v)
			}
		}
		out.ResourceTypes = append(out.ResourceTypes, entry)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
