package memory

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/picklr-io/reaper/internal/cloud"
)

// Fixture is the YAML inventory a Provider can be seeded from:
//
//	groups:
//	  - name: rg1
//	    resources:
//	      - id: /subscriptions/.../nic1
//	        type: Microsoft.Network/networkInterfaces
//	        tags: {lifetime: 30m}
//	        created_at: 2023-09-14T11:00:00Z
//	providers:
//	  - namespace: Microsoft.Network
//	    resource_types:
//	      - resource_type: networkInterfaces
//	        api_versions: ["2020-08-01"]
type Fixture struct {
	Groups    []FixtureGroup    `yaml:"groups"`
	Providers []FixtureProvider `yaml:"providers"`
}

type FixtureGroup struct {
	Name      string            `yaml:"name"`
	Resources []FixtureResource `yaml:"resources"`
}

type FixtureResource struct {
	ID        string            `yaml:"id"`
	Name      string            `yaml:"name"`
	Type      string            `yaml:"type"`
	Tags      map[string]string `yaml:"tags"`
	CreatedAt *time.Time        `yaml:"created_at"`
	ManagedBy string            `yaml:"managed_by"`
}

type FixtureProvider struct {
	Namespace     string `yaml:"namespace"`
	ResourceTypes []struct {
		ResourceType string   `yaml:"resource_type"`
		APIVersions  []string `yaml:"api_versions"`
	} `yaml:"resource_types"`
}

// LoadFixture reads a YAML fixture file into a new Provider.
func LoadFixture(path string) (*Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture %s: %w", path, err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes a YAML fixture into a new Provider.
func ParseFixture(data []byte) (*Provider, error) {
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}

	p := New()
	for _, g := range fx.Groups {
		if g.Name == "" {
			return nil, fmt.Errorf("fixture group without a name")
		}
		resources := make([]cloud.Resource, 0, len(g.Resources))
		for _, r := range g.Resources {
			if r.ID == "" {
				return nil, fmt.Errorf("fixture resource in group %q without an id", g.Name)
			}
			name := r.Name
			if name == "" {
				name = r.ID
			}
			resources = append(resources, cloud.Resource{
				ID:        r.ID,
				Name:      name,
				Type:      r.Type,
				Tags:      cloud.NewTags(r.Tags),
				CreatedAt: r.CreatedAt,
				ManagedBy: r.ManagedBy,
			})
		}
		p.AddGroup(g.Name, resources...)
	}

	for _, fp := range fx.Providers {
		provider := cloud.Provider{Namespace: fp.Namespace}
		for _, rt := range fp.ResourceTypes {
			provider.ResourceTypes = append(provider.ResourceTypes, cloud.ProviderResourceType{
				ResourceType: rt.ResourceType,
				APIVersions:  rt.APIVersions,
			})
		}
		p.AddProvider(provider)
	}

	return p, nil
}
