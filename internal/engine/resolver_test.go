package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/picklr-io/reaper/internal/cloud"
	"github.com/picklr-io/reaper/providers/memory"
)

func TestResolver_Resolve(t *testing.T) {
	client := memory.New().AddProvider(networkProvider()).AddProvider(computeProvider())
	r := NewResolver(client, discardLogger())
	ctx := context.Background()

	tests := []struct {
		resourceType string
		version      string
		ok           bool
	}{
		{"Microsoft.Network/networkInterfaces", "2020-08-01", true},
		{"Microsoft.Compute/virtualMachines", "2020-09-01", true},
		{"Microsoft.Compute/VIRTUALMACHINES", "2020-09-01", true},
		{"Microsoft.Network/noApiVersion", "", false},
		{"Microsoft.Network/noProvider", "", false},
		{"Microsoft.Storage/storageAccounts", "", false},
		{"notatype", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.resourceType, func(t *testing.T) {
			version, ok := r.Resolve(ctx, tt.resourceType)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.version, version)
		})
	}
	assert.Equal(t, len(tests), r.Cached())
}

func TestResolver_FailureIsCached(t *testing.T) {
	client := memory.New().FailProvider("Microsoft.Network", errors.New("service unavailable"))
	r := NewResolver(client, discardLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, ok := r.Resolve(ctx, "Microsoft.Network/networkInterfaces")
		assert.False(t, ok)
	}
	assert.Equal(t, 1, client.ProviderCalls("Microsoft.Network"))
}

func TestResolver_Concurrent(t *testing.T) {
	client := memory.New().AddProvider(computeProvider())
	r := NewResolver(client, discardLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			version, ok := r.Resolve(ctx, "Microsoft.Compute/disks")
			assert.True(t, ok)
			assert.Equal(t, "2020-10-01", version)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, client.ProviderCalls("Microsoft.Compute"))
}

func TestResolver_NestedType(t *testing.T) {
	client := memory.New().AddProvider(cloud.Provider{
		Namespace: "Microsoft.Sql",
		ResourceTypes: []cloud.ProviderResourceType{
			{ResourceType: "servers", APIVersions: []string{"2021-11-01"}},
			{ResourceType: "servers/databases", APIVersions: []string{"2022-05-01"}},
		},
	})
	r := NewResolver(client, discardLogger())

	version, ok := r.Resolve(context.Background(), "Microsoft.Sql/servers/databases")
	assert.True(t, ok)
	assert.Equal(t, "2022-05-01", version)
}
