package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picklr-io/reaper/internal/cloud"
	"github.com/picklr-io/reaper/internal/config"
	"github.com/picklr-io/reaper/internal/engine"
	"github.com/picklr-io/reaper/internal/provider"
	"github.com/picklr-io/reaper/providers/memory"
)

const inventory = `
groups:
  - name: rg1
    resources:
      - id: /subscriptions/sub/resourceGroups/rg1/providers/Microsoft.Compute/virtualMachines/vm1
        name: vm1
        type: Microsoft.Compute/virtualMachines
        tags: {lifetime: 1h}
        created_at: 2023-09-14T11:00:00Z
      - id: /subscriptions/sub/resourceGroups/rg1/providers/Microsoft.Network/networkInterfaces/nic1
        name: nic1
        type: Microsoft.Network/networkInterfaces
        tags: {lifetime: 30m}
        created_at: 2023-09-14T11:00:00Z
        managed_by: /subscriptions/sub/resourceGroups/rg1/providers/Microsoft.Compute/virtualMachines/vm1
      - id: /subscriptions/sub/resourceGroups/rg1/providers/Microsoft.Compute/disks/keep
        name: keep
        type: Microsoft.Compute/disks
        tags: {lifetime: 100y}
        created_at: 2023-09-14T11:00:00Z
providers:
  - namespace: Microsoft.Compute
    resource_types:
      - resource_type: virtualMachines
        api_versions: ["2020-09-01"]
      - resource_type: disks
        api_versions: ["2020-06-30"]
  - namespace: Microsoft.Network
    resource_types:
      - resource_type: networkInterfaces
        api_versions: ["2020-08-01"]
`

var envVars = []string{
	"AZURE_SUBSCRIPTION_ID", "REAPER_CONFIG", "REAPER_BACKEND", "REAPER_FIXTURE",
	"REAPER_TAG_KEY", "REAPER_DRY_RUN", "REAPER_PARALLELISM", "REAPER_DELETE_TIMEOUT",
	"REAPER_UNPARSABLE_POLICY", "REAPER_SCHEDULE_INTERVAL", "REAPER_RUN_ON_STARTUP",
	"REAPER_LOG_LEVEL", "REAPER_LOG_FORMAT",
	"REAPER_REPORT_BUCKET", "REAPER_REPORT_PREFIX", "REAPER_REPORT_REGION",
}

func setup(t *testing.T) string {
	t.Helper()
	for _, v := range envVars {
		t.Setenv(v, "")
	}
	t.Setenv("AZURE_SUBSCRIPTION_ID", "sub")

	path := filepath.Join(t.TempDir(), "inventory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(inventory), 0644))
	return path
}

func execute(ctx context.Context, args ...string) (string, string, error) {
	configPath, logLevel, logFormat, backend, fixture, dryRun = "", "", "", "", "", false
	lifetimeCreated, configJSON = "", false

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

// withBackend makes the registry hand out client for the memory backend.
func withBackend(t *testing.T, client cloud.Client) {
	t.Helper()
	orig := newRegistry
	newRegistry = func() *provider.Registry {
		r := provider.NewRegistry()
		r.Register(config.BackendMemory, func(context.Context, *config.Config) (cloud.Client, error) {
			return client, nil
		})
		return r
	}
	t.Cleanup(func() { newRegistry = orig })
}

func TestRun_DeletesExpired(t *testing.T) {
	path := setup(t)
	client, err := memory.LoadFixture(path)
	require.NoError(t, err)
	withBackend(t, client)

	out, logs, err := execute(context.Background(), "run", "--backend", "memory", "--fixture", path)
	require.NoError(t, err)

	vm := "/subscriptions/sub/resourceGroups/rg1/providers/Microsoft.Compute/virtualMachines/vm1"
	assert.Equal(t, []memory.Deletion{{ID: vm, APIVersion: "2020-09-01"}}, client.Deleted())
	assert.Contains(t, out, "resources:         3 evaluated, 2 expired")
	assert.Contains(t, out, "skipped:           1 owned")
	assert.Contains(t, out, "deleted:           1")
	assert.Contains(t, out, "- "+vm)
	assert.Contains(t, logs, "resource is managed by another resource")
	assert.Contains(t, logs, `msg="run summary"`)

	// The owner is gone, so the interface goes on the next run.
	_, _, err = execute(context.Background(), "run", "--backend", "memory", "--fixture", path)
	require.NoError(t, err)
	assert.Len(t, client.Deleted(), 2)
}

func TestRun_FromFixtureFile(t *testing.T) {
	path := setup(t)
	t.Setenv("REAPER_BACKEND", "memory")
	t.Setenv("REAPER_FIXTURE", path)

	out, _, err := execute(context.Background(), "run")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted:           1")
}

func TestRun_DryRun(t *testing.T) {
	path := setup(t)
	client, err := memory.LoadFixture(path)
	require.NoError(t, err)
	withBackend(t, client)

	out, logs, err := execute(context.Background(), "run", "--backend", "memory", "--fixture", path, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "(dry run)")
	assert.Contains(t, out, "would delete:      1")
	assert.Contains(t, logs, "dry run, resource would be deleted")
	assert.Empty(t, client.DeleteCalls())
}

func TestRun_MissingSubscription(t *testing.T) {
	path := setup(t)
	t.Setenv("AZURE_SUBSCRIPTION_ID", "")

	client := memory.New()
	withBackend(t, client)

	_, _, err := execute(context.Background(), "run", "--backend", "memory", "--fixture", path)
	assert.ErrorIs(t, err, config.ErrMissingSubscription)
	assert.Zero(t, client.ProviderCalls("Microsoft.Compute"))
}

func TestRun_GroupListingFails(t *testing.T) {
	path := setup(t)
	withBackend(t, memory.New().FailGroupListing(errors.New("forbidden")))

	out, _, err := execute(context.Background(), "run", "--backend", "memory", "--fixture", path)
	assert.ErrorIs(t, err, engine.ErrListResourceGroups)
	assert.Empty(t, out)
}

func TestServe_StopsOnCancel(t *testing.T) {
	path := setup(t)
	client, err := memory.LoadFixture(path)
	require.NoError(t, err)
	withBackend(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, logs, err := execute(ctx, "serve", "--backend", "memory", "--fixture", path)
	require.NoError(t, err)
	assert.Contains(t, logs, "reaper scheduler started")
	assert.Contains(t, logs, "running on startup")
	assert.Contains(t, logs, "run interrupted")
	assert.Contains(t, logs, "reaper scheduler stopped")
	assert.Empty(t, client.DeleteCalls())
}

func TestLifetime(t *testing.T) {
	setup(t)

	out, _, err := execute(context.Background(), "lifetime", "1y 2mo 3w")
	require.NoError(t, err)
	assert.Contains(t, out, "stanzas:  1y 2mo\n")
	assert.Contains(t, out, "ignored:  3w\n")
	assert.Contains(t, out, "minutes:  613627.2\n")
	assert.Contains(t, out, "duration: 10227h7m12s\n")
	assert.NotContains(t, out, "expires:")

	out, _, err = execute(context.Background(), "lifetime", "30m", "--created", "2023-09-14T11:00:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, "expires:  2023-09-14T11:30:00Z\n")

	out, _, err = execute(context.Background(), "lifetime", "forever")
	require.NoError(t, err)
	assert.Contains(t, out, "(none recognized)")

	_, _, err = execute(context.Background(), "lifetime", "30m", "--created", "yesterday")
	assert.ErrorContains(t, err, "invalid --created time")
}

func TestConfig(t *testing.T) {
	setup(t)

	out, _, err := execute(context.Background(), "config", "--log-level", "debug")
	require.NoError(t, err)
	assert.Regexp(t, `subscription_id\s+sub\s+environment`, out)
	assert.Regexp(t, `log_level\s+debug\s+flag`, out)
	assert.Regexp(t, `tag_key\s+lifetime\s+default`, out)

	out, _, err = execute(context.Background(), "config", "--json")
	require.NoError(t, err)
	var attrs []config.Attribute
	require.NoError(t, json.Unmarshal([]byte(out), &attrs))
	assert.NotEmpty(t, attrs)
}

func TestVersion(t *testing.T) {
	out, _, err := execute(context.Background(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "reaper version dev")
}

func TestBackendFlagListsRegisteredBackends(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("backend")
	require.NotNil(t, flag)
	assert.Equal(t, "Cloud backend: azure, memory", flag.Usage)
}
