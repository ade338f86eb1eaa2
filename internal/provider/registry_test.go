package provider

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picklr-io/reaper/internal/cloud"
	"github.com/picklr-io/reaper/internal/config"
	"github.com/picklr-io/reaper/providers/memory"
)

func TestRegistry_Names(t *testing.T) {
	assert.Equal(t, []string{"azure", "memory"}, NewRegistry().Names())
}

func TestRegistry_LoadMemory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte("groups:\n  - name: rg1\n"), 0644))

	cfg := config.Default()
	cfg.FixturePath = path

	reg := NewRegistry()
	c, err := reg.Load(context.Background(), "memory", cfg)
	require.NoError(t, err)
	groups, err := c.ListResourceGroups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []cloud.ResourceGroup{{Name: "rg1"}}, groups)

	cfg.FixturePath = filepath.Join(t.TempDir(), "missing.yaml")
	again, err := reg.Load(context.Background(), "memory", cfg)
	require.NoError(t, err)
	assert.Same(t, c, again)
}

func TestRegistry_LoadErrors(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Load(context.Background(), "gcp", config.Default())
	assert.ErrorContains(t, err, `unknown backend "gcp" (available: azure, memory)`)

	boom := errors.New("boom")
	reg.Register("broken", func(context.Context, *config.Config) (cloud.Client, error) { return nil, boom })
	_, err = reg.Load(context.Background(), "broken", config.Default())
	assert.ErrorIs(t, err, boom)
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	reg := NewRegistry()
	first := memory.New()
	second := memory.New()

	reg.Register("fake", func(context.Context, *config.Config) (cloud.Client, error) { return first, nil })
	c, err := reg.Load(context.Background(), "fake", config.Default())
	require.NoError(t, err)
	assert.Same(t, first, c)

	reg.Register("fake", func(context.Context, *config.Config) (cloud.Client, error) { return second, nil })
	c, err = reg.Load(context.Background(), "fake", config.Default())
	require.NoError(t, err)
	assert.Same(t, second, c)
}
