// Package config loads reaper settings from defaults, an optional config
// file and the environment, in increasing order of precedence.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/picklr-io/reaper/internal/engine"
)

// ErrMissingSubscription is returned by Validate when no subscription is
// configured.
var ErrMissingSubscription = errors.New("AZURE_SUBSCRIPTION_ID is not set")

const (
	BackendAzure  = "azure"
	BackendMemory = "memory"
)

// Config holds all reaper settings.
type Config struct {
	SubscriptionID string
	Backend        string
	FixturePath    string

	TagKey           string
	DryRun           bool
	Parallelism      int
	DeleteTimeout    time.Duration
	UnparsablePolicy string

	ScheduleInterval time.Duration
	RunOnStartup     bool

	LogLevel  string
	LogFormat string

	ReportBucket string
	ReportPrefix string
	ReportRegion string

	// sources tracks where each value came from
	sources  map[string]string
	filePath string
}

// Attribute is a configuration value and where it came from.
type Attribute struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

// fileConfig mirrors the config file. Pointers tell "unset" from zero.
type fileConfig struct {
	SubscriptionID   *string `yaml:"subscription_id" pkl:"subscriptionId"`
	Backend          *string `yaml:"backend" pkl:"backend"`
	FixturePath      *string `yaml:"fixture" pkl:"fixture"`
	TagKey           *string `yaml:"tag_key" pkl:"tagKey"`
	DryRun           *bool   `yaml:"dry_run" pkl:"dryRun"`
	Parallelism      *int    `yaml:"parallelism" pkl:"parallelism"`
	DeleteTimeout    *string `yaml:"delete_timeout" pkl:"deleteTimeout"`
	UnparsablePolicy *string `yaml:"unparsable_policy" pkl:"unparsablePolicy"`
	ScheduleInterval *string `yaml:"schedule_interval" pkl:"scheduleInterval"`
	RunOnStartup     *bool   `yaml:"run_on_startup" pkl:"runOnStartup"`
	LogLevel         *string `yaml:"log_level" pkl:"logLevel"`
	LogFormat        *string `yaml:"log_format" pkl:"logFormat"`
	ReportBucket     *string `yaml:"report_bucket" pkl:"reportBucket"`
	ReportPrefix     *string `yaml:"report_prefix" pkl:"reportPrefix"`
	ReportRegion     *string `yaml:"report_region" pkl:"reportRegion"`
}

// Default returns the built-in settings.
func Default() *Config {
	c := &Config{
		Backend:          BackendAzure,
		TagKey:           engine.DefaultTagKey,
		Parallelism:      1,
		DeleteTimeout:    engine.DefaultDeleteTimeout,
		UnparsablePolicy: string(engine.UnparsableSkip),
		ScheduleInterval: time.Hour,
		RunOnStartup:     true,
		LogLevel:         "info",
		LogFormat:        "text",
		ReportPrefix:     "reaper/runs",
		ReportRegion:     "us-east-1",
		sources:          make(map[string]string),
	}
	for _, name := range attributeNames() {
		c.sources[name] = "default"
	}
	return c
}

// Load builds the configuration. path names an optional .pkl, .yaml or
// .yml file; when empty, REAPER_CONFIG is consulted.
func Load(ctx context.Context, path string) (*Config, error) {
	c := Default()

	if path == "" {
		path = os.Getenv("REAPER_CONFIG")
	}
	if path != "" {
		fc, err := readFile(ctx, path)
		if err != nil {
			return nil, err
		}
		c.filePath = path
		if err := c.applyFileConfig(fc); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", path, err)
		}
	}

	if err := c.applyEnvConfig(); err != nil {
		return nil, err
	}
	return c, nil
}

func readFile(ctx context.Context, path string) (*fileConfig, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pkl":
		return readPkl(ctx, path)
	case ".yaml", ".yml":
		return readYAML(path)
	default:
		return nil, fmt.Errorf("unsupported config file type %q (want .pkl, .yaml or .yml)", filepath.Ext(path))
	}
}

func attributeNames() []string {
	return []string{
		"subscription_id", "backend", "fixture",
		"tag_key", "dry_run", "parallelism", "delete_timeout", "unparsable_policy",
		"schedule_interval", "run_on_startup",
		"log_level", "log_format",
		"report_bucket", "report_prefix", "report_region",
	}
}

func (c *Config) applyFileConfig(f *fileConfig) error {
	setString := func(name string, dst *string, v *string) {
		if v != nil {
			*dst = *v
			c.sources[name] = "file"
		}
	}
	setDuration := func(name string, dst *time.Duration, v *string) error {
		if v == nil {
			return nil
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = d
		c.sources[name] = "file"
		return nil
	}

	setString("subscription_id", &c.SubscriptionID, f.SubscriptionID)
	setString("backend", &c.Backend, f.Backend)
	setString("fixture", &c.FixturePath, f.FixturePath)
	setString("tag_key", &c.TagKey, f.TagKey)
	setString("unparsable_policy", &c.UnparsablePolicy, f.UnparsablePolicy)
	setString("log_level", &c.LogLevel, f.LogLevel)
	setString("log_format", &c.LogFormat, f.LogFormat)
	setString("report_bucket", &c.ReportBucket, f.ReportBucket)
	setString("report_prefix", &c.ReportPrefix, f.ReportPrefix)
	setString("report_region", &c.ReportRegion, f.ReportRegion)

	if f.DryRun != nil {
		c.DryRun = *f.DryRun
		c.sources["dry_run"] = "file"
	}
	if f.RunOnStartup != nil {
		c.RunOnStartup = *f.RunOnStartup
		c.sources["run_on_startup"] = "file"
	}
	if f.Parallelism != nil {
		c.Parallelism = *f.Parallelism
		c.sources["parallelism"] = "file"
	}
	if err := setDuration("delete_timeout", &c.DeleteTimeout, f.DeleteTimeout); err != nil {
		return err
	}
	return setDuration("schedule_interval", &c.ScheduleInterval, f.ScheduleInterval)
}

func (c *Config) applyEnvConfig() error {
	strs := []struct {
		env  string
		name string
		dst  *string
	}{
		{"AZURE_SUBSCRIPTION_ID", "subscription_id", &c.SubscriptionID},
		{"REAPER_BACKEND", "backend", &c.Backend},
		{"REAPER_FIXTURE", "fixture", &c.FixturePath},
		{"REAPER_TAG_KEY", "tag_key", &c.TagKey},
		{"REAPER_UNPARSABLE_POLICY", "unparsable_policy", &c.UnparsablePolicy},
		{"REAPER_LOG_LEVEL", "log_level", &c.LogLevel},
		{"REAPER_LOG_FORMAT", "log_format", &c.LogFormat},
		{"REAPER_REPORT_BUCKET", "report_bucket", &c.ReportBucket},
		{"REAPER_REPORT_PREFIX", "report_prefix", &c.ReportPrefix},
		{"REAPER_REPORT_REGION", "report_region", &c.ReportRegion},
	}
	for _, s := range strs {
		if val := os.Getenv(s.env); val != "" {
			*s.dst = val
			c.sources[s.name] = "environment"
		}
	}

	if val := os.Getenv("REAPER_DRY_RUN"); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("REAPER_DRY_RUN: %w", err)
		}
		c.DryRun = b
		c.sources["dry_run"] = "environment"
	}
	if val := os.Getenv("REAPER_RUN_ON_STARTUP"); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("REAPER_RUN_ON_STARTUP: %w", err)
		}
		c.RunOnStartup = b
		c.sources["run_on_startup"] = "environment"
	}
	if val := os.Getenv("REAPER_PARALLELISM"); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("REAPER_PARALLELISM: %w", err)
		}
		c.Parallelism = i
		c.sources["parallelism"] = "environment"
	}
	if val := os.Getenv("REAPER_DELETE_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("REAPER_DELETE_TIMEOUT: %w", err)
		}
		c.DeleteTimeout = d
		c.sources["delete_timeout"] = "environment"
	}
	if val := os.Getenv("REAPER_SCHEDULE_INTERVAL"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("REAPER_SCHEDULE_INTERVAL: %w", err)
		}
		c.ScheduleInterval = d
		c.sources["schedule_interval"] = "environment"
	}
	return nil
}

// SetDryRun overrides dry_run from a command-line flag.
func (c *Config) SetDryRun(v bool) {
	c.DryRun = v
	c.sources["dry_run"] = "flag"
}

// Override replaces a string setting from a command-line flag. Empty
// values and unknown names are ignored.
func (c *Config) Override(name, value string) {
	if value == "" {
		return
	}
	switch name {
	case "backend":
		c.Backend = value
	case "fixture":
		c.FixturePath = value
	case "log_level":
		c.LogLevel = value
	case "log_format":
		c.LogFormat = value
	default:
		return
	}
	c.sources[name] = "flag"
}

// Validate checks the settings a run depends on. A missing subscription
// is reported as ErrMissingSubscription.
func (c *Config) Validate() error {
	if c.SubscriptionID == "" {
		return ErrMissingSubscription
	}

	var errs []error
	switch c.Backend {
	case BackendAzure:
	case BackendMemory:
		if c.FixturePath == "" {
			errs = append(errs, fmt.Errorf("backend %q requires a fixture", BackendMemory))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if c.TagKey == "" {
		errs = append(errs, errors.New("tag key must not be empty"))
	}
	if c.Parallelism < 1 {
		errs = append(errs, fmt.Errorf("parallelism must be at least 1, got %d", c.Parallelism))
	}
	if c.DeleteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("delete timeout must be positive, got %s", c.DeleteTimeout))
	}
	if c.ScheduleInterval < time.Minute {
		errs = append(errs, fmt.Errorf("schedule interval must be at least 1m, got %s", c.ScheduleInterval))
	}
	if _, err := engine.ParseUnparsablePolicy(c.UnparsablePolicy); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// EngineOptions converts the settings into reaper options.
func (c *Config) EngineOptions() engine.Options {
	policy, _ := engine.ParseUnparsablePolicy(c.UnparsablePolicy)
	return engine.Options{
		TagKey:        c.TagKey,
		DryRun:        c.DryRun,
		Parallelism:   c.Parallelism,
		DeleteTimeout: c.DeleteTimeout,
		Unparsable:    policy,
	}
}

// FilePath returns the config file that was loaded, if any.
func (c *Config) FilePath() string {
	return c.filePath
}

// Source returns where an attribute's value came from.
func (c *Config) Source(name string) string {
	return c.sources[name]
}

// Attributes lists every setting with its value and source.
func (c *Config) Attributes() []Attribute {
	values := map[string]string{
		"subscription_id":   c.SubscriptionID,
		"backend":           c.Backend,
		"fixture":           c.FixturePath,
		"tag_key":           c.TagKey,
		"dry_run":           strconv.FormatBool(c.DryRun),
		"parallelism":       strconv.Itoa(c.Parallelism),
		"delete_timeout":    c.DeleteTimeout.String(),
		"unparsable_policy": c.UnparsablePolicy,
		"schedule_interval": c.ScheduleInterval.String(),
		"run_on_startup":    strconv.FormatBool(c.RunOnStartup),
		"log_level":         c.LogLevel,
		"log_format":        c.LogFormat,
		"report_bucket":     c.ReportBucket,
		"report_prefix":     c.ReportPrefix,
		"report_region":     c.ReportRegion,
	}

	attrs := make([]Attribute, 0, len(values))
	for _, name := range attributeNames() {
		attrs = append(attrs, Attribute{Name: name, Value: values[name], Source: c.sources[name]})
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Name < attrs[j].Name })
	return attrs
}
