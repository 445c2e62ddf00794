// Package config implements the engine's layered configuration: a YAML
// file, then a .env file, then process environment variables, then CLI
// flags, each layer overriding the previous only when explicitly set.
package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// RedisOptions is the probe-specific option group read by internal/probes/redis.
type RedisOptions struct {
	SSL bool `yaml:"ssl"`
	DB  int  `yaml:"db"`
}

// PostgresOptions is the probe-specific option group read by internal/probes/postgres.
type PostgresOptions struct {
	SSLMode  string `yaml:"ssl_mode"`
	Database string `yaml:"database"`
}

// SinkOptions configures the loot.Sink(s) the run fans out to.
type SinkOptions struct {
	JSONLPath    string `yaml:"jsonl_path"`
	PostgresDSN  string `yaml:"postgres_dsn"`
	SupabaseURL  string `yaml:"supabase_url"`
	SupabaseKey  string `yaml:"supabase_key"`
	PubSubTopic  string `yaml:"pubsub_topic"`
	GCPProjectID string `yaml:"gcp_project_id"`

	Spanner SpannerOptions `yaml:"spanner"`
}

// SpannerOptions identifies the Cloud Spanner database a SpannerSink writes to.
type SpannerOptions struct {
	InstanceID string `yaml:"instance_id"`
	DatabaseID string `yaml:"database_id"`
}

// NotifyOptions configures the optional Cloud Tasks / HTTP loot webhook.
type NotifyOptions struct {
	Enabled       bool   `yaml:"enabled"`
	WebhookURL    string `yaml:"webhook_url"`
	CloudTasks    bool   `yaml:"cloud_tasks"`
	LocationID    string `yaml:"location_id"`
	QueueID       string `yaml:"queue_id"`
	FallbackCount int    `yaml:"fallback_workers"`
}

// DashboardOptions configures the optional embedded live status server.
type DashboardOptions struct {
	Addr string `yaml:"addr"`
}

// Options holds the engine knobs (plugin selection, concurrency, timeout,
// retry/jitter policy), the credential sources, the probe-specific option
// groups, and the sink/notifier/dashboard wiring. It is immutable once
// config.Load returns.
type Options struct {
	Plugin        string   `yaml:"plugin"`
	Concurrency   int      `yaml:"concurrency"`
	Timeout       Millis   `yaml:"timeout_ms"`
	Retries       int      `yaml:"retries"`
	RetryTime     Millis   `yaml:"retry_time_ms"`
	JitterMin     Millis   `yaml:"jitter_min_ms"`
	JitterMax     Millis   `yaml:"jitter_max_ms"`
	Quiet         bool     `yaml:"quiet"`
	StatsInterval Millis   `yaml:"stats_interval_ms"`
	ListPlugins   bool     `yaml:"-"`
	Targets       []string `yaml:"targets"`
	Usernames     []string `yaml:"usernames"`
	Passwords     []string `yaml:"passwords"`

	Redis     RedisOptions     `yaml:"redis"`
	Postgres  PostgresOptions  `yaml:"postgres"`
	Sinks     SinkOptions      `yaml:"sinks"`
	Notify    NotifyOptions    `yaml:"notify"`
	Dashboard DashboardOptions `yaml:"dashboard"`
}

// Millis is a millisecond duration that decodes from a plain YAML integer.
type Millis int

// Duration converts m to a time.Duration.
func (m Millis) Duration() time.Duration { return time.Duration(m) * time.Millisecond }

func defaults() *Options {
	return &Options{
		Concurrency:   10,
		Timeout:       Millis(5000),
		Retries:       3,
		RetryTime:     Millis(1000),
		JitterMin:     Millis(0),
		JitterMax:     Millis(0),
		StatsInterval: Millis(5000),
	}
}

// Load builds Options by layering a YAML file, a .env file, process
// environment variables, and the given CLI flag set, in that precedence
// order -- each layer overrides the previous only where it supplies a
// value.
func Load(yamlPath string, args []string) (*Options, error) {
	opts := defaults()

	if yamlPath != "" {
		if err := loadYAML(yamlPath, opts); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("config: failed to load .env file", "error", err)
	}

	applyEnvOverrides(opts)

	if err := applyFlags(opts, args); err != nil {
		return nil, err
	}

	if err := validate(opts); err != nil {
		return nil, err
	}

	return opts, nil
}

func loadYAML(path string, opts *Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, opts)
}

func applyEnvOverrides(opts *Options) {
	opts.Plugin = getEnv("RAIDER_PLUGIN", opts.Plugin)
	if v := getEnvInt("RAIDER_CONCURRENCY", 0); v > 0 {
		opts.Concurrency = v
	}
	if v := getEnvInt("RAIDER_TIMEOUT_MS", 0); v > 0 {
		opts.Timeout = Millis(v)
	}
	if v := getEnvInt("RAIDER_RETRIES", 0); v > 0 {
		opts.Retries = v
	}
	if v := getEnvInt("RAIDER_RETRY_TIME_MS", 0); v > 0 {
		opts.RetryTime = Millis(v)
	}
	if v := getEnvInt("RAIDER_JITTER_MIN_MS", -1); v >= 0 {
		opts.JitterMin = Millis(v)
	}
	if v := getEnvInt("RAIDER_JITTER_MAX_MS", -1); v >= 0 {
		opts.JitterMax = Millis(v)
	}
	opts.Quiet = getEnvBool("RAIDER_QUIET", opts.Quiet)

	if v := getEnv("RAIDER_TARGETS", ""); v != "" {
		opts.Targets = splitCSV(v)
	}
	if v := getEnv("RAIDER_USERNAMES", ""); v != "" {
		opts.Usernames = splitCSV(v)
	}
	if v := getEnv("RAIDER_PASSWORDS", ""); v != "" {
		opts.Passwords = splitCSV(v)
	}

	opts.Sinks.SupabaseURL = getEnv("SUPABASE_URL", opts.Sinks.SupabaseURL)
	opts.Sinks.SupabaseKey = getEnv("SUPABASE_SERVICE_KEY", opts.Sinks.SupabaseKey)
	opts.Sinks.PostgresDSN = getEnv("RAIDER_LOOT_POSTGRES_DSN", opts.Sinks.PostgresDSN)
	opts.Sinks.GCPProjectID = getEnv("GCP_PROJECT_ID", opts.Sinks.GCPProjectID)
	opts.Sinks.PubSubTopic = getEnv("PUBSUB_TOPIC_ID", opts.Sinks.PubSubTopic)
	opts.Sinks.Spanner.InstanceID = getEnv("SPANNER_INSTANCE_ID", opts.Sinks.Spanner.InstanceID)
	opts.Sinks.Spanner.DatabaseID = getEnv("SPANNER_DATABASE_ID", opts.Sinks.Spanner.DatabaseID)

	opts.Notify.WebhookURL = getEnv("RAIDER_WEBHOOK_URL", opts.Notify.WebhookURL)
	opts.Notify.LocationID = getEnv("CLOUD_TASKS_LOCATION", opts.Notify.LocationID)
	opts.Notify.QueueID = getEnv("CLOUD_TASKS_QUEUE", opts.Notify.QueueID)
}

func applyFlags(opts *Options, args []string) error {
	fs := flag.NewFlagSet("raider", flag.ContinueOnError)

	plugin := fs.String("plugin", opts.Plugin, "probe plugin to run")
	concurrency := fs.Int("concurrency", opts.Concurrency, "number of concurrent workers")
	timeout := fs.Int("timeout", int(opts.Timeout), "per-attempt timeout in milliseconds")
	retries := fs.Int("retries", opts.Retries, "maximum attempts per credential")
	retryTime := fs.Int("retry-time", int(opts.RetryTime), "delay between failed attempts in milliseconds")
	jitterMin := fs.Int("jitter-min", int(opts.JitterMin), "minimum jitter delay in milliseconds")
	jitterMax := fs.Int("jitter-max", int(opts.JitterMax), "maximum jitter delay in milliseconds, 0 disables jitter")
	quiet := fs.Bool("quiet", opts.Quiet, "suppress the statistics reporter")
	targets := fs.String("targets", strings.Join(opts.Targets, ","), "comma-separated list of targets")
	usernames := fs.String("usernames", strings.Join(opts.Usernames, ","), "comma-separated list of usernames")
	passwords := fs.String("passwords", strings.Join(opts.Passwords, ","), "comma-separated list of passwords")
	jsonlPath := fs.String("loot-jsonl", opts.Sinks.JSONLPath, "path to append JSONL loot records to, '-' for stdout")
	listPlugins := fs.Bool("list-plugins", false, "list available plugins and exit")
	dashboardAddr := fs.String("dashboard-addr", opts.Dashboard.Addr, "address for the live dashboard, empty disables it")

	if err := fs.Parse(args); err != nil {
		return err
	}

	opts.Plugin = *plugin
	opts.Concurrency = *concurrency
	opts.Timeout = Millis(*timeout)
	opts.Retries = *retries
	opts.RetryTime = Millis(*retryTime)
	opts.JitterMin = Millis(*jitterMin)
	opts.JitterMax = Millis(*jitterMax)
	opts.Quiet = *quiet
	if *targets != "" {
		opts.Targets = splitCSV(*targets)
	}
	if *usernames != "" {
		opts.Usernames = splitCSV(*usernames)
	}
	if *passwords != "" {
		opts.Passwords = splitCSV(*passwords)
	}
	if *jsonlPath != "" {
		opts.Sinks.JSONLPath = *jsonlPath
	}
	opts.Dashboard.Addr = *dashboardAddr
	opts.ListPlugins = *listPlugins
	return nil
}

func validate(opts *Options) error {
	if opts.JitterMin > opts.JitterMax {
		return fmt.Errorf("config: jitter_min (%d) must be <= jitter_max (%d)", opts.JitterMin, opts.JitterMax)
	}
	if opts.Concurrency <= 0 {
		return fmt.Errorf("config: concurrency must be a positive integer")
	}
	if opts.Retries <= 0 {
		return fmt.Errorf("config: retries must be a positive integer")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func splitCSV(s string) []string {
	parts := make([]string, 0)
	for _, p := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
