package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/liberta/backend/internal/domain/carrier"
	"github.com/liberta/backend/internal/domain/storefront"
)

// maxNumberedEntries bounds the scan for numbered source/carrier entries
const maxNumberedEntries = 50

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Scheduler SchedulerConfig
	Ingest    IngestConfig
	Reconcile ReconcileConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
	Sources   []storefront.Store
	Carriers  []carrier.Credential
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	WebhookRateLimit  float64 // requests per second for the webhook route
	WebhookRateBurst  int
	TrustedProxies    []string
}

// SchedulerConfig holds sync scheduler configuration
type SchedulerConfig struct {
	Enabled bool
	// IngestTimes and ReconcileTimes are wall-clock HH:MM triggers
	IngestTimes    []string
	ReconcileTimes []string
	CheckInterval  time.Duration
	JobTimeout     time.Duration
}

// IngestConfig holds ingestion tuning knobs
type IngestConfig struct {
	PageSize int
	// RescanWindow is the +/- page window re-scanned around the cursor
	RescanWindow int
	// MaxEmptyPages stops a scan after this many consecutive empty pages
	MaxEmptyPages int
	// FullScanMaxPages is a safety bound for full scans
	FullScanMaxPages int
}

// ReconcileConfig holds reconciliation tuning knobs
type ReconcileConfig struct {
	// BulkMaxResults bounds the bulk carrier fetch per credential
	BulkMaxResults int
	// FetchConcurrency is the fixed fan-out for paged bulk fetches
	FetchConcurrency int
	// BatchSize groups shipping-status writes
	BatchSize int
	// FallbackBudget caps per-reference fallback queries per run
	FallbackBudget int
}

// RateLimitConfig holds the upstream request pacing settings
type RateLimitConfig struct {
	// MinDelay is the minimum spacing between requests sharing one key
	MinDelay time.Duration
	// ThrottleTTL is how long a store stays flagged after sustained 429s
	ThrottleTTL time.Duration
	// CursorTTL is the retention of persisted sync cursors
	CursorTTL time.Duration
}

// TelemetryConfig holds OpenTelemetry metrics configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ServiceName       string
	Insecure          bool
}

// Load loads configuration from TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with LIBERTA_ prefix (e.g. LIBERTA_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine, defaults and env vars apply
	}

	v.SetEnvPrefix("LIBERTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			WebhookRateLimit: v.GetFloat64("http.webhook_rate_limit"),
			WebhookRateBurst: v.GetInt("http.webhook_rate_burst"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Scheduler: SchedulerConfig{
			Enabled:        v.GetBool("scheduler.enabled"),
			IngestTimes:    v.GetStringSlice("scheduler.ingest_times"),
			ReconcileTimes: v.GetStringSlice("scheduler.reconcile_times"),
			CheckInterval:  v.GetDuration("scheduler.check_interval"),
			JobTimeout:     v.GetDuration("scheduler.job_timeout"),
		},
		Ingest: IngestConfig{
			PageSize:         v.GetInt("ingest.page_size"),
			RescanWindow:     v.GetInt("ingest.rescan_window"),
			MaxEmptyPages:    v.GetInt("ingest.max_empty_pages"),
			FullScanMaxPages: v.GetInt("ingest.full_scan_max_pages"),
		},
		Reconcile: ReconcileConfig{
			BulkMaxResults:   v.GetInt("reconcile.bulk_max_results"),
			FetchConcurrency: v.GetInt("reconcile.fetch_concurrency"),
			BatchSize:        v.GetInt("reconcile.batch_size"),
			FallbackBudget:   v.GetInt("reconcile.fallback_budget"),
		},
		RateLimit: RateLimitConfig{
			MinDelay:    v.GetDuration("rate_limit.min_delay"),
			ThrottleTTL: v.GetDuration("rate_limit.throttle_ttl"),
			CursorTTL:   v.GetDuration("rate_limit.cursor_ttl"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
	}

	cfg.Sources = loadSources(v)

	carriers, err := loadCarriers(v)
	if err != nil {
		return nil, err
	}
	cfg.Carriers = carriers

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadSources reads numbered store entries sources.1..N. Missing indexes end
// the scan.
func loadSources(v *viper.Viper) []storefront.Store {
	stores := make([]storefront.Store, 0)
	for i := 1; i <= maxNumberedEntries; i++ {
		prefix := fmt.Sprintf("sources.%d.", i)
		id := v.GetString(prefix + "id")
		if id == "" {
			break
		}
		active := true
		if v.IsSet(prefix + "active") {
			active = v.GetBool(prefix + "active")
		}
		stores = append(stores, storefront.Store{
			ID:          id,
			Name:        v.GetString(prefix + "name"),
			BaseURL:     v.GetString(prefix + "base_url"),
			AccessToken: v.GetString(prefix + "access_token"),
			Active:      active,
		})
	}
	// Deterministic processing order for reproducible runs
	sort.Slice(stores, func(a, b int) bool { return stores[a].ID < stores[b].ID })
	return stores
}

// loadCarriers reads numbered credential entries carriers.1..N. When no
// numbered entry exists, a single legacy credential is read from the
// carrier.* keys.
func loadCarriers(v *viper.Viper) ([]carrier.Credential, error) {
	creds := make([]carrier.Credential, 0)
	for i := 1; i <= maxNumberedEntries; i++ {
		prefix := fmt.Sprintf("carriers.%d.", i)
		secret := v.GetString(prefix + "secret_key")
		if secret == "" {
			break
		}
		active := true
		if v.IsSet(prefix + "active") {
			active = v.GetBool(prefix + "active")
		}
		creds = append(creds, carrier.Credential{
			Index:     i,
			Name:      v.GetString(prefix + "name"),
			SecretKey: secret,
			BaseURL:   v.GetString(prefix + "base_url"),
			Primary:   v.GetBool(prefix + "primary"),
			Stores:    splitStoreList(v.GetString(prefix + "stores")),
			Active:    active,
		})
	}

	if len(creds) == 0 {
		// Legacy single-credential layout
		if secret := v.GetString("carrier.secret_key"); secret != "" {
			creds = append(creds, carrier.Credential{
				Index:     1,
				Name:      v.GetString("carrier.name"),
				SecretKey: secret,
				BaseURL:   v.GetString("carrier.base_url"),
				Primary:   true,
				Active:    true,
			})
		}
		return creds, nil
	}

	// A store identifier may appear in at most one credential's list
	seen := make(map[string]int)
	for _, c := range creds {
		for _, s := range c.Stores {
			if prev, ok := seen[s]; ok {
				return nil, fmt.Errorf("store %q mapped to both carrier credential %d and %d", s, prev, c.Index)
			}
			seen[s] = c.Index
		}
	}
	return creds, nil
}

// splitStoreList parses a comma-separated store identifier list
func splitStoreList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Validate checks cross-field constraints the individual getters cannot
func (c *Config) Validate() error {
	if c.Ingest.PageSize <= 0 {
		return fmt.Errorf("ingest.page_size must be positive")
	}
	if c.Ingest.RescanWindow < 1 {
		return fmt.Errorf("ingest.rescan_window must be at least 1")
	}
	if c.Reconcile.FetchConcurrency <= 0 {
		return fmt.Errorf("reconcile.fetch_concurrency must be positive")
	}
	if c.Reconcile.BatchSize <= 0 {
		return fmt.Errorf("reconcile.batch_size must be positive")
	}
	primaries := 0
	for _, cred := range c.Carriers {
		if cred.Primary {
			primaries++
		}
	}
	if len(c.Carriers) > 0 && primaries != 1 {
		return fmt.Errorf("exactly one carrier credential must be marked primary, got %d", primaries)
	}
	for _, t := range append(append([]string{}, c.Scheduler.IngestTimes...), c.Scheduler.ReconcileTimes...) {
		if _, err := time.Parse("15:04", t); err != nil {
			return fmt.Errorf("invalid scheduler trigger time %q: %w", t, err)
		}
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// URL returns the PostgreSQL connection URL used by golang-migrate
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// Addr returns the Redis address
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "liberta-sync")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "liberta")
	v.SetDefault("database.dbname", "liberta")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("http.webhook_rate_limit", 20.0)
	v.SetDefault("http.webhook_rate_burst", 40)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.ingest_times", []string{"06:00", "13:00", "20:00"})
	v.SetDefault("scheduler.reconcile_times", []string{"07:30", "19:30"})
	v.SetDefault("scheduler.check_interval", "30s")
	v.SetDefault("scheduler.job_timeout", "20m")

	v.SetDefault("ingest.page_size", 100)
	v.SetDefault("ingest.rescan_window", 50)
	v.SetDefault("ingest.max_empty_pages", 3)
	v.SetDefault("ingest.full_scan_max_pages", 5000)

	v.SetDefault("reconcile.bulk_max_results", 2000)
	v.SetDefault("reconcile.fetch_concurrency", 10)
	v.SetDefault("reconcile.batch_size", 100)
	v.SetDefault("reconcile.fallback_budget", 200)

	v.SetDefault("rate_limit.min_delay", "500ms")
	v.SetDefault("rate_limit.throttle_ttl", "2h")
	v.SetDefault("rate_limit.cursor_ttl", "168h")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "liberta-sync")
	v.SetDefault("telemetry.insecure", true)
}
