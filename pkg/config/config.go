// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Engine, Fixtures, Sync, Redis, Kafka, Postgres, etc.).
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Engine   EngineConfig   `yaml:"engine"`
	Fixtures FixturesConfig `yaml:"fixtures"`
	Sync     SyncConfig     `yaml:"sync"`
	Search   SearchConfig   `yaml:"search"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Postgres PostgresConfig `yaml:"postgres"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
	// RateLimit is the per-client request budget per minute on query
	// routes. Zero disables limiting.
	RateLimit int `yaml:"rateLimit"`
}

// Engine drivers.
const (
	DriverMeili    = "meili"
	DriverEmbedded = "embedded"
)

// EngineConfig selects and configures the search engine backend.
type EngineConfig struct {
	Driver           string        `yaml:"driver"`
	URL              string        `yaml:"url"`
	APIKey           string        `yaml:"apiKey"`
	PrimaryKey       string        `yaml:"primaryKey"`
	Timeout          time.Duration `yaml:"timeout"`
	WaitForTasks     bool          `yaml:"waitForTasks"`
	TaskPollInterval time.Duration `yaml:"taskPollInterval"`
}

// Dataset names a collection and the fixture file it is loaded from.
type Dataset struct {
	Name string `yaml:"name"`
	File string `yaml:"file"`
}

// FixturesConfig controls where the static dataset files come from. When
// BaseURL is empty the service fetches from its own /data/ route, which
// serves Dir.
type FixturesConfig struct {
	BaseURL  string    `yaml:"baseUrl"`
	Dir      string    `yaml:"dir"`
	Datasets []Dataset `yaml:"datasets"`
}

// RetryConfig mirrors resilience.RetryConfig for YAML.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"maxAttempts"`
	InitialDelay time.Duration `yaml:"initialDelay"`
	MaxDelay     time.Duration `yaml:"maxDelay"`
}

// SyncConfig controls the startup dataset synchronization.
type SyncConfig struct {
	OnStartup bool        `yaml:"onStartup"`
	FailFast  bool        `yaml:"failFast"`
	Retry     RetryConfig `yaml:"retry"`
}

// SearchConfig controls query execution limits and timeouts.
type SearchConfig struct {
	DefaultLimit int           `yaml:"defaultLimit"`
	MaxResults   int           `yaml:"maxResults"`
	QueryTimeout time.Duration `yaml:"queryTimeout"`
	SessionTTL   time.Duration `yaml:"sessionTTL"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// PostgresConfig holds PostgreSQL connection parameters for the sync
// history store.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values and rejects configurations that fail Validate.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config suitable for local development against a
// Meilisearch instance on its default port.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimit:       600,
		},
		Engine: EngineConfig{
			Driver:           DriverMeili,
			URL:              "http://localhost:7700",
			PrimaryKey:       "id",
			Timeout:          10 * time.Second,
			WaitForTasks:     true,
			TaskPollInterval: 50 * time.Millisecond,
		},
		Fixtures: FixturesConfig{
			Dir: "public/data",
			Datasets: []Dataset{
				{Name: "users", File: "users.json"},
				{Name: "posts", File: "posts.json"},
				{Name: "tasks", File: "tasks.json"},
			},
		},
		Sync: SyncConfig{
			OnStartup: true,
			Retry: RetryConfig{
				MaxAttempts:  3,
				InitialDelay: 200 * time.Millisecond,
				MaxDelay:     2 * time.Second,
			},
		},
		Search: SearchConfig{
			DefaultLimit: 20,
			MaxResults:   1000,
			SessionTTL:   30 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "search-playground",
			Topics: KafkaTopics{
				AnalyticsEvents: "playground-analytics",
			},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "playground",
			User:            "playground",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

var datasetName = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Validate checks cross-field constraints that defaults cannot guarantee.
func (c *Config) Validate() error {
	var errs []error
	switch c.Engine.Driver {
	case DriverMeili:
		if c.Engine.URL == "" {
			errs = append(errs, errors.New("engine.url is required for the meili driver"))
		}
	case DriverEmbedded:
	default:
		errs = append(errs, fmt.Errorf("engine.driver %q is not one of %q, %q", c.Engine.Driver, DriverMeili, DriverEmbedded))
	}
	if c.Engine.PrimaryKey == "" {
		errs = append(errs, errors.New("engine.primaryKey must not be empty"))
	}
	if len(c.Fixtures.Datasets) == 0 {
		errs = append(errs, errors.New("fixtures.datasets must list at least one dataset"))
	}
	seen := make(map[string]struct{}, len(c.Fixtures.Datasets))
	for i, ds := range c.Fixtures.Datasets {
		if !datasetName.MatchString(ds.Name) {
			errs = append(errs, fmt.Errorf("fixtures.datasets[%d]: invalid name %q", i, ds.Name))
		}
		if ds.File == "" {
			errs = append(errs, fmt.Errorf("fixtures.datasets[%d]: file is required", i))
		}
		if _, dup := seen[ds.Name]; dup {
			errs = append(errs, fmt.Errorf("fixtures.datasets[%d]: duplicate name %q", i, ds.Name))
		}
		seen[ds.Name] = struct{}{}
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxResults < c.Search.DefaultLimit {
		errs = append(errs, fmt.Errorf("search limits invalid: defaultLimit=%d maxResults=%d", c.Search.DefaultLimit, c.Search.MaxResults))
	}
	return errors.Join(errs...)
}

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SP_SERVER_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimit = n
		}
	}
	if v := os.Getenv("SP_ENGINE_DRIVER"); v != "" {
		cfg.Engine.Driver = v
	}
	if v := os.Getenv("SP_ENGINE_URL"); v != "" {
		cfg.Engine.URL = v
	}
	if v := os.Getenv("SP_ENGINE_API_KEY"); v != "" {
		cfg.Engine.APIKey = v
	}
	if v := os.Getenv("SP_FIXTURES_BASE_URL"); v != "" {
		cfg.Fixtures.BaseURL = v
	}
	if v := os.Getenv("SP_FIXTURES_DIR"); v != "" {
		cfg.Fixtures.Dir = v
	}
	if v := os.Getenv("SP_SYNC_FAIL_FAST"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Sync.FailFast = b
		}
	}
	if v := os.Getenv("SP_SEARCH_QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Search.QueryTimeout = d
		}
	}
	if v := os.Getenv("SP_REDIS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.Enabled = b
		}
	}
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_KAFKA_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = b
		}
	}
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_POSTGRES_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Postgres.Enabled = b
		}
	}
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
