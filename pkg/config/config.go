// Package config loads and validates the search core configuration from YAML
// files with environment-variable overrides. Besides the infrastructure
// sections (Kafka, Redis, Postgres, Metrics) it carries the index mappings
// that a node creates at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Node     NodeConfig     `yaml:"node"`
	Indices  []IndexConfig  `yaml:"indices"`
	Search   SearchConfig   `yaml:"search"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Breaker  BreakerConfig  `yaml:"breaker"`
	Retry    RetryConfig    `yaml:"retry"`
}

// NodeConfig identifies the embedded node.
type NodeConfig struct {
	Name            string        `yaml:"name"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// IndexConfig describes an index created when the node starts.
type IndexConfig struct {
	Name   string        `yaml:"name"`
	Fields []FieldConfig `yaml:"fields"`
}

// FieldConfig is the YAML form of a field mapping.
type FieldConfig struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Analyzer string `yaml:"analyzer"`
}

// SearchConfig controls result limits.
type SearchConfig struct {
	DefaultLimit int `yaml:"defaultLimit"`
	MaxResults   int `yaml:"maxResults"`
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
	BulkIngest     string `yaml:"bulkIngest"`
	IngestResults  string `yaml:"ingestResults"`
	SearchRequests string `yaml:"searchRequests"`
	SearchResults  string `yaml:"searchResults"`
	Analytics      string `yaml:"analytics"`
}

// RedisConfig holds Redis connection and query cache parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// PostgresConfig holds PostgreSQL connection parameters for the ingest
// status table.
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

// BreakerConfig controls the circuit breaker guarding the cache backend.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failureThreshold"`
	ResetTimeout     time.Duration `yaml:"resetTimeout"`
}

// RetryConfig controls retries of backend connections and result writes.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"maxAttempts"`
	InitialDelay time.Duration `yaml:"initialDelay"`
	MaxDelay     time.Duration `yaml:"maxDelay"`
}

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result.
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
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config suitable for a local embedded node.
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			Name:            "searchcore",
			ShutdownTimeout: 15 * time.Second,
		},
		Search: SearchConfig{
			DefaultLimit: 10,
			MaxResults:   1000,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "searchcore-group",
			Topics: KafkaTopics{
				BulkIngest:     "bulk-ingest",
				IngestResults:  "ingest-results",
				SearchRequests: "search-requests",
				SearchResults:  "search-results",
				Analytics:      "search-analytics",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "searchcore",
			User:            "searchcore",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
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
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     5 * time.Second,
		},
	}
}

// Validate checks structural constraints that do not need the analyzer
// registry. Analyzer names are resolved when the index is created.
func (c *Config) Validate() error {
	if c.Search.DefaultLimit < 0 || c.Search.MaxResults < 0 {
		return fmt.Errorf("search limits must not be negative")
	}
	if c.Search.MaxResults > 0 && c.Search.DefaultLimit > c.Search.MaxResults {
		return fmt.Errorf("search.defaultLimit %d exceeds search.maxResults %d",
			c.Search.DefaultLimit, c.Search.MaxResults)
	}
	seen := make(map[string]struct{}, len(c.Indices))
	for i, idx := range c.Indices {
		if strings.TrimSpace(idx.Name) == "" {
			return fmt.Errorf("indices[%d]: name is required", i)
		}
		if _, dup := seen[idx.Name]; dup {
			return fmt.Errorf("indices[%d]: duplicate index %q", i, idx.Name)
		}
		seen[idx.Name] = struct{}{}
		if len(idx.Fields) == 0 {
			return fmt.Errorf("index %q: at least one field is required", idx.Name)
		}
		for j, f := range idx.Fields {
			if strings.TrimSpace(f.Name) == "" {
				return fmt.Errorf("index %q: fields[%d]: name is required", idx.Name, j)
			}
		}
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry.maxAttempts must not be negative")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka enabled but no brokers configured")
	}
	return nil
}

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_NODE_NAME"); v != "" {
		cfg.Node.Name = v
	}
	if v := os.Getenv("SP_KAFKA_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = b
		}
	}
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
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
	if v := os.Getenv("SP_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
