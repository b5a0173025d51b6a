// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the complete application configuration.
type Config struct {
	Environment string           `json:"environment"`
	Debug       bool             `json:"debug"`
	LogLevel    string           `json:"log_level"`
	LogFormat   string           `json:"log_format"`
	API         *APIConfig       `json:"api"`
	Database    *DatabaseConfig  `json:"database"`
	Kafka       *KafkaConfig     `json:"kafka"`
	Scheduler   *SchedulerConfig `json:"scheduler"`
	Metrics     *MetricsConfig   `json:"metrics"`
	Designer    *DesignerConfig  `json:"designer"`
}

// APIConfig holds HTTP server configuration.
type APIConfig struct {
	Host               string        `json:"host"`
	Port               int           `json:"port"`
	ReadTimeout        time.Duration `json:"read_timeout"`
	WriteTimeout       time.Duration `json:"write_timeout"`
	IdleTimeout        time.Duration `json:"idle_timeout"`
	RequestTimeout     time.Duration `json:"request_timeout"`
	MaxRequestSize     int64         `json:"max_request_size"`
	EnableCORS         bool          `json:"enable_cors"`
	CORSAllowedOrigins []string      `json:"cors_allowed_origins"`
	CORSAllowedMethods []string      `json:"cors_allowed_methods"`
	CORSAllowedHeaders []string      `json:"cors_allowed_headers"`
	EnableRateLimit    bool          `json:"enable_rate_limit"`
	RateLimitPerSecond float64       `json:"rate_limit_per_second"`
	RateLimitBurst     int           `json:"rate_limit_burst"`
	EnableGzip         bool          `json:"enable_gzip"`
}

// DatabaseConfig holds Postgres configuration.
type DatabaseConfig struct {
	Host               string        `json:"host"`
	Port               int           `json:"port"`
	Database           string        `json:"database"`
	Username           string        `json:"username"`
	Password           string        `json:"-"`
	SSLMode            string        `json:"ssl_mode"`
	MaxOpenConns       int           `json:"max_open_conns"`
	MinOpenConns       int           `json:"min_open_conns"`
	ConnMaxLifetime    time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime    time.Duration `json:"conn_max_idle_time"`
	ConnectTimeout     time.Duration `json:"connect_timeout"`
	ConnectRetries     int           `json:"connect_retries"`
	SlowQueryThreshold time.Duration `json:"slow_query_threshold"`
	AutoMigrate        bool          `json:"auto_migrate"`
}

// DSN builds the pgx connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

// KafkaConfig holds event broker configuration.
type KafkaConfig struct {
	Enabled               bool          `json:"enabled"`
	Brokers               []string      `json:"brokers"`
	Topic                 string        `json:"topic"`
	GroupID               string        `json:"group_id"`
	ProducerRetryMax      int           `json:"producer_retry_max"`
	ProducerFlushInterval time.Duration `json:"producer_flush_interval"`
}

// SchedulerConfig drives the maintenance scheduler binary.
type SchedulerConfig struct {
	RetentionSchedule    string        `json:"retention_schedule"`
	StatsRefreshSchedule string        `json:"stats_refresh_schedule"`
	RetainExecutions     time.Duration `json:"retain_executions"`
}

// MetricsConfig holds the Prometheus endpoint configuration.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Path      string `json:"path"`
	Namespace string `json:"namespace"`
}

// DesignerConfig holds the domain policy knobs documented in DESIGN.md.
type DesignerConfig struct {
	// AutoPromoteVersions makes a freshly created snapshot the current
	// version. Off by default: creation and promotion are distinct
	// operations.
	AutoPromoteVersions bool `json:"auto_promote_versions"`
	// AllowParallelEdges permits two connections with identical
	// source/target/port tuples.
	AllowParallelEdges bool          `json:"allow_parallel_edges"`
	ExecutionTimeout   time.Duration `json:"execution_timeout"`
	MaxNodesPerDesign  int           `json:"max_nodes_per_design"`
	RecentRunsInStats  int           `json:"recent_runs_in_stats"`
}

// Load reads configuration from the environment with defaults suitable for
// local development.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnvString("ENVIRONMENT", "development"),
		Debug:       getEnvBool("DEBUG", false),
		LogLevel:    getEnvString("LOG_LEVEL", "info"),
		LogFormat:   getEnvString("LOG_FORMAT", "json"),
		API: &APIConfig{
			Host:               getEnvString("API_HOST", "0.0.0.0"),
			Port:               getEnvInt("API_PORT", 8080),
			ReadTimeout:        getEnvDuration("API_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:       getEnvDuration("API_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:        getEnvDuration("API_IDLE_TIMEOUT", 120*time.Second),
			RequestTimeout:     getEnvDuration("API_REQUEST_TIMEOUT", 60*time.Second),
			MaxRequestSize:     int64(getEnvInt("API_MAX_REQUEST_SIZE", 10*1024*1024)),
			EnableCORS:         getEnvBool("API_ENABLE_CORS", true),
			CORSAllowedOrigins: getEnvStringSlice("API_CORS_ALLOWED_ORIGINS", []string{"*"}),
			CORSAllowedMethods: getEnvStringSlice("API_CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			CORSAllowedHeaders: getEnvStringSlice("API_CORS_ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"}),
			EnableRateLimit:    getEnvBool("API_ENABLE_RATE_LIMIT", true),
			RateLimitPerSecond: getEnvFloat("API_RATE_LIMIT_PER_SECOND", 20),
			RateLimitBurst:     getEnvInt("API_RATE_LIMIT_BURST", 40),
			EnableGzip:         getEnvBool("API_ENABLE_GZIP", true),
		},
		Database: &DatabaseConfig{
			Host:               getEnvString("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			Database:           getEnvString("DB_NAME", "flowcanvas"),
			Username:           getEnvString("DB_USER", "flowcanvas"),
			Password:           getEnvString("DB_PASSWORD", ""),
			SSLMode:            getEnvString("DB_SSL_MODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MinOpenConns:       getEnvInt("DB_MIN_OPEN_CONNS", 5),
			ConnMaxLifetime:    getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime:    getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
			ConnectTimeout:     getEnvDuration("DB_CONNECT_TIMEOUT", 10*time.Second),
			ConnectRetries:     getEnvInt("DB_CONNECT_RETRIES", 3),
			SlowQueryThreshold: getEnvDuration("DB_SLOW_QUERY_THRESHOLD", 200*time.Millisecond),
			AutoMigrate:        getEnvBool("DB_AUTO_MIGRATE", false),
		},
		Kafka: &KafkaConfig{
			Enabled:               getEnvBool("KAFKA_ENABLED", false),
			Brokers:               getEnvStringSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:                 getEnvString("KAFKA_TOPIC", "flowcanvas-events"),
			GroupID:               getEnvString("KAFKA_GROUP_ID", "flowcanvas"),
			ProducerRetryMax:      getEnvInt("KAFKA_PRODUCER_RETRY_MAX", 3),
			ProducerFlushInterval: getEnvDuration("KAFKA_PRODUCER_FLUSH_INTERVAL", time.Second),
		},
		Scheduler: &SchedulerConfig{
			RetentionSchedule:    getEnvString("SCHEDULER_RETENTION_SCHEDULE", "0 3 * * *"),
			StatsRefreshSchedule: getEnvString("SCHEDULER_STATS_REFRESH_SCHEDULE", "*/15 * * * *"),
			RetainExecutions:     getEnvDuration("SCHEDULER_RETAIN_EXECUTIONS", 30*24*time.Hour),
		},
		Metrics: &MetricsConfig{
			Enabled:   getEnvBool("METRICS_ENABLED", true),
			Host:      getEnvString("METRICS_HOST", "0.0.0.0"),
			Port:      getEnvInt("METRICS_PORT", 9090),
			Path:      getEnvString("METRICS_PATH", "/metrics"),
			Namespace: getEnvString("METRICS_NAMESPACE", "flowcanvas"),
		},
		Designer: &DesignerConfig{
			AutoPromoteVersions: getEnvBool("DESIGNER_AUTO_PROMOTE_VERSIONS", false),
			AllowParallelEdges:  getEnvBool("DESIGNER_ALLOW_PARALLEL_EDGES", false),
			ExecutionTimeout:    getEnvDuration("DESIGNER_EXECUTION_TIMEOUT", 5*time.Minute),
			MaxNodesPerDesign:   getEnvInt("DESIGNER_MAX_NODES_PER_DESIGN", 500),
			RecentRunsInStats:   getEnvInt("DESIGNER_RECENT_RUNS_IN_STATS", 10),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration consistency after load.
func (c *Config) Validate() error {
	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("invalid API port: %d", c.API.Port)
	}
	if c.Metrics.Enabled && c.Metrics.Port == c.API.Port {
		return fmt.Errorf("metrics port must differ from API port")
	}
	if c.Database.MaxOpenConns < c.Database.MinOpenConns {
		return fmt.Errorf("db max_open_conns (%d) below min_open_conns (%d)",
			c.Database.MaxOpenConns, c.Database.MinOpenConns)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka enabled but no brokers configured")
	}
	if c.Designer.MaxNodesPerDesign < 1 {
		return fmt.Errorf("max_nodes_per_design must be positive")
	}
	return nil
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
