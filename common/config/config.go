package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service configuration
type Config struct {
	Service   ServiceConfig
	Engine    EngineConfig
	Redis     RedisConfig
	Audit     AuditConfig
	Telemetry TelemetryConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// EngineConfig holds rule-chain engine tuning settings. They are loaded from
// the environment (and JoinTimeout is validated), but nothing in the engine
// reads them: chain.Store, the dispatcher's join state, condition.Evaluator
// and the fork node use their own fixed behavior (5s/100ms remove wait, 30s
// join timeout, an unbounded program cache, unbounded fan-out).
type EngineConfig struct {
	RemoveTimeout    time.Duration // how long Remove waits for in-flight executions to drain
	RemovePoll       time.Duration // poll interval while waiting
	JoinTimeout      time.Duration // how long a join node waits for a full set of arrivals
	CELCacheSize     int           // max compiled-program cache entries per condition.Evaluator
	ForkConcurrency  int           // default cap on concurrent fork branches
}

// RedisConfig holds settings for the optional lifecycle-event bus.
type RedisConfig struct {
	Enabled bool
	Addr    string
	Stream  string
}

// AuditConfig holds settings for the optional execution-audit sink. This is
// distinct from chain persistence (out of scope): only a write-only history
// of process() calls is ever stored here, never the chains themselves.
type AuditConfig struct {
	Enabled      bool
	Host         string
	Port         int
	Database     string
	User         string
	Password     string
	MaxConns     int
	MinConns     int
	MaxIdleTime  time.Duration
	MaxLifetime  time.Duration
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof bool
	PprofPort   int
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"), // Default to text for development
		},
		Engine: EngineConfig{
			RemoveTimeout:   getEnvDuration("ENGINE_REMOVE_TIMEOUT", 5*time.Second),
			RemovePoll:      getEnvDuration("ENGINE_REMOVE_POLL", 100*time.Millisecond),
			JoinTimeout:     getEnvDuration("ENGINE_JOIN_TIMEOUT", 30*time.Second),
			CELCacheSize:    getEnvInt("ENGINE_CEL_CACHE_SIZE", 1000),
			ForkConcurrency: getEnvInt("ENGINE_FORK_CONCURRENCY", 0), // 0 = unbounded
		},
		Redis: RedisConfig{
			Enabled: getEnvBool("REDIS_ENABLED", false),
			Addr:    getEnv("REDIS_ADDR", "localhost:6379"),
			Stream:  getEnv("REDIS_EVENT_STREAM", "rulechain:events"),
		},
		Audit: AuditConfig{
			Enabled:     getEnvBool("AUDIT_ENABLED", false),
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "rulechain"),
			User:        getEnv("POSTGRES_USER", "rulechain"),
			Password:    getEnv("POSTGRES_PASSWORD", "rulechain"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 10),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 2),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Telemetry: TelemetryConfig{
			EnablePprof: getEnvBool("ENABLE_PPROF", true),
			PprofPort:   getEnvInt("PPROF_PORT", 6060),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Engine.JoinTimeout <= 0 {
		return fmt.Errorf("engine join_timeout must be positive")
	}

	if c.Audit.Enabled && c.Audit.MaxConns < c.Audit.MinConns {
		return fmt.Errorf("audit max_conns must be >= min_conns")
	}

	return nil
}

// AuditDatabaseURL returns the PostgreSQL connection string for the audit sink.
func (c *Config) AuditDatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Audit.User,
		c.Audit.Password,
		c.Audit.Host,
		c.Audit.Port,
		c.Audit.Database,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
