package bootstrap

import (
	"github.com/lyzr/rulechain/common/config"
	"github.com/lyzr/rulechain/common/logger"
)

// Option configures the bootstrap process
type Option func(*options)

type options struct {
	skipAudit     bool
	skipRedis     bool
	skipTelemetry bool
	customLogger  *logger.Logger
	customConfig  *config.Config
}

// WithoutAudit skips the execution-audit database connection even if
// Audit.Enabled is set in config.
func WithoutAudit() Option {
	return func(o *options) { o.skipAudit = true }
}

// WithoutRedis skips the lifecycle-event Redis client even if Redis.Enabled
// is set in config.
func WithoutRedis() Option {
	return func(o *options) { o.skipRedis = true }
}

// WithoutTelemetry skips telemetry initialization
func WithoutTelemetry() Option {
	return func(o *options) { o.skipTelemetry = true }
}

// WithCustomLogger uses a custom logger instead of creating one
func WithCustomLogger(log *logger.Logger) Option {
	return func(o *options) { o.customLogger = log }
}

// WithCustomConfig uses a custom config instead of loading from env
func WithCustomConfig(cfg *config.Config) Option {
	return func(o *options) { o.customConfig = cfg }
}

func defaultOptions() *options {
	return &options{}
}
