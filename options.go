package msgport

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DeadLetterHandler is invoked when Post discovers the sibling side is
// already closed. value is the original, pre-serialization argument —
// the handler runs on the caller's goroutine, not the Environment loop.
type DeadLetterHandler func(value any)

// Option configures an Environment via the functional-options pattern,
// covering environment-wide loop and metrics knobs rather than any
// single Port's behavior.
type Option func(*envConfig)

type envConfig struct {
	jobQueueSize int
	registerer   prometheus.Registerer
	idleTTL      time.Duration
	logLevel     slog.Level
	deadLetter   DeadLetterHandler
}

func defaultEnvConfig() envConfig {
	return envConfig{
		jobQueueSize: 256,
		idleTTL:      15 * time.Second,
		logLevel:     slog.LevelInfo,
	}
}

// WithJobQueueSize bounds how many pending wakes/jobs may be outstanding
// on the Environment's loop before Schedule blocks the caller. Default: 256.
func WithJobQueueSize(n int) Option {
	return func(c *envConfig) { c.jobQueueSize = n }
}

// WithRegisterer registers the Environment's Metrics against reg
// instead of leaving them unregistered.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *envConfig) { c.registerer = reg }
}

// WithIdleTTL stores an idle TTL in the Environment's configuration.
// Default: 15s. PortRegistry.RemoveIdle takes its ttl as an argument and
// does not read this value, and no periodic cleanup runs.
func WithIdleTTL(d time.Duration) Option {
	return func(c *envConfig) { c.idleTTL = d }
}

// WithLogLevel stores a log level in the Environment's configuration.
// Nothing in this package reads it; the global logger's level is set
// only by InitLogger.
func WithLogLevel(level slog.Level) Option {
	return func(c *envConfig) { c.logLevel = level }
}

// WithDeadLetterHandler installs a callback run whenever Post discovers
// the sibling has already been closed.
func WithDeadLetterHandler(h DeadLetterHandler) Option {
	return func(c *envConfig) { c.deadLetter = h }
}
