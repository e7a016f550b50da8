package msgport

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of an Environment's configuration:
// the YAML is decoded into a generic map and then onto FileConfig via
// mapstructure (which also parses duration strings such as "30s"), and
// Options converts the result into Environment options.
type FileConfig struct {
	Name         string        `yaml:"name" mapstructure:"name"`
	JobQueueSize int           `yaml:"job_queue_size" mapstructure:"job_queue_size"`
	IdleTTL      time.Duration `yaml:"idle_ttl" mapstructure:"idle_ttl"`
	LogLevel     string        `yaml:"log_level" mapstructure:"-"`
	AdminAddr    string        `yaml:"admin_addr" mapstructure:"-"`
}

// LoadConfigFile reads and parses a YAML config file into a FileConfig.
func LoadConfigFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("msgport: read config: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("msgport: parse config: %w", err)
	}

	cfg := &FileConfig{JobQueueSize: 256, IdleTTL: 15 * time.Second}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, fmt.Errorf("msgport: build config decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("msgport: decode config: %w", err)
	}

	if lvl, ok := raw["log_level"].(string); ok {
		cfg.LogLevel = lvl
	}
	if addr, ok := raw["admin_addr"].(string); ok {
		cfg.AdminAddr = addr
	}

	return cfg, nil
}

// LogLevelValue parses FileConfig.LogLevel into a slog.Level, defaulting
// to Info for an empty or unrecognized value.
func (c *FileConfig) LogLevelValue() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Options converts the file config into Environment options.
func (c *FileConfig) Options() []Option {
	opts := []Option{WithJobQueueSize(c.JobQueueSize)}
	if c.IdleTTL > 0 {
		opts = append(opts, WithIdleTTL(c.IdleTTL))
	}
	return opts
}
