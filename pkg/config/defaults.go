package config

import (
	"strings"
	"time"

	"github.com/slskd/slskd/pkg/uploads"
)

// GetDefaultOptions returns an Options populated with the same defaults the
// reference cmd/slskd entrypoint runs with: one global slot, FIFO Default
// and Leechers groups, no speed limit.
func GetDefaultOptions() *Options {
	cfg := &Options{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills any unspecified field with its default value. Zero
// values (0, "", false, nil) are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Options) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	applyGlobalDefaults(&cfg.Global)
	applyGroupsDefaults(&cfg.Groups)
}

func applyLoggingDefaults(cfg *LoggingOptions) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "text"
	}
}

func applyMetricsDefaults(cfg *MetricsOptions) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyGlobalDefaults(cfg *GlobalOptions) {
	if cfg.Upload.Slots == 0 {
		cfg.Upload.Slots = 1
	}
}

func applyGroupsDefaults(cfg *GroupsOptions) {
	if cfg.Default.Upload.Strategy == "" {
		cfg.Default.Upload.Strategy = uploads.FIFO.String()
	}
	if cfg.Default.Upload.Priority == 0 {
		cfg.Default.Upload.Priority = 1
	}

	if cfg.Leechers.Upload.Strategy == "" {
		cfg.Leechers.Upload.Strategy = uploads.FIFO.String()
	}
	if cfg.Leechers.Upload.Priority == 0 {
		cfg.Leechers.Upload.Priority = 2
	}

	for name, group := range cfg.UserDefined {
		if group.Upload.Strategy == "" {
			group.Upload.Strategy = uploads.FIFO.String()
		}
		if group.Upload.Priority == 0 {
			group.Upload.Priority = 1
		}
		cfg.UserDefined[name] = group
	}
}
