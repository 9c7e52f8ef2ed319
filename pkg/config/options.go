// Package config defines the Options snapshot the upload core consumes,
// and loads it from defaults, a YAML file, and SLSKD_* environment
// variables.
package config

import (
	"time"

	"github.com/slskd/slskd/internal/bytesize"
)

// Options is the root configuration snapshot. The upload core consumes
// only the Global/Groups subtree; Logging, Metrics, and ShutdownTimeout are
// ambient daemon settings.
type Options struct {
	Logging         LoggingOptions `mapstructure:"logging" yaml:"logging"`
	Metrics         MetricsOptions `mapstructure:"metrics" yaml:"metrics"`
	ShutdownTimeout time.Duration  `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	Global GlobalOptions          `mapstructure:"global" yaml:"global"`
	Groups GroupsOptions          `mapstructure:"groups" yaml:"groups"`
}

// LoggingOptions controls internal/logger's initialization.
type LoggingOptions struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
}

// MetricsOptions controls Prometheus metrics. Enabled turns on the metrics
// registry; Port is validated and carried in config, but nothing in this
// module serves an HTTP endpoint on it.
type MetricsOptions struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// GlobalOptions carries daemon-wide upload settings, per spec §6.
type GlobalOptions struct {
	Upload UploadLimits `mapstructure:"upload" yaml:"upload"`
}

// UploadLimits is the {Slots, SpeedLimit} pair shared by Global and every
// Group.
type UploadLimits struct {
	Slots      int               `mapstructure:"slots" validate:"gte=0" yaml:"slots"`
	SpeedLimit bytesize.ByteSize `mapstructure:"speed_limit" yaml:"speed_limit,omitempty"`
}

// GroupsOptions carries the reserved groups plus any operator-defined ones.
type GroupsOptions struct {
	Default     GroupUploadOptions            `mapstructure:"default" yaml:"default"`
	Leechers    GroupUploadOptions            `mapstructure:"leechers" yaml:"leechers"`
	UserDefined map[string]GroupUploadOptions `mapstructure:"user_defined" yaml:"user_defined,omitempty"`
}

// GroupUploadOptions is one group's {Slots, Priority, Strategy, SpeedLimit,
// Members} block.
type GroupUploadOptions struct {
	Upload  GroupUploadLimits `mapstructure:"upload" yaml:"upload"`
	Members []string          `mapstructure:"members" yaml:"members,omitempty"`
}

// GroupUploadLimits extends UploadLimits with the two fields only a group
// (not Global) carries: Priority and Strategy.
type GroupUploadLimits struct {
	Slots      int               `mapstructure:"slots" validate:"gte=0" yaml:"slots"`
	Priority   int               `mapstructure:"priority" validate:"omitempty,gte=1" yaml:"priority"`
	Strategy   string            `mapstructure:"strategy" validate:"required,oneof=FirstInFirstOut RoundRobin" yaml:"strategy"`
	SpeedLimit bytesize.ByteSize `mapstructure:"speed_limit" yaml:"speed_limit,omitempty"`
}
