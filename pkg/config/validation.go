package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/slskd/slskd/pkg/uploads"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs struct-tag validation over cfg (and over each user-defined
// group) and then the upload-specific checks a tag alone cannot express:
// every referenced Strategy parses, and no group's Slots exceeds the global
// slot count.
func Validate(cfg *Options) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	for name, group := range cfg.Groups.UserDefined {
		if err := validate.Struct(group); err != nil {
			return fmt.Errorf("config validation failed for group %q: %w", name, err)
		}
		if _, ok := uploads.ParseStrategy(group.Upload.Strategy); !ok {
			return fmt.Errorf("group %q: unknown strategy %q", name, group.Upload.Strategy)
		}
	}

	if _, ok := uploads.ParseStrategy(cfg.Groups.Default.Upload.Strategy); !ok {
		return fmt.Errorf("groups.default: unknown strategy %q", cfg.Groups.Default.Upload.Strategy)
	}
	if _, ok := uploads.ParseStrategy(cfg.Groups.Leechers.Upload.Strategy); !ok {
		return fmt.Errorf("groups.leechers: unknown strategy %q", cfg.Groups.Leechers.Upload.Strategy)
	}

	for _, group := range allGroupLimits(cfg) {
		if group.Slots > cfg.Global.Upload.Slots {
			return fmt.Errorf("group slots (%d) exceeds global slots (%d)", group.Slots, cfg.Global.Upload.Slots)
		}
	}

	return nil
}

func allGroupLimits(cfg *Options) []GroupUploadLimits {
	out := []GroupUploadLimits{cfg.Groups.Default.Upload, cfg.Groups.Leechers.Upload}
	for _, g := range cfg.Groups.UserDefined {
		out = append(out, g.Upload)
	}
	return out
}
