package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for errors that would make a run
// meaningless. Defaults are applied before validation, so only fields
// without a derivable default are required here.
func (c *Config) Validate() error {
	var errs []string

	if c.EnvName == "" {
		errs = append(errs, "envName is required")
	}
	if c.Region == "" {
		errs = append(errs, "region is required")
	}
	if c.Cluster.Name == "" {
		errs = append(errs, "cluster.name is required (or set envName to derive it)")
	}
	if c.Cluster.MinReadyNodes < 0 {
		errs = append(errs, "cluster.minReadyNodes must not be negative")
	}
	if c.SessionDurationSeconds < 0 {
		errs = append(errs, "sessionDurationSeconds must not be negative")
	}

	switch c.Confirm {
	case ConfirmAuto, ConfirmPrompt, ConfirmDeny:
	default:
		errs = append(errs, fmt.Sprintf("confirm must be one of %q, %q, %q", ConfirmAuto, ConfirmPrompt, ConfirmDeny))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
