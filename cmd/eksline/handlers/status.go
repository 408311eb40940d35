package handlers

import (
	"context"
	"fmt"

	"github.com/eksline/eksline/internal/pipeline"
)

// collectStatus is a factory variable for test injection.
var collectStatus = pipeline.CollectStatus

// Status re-queries every external system and prints the observed state of
// each managed resource. It never mutates anything.
func Status(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if err := exportAssumedRole(ctx, cfg); err != nil {
		return err
	}

	deps, err := newDeps(ctx, cfg)
	if err != nil {
		return err
	}

	status := collectStatus(ctx, cfg, deps)
	fmt.Fprintf(stdout, "Environment %s (%s)\n\n", cfg.EnvName, cfg.Region)
	status.Print(stdout)

	return nil
}
