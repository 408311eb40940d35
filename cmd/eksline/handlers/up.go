package handlers

import (
	"context"
	"fmt"

	"github.com/eksline/eksline/internal/orchestrate"
	"github.com/eksline/eksline/internal/pipeline"
)

// Up provisions the environment.
//
// The workflow is:
//  1. Load and validate the environment configuration
//  2. Exchange credentials for the configured role, if any
//  3. Build the external collaborators (AWS clients, terraform, kube, helm)
//  4. Run the provisioning pipeline and print the summary
//
// The command exits non-zero when any stage failed or rolled back, even a
// non-fatal one: a run that left residue must be visible to scripts.
func Up(ctx context.Context, configPath string, autoApprove bool) error {
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

	policy, prompter, err := confirmPolicy(cfg, autoApprove)
	if err != nil {
		return err
	}

	pctx := orchestrate.NewContext(ctx, cfg)
	runner := orchestrate.NewRunner(policy, prompter)
	results := runPipeline(pctx, runner, pipeline.Up(cfg, pctx.Timeouts, deps))

	orchestrate.PrintSummary(stdout, fmt.Sprintf("Provisioning %s", cfg.EnvName), results)

	if orchestrate.HasFailure(results) {
		return fmt.Errorf("provisioning finished with failures")
	}
	return nil
}
