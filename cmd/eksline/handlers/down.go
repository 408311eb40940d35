package handlers

import (
	"context"
	"fmt"

	"github.com/eksline/eksline/internal/orchestrate"
	"github.com/eksline/eksline/internal/pipeline"
)

// Down tears down the environment in reverse dependency order.
//
// Teardown stages are best-effort: a failed delete is recorded and the
// remaining stages still run, so one stuck resource does not strand the
// rest of the environment. The exit code still reflects the failure.
func Down(ctx context.Context, configPath string, autoApprove bool) error {
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
	results := runPipeline(pctx, runner, pipeline.Down(cfg, pctx.Timeouts, deps))

	orchestrate.PrintSummary(stdout, fmt.Sprintf("Teardown %s", cfg.EnvName), results)

	if orchestrate.HasFailure(results) {
		return fmt.Errorf("teardown finished with failures; resources may remain")
	}
	return nil
}
