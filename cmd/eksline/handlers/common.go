// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command
// definitions in the commands package. Handlers are framework-agnostic and
// can be tested independently of the CLI framework.
package handlers

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/eksline/eksline/internal/config"
	"github.com/eksline/eksline/internal/infra"
	"github.com/eksline/eksline/internal/orchestrate"
	"github.com/eksline/eksline/internal/pipeline"
	"github.com/eksline/eksline/internal/platform/awsapi"
	"github.com/eksline/eksline/internal/platform/helmpkg"
	"github.com/eksline/eksline/internal/platform/kube"
)

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// loadConfigFile loads config from file.
	loadConfigFile = config.LoadFile

	// newDeps builds the external collaborators for a pipeline run.
	newDeps = defaultDeps

	// newIdentityAPI builds the STS client used for credential checks
	// and role assumption.
	newIdentityAPI = func(ctx context.Context, region string) (awsapi.IdentityAPI, error) {
		clients, err := awsapi.NewClients(ctx, region)
		if err != nil {
			return nil, err
		}
		return clients.STS, nil
	}

	// newClusterAPI builds the EKS client used for connectivity checks.
	newClusterAPI = func(ctx context.Context, region string) (awsapi.ClusterAPI, error) {
		clients, err := awsapi.NewClients(ctx, region)
		if err != nil {
			return nil, err
		}
		return clients.EKS, nil
	}

	// runPipeline executes the stages; swapped in tests for canned results.
	runPipeline = func(ctx *orchestrate.Context, runner *orchestrate.Runner, stages []*orchestrate.Stage) []orchestrate.RunResult {
		return runner.Run(ctx, stages)
	}

	// setenv exports assumed credentials to the process environment.
	setenv = os.Setenv

	// stdout is where summaries and reports are printed.
	stdout io.Writer = os.Stdout

	// isInteractive reports whether prompting is possible.
	isInteractive = orchestrate.IsInteractiveTTY
)

// loadConfig loads and validates the environment configuration.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := loadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// defaultDeps wires the real collaborators: AWS service clients, the
// terraform runner, the Kubernetes query client and the Helm installer.
func defaultDeps(ctx context.Context, cfg *config.Config) (pipeline.Deps, error) {
	var clients *awsapi.Clients
	var err error
	if cfg.AssumeRoleARN != "" {
		// Auto-refreshing provider: SDK calls keep working even when a
		// run outlives the exported session token.
		clients, err = awsapi.NewAssumedClients(ctx, cfg.Region, cfg.AssumeRoleARN, "eksline")
	} else {
		clients, err = awsapi.NewClients(ctx, cfg.Region)
	}
	if err != nil {
		return pipeline.Deps{}, err
	}
	terraform := infra.NewCLI(cfg.Terraform.Binary)
	terraform.Timeout = config.LoadTimeouts().TerraformApply

	deps := pipeline.Deps{
		Buckets:   clients.S3,
		Clusters:  clients.EKS,
		Network:   clients.EC2,
		Terraform: terraform,
		Kube:      kube.New(cfg.KubeconfigPath),
		Helm:      helmpkg.New(cfg.KubeconfigPath),
	}
	if cfg.AssumeRoleARN != "" {
		// Recovery hook for reachability preconditions: a session that
		// expired mid-run is replaced by a fresh exchange.
		deps.RefreshCredentials = func(ctx context.Context) error {
			return exportAssumedRole(ctx, cfg)
		}
	}
	return deps, nil
}

// exportAssumedRole exchanges the ambient credentials for the configured
// role and exports the temporary credentials, so that both the SDK clients
// and terraform child processes pick them up.
func exportAssumedRole(ctx context.Context, cfg *config.Config) error {
	if cfg.AssumeRoleARN == "" {
		return nil
	}

	api, err := newIdentityAPI(ctx, cfg.Region)
	if err != nil {
		return err
	}

	duration := time.Duration(cfg.SessionDurationSeconds) * time.Second
	if duration == 0 {
		duration = time.Hour
	}

	creds, err := awsapi.AssumeRole(ctx, api, cfg.AssumeRoleARN, "eksline", duration)
	if err != nil {
		return err
	}
	return creds.Export(setenv)
}

// confirmPolicy resolves the confirmation policy for a run. The --approve
// flag wins; otherwise the configured policy applies, with prompt only
// meaningful on a terminal.
func confirmPolicy(cfg *config.Config, autoApprove bool) (orchestrate.ConfirmPolicy, orchestrate.Prompter, error) {
	if autoApprove {
		return orchestrate.ConfirmAuto, nil, nil
	}

	policy, err := orchestrate.ParseConfirmPolicy(cfg.Confirm)
	if err != nil {
		return "", nil, err
	}
	if policy == orchestrate.ConfirmPrompt && isInteractive() {
		return policy, &orchestrate.HuhPrompter{}, nil
	}
	return policy, nil, nil
}
