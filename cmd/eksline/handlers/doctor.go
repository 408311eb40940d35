package handlers

import (
	"context"
	"fmt"

	"github.com/eksline/eksline/internal/platform/awsapi"
	"github.com/eksline/eksline/internal/preflight"
)

// checkTools is a factory variable for test injection.
var checkTools = preflight.CheckTools

// Doctor validates the local environment before a provisioning run: client
// tools on PATH, AWS credentials via an STS identity call, then best-effort
// cluster connectivity.
func Doctor(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	toolResults := checkTools(preflight.DefaultTools())
	for _, result := range toolResults.Results {
		if result.Found {
			detail := result.Path
			if result.Version != "" {
				detail = fmt.Sprintf("%s (%s)", result.Path, result.Version)
			}
			fmt.Fprintf(stdout, "✅ %-12s %s\n", result.Tool.Name, detail)
			continue
		}
		indicator := "❌"
		if !result.Tool.Required {
			indicator = "⚠"
		}
		fmt.Fprintf(stdout, "%s %-12s not found, see %s\n", indicator, result.Tool.Name, result.Tool.InstallURL)
	}
	if err := toolResults.Error(); err != nil {
		return err
	}

	api, err := newIdentityAPI(ctx, cfg.Region)
	if err != nil {
		return err
	}
	account, arn, err := awsapi.VerifyCredentials(ctx, api)
	if err != nil {
		fmt.Fprintf(stdout, "❌ %-12s %v\n", "credentials", err)
		return err
	}
	fmt.Fprintf(stdout, "✅ %-12s account %s as %s\n", "credentials", account, arn)

	// Connectivity is advisory: the cluster not existing yet is the normal
	// state before the first provisioning run.
	eksAPI, err := newClusterAPI(ctx, cfg.Region)
	if err != nil {
		fmt.Fprintf(stdout, "⚠ %-12s %v\n", "cluster", err)
		return nil
	}
	status, err := awsapi.ClusterStatus(ctx, eksAPI, cfg.Cluster.Name)
	switch {
	case err != nil:
		fmt.Fprintf(stdout, "⚠ %-12s %v\n", "cluster", err)
	case status == "":
		fmt.Fprintf(stdout, "⚠ %-12s %s not provisioned yet\n", "cluster", cfg.Cluster.Name)
	default:
		fmt.Fprintf(stdout, "✅ %-12s %s is %s\n", "cluster", cfg.Cluster.Name, status)
	}

	return nil
}
