// Package main is the entry point for the eksline CLI.
//
// eksline provisions and tears down an AWS-based DevOps environment as a
// pipeline of idempotent stages: S3 remote-state backend, VPC network,
// EKS cluster, EBS CSI storage addon and a Prometheus/Grafana monitoring
// stack installed via Helm.
//
// Commands: up, down, status, doctor, version.
//
// For detailed usage information, run:
//
//	eksline --help
package main

import (
	"fmt"
	"os"

	"github.com/eksline/eksline/cmd/eksline/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
