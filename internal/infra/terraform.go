// Package infra applies and destroys declarative infrastructure plans by
// driving the terraform binary. Plans are opaque here: a plan is a working
// directory, and the package only knows apply, destroy and output.
package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// Runner is the declarative infrastructure collaborator used by the
// pipeline stages.
type Runner interface {
	Init(ctx context.Context, dir string) error
	Apply(ctx context.Context, dir string) error
	Destroy(ctx context.Context, dir string) error
	Output(ctx context.Context, dir string) (map[string]string, error)
}

// CLI runs the terraform binary. Approval is never delegated to
// terraform; destructive runs are gated by the orchestrator, so every
// apply and destroy passes -auto-approve.
type CLI struct {
	// Binary is the terraform executable name or path.
	Binary string

	// Stdout and Stderr receive terraform's streamed output.
	// Defaults to the process streams.
	Stdout io.Writer
	Stderr io.Writer

	// Env is appended to the inherited process environment, for
	// injecting assumed-role credentials.
	Env []string

	// Timeout bounds each apply and destroy invocation. Zero means no
	// bound beyond the caller's context.
	Timeout time.Duration
}

// NewCLI creates a runner for the given terraform binary, defaulting
// to "terraform" on PATH.
func NewCLI(binary string) *CLI {
	if binary == "" {
		binary = "terraform"
	}
	return &CLI{Binary: binary}
}

func (c *CLI) command(ctx context.Context, dir string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.Binary, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Stdout = c.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = c.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	return cmd
}

// Init prepares the working directory, installing providers and wiring
// the remote state backend.
func (c *CLI) Init(ctx context.Context, dir string) error {
	if err := c.command(ctx, dir, "init", "-input=false").Run(); err != nil {
		return fmt.Errorf("terraform init failed in %s: %w", dir, err)
	}
	return nil
}

// Apply converges the plan in dir.
func (c *CLI) Apply(ctx context.Context, dir string) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	if err := c.command(ctx, dir, "apply", "-input=false", "-auto-approve").Run(); err != nil {
		return fmt.Errorf("terraform apply failed in %s: %w", dir, err)
	}
	return nil
}

// Destroy removes everything the plan in dir manages.
func (c *CLI) Destroy(ctx context.Context, dir string) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	if err := c.command(ctx, dir, "destroy", "-input=false", "-auto-approve").Run(); err != nil {
		return fmt.Errorf("terraform destroy failed in %s: %w", dir, err)
	}
	return nil
}

func (c *CLI) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.Timeout)
}

// Output returns the plan's output values as strings.
func (c *CLI) Output(ctx context.Context, dir string) (map[string]string, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	var stdout bytes.Buffer
	cmd := c.command(ctx, dir, "output", "-json")
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("terraform output failed in %s: %w", dir, err)
	}
	return ParseOutputs(stdout.Bytes())
}

// ParseOutputs decodes `terraform output -json`. String values are
// returned as-is, everything else keeps its JSON encoding.
func ParseOutputs(data []byte) (map[string]string, error) {
	var raw map[string]struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse terraform outputs: %w", err)
	}

	outputs := make(map[string]string, len(raw))
	for name, out := range raw {
		var s string
		if err := json.Unmarshal(out.Value, &s); err == nil {
			outputs[name] = s
			continue
		}
		outputs[name] = string(out.Value)
	}
	return outputs, nil
}
