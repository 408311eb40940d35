// Package preflight verifies external requirements before a stage mutates
// anything: client tools on PATH, valid cloud credentials, cluster
// reachability, and the presence of namespaces or storage classes.
package preflight

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Check is a named predicate over the state of the external world. Checks are
// stateless: every evaluation re-queries the environment.
type Check struct {
	// Name identifies the requirement, e.g. "tool:terraform" or
	// "credentials-valid".
	Name string

	// Probe returns nil when the requirement is satisfied.
	Probe func(ctx context.Context) error

	// Recover, if set, is attempted exactly once after a failed probe
	// (e.g. refreshing cluster credentials), after which the probe is
	// re-evaluated. Recovery failures are folded into the check detail.
	Recover func(ctx context.Context) error
}

// Result contains the outcome of evaluating a single check.
type Result struct {
	Name   string
	OK     bool
	Detail string
}

// Evaluate runs a single check, applying its one-shot recovery action if the
// first probe fails.
func Evaluate(ctx context.Context, check Check) Result {
	err := check.Probe(ctx)
	if err == nil {
		return Result{Name: check.Name, OK: true}
	}

	if check.Recover != nil {
		if rerr := check.Recover(ctx); rerr != nil {
			return Result{
				Name:   check.Name,
				Detail: fmt.Sprintf("%v (recovery failed: %v)", err, rerr),
			}
		}
		if err = check.Probe(ctx); err == nil {
			return Result{Name: check.Name, OK: true, Detail: "recovered"}
		}
	}

	return Result{Name: check.Name, Detail: err.Error()}
}

// Run evaluates all checks in order and returns their results.
func Run(ctx context.Context, checks []Check) []Result {
	results := make([]Result, 0, len(checks))
	for _, check := range checks {
		results = append(results, Evaluate(ctx, check))
	}
	return results
}

// FirstFailure returns the first failing result, or nil if all passed.
func FirstFailure(results []Result) *Result {
	for i := range results {
		if !results[i].OK {
			return &results[i]
		}
	}
	return nil
}

// Tool represents a client binary that may be required.
type Tool struct {
	// Name is the binary name to look for in PATH.
	Name string

	// Required indicates if this tool is mandatory.
	Required bool

	// Description explains what the tool is used for.
	Description string

	// InstallURL provides a URL for installation instructions.
	InstallURL string
}

// DefaultTools returns the default set of tools to check.
// terraform is always required: network and cluster plans are applied
// through it.
func DefaultTools() []Tool {
	return []Tool{
		{
			Name:        "terraform",
			Required:    true,
			Description: "Required for applying network and cluster plans",
			InstallURL:  "https://developer.hashicorp.com/terraform/install",
		},
		{
			Name:        "kubectl",
			Required:    false,
			Description: "Useful for debugging and manual cluster operations",
			InstallURL:  "https://kubernetes.io/docs/tasks/tools/",
		},
	}
}

// ToolPresent returns a check verifying that a binary is on PATH.
func ToolPresent(tool Tool) Check {
	return Check{
		Name: "tool:" + tool.Name,
		Probe: func(_ context.Context) error {
			if _, err := exec.LookPath(tool.Name); err != nil {
				return fmt.Errorf("%s not found in PATH (%s)", tool.Name, tool.InstallURL)
			}
			return nil
		},
	}
}

// ToolResult contains the result of checking a single tool.
type ToolResult struct {
	Tool    Tool
	Found   bool
	Path    string
	Version string
}

// ToolResults contains the results of checking multiple tools.
type ToolResults struct {
	Results []ToolResult
	Missing []Tool
}

// HasErrors returns true if any required tools are missing.
func (r *ToolResults) HasErrors() bool {
	for _, tool := range r.Missing {
		if tool.Required {
			return true
		}
	}
	return false
}

// Error returns an error if any required tools are missing.
func (r *ToolResults) Error() error {
	var missing []string
	for _, tool := range r.Missing {
		if tool.Required {
			missing = append(missing, fmt.Sprintf("%s (%s)", tool.Name, tool.InstallURL))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
}

// CheckTools verifies that the specified tools are available.
func CheckTools(tools []Tool) *ToolResults {
	results := &ToolResults{}

	for _, tool := range tools {
		result := ToolResult{Tool: tool}

		path, err := exec.LookPath(tool.Name)
		if err == nil {
			result.Found = true
			result.Path = path
			// Try to get version (best effort)
			result.Version = getToolVersion(tool.Name)
		} else {
			results.Missing = append(results.Missing, tool)
		}

		results.Results = append(results.Results, result)
	}

	return results
}

// getToolVersion attempts to get the version of a tool.
// Returns empty string if version cannot be determined.
func getToolVersion(name string) string {
	versionFlags := []string{"--version", "version", "-v"}

	for _, flag := range versionFlags {
		// #nosec G204 - name comes from trusted Tool definitions, not user input
		cmd := exec.Command(name, flag)
		output, err := cmd.Output()
		if err == nil {
			lines := strings.Split(string(output), "\n")
			if len(lines) > 0 {
				return strings.TrimSpace(lines[0])
			}
		}
	}

	return ""
}
