package orchestrate

import (
	"fmt"

	"github.com/eksline/eksline/internal/config"
)

// ConfirmPolicy controls the confirmation gates placed before destructive
// stages. The policy is explicit, uniform configuration; it is never
// inferred per stage.
type ConfirmPolicy string

const (
	// ConfirmAuto proceeds through every gate without asking.
	ConfirmAuto ConfirmPolicy = "auto"
	// ConfirmPrompt asks interactively before each destructive stage.
	ConfirmPrompt ConfirmPolicy = "prompt"
	// ConfirmDeny declines every gate; destructive stages are skipped.
	ConfirmDeny ConfirmPolicy = "deny"
)

// ParseConfirmPolicy converts a config string into a ConfirmPolicy.
func ParseConfirmPolicy(s string) (ConfirmPolicy, error) {
	switch s {
	case config.ConfirmAuto:
		return ConfirmAuto, nil
	case config.ConfirmPrompt, "":
		return ConfirmPrompt, nil
	case config.ConfirmDeny:
		return ConfirmDeny, nil
	default:
		return "", fmt.Errorf("unknown confirmation policy %q", s)
	}
}

// Prompter asks the operator to confirm a destructive stage.
type Prompter interface {
	Confirm(stageName string) (bool, error)
}

// Runner sequences stages in declaration order. Execution is strictly
// single-threaded: the only concurrency in the system is the asynchronous
// provisioning inside the external services, observed through polling.
type Runner struct {
	Policy   ConfirmPolicy
	Prompter Prompter
}

// NewRunner creates a pipeline runner with the given confirmation policy.
func NewRunner(policy ConfirmPolicy, prompter Prompter) *Runner {
	return &Runner{Policy: policy, Prompter: prompter}
}

// Run executes the stages sequentially and returns one RunResult per stage
// that was reached. A fatal failure halts the pipeline: later stages are
// neither run nor recorded. Non-fatal failures are recorded and the run
// continues. Whole stages are never retried; retry lives inside the
// readiness poll only.
func (r *Runner) Run(ctx *Context, stages []*Stage) []RunResult {
	results := make([]RunResult, 0, len(stages))

	for i, stage := range stages {
		name := fmt.Sprintf("%s (%d/%d)", stage.Name, i+1, len(stages))

		if stage.Destructive {
			proceed, detail := r.gate(ctx, stage)
			if !proceed {
				ctx.Observer.Event(Event{
					Type:    EventGateDeclined,
					Stage:   stage.Name,
					Message: detail,
				})
				results = append(results, RunResult{
					Stage:  stage.Name,
					Status: StatusSkipped,
					Fatal:  stage.Fatal,
					Detail: detail,
				})
				continue
			}
		}

		ctx.Observer.Printf("[%s] starting", name)
		res := stage.Run(ctx)
		results = append(results, res)

		if stage.Fatal && (res.Status == StatusFailed || res.Status == StatusRolledBack) {
			ctx.Observer.Printf("[%s] fatal failure, halting pipeline", name)
			break
		}
	}

	return results
}

// gate resolves the confirmation gate for a destructive stage. It returns
// whether to proceed and, when declining, an operator-facing reason.
func (r *Runner) gate(ctx *Context, stage *Stage) (bool, string) {
	switch r.Policy {
	case ConfirmAuto:
		return true, ""
	case ConfirmDeny:
		return false, "confirmation denied by policy"
	default:
		if r.Prompter == nil {
			return false, "no prompter available in non-interactive run"
		}
		ctx.Observer.Event(Event{
			Type:    EventGatePrompt,
			Stage:   stage.Name,
			Message: "awaiting confirmation",
		})
		ok, err := r.Prompter.Confirm(stage.Name)
		if err != nil {
			return false, fmt.Sprintf("confirmation prompt failed: %v", err)
		}
		if !ok {
			return false, "aborted by user"
		}
		return true, ""
	}
}

// HasFailure reports whether any stage's apply failed, rolled back or not.
// Non-fatal failures still count: a teardown that could not remove
// everything must not exit zero.
func HasFailure(results []RunResult) bool {
	for _, res := range results {
		if res.Status == StatusFailed || res.Status == StatusRolledBack {
			return true
		}
	}
	return false
}
