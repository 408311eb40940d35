package orchestrate

import (
	"context"
	"fmt"
	"time"

	"github.com/eksline/eksline/internal/poll"
	"github.com/eksline/eksline/internal/preflight"
)

// Status classifies the outcome of a stage run.
type Status string

const (
	// StatusSkipped means the stage did not run: its idempotency check
	// found the desired state already in place, or a confirmation gate
	// was declined.
	StatusSkipped Status = "Skipped"

	// StatusApplied means the apply action completed. A readiness
	// timeout downgrades to a warning, not a failure; check
	// RunResult.TimedOut.
	StatusApplied Status = "Applied"

	// StatusFailed means a precondition or the apply action failed.
	StatusFailed Status = "Failed"

	// StatusRolledBack means the apply action failed and the stage's
	// rollback completed.
	StatusRolledBack Status = "RolledBack"
)

// RunResult is the immutable record of one stage execution.
type RunResult struct {
	Stage    string
	Status   Status
	Fatal    bool // copied from the stage; drives pipeline halt and exit code
	TimedOut bool // readiness not observed within the poll bound
	Detail   string
	Duration time.Duration
}

// Action mutates external state on behalf of a stage.
type Action func(ctx *Context) error

// Predicate re-queries external state; it must not mutate anything.
// The external system is the source of truth: predicates are evaluated
// fresh on every run, never cached.
type Predicate func(ctx *Context) (bool, error)

// Stage is one idempotent unit of provisioning or teardown work.
type Stage struct {
	// Name identifies the stage in events and the run summary.
	Name string

	// Preconditions are evaluated after the idempotency check and
	// before apply. The first failure fails the stage without mutation.
	Preconditions []preflight.Check

	// IdempotencyCheck reports whether the desired state already holds.
	// Apply is skipped when it returns true.
	IdempotencyCheck Predicate

	// Apply performs the stage's mutation.
	Apply Action

	// ReadinessCheck, if set, is polled after a successful apply.
	// Exhausting the poll bound records a warning, not a failure:
	// long-tail provisioning such as DNS propagation must not block
	// the rest of the pipeline.
	ReadinessCheck Predicate

	// Rollback undoes a failed apply, best-effort. Rollback errors are
	// logged and never propagated.
	Rollback Action

	// Fatal marks a stage whose failure halts the remaining pipeline.
	Fatal bool

	// Destructive marks a stage that is subject to confirmation gates.
	Destructive bool

	// PollInterval and MaxPollAttempts bound the readiness wait.
	// Zero values fall back to the context timeouts.
	PollInterval    time.Duration
	MaxPollAttempts int
}

// Run executes the stage and converts every outcome into a RunResult.
// Errors never propagate past this boundary.
func (s *Stage) Run(ctx *Context) RunResult {
	start := time.Now()
	finish := func(res RunResult) RunResult {
		res.Stage = s.Name
		res.Fatal = s.Fatal
		res.Duration = time.Since(start).Round(time.Millisecond)
		return res
	}

	if s.IdempotencyCheck != nil {
		satisfied, err := s.IdempotencyCheck(ctx)
		if err != nil {
			// Cannot determine current state; proceed as if absent.
			ctx.Observer.Printf("[%s] idempotency check inconclusive: %v", s.Name, err)
		} else if satisfied {
			ctx.Observer.Event(Event{
				Type:    EventStageSkipped,
				Stage:   s.Name,
				Message: "already satisfied",
			})
			return finish(RunResult{Status: StatusSkipped, Detail: "already satisfied"})
		}
	}

	if failure := preflight.FirstFailure(preflight.Run(ctx, s.Preconditions)); failure != nil {
		detail := fmt.Sprintf("precondition %s: %s", failure.Name, failure.Detail)
		ctx.Observer.Event(Event{
			Type:    EventStageFailed,
			Stage:   s.Name,
			Message: detail,
		})
		return finish(RunResult{Status: StatusFailed, Detail: detail})
	}

	if s.Apply != nil {
		ctx.Observer.Event(Event{
			Type:    EventStageStarted,
			Stage:   s.Name,
			Message: "applying",
		})

		if err := s.Apply(ctx); err != nil {
			return finish(s.failApply(ctx, err))
		}
	}

	if s.ReadinessCheck != nil {
		if res, done := s.awaitReadiness(ctx); done {
			return finish(res)
		}
	}

	ctx.Observer.Event(Event{
		Type:    EventStageCompleted,
		Stage:   s.Name,
		Message: "completed",
	})
	return finish(RunResult{Status: StatusApplied})
}

// failApply records a failed apply and runs the best-effort rollback.
func (s *Stage) failApply(ctx *Context, applyErr error) RunResult {
	ctx.Observer.Event(Event{
		Type:    EventStageFailed,
		Stage:   s.Name,
		Message: fmt.Sprintf("apply failed: %v", applyErr),
	})

	if s.Rollback == nil {
		return RunResult{Status: StatusFailed, Detail: applyErr.Error()}
	}

	if rbErr := s.Rollback(ctx); rbErr != nil {
		ctx.Observer.Printf("[%s] rollback failed (ignored): %v", s.Name, rbErr)
		return RunResult{
			Status: StatusFailed,
			Detail: fmt.Sprintf("%v (rollback failed: %v)", applyErr, rbErr),
		}
	}

	ctx.Observer.Event(Event{
		Type:    EventStageRolledBack,
		Stage:   s.Name,
		Message: "rolled back after failed apply",
	})
	return RunResult{Status: StatusRolledBack, Detail: applyErr.Error()}
}

// awaitReadiness polls the readiness check. The second return value is true
// when the result terminates the stage run.
func (s *Stage) awaitReadiness(ctx *Context) (RunResult, bool) {
	interval := s.PollInterval
	if interval == 0 {
		interval = ctx.Timeouts.PollInterval
	}
	attempts := s.MaxPollAttempts
	if attempts == 0 {
		attempts = ctx.Timeouts.PollMaxAttempts
	}

	res, err := poll.Wait(ctx,
		func(_ context.Context) (bool, error) { return s.ReadinessCheck(ctx) },
		poll.WithInterval(interval),
		poll.WithMaxAttempts(attempts),
	)
	if err != nil {
		// A fatal predicate error (e.g. authorization revoked) fails the
		// stage even though apply succeeded.
		detail := fmt.Sprintf("readiness check aborted: %v", err)
		ctx.Observer.Event(Event{
			Type:    EventStageFailed,
			Stage:   s.Name,
			Message: detail,
		})
		return RunResult{Status: StatusFailed, Detail: detail}, true
	}

	switch {
	case res.Cancelled:
		detail := fmt.Sprintf("readiness wait cancelled after %d attempts", res.Attempts)
		ctx.Observer.Event(Event{
			Type:    EventStageWarning,
			Stage:   s.Name,
			Message: detail,
		})
		return RunResult{Status: StatusApplied, TimedOut: true, Detail: detail}, true
	case !res.Satisfied:
		detail := fmt.Sprintf("applied, but not observed ready within %d attempts", res.Attempts)
		ctx.Observer.Event(Event{
			Type:    EventStageWarning,
			Stage:   s.Name,
			Message: detail,
		})
		return RunResult{Status: StatusApplied, TimedOut: true, Detail: detail}, true
	}

	return RunResult{}, false
}
