// Package orchestrate contains the stage abstraction and the sequential
// pipeline runner. A pipeline is an ordered list of idempotent stages, each
// with preconditions, an apply action, an optional readiness wait, and a
// best-effort rollback. Failures never escape a stage; they are converted
// into RunResult records.
package orchestrate

import (
	"context"

	"github.com/eksline/eksline/internal/config"
)

// Context wraps all dependencies and state needed for a pipeline run.
// It replaces the implicit global state (working directory, exported
// credential variables) of script-driven provisioning with an explicit
// object threaded through every stage.
type Context struct {
	context.Context
	Config   *config.Config
	Observer Observer
	Timeouts *config.Timeouts
}

// NewContext creates a new pipeline context.
func NewContext(ctx context.Context, cfg *config.Config) *Context {
	return &Context{
		Context:  ctx,
		Config:   cfg,
		Observer: NewConsoleObserver(),
		Timeouts: config.LoadTimeouts(),
	}
}
