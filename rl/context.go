package rl

import (
	"github.com/google/uuid"

	"github.com/pocokhc/simple-rl/env"
)

// RunContext identifies one run and carries the run-wide flags every
// worker and trainer reads. It is bound once through OnStart and treated
// as read-only afterwards.
type RunContext struct {
	// RunID tags everything this run produces: logs, history rows,
	// checkpoints, distributed task keys.
	RunID string

	// Training distinguishes learning runs from evaluation runs.
	Training bool
	// Distributed is set when this process is one actor or trainer of a
	// distributed run.
	Distributed bool
	// Rendering enables render calls during the run.
	Rendering bool

	// ActorID is the distributed actor index, 0 in single-process runs.
	ActorID int
	// Seed seeds episode resets when >= 0.
	Seed int64

	RenderMode env.RenderMode
}

// NewRunContext returns a context with a fresh run id and no seeding.
func NewRunContext() *RunContext {
	return &RunContext{
		RunID: uuid.NewString(),
		Seed:  -1,
	}
}
