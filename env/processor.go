package env

import "github.com/pocokhc/simple-rl/spaces"

// Processor is one element of the environment-side transform chain.
// Concrete processors additionally implement whichever remap
// capabilities below they need; the adapter probes for them once at
// setup and never again per call.
type Processor interface {
	Name() string
}

// SpaceRemapper rewrites the action or observation space the adapter
// advertises. Applied once at setup, before any episode runs.
type SpaceRemapper interface {
	RemapActionSpace(s spaces.Space, e *EnvRun) spaces.Space
	RemapObservationSpace(s spaces.Space, e *EnvRun) spaces.Space
}

// ResetRemapper rewrites the initial observation at reset time.
type ResetRemapper interface {
	RemapReset(state spaces.Value, e *EnvRun) spaces.Value
}

// ActionRemapper rewrites an action before it reaches the backend.
type ActionRemapper interface {
	RemapAction(action spaces.Value, e *EnvRun) spaces.Value
}

// StepRemapper rewrites a step result before the adapter records it.
type StepRemapper interface {
	RemapStep(state spaces.Value, rewards []float64, terminated, truncated bool, e *EnvRun) (spaces.Value, []float64, bool, bool)
}

// InvalidActionsRemapper rewrites a player's computed invalid actions.
type InvalidActionsRemapper interface {
	RemapInvalidActions(invalid []spaces.Value, player int, e *EnvRun) []spaces.Value
}

// StatefulProcessor exposes private processor state for snapshots.
// Processors without state skip this and contribute an empty payload.
type StatefulProcessor interface {
	BackupProcessor() ([]byte, error)
	RestoreProcessor(payload []byte) error
}

// processorChain holds the per-capability processor lists resolved once
// at setup.
type processorChain struct {
	space    []SpaceRemapper
	reset    []ResetRemapper
	action   []ActionRemapper
	step     []StepRemapper
	invalid  []InvalidActionsRemapper
	stateful []StatefulProcessor
}

// resolveProcessors probes each processor's optional capabilities.
// The stateful list preserves the configured order so snapshot payloads
// line up on restore.
func resolveProcessors(ps []Processor) processorChain {
	var c processorChain
	for _, p := range ps {
		if r, ok := p.(SpaceRemapper); ok {
			c.space = append(c.space, r)
		}
		if r, ok := p.(ResetRemapper); ok {
			c.reset = append(c.reset, r)
		}
		if r, ok := p.(ActionRemapper); ok {
			c.action = append(c.action, r)
		}
		if r, ok := p.(StepRemapper); ok {
			c.step = append(c.step, r)
		}
		if r, ok := p.(InvalidActionsRemapper); ok {
			c.invalid = append(c.invalid, r)
		}
		if r, ok := p.(StatefulProcessor); ok {
			c.stateful = append(c.stateful, r)
		}
	}
	return c
}
