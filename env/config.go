package env

import "time"

// Config drives one EnvRun. The zero values mean: no step budget
// override, no timeout, no frame skipping, no start randomization,
// and no validation layer.
type Config struct {
	// Name selects the registered environment.
	Name string

	// MaxEpisodeSteps overrides the backend's natural limit when > 0.
	MaxEpisodeSteps int
	// EpisodeTimeout truncates an episode once its wall-clock age
	// exceeds it. Checked once per step, cooperatively.
	EpisodeTimeout time.Duration
	// Frameskip repeats each action for this many extra native frames,
	// summing rewards and stopping early on a terminal frame.
	Frameskip int
	// RandomNoopMax applies between 0 and this many no-op actions after
	// reset to randomize the start state.
	RandomNoopMax int

	// EnableAssertion fails a step on any contract violation.
	// EnableSanitize coerces violations to the nearest valid value and
	// logs them. At most one may be set.
	EnableAssertion bool
	EnableSanitize  bool

	// Processors are applied in order at the reset, action, step, and
	// invalid-action pipeline points, according to the capabilities each
	// one implements.
	Processors []Processor
}

// NewConfig returns a config for the named environment with defaults.
func NewConfig(name string) *Config {
	return &Config{Name: name}
}
