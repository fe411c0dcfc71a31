package rl

import (
	"fmt"

	"github.com/pocokhc/simple-rl/env"
	"github.com/pocokhc/simple-rl/spaces"
)

// Config holds the conversion settings between an environment and an
// algorithm. Algorithm configs embed it so that hyperparameter files
// can set both in one document.
//
// Setup resolves the config against a concrete environment once, before
// the first episode. The resolved fields are owned by the config and
// shared by every WorkerRun built from it.
type Config struct {
	// ActionType is the representation the algorithm emits actions in.
	ActionType BaseType `yaml:"action_type"`
	// ObservationType is the representation the algorithm consumes
	// observations in.
	ObservationType BaseType `yaml:"observation_type"`
	// ObservationMode selects the observation sources.
	ObservationMode ObservationMode `yaml:"observation_mode"`
	// WindowLength stacks the most recent observations into one value.
	// 1 disables stacking.
	WindowLength int `yaml:"window_length"`

	// The enable toggles bypass individual conversion stages so that an
	// algorithm can work on raw environment values.
	EnableStateEncode  bool `yaml:"enable_state_encode"`
	EnableActionDecode bool `yaml:"enable_action_decode"`
	EnableRewardEncode bool `yaml:"enable_reward_encode"`
	EnableDoneEncode   bool `yaml:"enable_done_encode"`

	// EnableAssertion rejects malformed algorithm actions with an
	// error. EnableSanitize coerces them instead. At most one may be
	// set.
	EnableAssertion bool `yaml:"enable_assertion"`
	EnableSanitize  bool `yaml:"enable_sanitize"`

	// RenderTextLength is the fixed width of the text observation
	// source.
	RenderTextLength int `yaml:"render_text_length"`

	// EpisodeProcessors remap observations, rewards and termination on
	// the algorithm side of the boundary.
	EpisodeProcessors []EpisodeProcessor `yaml:"-"`

	isSetup       bool
	actionSpace   spaces.Space
	obsSpace      spaces.Space
	envObsFlatten bool
	composedMulti bool
	dummyOneStep  spaces.Value
}

// DefaultConfig returns a config with every conversion stage enabled,
// sanitization on, and a single-frame environment observation.
func DefaultConfig() *Config {
	return &Config{
		ActionType:         BaseDiscrete,
		ObservationType:    BaseDiscrete,
		ObservationMode:    ObsEnv,
		WindowLength:       1,
		EnableStateEncode:  true,
		EnableActionDecode: true,
		EnableRewardEncode: true,
		EnableDoneEncode:   true,
		EnableSanitize:     true,
		RenderTextLength:   128,
	}
}

// Setup resolves the config against e. It validates the toggle
// combination, binds the action space, builds the composed observation
// source space for the selected mode, and precomputes the dummy
// observation used to prime stacking windows.
func (c *Config) Setup(e *env.EnvRun) error {
	if e == nil || e.ActionSpace() == nil {
		return ErrNotSetup
	}
	if c.EnableAssertion && c.EnableSanitize {
		return fmt.Errorf("rl: EnableAssertion and EnableSanitize are mutually exclusive")
	}
	if c.WindowLength < 1 {
		c.WindowLength = 1
	}
	if c.ObservationMode == 0 {
		c.ObservationMode = ObsEnv
	}
	if c.RenderTextLength <= 0 {
		c.RenderTextLength = 128
	}

	c.actionSpace = e.ActionSpace()
	if c.ActionType == BaseDiscrete && c.actionSpace.Kind() != spaces.KindDiscrete {
		return fmt.Errorf("rl: discrete actions need a discrete environment action space, have %s", c.actionSpace.Kind())
	}

	var srcs []spaces.Space
	c.envObsFlatten = false
	if c.ObservationMode.Has(ObsEnv) {
		if m, ok := e.ObservationSpace().(spaces.Multi); ok {
			srcs = append(srcs, m.Spaces...)
			c.envObsFlatten = true
		} else {
			srcs = append(srcs, e.ObservationSpace())
		}
	}
	if c.ObservationMode.Has(ObsRenderImage) {
		if !e.HasRenderer() {
			return fmt.Errorf("rl: observation mode %s needs a rendering environment", c.ObservationMode)
		}
		h, w := e.RenderImageSize()
		srcs = append(srcs, spaces.NewColorImage(h, w))
	}
	if c.ObservationMode.Has(ObsRenderText) {
		if !e.HasRenderer() {
			return fmt.Errorf("rl: observation mode %s needs a rendering environment", c.ObservationMode)
		}
		srcs = append(srcs, spaces.NewTextBox(c.RenderTextLength))
	}
	if len(srcs) == 0 {
		return fmt.Errorf("rl: observation mode %s selects no sources", c.ObservationMode)
	}
	if len(srcs) == 1 {
		c.obsSpace = srcs[0]
		c.composedMulti = false
	} else {
		c.obsSpace = spaces.NewMulti(srcs...)
		c.composedMulti = true
	}

	if c.EnableStateEncode {
		c.dummyOneStep = encodeObservation(c.ObservationType, c.obsSpace, c.obsSpace.Zero())
	} else {
		c.dummyOneStep = c.obsSpace.Zero()
	}
	c.isSetup = true
	return nil
}

// IsSetup reports whether Setup has run.
func (c *Config) IsSetup() bool { return c.isSetup }

// ActionSpace returns the environment action space bound by Setup.
func (c *Config) ActionSpace() spaces.Space { return c.actionSpace }

// ObservationSpace returns the composed observation source space bound
// by Setup. Algorithm-native observations are encodes of its members.
func (c *Config) ObservationSpace() spaces.Space { return c.obsSpace }

// ActionElements returns the number of algorithm-native discrete
// actions, or 0 when the action space is not enumerable.
func (c *Config) ActionElements() int {
	if c.actionSpace == nil {
		return 0
	}
	return c.actionSpace.Elements()
}
