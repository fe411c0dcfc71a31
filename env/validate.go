package env

import (
	"fmt"
	"math"

	"github.com/pocokhc/simple-rl/spaces"
)

// Validation policies. Assertion mode turns every contract violation
// into a step error; sanitization mode coerces to the nearest valid
// value and logs the coercion. With neither enabled the environment is
// trusted and values pass through untouched.

// validateAction checks an action against the action space.
func (e *EnvRun) validateAction(a spaces.Value) (spaces.Value, error) {
	switch {
	case e.config.EnableAssertion:
		if !e.actionSpace.Check(a) {
			return a, fmt.Errorf("env: action %v is not a member of %v", a, e.actionSpace.Kind())
		}
	case e.config.EnableSanitize:
		if !e.actionSpace.Check(a) {
			fixed := e.actionSpace.Sanitize(a)
			log.Warnf("sanitized action %v -> %v", a, fixed)
			return fixed, nil
		}
	}
	return a, nil
}

// validateState checks an observation against the observation space.
func (e *EnvRun) validateState(s spaces.Value) (spaces.Value, error) {
	switch {
	case e.config.EnableAssertion:
		if !e.observationSpace.Check(s) {
			return s, fmt.Errorf("env: observation %v is not a member of %v", s, e.observationSpace.Kind())
		}
	case e.config.EnableSanitize:
		if !e.observationSpace.Check(s) {
			fixed := e.observationSpace.Sanitize(s)
			log.Warnf("sanitized observation %v -> %v", s, fixed)
			return fixed, nil
		}
	}
	return s, nil
}

// validateNextPlayer checks the backend's acting-player index against
// the player count.
func (e *EnvRun) validateNextPlayer(p int) (int, error) {
	if p >= 0 && p < e.backend.PlayerNum() {
		return p, nil
	}
	switch {
	case e.config.EnableAssertion:
		return p, fmt.Errorf("env: next player %d out of range [0, %d)", p, e.backend.PlayerNum())
	case e.config.EnableSanitize:
		log.Warnf("sanitized next player %d -> 0", p)
		return 0, nil
	}
	return p, nil
}

// validateStepResult checks a full step result: the observation against
// the observation space, the reward arity against the player count, and
// reward finiteness.
func (e *EnvRun) validateStepResult(state spaces.Value, rewards []float64) (spaces.Value, []float64, error) {
	n := e.backend.PlayerNum()
	switch {
	case e.config.EnableAssertion:
		if len(rewards) != n {
			return state, rewards, fmt.Errorf("env: %d rewards for %d players", len(rewards), n)
		}
		for i, r := range rewards {
			if math.IsNaN(r) || math.IsInf(r, 0) {
				return state, rewards, fmt.Errorf("env: reward[%d] = %v is not finite", i, r)
			}
		}
		if !e.observationSpace.Check(state) {
			return state, rewards, fmt.Errorf("env: observation %v is not a member of %v", state, e.observationSpace.Kind())
		}
	case e.config.EnableSanitize:
		if len(rewards) != n {
			log.Warnf("sanitized reward arity %d -> %d", len(rewards), n)
			fixed := make([]float64, n)
			copy(fixed, rewards)
			rewards = fixed
		}
		for i, r := range rewards {
			if math.IsNaN(r) || math.IsInf(r, 0) {
				log.Warnf("sanitized reward[%d] %v -> 0", i, r)
				rewards[i] = 0
			}
		}
		if !e.observationSpace.Check(state) {
			fixed := e.observationSpace.Sanitize(state)
			log.Warnf("sanitized observation %v -> %v", state, fixed)
			state = fixed
		}
	}
	return state, rewards, nil
}
