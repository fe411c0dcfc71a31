// Package env implements the environment side of the interaction
// runtime.
//
// An EnvRun owns one environment backend and normalizes it into a
// uniform episode state machine: setup, reset, repeated steps, and a
// terminal done state. It layers per-player invalid-action bookkeeping,
// frame skipping, step budgets, wall-clock timeouts, validation
// policies, and full snapshot/restore on top of the backend's raw
// capability contract.
package env

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pocokhc/simple-rl/spaces"
)

var log = logrus.WithField("component", "env")

// Sequencing errors: an operation was called outside its legal
// state-machine transition. These are programming errors and are never
// recovered internally.
var (
	ErrNotSetup    = errors.New("env: setup has not been called")
	ErrNotReset    = errors.New("env: reset has not been called")
	ErrEpisodeDone = errors.New("env: episode is done, call reset")
	ErrClosed      = errors.New("env: adapter is closed")
)

// ErrNoDirectStep reports a direct-step call on a backend without the
// capability.
var ErrNoDirectStep = errors.New("env: backend does not support direct step")

// ErrCannotSimulate reports a step attempt after direct-step injection
// on a backend that cannot resume pull-driven stepping.
var ErrCannotSimulate = errors.New("env: backend cannot step after direct step")

// DoneType is the terminal status of an episode.
type DoneType uint8

const (
	DoneNone       DoneType = iota // episode live
	DoneTerminated                 // environment signaled a natural end
	DoneTruncated                  // budget, timeout, fault, or abort
	DoneReset                      // no episode started yet
)

// String returns the done state name.
func (d DoneType) String() string {
	switch d {
	case DoneNone:
		return "NONE"
	case DoneTerminated:
		return "TERMINATED"
	case DoneTruncated:
		return "TRUNCATED"
	case DoneReset:
		return "RESET"
	}
	return "UNKNOWN"
}

// RenderMode selects what the adapter renders during an episode.
type RenderMode uint8

const (
	RenderNone     RenderMode = iota // no rendering
	RenderTerminal                   // text renders
	RenderRGB                        // image renders
)

// Backend is the capability contract a concrete environment implements.
// Implementations are single-threaded; the adapter never calls them
// concurrently.
type Backend interface {
	ActionSpace() spaces.Space
	ObservationSpace() spaces.Space
	// PlayerNum returns the fixed number of players.
	PlayerNum() int
	// NextPlayer returns the index of the player to act.
	NextPlayer() int
	// MaxEpisodeSteps returns the backend's natural episode length
	// limit, or 0 for none.
	MaxEpisodeSteps() int
	// Reset starts a new episode. A negative seed means unseeded.
	Reset(seed int64) (spaces.Value, error)
	// Step advances one native frame for the acting player. Rewards are
	// indexed by player.
	Step(action spaces.Value) (state spaces.Value, rewards []float64, terminated, truncated bool, err error)
	// InvalidActions returns the actions forbidden for the player in the
	// current state. Only enumerable action spaces may return entries.
	InvalidActions(player int) []spaces.Value
	// Backup returns an opaque payload Restore can consume on a backend
	// of the same type.
	Backup() ([]byte, error)
	Restore(payload []byte) error
	Close() error
}

// Renderer is an optional Backend capability providing terminal and
// image renders. ImageSize is static so observation spaces can be sized
// before the first reset.
type Renderer interface {
	RenderText() string
	RenderImage() spaces.Tensor
	ImageSize() (h, w int)
}

// DirectStepper is an optional Backend capability for environments
// driven by externally timed events rather than a pull loop.
type DirectStepper interface {
	// DirectStep injects one external event. It reports whether the
	// event started a new episode and returns the resulting observation
	// and acting player.
	DirectStep(args ...any) (started bool, state spaces.Value, player int, err error)
	// CanSimulateFromDirectStep reports whether Step may be used after
	// direct injection.
	CanSimulateFromDirectStep() bool
}

// ActionStringer is an optional Backend capability for human-readable
// action names.
type ActionStringer interface {
	ActionToString(a spaces.Value) string
}

// Factory builds a fresh Backend instance. The adapter re-invokes it to
// remake a faulted backend.
type Factory func() Backend

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register binds an environment name to its factory. Sample envs call
// this from init; registering a duplicate name panics.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[name]; ok {
		panic(fmt.Sprintf("env: %q registered twice", name))
	}
	registry[name] = f
}

// Lookup returns the factory for a registered name.
func Lookup(name string) (Factory, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("env: %q is not registered", name)
	}
	return f, nil
}

// Names returns the registered environment names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Make builds the EnvRun for a config using the registered factory.
func Make(cfg *Config) (*EnvRun, error) {
	f, err := Lookup(cfg.Name)
	if err != nil {
		return nil, err
	}
	return New(cfg, f), nil
}
