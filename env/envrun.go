package env

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/pocokhc/simple-rl/spaces"
)

// EnvRun is the single point of truth for one running episode of one
// environment backend. It is driven strictly sequentially: setup, then
// reset, then steps until done, then reset again. It holds no shared
// state and is not safe for concurrent use.
type EnvRun struct {
	config  *Config
	factory Factory
	backend Backend

	// optional backend capabilities, resolved per backend instance
	renderer      Renderer
	directStepper DirectStepper
	actionStr     ActionStringer

	procs      processorChain
	renderMode RenderMode
	isSetup    bool
	closed     bool

	// spaces after processor remapping
	actionSpace      spaces.Space
	observationSpace spaces.Space

	// episode state
	stepNum        int
	state          spaces.Value
	done           DoneType
	doneReason     string
	prevPlayer     int
	nextPlayer     int
	episodeRewards []float64
	stepRewards    []float64
	invalidActions [][]spaces.Value
	t0             time.Time
	isDirectStep   bool
	hasStart       bool

	rngSrc *rand.PCG
	rng    *rand.Rand

	render renderCache
}

// New builds an EnvRun over the factory's backend. Call Setup before
// anything else.
func New(cfg *Config, f Factory) *EnvRun {
	e := &EnvRun{
		config:  cfg,
		factory: f,
		done:    DoneReset,
		rngSrc:  rand.NewPCG(uint64(time.Now().UnixNano()), 0x9E3779B97F4A7C15),
	}
	e.rng = rand.New(e.rngSrc)
	e.bindBackend(f())
	return e
}

func (e *EnvRun) bindBackend(b Backend) {
	e.backend = b
	e.renderer, _ = b.(Renderer)
	e.directStepper, _ = b.(DirectStepper)
	e.actionStr, _ = b.(ActionStringer)
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Setup configures the adapter once per backend lifetime: binds the
// render mode, resolves processor capabilities, and fixes the action
// and observation spaces (after processor remapping).
func (e *EnvRun) Setup(mode RenderMode) error {
	if e.closed {
		return ErrClosed
	}
	if e.config.EnableAssertion && e.config.EnableSanitize {
		return fmt.Errorf("env: assertion and sanitization modes are mutually exclusive")
	}
	e.renderMode = mode
	e.procs = resolveProcessors(e.config.Processors)

	e.actionSpace = e.backend.ActionSpace()
	e.observationSpace = e.backend.ObservationSpace()
	for _, p := range e.procs.space {
		e.actionSpace = p.RemapActionSpace(e.actionSpace, e)
		e.observationSpace = p.RemapObservationSpace(e.observationSpace, e)
	}
	e.isSetup = true
	return nil
}

// Reset starts a new episode. A seed >= 0 makes the episode
// deterministic: it seeds both the backend and the adapter's own RNG.
func (e *EnvRun) Reset(seed int64) error {
	if e.closed {
		return ErrClosed
	}
	if !e.isSetup {
		return ErrNotSetup
	}
	if seed >= 0 {
		e.rngSrc.Seed(uint64(seed), 0x9E3779B97F4A7C15)
	}

	state, err := e.backend.Reset(seed)
	if err != nil {
		return fmt.Errorf("env: backend reset: %w", err)
	}

	n := e.backend.PlayerNum()
	e.stepNum = 0
	e.episodeRewards = make([]float64, n)
	e.stepRewards = make([]float64, n)
	e.isDirectStep = false
	e.done = DoneNone
	e.doneReason = ""

	if e.config.RandomNoopMax > 0 {
		state, err = e.applyStartNoops(state)
		if err != nil {
			return err
		}
	}

	state, err = e.validateState(state)
	if err != nil {
		return err
	}
	for _, p := range e.procs.reset {
		state = p.RemapReset(state, e)
	}
	e.state = state

	e.nextPlayer = e.backend.NextPlayer()
	e.prevPlayer = e.nextPlayer
	e.invalidActions = make([][]spaces.Value, n)
	for p := 0; p < n; p++ {
		e.invalidActions[p] = e.computeInvalidActions(p)
	}

	e.t0 = time.Now()
	e.hasStart = true
	e.render.invalidate()
	return nil
}

// applyStartNoops advances the fresh episode by a random number of
// default actions to randomize the start state. The warm-up must not
// hit a terminal frame; an environment that can end this early is not
// usable with start randomization.
func (e *EnvRun) applyStartNoops(state spaces.Value) (spaces.Value, error) {
	noop := e.backend.ActionSpace().Zero()
	k := e.rng.IntN(e.config.RandomNoopMax + 1)
	for i := 0; i < k; i++ {
		st, _, term, trunc, err := e.backend.Step(noop)
		if err != nil {
			return state, fmt.Errorf("env: start noop: %w", err)
		}
		if term || trunc {
			return state, fmt.Errorf("env: episode ended during start noop %d of %d", i+1, k)
		}
		state = st
	}
	return state, nil
}

// Step advances the episode by one adapter step for the acting player:
// the action pipeline runs, the backend steps 1+frameskip native frames
// with rewards summed, the step pipeline runs, and done/invalid-action
// bookkeeping updates. A backend fault does not surface as an error;
// it remakes the backend and ends the episode as TRUNCATED with reason
// "step exception".
func (e *EnvRun) Step(action spaces.Value) error {
	if e.closed {
		return ErrClosed
	}
	if !e.isSetup {
		return ErrNotSetup
	}
	if !e.hasStart {
		return ErrNotReset
	}
	if e.done != DoneNone {
		return ErrEpisodeDone
	}
	if e.isDirectStep && e.directStepper != nil && !e.directStepper.CanSimulateFromDirectStep() {
		log.Warn("step after direct step is not supported by this backend")
		return ErrCannotSimulate
	}

	for _, p := range e.procs.action {
		action = p.RemapAction(action, e)
	}
	action, err := e.validateAction(action)
	if err != nil {
		return err
	}

	e.prevPlayer = e.nextPlayer

	state, rewards, terminated, truncated, err := e.guardedStep(action)
	if err != nil {
		e.handleStepFault(err)
		return nil
	}
	rewards = append([]float64(nil), rewards...)

	for i := 0; i < e.config.Frameskip && !terminated && !truncated; i++ {
		st, rw, term, trunc, err := e.guardedStep(action)
		if err != nil {
			e.handleStepFault(err)
			return nil
		}
		state = st
		accumulate(rewards, rw)
		terminated, truncated = term, trunc
	}

	return e.recordStep(state, rewards, terminated, truncated)
}

// guardedStep calls the backend's Step with panic containment, so a
// crashing backend degrades into an ordinary step fault.
func (e *EnvRun) guardedStep(action spaces.Value) (st spaces.Value, rw []float64, term, trunc bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("env: backend panic: %v", r)
		}
	}()
	return e.backend.Step(action)
}

// handleStepFault discards the faulted backend, builds a fresh one from
// the factory, and ends the episode. The trajectory up to this step
// stays valid; the episode is not retried.
func (e *EnvRun) handleStepFault(err error) {
	log.WithField("env", e.config.Name).Errorf("backend step fault, remaking: %v", err)
	if cerr := e.backend.Close(); cerr != nil {
		log.Warnf("closing faulted backend: %v", cerr)
	}
	e.bindBackend(e.factory())
	e.done = DoneTruncated
	e.doneReason = "step exception"
	e.render.invalidate()
}

// recordStep applies the step pipeline and hands the result to the
// common step tail.
func (e *EnvRun) recordStep(state spaces.Value, rewards []float64, terminated, truncated bool) error {
	for _, p := range e.procs.step {
		state, rewards, terminated, truncated = p.RemapStep(state, rewards, terminated, truncated, e)
	}
	state, rewards, err := e.validateStepResult(state, rewards)
	if err != nil {
		return err
	}
	next, err := e.validateNextPlayer(e.backend.NextPlayer())
	if err != nil {
		return err
	}
	done := DoneNone
	switch {
	case truncated:
		done = DoneTruncated
	case terminated:
		done = DoneTerminated
	}
	return e.finishStep(state, rewards, done, next)
}

// finishStep is the bookkeeping tail shared by pull stepping and direct
// injection: records the result, refreshes the acting player's invalid
// actions, and applies the adapter-side truncation checks.
func (e *EnvRun) finishStep(state spaces.Value, rewards []float64, done DoneType, nextPlayer int) error {
	e.state = state
	e.stepRewards = rewards
	e.done = done
	e.nextPlayer = nextPlayer
	e.invalidActions[nextPlayer] = e.computeInvalidActions(nextPlayer)
	e.stepNum++
	accumulate(e.episodeRewards, rewards)

	if e.done == DoneNone {
		if err := e.checkActorHasActions(nextPlayer); err != nil {
			return err
		}
		switch {
		case e.maxEpisodeSteps() > 0 && e.stepNum >= e.maxEpisodeSteps():
			e.done = DoneTruncated
			e.doneReason = "episode step over"
		case e.config.EpisodeTimeout > 0 && time.Since(e.t0) > e.config.EpisodeTimeout:
			e.done = DoneTruncated
			e.doneReason = "timeout"
		}
	}
	e.render.invalidate()
	return nil
}

// DirectStep injects one externally produced event into the backend.
// The backend reports whether the event started a new episode; the
// adapter then runs the normal step tail with zero rewards. The done
// state is forced back to NONE on every injection because an
// event-driven backend has no pull boundary to announce its end on.
func (e *EnvRun) DirectStep(args ...any) error {
	if e.closed {
		return ErrClosed
	}
	if !e.isSetup {
		return ErrNotSetup
	}
	if e.directStepper == nil {
		return ErrNoDirectStep
	}

	started, state, player, err := e.directStepper.DirectStep(args...)
	if err != nil {
		return fmt.Errorf("env: direct step: %w", err)
	}
	state, err = e.validateState(state)
	if err != nil {
		return err
	}
	player, err = e.validateNextPlayer(player)
	if err != nil {
		return err
	}

	e.isDirectStep = true
	if started || !e.hasStart {
		n := e.backend.PlayerNum()
		e.stepNum = 0
		e.episodeRewards = make([]float64, n)
		e.stepRewards = make([]float64, n)
		e.invalidActions = make([][]spaces.Value, n)
		e.doneReason = ""
		e.t0 = time.Now()
		e.hasStart = true
	}
	return e.finishStep(state, make([]float64, e.backend.PlayerNum()), DoneNone, player)
}

// AbortEpisode forces the episode into TRUNCATED. The run loop observes
// the done state at the next step boundary and resets.
func (e *EnvRun) AbortEpisode() {
	if e.done != DoneNone {
		return
	}
	e.done = DoneTruncated
	e.doneReason = "call abort_episode"
}

// Close releases the backend. The adapter cannot be used afterwards.
func (e *EnvRun) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.backend.Close()
}

// -----------------------------------------------------------------------------
// Invalid actions
// -----------------------------------------------------------------------------

// computeInvalidActions reads the backend's forbidden actions for the
// player and runs the invalid-action pipeline over them.
func (e *EnvRun) computeInvalidActions(player int) []spaces.Value {
	invalid := e.backend.InvalidActions(player)
	for _, p := range e.procs.invalid {
		invalid = p.RemapInvalidActions(invalid, player, e)
	}
	return dedupeValues(invalid)
}

// AddInvalidActions lets a collaborator forbid extra actions for a
// player without backend cooperation. Only enumerable action spaces are
// supported, duplicates are dropped, and masking every action is
// rejected so an actor always keeps a legal move.
func (e *EnvRun) AddInvalidActions(player int, actions ...spaces.Value) error {
	if e.actionSpace.Elements() == 0 {
		return fmt.Errorf("env: invalid actions require an enumerable action space")
	}
	if player < 0 || player >= len(e.invalidActions) {
		return fmt.Errorf("env: player %d out of range", player)
	}
	merged := e.invalidActions[player]
	for _, a := range actions {
		if !spaces.ContainsValue(merged, a) {
			merged = append(merged, a.Clone())
		}
	}
	if len(merged) >= e.actionSpace.Elements() {
		return fmt.Errorf("env: all %d actions would be invalid for player %d",
			e.actionSpace.Elements(), player)
	}
	e.invalidActions[player] = merged
	return nil
}

// InvalidActions returns the forbidden actions for the player.
func (e *EnvRun) InvalidActions(player int) []spaces.Value {
	if player < 0 || player >= len(e.invalidActions) {
		return nil
	}
	return e.invalidActions[player]
}

// ValidActions enumerates the legal actions for the player. Only
// enumerable action spaces can; others return nil.
func (e *EnvRun) ValidActions(player int) []spaces.Value {
	n := e.actionSpace.Elements()
	if n == 0 {
		return nil
	}
	invalid := e.InvalidActions(player)
	valid := make([]spaces.Value, 0, n)
	for i := 0; i < n; i++ {
		v := e.actionSpace.DecodeInt(i)
		if !spaces.ContainsValue(invalid, v) {
			valid = append(valid, v)
		}
	}
	return valid
}

// SampleAction draws a uniform valid action for the player from the
// adapter's episode RNG.
func (e *EnvRun) SampleAction(player int) spaces.Value {
	return e.actionSpace.Sample(e.rng, e.InvalidActions(player))
}

// checkActorHasActions enforces the standing invariant that the acting
// player retains at least one legal action.
func (e *EnvRun) checkActorHasActions(player int) error {
	n := e.actionSpace.Elements()
	if n == 0 {
		return nil
	}
	if len(e.invalidActions[player]) < n {
		return nil
	}
	if e.config.EnableAssertion {
		return fmt.Errorf("env: player %d has no valid action left", player)
	}
	log.Warnf("player %d has no valid action left", player)
	return nil
}

func dedupeValues(vs []spaces.Value) []spaces.Value {
	out := make([]spaces.Value, 0, len(vs))
	for _, v := range vs {
		if !spaces.ContainsValue(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// Accessors
// -----------------------------------------------------------------------------

// State returns the current observation. Treat it as read-only.
func (e *EnvRun) State() spaces.Value { return e.state }

// Done reports whether the episode cannot step further.
func (e *EnvRun) Done() bool { return e.done != DoneNone }

// DoneType returns the terminal status.
func (e *EnvRun) DoneType() DoneType { return e.done }

// DoneReason returns the human-readable cause of the terminal status.
func (e *EnvRun) DoneReason() string { return e.doneReason }

// StepNum returns the number of completed adapter steps this episode.
func (e *EnvRun) StepNum() int { return e.stepNum }

// NextPlayer returns the player about to act.
func (e *EnvRun) NextPlayer() int { return e.nextPlayer }

// PrevPlayer returns the player who acted last.
func (e *EnvRun) PrevPlayer() int { return e.prevPlayer }

// PlayerNum returns the backend's player count.
func (e *EnvRun) PlayerNum() int { return e.backend.PlayerNum() }

// EpisodeRewards returns the per-player reward totals for the episode.
func (e *EnvRun) EpisodeRewards() []float64 { return e.episodeRewards }

// StepRewards returns the per-player rewards of the last step.
func (e *EnvRun) StepRewards() []float64 { return e.stepRewards }

// Reward returns the last step's reward for the player who acted.
func (e *EnvRun) Reward() float64 {
	if e.prevPlayer < 0 || e.prevPlayer >= len(e.stepRewards) {
		return 0
	}
	return e.stepRewards[e.prevPlayer]
}

// Elapsed returns the episode's wall-clock age.
func (e *EnvRun) Elapsed() time.Duration {
	if !e.hasStart {
		return 0
	}
	return time.Since(e.t0)
}

// ActionSpace returns the action space after processor remapping.
func (e *EnvRun) ActionSpace() spaces.Space { return e.actionSpace }

// ObservationSpace returns the observation space after processor
// remapping.
func (e *EnvRun) ObservationSpace() spaces.Space { return e.observationSpace }

// MaxEpisodeSteps returns the effective step budget, or 0 for none.
func (e *EnvRun) MaxEpisodeSteps() int { return e.maxEpisodeSteps() }

func (e *EnvRun) maxEpisodeSteps() int {
	if e.config.MaxEpisodeSteps > 0 {
		return e.config.MaxEpisodeSteps
	}
	return e.backend.MaxEpisodeSteps()
}

// Config returns the adapter's config.
func (e *EnvRun) Config() *Config { return e.config }

// Backend exposes the wrapped backend for collaborators that need the
// raw contract, such as lookahead simulation.
func (e *EnvRun) Backend() Backend { return e.backend }

// IsDirectStep reports whether the current episode was advanced by
// direct injection.
func (e *EnvRun) IsDirectStep() bool { return e.isDirectStep }

// ActionToString renders an action for humans, via the backend when it
// can.
func (e *EnvRun) ActionToString(a spaces.Value) string {
	if e.actionStr != nil {
		return e.actionStr.ActionToString(a)
	}
	return a.String()
}

func accumulate(dst []float64, src []float64) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		dst[i] += src[i]
	}
}
