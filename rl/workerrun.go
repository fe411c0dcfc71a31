package rl

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/pocokhc/simple-rl/env"
	"github.com/pocokhc/simple-rl/spaces"
)

// WorkerRun mounts one Worker on one environment adapter and runs the
// conversion boundary between them.
//
// The run keeps the algorithm one step behind the environment: the
// transition hook for step N fires at the start of the policy call for
// step N+1, once every player in between has acted and the controlled
// player's reward for the whole interval is known. When the episode
// ends the pending transition is flushed immediately instead, so the
// terminal state is never lost.
type WorkerRun struct {
	cfg    *Config
	worker Worker
	e      *env.EnvRun
	ctx    *RunContext

	procs    episodeChain
	starter  RunStarter
	ender    RunEnder
	renderer WorkerRenderer

	rng *rand.Rand

	hasStart    bool
	isReset     bool
	playerIndex int

	state      spaces.Value
	prevState  spaces.Value
	prevAction spaces.Value
	reward     float64
	stepReward float64
	done       env.DoneType

	recent      []spaces.Value
	prevInvalid []spaces.Value
	invalid     []spaces.Value

	totalStep int
	info      Info
}

// NewWorkerRun mounts worker on e. The config is resolved against e if
// Setup has not run yet.
func NewWorkerRun(cfg *Config, worker Worker, e *env.EnvRun) (*WorkerRun, error) {
	if cfg == nil || worker == nil || e == nil {
		return nil, fmt.Errorf("rl: worker run needs a config, a worker, and an environment")
	}
	if !cfg.IsSetup() {
		if err := cfg.Setup(e); err != nil {
			return nil, err
		}
	}
	w := &WorkerRun{
		cfg:    cfg,
		worker: worker,
		e:      e,
		procs:  resolveEpisodeProcessors(cfg.EpisodeProcessors),
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9E3779B97F4A7C15)),
		done:   env.DoneReset,
		info:   Info{},
	}
	w.starter, _ = worker.(RunStarter)
	w.ender, _ = worker.(RunEnder)
	w.renderer, _ = worker.(WorkerRenderer)
	return w, nil
}

// OnStart binds the run context and fires the worker's run-level setup.
// A non-negative context seed reseeds the sampling source.
func (w *WorkerRun) OnStart(ctx *RunContext) error {
	if ctx == nil {
		ctx = NewRunContext()
	}
	w.ctx = ctx
	if ctx.Seed >= 0 {
		w.rng = rand.New(rand.NewPCG(uint64(ctx.Seed), 0x9E3779B97F4A7C15))
	}
	if w.starter != nil {
		if err := w.starter.OnStart(w, ctx); err != nil {
			return err
		}
	}
	w.hasStart = true
	return nil
}

// OnReset primes the episode state for the controlled player. The
// observation window is filled with dummy frames; the worker's own
// OnReset hook is deferred to the first Policy call, when the real
// reset observation is available.
func (w *WorkerRun) OnReset(playerIndex int) error {
	if !w.hasStart {
		return ErrNotStarted
	}
	w.playerIndex = playerIndex
	w.isReset = false
	w.done = env.DoneNone
	w.info = Info{}

	w.recent = make([]spaces.Value, w.cfg.WindowLength)
	for i := range w.recent {
		w.recent[i] = w.cfg.dummyOneStep.Clone()
	}
	w.state = w.stateEncode(w.cfg.dummyOneStep.Clone(), w.e, true, true)
	w.prevState = w.state
	w.prevAction = w.zeroAction()
	w.reward = 0
	w.stepReward = 0
	w.setInvalidActions()
	for _, h := range w.procs.reset {
		h.OnEpisodeReset(w)
	}
	return nil
}

// Policy returns the environment-native action for the current state.
//
// The first call after OnReset encodes the reset observation and fires
// the worker's OnReset hook; every later call first flushes the pending
// transition from the previous turn, then asks the worker for an
// action. The action is validated against the configured policy before
// decoding.
func (w *WorkerRun) Policy() (spaces.Value, error) {
	if !w.hasStart {
		return spaces.Value{}, ErrNotStarted
	}
	if !w.isReset {
		w.setInvalidActions()
		w.prevState = w.state
		w.state = w.stateEncode(w.e.State(), w.e, true, false)
		info, err := w.worker.OnReset(w)
		if err != nil {
			return spaces.Value{}, err
		}
		w.info = Info{}
		if info != nil {
			w.info.Merge(info)
		}
		w.isReset = true
	} else {
		if err := w.flushStep(); err != nil {
			return spaces.Value{}, err
		}
	}

	action, info, err := w.worker.Policy(w)
	if err != nil {
		return spaces.Value{}, err
	}
	action, err = w.validatePolicyAction(action)
	if err != nil {
		return spaces.Value{}, err
	}
	w.prevAction = action
	if info != nil {
		w.info.Merge(info)
	}
	return w.actionDecode(action), nil
}

// OnStep accumulates the controlled player's reward for the completed
// environment step. It fires after every environment step, including
// the other players' turns. The worker's transition hook stays deferred
// unless the episode just ended, in which case it is flushed here.
func (w *WorkerRun) OnStep() error {
	if !w.isReset {
		return nil
	}
	w.totalStep++
	w.stepReward += w.e.StepRewards()[w.playerIndex]
	if w.e.Done() {
		return w.flushStep()
	}
	return nil
}

// flushStep completes the deferred transition: refresh the invalid
// actions, advance the observation pair, convert the accumulated
// reward and the done state, and fire the worker's OnStep hook.
func (w *WorkerRun) flushStep() error {
	w.setInvalidActions()
	w.prevState = w.state
	w.state = w.stateEncode(w.e.State(), w.e, true, false)
	w.reward = w.rewardEncode(w.stepReward, w.e)
	w.done = w.doneEncode(w.e.DoneType())
	info, err := w.worker.OnStep(w)
	if err != nil {
		return err
	}
	w.info = Info{}
	if info != nil {
		w.info.Merge(info)
	}
	w.stepReward = 0
	return nil
}

// OnEnd fires the worker's run-level teardown, if it has one.
func (w *WorkerRun) OnEnd() error {
	if w.ender != nil {
		return w.ender.OnEnd(w)
	}
	return nil
}

func (w *WorkerRun) validatePolicyAction(a spaces.Value) (spaces.Value, error) {
	switch {
	case w.cfg.EnableAssertion:
		ok := false
		if w.cfg.EnableActionDecode {
			ok = checkRLAction(w.cfg.ActionType, w.cfg.actionSpace, a)
		} else {
			ok = w.cfg.actionSpace.Check(a)
		}
		if !ok {
			return a, fmt.Errorf("rl: policy returned %s, not a valid %s action", a, w.cfg.ActionType)
		}
	case w.cfg.EnableSanitize:
		if w.cfg.EnableActionDecode {
			a = sanitizeRLAction(w.cfg.ActionType, w.cfg.actionSpace, a)
		} else {
			a = w.cfg.actionSpace.Sanitize(a)
		}
	}
	return a, nil
}

func (w *WorkerRun) setInvalidActions() {
	w.prevInvalid = w.invalid
	raw := w.e.InvalidActions(w.playerIndex)
	inv := make([]spaces.Value, len(raw))
	for i, a := range raw {
		inv[i] = w.actionEncode(a)
	}
	w.invalid = inv
}

// -----------------------------------------------------------------------------
// Conversions
// -----------------------------------------------------------------------------

// stateEncode converts an environment observation into the algorithm's
// representation. Render sources are read from e, which is the passed
// environment rather than the mounted one so that lookahead through
// EnvStep sees the lookahead environment's renders. isDummy passes the
// value through untouched; appendRecent pushes the one-step value into
// the stacking window, while a false value stacks without mutating it.
func (w *WorkerRun) stateEncode(envState spaces.Value, e *env.EnvRun, appendRecent, isDummy bool) spaces.Value {
	var one spaces.Value
	if isDummy {
		one = envState
	} else {
		var sources []spaces.Value
		if w.cfg.ObservationMode.Has(ObsEnv) {
			if w.cfg.envObsFlatten {
				sources = append(sources, envState.Elems...)
			} else {
				sources = append(sources, envState)
			}
		}
		if w.cfg.ObservationMode.Has(ObsRenderImage) {
			sources = append(sources, spaces.TensorValue(e.RenderImage()))
		}
		if w.cfg.ObservationMode.Has(ObsRenderText) {
			sources = append(sources, spaces.EncodeText(e.RenderText(), w.cfg.RenderTextLength))
		}
		for i := range sources {
			for _, p := range w.procs.obs {
				sources[i] = p.RemapObservation(sources[i], w)
			}
		}
		if w.cfg.composedMulti {
			one = spaces.MultiValue(sources...)
		} else {
			one = sources[0]
		}
		if w.cfg.EnableStateEncode {
			one = encodeObservation(w.cfg.ObservationType, w.cfg.obsSpace, one)
		}
	}

	if w.cfg.WindowLength == 1 {
		return one
	}
	if appendRecent {
		w.recent = append(w.recent[1:], one)
		return spaces.StackValues(w.recent)
	}
	stacked := make([]spaces.Value, 0, w.cfg.WindowLength)
	stacked = append(stacked, w.recent[1:]...)
	stacked = append(stacked, one)
	return spaces.StackValues(stacked)
}

func (w *WorkerRun) actionEncode(a spaces.Value) spaces.Value {
	if !w.cfg.EnableActionDecode {
		return a
	}
	return encodeAction(w.cfg.ActionType, w.cfg.actionSpace, a)
}

func (w *WorkerRun) actionDecode(a spaces.Value) spaces.Value {
	if !w.cfg.EnableActionDecode {
		return a
	}
	return decodeAction(w.cfg.ActionType, w.cfg.actionSpace, a)
}

func (w *WorkerRun) rewardEncode(r float64, e *env.EnvRun) float64 {
	if !w.cfg.EnableRewardEncode {
		return r
	}
	for _, p := range w.procs.reward {
		r = p.RemapReward(r, w)
	}
	return r
}

func (w *WorkerRun) doneEncode(d env.DoneType) env.DoneType {
	if !w.cfg.EnableDoneEncode {
		return d
	}
	for _, p := range w.procs.done {
		d = p.RemapDone(d, w)
	}
	return d
}

func (w *WorkerRun) zeroAction() spaces.Value {
	return w.actionEncode(w.cfg.actionSpace.Zero())
}

// -----------------------------------------------------------------------------
// Invalid actions
// -----------------------------------------------------------------------------

// InvalidActions returns the algorithm-native actions forbidden for the
// controlled player in the current state.
func (w *WorkerRun) InvalidActions() []spaces.Value { return w.invalid }

// PrevInvalidActions returns the forbidden actions of the previous
// state.
func (w *WorkerRun) PrevInvalidActions() []spaces.Value { return w.prevInvalid }

// AddInvalidActions extends the current forbidden set. Duplicates are
// dropped. The addition lasts until the next refresh from the
// environment.
func (w *WorkerRun) AddInvalidActions(actions ...spaces.Value) {
	for _, a := range actions {
		if !spaces.ContainsValue(w.invalid, a) {
			w.invalid = append(w.invalid, a)
		}
	}
}

// ValidActions enumerates the algorithm-native actions not currently
// forbidden. Only enumerable action spaces can be listed; others
// return nil.
func (w *WorkerRun) ValidActions() []spaces.Value {
	if w.cfg.actionSpace.Kind() != spaces.KindDiscrete {
		return nil
	}
	n := w.cfg.actionSpace.Elements()
	out := make([]spaces.Value, 0, n)
	for i := 0; i < n; i++ {
		a := w.actionEncode(w.cfg.actionSpace.DecodeInt(i))
		if !spaces.ContainsValue(w.invalid, a) {
			out = append(out, a)
		}
	}
	return out
}

// SampleAction draws a uniform algorithm-native action honoring the
// current forbidden set.
func (w *WorkerRun) SampleAction() spaces.Value {
	invalid := make([]spaces.Value, len(w.invalid))
	for i, a := range w.invalid {
		invalid[i] = w.actionDecode(a)
	}
	return w.actionEncode(w.cfg.actionSpace.Sample(w.rng, invalid))
}

// SampleActionForEnv draws an environment-native action for the acting
// player.
func (w *WorkerRun) SampleActionForEnv() spaces.Value {
	return w.e.SampleAction(w.e.NextPlayer())
}

// -----------------------------------------------------------------------------
// Lookahead
// -----------------------------------------------------------------------------

// EnvStep advances e by one algorithm-native action and returns the
// resulting algorithm-native observation and per-player rewards. The
// run's own episode state is not touched, so e is usually a restored
// copy used for lookahead. Windowed configs cannot use it, since
// stacking would have to mutate the run's window.
func (w *WorkerRun) EnvStep(e *env.EnvRun, action spaces.Value) (spaces.Value, []float64, error) {
	if w.cfg.WindowLength > 1 {
		return spaces.Value{}, nil, ErrWindowedEnvStep
	}
	if err := e.Step(w.actionDecode(action)); err != nil {
		return spaces.Value{}, nil, err
	}
	next := w.stateEncode(e.State(), e, false, false)
	rewards := make([]float64, len(e.StepRewards()))
	for i, r := range e.StepRewards() {
		rewards[i] = w.rewardEncode(r, e)
	}
	return next, rewards, nil
}

// -----------------------------------------------------------------------------
// Snapshots
// -----------------------------------------------------------------------------

// Backup snapshots the mounted environment. The observation window and
// the pending transition are not part of the payload.
func (w *WorkerRun) Backup() (*env.Snapshot, error) {
	return w.e.Backup()
}

// Restore rewinds the mounted environment to a snapshot. The
// observation window is not restorable from it; windowed configs resume
// on a re-primed dummy window holding only the restored frame, and a
// warning records the gap.
func (w *WorkerRun) Restore(s *env.Snapshot) error {
	if err := w.e.Restore(s); err != nil {
		return err
	}
	if len(w.recent) != w.cfg.WindowLength {
		w.recent = make([]spaces.Value, w.cfg.WindowLength)
	}
	for i := range w.recent {
		w.recent[i] = w.cfg.dummyOneStep.Clone()
	}
	if w.cfg.WindowLength > 1 {
		log.WithField("window", w.cfg.WindowLength).
			Warn("observation window is not part of snapshots, resuming on dummy frames")
	}
	w.setInvalidActions()
	w.prevState = w.state
	w.state = w.stateEncode(w.e.State(), w.e, true, false)
	return nil
}

// -----------------------------------------------------------------------------
// Render
// -----------------------------------------------------------------------------

// RenderText returns the worker's text view of its internals, or ""
// when the algorithm does not provide one.
func (w *WorkerRun) RenderText() string {
	if w.renderer == nil {
		return ""
	}
	return w.renderer.RenderText(w)
}

// -----------------------------------------------------------------------------
// Accessors
// -----------------------------------------------------------------------------

// Worker returns the mounted worker.
func (w *WorkerRun) Worker() Worker { return w.worker }

// Config returns the conversion config.
func (w *WorkerRun) Config() *Config { return w.cfg }

// Env returns the mounted environment adapter.
func (w *WorkerRun) Env() *env.EnvRun { return w.e }

// Context returns the bound run context, nil before OnStart.
func (w *WorkerRun) Context() *RunContext { return w.ctx }

// Training reports whether this run is a learning run.
func (w *WorkerRun) Training() bool { return w.ctx != nil && w.ctx.Training }

// Distributed reports whether this run is part of a distributed run.
func (w *WorkerRun) Distributed() bool { return w.ctx != nil && w.ctx.Distributed }

// Rendering reports whether render calls are enabled for this run.
func (w *WorkerRun) Rendering() bool { return w.ctx != nil && w.ctx.Rendering }

// ActorID returns the distributed actor index, 0 in single-process
// runs.
func (w *WorkerRun) ActorID() int {
	if w.ctx == nil {
		return 0
	}
	return w.ctx.ActorID
}

// PlayerIndex returns the player this run controls.
func (w *WorkerRun) PlayerIndex() int { return w.playerIndex }

// Info returns the diagnostics of the most recent hook.
func (w *WorkerRun) Info() Info { return w.info }

// State returns the current algorithm-native observation.
func (w *WorkerRun) State() spaces.Value { return w.state }

// PrevState returns the observation the previous action was chosen
// from.
func (w *WorkerRun) PrevState() spaces.Value { return w.prevState }

// PrevAction returns the algorithm-native action of the pending
// transition.
func (w *WorkerRun) PrevAction() spaces.Value { return w.prevAction }

// Reward returns the converted reward of the last flushed transition.
func (w *WorkerRun) Reward() float64 { return w.reward }

// Done reports whether the algorithm's view of the episode is over.
func (w *WorkerRun) Done() bool { return w.done != env.DoneNone && w.done != env.DoneReset }

// Terminated reports whether the algorithm's view ended naturally.
func (w *WorkerRun) Terminated() bool { return w.done == env.DoneTerminated }

// DoneType returns the algorithm's view of the terminal state.
func (w *WorkerRun) DoneType() env.DoneType { return w.done }

// DoneReason returns the environment's record of why the episode
// ended.
func (w *WorkerRun) DoneReason() string { return w.e.DoneReason() }

// TotalStep returns the number of environment steps observed across
// all episodes of this run.
func (w *WorkerRun) TotalStep() int { return w.totalStep }
