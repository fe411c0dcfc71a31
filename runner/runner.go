// Package runner drives environments and workers through complete
// training and evaluation runs: the reset/policy/step loop across
// players, trainer interleaving, run-level limits, callbacks, and
// reward aggregation.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pocokhc/simple-rl/env"
	"github.com/pocokhc/simple-rl/rl"
)

var log = logrus.WithField("component", "runner")

// Options bound one run. The zero value plays a single unseeded,
// non-rendered episode.
type Options struct {
	// Limits. A run stops at whichever of max episodes, max steps, or
	// timeout it reaches first; with none set it plays one episode.
	MaxEpisodes int
	MaxSteps    int
	Timeout     time.Duration

	// Training marks the run as a learning run; workers see it through
	// the run context. Train forces it on.
	Training bool
	// Seed makes the run deterministic: episode i resets the
	// environment with Seed+i and the workers derive their streams
	// from Seed. Zero leaves the run unseeded.
	Seed int64
	// RenderMode is handed to the environment's Setup.
	RenderMode env.RenderMode
	// Opponents names registered algorithms for seats 1..N-1 of a
	// multi-player environment. Unnamed seats share the run's own
	// algorithm, parameter and memory.
	Opponents []string

	Callbacks []Callback
}

func (o Options) normalized() Options {
	if o.MaxEpisodes <= 0 && o.MaxSteps <= 0 && o.Timeout <= 0 {
		o.MaxEpisodes = 1
	}
	if o.Seed == 0 {
		o.Seed = -1
	}
	return o
}

// Run is the live state handed to callbacks. Callbacks treat it as
// read-only.
type Run struct {
	Context   *rl.RunContext
	Env       *env.EnvRun
	Workers   []*rl.WorkerRun
	Trainer   rl.Trainer
	Parameter rl.Parameter
	Memory    rl.Memory

	// Episodes counts completed episodes, Steps environment steps and
	// TrainCount trainer updates that did work. LastTrainInfo is what
	// the latest update reported.
	Episodes      int
	Steps         int
	TrainCount    int
	LastTrainInfo rl.Info
	StartTime     time.Time

	episodeRewards [][]float64
}

// Runner binds an environment config to an algorithm and owns the
// parameter and memory the runs share.
type Runner struct {
	envCfg *env.Config
	algo   rl.Algorithm
	param  rl.Parameter
	mem    rl.Memory
}

// New builds a runner with a fresh parameter and memory.
func New(envCfg *env.Config, algo rl.Algorithm) *Runner {
	return &Runner{
		envCfg: envCfg,
		algo:   algo,
		param:  algo.MakeParameter(),
		mem:    algo.MakeMemory(),
	}
}

func (r *Runner) Algorithm() rl.Algorithm { return r.algo }
func (r *Runner) Parameter() rl.Parameter { return r.param }
func (r *Runner) Memory() rl.Memory       { return r.mem }
func (r *Runner) EnvConfig() *env.Config  { return r.envCfg }

// Play runs episodes without touching the trainer.
func (r *Runner) Play(ctx context.Context, opts Options) (*RunSummary, error) {
	return r.run(ctx, opts, false)
}

// Train runs episodes and interleaves one trainer update per
// environment step.
func (r *Runner) Train(ctx context.Context, opts Options) (*RunSummary, error) {
	opts.Training = true
	return r.run(ctx, opts, true)
}

func (r *Runner) run(ctx context.Context, opts Options, train bool) (*RunSummary, error) {
	opts = opts.normalized()

	e, err := env.Make(r.envCfg)
	if err != nil {
		return nil, err
	}
	defer e.Close()
	if err := e.Setup(opts.RenderMode); err != nil {
		return nil, err
	}

	runCtx := rl.NewRunContext()
	runCtx.Training = opts.Training
	runCtx.Rendering = opts.RenderMode != env.RenderNone
	runCtx.Seed = opts.Seed

	workers, err := r.buildWorkers(e, opts)
	if err != nil {
		return nil, err
	}

	var trainer rl.Trainer
	if train {
		trainer = r.algo.MakeTrainer(r.param, r.mem)
		if trainer == nil {
			return nil, fmt.Errorf("runner: algorithm %q does not train", r.algo.Name())
		}
	}

	run := &Run{
		Context:   runCtx,
		Env:       e,
		Workers:   workers,
		Trainer:   trainer,
		Parameter: r.param,
		Memory:    r.mem,
		StartTime: time.Now(),
	}
	cbs := resolveCallbacks(opts.Callbacks)

	for _, w := range workers {
		if err := w.OnStart(runCtx); err != nil {
			return nil, err
		}
	}
	if ts, ok := trainer.(rl.TrainStarter); ok {
		if err := ts.OnTrainStart(runCtx); err != nil {
			return nil, err
		}
	}
	log.WithFields(logrus.Fields{
		"run":      runCtx.RunID,
		"env":      r.envCfg.Name,
		"algo":     r.algo.Name(),
		"training": opts.Training,
	}).Info("run start")
	for _, cb := range cbs.runBegin {
		cb.OnRunBegin(run)
	}

	runErr := r.episodes(ctx, run, cbs, opts)

	for _, cb := range cbs.runEnd {
		cb.OnRunEnd(run)
	}
	if te, ok := trainer.(rl.TrainEnder); ok {
		if err := te.OnTrainEnd(); err != nil {
			log.Warnf("trainer end: %v", err)
		}
	}
	for _, w := range workers {
		if err := w.OnEnd(); err != nil {
			log.Warnf("worker end: %v", err)
		}
	}

	if runErr != nil {
		return nil, runErr
	}
	s := summarize(run)
	log.WithFields(logrus.Fields{
		"run":      runCtx.RunID,
		"episodes": s.Episodes,
		"steps":    s.Steps,
	}).Info("run end")
	return s, nil
}

// episodes loops full episodes until a limit or the context stops the
// run.
func (r *Runner) episodes(ctx context.Context, run *Run, cbs callbackChain, opts Options) error {
	for {
		seed := int64(-1)
		if opts.Seed >= 0 {
			seed = opts.Seed + int64(run.Episodes)
		}
		if err := run.Env.Reset(seed); err != nil {
			return err
		}
		for i, w := range run.Workers {
			if err := w.OnReset(i); err != nil {
				return err
			}
		}
		for _, cb := range cbs.episodeBegin {
			cb.OnEpisodeBegin(run)
		}

		stop, err := r.episode(ctx, run, cbs, opts)
		if err != nil {
			return err
		}

		run.Episodes++
		run.episodeRewards = append(run.episodeRewards,
			append([]float64(nil), run.Env.EpisodeRewards()...))
		for _, cb := range cbs.episodeEnd {
			cb.OnEpisodeEnd(run)
		}

		switch {
		case stop:
			return nil
		case opts.MaxEpisodes > 0 && run.Episodes >= opts.MaxEpisodes:
			return nil
		case opts.MaxSteps > 0 && run.Steps >= opts.MaxSteps:
			return nil
		case opts.Timeout > 0 && time.Since(run.StartTime) >= opts.Timeout:
			return nil
		case ctx.Err() != nil:
			return nil
		}
	}
}

// episode steps one episode to its end. stop reports that a run-level
// limit aborted it.
func (r *Runner) episode(ctx context.Context, run *Run, cbs callbackChain, opts Options) (stop bool, err error) {
	e := run.Env
	for !e.Done() {
		if ctx.Err() != nil {
			e.AbortEpisode()
			return true, nil
		}

		action, err := run.Workers[e.NextPlayer()].Policy()
		if err != nil {
			return false, err
		}
		if err := e.Step(action); err != nil {
			return false, err
		}
		for _, w := range run.Workers {
			if err := w.OnStep(); err != nil {
				return false, err
			}
		}
		run.Steps++
		for _, cb := range cbs.step {
			cb.OnStep(run)
		}

		if run.Trainer != nil {
			info, err := run.Trainer.Train()
			if err != nil {
				return false, err
			}
			if info != nil {
				run.TrainCount++
				run.LastTrainInfo = info
				for _, cb := range cbs.train {
					cb.OnTrain(run)
				}
			}
		}

		if !e.Done() {
			if opts.MaxSteps > 0 && run.Steps >= opts.MaxSteps {
				e.AbortEpisode()
				return true, nil
			}
			if opts.Timeout > 0 && time.Since(run.StartTime) >= opts.Timeout {
				e.AbortEpisode()
				return true, nil
			}
		}
	}
	return false, nil
}

// TrainOnly drives the trainer against the memory without an
// environment, for memory-fed training. MaxSteps bounds updates; with
// no limit set the loop runs until the context ends.
func (r *Runner) TrainOnly(ctx context.Context, opts Options) (*RunSummary, error) {
	// The algorithm's spaces must be bound even though no episode will
	// run; a throwaway environment provides them.
	if !r.algo.Config().IsSetup() {
		e, err := env.Make(r.envCfg)
		if err != nil {
			return nil, err
		}
		if err := e.Setup(env.RenderNone); err != nil {
			e.Close()
			return nil, err
		}
		err = r.algo.Config().Setup(e)
		e.Close()
		if err != nil {
			return nil, err
		}
	}

	trainer := r.algo.MakeTrainer(r.param, r.mem)
	if trainer == nil {
		return nil, fmt.Errorf("runner: algorithm %q does not train", r.algo.Name())
	}

	runCtx := rl.NewRunContext()
	runCtx.Training = true
	if opts.Seed != 0 {
		runCtx.Seed = opts.Seed
	}

	run := &Run{
		Context:   runCtx,
		Trainer:   trainer,
		Parameter: r.param,
		Memory:    r.mem,
		StartTime: time.Now(),
	}
	cbs := resolveCallbacks(opts.Callbacks)

	if ts, ok := trainer.(rl.TrainStarter); ok {
		if err := ts.OnTrainStart(runCtx); err != nil {
			return nil, err
		}
	}
	for _, cb := range cbs.runBegin {
		cb.OnRunBegin(run)
	}

	for {
		if ctx.Err() != nil {
			break
		}
		info, err := trainer.Train()
		if err != nil {
			return nil, err
		}
		if info == nil {
			// Memory starved; back off instead of spinning.
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Millisecond):
			}
		} else {
			run.TrainCount++
			run.LastTrainInfo = info
			for _, cb := range cbs.train {
				cb.OnTrain(run)
			}
		}
		if opts.MaxSteps > 0 && run.TrainCount >= opts.MaxSteps {
			break
		}
		if opts.Timeout > 0 && time.Since(run.StartTime) >= opts.Timeout {
			break
		}
	}

	for _, cb := range cbs.runEnd {
		cb.OnRunEnd(run)
	}
	if te, ok := trainer.(rl.TrainEnder); ok {
		if err := te.OnTrainEnd(); err != nil {
			log.Warnf("trainer end: %v", err)
		}
	}
	return summarize(run), nil
}

// buildWorkers mounts one WorkerRun per seat. Named opponent seats get
// their own algorithm, parameter and memory.
func (r *Runner) buildWorkers(e *env.EnvRun, opts Options) ([]*rl.WorkerRun, error) {
	n := e.PlayerNum()
	workers := make([]*rl.WorkerRun, 0, n)
	for i := 0; i < n; i++ {
		algo, p, m := r.algo, r.param, r.mem
		if i > 0 && i-1 < len(opts.Opponents) && opts.Opponents[i-1] != "" {
			other, err := rl.MakeAlgorithm(opts.Opponents[i-1])
			if err != nil {
				return nil, fmt.Errorf("runner: opponent seat %d: %w", i, err)
			}
			algo = other
			p = other.MakeParameter()
			m = other.MakeMemory()
		}
		w, err := rl.NewWorkerRun(algo.Config(), algo.MakeWorker(p, m), e)
		if err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	return workers, nil
}
