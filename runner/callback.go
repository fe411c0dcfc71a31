package runner

// Callback is one observer of a run. Concrete callbacks additionally
// implement whichever hook capabilities below they need; the runner
// probes for them once when the run starts.
type Callback interface {
	Name() string
}

// RunBeginner fires after the environment and workers are built, before
// the first episode.
type RunBeginner interface {
	OnRunBegin(run *Run)
}

// RunEnder fires once after the last episode, before teardown.
type RunEnder interface {
	OnRunEnd(run *Run)
}

// EpisodeBeginner fires after reset, before the first policy call.
type EpisodeBeginner interface {
	OnEpisodeBegin(run *Run)
}

// EpisodeEnder fires when an episode reaches a terminal status,
// including aborts.
type EpisodeEnder interface {
	OnEpisodeEnd(run *Run)
}

// Stepper fires after every environment step and worker flush.
type Stepper interface {
	OnStep(run *Run)
}

// TrainObserver fires after every trainer update that did work;
// run.LastTrainInfo holds what the trainer reported.
type TrainObserver interface {
	OnTrain(run *Run)
}

type callbackChain struct {
	runBegin     []RunBeginner
	runEnd       []RunEnder
	episodeBegin []EpisodeBeginner
	episodeEnd   []EpisodeEnder
	step         []Stepper
	train        []TrainObserver
}

func resolveCallbacks(cbs []Callback) callbackChain {
	var c callbackChain
	for _, cb := range cbs {
		if h, ok := cb.(RunBeginner); ok {
			c.runBegin = append(c.runBegin, h)
		}
		if h, ok := cb.(RunEnder); ok {
			c.runEnd = append(c.runEnd, h)
		}
		if h, ok := cb.(EpisodeBeginner); ok {
			c.episodeBegin = append(c.episodeBegin, h)
		}
		if h, ok := cb.(EpisodeEnder); ok {
			c.episodeEnd = append(c.episodeEnd, h)
		}
		if h, ok := cb.(Stepper); ok {
			c.step = append(c.step, h)
		}
		if h, ok := cb.(TrainObserver); ok {
			c.train = append(c.train, h)
		}
	}
	return c
}
