package rl

import (
	"github.com/pocokhc/simple-rl/env"
	"github.com/pocokhc/simple-rl/spaces"
)

// EpisodeProcessor is one element of the agent-side transform chain.
// Concrete processors additionally implement whichever capabilities
// below they need; the adapter probes once at construction.
type EpisodeProcessor interface {
	Name() string
}

// ObservationRemapper rewrites one observation source before it is
// encoded for the algorithm.
type ObservationRemapper interface {
	RemapObservation(v spaces.Value, w *WorkerRun) spaces.Value
}

// RewardRemapper rewrites the accumulated step reward before it is
// attributed to the controlled player.
type RewardRemapper interface {
	RemapReward(r float64, w *WorkerRun) float64
}

// DoneRemapper rewrites the algorithm's view of the terminal state
// without touching the environment adapter's own done state.
type DoneRemapper interface {
	RemapDone(d env.DoneType, w *WorkerRun) env.DoneType
}

// ResetHook runs at the start of each episode, after the adapter's own
// episode state is primed.
type ResetHook interface {
	OnEpisodeReset(w *WorkerRun)
}

type episodeChain struct {
	obs    []ObservationRemapper
	reward []RewardRemapper
	done   []DoneRemapper
	reset  []ResetHook
}

func resolveEpisodeProcessors(ps []EpisodeProcessor) episodeChain {
	var c episodeChain
	for _, p := range ps {
		if r, ok := p.(ObservationRemapper); ok {
			c.obs = append(c.obs, r)
		}
		if r, ok := p.(RewardRemapper); ok {
			c.reward = append(c.reward, r)
		}
		if r, ok := p.(DoneRemapper); ok {
			c.done = append(c.done, r)
		}
		if r, ok := p.(ResetHook); ok {
			c.reset = append(c.reset, r)
		}
	}
	return c
}
