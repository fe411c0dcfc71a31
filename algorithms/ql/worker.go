package ql

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/pocokhc/simple-rl/rl"
	"github.com/pocokhc/simple-rl/rl/funcs"
	"github.com/pocokhc/simple-rl/rl/memory"
	"github.com/pocokhc/simple-rl/spaces"
)

// Worker plays epsilon-greedy over the Q-table and feeds the memory.
type Worker struct {
	cfg   *Config
	param *Parameter
	mem   *memory.Replay[experience]
	rng   *rand.Rand

	epsilon float64
}

func newWorker(cfg *Config, p *Parameter, m *memory.Replay[experience]) *Worker {
	return &Worker{
		cfg:     cfg,
		param:   p,
		mem:     m,
		rng:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9E3779B97F4A7C15)),
		epsilon: cfg.Epsilon,
	}
}

// OnStart resolves the exploration rate for the run and applies its
// seed.
func (k *Worker) OnStart(w *rl.WorkerRun, ctx *rl.RunContext) error {
	if ctx.Training {
		k.epsilon = k.cfg.Epsilon
	} else {
		k.epsilon = k.cfg.TestEpsilon
	}
	if ctx.Seed >= 0 {
		k.rng = rand.New(rand.NewPCG(uint64(ctx.Seed), 0x9E3779B97F4A7C15))
	}
	return nil
}

func (k *Worker) OnReset(w *rl.WorkerRun) (rl.Info, error) { return nil, nil }

// Policy explores uniformly over the permitted actions with
// probability epsilon and otherwise plays a random argmax of the
// Q-row.
func (k *Worker) Policy(w *rl.WorkerRun) (spaces.Value, rl.Info, error) {
	q := k.param.Q(w.State().Key())
	invalid := invalidInts(w.InvalidActions())

	var action int
	if k.rng.Float64() < k.epsilon {
		probs := funcs.EpsilonGreedyProbs(q, invalid, 1)
		action = funcs.ChoiceByProbs(k.rng, probs)
	} else {
		action = funcs.RandomMaxIndex(k.rng, q, invalid)
	}
	return spaces.IntValue(action), nil, nil
}

// OnStep stores the finished transition while training.
func (k *Worker) OnStep(w *rl.WorkerRun) (rl.Info, error) {
	if !w.Training() {
		return nil, nil
	}
	k.mem.Add(experience{
		State:   w.PrevState().Key(),
		Next:    w.State().Key(),
		Action:  w.PrevAction().Int,
		Reward:  w.Reward(),
		Done:    w.Terminated(),
		Invalid: invalidInts(w.InvalidActions()),
	})
	return nil, nil
}

// RenderText shows the Q-row of the current observation.
func (k *Worker) RenderText(w *rl.WorkerRun) string {
	q := k.param.Q(w.State().Key())
	invalid := invalidInts(w.InvalidActions())
	best := -1
	for a := range q {
		if containsInt(invalid, a) {
			continue
		}
		if best < 0 || q[a] > q[best] {
			best = a
		}
	}
	if best < 0 {
		best = 0
	}
	return funcs.RenderDiscreteActions(w, best, func(a int) string {
		return fmt.Sprintf("%8.5f", q[a])
	})
}

func invalidInts(vals []spaces.Value) []int {
	if len(vals) == 0 {
		return nil
	}
	out := make([]int, 0, len(vals))
	for _, v := range vals {
		out = append(out, v.Int)
	}
	return out
}
