package ql

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/pocokhc/simple-rl/rl"
	"github.com/pocokhc/simple-rl/rl/memory"
)

// Trainer applies the TD update to sampled experiences.
type Trainer struct {
	cfg   *Config
	param *Parameter
	mem   *memory.Replay[experience]
	rng   *rand.Rand

	trainCount int
}

func newTrainer(cfg *Config, p *Parameter, m *memory.Replay[experience]) *Trainer {
	return &Trainer{
		cfg:   cfg,
		param: p,
		mem:   m,
		rng:   rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9E3779B97F4A7C15)),
	}
}

// Train performs one batch update. It is a no-op until the memory holds
// a full batch.
func (t *Trainer) Train() (rl.Info, error) {
	if t.mem.Length() < t.cfg.BatchSize {
		return nil, nil
	}

	batch := t.mem.Sample(t.rng, t.cfg.BatchSize)
	var tdSum float64
	for _, x := range batch {
		target := x.Reward
		if !x.Done {
			target += t.cfg.DiscountRate * maxValid(t.param.Q(x.Next), x.Invalid)
		}
		q := t.param.Q(x.State)
		td := target - q[x.Action]
		q[x.Action] += t.cfg.LR * td
		tdSum += math.Abs(td)
	}
	t.trainCount++

	return rl.Info{
		"td_error": tdSum / float64(len(batch)),
		"train":    t.trainCount,
		"q_states": t.param.States(),
	}, nil
}

// maxValid returns the largest Q-value over the permitted actions, or 0
// when every action is forbidden.
func maxValid(q []float64, invalid []int) float64 {
	best := math.Inf(-1)
	for a, v := range q {
		if containsInt(invalid, a) {
			continue
		}
		if v > best {
			best = v
		}
	}
	if math.IsInf(best, -1) {
		return 0
	}
	return best
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
