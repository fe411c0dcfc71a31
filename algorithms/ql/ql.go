// Package ql implements tabular Q-learning.
//
// The worker follows an epsilon-greedy policy over the Q-values of the
// current observation, masked by the forbidden actions, and records one
// experience per transition. The trainer samples experiences and
// applies the standard temporal-difference update. States are keyed by
// their observation value, so the algorithm runs on any environment
// whose adapted observation is discrete.
package ql

import (
	"gopkg.in/yaml.v3"

	"github.com/pocokhc/simple-rl/rl"
	"github.com/pocokhc/simple-rl/rl/memory"
)

func init() {
	rl.RegisterAlgorithm("ql", func() rl.Algorithm { return New() })
}

// Config holds the adapter settings and the Q-learning
// hyperparameters.
type Config struct {
	rl.Config `yaml:",inline"`

	// Epsilon is the exploration rate while training.
	Epsilon float64 `yaml:"epsilon"`
	// TestEpsilon is the exploration rate outside training.
	TestEpsilon float64 `yaml:"test_epsilon"`
	// LR is the learning rate of the TD update.
	LR float64 `yaml:"lr"`
	// DiscountRate weights future rewards in the TD target.
	DiscountRate float64 `yaml:"discount_rate"`
	// BatchSize is the number of experiences per Train call; training
	// waits until the memory holds at least this many.
	BatchSize      int `yaml:"batch_size"`
	MemoryCapacity int `yaml:"memory_capacity"`
}

// DefaultConfig returns the hyperparameters the sample environments
// train well with.
func DefaultConfig() *Config {
	return &Config{
		Config:         *rl.DefaultConfig(),
		Epsilon:        0.1,
		TestEpsilon:    0,
		LR:             0.1,
		DiscountRate:   0.9,
		BatchSize:      4,
		MemoryCapacity: 10_000,
	}
}

// Algorithm wires the Q-learning parts together.
type Algorithm struct {
	Cfg *Config
}

// New returns the algorithm with default hyperparameters.
func New() *Algorithm { return &Algorithm{Cfg: DefaultConfig()} }

func (a *Algorithm) Name() string       { return "ql" }
func (a *Algorithm) Config() *rl.Config { return &a.Cfg.Config }

// DecodeParams decodes a run file's algorithm params into Cfg.
func (a *Algorithm) DecodeParams(node *yaml.Node) error { return node.Decode(a.Cfg) }

func (a *Algorithm) MakeParameter() rl.Parameter {
	return &Parameter{cfg: a.Cfg, table: map[string][]float64{}}
}

func (a *Algorithm) MakeMemory() rl.Memory {
	return memory.NewReplay[experience](a.Cfg.MemoryCapacity)
}

func (a *Algorithm) MakeTrainer(p rl.Parameter, m rl.Memory) rl.Trainer {
	return newTrainer(a.Cfg, p.(*Parameter), m.(*memory.Replay[experience]))
}

func (a *Algorithm) MakeWorker(p rl.Parameter, m rl.Memory) rl.Worker {
	return newWorker(a.Cfg, p.(*Parameter), m.(*memory.Replay[experience]))
}
