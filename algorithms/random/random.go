// Package random implements the uniform baseline: every move samples
// the permitted actions. It learns nothing, so MakeTrainer returns nil
// and its parameter and memory are empty shells. Useful as an
// opponent, a sanity baseline, and a smoke test for new environments.
package random

import (
	"github.com/pocokhc/simple-rl/rl"
	"github.com/pocokhc/simple-rl/spaces"
)

func init() {
	rl.RegisterAlgorithm("random", func() rl.Algorithm { return New() })
}

// Config only carries the adapter settings.
type Config struct {
	rl.Config `yaml:",inline"`
}

type Algorithm struct {
	Cfg *Config
}

func New() *Algorithm { return &Algorithm{Cfg: &Config{Config: *rl.DefaultConfig()}} }

func (a *Algorithm) Name() string       { return "random" }
func (a *Algorithm) Config() *rl.Config { return &a.Cfg.Config }

func (a *Algorithm) MakeParameter() rl.Parameter { return Parameter{} }
func (a *Algorithm) MakeMemory() rl.Memory       { return Memory{} }

func (a *Algorithm) MakeTrainer(p rl.Parameter, m rl.Memory) rl.Trainer { return nil }
func (a *Algorithm) MakeWorker(p rl.Parameter, m rl.Memory) rl.Worker  { return Worker{} }

// Parameter holds nothing.
type Parameter struct{}

func (Parameter) Backup() ([]byte, error) { return nil, nil }
func (Parameter) Restore(b []byte) error  { return nil }

// Memory stores nothing.
type Memory struct{}

func (Memory) Length() int             { return 0 }
func (Memory) Backup() ([]byte, error) { return nil, nil }
func (Memory) Restore(b []byte) error  { return nil }

// Worker samples a permitted action every turn.
type Worker struct{}

func (Worker) OnReset(w *rl.WorkerRun) (rl.Info, error) { return nil, nil }

func (Worker) Policy(w *rl.WorkerRun) (spaces.Value, rl.Info, error) {
	return w.SampleAction(), nil, nil
}

func (Worker) OnStep(w *rl.WorkerRun) (rl.Info, error) { return nil, nil }
