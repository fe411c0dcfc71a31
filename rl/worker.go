package rl

import (
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/pocokhc/simple-rl/spaces"
)

// Worker is the per-episode decision surface of an algorithm. Hooks
// receive the WorkerRun they are mounted on and read the episode state
// through it; any Info returned is merged into the run's diagnostics.
//
// OnReset fires once per controlled episode, after the adapter's own
// episode state is primed. Policy returns the algorithm-native action
// for the current observation. OnStep fires once per completed
// transition, with PrevState, PrevAction, Reward and Done describing
// it.
type Worker interface {
	OnReset(w *WorkerRun) (Info, error)
	Policy(w *WorkerRun) (spaces.Value, Info, error)
	OnStep(w *WorkerRun) (Info, error)
}

// RunStarter is an optional Worker capability for run-level setup.
// OnStart fires once before the first episode of a run.
type RunStarter interface {
	OnStart(w *WorkerRun, ctx *RunContext) error
}

// RunEnder is an optional Worker capability for run-level teardown.
type RunEnder interface {
	OnEnd(w *WorkerRun) error
}

// WorkerRenderer is an optional Worker capability for a text view of
// the algorithm's internals, shown next to the environment render.
type WorkerRenderer interface {
	RenderText(w *WorkerRun) string
}

// Trainer consumes memory batches and updates the parameter. Train is
// one update; it reports what it did through Info.
type Trainer interface {
	Train() (Info, error)
}

// TrainStarter is an optional Trainer capability, fired once before the
// training loop.
type TrainStarter interface {
	OnTrainStart(ctx *RunContext) error
}

// TrainEnder is an optional Trainer capability, fired once after the
// training loop.
type TrainEnder interface {
	OnTrainEnd() error
}

// Parameter is the learned state of an algorithm. Backup and Restore
// move it across processes and checkpoints as an opaque payload.
type Parameter interface {
	Backup() ([]byte, error)
	Restore(payload []byte) error
}

// ParameterSummarizer is an optional Parameter capability for a
// human-readable summary.
type ParameterSummarizer interface {
	Summary() string
}

// Memory is the experience store an algorithm's worker writes and its
// trainer reads.
type Memory interface {
	// Length returns the number of stored experiences.
	Length() int
	Backup() ([]byte, error)
	Restore(payload []byte) error
}

// BatchSource is an optional Memory capability used by distributed
// actors: DrainBatch removes up to max experiences and returns them as
// one opaque payload for shipment.
type BatchSource interface {
	DrainBatch(max int) ([]byte, error)
}

// BatchSink is an optional Memory capability used by distributed
// trainers: AddBatch ingests a payload produced by DrainBatch.
type BatchSink interface {
	AddBatch(payload []byte) error
}

// Algorithm ties a config to constructors for the four algorithm
// parts. The constructors are cheap; expensive state lives in the
// parts they return.
//
// MakeTrainer may return nil for algorithms that do not learn.
type Algorithm interface {
	Name() string
	Config() *Config
	MakeParameter() Parameter
	MakeMemory() Memory
	MakeTrainer(p Parameter, m Memory) Trainer
	MakeWorker(p Parameter, m Memory) Worker
}

// ParamsDecoder is an optional Algorithm capability: decoding the
// algorithm section of a run file into the algorithm's own
// hyperparameter struct.
type ParamsDecoder interface {
	DecodeParams(node *yaml.Node) error
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

// AlgorithmFactory builds a fresh Algorithm with default
// hyperparameters.
type AlgorithmFactory func() Algorithm

var (
	algoRegistryMu sync.RWMutex
	algoRegistry   = map[string]AlgorithmFactory{}
)

// RegisterAlgorithm binds an algorithm name to its factory. Algorithm
// packages call this from init; registering a duplicate name panics.
func RegisterAlgorithm(name string, f AlgorithmFactory) {
	algoRegistryMu.Lock()
	defer algoRegistryMu.Unlock()
	if _, ok := algoRegistry[name]; ok {
		panic(fmt.Sprintf("rl: algorithm %q registered twice", name))
	}
	algoRegistry[name] = f
}

// LookupAlgorithm returns the factory for a registered name.
func LookupAlgorithm(name string) (AlgorithmFactory, error) {
	algoRegistryMu.RLock()
	defer algoRegistryMu.RUnlock()
	f, ok := algoRegistry[name]
	if !ok {
		return nil, fmt.Errorf("rl: algorithm %q is not registered", name)
	}
	return f, nil
}

// AlgorithmNames returns the registered algorithm names, sorted.
func AlgorithmNames() []string {
	algoRegistryMu.RLock()
	defer algoRegistryMu.RUnlock()
	names := make([]string, 0, len(algoRegistry))
	for n := range algoRegistry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// MakeAlgorithm builds a registered algorithm with default
// hyperparameters.
func MakeAlgorithm(name string) (Algorithm, error) {
	f, err := LookupAlgorithm(name)
	if err != nil {
		return nil, err
	}
	return f(), nil
}
