package rl

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"testing"

	"github.com/pocokhc/simple-rl/env"
	"github.com/pocokhc/simple-rl/spaces"
)

// countBackend is a deterministic counting environment shared by the
// worker adapter tests. The state is a counter, the actions are the
// increments 1..4, and each step adds the chosen increment. The acting
// player is rewarded with the increment, every other player with 0.25.
// The increment equal to count%4+1 is forbidden in every state.
type countBackend struct {
	players     int
	terminateAt int // counter value that ends the episode, 0 = never

	count int
	next  int

	stepCalls int
}

func newCountBackend(players int) *countBackend {
	return &countBackend{players: players}
}

func (b *countBackend) ActionSpace() spaces.Space      { return spaces.NewDiscreteStart(4, 1) }
func (b *countBackend) ObservationSpace() spaces.Space { return spaces.NewDiscreteStart(100000, 0) }
func (b *countBackend) PlayerNum() int                 { return b.players }
func (b *countBackend) NextPlayer() int                { return b.next }
func (b *countBackend) MaxEpisodeSteps() int           { return 0 }

// Reset starts the counter at 7 so the first real observation is
// distinguishable from the dummy frames.
func (b *countBackend) Reset(seed int64) (spaces.Value, error) {
	b.count = 7
	b.next = 0
	return spaces.IntValue(7), nil
}

func (b *countBackend) Step(action spaces.Value) (spaces.Value, []float64, bool, bool, error) {
	b.stepCalls++
	b.count += action.Int
	rewards := make([]float64, b.players)
	for i := range rewards {
		rewards[i] = 0.25
	}
	rewards[b.next] = float64(action.Int)
	b.next = (b.next + 1) % b.players

	terminated := b.terminateAt > 0 && b.count >= b.terminateAt
	return spaces.IntValue(b.count), rewards, terminated, false, nil
}

func (b *countBackend) InvalidActions(player int) []spaces.Value {
	return []spaces.Value{spaces.IntValue(b.count%4 + 1)}
}

type countState struct {
	Count int
	Next  int
}

func (b *countBackend) Backup() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(countState{Count: b.count, Next: b.next}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (b *countBackend) Restore(payload []byte) error {
	var s countState
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&s); err != nil {
		return err
	}
	b.count = s.Count
	b.next = s.Next
	return nil
}

func (b *countBackend) Close() error { return nil }

// renderCountBackend adds renders: the text form of the counter and a
// 2x2 color image whose first channel holds the counter value.
type renderCountBackend struct {
	*countBackend
}

func (b *renderCountBackend) RenderText() string { return fmt.Sprintf("c=%d", b.count) }

func (b *renderCountBackend) RenderImage() spaces.Tensor {
	t := spaces.NewTensor(2, 2, 3)
	t.Data[0] = float32(b.count)
	return t
}

func (b *renderCountBackend) ImageSize() (h, w int) { return 2, 2 }

// scriptWorker plays a scripted action list and records everything its
// hooks observe.
type scriptWorker struct {
	actions  []spaces.Value // consumed one per Policy call, then fallback
	fallback spaces.Value

	starts int
	ends   int

	resetPrev  spaces.Value
	resetState spaces.Value
	resets     int

	polled []spaces.Value // state at each Policy call
	steps  []observedStep
}

type observedStep struct {
	prevState  spaces.Value
	state      spaces.Value
	prevAction spaces.Value
	reward     float64
	done       bool
	doneType   env.DoneType
	invalid    []spaces.Value
}

func newScriptWorker(actions ...spaces.Value) *scriptWorker {
	return &scriptWorker{actions: actions, fallback: spaces.IntValue(0)}
}

func (sw *scriptWorker) OnStart(w *WorkerRun, ctx *RunContext) error {
	sw.starts++
	return nil
}

func (sw *scriptWorker) OnEnd(w *WorkerRun) error {
	sw.ends++
	return nil
}

func (sw *scriptWorker) OnReset(w *WorkerRun) (Info, error) {
	sw.resets++
	sw.resetPrev = w.PrevState()
	sw.resetState = w.State()
	return Info{"reset": sw.resets}, nil
}

func (sw *scriptWorker) Policy(w *WorkerRun) (spaces.Value, Info, error) {
	sw.polled = append(sw.polled, w.State())
	a := sw.fallback
	if len(sw.actions) > 0 {
		a = sw.actions[0]
		sw.actions = sw.actions[1:]
	}
	return a, Info{"polls": len(sw.polled)}, nil
}

func (sw *scriptWorker) OnStep(w *WorkerRun) (Info, error) {
	inv := make([]spaces.Value, len(w.InvalidActions()))
	copy(inv, w.InvalidActions())
	sw.steps = append(sw.steps, observedStep{
		prevState:  w.PrevState(),
		state:      w.State(),
		prevAction: w.PrevAction(),
		reward:     w.Reward(),
		done:       w.Done(),
		doneType:   w.DoneType(),
		invalid:    inv,
	})
	return nil, nil
}

// newCountRun builds a set-up EnvRun over b.
func newCountRun(t *testing.T, b env.Backend) *env.EnvRun {
	t.Helper()
	e := env.New(env.NewConfig("count"), func() env.Backend { return b })
	if err := e.Setup(env.RenderNone); err != nil {
		t.Fatalf("Setup returned error: %v", err)
	}
	return e
}

// newTestAgent wires a scripted worker to a fresh counting environment
// and runs OnStart plus the first episode reset on both sides.
func newTestAgent(t *testing.T, cfg *Config, b env.Backend, actions ...spaces.Value) (*WorkerRun, *scriptWorker, *env.EnvRun) {
	t.Helper()
	e := newCountRun(t, b)
	sw := newScriptWorker(actions...)
	w, err := NewWorkerRun(cfg, sw, e)
	if err != nil {
		t.Fatalf("NewWorkerRun returned error: %v", err)
	}
	if err := w.OnStart(NewRunContext()); err != nil {
		t.Fatalf("OnStart returned error: %v", err)
	}
	if err := e.Reset(-1); err != nil {
		t.Fatalf("Reset returned error: %v", err)
	}
	if err := w.OnReset(0); err != nil {
		t.Fatalf("OnReset returned error: %v", err)
	}
	return w, sw, e
}

// turn advances one full environment turn through the worker: policy,
// env step, on-step.
func turn(t *testing.T, w *WorkerRun, e *env.EnvRun) {
	t.Helper()
	a, err := w.Policy()
	if err != nil {
		t.Fatalf("Policy returned error: %v", err)
	}
	if err := e.Step(a); err != nil {
		t.Fatalf("Step returned error: %v", err)
	}
	if err := w.OnStep(); err != nil {
		t.Fatalf("OnStep returned error: %v", err)
	}
}
