package runner

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/pocokhc/simple-rl/env"
	"github.com/pocokhc/simple-rl/envs/grid"
	_ "github.com/pocokhc/simple-rl/envs/ox"
	"github.com/pocokhc/simple-rl/rl"
	"github.com/pocokhc/simple-rl/spaces"
)

func init() {
	// A slip-free grid so scripted policies walk deterministic paths.
	env.Register("grid-fixed", func() env.Backend {
		g := grid.New()
		g.MoveProb = 1
		return g
	})
}

// -----------------------------------------------------------------------------
// Fixtures
// -----------------------------------------------------------------------------

type fakeAlgo struct {
	cfg       *rl.Config
	trainable bool
	starve    int // Train calls that report nothing before work starts
}

func newFakeAlgo(trainable bool) *fakeAlgo {
	return &fakeAlgo{cfg: rl.DefaultConfig(), trainable: trainable}
}

func (a *fakeAlgo) Name() string                { return "fake" }
func (a *fakeAlgo) Config() *rl.Config          { return a.cfg }
func (a *fakeAlgo) MakeParameter() rl.Parameter { return fakeParam{} }
func (a *fakeAlgo) MakeMemory() rl.Memory       { return fakeMem{} }

func (a *fakeAlgo) MakeTrainer(p rl.Parameter, m rl.Memory) rl.Trainer {
	if !a.trainable {
		return nil
	}
	return &fakeTrainer{starve: a.starve}
}

func (a *fakeAlgo) MakeWorker(p rl.Parameter, m rl.Memory) rl.Worker {
	return fakeWorker{}
}

type fakeParam struct{}

func (fakeParam) Backup() ([]byte, error) { return []byte("fake-param"), nil }
func (fakeParam) Restore(b []byte) error  { return nil }

type fakeMem struct{}

func (fakeMem) Length() int             { return 0 }
func (fakeMem) Backup() ([]byte, error) { return nil, nil }
func (fakeMem) Restore(b []byte) error  { return nil }

// fakeWorker marches right, which on the fixed grid never reaches a
// terminal cell, so episodes always run to the step budget.
type fakeWorker struct{}

func (fakeWorker) OnReset(w *rl.WorkerRun) (rl.Info, error) { return nil, nil }

func (fakeWorker) Policy(w *rl.WorkerRun) (spaces.Value, rl.Info, error) {
	return spaces.IntValue(grid.ActRight), nil, nil
}

func (fakeWorker) OnStep(w *rl.WorkerRun) (rl.Info, error) { return nil, nil }

type fakeTrainer struct {
	starve int
	n      int
}

func (t *fakeTrainer) Train() (rl.Info, error) {
	if t.starve > 0 {
		t.starve--
		return nil, nil
	}
	t.n++
	return rl.Info{"n": t.n}, nil
}

// recorder logs every callback invocation in order.
type recorder struct {
	events  []string
	reasons []string
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnRunBegin(run *Run)     { r.events = append(r.events, "run_begin") }
func (r *recorder) OnRunEnd(run *Run)       { r.events = append(r.events, "run_end") }
func (r *recorder) OnEpisodeBegin(run *Run) { r.events = append(r.events, "episode_begin") }
func (r *recorder) OnStep(run *Run)         { r.events = append(r.events, "step") }
func (r *recorder) OnTrain(run *Run)        { r.events = append(r.events, "train") }

func (r *recorder) OnEpisodeEnd(run *Run) {
	r.events = append(r.events, "episode_end")
	r.reasons = append(r.reasons, run.Env.DoneReason())
}

func count(events []string, name string) int {
	n := 0
	for _, e := range events {
		if e == name {
			n++
		}
	}
	return n
}

// -----------------------------------------------------------------------------
// Tests
// -----------------------------------------------------------------------------

func TestCallbackOrder(t *testing.T) {
	rec := &recorder{}
	r := New(env.NewConfig("grid-fixed"), newFakeAlgo(true))
	s, err := r.Train(context.Background(), Options{
		MaxEpisodes: 2,
		Callbacks:   []Callback{rec},
	})
	if err != nil {
		t.Fatalf("train: %v", err)
	}

	allowed := map[string][]string{
		"start":         {"run_begin"},
		"run_begin":     {"episode_begin"},
		"episode_begin": {"step"},
		"step":          {"step", "train", "episode_end"},
		"train":         {"step", "episode_end"},
		"episode_end":   {"episode_begin", "run_end"},
	}
	prev := "start"
	for i, ev := range rec.events {
		ok := false
		for _, next := range allowed[prev] {
			if ev == next {
				ok = true
				break
			}
		}
		if !ok {
			t.Fatalf("event %d: %q may not follow %q (%v)", i, ev, prev, rec.events)
		}
		prev = ev
	}
	if prev != "run_end" {
		t.Fatalf("last event = %q, want run_end", prev)
	}

	if got := count(rec.events, "episode_begin"); got != 2 {
		t.Fatalf("episode_begin count = %d", got)
	}
	if got := count(rec.events, "episode_end"); got != 2 {
		t.Fatalf("episode_end count = %d", got)
	}
	if steps, trains := count(rec.events, "step"), count(rec.events, "train"); steps != trains {
		t.Fatalf("steps %d != trains %d", steps, trains)
	}
	if s.Episodes != 2 {
		t.Fatalf("episodes = %d", s.Episodes)
	}
}

func TestPlaySummaryStats(t *testing.T) {
	r := New(env.NewConfig("grid-fixed"), newFakeAlgo(false))
	s, err := r.Play(context.Background(), Options{MaxEpisodes: 2})
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if s.Episodes != 2 || s.Steps != 100 {
		t.Fatalf("episodes=%d steps=%d, want 2/100", s.Episodes, s.Steps)
	}
	if s.TrainCount != 0 {
		t.Fatalf("play trained %d times", s.TrainCount)
	}
	// Marching into the wall costs the step penalty for the full
	// 50-step budget of every episode.
	if math.Abs(s.MeanRewards[0]-(-2)) > 1e-9 {
		t.Fatalf("mean reward = %v, want -2", s.MeanRewards[0])
	}
	if s.StdRewards[0] != 0 {
		t.Fatalf("std reward = %v, want 0", s.StdRewards[0])
	}
	if math.Abs(s.LastRewards[0]-(-2)) > 1e-9 {
		t.Fatalf("last reward = %v", s.LastRewards[0])
	}
	if s.Elapsed <= 0 {
		t.Fatalf("elapsed = %v", s.Elapsed)
	}
}

func TestMaxStepsAbortsMidEpisode(t *testing.T) {
	rec := &recorder{}
	r := New(env.NewConfig("grid-fixed"), newFakeAlgo(false))
	s, err := r.Play(context.Background(), Options{
		MaxSteps:  7,
		Callbacks: []Callback{rec},
	})
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if s.Steps != 7 || s.Episodes != 1 {
		t.Fatalf("steps=%d episodes=%d, want 7/1", s.Steps, s.Episodes)
	}
	if len(rec.reasons) != 1 || rec.reasons[0] != "call abort_episode" {
		t.Fatalf("abort reasons = %v", rec.reasons)
	}
}

func TestTrainInterleaving(t *testing.T) {
	r := New(env.NewConfig("grid-fixed"), newFakeAlgo(true))
	s, err := r.Train(context.Background(), Options{MaxEpisodes: 1})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if s.Steps != 50 || s.TrainCount != 50 {
		t.Fatalf("steps=%d train=%d, want 50/50", s.Steps, s.TrainCount)
	}
}

func TestTrainRefusesNonLearner(t *testing.T) {
	r := New(env.NewConfig("grid-fixed"), newFakeAlgo(false))
	_, err := r.Train(context.Background(), Options{MaxEpisodes: 1})
	if err == nil || !strings.Contains(err.Error(), "does not train") {
		t.Fatalf("err = %v", err)
	}
}

func TestSeededRunsReproduce(t *testing.T) {
	run := func() *RunSummary {
		r := New(env.NewConfig("grid"), newFakeAlgo(false))
		s, err := r.Play(context.Background(), Options{MaxEpisodes: 3, Seed: 5})
		if err != nil {
			t.Fatalf("play: %v", err)
		}
		return s
	}
	a, b := run(), run()
	if a.Steps != b.Steps {
		t.Fatalf("steps differ: %d vs %d", a.Steps, b.Steps)
	}
	for p := range a.MeanRewards {
		if a.MeanRewards[p] != b.MeanRewards[p] {
			t.Fatalf("player %d mean differs: %v vs %v", p, a.MeanRewards[p], b.MeanRewards[p])
		}
	}
}

func TestOpponentSeats(t *testing.T) {
	r := New(env.NewConfig("ox"), sampleAlgo{newFakeAlgo(false)})
	s, err := r.Play(context.Background(), Options{
		MaxEpisodes: 2,
		Opponents:   []string{"random"},
	})
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if s.Episodes != 2 || len(s.MeanRewards) != 2 {
		t.Fatalf("episodes=%d players=%d", s.Episodes, len(s.MeanRewards))
	}
	if math.Abs(s.MeanRewards[0]+s.MeanRewards[1]) > 1e-9 {
		t.Fatalf("rewards not zero-sum: %v", s.MeanRewards)
	}
}

// sampleAlgo plays uniformly over the permitted actions; the board
// game needs legal moves, not a fixed one.
type sampleAlgo struct{ *fakeAlgo }

func (a sampleAlgo) MakeWorker(p rl.Parameter, m rl.Memory) rl.Worker {
	return sampleWorker{}
}

type sampleWorker struct{}

func (sampleWorker) OnReset(w *rl.WorkerRun) (rl.Info, error) { return nil, nil }

func (sampleWorker) Policy(w *rl.WorkerRun) (spaces.Value, rl.Info, error) {
	return w.SampleAction(), nil, nil
}

func (sampleWorker) OnStep(w *rl.WorkerRun) (rl.Info, error) { return nil, nil }

func TestTrainOnly(t *testing.T) {
	t.Run("bounded by updates", func(t *testing.T) {
		r := New(env.NewConfig("grid-fixed"), newFakeAlgo(true))
		s, err := r.TrainOnly(context.Background(), Options{MaxSteps: 25})
		if err != nil {
			t.Fatalf("train only: %v", err)
		}
		if s.TrainCount != 25 {
			t.Fatalf("train count = %d, want 25", s.TrainCount)
		}
		if s.Episodes != 0 || s.Steps != 0 {
			t.Fatalf("train-only touched episodes: %+v", s)
		}
	})

	t.Run("starved trainer idles until timeout", func(t *testing.T) {
		a := newFakeAlgo(true)
		a.starve = 1 << 30
		r := New(env.NewConfig("grid-fixed"), a)
		s, err := r.TrainOnly(context.Background(), Options{Timeout: 30 * time.Millisecond})
		if err != nil {
			t.Fatalf("train only: %v", err)
		}
		if s.TrainCount != 0 {
			t.Fatalf("train count = %d, want 0", s.TrainCount)
		}
	})

	t.Run("context cancel stops an unbounded loop", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		r := New(env.NewConfig("grid-fixed"), newFakeAlgo(true))
		if _, err := r.TrainOnly(ctx, Options{}); err != nil {
			t.Fatalf("train only: %v", err)
		}
	})
}
