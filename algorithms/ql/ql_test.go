package ql

import (
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/pocokhc/simple-rl/env"
	"github.com/pocokhc/simple-rl/envs/grid"
	_ "github.com/pocokhc/simple-rl/envs/ox"
	"github.com/pocokhc/simple-rl/rl"
	"github.com/pocokhc/simple-rl/rl/memory"
	"github.com/pocokhc/simple-rl/spaces"
)

// newGridRun returns a fully deterministic grid environment.
func newGridRun(t *testing.T) *env.EnvRun {
	t.Helper()
	g := grid.New()
	g.MoveProb = 1
	e := env.New(env.NewConfig("grid"), func() env.Backend { return g })
	if err := e.Setup(env.RenderNone); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return e
}

func mountWorker(t *testing.T, a *Algorithm, k rl.Worker, e *env.EnvRun, training bool, seed int64) *rl.WorkerRun {
	t.Helper()
	w, err := rl.NewWorkerRun(a.Config(), k, e)
	if err != nil {
		t.Fatalf("worker run: %v", err)
	}
	ctx := rl.NewRunContext()
	ctx.Training = training
	ctx.Seed = seed
	if err := w.OnStart(ctx); err != nil {
		t.Fatalf("on start: %v", err)
	}
	return w
}

func playTurn(t *testing.T, e *env.EnvRun, runs []*rl.WorkerRun, tr rl.Trainer) {
	t.Helper()
	a, err := runs[e.NextPlayer()].Policy()
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	if err := e.Step(a); err != nil {
		t.Fatalf("step: %v", err)
	}
	for _, w := range runs {
		if err := w.OnStep(); err != nil {
			t.Fatalf("on step: %v", err)
		}
	}
	if tr != nil {
		if _, err := tr.Train(); err != nil {
			t.Fatalf("train: %v", err)
		}
	}
}

func TestTrainerTDUpdate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchSize = 2
	cfg.LR = 0.5
	cfg.DiscountRate = 0.9
	if err := cfg.Setup(newGridRun(t)); err != nil {
		t.Fatalf("config setup: %v", err)
	}

	p := &Parameter{cfg: cfg, table: map[string][]float64{}}
	next := p.Q("d")
	next[2] = 5
	next[3] = 2

	m := memory.NewReplay[experience](10)
	m.Add(experience{State: "a", Next: "b", Action: 1, Reward: 1, Done: true})
	m.Add(experience{State: "c", Next: "d", Action: 0, Reward: 0.5, Invalid: []int{2}})

	tr := newTrainer(cfg, p, m)
	info, err := tr.Train()
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if info["train"] != 1 {
		t.Fatalf("train info = %v", info)
	}

	// Terminal transition: Q(a,1) moves halfway to reward 1.
	if got := p.Q("a")[1]; got != 0.5 {
		t.Fatalf("Q(a,1) = %v, want 0.5", got)
	}
	// Bootstrapped: the masked best of Q(d) is 2, so the target is
	// 0.5 + 0.9*2 = 2.3 and Q(c,0) moves halfway there.
	if got := p.Q("c")[0]; math.Abs(got-1.15) > 1e-12 {
		t.Fatalf("Q(c,0) = %v, want 1.15", got)
	}
	wantTD := (1 + 2.3) / 2
	if got := info["td_error"].(float64); math.Abs(got-wantTD) > 1e-12 {
		t.Fatalf("td_error = %v, want %v", got, wantTD)
	}
}

func TestTrainerWaitsForFullBatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchSize = 4
	if err := cfg.Setup(newGridRun(t)); err != nil {
		t.Fatalf("config setup: %v", err)
	}
	p := &Parameter{cfg: cfg, table: map[string][]float64{}}
	m := memory.NewReplay[experience](10)
	m.Add(experience{State: "a", Next: "b", Action: 0, Reward: 1, Done: true})

	tr := newTrainer(cfg, p, m)
	info, err := tr.Train()
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if info != nil {
		t.Fatalf("expected no-op train, got %v", info)
	}
	if len(p.table) != 0 {
		t.Fatalf("table grew on a no-op train: %v", p.table)
	}
}

func TestWorkerGreedyPolicyAndStore(t *testing.T) {
	a := New()
	a.Cfg.Epsilon = 0

	p := a.MakeParameter().(*Parameter)
	m := a.MakeMemory().(*memory.Replay[experience])
	k := a.MakeWorker(p, m)

	e := newGridRun(t)
	w := mountWorker(t, a, k, e, true, 9)
	if err := e.Reset(-1); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := w.OnReset(0); err != nil {
		t.Fatalf("on reset: %v", err)
	}

	// The start cell is index 19; make "right" the greedy move there.
	startKey := spaces.IntsValue([]int{19}).Key()
	p.Q(startKey)[grid.ActRight] = 1

	action, err := w.Policy()
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	if action.Int != grid.ActRight {
		t.Fatalf("greedy action = %v, want right", action)
	}
	if err := e.Step(action); err != nil {
		t.Fatalf("step: %v", err)
	}
	if err := w.OnStep(); err != nil {
		t.Fatalf("on step: %v", err)
	}
	if m.Length() != 0 {
		t.Fatalf("memory length = %d before the flush, want 0", m.Length())
	}

	// The transition is handed to the worker inside the next decision.
	if _, err := w.Policy(); err != nil {
		t.Fatalf("second policy: %v", err)
	}
	if m.Length() != 1 {
		t.Fatalf("memory length = %d, want 1", m.Length())
	}
	x := m.Sample(rand.New(rand.NewPCG(1, 2)), 1)[0]
	if x.State != startKey {
		t.Fatalf("stored state = %q, want %q", x.State, startKey)
	}
	if x.Action != grid.ActRight || x.Done || x.Reward != -0.04 {
		t.Fatalf("stored experience = %+v", x)
	}
	if x.Next != spaces.IntsValue([]int{20}).Key() {
		t.Fatalf("stored next = %q", x.Next)
	}
}

func TestWorkerSkipsStoreOutsideTraining(t *testing.T) {
	a := New()
	p := a.MakeParameter().(*Parameter)
	m := a.MakeMemory().(*memory.Replay[experience])
	k := a.MakeWorker(p, m)

	e := newGridRun(t)
	w := mountWorker(t, a, k, e, false, 9)
	if err := e.Reset(-1); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := w.OnReset(0); err != nil {
		t.Fatalf("on reset: %v", err)
	}
	for i := 0; i < 3 && !e.Done(); i++ {
		playTurn(t, e, []*rl.WorkerRun{w}, nil)
	}
	if m.Length() != 0 {
		t.Fatalf("memory length = %d, want 0", m.Length())
	}
}

func TestLearnsDeterministicGrid(t *testing.T) {
	a := New()
	a.Cfg.Epsilon = 0.3
	a.Cfg.LR = 0.3
	a.Cfg.BatchSize = 4

	p := a.MakeParameter().(*Parameter)
	m := a.MakeMemory().(*memory.Replay[experience])
	tr := a.MakeTrainer(p, m)
	k := a.MakeWorker(p, m)

	e := newGridRun(t)
	w := mountWorker(t, a, k, e, true, 17)
	for ep := 0; ep < 400; ep++ {
		if err := e.Reset(-1); err != nil {
			t.Fatalf("reset: %v", err)
		}
		if err := w.OnReset(0); err != nil {
			t.Fatalf("on reset: %v", err)
		}
		for !e.Done() {
			playTurn(t, e, []*rl.WorkerRun{w}, tr)
		}
	}
	if p.States() < 5 {
		t.Fatalf("q-table has %d states after training", p.States())
	}

	// Greedy evaluation must walk straight to the goal.
	w2 := mountWorker(t, a, a.MakeWorker(p, m), e, false, 18)
	if err := e.Reset(-1); err != nil {
		t.Fatalf("eval reset: %v", err)
	}
	if err := w2.OnReset(0); err != nil {
		t.Fatalf("eval on reset: %v", err)
	}
	for i := 0; i < 20 && !e.Done(); i++ {
		playTurn(t, e, []*rl.WorkerRun{w2}, nil)
	}
	if e.DoneType() != env.DoneTerminated || e.Reward() != 1 {
		t.Fatalf("greedy run ended %v with reward %v", e.DoneType(), e.Reward())
	}
	if e.StepNum() > 10 {
		t.Fatalf("greedy run took %d steps", e.StepNum())
	}
}

func TestSelfPlayMasksInvalidActions(t *testing.T) {
	a := New()
	a.Cfg.Epsilon = 0.5

	p := a.MakeParameter().(*Parameter)
	m := a.MakeMemory().(*memory.Replay[experience])
	tr := a.MakeTrainer(p, m)

	e, err := env.Make(env.NewConfig("ox"))
	if err != nil {
		t.Fatalf("make: %v", err)
	}
	if err := e.Setup(env.RenderNone); err != nil {
		t.Fatalf("setup: %v", err)
	}

	runs := []*rl.WorkerRun{
		mountWorker(t, a, a.MakeWorker(p, m), e, true, 21),
		mountWorker(t, a, a.MakeWorker(p, m), e, true, 22),
	}
	for ep := 0; ep < 30; ep++ {
		if err := e.Reset(-1); err != nil {
			t.Fatalf("reset: %v", err)
		}
		for i, w := range runs {
			if err := w.OnReset(i); err != nil {
				t.Fatalf("on reset: %v", err)
			}
		}
		for !e.Done() {
			mover := e.NextPlayer()
			before := len(e.InvalidActions(mover))
			playTurn(t, e, runs, tr)
			// A masked policy never plays an occupied cell, so the
			// board only ever gains marks one at a time.
			if !e.Done() {
				if after := len(e.InvalidActions(e.NextPlayer())); after != before+1 {
					t.Fatalf("invalid count went %d -> %d", before, after)
				}
			}
		}
		if e.StepNum() > 9 {
			t.Fatalf("game ran %d steps", e.StepNum())
		}
		r := e.EpisodeRewards()
		if r[0]+r[1] != 0 {
			t.Fatalf("rewards not zero-sum: %v", r)
		}
	}
	if m.Length() == 0 {
		t.Fatalf("self-play stored no experiences")
	}
	if p.States() < 5 {
		t.Fatalf("q-table has %d states", p.States())
	}
}

func TestParameterBackupRestore(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Setup(newGridRun(t)); err != nil {
		t.Fatalf("config setup: %v", err)
	}
	p := &Parameter{cfg: cfg, table: map[string][]float64{}}
	p.Q("s")[1] = 0.75

	payload, err := p.Backup()
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	p2 := &Parameter{cfg: cfg, table: map[string][]float64{}}
	if err := p2.Restore(payload); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := p2.Q("s")[1]; got != 0.75 {
		t.Fatalf("restored Q(s,1) = %v, want 0.75", got)
	}
	if !strings.Contains(p2.Summary(), "1 states") {
		t.Fatalf("summary = %q", p2.Summary())
	}
}
