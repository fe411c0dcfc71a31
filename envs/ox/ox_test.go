package ox

import (
	"testing"

	"github.com/pocokhc/simple-rl/env"
	"github.com/pocokhc/simple-rl/spaces"
)

func newRun(t *testing.T) *env.EnvRun {
	t.Helper()
	e, err := env.Make(env.NewConfig("ox"))
	if err != nil {
		t.Fatalf("make: %v", err)
	}
	if err := e.Setup(env.RenderNone); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := e.Reset(-1); err != nil {
		t.Fatalf("reset: %v", err)
	}
	return e
}

func play(t *testing.T, e *env.EnvRun, cells ...int) {
	t.Helper()
	for _, c := range cells {
		if err := e.Step(spaces.IntValue(c)); err != nil {
			t.Fatalf("play %d: %v", c, err)
		}
	}
}

func TestOXTopRowWin(t *testing.T) {
	e := newRun(t)
	if e.NextPlayer() != 0 {
		t.Fatalf("first mover = %d, want 0", e.NextPlayer())
	}

	moves := []int{0, 3, 1, 4}
	for i, c := range moves {
		if got, want := e.NextPlayer(), i%2; got != want {
			t.Fatalf("before move %d: next player = %d, want %d", i, got, want)
		}
		play(t, e, c)
		if e.Done() {
			t.Fatalf("game over after move %d", i)
		}
		if r := e.StepRewards(); r[0] != 0 || r[1] != 0 {
			t.Fatalf("mid-game rewards = %v", r)
		}
	}

	play(t, e, 2)
	if e.DoneType() != env.DoneTerminated {
		t.Fatalf("done type = %v, want TERMINATED", e.DoneType())
	}
	if r := e.StepRewards(); r[0] != 1 || r[1] != -1 {
		t.Fatalf("final rewards = %v, want [1 -1]", r)
	}
	if tot := e.EpisodeRewards(); tot[0] != 1 || tot[1] != -1 {
		t.Fatalf("episode rewards = %v, want [1 -1]", tot)
	}
}

func TestOXColumnWinForX(t *testing.T) {
	e := newRun(t)
	// O scatters while X fills the middle column.
	play(t, e, 0, 1, 2, 4, 6, 7)
	if e.DoneType() != env.DoneTerminated {
		t.Fatalf("done type = %v, want TERMINATED", e.DoneType())
	}
	if r := e.StepRewards(); r[0] != -1 || r[1] != 1 {
		t.Fatalf("final rewards = %v, want [-1 1]", r)
	}
}

func TestOXDraw(t *testing.T) {
	e := newRun(t)
	play(t, e, 0, 4, 8, 1, 7, 6, 2, 5, 3)
	if e.DoneType() != env.DoneTerminated {
		t.Fatalf("done type = %v, want TERMINATED", e.DoneType())
	}
	if r := e.EpisodeRewards(); r[0] != 0 || r[1] != 0 {
		t.Fatalf("draw rewards = %v, want [0 0]", r)
	}
	if e.StepNum() != 9 {
		t.Fatalf("step num = %d, want 9", e.StepNum())
	}
}

func TestOXInvalidActionTracking(t *testing.T) {
	e := newRun(t)
	if got := e.InvalidActions(0); len(got) != 0 {
		t.Fatalf("fresh board invalid actions = %v", got)
	}

	play(t, e, 4, 0)
	for player := 0; player < 2; player++ {
		invalid := e.InvalidActions(player)
		if len(invalid) != 2 {
			t.Fatalf("player %d: invalid = %v, want 2 cells", player, invalid)
		}
		set := map[int]bool{}
		for _, v := range invalid {
			set[v.Int] = true
		}
		if !set[0] || !set[4] {
			t.Fatalf("player %d: invalid = %v, want cells 0 and 4", player, invalid)
		}
	}
	if got := len(e.ValidActions(0)); got != 7 {
		t.Fatalf("valid action count = %d, want 7", got)
	}

	// Sampling must avoid occupied cells.
	for i := 0; i < 30; i++ {
		a := e.SampleAction(e.NextPlayer())
		if a.Int == 0 || a.Int == 4 {
			t.Fatalf("sampled occupied cell %d", a.Int)
		}
	}
}

func TestOXOccupiedCellLoses(t *testing.T) {
	e := newRun(t)
	play(t, e, 4)
	// X plays the cell O already holds and forfeits.
	play(t, e, 4)
	if e.DoneType() != env.DoneTerminated {
		t.Fatalf("done type = %v, want TERMINATED", e.DoneType())
	}
	if r := e.StepRewards(); r[0] != 1 || r[1] != -1 {
		t.Fatalf("rewards = %v, want [1 -1]", r)
	}
}

func TestOXObservationPerspective(t *testing.T) {
	e := newRun(t)
	play(t, e, 4, 0)
	st := e.State()
	if st.Kind != spaces.ValTensor {
		t.Fatalf("state kind = %v, want tensor", st.Kind)
	}
	if st.Tensor.Data[4] != 1 {
		t.Fatalf("cell 4 = %v, want 1 (O)", st.Tensor.Data[4])
	}
	if st.Tensor.Data[0] != -1 {
		t.Fatalf("cell 0 = %v, want -1 (X)", st.Tensor.Data[0])
	}
	if err := e.ObservationSpace().Check(st); err != nil {
		t.Fatalf("state rejected by observation space: %v", err)
	}
}

func TestOXSnapshotRoundTrip(t *testing.T) {
	e := newRun(t)
	play(t, e, 0, 4, 8)

	snap, err := e.Backup()
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	play(t, e, 2, 1)

	if err := e.Restore(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if e.NextPlayer() != 1 {
		t.Fatalf("next player after restore = %d, want 1", e.NextPlayer())
	}
	st := e.State()
	if st.Tensor.Data[0] != 1 || st.Tensor.Data[4] != -1 || st.Tensor.Data[8] != 1 {
		t.Fatalf("restored board = %v", st.Tensor.Data)
	}
	if got := len(e.InvalidActions(1)); got != 3 {
		t.Fatalf("restored invalid count = %d, want 3", got)
	}
	if e.StepNum() != 3 {
		t.Fatalf("restored step num = %d, want 3", e.StepNum())
	}
}

func TestOXRenderers(t *testing.T) {
	o := New()
	if _, err := o.Reset(-1); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, _, _, _, err := o.Step(spaces.IntValue(4)); err != nil {
		t.Fatalf("step: %v", err)
	}

	want := "" +
		"...\n" +
		".O.\n" +
		"...\n" +
		"next: X\n"
	if got := o.RenderText(); got != want {
		t.Fatalf("render text:\n%s\nwant:\n%s", got, want)
	}

	img := o.RenderImage()
	if img.Data[4*3+1] != 255 {
		t.Fatalf("center pixel = %v, want green", img.Data[4*3:4*3+3])
	}

	for a, want := range map[int]string{0: "A1", 4: "B2", 8: "C3", 5: "C2"} {
		if got := o.ActionToString(spaces.IntValue(a)); got != want {
			t.Fatalf("cell %d = %q, want %q", a, got, want)
		}
	}
}
