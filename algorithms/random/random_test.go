package random

import (
	"testing"

	"github.com/pocokhc/simple-rl/env"
	_ "github.com/pocokhc/simple-rl/envs/grid"
	_ "github.com/pocokhc/simple-rl/envs/ox"
	"github.com/pocokhc/simple-rl/rl"
)

func TestRegistered(t *testing.T) {
	a, err := rl.MakeAlgorithm("random")
	if err != nil {
		t.Fatalf("make: %v", err)
	}
	if a.Name() != "random" {
		t.Fatalf("name = %q", a.Name())
	}
	if tr := a.MakeTrainer(a.MakeParameter(), a.MakeMemory()); tr != nil {
		t.Fatalf("expected nil trainer")
	}
}

func TestPlaysBothSampleEnvs(t *testing.T) {
	for _, name := range []string{"grid", "ox"} {
		t.Run(name, func(t *testing.T) {
			a := New()
			e, err := env.Make(env.NewConfig(name))
			if err != nil {
				t.Fatalf("make env: %v", err)
			}
			if err := e.Setup(env.RenderNone); err != nil {
				t.Fatalf("setup: %v", err)
			}

			var runs []*rl.WorkerRun
			for i := 0; i < e.PlayerNum(); i++ {
				w, err := rl.NewWorkerRun(a.Config(), a.MakeWorker(a.MakeParameter(), a.MakeMemory()), e)
				if err != nil {
					t.Fatalf("worker run: %v", err)
				}
				if err := w.OnStart(rl.NewRunContext()); err != nil {
					t.Fatalf("on start: %v", err)
				}
				runs = append(runs, w)
			}

			for ep := 0; ep < 5; ep++ {
				if err := e.Reset(-1); err != nil {
					t.Fatalf("reset: %v", err)
				}
				for i, w := range runs {
					if err := w.OnReset(i); err != nil {
						t.Fatalf("on reset: %v", err)
					}
				}
				for steps := 0; !e.Done(); steps++ {
					if steps > 100 {
						t.Fatalf("episode never ended")
					}
					action, err := runs[e.NextPlayer()].Policy()
					if err != nil {
						t.Fatalf("policy: %v", err)
					}
					if err := e.ActionSpace().Check(action); err != nil {
						t.Fatalf("sampled action rejected: %v", err)
					}
					if err := e.Step(action); err != nil {
						t.Fatalf("step: %v", err)
					}
					for _, w := range runs {
						if err := w.OnStep(); err != nil {
							t.Fatalf("on step: %v", err)
						}
					}
				}
			}
		})
	}
}
