package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pocokhc/simple-rl/env"
	"github.com/pocokhc/simple-rl/rl"
	"github.com/pocokhc/simple-rl/runner"
	"github.com/pocokhc/simple-rl/runner/history"
	"github.com/pocokhc/simple-rl/runner/monitor"
)

// buildRunner assembles the runner and base options from --config or
// from the --env/--algo pair, with explicit flags overriding the file.
func buildRunner() (*runner.Runner, runner.Options, error) {
	if runFile != "" {
		cfg, err := runner.LoadFile(runFile)
		if err != nil {
			return nil, runner.Options{}, err
		}
		r, opts, err := cfg.Build()
		if err != nil {
			return nil, runner.Options{}, err
		}
		applyFlagOverrides(&opts)
		return r, opts, nil
	}
	if envName == "" || algoName == "" {
		return nil, runner.Options{}, fmt.Errorf("either --config or both --env and --algo are required")
	}
	algo, err := rl.MakeAlgorithm(algoName)
	if err != nil {
		return nil, runner.Options{}, err
	}
	var opts runner.Options
	applyFlagOverrides(&opts)
	return runner.New(env.NewConfig(envName), algo), opts, nil
}

func applyFlagOverrides(opts *runner.Options) {
	if maxEpisodes > 0 {
		opts.MaxEpisodes = maxEpisodes
	}
	if maxSteps > 0 {
		opts.MaxSteps = maxSteps
	}
	if runTimeout > 0 {
		opts.Timeout = runTimeout
	}
	if seed != 0 {
		opts.Seed = seed
	}
	if len(opponents) > 0 {
		opts.Opponents = opponents
	}
}

// assembleCallbacks wires the checkpoint, history and monitor flags
// into run callbacks. The returned cleanup stops whatever got started.
func assembleCallbacks(ctx context.Context, r *runner.Runner) ([]runner.Callback, func(), error) {
	var cbs []runner.Callback
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var ckpt *runner.Checkpointer
	if checkpointDir != "" {
		ckpt = runner.NewCheckpointer(checkpointDir, checkpointInterval)
		cbs = append(cbs, ckpt)
	}

	if historyOn {
		dsn := os.Getenv("SRL_POSTGRES_DSN")
		if dsn == "" {
			cleanup()
			return nil, nil, fmt.Errorf("--history needs SRL_POSTGRES_DSN")
		}
		store, err := history.Connect(ctx, dsn)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, store.Close)
		cbs = append(cbs, history.NewRecorder(ctx, store, r.EnvConfig().Name, r.Algorithm().Name()))
	}

	if monitorAddr != "" {
		secret := []byte(os.Getenv("SRL_JWT_SECRET"))
		if len(secret) == 0 {
			cleanup()
			return nil, nil, fmt.Errorf("--monitor-addr needs SRL_JWT_SECRET")
		}
		hub := monitor.NewHub()
		met := monitor.NewMetrics()
		rep := monitor.NewReporter(hub, met)
		cbs = append(cbs, rep)
		if ckpt != nil {
			ckpt.OnSave = rep.CheckpointSaved
		}
		if tok, err := monitor.MintToken(secret, "viewer", 24*time.Hour); err == nil {
			logrus.WithField("token", tok).Info("viewer token")
		}
		srvCtx, stop := context.WithCancel(ctx)
		cleanups = append(cleanups, stop)
		go func() {
			if err := monitor.NewServer(hub, met, secret).ListenAndServe(srvCtx, monitorAddr); err != nil {
				logrus.Errorf("monitor server: %v", err)
			}
		}()
	}

	return cbs, cleanup, nil
}

func runTrain(cmd *cobra.Command, args []string) error {
	r, opts, err := buildRunner()
	if err != nil {
		return err
	}
	cbs, cleanup, err := assembleCallbacks(cmd.Context(), r)
	if err != nil {
		return err
	}
	defer cleanup()
	opts.Callbacks = cbs

	// Resume from the newest checkpoint when one exists.
	if checkpointDir != "" {
		if payload, path, err := runner.LoadLatest(checkpointDir); err == nil {
			if err := r.Parameter().Restore(payload); err != nil {
				return fmt.Errorf("restore checkpoint %s: %w", path, err)
			}
			logrus.WithField("path", path).Info("resumed from checkpoint")
		}
	}

	s, err := r.Train(cmd.Context(), opts)
	if err != nil {
		return err
	}
	fmt.Println(s)
	return nil
}
