package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pocokhc/simple-rl/env"
	"github.com/pocokhc/simple-rl/runner"
)

func runEval(cmd *cobra.Command, args []string) error {
	if follow && checkpointDir == "" {
		return fmt.Errorf("--follow needs --checkpoint-dir")
	}

	r, opts, err := buildRunner()
	if err != nil {
		return err
	}
	opts.Training = false
	if opts.MaxEpisodes <= 0 {
		opts.MaxEpisodes = 1
	}
	if !noRender {
		opts.RenderMode = env.RenderTerminal
		opts.Callbacks = append(opts.Callbacks, &runner.ConsoleRenderer{Out: os.Stdout})
	}

	restore := func() error {
		payload, path, err := runner.LoadLatest(checkpointDir)
		if err != nil {
			return err
		}
		if err := r.Parameter().Restore(payload); err != nil {
			return fmt.Errorf("restore checkpoint %s: %w", path, err)
		}
		logrus.WithField("path", path).Info("checkpoint loaded")
		return nil
	}
	if checkpointDir != "" {
		if err := restore(); err != nil {
			return err
		}
	}

	s, err := r.Play(cmd.Context(), opts)
	if err != nil {
		return err
	}
	fmt.Println(s)

	if !follow {
		return nil
	}
	updates, err := runner.Watch(cmd.Context(), checkpointDir)
	if err != nil {
		return err
	}
	logrus.Info("following new checkpoints")
	for range updates {
		if err := restore(); err != nil {
			logrus.Warnf("reload: %v", err)
			continue
		}
		s, err := r.Play(cmd.Context(), opts)
		if err != nil {
			return err
		}
		fmt.Println(s)
	}
	return nil
}
