package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pocokhc/simple-rl/runner/distribution"
)

func runActor(cmd *cobra.Command, args []string) error {
	r, opts, err := buildRunner()
	if err != nil {
		return err
	}

	cfg := distribution.ConfigFromEnv()
	broker := distribution.NewRedisBroker(cfg)
	defer broker.Close()
	if err := broker.Ping(cmd.Context()); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	actor, err := distribution.NewActor(cfg, broker, r, actorID)
	if err != nil {
		return err
	}
	return actor.Run(cmd.Context(), opts)
}

func runTrainer(cmd *cobra.Command, args []string) error {
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

	cfg := distribution.ConfigFromEnv()
	broker := distribution.NewRedisBroker(cfg)
	defer broker.Close()
	if err := broker.Ping(cmd.Context()); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	trainer, err := distribution.NewTrainer(cfg, broker, r)
	if err != nil {
		return err
	}
	return trainer.Run(cmd.Context(), opts)
}
