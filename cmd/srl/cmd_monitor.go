package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pocokhc/simple-rl/runner"
	"github.com/pocokhc/simple-rl/runner/monitor"
)

func runMonitor(cmd *cobra.Command, args []string) error {
	secret := []byte(os.Getenv("SRL_JWT_SECRET"))
	if len(secret) == 0 {
		return fmt.Errorf("monitor needs SRL_JWT_SECRET")
	}
	addr := serveAddr
	if addr == "" {
		addr = os.Getenv("SRL_MONITOR_ADDR")
	}
	if addr == "" {
		addr = ":8080"
	}

	hub := monitor.NewHub()
	met := monitor.NewMetrics()
	if tok, err := monitor.MintToken(secret, "viewer", 24*time.Hour); err == nil {
		logrus.WithField("token", tok).Info("viewer token")
	}

	// With a checkpoint dir, viewers also hear about new checkpoints.
	if checkpointDir != "" {
		updates, err := runner.Watch(cmd.Context(), checkpointDir)
		if err != nil {
			return err
		}
		go func() {
			for path := range updates {
				hub.Publish(monitor.Event{Type: monitor.EventCheckpointSaved, Path: path})
			}
		}()
	}

	return monitor.NewServer(hub, met, secret).ListenAndServe(cmd.Context(), addr)
}
