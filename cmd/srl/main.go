package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	_ "github.com/pocokhc/simple-rl/algorithms/ql"
	_ "github.com/pocokhc/simple-rl/algorithms/random"
	_ "github.com/pocokhc/simple-rl/envs/grid"
	_ "github.com/pocokhc/simple-rl/envs/ox"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logrus.Fatal(err)
	}
}
