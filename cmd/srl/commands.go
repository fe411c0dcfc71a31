package main

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	logLevel string

	runFile     string
	envName     string
	algoName    string
	maxEpisodes int
	maxSteps    int
	runTimeout  time.Duration
	seed        int64
	opponents   []string

	checkpointDir      string
	checkpointInterval time.Duration
	noRender           bool
	follow             bool
	historyOn          bool
	monitorAddr        string
	serveAddr          string
	actorID            int

	rootCmd = &cobra.Command{
		Use:   "srl",
		Short: "Train, evaluate and monitor reinforcement learning runs",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err == nil {
				logrus.Debug(".env loaded")
			}
			lvl, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(lvl)
			logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			return nil
		},
		SilenceUsage: true,
	}

	trainCmd = &cobra.Command{
		Use:   "train",
		Short: "Run a learning run from a run file or flags",
		RunE:  runTrain, // Defined in cmd_train.go
	}

	evalCmd = &cobra.Command{
		Use:   "eval",
		Short: "Play episodes with a trained parameter, rendering to the console",
		RunE:  runEval, // Defined in cmd_eval.go
	}

	actorCmd = &cobra.Command{
		Use:   "actor",
		Short: "Join a distributed task as an experience-producing actor",
		RunE:  runActor, // Defined in cmd_dist.go
	}

	trainerCmd = &cobra.Command{
		Use:   "trainer",
		Short: "Own a distributed task: ingest experience and publish parameters",
		RunE:  runTrainer, // Defined in cmd_dist.go
	}

	monitorCmd = &cobra.Command{
		Use:   "monitor",
		Short: "Serve the viewer WebSocket and Prometheus metrics",
		RunE:  runMonitor, // Defined in cmd_monitor.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(trainCmd)
	trainCmd.Flags().StringVarP(&runFile, "config", "c", "", "Run file (YAML)")
	trainCmd.Flags().StringVar(&envName, "env", "", "Registered environment name")
	trainCmd.Flags().StringVar(&algoName, "algo", "", "Registered algorithm name")
	trainCmd.Flags().IntVar(&maxEpisodes, "episodes", 0, "Stop after this many episodes")
	trainCmd.Flags().IntVar(&maxSteps, "steps", 0, "Stop after this many environment steps")
	trainCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Stop after this wall-clock time")
	trainCmd.Flags().Int64Var(&seed, "seed", 0, "Seed the run (0 leaves it unseeded)")
	trainCmd.Flags().StringSliceVar(&opponents, "opponents", nil, "Algorithm names for seats 1..N-1")
	trainCmd.Flags().StringVar(&checkpointDir, "checkpoint-dir", "", "Save and resume parameter checkpoints here")
	trainCmd.Flags().DurationVar(&checkpointInterval, "checkpoint-interval", 0, "Throttle checkpoint saves (0 saves every episode)")
	trainCmd.Flags().BoolVar(&historyOn, "history", false, "Record the run to Postgres (SRL_POSTGRES_DSN)")
	trainCmd.Flags().StringVar(&monitorAddr, "monitor-addr", "", "Also serve the monitor endpoint here while training")

	rootCmd.AddCommand(evalCmd)
	evalCmd.Flags().StringVarP(&runFile, "config", "c", "", "Run file (YAML)")
	evalCmd.Flags().StringVar(&envName, "env", "", "Registered environment name")
	evalCmd.Flags().StringVar(&algoName, "algo", "", "Registered algorithm name")
	evalCmd.Flags().IntVar(&maxEpisodes, "episodes", 0, "Episodes to play (default 1)")
	evalCmd.Flags().Int64Var(&seed, "seed", 0, "Seed the run (0 leaves it unseeded)")
	evalCmd.Flags().StringSliceVar(&opponents, "opponents", nil, "Algorithm names for seats 1..N-1")
	evalCmd.Flags().StringVar(&checkpointDir, "checkpoint-dir", "", "Load the newest checkpoint from here")
	evalCmd.Flags().BoolVar(&follow, "follow", false, "Re-play whenever a new checkpoint lands")
	evalCmd.Flags().BoolVar(&noRender, "no-render", false, "Skip console rendering")

	rootCmd.AddCommand(actorCmd)
	actorCmd.Flags().StringVarP(&runFile, "config", "c", "", "Run file (YAML)")
	actorCmd.Flags().StringVar(&envName, "env", "", "Registered environment name")
	actorCmd.Flags().StringVar(&algoName, "algo", "", "Registered algorithm name")
	actorCmd.Flags().IntVar(&maxEpisodes, "episodes", 0, "Stop after this many episodes (default: until the task ends)")
	actorCmd.Flags().Int64Var(&seed, "seed", 0, "Seed the run (0 leaves it unseeded)")
	actorCmd.Flags().IntVar(&actorID, "actor-id", 0, "Index of this actor within the task")

	rootCmd.AddCommand(trainerCmd)
	trainerCmd.Flags().StringVarP(&runFile, "config", "c", "", "Run file (YAML)")
	trainerCmd.Flags().StringVar(&envName, "env", "", "Registered environment name")
	trainerCmd.Flags().StringVar(&algoName, "algo", "", "Registered algorithm name")
	trainerCmd.Flags().IntVar(&maxSteps, "steps", 0, "Stop after this many trainer updates (default: until stopped)")
	trainerCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Stop after this wall-clock time")
	trainerCmd.Flags().StringVar(&checkpointDir, "checkpoint-dir", "", "Save parameter checkpoints here")
	trainerCmd.Flags().DurationVar(&checkpointInterval, "checkpoint-interval", 0, "Throttle checkpoint saves")
	trainerCmd.Flags().BoolVar(&historyOn, "history", false, "Record the run to Postgres (SRL_POSTGRES_DSN)")
	trainerCmd.Flags().StringVar(&monitorAddr, "monitor-addr", "", "Also serve the monitor endpoint here while training")

	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVar(&serveAddr, "addr", "", "Bind address (default SRL_MONITOR_ADDR or :8080)")
	monitorCmd.Flags().StringVar(&checkpointDir, "checkpoint-dir", "", "Announce new checkpoints from this directory")
}
