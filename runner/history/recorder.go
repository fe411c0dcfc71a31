package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pocokhc/simple-rl/runner"
)

// Recorder is the runner callback feeding a Sink. Write failures are
// logged and never fail the run.
type Recorder struct {
	sink Sink
	ctx  context.Context
	env  string
	algo string

	runID     uuid.UUID
	prevSteps int
	start     time.Time
}

func NewRecorder(ctx context.Context, sink Sink, envName, algorithm string) *Recorder {
	return &Recorder{sink: sink, ctx: ctx, env: envName, algo: algorithm}
}

func (r *Recorder) Name() string { return "history-recorder" }

func (r *Recorder) OnRunBegin(run *runner.Run) {
	id, err := uuid.Parse(run.Context.RunID)
	if err != nil {
		id = uuid.New()
	}
	r.runID = id
	r.prevSteps = 0
	rec := RunRecord{
		ID:        id,
		EnvName:   r.env,
		Algorithm: r.algo,
		Training:  run.Context.Training,
		StartedAt: run.StartTime,
	}
	if err := r.sink.BeginRun(r.ctx, rec); err != nil {
		log.Warnf("record run: %v", err)
	}
}

func (r *Recorder) OnEpisodeBegin(run *runner.Run) { r.start = time.Now() }

func (r *Recorder) OnEpisodeEnd(run *runner.Run) {
	// Natural endings carry no adapter reason; name them by done type.
	reason := run.Env.DoneReason()
	if reason == "" {
		reason = run.Env.DoneType().String()
	}
	rec := EpisodeRecord{
		RunID:      r.runID,
		Episode:    run.Episodes,
		Steps:      run.Steps - r.prevSteps,
		Rewards:    append([]float64(nil), run.Env.EpisodeRewards()...),
		DoneReason: reason,
		Duration:   time.Since(r.start),
	}
	r.prevSteps = run.Steps
	if err := r.sink.RecordEpisode(r.ctx, rec); err != nil {
		log.Warnf("record episode %d: %v", rec.Episode, err)
	}
}
