package monitor

import (
	"strconv"
	"time"

	"github.com/pocokhc/simple-rl/runner"
)

// Reporter is the runner callback feeding the hub and the metrics.
// Train events are throttled to one per second; the train counter is
// not.
type Reporter struct {
	hub *Hub
	met *Metrics

	lastTrain time.Time
}

func NewReporter(hub *Hub, met *Metrics) *Reporter {
	return &Reporter{hub: hub, met: met}
}

func (r *Reporter) Name() string { return "monitor-reporter" }

func (r *Reporter) OnRunBegin(run *runner.Run) {
	r.hub.Publish(Event{Type: EventRunBegin, RunID: run.Context.RunID})
}

func (r *Reporter) OnStep(run *runner.Run) { r.met.steps.Inc() }

func (r *Reporter) OnEpisodeEnd(run *runner.Run) {
	r.met.episodes.Inc()
	rewards := append([]float64(nil), run.Env.EpisodeRewards()...)
	for i, reward := range rewards {
		r.met.reward.WithLabelValues(strconv.Itoa(i)).Set(reward)
	}
	// Natural endings carry no adapter reason; name them by done type.
	reason := run.Env.DoneReason()
	if reason == "" {
		reason = run.Env.DoneType().String()
	}
	r.hub.Publish(Event{
		Type:       EventEpisodeEnd,
		RunID:      run.Context.RunID,
		Episode:    run.Episodes,
		Steps:      run.Steps,
		Rewards:    rewards,
		DoneReason: reason,
	})
}

func (r *Reporter) OnTrain(run *runner.Run) {
	r.met.trains.Inc()
	if time.Since(r.lastTrain) < time.Second {
		return
	}
	r.lastTrain = time.Now()
	r.hub.Publish(Event{
		Type:       EventTrain,
		RunID:      run.Context.RunID,
		TrainCount: run.TrainCount,
		Info:       run.LastTrainInfo,
	})
}

func (r *Reporter) OnRunEnd(run *runner.Run) {
	r.hub.Publish(Event{
		Type:       EventRunEnd,
		RunID:      run.Context.RunID,
		Episode:    run.Episodes,
		Steps:      run.Steps,
		TrainCount: run.TrainCount,
	})
}

// CheckpointSaved fits a Checkpointer's OnSave hook.
func (r *Reporter) CheckpointSaved(path string) {
	r.hub.Publish(Event{Type: EventCheckpointSaved, Path: path})
}
