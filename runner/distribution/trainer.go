package distribution

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pocokhc/simple-rl/rl"
	"github.com/pocokhc/simple-rl/runner"
)

// Trainer owns a distributed task: it ingests experience from the
// broker into memory, trains, publishes parameters on an interval and
// keeps the task key alive.
type Trainer struct {
	cfg    Config
	broker Broker
	run    *runner.Runner
}

// NewTrainer wires a runner to a broker. The runner's memory must
// accept shipped batches.
func NewTrainer(cfg Config, b Broker, r *runner.Runner) (*Trainer, error) {
	if _, ok := r.Memory().(rl.BatchSink); !ok {
		return nil, fmt.Errorf("distribution: algorithm %q memory cannot ingest batches", r.Algorithm().Name())
	}
	return &Trainer{cfg: cfg.normalized(), broker: b, run: r}, nil
}

// Run drives the task until the context ends or the options' limits
// hit, then publishes a final parameter and ends the task.
func (t *Trainer) Run(ctx context.Context, opts runner.Options) error {
	if err := t.broker.CreateTask(ctx); err != nil {
		return fmt.Errorf("distribution: create task: %w", err)
	}
	log.WithField("task", t.cfg.TaskID).Info("trainer start")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	// Publishing runs as a train callback so parameter access stays on
	// the training goroutine.
	opts.Callbacks = append(opts.Callbacks, &publisher{trainer: t, ctx: gctx, last: time.Now()})

	g.Go(func() error { return t.ingest(gctx) })
	g.Go(func() error { return t.keepalive(gctx) })
	g.Go(func() error {
		defer cancel()
		_, err := t.run.TrainOnly(gctx, opts)
		return err
	})
	err := g.Wait()

	// The loop context is gone by now; teardown gets a short fresh one.
	endCtx, endCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer endCancel()
	t.publish(endCtx)
	if endErr := t.broker.EndTask(endCtx); endErr != nil {
		log.Warnf("trainer: end task: %v", endErr)
	}
	log.WithField("task", t.cfg.TaskID).Info("trainer done")
	return err
}

// ingest moves experience payloads from the broker into memory.
func (t *Trainer) ingest(ctx context.Context) error {
	sink := t.run.Memory().(rl.BatchSink)
	for {
		if ctx.Err() != nil {
			return nil
		}
		payload, err := t.broker.PopBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warnf("trainer: pop batch: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(t.cfg.PollInterval):
			}
			continue
		}
		if payload == nil {
			continue
		}
		if err := sink.AddBatch(payload); err != nil {
			log.Warnf("trainer: ingest batch: %v", err)
		}
	}
}

func (t *Trainer) keepalive(ctx context.Context) error {
	tick := time.NewTicker(t.cfg.KeepaliveTTL / 3)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			if err := t.broker.Keepalive(ctx); err != nil {
				log.Warnf("trainer: keepalive: %v", err)
			}
		}
	}
}

func (t *Trainer) publish(ctx context.Context) {
	payload, err := t.run.Parameter().Backup()
	if err != nil {
		log.Warnf("trainer: backup parameter: %v", err)
		return
	}
	version, err := t.broker.PublishParameter(ctx, payload)
	if err != nil {
		log.Warnf("trainer: publish parameter: %v", err)
		return
	}
	log.WithField("version", version).Debug("parameter published")
}

// publisher paces parameter publishes from inside the train loop.
type publisher struct {
	trainer *Trainer
	ctx     context.Context
	last    time.Time
}

func (p *publisher) Name() string { return "distribution-publisher" }

func (p *publisher) OnTrain(run *runner.Run) {
	if time.Since(p.last) < p.trainer.cfg.PublishInterval {
		return
	}
	p.trainer.publish(p.ctx)
	p.last = time.Now()
}
