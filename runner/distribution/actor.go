package distribution

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/pocokhc/simple-rl/rl"
	"github.com/pocokhc/simple-rl/runner"
)

// Actor plays training episodes and ships every stored experience to
// the broker after each one, swapping in newer trainer parameters
// between episodes.
type Actor struct {
	cfg    Config
	broker Broker
	run    *runner.Runner
	id     int
}

// NewActor wires a runner to a broker. The runner's memory must
// support batch draining.
func NewActor(cfg Config, b Broker, r *runner.Runner, id int) (*Actor, error) {
	if _, ok := r.Memory().(rl.BatchSource); !ok {
		return nil, fmt.Errorf("distribution: algorithm %q memory cannot ship batches", r.Algorithm().Name())
	}
	return &Actor{cfg: cfg.normalized(), broker: b, run: r, id: id}, nil
}

// Run plays until the context ends, the options' limits hit, or the
// task disappears. Options with no limits run until stopped.
func (a *Actor) Run(ctx context.Context, opts runner.Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts.Training = true
	if opts.MaxEpisodes <= 0 && opts.MaxSteps <= 0 && opts.Timeout <= 0 {
		opts.MaxEpisodes = math.MaxInt
	}
	opts.Callbacks = append(opts.Callbacks, &shipper{actor: a, ctx: ctx, cancel: cancel})

	log.WithFields(logrus.Fields{"actor": a.id, "task": a.cfg.TaskID}).Info("actor start")
	_, err := a.run.Play(ctx, opts)
	log.WithField("actor", a.id).Info("actor done")
	return err
}

// shipper is the callback doing the actor's broker work at every
// episode boundary.
type shipper struct {
	actor   *Actor
	ctx     context.Context
	cancel  context.CancelFunc
	version int64
}

func (s *shipper) Name() string { return "distribution-shipper" }

func (s *shipper) OnEpisodeEnd(run *runner.Run) {
	a := s.actor
	alive, err := a.broker.TaskAlive(s.ctx)
	if err != nil {
		log.Warnf("actor %d: task check: %v", a.id, err)
	} else if !alive {
		log.Infof("actor %d: task ended, stopping", a.id)
		s.cancel()
		return
	}

	src := run.Memory.(rl.BatchSource)
	for {
		payload, err := src.DrainBatch(a.cfg.BatchMax)
		if err != nil {
			log.Warnf("actor %d: drain experience: %v", a.id, err)
			break
		}
		if payload == nil {
			break
		}
		if err := a.broker.PushBatch(s.ctx, payload); err != nil {
			log.Warnf("actor %d: push batch: %v", a.id, err)
			break
		}
	}

	payload, version, err := a.broker.FetchParameter(s.ctx, s.version)
	if err != nil {
		log.Warnf("actor %d: fetch parameter: %v", a.id, err)
		return
	}
	if payload == nil {
		return
	}
	if err := run.Parameter.Restore(payload); err != nil {
		log.Warnf("actor %d: restore parameter: %v", a.id, err)
		return
	}
	s.version = version
	log.WithFields(logrus.Fields{"actor": a.id, "version": version}).Debug("parameter swapped")
}
