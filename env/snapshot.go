package env

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/pocokhc/simple-rl/spaces"
)

// SnapshotVersion identifies the snapshot field layout. Restore rejects
// payloads from a different version.
const SnapshotVersion = 1

// Snapshot is a full-fidelity capture of one EnvRun episode: the episode
// fields by name, each stateful processor's payload in configured order,
// the backend's opaque payload, and the episode RNG state. Wall-clock
// age is stored as an elapsed duration so a restore in another process
// resumes the timeout budget instead of inheriting an absolute
// timestamp.
type Snapshot struct {
	Version        int
	StepNum        int
	State          spaces.Value
	Done           DoneType
	DoneReason     string
	PrevPlayer     int
	NextPlayer     int
	EpisodeRewards []float64
	StepRewards    []float64
	Invalid        [][]spaces.Value
	Elapsed        time.Duration
	DirectStep     bool
	HasStart       bool
	RNG            []byte
	Processors     [][]byte
	Env            []byte
}

// MarshalBinary encodes the snapshot for the wire or disk.
func (s *Snapshot) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("env: encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a snapshot produced by MarshalBinary.
func (s *Snapshot) UnmarshalBinary(b []byte) error {
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(s); err != nil {
		return fmt.Errorf("env: decode snapshot: %w", err)
	}
	return nil
}

// Backup captures the current episode. The adapter must be set up and
// have started at least one episode.
func (e *EnvRun) Backup() (*Snapshot, error) {
	if !e.isSetup {
		return nil, ErrNotSetup
	}
	envPayload, err := e.backend.Backup()
	if err != nil {
		return nil, fmt.Errorf("env: backend backup: %w", err)
	}
	rngState, err := e.rngSrc.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("env: rng backup: %w", err)
	}
	s := &Snapshot{
		Version:        SnapshotVersion,
		StepNum:        e.stepNum,
		State:          e.state.Clone(),
		Done:           e.done,
		DoneReason:     e.doneReason,
		PrevPlayer:     e.prevPlayer,
		NextPlayer:     e.nextPlayer,
		EpisodeRewards: append([]float64(nil), e.episodeRewards...),
		StepRewards:    append([]float64(nil), e.stepRewards...),
		Invalid:        cloneInvalid(e.invalidActions),
		Elapsed:        e.Elapsed(),
		DirectStep:     e.isDirectStep,
		HasStart:       e.hasStart,
		RNG:            rngState,
		Env:            envPayload,
	}
	for _, p := range e.procs.stateful {
		payload, err := p.BackupProcessor()
		if err != nil {
			return nil, fmt.Errorf("env: processor backup: %w", err)
		}
		s.Processors = append(s.Processors, payload)
	}
	return s, nil
}

// Restore rebuilds the episode from a snapshot taken on an adapter of
// identical configuration: same environment type and same processor
// chain. The render cache is dropped, not restored.
func (e *EnvRun) Restore(s *Snapshot) error {
	if !e.isSetup {
		return ErrNotSetup
	}
	if s.Version != SnapshotVersion {
		return fmt.Errorf("env: snapshot version %d, want %d", s.Version, SnapshotVersion)
	}
	if len(s.Processors) != len(e.procs.stateful) {
		return fmt.Errorf("env: snapshot carries %d processor payloads, chain has %d",
			len(s.Processors), len(e.procs.stateful))
	}

	e.stepNum = s.StepNum
	e.state = s.State.Clone()
	e.done = s.Done
	e.doneReason = s.DoneReason
	e.prevPlayer = s.PrevPlayer
	e.nextPlayer = s.NextPlayer
	e.episodeRewards = append([]float64(nil), s.EpisodeRewards...)
	e.stepRewards = append([]float64(nil), s.StepRewards...)
	e.invalidActions = cloneInvalid(s.Invalid)
	e.t0 = time.Now().Add(-s.Elapsed)
	e.isDirectStep = s.DirectStep
	e.hasStart = s.HasStart

	if err := e.rngSrc.UnmarshalBinary(s.RNG); err != nil {
		return fmt.Errorf("env: rng restore: %w", err)
	}
	for i, p := range e.procs.stateful {
		if err := p.RestoreProcessor(s.Processors[i]); err != nil {
			return fmt.Errorf("env: processor restore: %w", err)
		}
	}
	if err := e.backend.Restore(s.Env); err != nil {
		return fmt.Errorf("env: backend restore: %w", err)
	}
	if e.isDirectStep && e.directStepper != nil && !e.directStepper.CanSimulateFromDirectStep() {
		log.Warn("step after direct step is not supported by this backend")
	}
	e.render.invalidate()
	return nil
}

func cloneInvalid(in [][]spaces.Value) [][]spaces.Value {
	out := make([][]spaces.Value, len(in))
	for i, vs := range in {
		out[i] = make([]spaces.Value, len(vs))
		for j, v := range vs {
			out[i][j] = v.Clone()
		}
	}
	return out
}
