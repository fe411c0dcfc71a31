package env

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/pocokhc/simple-rl/spaces"
)

// stubBackend is a deterministic counting environment used across the
// adapter tests: the state is a counter, each step advances it by the
// action index plus one, players rotate, and the action equal to
// count%4 is forbidden in every state.
type stubBackend struct {
	players     int
	maxSteps    int
	terminateAt int // counter value that ends the episode, 0 = never

	count int
	next  int

	// fault injection
	failAt  int // step call number that returns an error, 0 = never
	panicAt int // step call number that panics, 0 = never

	// call accounting, not part of Backup
	stepCalls  int
	resetCalls int
	closed     bool
}

func newStubBackend(players int) *stubBackend {
	return &stubBackend{players: players}
}

func (b *stubBackend) ActionSpace() spaces.Space      { return spaces.NewDiscrete(4) }
func (b *stubBackend) ObservationSpace() spaces.Space { return spaces.NewDiscreteStart(100000, 0) }
func (b *stubBackend) PlayerNum() int                 { return b.players }
func (b *stubBackend) NextPlayer() int                { return b.next }
func (b *stubBackend) MaxEpisodeSteps() int           { return b.maxSteps }

func (b *stubBackend) Reset(seed int64) (spaces.Value, error) {
	b.resetCalls++
	b.count = 0
	b.next = 0
	return spaces.IntValue(0), nil
}

func (b *stubBackend) Step(action spaces.Value) (spaces.Value, []float64, bool, bool, error) {
	b.stepCalls++
	if b.panicAt > 0 && b.stepCalls == b.panicAt {
		panic("stub backend exploded")
	}
	if b.failAt > 0 && b.stepCalls == b.failAt {
		return spaces.Value{}, nil, false, false, errors.New("stub backend fault")
	}

	b.count += action.Int + 1
	rewards := make([]float64, b.players)
	rewards[b.next] = float64(action.Int + 1)
	b.next = (b.next + 1) % b.players

	terminated := b.terminateAt > 0 && b.count >= b.terminateAt
	return spaces.IntValue(b.count), rewards, terminated, false, nil
}

func (b *stubBackend) InvalidActions(player int) []spaces.Value {
	return []spaces.Value{spaces.IntValue(b.count % 4)}
}

type stubState struct {
	Count int
	Next  int
}

func (b *stubBackend) Backup() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(stubState{Count: b.count, Next: b.next}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (b *stubBackend) Restore(payload []byte) error {
	var s stubState
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&s); err != nil {
		return err
	}
	b.count = s.Count
	b.next = s.Next
	return nil
}

func (b *stubBackend) Close() error {
	b.closed = true
	return nil
}

// misbehavingBackend wraps the stub and corrupts chosen step results to
// exercise the validation policies.
type misbehavingBackend struct {
	*stubBackend
	badRewards []float64 // replaces rewards when set
	badState   *spaces.Value
}

func (b *misbehavingBackend) Step(action spaces.Value) (spaces.Value, []float64, bool, bool, error) {
	state, rewards, term, trunc, err := b.stubBackend.Step(action)
	if b.badRewards != nil {
		rewards = append([]float64(nil), b.badRewards...)
	}
	if b.badState != nil {
		state = *b.badState
	}
	return state, rewards, term, trunc, err
}

// renderStubBackend adds the Renderer capability.
type renderStubBackend struct {
	*stubBackend
}

func (b *renderStubBackend) RenderText() string { return fmt.Sprintf("count=%d", b.count) }

func (b *renderStubBackend) RenderImage() spaces.Tensor {
	t := spaces.NewTensor(2, 3, 3)
	t.Data[0] = float32(b.count)
	return t
}

func (b *renderStubBackend) ImageSize() (int, int) { return 2, 3 }

// directStubBackend adds the DirectStepper capability. The first event
// starts the episode; following events continue it.
type directStubBackend struct {
	*stubBackend
	canSimulate bool
	eventSeen   bool
}

func (b *directStubBackend) DirectStep(args ...any) (bool, spaces.Value, int, error) {
	delta, _ := args[0].(int)
	started := !b.eventSeen
	b.eventSeen = true
	b.count += delta
	b.next = (b.next + 1) % b.players
	return started, spaces.IntValue(b.count), b.next, nil
}

func (b *directStubBackend) CanSimulateFromDirectStep() bool { return b.canSimulate }
