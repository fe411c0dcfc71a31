// Package memory provides the experience stores shared by the
// algorithms.
package memory

import (
	"bytes"
	"encoding/gob"
	"math/rand/v2"
	"sync"
)

// Replay is a fixed-capacity experience buffer with uniform sampling.
// Writes wrap around once full, overwriting the oldest entries first.
// It is safe for concurrent use; in distributed runs the receive loop
// writes while the trainer samples.
type Replay[T any] struct {
	mu       sync.Mutex
	capacity int
	buf      []T
	idx      int
}

// NewReplay returns a buffer holding at most capacity experiences.
func NewReplay[T any](capacity int) *Replay[T] {
	if capacity <= 0 {
		capacity = 100_000
	}
	return &Replay[T]{capacity: capacity}
}

// Add stores one experience.
func (r *Replay[T]) Add(batch T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add(batch)
}

func (r *Replay[T]) add(batch T) {
	if len(r.buf) < r.capacity {
		r.buf = append(r.buf, batch)
	} else {
		r.buf[r.idx] = batch
	}
	r.idx++
	if r.idx >= r.capacity {
		r.idx = 0
	}
}

// Length returns the number of stored experiences.
func (r *Replay[T]) Length() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

// Sample draws n distinct experiences uniformly. Fewer are returned
// when the buffer holds fewer.
func (r *Replay[T]) Sample(rng *rand.Rand, n int) []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n > len(r.buf) {
		n = len(r.buf)
	}
	out := make([]T, 0, n)
	for _, i := range rng.Perm(len(r.buf))[:n] {
		out = append(out, r.buf[i])
	}
	return out
}

type replayState[T any] struct {
	Buf []T
	Idx int
}

// Backup serializes the buffer contents and write position.
func (r *Replay[T]) Backup() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(replayState[T]{Buf: r.buf, Idx: r.idx}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Restore replaces the buffer contents. A payload from a larger buffer
// is trimmed to its newest entries.
func (r *Replay[T]) Restore(payload []byte) error {
	var s replayState[T]
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&s); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = s.Buf
	r.idx = s.Idx
	if len(r.buf) > r.capacity {
		r.idx -= len(r.buf) - r.capacity
		if r.idx < 0 {
			r.idx = 0
		}
		r.buf = append([]T(nil), r.buf[len(r.buf)-r.capacity:]...)
	}
	if r.idx >= r.capacity {
		r.idx = 0
	}
	return nil
}

// DrainBatch removes up to max experiences from the front of the
// buffer and returns them as one payload for shipment to a remote
// buffer. An empty buffer yields a nil payload.
func (r *Replay[T]) DrainBatch(max int) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.buf) == 0 {
		return nil, nil
	}
	n := max
	if n <= 0 || n > len(r.buf) {
		n = len(r.buf)
	}
	batch := append([]T(nil), r.buf[:n]...)
	r.buf = append([]T(nil), r.buf[n:]...)
	r.idx = len(r.buf)

	var out bytes.Buffer
	if err := gob.NewEncoder(&out).Encode(batch); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// AddBatch ingests a payload produced by DrainBatch.
func (r *Replay[T]) AddBatch(payload []byte) error {
	var batch []T
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&batch); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range batch {
		r.add(b)
	}
	return nil
}
