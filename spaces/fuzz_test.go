//go:build spacesfuzz

package spaces

import (
	"math/rand/v2"
	"testing"
)

// randomSpace builds a random space, recursing one level for composites.
func randomSpace(rng *rand.Rand, allowMulti bool) Space {
	choices := 3
	if allowMulti {
		choices = 4
	}
	switch rng.IntN(choices) {
	case 0:
		return NewDiscreteStart(1+rng.IntN(20), rng.IntN(7)-3)
	case 1:
		dims := 1 + rng.IntN(3)
		shape := make([]int, dims)
		for i := range shape {
			shape[i] = 1 + rng.IntN(4)
		}
		lo := rng.Float64()*10 - 5
		return NewBox(shape, lo, lo+rng.Float64()*10)
	case 2:
		return NewGrayImage(1+rng.IntN(8), 1+rng.IntN(8))
	default:
		n := 1 + rng.IntN(4)
		sub := make([]Space, n)
		for i := range sub {
			sub[i] = randomSpace(rng, false)
		}
		return NewMulti(sub...)
	}
}

// TestSpaceFuzz stress-tests the Space contract over random spaces:
// samples are members, sanitize is idempotent on members, and the float
// and tensor encodings round-trip exactly.
func TestSpaceFuzz(t *testing.T) {
	rng := rand.New(rand.NewPCG(0xC0FFEE, 0xBEEF))
	for iter := 0; iter < 20000; iter++ {
		s := randomSpace(rng, true)
		v := s.Sample(rng, nil)

		if !s.Check(v) {
			t.Fatalf("iter %d: sample fails Check: space=%v value=%v", iter, s.Kind(), v)
		}
		if got := s.Sanitize(v); !got.Equal(v) {
			t.Fatalf("iter %d: Sanitize not identity on member: %v -> %v", iter, v, got)
		}
		if got := s.DecodeFloats(s.EncodeFloats(v)); !got.Equal(v) {
			t.Fatalf("iter %d: floats round trip: %v -> %v", iter, v, got)
		}
		if got := s.DecodeTensor(s.EncodeTensor(v)); !got.Equal(v) {
			t.Fatalf("iter %d: tensor round trip: %v -> %v", iter, v, got)
		}
		if s.Kind() == KindDiscrete {
			if got := s.DecodeInt(s.EncodeInt(v)); !got.Equal(v) {
				t.Fatalf("iter %d: int round trip: %v -> %v", iter, v, got)
			}
		}
	}
}
