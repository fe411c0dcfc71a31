package spaces

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Discrete is an enumerable scalar space with members
// Start, Start+1, ..., Start+N-1.
type Discrete struct {
	N     int
	Start int
}

// NewDiscrete returns a discrete space with members 0..n-1.
func NewDiscrete(n int) Discrete { return Discrete{N: n} }

// NewDiscreteStart returns a discrete space with members start..start+n-1.
func NewDiscreteStart(n, start int) Discrete { return Discrete{N: n, Start: start} }

// Kind returns KindDiscrete.
func (s Discrete) Kind() Kind { return KindDiscrete }

// Check reports whether v is a scalar int inside the member range.
func (s Discrete) Check(v Value) bool {
	return v.Kind == ValInt && v.Int >= s.Start && v.Int < s.Start+s.N
}

// Sanitize coerces v to the nearest member: non-int arms are collapsed to
// their first element, rounded, and clamped into range.
func (s Discrete) Sanitize(v Value) Value {
	n := s.Start
	switch v.Kind {
	case ValInt:
		n = v.Int
	case ValInts:
		if len(v.Ints) > 0 {
			n = v.Ints[0]
		}
	case ValFloats:
		if len(v.Floats) > 0 {
			n = roundToInt(v.Floats[0])
		}
	case ValTensor:
		if len(v.Tensor.Data) > 0 {
			n = roundToInt(float64(v.Tensor.Data[0]))
		}
	case ValMulti:
		if len(v.Elems) > 0 {
			return s.Sanitize(v.Elems[0])
		}
	}
	if n < s.Start {
		n = s.Start
	}
	if n > s.Start+s.N-1 {
		n = s.Start + s.N - 1
	}
	return IntValue(n)
}

// Zero returns the first member.
func (s Discrete) Zero() Value { return IntValue(s.Start) }

// Elements returns N.
func (s Discrete) Elements() int { return s.N }

// Sample draws uniformly among members not present in invalid. The
// caller maintains the invariant that at least one member stays valid.
func (s Discrete) Sample(rng *rand.Rand, invalid []Value) Value {
	candidates := make([]int, 0, s.N)
	for i := 0; i < s.N; i++ {
		v := s.Start + i
		if !ContainsValue(invalid, IntValue(v)) {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		panic("spaces: discrete sample with no valid member left")
	}
	return IntValue(candidates[rng.IntN(len(candidates))])
}

// IntsLen returns 1.
func (s Discrete) IntsLen() int { return 1 }

// FloatsLen returns 1.
func (s Discrete) FloatsLen() int { return 1 }

// EncodeInt returns the zero-based index of v.
func (s Discrete) EncodeInt(v Value) int { return v.Int - s.Start }

// DecodeInt returns the member for the zero-based index i.
func (s Discrete) DecodeInt(i int) Value { return IntValue(s.Start + i) }

// EncodeInts returns the index as a one-element list.
func (s Discrete) EncodeInts(v Value) []int { return []int{v.Int - s.Start} }

// DecodeInts returns the member for a one-element index list.
func (s Discrete) DecodeInts(ii []int) Value { return IntValue(s.Start + ii[0]) }

// EncodeFloats returns the index as a one-element float list.
func (s Discrete) EncodeFloats(v Value) []float64 { return []float64{float64(v.Int - s.Start)} }

// DecodeFloats rounds a one-element float list back to the member.
func (s Discrete) DecodeFloats(ff []float64) Value {
	return IntValue(s.Start + roundToInt(ff[0]))
}

// EncodeTensor returns the index as a one-element tensor.
func (s Discrete) EncodeTensor(v Value) Tensor {
	return TensorOf([]int{1}, []float32{float32(v.Int - s.Start)})
}

// DecodeTensor rounds a one-element tensor back to the member.
func (s Discrete) DecodeTensor(t Tensor) Value {
	return IntValue(s.Start + roundToInt(float64(t.Data[0])))
}

func roundToInt(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(math.Round(f))
}

// convErr builds the panic message for a conversion a kind cannot
// express. Configuration resolution rejects such pairings before any
// encode path can reach one.
func convErr(k Kind, op string) string {
	return fmt.Sprintf("spaces: %s space does not support %s", k, op)
}
