// Package spaces implements the value domains shared by environments and
// learning algorithms.
//
// A Space describes the admissible values for one action or observation
// axis. Every value that crosses the environment/algorithm boundary is
// checked, sanitized, sampled, encoded, or decoded through a Space. The
// kind set is closed: Discrete, Box, Image, and Multi cover every axis
// the runtime handles, and all cross-kind dispatch is an exhaustive
// switch over Kind.
package spaces

import "math/rand/v2"

// Kind identifies one of the closed set of space kinds.
type Kind uint8

const (
	KindDiscrete Kind = iota // enumerable scalar with an offset start
	KindBox                  // bounded float tensor of fixed shape
	KindImage                // pixel tensor with a channel interpretation
	KindMulti                // ordered composition of subspaces
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindDiscrete:
		return "DISCRETE"
	case KindBox:
		return "BOX"
	case KindImage:
		return "IMAGE"
	case KindMulti:
		return "MULTI"
	}
	return "UNKNOWN"
}

// Space is the contract every space kind implements.
//
// Check reports membership. Sanitize coerces an arbitrary value to the
// nearest member and is total. The encode/decode families convert members
// to and from algorithm-native representations; they are total for values
// that satisfy Check, and conversions a kind cannot express panic, so
// configuration resolution must reject unsupported pairings up front
// (see the rl package).
type Space interface {
	Kind() Kind

	// Check reports whether v is a member of the space.
	Check(v Value) bool
	// Sanitize coerces v to the nearest member of the space.
	Sanitize(v Value) Value
	// Zero returns the space's default member, used for warm-up padding
	// and dummy observations.
	Zero() Value
	// Elements returns the number of enumerable members, or 0 when the
	// space is not enumerable.
	Elements() int
	// Sample draws a uniform member. For enumerable kinds the invalid
	// values are excluded; non-enumerable kinds ignore them.
	Sample(rng *rand.Rand, invalid []Value) Value

	// IntsLen and FloatsLen report the flattened widths of the integer
	// and float encodings, used to split composite encodings.
	IntsLen() int
	FloatsLen() int

	EncodeInt(v Value) int
	DecodeInt(i int) Value
	EncodeInts(v Value) []int
	DecodeInts(ii []int) Value
	EncodeFloats(v Value) []float64
	DecodeFloats(ff []float64) Value
	EncodeTensor(v Value) Tensor
	DecodeTensor(t Tensor) Value
}
