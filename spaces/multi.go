package spaces

import "math/rand/v2"

// Multi is an ordered composition of subspaces. Its members are Multi
// values whose elements satisfy the subspaces in order.
type Multi struct {
	Spaces []Space
}

// NewMulti returns a composite space over the given subspaces.
func NewMulti(sub ...Space) Multi { return Multi{Spaces: sub} }

// Kind returns KindMulti.
func (s Multi) Kind() Kind { return KindMulti }

// Check reports whether v is a composite whose elements all satisfy
// their subspaces.
func (s Multi) Check(v Value) bool {
	if v.Kind != ValMulti || len(v.Elems) != len(s.Spaces) {
		return false
	}
	for i, sub := range s.Spaces {
		if !sub.Check(v.Elems[i]) {
			return false
		}
	}
	return true
}

// Sanitize coerces v element-wise. A payload with the wrong arity is
// replaced by the default member before per-element coercion.
func (s Multi) Sanitize(v Value) Value {
	if v.Kind != ValMulti || len(v.Elems) != len(s.Spaces) {
		return s.Zero()
	}
	elems := make([]Value, len(s.Spaces))
	for i, sub := range s.Spaces {
		elems[i] = sub.Sanitize(v.Elems[i])
	}
	return MultiValue(elems...)
}

// Zero returns the composite of every subspace's default member.
func (s Multi) Zero() Value {
	elems := make([]Value, len(s.Spaces))
	for i, sub := range s.Spaces {
		elems[i] = sub.Zero()
	}
	return MultiValue(elems...)
}

// Elements returns the product of enumerable subspace sizes, or 0 when
// any subspace is not enumerable.
func (s Multi) Elements() int {
	n := 1
	for _, sub := range s.Spaces {
		e := sub.Elements()
		if e == 0 {
			return 0
		}
		n *= e
	}
	return n
}

// Sample draws each element from its subspace. Invalid entries apply to
// the composite as a whole and are not decomposed, so they are ignored
// here; discrete composites needing masking sample through their
// enumeration instead.
func (s Multi) Sample(rng *rand.Rand, _ []Value) Value {
	elems := make([]Value, len(s.Spaces))
	for i, sub := range s.Spaces {
		elems[i] = sub.Sample(rng, nil)
	}
	return MultiValue(elems...)
}

// IntsLen returns the summed widths of the subspaces.
func (s Multi) IntsLen() int {
	n := 0
	for _, sub := range s.Spaces {
		n += sub.IntsLen()
	}
	return n
}

// FloatsLen returns the summed widths of the subspaces.
func (s Multi) FloatsLen() int {
	n := 0
	for _, sub := range s.Spaces {
		n += sub.FloatsLen()
	}
	return n
}

// EncodeInt is not supported for composites.
func (s Multi) EncodeInt(v Value) int { panic(convErr(KindMulti, "EncodeInt")) }

// DecodeInt is not supported for composites.
func (s Multi) DecodeInt(i int) Value { panic(convErr(KindMulti, "DecodeInt")) }

// EncodeInts concatenates the subspace encodings in order.
func (s Multi) EncodeInts(v Value) []int {
	ii := make([]int, 0, s.IntsLen())
	for i, sub := range s.Spaces {
		ii = append(ii, sub.EncodeInts(v.Elems[i])...)
	}
	return ii
}

// DecodeInts splits the flat list by subspace widths and decodes each
// segment.
func (s Multi) DecodeInts(ii []int) Value {
	elems := make([]Value, len(s.Spaces))
	off := 0
	for i, sub := range s.Spaces {
		w := sub.IntsLen()
		elems[i] = sub.DecodeInts(ii[off : off+w])
		off += w
	}
	return MultiValue(elems...)
}

// EncodeFloats concatenates the subspace encodings in order.
func (s Multi) EncodeFloats(v Value) []float64 {
	ff := make([]float64, 0, s.FloatsLen())
	for i, sub := range s.Spaces {
		ff = append(ff, sub.EncodeFloats(v.Elems[i])...)
	}
	return ff
}

// DecodeFloats splits the flat list by subspace widths and decodes each
// segment.
func (s Multi) DecodeFloats(ff []float64) Value {
	elems := make([]Value, len(s.Spaces))
	off := 0
	for i, sub := range s.Spaces {
		w := sub.FloatsLen()
		elems[i] = sub.DecodeFloats(ff[off : off+w])
		off += w
	}
	return MultiValue(elems...)
}

// EncodeTensor flattens the composite into a single rank-1 tensor.
func (s Multi) EncodeTensor(v Value) Tensor {
	ff := s.EncodeFloats(v)
	t := NewTensor(len(ff))
	for i, f := range ff {
		t.Data[i] = float32(f)
	}
	return t
}

// DecodeTensor rebuilds the composite from a flat tensor of the
// composite's float width.
func (s Multi) DecodeTensor(t Tensor) Value {
	ff := make([]float64, len(t.Data))
	for i, f := range t.Data {
		ff[i] = float64(f)
	}
	return s.DecodeFloats(ff)
}
