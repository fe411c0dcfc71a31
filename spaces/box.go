package spaces

import (
	"math"
	"math/rand/v2"
)

// Box is a bounded float tensor space of fixed shape. Bounds are stored
// per element in flattened order.
type Box struct {
	Shape []int
	Low   []float64
	High  []float64
}

// NewBox returns a box space with the scalar bounds broadcast to every
// element.
func NewBox(shape []int, low, high float64) Box {
	n := 1
	for _, d := range shape {
		n *= d
	}
	lo := make([]float64, n)
	hi := make([]float64, n)
	for i := 0; i < n; i++ {
		lo[i] = quantizeBound(low)
		hi[i] = quantizeBound(high)
	}
	return Box{Shape: append([]int(nil), shape...), Low: lo, High: hi}
}

// NewBoxBounds returns a box space with per-element bounds. Both bound
// slices must have the shape's element count.
func NewBoxBounds(shape []int, low, high []float64) Box {
	n := 1
	for _, d := range shape {
		n *= d
	}
	if len(low) != n || len(high) != n {
		panic("spaces: box bounds length does not match shape")
	}
	lo := make([]float64, n)
	hi := make([]float64, n)
	for i := 0; i < n; i++ {
		lo[i] = quantizeBound(low[i])
		hi[i] = quantizeBound(high[i])
	}
	return Box{Shape: append([]int(nil), shape...), Low: lo, High: hi}
}

// quantizeBound snaps a bound to float32 precision. Members are stored
// as float32, so a finer-grained bound could exclude values that sit
// exactly on it after rounding.
func quantizeBound(f float64) float64 {
	if math.IsInf(f, 0) {
		return f
	}
	return float64(float32(f))
}

// Kind returns KindBox.
func (s Box) Kind() Kind { return KindBox }

// Size returns the number of elements.
func (s Box) Size() int {
	n := 1
	for _, d := range s.Shape {
		n *= d
	}
	return n
}

// Check reports whether v is a tensor of the box's shape with every
// element finite and inside its bounds.
func (s Box) Check(v Value) bool {
	if v.Kind != ValTensor {
		return false
	}
	if !v.Tensor.SameShape(Tensor{Shape: s.Shape}) {
		return false
	}
	for i, f := range v.Tensor.Data {
		d := float64(f)
		if math.IsNaN(d) || math.IsInf(d, 0) || d < s.Low[i] || d > s.High[i] {
			return false
		}
	}
	return true
}

// Sanitize coerces v to a member: the payload is flattened, resized to
// the box's element count (mismatched sizes fall back to zeros), and
// clamped per element. Non-finite elements collapse to zero before
// clamping.
func (s Box) Sanitize(v Value) Value {
	n := s.Size()
	ff := flattenFloats(v)
	if len(ff) != n {
		ff = make([]float64, n)
	}
	t := NewTensor(s.Shape...)
	for i, f := range ff {
		t.Data[i] = float32(clampFinite(f, s.Low[i], s.High[i]))
	}
	return TensorValue(t)
}

// Zero returns the all-zero tensor clamped into bounds.
func (s Box) Zero() Value { return s.Sanitize(TensorValue(NewTensor(s.Shape...))) }

// Elements returns 0; a box is not enumerable.
func (s Box) Elements() int { return 0 }

// Sample draws each element uniformly inside its bounds. Infinite bounds
// are narrowed to [-1, 1]. The invalid list is ignored.
func (s Box) Sample(rng *rand.Rand, _ []Value) Value {
	t := NewTensor(s.Shape...)
	for i := range t.Data {
		lo, hi := s.Low[i], s.High[i]
		if math.IsInf(lo, -1) {
			lo = -1
		}
		if math.IsInf(hi, 1) {
			hi = 1
		}
		t.Data[i] = float32(lo + rng.Float64()*(hi-lo))
	}
	return TensorValue(t)
}

// IntsLen returns the element count.
func (s Box) IntsLen() int { return s.Size() }

// FloatsLen returns the element count.
func (s Box) FloatsLen() int { return s.Size() }

// EncodeInt is not supported for boxes.
func (s Box) EncodeInt(v Value) int { panic(convErr(KindBox, "EncodeInt")) }

// DecodeInt is not supported for boxes.
func (s Box) DecodeInt(i int) Value { panic(convErr(KindBox, "DecodeInt")) }

// EncodeInts returns the flattened elements rounded to ints.
func (s Box) EncodeInts(v Value) []int {
	ii := make([]int, len(v.Tensor.Data))
	for i, f := range v.Tensor.Data {
		ii[i] = roundToInt(float64(f))
	}
	return ii
}

// DecodeInts rebuilds a member tensor from rounded elements.
func (s Box) DecodeInts(ii []int) Value {
	t := NewTensor(s.Shape...)
	for i, n := range ii {
		t.Data[i] = float32(n)
	}
	return TensorValue(t)
}

// EncodeFloats returns the flattened elements as float64.
func (s Box) EncodeFloats(v Value) []float64 {
	ff := make([]float64, len(v.Tensor.Data))
	for i, f := range v.Tensor.Data {
		ff[i] = float64(f)
	}
	return ff
}

// DecodeFloats rebuilds a member tensor from a flat float list of the
// box's element count.
func (s Box) DecodeFloats(ff []float64) Value {
	if len(ff) != s.Size() {
		panic("spaces: box decode length does not match shape")
	}
	t := NewTensor(s.Shape...)
	for i, f := range ff {
		t.Data[i] = float32(f)
	}
	return TensorValue(t)
}

// EncodeTensor returns a copy of the member tensor.
func (s Box) EncodeTensor(v Value) Tensor { return v.Tensor.Clone() }

// DecodeTensor accepts a tensor of the box's shape, or a flat tensor of
// matching element count which is reshaped.
func (s Box) DecodeTensor(t Tensor) Value {
	if t.SameShape(Tensor{Shape: s.Shape}) {
		return TensorValue(t.Clone())
	}
	if t.Size() == s.Size() {
		return TensorValue(TensorOf(s.Shape, append([]float32(nil), t.Data...)))
	}
	panic("spaces: box decode tensor shape mismatch")
}

// flattenFloats extracts a flat float64 view of any value arm.
func flattenFloats(v Value) []float64 {
	switch v.Kind {
	case ValInt:
		return []float64{float64(v.Int)}
	case ValInts:
		ff := make([]float64, len(v.Ints))
		for i, n := range v.Ints {
			ff[i] = float64(n)
		}
		return ff
	case ValFloats:
		return append([]float64(nil), v.Floats...)
	case ValTensor:
		ff := make([]float64, len(v.Tensor.Data))
		for i, f := range v.Tensor.Data {
			ff[i] = float64(f)
		}
		return ff
	case ValMulti:
		var ff []float64
		for _, e := range v.Elems {
			ff = append(ff, flattenFloats(e)...)
		}
		return ff
	}
	return nil
}

func clampFinite(f, lo, hi float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		f = 0
	}
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}
