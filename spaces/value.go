package spaces

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueKind identifies the payload arm a Value carries.
type ValueKind uint8

const (
	ValNone   ValueKind = iota // zero Value, carries nothing
	ValInt                     // scalar int
	ValInts                    // flat int list
	ValFloats                  // flat float64 list
	ValTensor                  // float32 tensor
	ValMulti                   // ordered sub-values
)

// String returns the value kind name.
func (k ValueKind) String() string {
	switch k {
	case ValNone:
		return "NONE"
	case ValInt:
		return "INT"
	case ValInts:
		return "INTS"
	case ValFloats:
		return "FLOATS"
	case ValTensor:
		return "TENSOR"
	case ValMulti:
		return "MULTI"
	}
	return "UNKNOWN"
}

// Value is the closed union of every payload that crosses the
// environment/algorithm boundary: native actions and observations,
// algorithm-native encodings, and invalid-action entries. Exactly the
// arm named by Kind is meaningful; the other fields stay zero.
type Value struct {
	Kind   ValueKind
	Int    int
	Ints   []int
	Floats []float64
	Tensor Tensor
	Elems  []Value
}

// IntValue returns a scalar int value.
func IntValue(i int) Value { return Value{Kind: ValInt, Int: i} }

// IntsValue returns a flat int list value.
func IntsValue(ii []int) Value { return Value{Kind: ValInts, Ints: ii} }

// FloatsValue returns a flat float64 list value.
func FloatsValue(ff []float64) Value { return Value{Kind: ValFloats, Floats: ff} }

// TensorValue returns a tensor value.
func TensorValue(t Tensor) Value { return Value{Kind: ValTensor, Tensor: t} }

// MultiValue returns a composite value from the given sub-values.
func MultiValue(elems ...Value) Value { return Value{Kind: ValMulti, Elems: elems} }

// IsNone reports whether v carries no payload.
func (v Value) IsNone() bool { return v.Kind == ValNone }

// Clone returns a deep copy of v. Slices and tensors are copied so the
// clone never aliases the original, which snapshots and window buffers
// rely on.
func (v Value) Clone() Value {
	c := Value{Kind: v.Kind, Int: v.Int}
	switch v.Kind {
	case ValInts:
		c.Ints = append([]int(nil), v.Ints...)
	case ValFloats:
		c.Floats = append([]float64(nil), v.Floats...)
	case ValTensor:
		c.Tensor = v.Tensor.Clone()
	case ValMulti:
		c.Elems = make([]Value, len(v.Elems))
		for i, e := range v.Elems {
			c.Elems[i] = e.Clone()
		}
	}
	return c
}

// Equal reports deep equality between v and o. Floats compare exactly.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case ValNone:
		return true
	case ValInt:
		return v.Int == o.Int
	case ValInts:
		if len(v.Ints) != len(o.Ints) {
			return false
		}
		for i := range v.Ints {
			if v.Ints[i] != o.Ints[i] {
				return false
			}
		}
		return true
	case ValFloats:
		if len(v.Floats) != len(o.Floats) {
			return false
		}
		for i := range v.Floats {
			if v.Floats[i] != o.Floats[i] {
				return false
			}
		}
		return true
	case ValTensor:
		return v.Tensor.Equal(o.Tensor)
	case ValMulti:
		if len(v.Elems) != len(o.Elems) {
			return false
		}
		for i := range v.Elems {
			if !v.Elems[i].Equal(o.Elems[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Key returns a stable string form of v usable as a map key, e.g. by
// tabular algorithms indexing states.
func (v Value) Key() string {
	var b strings.Builder
	v.writeKey(&b)
	return b.String()
}

func (v Value) writeKey(b *strings.Builder) {
	switch v.Kind {
	case ValNone:
		b.WriteString("_")
	case ValInt:
		b.WriteString(strconv.Itoa(v.Int))
	case ValInts:
		b.WriteByte('[')
		for i, n := range v.Ints {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strconv.Itoa(n))
		}
		b.WriteByte(']')
	case ValFloats:
		b.WriteByte('f')
		b.WriteByte('[')
		for i, f := range v.Floats {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		}
		b.WriteByte(']')
	case ValTensor:
		v.Tensor.writeKey(b)
	case ValMulti:
		b.WriteByte('(')
		for i, e := range v.Elems {
			if i > 0 {
				b.WriteByte(',')
			}
			e.writeKey(b)
		}
		b.WriteByte(')')
	}
}

// String implements fmt.Stringer.
func (v Value) String() string {
	switch v.Kind {
	case ValNone:
		return "none"
	case ValTensor:
		return fmt.Sprintf("tensor%v", v.Tensor.Shape)
	default:
		return v.Key()
	}
}

// ContainsValue reports whether vs contains a value equal to v.
func ContainsValue(vs []Value, v Value) bool {
	for _, o := range vs {
		if o.Equal(v) {
			return true
		}
	}
	return false
}

// StackValues combines window-length encoded values of the same arm into
// one value: ints concatenate, float lists and tensors gain a leading
// window axis, and composites stack per element. The input order is
// chronological, oldest first.
func StackValues(vs []Value) Value {
	if len(vs) == 0 {
		return Value{}
	}
	switch vs[0].Kind {
	case ValInt:
		ii := make([]int, len(vs))
		for i, v := range vs {
			ii[i] = v.Int
		}
		return IntsValue(ii)
	case ValInts:
		ii := make([]int, 0, len(vs)*len(vs[0].Ints))
		for _, v := range vs {
			ii = append(ii, v.Ints...)
		}
		return IntsValue(ii)
	case ValFloats:
		n := len(vs[0].Floats)
		t := NewTensor(len(vs), n)
		for i, v := range vs {
			for j, f := range v.Floats {
				t.Data[i*n+j] = float32(f)
			}
		}
		return TensorValue(t)
	case ValTensor:
		ts := make([]Tensor, len(vs))
		for i, v := range vs {
			ts[i] = v.Tensor
		}
		return TensorValue(StackTensors(ts))
	case ValMulti:
		elems := make([]Value, len(vs[0].Elems))
		for e := range elems {
			col := make([]Value, len(vs))
			for i, v := range vs {
				col[i] = v.Elems[e]
			}
			elems[e] = StackValues(col)
		}
		return MultiValue(elems...)
	}
	return vs[0].Clone()
}
