package spaces

import (
	"strconv"
	"strings"
)

// Tensor is a dense float32 array of fixed shape, stored flat in
// row-major order. It is the carrier for continuous and image payloads
// and for stacked observation windows.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor returns a zero-filled tensor of the given shape.
func NewTensor(shape ...int) Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return Tensor{Shape: append([]int(nil), shape...), Data: make([]float32, n)}
}

// TensorOf wraps shape and data as a tensor. The data length must equal
// the shape's element count.
func TensorOf(shape []int, data []float32) Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	if n != len(data) {
		panic("spaces: tensor data length does not match shape")
	}
	return Tensor{Shape: append([]int(nil), shape...), Data: data}
}

// Size returns the number of elements.
func (t Tensor) Size() int {
	if len(t.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Clone returns a deep copy of t.
func (t Tensor) Clone() Tensor {
	return Tensor{
		Shape: append([]int(nil), t.Shape...),
		Data:  append([]float32(nil), t.Data...),
	}
}

// Equal reports exact shape and element equality.
func (t Tensor) Equal(o Tensor) bool {
	if len(t.Shape) != len(o.Shape) {
		return false
	}
	for i := range t.Shape {
		if t.Shape[i] != o.Shape[i] {
			return false
		}
	}
	if len(t.Data) != len(o.Data) {
		return false
	}
	for i := range t.Data {
		if t.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}

// SameShape reports whether t and o have identical shapes.
func (t Tensor) SameShape(o Tensor) bool {
	if len(t.Shape) != len(o.Shape) {
		return false
	}
	for i := range t.Shape {
		if t.Shape[i] != o.Shape[i] {
			return false
		}
	}
	return true
}

// StackTensors stacks same-shaped tensors along a new leading axis.
// The result shape is [len(ts), ts[0].Shape...].
func StackTensors(ts []Tensor) Tensor {
	if len(ts) == 0 {
		return Tensor{}
	}
	shape := append([]int{len(ts)}, ts[0].Shape...)
	out := NewTensor(shape...)
	n := ts[0].Size()
	for i, t := range ts {
		copy(out.Data[i*n:(i+1)*n], t.Data)
	}
	return out
}

func (t Tensor) writeKey(b *strings.Builder) {
	b.WriteByte('t')
	b.WriteByte('[')
	for i, d := range t.Shape {
		if i > 0 {
			b.WriteByte('x')
		}
		b.WriteString(strconv.Itoa(d))
	}
	b.WriteByte(']')
	b.WriteByte('[')
	for i, f := range t.Data {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
}
