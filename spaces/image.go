package spaces

import (
	"math"
	"math/rand/v2"
)

// ImageType describes how an image tensor's channels are interpreted.
type ImageType uint8

const (
	ImageGray  ImageType = iota // H x W, single implicit channel
	ImageGrayC                  // H x W x 1
	ImageColor                  // H x W x 3
)

// Image is a pixel tensor space with elements in [0, 255].
type Image struct {
	Height int
	Width  int
	Type   ImageType
}

// NewGrayImage returns a rank-2 grayscale image space.
func NewGrayImage(h, w int) Image { return Image{Height: h, Width: w, Type: ImageGray} }

// NewColorImage returns an H x W x 3 color image space.
func NewColorImage(h, w int) Image { return Image{Height: h, Width: w, Type: ImageColor} }

// Shape returns the tensor shape for the image's interpretation.
func (s Image) Shape() []int {
	switch s.Type {
	case ImageGrayC:
		return []int{s.Height, s.Width, 1}
	case ImageColor:
		return []int{s.Height, s.Width, 3}
	}
	return []int{s.Height, s.Width}
}

// Kind returns KindImage.
func (s Image) Kind() Kind { return KindImage }

// Size returns the number of elements.
func (s Image) Size() int {
	n := 1
	for _, d := range s.Shape() {
		n *= d
	}
	return n
}

// Check reports whether v is a tensor of the image's shape with every
// element finite and inside [0, 255].
func (s Image) Check(v Value) bool {
	if v.Kind != ValTensor {
		return false
	}
	if !v.Tensor.SameShape(Tensor{Shape: s.Shape()}) {
		return false
	}
	for _, f := range v.Tensor.Data {
		d := float64(f)
		if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 || d > 255 {
			return false
		}
	}
	return true
}

// Sanitize coerces v to a member the same way Box does, with pixel
// bounds [0, 255].
func (s Image) Sanitize(v Value) Value {
	shape := s.Shape()
	n := s.Size()
	ff := flattenFloats(v)
	if len(ff) != n {
		ff = make([]float64, n)
	}
	t := NewTensor(shape...)
	for i, f := range ff {
		t.Data[i] = float32(clampFinite(f, 0, 255))
	}
	return TensorValue(t)
}

// Zero returns the all-black image.
func (s Image) Zero() Value { return TensorValue(NewTensor(s.Shape()...)) }

// Elements returns 0; an image is not enumerable.
func (s Image) Elements() int { return 0 }

// Sample draws uniform pixel values. The invalid list is ignored.
func (s Image) Sample(rng *rand.Rand, _ []Value) Value {
	t := NewTensor(s.Shape()...)
	for i := range t.Data {
		t.Data[i] = float32(rng.Float64() * 255)
	}
	return TensorValue(t)
}

// IntsLen returns the element count.
func (s Image) IntsLen() int { return s.Size() }

// FloatsLen returns the element count.
func (s Image) FloatsLen() int { return s.Size() }

// EncodeInt is not supported for images.
func (s Image) EncodeInt(v Value) int { panic(convErr(KindImage, "EncodeInt")) }

// DecodeInt is not supported for images.
func (s Image) DecodeInt(i int) Value { panic(convErr(KindImage, "DecodeInt")) }

// EncodeInts returns the flattened pixels rounded to ints.
func (s Image) EncodeInts(v Value) []int {
	ii := make([]int, len(v.Tensor.Data))
	for i, f := range v.Tensor.Data {
		ii[i] = roundToInt(float64(f))
	}
	return ii
}

// DecodeInts rebuilds a member tensor from rounded pixels.
func (s Image) DecodeInts(ii []int) Value {
	t := NewTensor(s.Shape()...)
	for i, n := range ii {
		t.Data[i] = float32(n)
	}
	return TensorValue(t)
}

// EncodeFloats returns the flattened pixels as float64.
func (s Image) EncodeFloats(v Value) []float64 {
	ff := make([]float64, len(v.Tensor.Data))
	for i, f := range v.Tensor.Data {
		ff[i] = float64(f)
	}
	return ff
}

// DecodeFloats rebuilds a member tensor from a flat float list.
func (s Image) DecodeFloats(ff []float64) Value {
	if len(ff) != s.Size() {
		panic("spaces: image decode length does not match shape")
	}
	t := NewTensor(s.Shape()...)
	for i, f := range ff {
		t.Data[i] = float32(f)
	}
	return TensorValue(t)
}

// EncodeTensor returns a copy of the member tensor.
func (s Image) EncodeTensor(v Value) Tensor { return v.Tensor.Clone() }

// DecodeTensor accepts a tensor of the image's shape, or a flat tensor
// of matching element count which is reshaped.
func (s Image) DecodeTensor(t Tensor) Value {
	if t.SameShape(Tensor{Shape: s.Shape()}) {
		return TensorValue(t.Clone())
	}
	if t.Size() == s.Size() {
		return TensorValue(TensorOf(s.Shape(), append([]float32(nil), t.Data...)))
	}
	panic("spaces: image decode tensor shape mismatch")
}
