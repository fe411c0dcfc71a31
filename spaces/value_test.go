package spaces

import "testing"

// TestValueCloneDoesNotAlias verifies mutating a clone leaves the
// original untouched, which snapshot and window buffers depend on.
func TestValueCloneDoesNotAlias(t *testing.T) {
	v := MultiValue(
		IntsValue([]int{1, 2, 3}),
		TensorValue(TensorOf([]int{2}, []float32{4, 5})),
	)
	c := v.Clone()
	c.Elems[0].Ints[0] = 99
	c.Elems[1].Tensor.Data[1] = 99

	if v.Elems[0].Ints[0] != 1 {
		t.Errorf("clone aliased Ints: original mutated to %d", v.Elems[0].Ints[0])
	}
	if v.Elems[1].Tensor.Data[1] != 5 {
		t.Errorf("clone aliased Tensor: original mutated to %v", v.Elems[1].Tensor.Data[1])
	}
}

// TestValueEqual covers arm and payload mismatches.
func TestValueEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"same int", IntValue(3), IntValue(3), true},
		{"different int", IntValue(3), IntValue(4), false},
		{"arm mismatch", IntValue(3), IntsValue([]int{3}), false},
		{"same floats", FloatsValue([]float64{1, 2}), FloatsValue([]float64{1, 2}), true},
		{"floats length", FloatsValue([]float64{1}), FloatsValue([]float64{1, 2}), false},
		{
			"same tensor",
			TensorValue(TensorOf([]int{2}, []float32{1, 2})),
			TensorValue(TensorOf([]int{2}, []float32{1, 2})),
			true,
		},
		{
			"tensor shape",
			TensorValue(TensorOf([]int{2, 1}, []float32{1, 2})),
			TensorValue(TensorOf([]int{2}, []float32{1, 2})),
			false,
		},
		{
			"multi nested",
			MultiValue(IntValue(1), FloatsValue([]float64{2})),
			MultiValue(IntValue(1), FloatsValue([]float64{2})),
			true,
		},
	}
	for _, tt := range tests {
		if got := tt.a.Equal(tt.b); got != tt.want {
			t.Errorf("%s: Equal = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// TestValueKeyStability verifies equal values share a key and distinct
// values do not collide across arms.
func TestValueKeyStability(t *testing.T) {
	a := MultiValue(IntValue(7), FloatsValue([]float64{0.5}))
	b := MultiValue(IntValue(7), FloatsValue([]float64{0.5}))
	if a.Key() != b.Key() {
		t.Errorf("equal values produced different keys: %q vs %q", a.Key(), b.Key())
	}
	seen := map[string]Value{}
	distinct := []Value{
		IntValue(1),
		IntsValue([]int{1}),
		FloatsValue([]float64{1}),
		TensorValue(TensorOf([]int{1}, []float32{1})),
		MultiValue(IntValue(1)),
		IntValue(2),
	}
	for _, v := range distinct {
		k := v.Key()
		if prev, ok := seen[k]; ok {
			t.Errorf("key collision %q between %v and %v", k, prev, v)
		}
		seen[k] = v
	}
}

// TestStackValuesInts verifies int encodings concatenate oldest first.
func TestStackValuesInts(t *testing.T) {
	got := StackValues([]Value{
		IntsValue([]int{1, 2}),
		IntsValue([]int{3, 4}),
		IntsValue([]int{5, 6}),
	})
	want := IntsValue([]int{1, 2, 3, 4, 5, 6})
	if !got.Equal(want) {
		t.Errorf("StackValues = %v, want %v", got, want)
	}
}

// TestStackValuesTensor verifies tensors gain a leading window axis.
func TestStackValuesTensor(t *testing.T) {
	got := StackValues([]Value{
		TensorValue(TensorOf([]int{2}, []float32{1, 2})),
		TensorValue(TensorOf([]int{2}, []float32{3, 4})),
	})
	want := TensorValue(TensorOf([]int{2, 2}, []float32{1, 2, 3, 4}))
	if !got.Equal(want) {
		t.Errorf("StackValues = %v, want %v", got, want)
	}
}

// TestStackValuesFloats verifies float lists stack into a window tensor.
func TestStackValuesFloats(t *testing.T) {
	got := StackValues([]Value{
		FloatsValue([]float64{1, 2, 3}),
		FloatsValue([]float64{4, 5, 6}),
	})
	want := TensorValue(TensorOf([]int{2, 3}, []float32{1, 2, 3, 4, 5, 6}))
	if !got.Equal(want) {
		t.Errorf("StackValues = %v, want %v", got, want)
	}
}

// TestStackValuesMulti verifies composites stack per element.
func TestStackValuesMulti(t *testing.T) {
	got := StackValues([]Value{
		MultiValue(IntsValue([]int{1}), FloatsValue([]float64{10})),
		MultiValue(IntsValue([]int{2}), FloatsValue([]float64{20})),
	})
	want := MultiValue(
		IntsValue([]int{1, 2}),
		TensorValue(TensorOf([]int{2, 1}, []float32{10, 20})),
	)
	if !got.Equal(want) {
		t.Errorf("StackValues = %v, want %v", got, want)
	}
}
