package spaces

// Text observations (terminal renders) are carried as rank-1 boxes of
// rune codes, padded with zeros to a fixed length. This mirrors how
// text-like axes are flattened everywhere else in the runtime: no extra
// space kind, just a box with integral bounds.

const maxRune = 0x10FFFF

// NewTextBox returns the box space describing fixed-length rune-code
// text of the given length.
func NewTextBox(length int) Box {
	return NewBox([]int{length}, 0, maxRune)
}

// EncodeText converts s to a rune-code tensor member of NewTextBox(length).
// Longer strings are truncated, shorter ones zero-padded.
func EncodeText(s string, length int) Value {
	t := NewTensor(length)
	i := 0
	for _, r := range s {
		if i >= length {
			break
		}
		t.Data[i] = float32(r)
		i++
	}
	return TensorValue(t)
}

// DecodeText converts a rune-code tensor back to a string, dropping the
// zero padding.
func DecodeText(v Value) string {
	if v.Kind != ValTensor {
		return ""
	}
	runes := make([]rune, 0, len(v.Tensor.Data))
	for _, f := range v.Tensor.Data {
		r := rune(roundToInt(float64(f)))
		if r == 0 {
			continue
		}
		runes = append(runes, r)
	}
	return string(runes)
}
