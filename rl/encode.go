package rl

import (
	"math"

	"github.com/pocokhc/simple-rl/spaces"
)

// The conversion between environment-native values and algorithm-native
// values is a fixed mapping keyed by the algorithm's base type:
// discrete algorithms see int lists (observations) and scalar ints
// (actions), continuous and image algorithms see float tensors and
// float lists, and multi algorithms see per-element recursive encodes
// in source order. Config.Setup rejects pairings a space kind cannot
// express, so the dispatch below never hits an unsupported conversion
// at episode time.

// baseOfKind returns the natural algorithm representation of a space
// kind, used to pick the per-element mapping inside composites.
func baseOfKind(k spaces.Kind) BaseType {
	switch k {
	case spaces.KindDiscrete:
		return BaseDiscrete
	case spaces.KindBox:
		return BaseContinuous
	case spaces.KindImage:
		return BaseImage
	}
	return BaseMulti
}

// encodeObservation converts an environment-native observation to the
// algorithm's representation.
func encodeObservation(base BaseType, sp spaces.Space, v spaces.Value) spaces.Value {
	switch base {
	case BaseDiscrete:
		return spaces.IntsValue(sp.EncodeInts(v))
	case BaseContinuous, BaseImage:
		return spaces.TensorValue(sp.EncodeTensor(v))
	case BaseMulti:
		if m, ok := sp.(spaces.Multi); ok {
			elems := make([]spaces.Value, len(m.Spaces))
			for i, el := range m.Spaces {
				elems[i] = encodeObservation(baseOfKind(el.Kind()), el, v.Elems[i])
			}
			return spaces.MultiValue(elems...)
		}
		return spaces.MultiValue(encodeObservation(baseOfKind(sp.Kind()), sp, v))
	}
	return v
}

// encodeAction converts an environment-native action to the algorithm's
// representation. Used for invalid-action bridging and sampling.
func encodeAction(base BaseType, sp spaces.Space, a spaces.Value) spaces.Value {
	switch base {
	case BaseDiscrete:
		return spaces.IntValue(sp.EncodeInt(a))
	case BaseContinuous:
		return spaces.FloatsValue(sp.EncodeFloats(a))
	case BaseImage:
		return spaces.TensorValue(sp.EncodeTensor(a))
	case BaseMulti:
		if m, ok := sp.(spaces.Multi); ok {
			elems := make([]spaces.Value, len(m.Spaces))
			for i, el := range m.Spaces {
				elems[i] = encodeAction(baseOfKind(el.Kind()), el, a.Elems[i])
			}
			return spaces.MultiValue(elems...)
		}
		return spaces.MultiValue(encodeAction(baseOfKind(sp.Kind()), sp, a))
	}
	return a
}

// decodeAction converts an algorithm-native action back to the
// environment's representation.
func decodeAction(base BaseType, sp spaces.Space, a spaces.Value) spaces.Value {
	switch base {
	case BaseDiscrete:
		return sp.DecodeInt(a.Int)
	case BaseContinuous:
		return sp.DecodeFloats(a.Floats)
	case BaseImage:
		return sp.DecodeTensor(a.Tensor)
	case BaseMulti:
		if m, ok := sp.(spaces.Multi); ok {
			elems := make([]spaces.Value, len(m.Spaces))
			for i, el := range m.Spaces {
				elems[i] = decodeAction(baseOfKind(el.Kind()), el, a.Elems[i])
			}
			return spaces.MultiValue(elems...)
		}
		return decodeAction(baseOfKind(sp.Kind()), sp, a.Elems[0])
	}
	return a
}

// checkRLAction reports whether a is a well-formed algorithm-native
// action for the base type and environment action space.
func checkRLAction(base BaseType, sp spaces.Space, a spaces.Value) bool {
	switch base {
	case BaseDiscrete:
		return a.Kind == spaces.ValInt && a.Int >= 0 && (sp.Elements() == 0 || a.Int < sp.Elements())
	case BaseContinuous:
		return a.Kind == spaces.ValFloats && len(a.Floats) == sp.FloatsLen()
	case BaseImage:
		return a.Kind == spaces.ValTensor && a.Tensor.Size() == sp.FloatsLen()
	case BaseMulti:
		if a.Kind != spaces.ValMulti {
			return false
		}
		if m, ok := sp.(spaces.Multi); ok {
			if len(a.Elems) != len(m.Spaces) {
				return false
			}
			for i, el := range m.Spaces {
				if !checkRLAction(baseOfKind(el.Kind()), el, a.Elems[i]) {
					return false
				}
			}
			return true
		}
		return len(a.Elems) == 1 && checkRLAction(baseOfKind(sp.Kind()), sp, a.Elems[0])
	}
	return true
}

// sanitizeRLAction coerces a to a well-formed algorithm-native action.
func sanitizeRLAction(base BaseType, sp spaces.Space, a spaces.Value) spaces.Value {
	if checkRLAction(base, sp, a) {
		return a
	}
	if base == BaseDiscrete {
		i := 0
		switch a.Kind {
		case spaces.ValInt:
			i = a.Int
		case spaces.ValInts:
			if len(a.Ints) > 0 {
				i = a.Ints[0]
			}
		case spaces.ValFloats:
			if len(a.Floats) > 0 && !math.IsNaN(a.Floats[0]) && !math.IsInf(a.Floats[0], 0) {
				i = int(math.Round(a.Floats[0]))
			}
		case spaces.ValTensor:
			if len(a.Tensor.Data) > 0 {
				f := float64(a.Tensor.Data[0])
				if !math.IsNaN(f) && !math.IsInf(f, 0) {
					i = int(math.Round(f))
				}
			}
		}
		if i < 0 {
			i = 0
		}
		if n := sp.Elements(); n > 0 && i >= n {
			i = n - 1
		}
		return spaces.IntValue(i)
	}
	return encodeAction(base, sp, sp.Zero())
}
