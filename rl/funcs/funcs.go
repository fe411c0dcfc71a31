// Package funcs provides the numeric helpers shared by the discrete
// algorithms: masked argmax with uniform tie-breaking, weighted
// choice, epsilon-greedy probability vectors, and action-table
// rendering.
package funcs

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/pocokhc/simple-rl/rl"
	"github.com/pocokhc/simple-rl/spaces"
)

// RandomMaxIndex returns the index of the largest value, breaking ties
// uniformly. Indices listed in invalid are excluded from the search.
// vals must have at least one valid entry.
func RandomMaxIndex(rng *rand.Rand, vals []float64, invalid []int) int {
	masked := append([]float64(nil), vals...)
	for _, a := range invalid {
		if a >= 0 && a < len(masked) {
			masked[a] = math.Inf(-1)
		}
	}
	best := floats.Max(masked)
	ties := make([]int, 0, 4)
	for i, v := range masked {
		if v == best {
			ties = append(ties, i)
		}
	}
	if len(ties) == 1 {
		return ties[0]
	}
	return ties[rng.IntN(len(ties))]
}

// ChoiceByProbs draws one index with probability proportional to its
// weight.
func ChoiceByProbs(rng *rand.Rand, probs []float64) int {
	r := rng.Float64() * floats.Sum(probs)
	acc := 0.0
	for i, p := range probs {
		acc += p
		if r <= acc {
			return i
		}
	}
	return len(probs) - 1
}

// EpsilonGreedyProbs returns the per-action probabilities of an
// epsilon-greedy policy over q: the exploration mass is spread
// uniformly over the valid actions, the exploitation mass uniformly
// over the greedy ones. Invalid indices get probability zero.
func EpsilonGreedyProbs(q []float64, invalid []int, epsilon float64) []float64 {
	n := len(q)
	masked := append([]float64(nil), q...)
	for _, a := range invalid {
		if a >= 0 && a < n {
			masked[a] = math.Inf(-1)
		}
	}
	best := floats.Max(masked)
	bestNum := 0
	for _, v := range masked {
		if v == best {
			bestNum++
		}
	}
	validNum := n - len(invalid)

	probs := make([]float64, n)
	for a := 0; a < n; a++ {
		if containsInt(invalid, a) {
			continue
		}
		p := epsilon / float64(validNum)
		if masked[a] == best {
			p += (1 - epsilon) / float64(bestNum)
		}
		probs[a] = p
	}
	return probs
}

// OneHot returns a unit vector of the given size with index i set.
func OneHot(i, size int) []float64 {
	v := make([]float64, size)
	if i >= 0 && i < size {
		v[i] = 1
	}
	return v
}

// RenderDiscreteActions formats one line per action: the environment's
// action name next to describe's value for it, with the greedy pick
// marked. Forbidden actions follow, at most three, marked with an x.
func RenderDiscreteActions(w *rl.WorkerRun, maxIdx int, describe func(int) string) string {
	n := w.Config().ActionElements()
	invalid := w.InvalidActions()
	sp := w.Config().ActionSpace()

	var b strings.Builder
	for a := 0; a < n; a++ {
		if spaces.ContainsValue(invalid, spaces.IntValue(a)) {
			continue
		}
		mark := " "
		if a == maxIdx {
			mark = "*"
		}
		fmt.Fprintf(&b, "%s%-3s: %s\n", mark, w.Env().ActionToString(sp.DecodeInt(a)), describe(a))
	}
	shown := 0
	for a := 0; a < n && shown < 3; a++ {
		if !spaces.ContainsValue(invalid, spaces.IntValue(a)) {
			continue
		}
		shown++
		fmt.Fprintf(&b, "x%-3s: %s\n", w.Env().ActionToString(sp.DecodeInt(a)), describe(a))
	}
	if shown < len(invalid) {
		b.WriteString("... some invalid actions omitted\n")
	}
	return b.String()
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
