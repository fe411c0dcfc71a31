// Package grid implements a small stochastic grid world.
//
// The agent starts at S and walks toward the goal G while avoiding the
// hole H. Moves slip sideways with a configurable probability, walls
// block, and every step costs a small penalty. The world is a
// single-player backend with no forbidden actions; its value lies in
// being fully solvable by tabular methods while still exercising
// stochastic transitions and RNG snapshots.
package grid

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/pocokhc/simple-rl/env"
	"github.com/pocokhc/simple-rl/spaces"
)

func init() {
	env.Register("grid", func() env.Backend { return New() })
}

// Field cell bytes.
const (
	cellFloor = '.'
	cellWall  = '#'
	cellStart = 'S'
	cellGoal  = 'G'
	cellHole  = 'H'
)

var defaultField = []string{
	"######",
	"#...G#",
	"#.#.H#",
	"#S...#",
	"######",
}

// Moves.
const (
	ActLeft = iota
	ActDown
	ActRight
	ActUp
)

var actionNames = [...]string{"left", "down", "right", "up"}

// Grid is the grid world backend. The exported knobs may be changed
// before the first Reset; the field itself is fixed at construction.
type Grid struct {
	// MoveProb is the probability the intended move is taken; the rest
	// of the mass splits evenly between the two perpendicular moves.
	MoveProb float64
	// StepPenalty is the reward of every non-terminal step.
	StepPenalty float64
	GoalReward  float64
	HoleReward  float64
	// MaxSteps is the backend's natural episode length limit.
	MaxSteps int
	// CoordObs switches the observation from the cell index to an
	// (x, y) coordinate tensor.
	CoordObs bool

	field          []string
	w, h           int
	startX, startY int

	x, y int

	rngSrc *rand.PCG
	rng    *rand.Rand
}

// New returns a grid world over the default field.
func New() *Grid {
	g, err := NewWithField(defaultField)
	if err != nil {
		panic(err)
	}
	return g
}

// NewWithField returns a grid world over a custom field. Rows must be
// equal length and contain exactly one start cell.
func NewWithField(field []string) (*Grid, error) {
	g := &Grid{
		MoveProb:    0.8,
		StepPenalty: -0.04,
		GoalReward:  1,
		HoleReward:  -1,
		MaxSteps:    50,
		field:       field,
		startX:      -1,
	}
	g.h = len(field)
	if g.h == 0 {
		return nil, fmt.Errorf("grid: empty field")
	}
	g.w = len(field[0])
	for y, row := range field {
		if len(row) != g.w {
			return nil, fmt.Errorf("grid: row %d has width %d, want %d", y, len(row), g.w)
		}
		for x := 0; x < g.w; x++ {
			if row[x] == cellStart {
				if g.startX >= 0 {
					return nil, fmt.Errorf("grid: multiple start cells")
				}
				g.startX, g.startY = x, y
			}
		}
	}
	if g.startX < 0 {
		return nil, fmt.Errorf("grid: no start cell")
	}

	src := rand.NewPCG(uint64(time.Now().UnixNano()), 0x9E3779B97F4A7C15)
	g.rngSrc = src
	g.rng = rand.New(src)
	g.x, g.y = g.startX, g.startY
	return g, nil
}

// -----------------------------------------------------------------------------
// Backend
// -----------------------------------------------------------------------------

// ActionSpace returns the four moves.
func (g *Grid) ActionSpace() spaces.Space { return spaces.NewDiscrete(4) }

// ObservationSpace returns the cell index space, or the coordinate box
// when CoordObs is set.
func (g *Grid) ObservationSpace() spaces.Space {
	if g.CoordObs {
		return spaces.NewBoxBounds([]int{2},
			[]float64{0, 0},
			[]float64{float64(g.w - 1), float64(g.h - 1)})
	}
	return spaces.NewDiscrete(g.w * g.h)
}

func (g *Grid) PlayerNum() int       { return 1 }
func (g *Grid) NextPlayer() int      { return 0 }
func (g *Grid) MaxEpisodeSteps() int { return g.MaxSteps }

// Reset moves the agent to the start cell. A seed >= 0 makes the slips
// deterministic.
func (g *Grid) Reset(seed int64) (spaces.Value, error) {
	if seed >= 0 {
		src := rand.NewPCG(uint64(seed), 0x9E3779B97F4A7C15)
		g.rngSrc = src
		g.rng = rand.New(src)
	}
	g.x, g.y = g.startX, g.startY
	return g.observe(), nil
}

// Step applies one possibly slipped move.
func (g *Grid) Step(action spaces.Value) (spaces.Value, []float64, bool, bool, error) {
	move := g.slip(action.Int)
	nx, ny := g.x, g.y
	switch move {
	case ActLeft:
		nx--
	case ActDown:
		ny++
	case ActRight:
		nx++
	case ActUp:
		ny--
	}
	if g.cell(nx, ny) != cellWall {
		g.x, g.y = nx, ny
	}

	reward := g.StepPenalty
	terminated := false
	switch g.cell(g.x, g.y) {
	case cellGoal:
		reward = g.GoalReward
		terminated = true
	case cellHole:
		reward = g.HoleReward
		terminated = true
	}
	return g.observe(), []float64{reward}, terminated, false, nil
}

// InvalidActions returns nil; every move is legal, walls just block.
func (g *Grid) InvalidActions(player int) []spaces.Value { return nil }

type gridState struct {
	X, Y int
	RNG  []byte
}

// Backup captures the position and the slip RNG, so restored episodes
// replay identically.
func (g *Grid) Backup() ([]byte, error) {
	rng, err := g.rngSrc.MarshalBinary()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gridState{X: g.x, Y: g.y, RNG: rng}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Grid) Restore(payload []byte) error {
	var s gridState
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&s); err != nil {
		return err
	}
	if err := g.rngSrc.UnmarshalBinary(s.RNG); err != nil {
		return err
	}
	g.x, g.y = s.X, s.Y
	return nil
}

func (g *Grid) Close() error { return nil }

// -----------------------------------------------------------------------------
// Optional capabilities
// -----------------------------------------------------------------------------

// RenderText draws the field with the agent as P.
func (g *Grid) RenderText() string {
	var b strings.Builder
	for y, row := range g.field {
		for x := 0; x < g.w; x++ {
			if x == g.x && y == g.y {
				b.WriteByte('P')
			} else {
				b.WriteByte(row[x])
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// RenderImage draws one pixel per cell: walls gray, the goal green,
// the hole red, the agent blue, floor white.
func (g *Grid) RenderImage() spaces.Tensor {
	t := spaces.NewTensor(g.h, g.w, 3)
	set := func(x, y int, r, gr, bl float32) {
		base := (y*g.w + x) * 3
		t.Data[base] = r
		t.Data[base+1] = gr
		t.Data[base+2] = bl
	}
	for y, row := range g.field {
		for x := 0; x < g.w; x++ {
			switch row[x] {
			case cellWall:
				set(x, y, 64, 64, 64)
			case cellGoal:
				set(x, y, 0, 200, 0)
			case cellHole:
				set(x, y, 200, 0, 0)
			default:
				set(x, y, 255, 255, 255)
			}
		}
	}
	set(g.x, g.y, 0, 0, 255)
	return t
}

func (g *Grid) ImageSize() (h, w int) { return g.h, g.w }

// ActionToString names the move.
func (g *Grid) ActionToString(a spaces.Value) string {
	if a.Kind == spaces.ValInt && a.Int >= 0 && a.Int < len(actionNames) {
		return actionNames[a.Int]
	}
	return a.String()
}

// -----------------------------------------------------------------------------
// Internals
// -----------------------------------------------------------------------------

func (g *Grid) observe() spaces.Value {
	if g.CoordObs {
		t := spaces.NewTensor(2)
		t.Data[0] = float32(g.x)
		t.Data[1] = float32(g.y)
		return spaces.TensorValue(t)
	}
	return spaces.IntValue(g.y*g.w + g.x)
}

// slip keeps the intended move with probability MoveProb and otherwise
// turns it into one of the two perpendicular moves.
func (g *Grid) slip(move int) int {
	r := g.rng.Float64()
	if r < g.MoveProb {
		return move
	}
	if r < g.MoveProb+(1-g.MoveProb)/2 {
		return (move + 1) % 4
	}
	return (move + 3) % 4
}

func (g *Grid) cell(x, y int) byte {
	if x < 0 || x >= g.w || y < 0 || y >= g.h {
		return cellWall
	}
	return g.field[y][x]
}
