// Package ox implements the 3x3 two-player alternating board game.
//
// Player 0 places O, player 1 places X, and turns alternate until a
// line is completed or the board fills. Occupied cells are reported as
// forbidden moves, so the game exercises multi-player interleaving and
// action masking end to end.
package ox

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"strings"

	"github.com/pocokhc/simple-rl/env"
	"github.com/pocokhc/simple-rl/spaces"
)

func init() {
	env.Register("ox", func() env.Backend { return New() })
}

var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// OX is the board game backend. Cell indexes run row-major, 0 is the
// top-left corner.
type OX struct {
	board [9]int8
	next  int
}

// New returns an empty board with player 0 to move.
func New() *OX { return &OX{} }

// -----------------------------------------------------------------------------
// Backend
// -----------------------------------------------------------------------------

// ActionSpace returns the nine cells.
func (o *OX) ActionSpace() spaces.Space { return spaces.NewDiscrete(9) }

// ObservationSpace returns the board as nine values in [-1, 1]: 1 for
// the first player's marks, -1 for the second's, 0 for empty cells.
func (o *OX) ObservationSpace() spaces.Space { return spaces.NewBox([]int{9}, -1, 1) }

func (o *OX) PlayerNum() int       { return 2 }
func (o *OX) NextPlayer() int      { return o.next }
func (o *OX) MaxEpisodeSteps() int { return 9 }

func (o *OX) Reset(seed int64) (spaces.Value, error) {
	o.board = [9]int8{}
	o.next = 0
	return o.observe(), nil
}

// Step places the next player's mark. Playing an occupied cell loses
// the game on the spot.
func (o *OX) Step(action spaces.Value) (spaces.Value, []float64, bool, bool, error) {
	idx := action.Int
	if idx < 0 || idx > 8 {
		return spaces.Value{}, nil, false, false, fmt.Errorf("ox: cell %d out of range", idx)
	}
	mover := o.next
	if o.board[idx] != 0 {
		return o.observe(), resultRewards(1 - mover), true, false, nil
	}

	o.board[idx] = mark(mover)
	if o.wins(mark(mover)) {
		return o.observe(), resultRewards(mover), true, false, nil
	}
	if o.full() {
		return o.observe(), []float64{0, 0}, true, false, nil
	}
	o.next = 1 - mover
	return o.observe(), []float64{0, 0}, false, false, nil
}

// InvalidActions reports the occupied cells; both players see the same
// mask.
func (o *OX) InvalidActions(player int) []spaces.Value {
	var invalid []spaces.Value
	for i, c := range o.board {
		if c != 0 {
			invalid = append(invalid, spaces.IntValue(i))
		}
	}
	return invalid
}

type oxState struct {
	Board [9]int8
	Next  int
}

func (o *OX) Backup() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(oxState{Board: o.board, Next: o.next}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (o *OX) Restore(payload []byte) error {
	var s oxState
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&s); err != nil {
		return err
	}
	o.board = s.Board
	o.next = s.Next
	return nil
}

func (o *OX) Close() error { return nil }

// -----------------------------------------------------------------------------
// Optional capabilities
// -----------------------------------------------------------------------------

// RenderText draws the board and the player to move.
func (o *OX) RenderText() string {
	var b strings.Builder
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			b.WriteByte(cellSymbol(o.board[row*3+col]))
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "next: %c\n", cellSymbol(mark(o.next)))
	return b.String()
}

// RenderImage draws one pixel per cell: O green, X red, empty black.
func (o *OX) RenderImage() spaces.Tensor {
	t := spaces.NewTensor(3, 3, 3)
	for i, c := range o.board {
		switch c {
		case 1:
			t.Data[i*3+1] = 255
		case -1:
			t.Data[i*3] = 255
		}
	}
	return t
}

func (o *OX) ImageSize() (h, w int) { return 3, 3 }

// ActionToString names cells in chess style, columns A-C and rows 1-3.
func (o *OX) ActionToString(a spaces.Value) string {
	if a.Kind == spaces.ValInt && a.Int >= 0 && a.Int <= 8 {
		return fmt.Sprintf("%c%d", 'A'+a.Int%3, a.Int/3+1)
	}
	return a.String()
}

// -----------------------------------------------------------------------------
// Internals
// -----------------------------------------------------------------------------

func mark(player int) int8 {
	if player == 0 {
		return 1
	}
	return -1
}

func cellSymbol(c int8) byte {
	switch c {
	case 1:
		return 'O'
	case -1:
		return 'X'
	}
	return '.'
}

// resultRewards returns +1 for the winner and -1 for the loser.
func resultRewards(winner int) []float64 {
	r := []float64{-1, -1}
	r[winner] = 1
	return r
}

func (o *OX) observe() spaces.Value {
	t := spaces.NewTensor(9)
	for i, c := range o.board {
		t.Data[i] = float32(c)
	}
	return spaces.TensorValue(t)
}

func (o *OX) wins(m int8) bool {
	for _, ln := range lines {
		if o.board[ln[0]] == m && o.board[ln[1]] == m && o.board[ln[2]] == m {
			return true
		}
	}
	return false
}

func (o *OX) full() bool {
	for _, c := range o.board {
		if c == 0 {
			return false
		}
	}
	return true
}
