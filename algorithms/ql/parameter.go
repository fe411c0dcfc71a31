package ql

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// experience is one stored transition. Invalid carries the forbidden
// actions of the next state, so the TD target never bootstraps on a
// move the policy could not take.
type experience struct {
	State   string
	Next    string
	Action  int
	Reward  float64
	Done    bool
	Invalid []int
}

// Parameter is the Q-table, keyed by observation. Rows are created on
// first read and sized from the adapter's action count.
type Parameter struct {
	cfg   *Config
	table map[string][]float64
}

// Q returns the mutable Q-value row for a state key.
func (p *Parameter) Q(key string) []float64 {
	q, ok := p.table[key]
	if !ok {
		q = make([]float64, p.cfg.ActionElements())
		p.table[key] = q
	}
	return q
}

// States returns the number of visited states.
func (p *Parameter) States() int { return len(p.table) }

func (p *Parameter) Backup() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p.table); err != nil {
		return nil, fmt.Errorf("ql: encode q-table: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *Parameter) Restore(payload []byte) error {
	table := map[string][]float64{}
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&table); err != nil {
		return fmt.Errorf("ql: decode q-table: %w", err)
	}
	p.table = table
	return nil
}

// Summary reports the table size.
func (p *Parameter) Summary() string {
	return fmt.Sprintf("q-table: %d states x %d actions", len(p.table), p.cfg.ActionElements())
}
