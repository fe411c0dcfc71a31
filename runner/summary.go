package runner

import (
	"fmt"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"
)

// RunSummary aggregates a finished run.
type RunSummary struct {
	Episodes   int
	Steps      int
	TrainCount int
	Elapsed    time.Duration

	// MeanRewards and StdRewards hold per-player statistics over the
	// episode reward totals. LastRewards is the final episode's totals.
	MeanRewards []float64
	StdRewards  []float64
	LastRewards []float64
}

func summarize(run *Run) *RunSummary {
	s := &RunSummary{
		Episodes:   run.Episodes,
		Steps:      run.Steps,
		TrainCount: run.TrainCount,
		Elapsed:    time.Since(run.StartTime),
	}
	if len(run.episodeRewards) == 0 {
		return s
	}

	players := len(run.episodeRewards[0])
	s.MeanRewards = make([]float64, players)
	s.StdRewards = make([]float64, players)
	series := make([]float64, len(run.episodeRewards))
	for p := 0; p < players; p++ {
		for i, ep := range run.episodeRewards {
			series[i] = ep[p]
		}
		s.MeanRewards[p] = stat.Mean(series, nil)
		if len(series) > 1 {
			s.StdRewards[p] = stat.StdDev(series, nil)
		}
	}
	s.LastRewards = append([]float64(nil), run.episodeRewards[len(run.episodeRewards)-1]...)
	return s
}

func (s *RunSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "episodes=%d steps=%d elapsed=%s", s.Episodes, s.Steps, s.Elapsed.Round(time.Millisecond))
	if s.TrainCount > 0 {
		fmt.Fprintf(&b, " train=%d", s.TrainCount)
	}
	for p := range s.MeanRewards {
		fmt.Fprintf(&b, " player%d mean=%.3f std=%.3f", p, s.MeanRewards[p], s.StdRewards[p])
	}
	return b.String()
}
