package runner

import (
	"fmt"
	"io"
)

// ConsoleRenderer is a callback that prints the environment view, and
// the acting worker's view when it has one, after every step.
type ConsoleRenderer struct {
	Out io.Writer
}

func (c *ConsoleRenderer) Name() string { return "console-renderer" }

func (c *ConsoleRenderer) OnEpisodeBegin(run *Run) {
	fmt.Fprintf(c.Out, "=== episode %d ===\n%s", run.Episodes+1, run.Env.RenderText())
}

func (c *ConsoleRenderer) OnStep(run *Run) {
	e := run.Env
	fmt.Fprintf(c.Out, "--- step %d player=%d reward=%.3f ---\n%s",
		e.StepNum(), e.PrevPlayer(), e.Reward(), e.RenderText())
	if txt := run.Workers[e.PrevPlayer()].RenderText(); txt != "" {
		fmt.Fprintln(c.Out, txt)
	}
}

func (c *ConsoleRenderer) OnEpisodeEnd(run *Run) {
	e := run.Env
	fmt.Fprintf(c.Out, "episode %d: %s (%s) rewards=%v steps=%d\n",
		run.Episodes, e.DoneType(), e.DoneReason(), e.EpisodeRewards(), e.StepNum())
}
