// Package rl implements the agent side of the interaction runtime.
//
// A WorkerRun bridges one learning algorithm and one environment
// adapter: it owns the encode/decode contract between the environment's
// native value kinds and the representation the algorithm requires,
// the windowed observation stacker, and the deferred one-step-behind
// episode bookkeeping that keeps multi-player turn order invisible to
// the algorithm.
package rl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var log = logrus.WithField("component", "rl")

// Sequencing and capability errors.
var (
	ErrNotStarted      = errors.New("rl: start has not been called")
	ErrNotSetup        = errors.New("rl: config has not been set up")
	ErrWindowedEnvStep = errors.New("rl: env step lookahead is not supported with a window length above one")
)

// BaseType is the value representation a learning algorithm requires
// for its actions or observations.
type BaseType uint8

const (
	BaseDiscrete   BaseType = iota // scalar int actions, int list observations
	BaseContinuous                 // float list actions, float tensor observations
	BaseImage                      // tensor actions and observations
	BaseMulti                      // per-element composite, recursively encoded
)

// String returns the base type name.
func (b BaseType) String() string {
	switch b {
	case BaseDiscrete:
		return "DISCRETE"
	case BaseContinuous:
		return "CONTINUOUS"
	case BaseImage:
		return "IMAGE"
	case BaseMulti:
		return "MULTI"
	}
	return "UNKNOWN"
}

// MarshalYAML encodes the base type as its lowercase name.
func (b BaseType) MarshalYAML() (any, error) {
	return strings.ToLower(b.String()), nil
}

// UnmarshalYAML decodes a base type from its name, case-insensitive.
func (b *BaseType) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	switch strings.ToLower(s) {
	case "discrete":
		*b = BaseDiscrete
	case "continuous":
		*b = BaseContinuous
	case "image":
		*b = BaseImage
	case "multi":
		*b = BaseMulti
	default:
		return fmt.Errorf("rl: unknown base type %q", s)
	}
	return nil
}

// ObservationMode selects the observation sources fed to the algorithm.
// Modes combine: an algorithm can see the native observation next to a
// rendered image of the same state.
type ObservationMode uint8

const (
	ObsEnv         ObservationMode = 1 << iota // the backend's native observation
	ObsRenderImage                             // the RGB render as an image source
	ObsRenderText                              // the terminal render as rune codes
)

// Has reports whether mode includes the given source.
func (m ObservationMode) Has(src ObservationMode) bool { return m&src != 0 }

// String returns the source names joined by "|".
func (m ObservationMode) String() string {
	var parts []string
	if m.Has(ObsEnv) {
		parts = append(parts, "env")
	}
	if m.Has(ObsRenderImage) {
		parts = append(parts, "render_image")
	}
	if m.Has(ObsRenderText) {
		parts = append(parts, "render_text")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// MarshalYAML encodes the mode as a source name list.
func (m ObservationMode) MarshalYAML() (any, error) {
	if m == 0 {
		return []string(nil), nil
	}
	return strings.Split(m.String(), "|"), nil
}

// UnmarshalYAML decodes a mode from a source name, a "|" joined
// string, or a sequence of source names.
func (m *ObservationMode) UnmarshalYAML(node *yaml.Node) error {
	var names []string
	if node.Kind == yaml.SequenceNode {
		if err := node.Decode(&names); err != nil {
			return err
		}
	} else {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		names = strings.Split(s, "|")
	}
	out := ObservationMode(0)
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "env":
			out |= ObsEnv
		case "render_image":
			out |= ObsRenderImage
		case "render_text":
			out |= ObsRenderText
		case "":
		default:
			return fmt.Errorf("rl: unknown observation source %q", n)
		}
	}
	*m = out
	return nil
}

// Info carries free-form diagnostics from algorithm hooks to run
// callbacks.
type Info map[string]any

// Merge copies o's entries into the map, overwriting on key collision.
func (in Info) Merge(o Info) {
	for k, v := range o {
		in[k] = v
	}
}
