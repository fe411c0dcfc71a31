package runner

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pocokhc/simple-rl/env"
	"github.com/pocokhc/simple-rl/rl"
)

// Duration wraps time.Duration so run files can say "30s" or "5m".
type Duration time.Duration

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	v, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("runner: bad duration %q: %w", node.Value, err)
	}
	*d = Duration(v)
	return nil
}

// FileConfig mirrors the YAML run file the CLI consumes.
type FileConfig struct {
	Env struct {
		Name            string   `yaml:"name"`
		MaxEpisodeSteps int      `yaml:"max_episode_steps"`
		EpisodeTimeout  Duration `yaml:"episode_timeout"`
		Frameskip       int      `yaml:"frameskip"`
		RandomNoopMax   int      `yaml:"random_noop_max"`
		Assert          bool     `yaml:"assert"`
		Sanitize        bool     `yaml:"sanitize"`
	} `yaml:"env"`

	Algorithm struct {
		Name string `yaml:"name"`
		// Params is decoded by the algorithm itself, so run files can
		// carry any registered algorithm's hyperparameters.
		Params yaml.Node `yaml:"params"`
	} `yaml:"algorithm"`

	MaxEpisodes int      `yaml:"max_episodes"`
	MaxSteps    int      `yaml:"max_steps"`
	Timeout     Duration `yaml:"timeout"`
	Seed        int64    `yaml:"seed"`
	Opponents   []string `yaml:"opponents"`
}

// LoadFile reads and decodes a run file.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("runner: read run file: %w", err)
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("runner: parse run file %s: %w", path, err)
	}
	if cfg.Env.Name == "" {
		return nil, fmt.Errorf("runner: run file %s names no environment", path)
	}
	if cfg.Algorithm.Name == "" {
		return nil, fmt.Errorf("runner: run file %s names no algorithm", path)
	}
	return &cfg, nil
}

// Build turns a run file into a runner and its options. The returned
// options carry the file's limits; callers add callbacks and flip
// Training as the command dictates.
func (c *FileConfig) Build() (*Runner, Options, error) {
	envCfg := env.NewConfig(c.Env.Name)
	envCfg.MaxEpisodeSteps = c.Env.MaxEpisodeSteps
	envCfg.EpisodeTimeout = time.Duration(c.Env.EpisodeTimeout)
	envCfg.Frameskip = c.Env.Frameskip
	envCfg.RandomNoopMax = c.Env.RandomNoopMax
	envCfg.EnableAssertion = c.Env.Assert
	envCfg.EnableSanitize = c.Env.Sanitize

	algo, err := rl.MakeAlgorithm(c.Algorithm.Name)
	if err != nil {
		return nil, Options{}, err
	}
	if c.Algorithm.Params.Kind != 0 {
		pd, ok := algo.(rl.ParamsDecoder)
		if !ok {
			return nil, Options{}, fmt.Errorf("runner: algorithm %q takes no params", c.Algorithm.Name)
		}
		if err := pd.DecodeParams(&c.Algorithm.Params); err != nil {
			return nil, Options{}, fmt.Errorf("runner: algorithm params: %w", err)
		}
	}

	opts := Options{
		MaxEpisodes: c.MaxEpisodes,
		MaxSteps:    c.MaxSteps,
		Timeout:     time.Duration(c.Timeout),
		Seed:        c.Seed,
		Opponents:   c.Opponents,
	}
	return New(envCfg, algo), opts, nil
}
