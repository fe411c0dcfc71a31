package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// latestPointer is the file naming the newest checkpoint in a
// checkpoint directory.
const latestPointer = "latest"

// Checkpointer is a callback that saves the run's parameter on an
// interval and once more when the run ends.
type Checkpointer struct {
	// Dir receives the checkpoint files; it is created on first save.
	Dir string
	// Interval throttles episode-end saves. Zero saves after every
	// episode.
	Interval time.Duration
	// OnSave, when set, observes every written checkpoint path.
	OnSave func(path string)

	last time.Time
}

func NewCheckpointer(dir string, interval time.Duration) *Checkpointer {
	return &Checkpointer{Dir: dir, Interval: interval}
}

func (c *Checkpointer) Name() string { return "checkpointer" }

func (c *Checkpointer) OnEpisodeEnd(run *Run) {
	if c.Interval > 0 && time.Since(c.last) < c.Interval {
		return
	}
	c.save(run)
}

// OnTrain covers train-only runs, which never see an episode end. It
// saves nothing unless an interval is set.
func (c *Checkpointer) OnTrain(run *Run) {
	if c.Interval <= 0 || time.Since(c.last) < c.Interval {
		return
	}
	c.save(run)
}

func (c *Checkpointer) OnRunEnd(run *Run) { c.save(run) }

func (c *Checkpointer) save(run *Run) {
	payload, err := run.Parameter.Backup()
	if err != nil {
		log.Warnf("checkpoint: backup parameter: %v", err)
		return
	}
	path, err := SaveParameter(c.Dir, payload)
	if err != nil {
		log.Warnf("checkpoint: %v", err)
		return
	}
	c.last = time.Now()
	log.WithField("path", path).Info("checkpoint saved")
	if c.OnSave != nil {
		c.OnSave(path)
	}
}

// SaveParameter writes one checkpoint file and repoints latest at it.
// Both writes go through a temp file and a rename.
func SaveParameter(dir string, payload []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("runner: checkpoint dir: %w", err)
	}
	name := fmt.Sprintf("params-%d.ckpt", time.Now().UnixNano())
	path := filepath.Join(dir, name)
	if err := writeAtomic(path, payload); err != nil {
		return "", err
	}
	if err := writeAtomic(filepath.Join(dir, latestPointer), []byte(name)); err != nil {
		return "", err
	}
	return path, nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("runner: write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("runner: place checkpoint: %w", err)
	}
	return nil
}

// LoadLatest reads the checkpoint the latest pointer names and returns
// its payload and path.
func LoadLatest(dir string) ([]byte, string, error) {
	name, err := os.ReadFile(filepath.Join(dir, latestPointer))
	if err != nil {
		return nil, "", fmt.Errorf("runner: no latest checkpoint in %s: %w", dir, err)
	}
	path := filepath.Join(dir, strings.TrimSpace(string(name)))
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("runner: read checkpoint: %w", err)
	}
	return payload, path, nil
}

// Watch emits checkpoint paths as they land in dir, until the context
// ends. The directory must exist before watching.
func Watch(ctx context.Context, dir string) (<-chan string, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}

	ch := make(chan string, 8)
	go func() {
		defer close(ch)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != latestPointer {
					continue
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if _, path, err := LoadLatest(dir); err == nil {
					select {
					case ch <- path:
					case <-ctx.Done():
						return
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warnf("checkpoint watch: %v", err)
			}
		}
	}()
	return ch, nil
}
