// Package monitor pushes live run events to WebSocket viewers and
// serves Prometheus metrics for scraping.
package monitor

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pocokhc/simple-rl/rl"
)

var log = logrus.WithField("component", "monitor")

// EventType names a run event pushed to subscribers.
type EventType string

const (
	EventRunBegin        EventType = "run_begin"
	EventEpisodeEnd      EventType = "episode_end"
	EventTrain           EventType = "train"
	EventCheckpointSaved EventType = "checkpoint_saved"
	EventRunEnd          EventType = "run_end"
)

// Event is the JSON structure every subscriber receives.
type Event struct {
	Type       EventType `json:"type"`
	RunID      string    `json:"run_id,omitempty"`
	Episode    int       `json:"episode,omitempty"`
	Steps      int       `json:"steps,omitempty"`
	Rewards    []float64 `json:"rewards,omitempty"`
	DoneReason string    `json:"done_reason,omitempty"`
	TrainCount int       `json:"train_count,omitempty"`
	Info       rl.Info   `json:"info,omitempty"`
	Path       string    `json:"path,omitempty"`
	Time       int64     `json:"time"`
}

// Hub fans events out to subscribers. A subscriber whose buffer is
// full misses events rather than slowing the run.
type Hub struct {
	mu   sync.Mutex
	subs map[string]chan Event
}

func NewHub() *Hub { return &Hub{subs: map[string]chan Event{}} }

// Subscribe registers a buffered event channel and returns its id for
// Unsubscribe.
func (h *Hub) Subscribe() (string, <-chan Event) {
	id := uuid.NewString()
	ch := make(chan Event, 64)
	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()
	return id, ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
	h.mu.Unlock()
}

// Publish delivers ev to every subscriber with buffer room.
func (h *Hub) Publish(ev Event) {
	if ev.Time == 0 {
		ev.Time = time.Now().UnixMilli()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			log.WithField("subscriber", id).Debug("event dropped")
		}
	}
}

// Count reports the live subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
