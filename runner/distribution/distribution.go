// Package distribution splits a run across processes. Actors play
// training episodes and ship experience batches through a Redis-backed
// broker; a single trainer consumes the queue, trains from memory, and
// publishes versioned parameters the actors swap in between episodes.
package distribution

import (
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "distribution")

// Config locates the broker and tunes the loop cadence.
type Config struct {
	// Addr, Password and DB select the Redis server.
	Addr     string
	Password string
	DB       int

	// TaskID namespaces every broker key so tasks can share a server.
	TaskID string

	// BatchMax caps the experiences carried by one shipped payload.
	BatchMax int
	// PollInterval bounds the trainer's blocking pop on the experience
	// queue.
	PollInterval time.Duration
	// PublishInterval paces the trainer's parameter publishes.
	PublishInterval time.Duration
	// KeepaliveTTL expires the task key when its trainer dies.
	KeepaliveTTL time.Duration
}

func (c Config) normalized() Config {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.TaskID == "" {
		c.TaskID = "default"
	}
	if c.BatchMax <= 0 {
		c.BatchMax = 256
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.PublishInterval <= 0 {
		c.PublishInterval = 5 * time.Second
	}
	if c.KeepaliveTTL <= 0 {
		c.KeepaliveTTL = 30 * time.Second
	}
	return c
}

// ConfigFromEnv reads the SRL_* variables, leaving unset fields to
// their defaults.
func ConfigFromEnv() Config {
	var c Config
	if v := os.Getenv("SRL_REDIS_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("SRL_REDIS_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv("SRL_REDIS_DB"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			c.DB = i
		}
	}
	if v := os.Getenv("SRL_TASK_ID"); v != "" {
		c.TaskID = v
	}
	return c
}
