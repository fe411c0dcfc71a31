package distribution

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Broker is the wire surface the actor and trainer loops share.
// RedisBroker talks to a live server; tests substitute an in-memory
// implementation.
type Broker interface {
	// PushBatch appends one experience payload to the queue.
	PushBatch(ctx context.Context, payload []byte) error
	// PopBatch blocks up to the poll interval. A nil payload with a
	// nil error means nothing arrived in time.
	PopBatch(ctx context.Context) ([]byte, error)

	// PublishParameter stores the payload and bumps the version.
	PublishParameter(ctx context.Context, payload []byte) (int64, error)
	// FetchParameter returns the payload and its version when newer
	// than since, and (nil, since, nil) when not.
	FetchParameter(ctx context.Context, since int64) ([]byte, int64, error)

	// Task lifecycle. The trainer creates and refreshes the task key;
	// actors stop once it expires or is ended.
	CreateTask(ctx context.Context) error
	Keepalive(ctx context.Context) error
	TaskAlive(ctx context.Context) (bool, error)
	EndTask(ctx context.Context) error

	Close() error
}

// RedisBroker implements Broker on go-redis.
type RedisBroker struct {
	cfg Config
	rdb *redis.Client
}

func NewRedisBroker(cfg Config) *RedisBroker {
	cfg = cfg.normalized()
	return &RedisBroker{
		cfg: cfg,
		rdb: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

// Ping verifies the connection before any loop starts.
func (b *RedisBroker) Ping(ctx context.Context) error { return b.rdb.Ping(ctx).Err() }

func (b *RedisBroker) key(suffix string) string {
	return fmt.Sprintf("srl:%s:%s", b.cfg.TaskID, suffix)
}

func (b *RedisBroker) PushBatch(ctx context.Context, payload []byte) error {
	return b.rdb.LPush(ctx, b.key("experience"), payload).Err()
}

func (b *RedisBroker) PopBatch(ctx context.Context) ([]byte, error) {
	res, err := b.rdb.BRPop(ctx, b.cfg.PollInterval, b.key("experience")).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// BRPOP answers [key, value].
	return []byte(res[1]), nil
}

func (b *RedisBroker) PublishParameter(ctx context.Context, payload []byte) (int64, error) {
	if err := b.rdb.Set(ctx, b.key("parameter"), payload, 0).Err(); err != nil {
		return 0, err
	}
	// The version bumps after the payload lands, so a reader that sees
	// version n always finds a payload at least that new.
	return b.rdb.Incr(ctx, b.key("version")).Result()
}

func (b *RedisBroker) FetchParameter(ctx context.Context, since int64) ([]byte, int64, error) {
	version, err := b.rdb.Get(ctx, b.key("version")).Int64()
	if err == redis.Nil {
		return nil, since, nil
	}
	if err != nil {
		return nil, since, err
	}
	if version <= since {
		return nil, since, nil
	}
	payload, err := b.rdb.Get(ctx, b.key("parameter")).Bytes()
	if err == redis.Nil {
		return nil, since, nil
	}
	if err != nil {
		return nil, since, err
	}
	return payload, version, nil
}

func (b *RedisBroker) CreateTask(ctx context.Context) error {
	return b.rdb.Set(ctx, b.key("task"), "run", b.cfg.KeepaliveTTL).Err()
}

func (b *RedisBroker) Keepalive(ctx context.Context) error {
	return b.rdb.Expire(ctx, b.key("task"), b.cfg.KeepaliveTTL).Err()
}

func (b *RedisBroker) TaskAlive(ctx context.Context) (bool, error) {
	n, err := b.rdb.Exists(ctx, b.key("task")).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (b *RedisBroker) EndTask(ctx context.Context) error {
	return b.rdb.Del(ctx, b.key("task"), b.key("experience"), b.key("parameter"), b.key("version")).Err()
}

func (b *RedisBroker) Close() error { return b.rdb.Close() }
