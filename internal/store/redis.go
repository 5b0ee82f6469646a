// Package store mirrors relay room membership into Redis so operators and
// sidecar tooling can inspect live rooms. The relay never reads it back.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/localdrop/localdrop/internal/config"
	"github.com/localdrop/localdrop/internal/presence"
)

const (
	// RoomTTL bounds how long a snapshot outlives a crashed relay.
	RoomTTL = 24 * time.Hour

	queueSize = 128
)

// Connect opens a client and verifies it with a PING.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Key returns the Redis key holding a room's participant snapshot.
func Key(room string) string {
	return "room:" + room + ":participants"
}

type snapshot struct {
	room         string
	participants []presence.Participant
}

// RedisMirror writes room snapshots to Redis from its own goroutine.
type RedisMirror struct {
	rdb    redis.Cmdable
	queue  chan snapshot
	logger *slog.Logger
}

// NewRedisMirror creates a mirror. Call Run to start writing.
func NewRedisMirror(rdb redis.Cmdable, logger *slog.Logger) *RedisMirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisMirror{
		rdb:    rdb,
		queue:  make(chan snapshot, queueSize),
		logger: logger,
	}
}

// RoomChanged queues a snapshot. It never blocks; when Redis falls behind
// snapshots are dropped and the next change for the room catches it up.
func (m *RedisMirror) RoomChanged(room string, participants []presence.Participant) {
	select {
	case m.queue <- snapshot{room: room, participants: participants}:
	default:
		m.logger.Warn("redis mirror queue full, dropping snapshot", "room", room)
	}
}

// Run writes queued snapshots until ctx is cancelled.
func (m *RedisMirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-m.queue:
			if err := m.write(ctx, s); err != nil {
				m.logger.Warn("redis mirror write failed", "room", s.room, "error", err)
			}
		}
	}
}

func (m *RedisMirror) write(ctx context.Context, s snapshot) error {
	if len(s.participants) == 0 {
		return m.rdb.Del(ctx, Key(s.room)).Err()
	}

	data, err := json.Marshal(s.participants)
	if err != nil {
		return err
	}
	return m.rdb.Set(ctx, Key(s.room), data, RoomTTL).Err()
}
