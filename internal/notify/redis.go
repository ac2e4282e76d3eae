// Package notify provides Notifier implementations for run-lifecycle
// events. The default is a no-op; RedisNotifier fans events out over a
// pub/sub channel for external listeners.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"schedulerd/internal/scheduler"
)

// RedisNotifier publishes run events to a single Redis pub/sub channel.
// Publish never fails the run it reports on — callers treat its error
// return as log-and-continue.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier connects to addr and binds to channel. Connection
// failure is returned immediately so misconfiguration is caught at
// startup rather than silently swallowed on every publish.
func NewRedisNotifier(addr, channel string) (*RedisNotifier, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis notifier: addr is required")
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = "schedulerd:runs"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisNotifier{client: client, channel: channel}, nil
}

// Publish marshals the event and publishes it on the bound channel.
func (n *RedisNotifier) Publish(ctx context.Context, event scheduler.RunEvent) error {
	if n == nil || n.client == nil {
		return nil
	}
	payload := struct {
		JobID      string `json:"jobId"`
		Tenant     int64  `json:"tenant"`
		RunID      string `json:"runId"`
		Source     string `json:"source"`
		Status     string `json:"status"`
		DurationMs int64  `json:"durationMs"`
	}{event.JobID, event.Tenant, event.RunID, event.Source, event.Status, event.DurationMs}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, data).Err()
}

// Close releases the underlying Redis connection.
func (n *RedisNotifier) Close() error {
	if n == nil || n.client == nil {
		return nil
	}
	return n.client.Close()
}
