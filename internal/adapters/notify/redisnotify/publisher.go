// Package redisnotify fans committed board changes out over Redis pub/sub.
package redisnotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hylla/taskflow/internal/app"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is used when no channel is configured.
const DefaultChannel = "taskflow:board"

// Publisher publishes board events as JSON messages on one channel.
type Publisher struct {
	client  *redis.Client
	channel string
}

var _ app.ChangePublisher = (*Publisher)(nil)

// NewPublisher wraps a connected client; the caller owns the client lifecycle.
func NewPublisher(client *redis.Client, channel string) *Publisher {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{client: client, channel: channel}
}

// Channel returns the channel events are published on.
func (p *Publisher) Channel() string {
	return p.channel
}

// PublishBoardEvent implements app.ChangePublisher.
func (p *Publisher) PublishBoardEvent(ctx context.Context, event app.BoardEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode board event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish board event on %s: %w", p.channel, err)
	}
	return nil
}

// Subscribe delivers events for projectID (or every project when empty) to fn until
// ctx is canceled. Malformed messages are skipped.
func (p *Publisher) Subscribe(ctx context.Context, projectID string, fn func(app.BoardEvent)) error {
	sub := p.client.Subscribe(ctx, p.channel)
	defer sub.Close()

	// Wait for the subscription confirmation so no event published after return is missed.
	if _, err := sub.Receive(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", p.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			var event app.BoardEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			if projectID != "" && event.ProjectID != projectID {
				continue
			}
			fn(event)
		}
	}
}
