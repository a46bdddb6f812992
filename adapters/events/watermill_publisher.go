package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

const (
	LoginTopic  = "flowauth.login"
	LogoutTopic = "flowauth.logout"
)

// SessionEvent is published when a session starts or ends
type SessionEvent struct {
	Address   string    `json:"address"`
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// NewRedisStreamPublisher publishes events to Redis streams
func NewRedisStreamPublisher(client *redis.Client, logger watermill.LoggerAdapter) (message.Publisher, error) {
	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: client,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis stream publisher: %w", err)
	}
	return publisher, nil
}

// NewInProcessPubSub returns a Go channel pub/sub for single-instance setups and tests
func NewInProcessPubSub(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
}

// PublishLogin publishes a login event
func (p *WatermillPublisher) PublishLogin(ctx context.Context, address string, sessionID string) error {
	return p.publish(ctx, LoginTopic, address, sessionID)
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, address string, sessionID string) error {
	return p.publish(ctx, LogoutTopic, address, sessionID)
}

func (p *WatermillPublisher) publish(ctx context.Context, topic, address, sessionID string) error {
	event := SessionEvent{
		Address:   address,
		SessionID: sessionID,
		At:        time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
