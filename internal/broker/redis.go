package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/vladislav-moscow/Social/internal/logger"
	"github.com/vladislav-moscow/Social/internal/metrics"
	"github.com/vladislav-moscow/Social/internal/telemetry"
)

// RedisBroker publishes and consumes MessageCreated events over Redis pub/sub.
type RedisBroker struct {
	client  *redis.Client
	channel string
}

// NewRedisBroker connects to Redis and verifies the connection.
func NewRedisBroker(host, port, password string) (*RedisBroker, error) {
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "6379"
	}
	addr := fmt.Sprintf("%s:%s", host, port)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 2,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}

	logger.Log.Info("Redis broker connected", zap.String("address", addr))
	return NewRedisBrokerFromClient(client), nil
}

// NewRedisBrokerFromClient wraps an existing client.
func NewRedisBrokerFromClient(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client, channel: MessageCreatedChannel}
}

// PublishMessageCreated publishes evt on the message channel.
func (b *RedisBroker) PublishMessageCreated(ctx context.Context, evt MessageCreated) error {
	ctx, span := telemetry.StartSpan(ctx, "broker", "broker.publish")
	defer span.End()
	span.SetAttributes(
		attribute.String("message.id", evt.Message.ID),
		attribute.String("conversation.id", evt.Message.ConversationID),
	)

	data, err := encode(evt)
	if err != nil {
		return err
	}

	m := metrics.Get()
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		m.BrokerPublishedTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		return fmt.Errorf("publish message created: %w", err)
	}
	m.BrokerPublishedTotal.WithLabelValues("ok").Inc()
	return nil
}

// Subscribe delivers every decoded event to handle until ctx is cancelled.
// Malformed payloads are logged and skipped.
func (b *RedisBroker) Subscribe(ctx context.Context, handle func(MessageCreated)) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	logger.Log.Info("Subscribed to message channel", zap.String("channel", b.channel))

	m := metrics.Get()
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			evt, err := decode(msg.Payload)
			if err != nil {
				logger.WarnWithFields("Dropping malformed broker payload", err)
				continue
			}
			m.BrokerReceivedTotal.Inc()
			handle(evt)
		}
	}
}

// Close releases the Redis connection pool.
func (b *RedisBroker) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}
