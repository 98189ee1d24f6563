package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	kafkaGo "github.com/segmentio/kafka-go"
)

// LogPublisher writes events to the structured log only.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "event published", "topic", topic, "key", key, "payload", string(payload))
	return nil
}

// KafkaPublisher shares one writer across topics; the topic is set per message.
type KafkaPublisher struct {
	w *kafkaGo.Writer
}

func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafkaGo.Writer{
		Addr:                   kafkaGo.TCP(brokers...),
		Balancer:               &kafkaGo.LeastBytes{},
		AllowAutoTopicCreation: true,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return p.w.WriteMessages(ctx, kafkaGo.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
	})
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

// RedisPublisher appends events to one list per topic for an external worker to drain.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

const redisKeyPrefix = "events:"

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: redisKeyPrefix}
}

type redisEnvelope struct {
	Key   string          `json:"key"`
	Event json.RawMessage `json:"event"`
}

func (p *RedisPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	env, err := json.Marshal(redisEnvelope{Key: key, Event: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return p.client.RPush(ctx, p.prefix+topic, env).Err()
}

func (p *RedisPublisher) Close() error { return p.client.Close() }
