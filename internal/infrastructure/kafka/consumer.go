package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/chethans2005/pawPatrol/internal/infrastructure/redis"
	"github.com/segmentio/kafka-go"
)

// Consumer follows the settlements topic and drops redis cache entries
// made stale by committed settlements. Balances and stock are mutated
// inside the database transaction; the consumer only keeps caches honest.
type Consumer struct {
	reader      *kafka.Reader
	redisClient redis.RedisClient
}

func NewConsumer(brokers []string, topic, groupID string, redisClient redis.RedisClient) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 10e3,
			MaxBytes: 10e6,
		}),
		redisClient: redisClient,
	}
}

func (c *Consumer) Consume(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("failed to read Kafka message", "topic", c.reader.Config().Topic, "error", err)
			continue
		}

		slog.Info("Kafka message received", "topic", msg.Topic, "key", string(msg.Key))

		var event struct {
			EventType string  `json:"event_type"`
			UserID    int64   `json:"user_id"`
			PetID     int64   `json:"pet_id,omitempty"`
			ItemIDs   []int64 `json:"item_ids,omitempty"`
		}
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			slog.Error("failed to unmarshal settlement event", "error", err)
			continue
		}

		switch event.EventType {
		case "order_settled":
			c.invalidate(ctx, fmt.Sprintf("user:%d:balance", event.UserID))
			c.invalidate(ctx, "shop:items")
			for _, itemID := range event.ItemIDs {
				c.invalidate(ctx, fmt.Sprintf("item:%d", itemID))
			}
		case "adoption_approved":
			c.invalidate(ctx, fmt.Sprintf("user:%d:balance", event.UserID))
			c.invalidate(ctx, fmt.Sprintf("pet:%d", event.PetID))
		case "donor_accepted":
			c.invalidate(ctx, fmt.Sprintf("pet:%d", event.PetID))
		default:
			slog.Error("unknown settlement event type", "type", event.EventType)
		}
	}
}

func (c *Consumer) invalidate(ctx context.Context, key string) {
	if err := c.redisClient.Del(ctx, key); err != nil {
		slog.Error("failed to invalidate cache key", "key", key, "error", err)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
