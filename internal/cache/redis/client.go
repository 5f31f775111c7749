package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/krishi-mitra/backend/pkg/logger"
)

// Client caches normalized diagnosis results keyed by image fingerprint.
// Identical photos resubmitted within the TTL skip the model entirely.
type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = time.Hour
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) SetDiagnosis(ctx context.Context, imageHash string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal diagnosis: %w", err)
	}

	err = c.client.Set(ctx, fmt.Sprintf("diagnosis:%s", imageHash), data, c.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set diagnosis cache: %w", err)
	}

	logger.Debug("Diagnosis cached", zap.String("image_hash", imageHash), zap.Duration("ttl", c.ttl))
	return nil
}

func (c *Client) GetDiagnosis(ctx context.Context, imageHash string, out interface{}) (bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("diagnosis:%s", imageHash)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get diagnosis cache: %w", err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal diagnosis: %w", err)
	}

	logger.Debug("Diagnosis cache hit", zap.String("image_hash", imageHash))
	return true, nil
}

// InvalidateDiagnoses drops every cached result, for use after prompt or
// model changes make old answers stale.
func (c *Client) InvalidateDiagnoses(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "diagnosis:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Diagnosis cache invalidated")
	return nil
}
