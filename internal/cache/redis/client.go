package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/finsight/backend/pkg/logger"
	"github.com/finsight/backend/pkg/utils"
)

// Client is an optional cross-session exact-match answer cache. Keys are
// hashes of the normalized query, so only identical questions hit across
// sessions; semantic matching stays per-session.
type Client struct {
	client *redis.Client
	ttl    time.Duration
}

type CachedAnswer struct {
	Answer    string   `json:"answer"`
	Passages  []string `json:"passages"`
	TokenInfo string   `json:"token_info"`
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

	logger.Info("Redis answer cache initialized",
		zap.String("addr", fmt.Sprintf("%s:%d", host, port)),
		zap.Duration("ttl", ttl),
	)

	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func answerKey(normalizedQuery string) string {
	return "answer:" + utils.HashString(normalizedQuery)
}

func (c *Client) GetAnswer(ctx context.Context, normalizedQuery string) (*CachedAnswer, bool, error) {
	data, err := c.client.Get(ctx, answerKey(normalizedQuery)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached answer: %w", err)
	}

	var cached CachedAnswer
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached answer: %w", err)
	}

	logger.Debug("Shared cache hit", zap.String("key", answerKey(normalizedQuery)))
	return &cached, true, nil
}

func (c *Client) SetAnswer(ctx context.Context, normalizedQuery string, answer *CachedAnswer) error {
	data, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("failed to marshal cached answer: %w", err)
	}

	if err := c.client.Set(ctx, answerKey(normalizedQuery), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cached answer: %w", err)
	}

	return nil
}

// InvalidateAnswers drops every cached answer, e.g. after reingesting a
// filing.
func (c *Client) InvalidateAnswers(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "answer:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Shared answer cache invalidated")
	return nil
}
