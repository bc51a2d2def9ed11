package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// NotificationChannel is the pub/sub channel carrying notification
// events for one portal session.
func NotificationChannel(sessionID string) string {
	return fmt.Sprintf("notifications:%s", sessionID)
}

// SpeechKey is the cache key holding synthesized speech for a media id.
func SpeechKey(mediaID string) string {
	return fmt.Sprintf("speech:%s", mediaID)
}
