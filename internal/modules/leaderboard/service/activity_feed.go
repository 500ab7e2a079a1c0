package service

import (
	"context"
	"encoding/json"
	"fmt"

	leaderboardDto "anoa.com/lazylegends/internal/modules/leaderboard/dto"
	"github.com/redis/go-redis/v9"
)

// ActivityChannel is the redis pub/sub channel carrying live point credits.
const ActivityChannel = "activity_feed"

type ActivityPublisher interface {
	Publish(ctx context.Context, event leaderboardDto.ActivityEvent) error
}

type redisActivityPublisher struct {
	rdb *redis.Client
}

func NewRedisActivityPublisher(rdb *redis.Client) ActivityPublisher {
	return &redisActivityPublisher{rdb: rdb}
}

func (p *redisActivityPublisher) Publish(ctx context.Context, event leaderboardDto.ActivityEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, ActivityChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish activity: %w", err)
	}
	return nil
}

// NoopPublisher drops events; used without redis.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, leaderboardDto.ActivityEvent) error { return nil }
