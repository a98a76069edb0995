package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segyhp/progressive-loan-engine/internal/domain"
)

// ErrMiss is returned when no schedule is cached for a loan.
var ErrMiss = errors.New("cache miss")

// ScheduleCache keeps the last generated schedule of a loan.
type ScheduleCache interface {
	Get(ctx context.Context, loanID string) ([]*domain.SchedulePeriod, error)
	Set(ctx context.Context, loanID string, periods []*domain.SchedulePeriod) error
	Invalidate(ctx context.Context, loanID string) error
}

type redisScheduleCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewScheduleCache(client *redis.Client, ttl time.Duration) ScheduleCache {
	return &redisScheduleCache{client: client, ttl: ttl}
}

func scheduleKey(loanID string) string {
	return fmt.Sprintf("loan:%s:schedule", loanID)
}

func (c *redisScheduleCache) Get(ctx context.Context, loanID string) ([]*domain.SchedulePeriod, error) {
	raw, err := c.client.Get(ctx, scheduleKey(loanID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}

	var periods []*domain.SchedulePeriod
	if err := json.Unmarshal(raw, &periods); err != nil {
		return nil, fmt.Errorf("decode cached schedule: %w", err)
	}
	return periods, nil
}

func (c *redisScheduleCache) Set(ctx context.Context, loanID string, periods []*domain.SchedulePeriod) error {
	raw, err := json.Marshal(periods)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	return c.client.Set(ctx, scheduleKey(loanID), raw, c.ttl).Err()
}

func (c *redisScheduleCache) Invalidate(ctx context.Context, loanID string) error {
	return c.client.Del(ctx, scheduleKey(loanID)).Err()
}
