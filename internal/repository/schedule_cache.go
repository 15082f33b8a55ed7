package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/segyhp/credit-engine/internal/domain"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
)

type redisScheduleCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisScheduleCache(client *redis.Client, ttl time.Duration) ScheduleCache {
	return &redisScheduleCache{client: client, ttl: ttl}
}

func (c *redisScheduleCache) Get(ctx context.Context, key string) (*domain.ScheduleResponse, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var schedule domain.ScheduleResponse
	if err := json.Unmarshal(raw, &schedule); err != nil {
		return nil, false, fmt.Errorf("decode cached schedule: %w", err)
	}
	return &schedule, true, nil
}

func (c *redisScheduleCache) Set(ctx context.Context, key string, schedule *domain.ScheduleResponse) error {
	raw, err := json.Marshal(schedule)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// ScheduleKey fingerprints everything a projection depends on, so a changed
// term or a new rate change lands on a fresh key instead of a stale entry.
func ScheduleKey(loanID string, terms domain.LoanTerms, history []domain.RateChangeRecord) string {
	h := xxhash.New()
	write := func(s string) {
		_, _ = h.WriteString(s)
		_, _ = h.WriteString("|")
	}

	write(terms.Principal.StringFixed(2))
	write(strconv.Itoa(terms.TenureMonths))
	write(terms.StartDate.Format(time.DateOnly))
	write(strconv.Itoa(terms.DueDay))
	write(terms.OpeningRate.StringFixed(4))
	for _, r := range history {
		write(r.EffectiveDate.Format(time.DateOnly))
		write(r.AnnualRate.StringFixed(4))
	}

	return fmt.Sprintf("schedule:%s:%016x", loanID, h.Sum64())
}
