package performance

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/dealer-insights/internal/period"
)

// Cache stores backend results in Redis as JSON. A nil client or a
// non-positive TTL disables it.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewCache constructs a report cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl, prefix: "perf:"}
}

// Enabled reports whether lookups can hit.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// Key builds the cache key for one backend query. Every interval is keyed
// exactly, except the rolling week which moves with the clock and is shared
// within a minute.
func (c *Cache) Key(scope Scope, q Query) string {
	prefix := "perf:"
	if c != nil && c.prefix != "" {
		prefix = c.prefix
	}
	iv := q.Interval
	if q.Kind == period.Week {
		iv = iv.Truncate(time.Minute)
	}
	return prefix + strings.Join([]string{string(scope), q.DealerID, string(q.Kind), iv.Key()}, ":")
}

type cachedResult struct {
	Records []Record   `json:"records"`
	Start   *time.Time `json:"start,omitempty"`
	End     *time.Time `json:"end,omitempty"`
}

func (c *Cache) get(ctx context.Context, key string) (ModelResult, bool, error) {
	if !c.Enabled() {
		return ModelResult{}, false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ModelResult{}, false, nil
		}
		return ModelResult{}, false, err
	}
	var cached cachedResult
	if err := json.Unmarshal(data, &cached); err != nil {
		return ModelResult{}, false, err
	}
	return ModelResult{
		Records:  cached.Records,
		Interval: period.Interval{Start: cached.Start, End: cached.End},
	}, true, nil
}

func (c *Cache) set(ctx context.Context, key string, result ModelResult) error {
	if !c.Enabled() {
		return nil
	}
	data, err := json.Marshal(cachedResult{
		Records: result.Records,
		Start:   result.Interval.Start,
		End:     result.Interval.End,
	})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}
