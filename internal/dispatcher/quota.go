// internal/dispatcher/quota.go
package dispatcher

import (
	"context"
	"fmt"
	"time"

	stderrors "autoapply/internal/common/errors"

	"github.com/redis/go-redis/v9"
)

// QuotaReserver owns the per-user daily send counter. Reservation happens
// immediately before each send so concurrent workers cannot oversubscribe
// the quota between the matcher's snapshot and the actual dispatch.
type QuotaReserver struct {
	redis *redis.Client
	now   func() time.Time
}

func NewQuotaReserver(rdb *redis.Client) *QuotaReserver {
	return &QuotaReserver{redis: rdb, now: time.Now}
}

func (q *QuotaReserver) key(userID string) string {
	return fmt.Sprintf("quota:apps:%s:%s", userID, q.now().UTC().Format("2006-01-02"))
}

// Reserve atomically claims one quota slot for today. INCR is the single
// serialization point per user; an over-limit claim is rolled back.
func (q *QuotaReserver) Reserve(ctx context.Context, userID string, max int) error {
	key := q.key(userID)

	n, err := q.redis.Incr(ctx, key).Result()
	if err != nil {
		return stderrors.NewDatabaseQueryFailedError(err)
	}
	if n == 1 {
		q.redis.ExpireAt(ctx, key, nextUTCMidnight(q.now))
	}

	if int(n) > max {
		q.redis.Decr(ctx, key)
		return stderrors.NewQuotaExceededError(userID, max)
	}
	return nil
}

// Release returns a reserved slot, used when a reservation was made but the
// application never left draft (e.g. approval gate).
func (q *QuotaReserver) Release(ctx context.Context, userID string) {
	q.redis.Decr(ctx, q.key(userID))
}

// UsedToday reports the current day's reserved count.
func (q *QuotaReserver) UsedToday(ctx context.Context, userID string) (int, error) {
	n, err := q.redis.Get(ctx, q.key(userID)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, stderrors.NewDatabaseQueryFailedError(err)
	}
	return n, nil
}

func nextUTCMidnight(now func() time.Time) time.Time {
	t := now().UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}
