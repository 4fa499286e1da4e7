package budget

import (
	"context"
	"time"

	"github.com/chinmaysolanki/dost-ai/internal/utils"
	"github.com/redis/go-redis/v9"
)

// counterTTL keeps yesterday's keys around long enough for rollover reads.
const counterTTL = 48 * time.Hour

// Redis tracks budgets in shared counters keyed by (user, UTC day), so
// multiple instances enforce the same caps. Increments are atomic INCRBYs.
type Redis struct {
	rdb    *redis.Client
	limits Limits
}

func NewRedis(rdb *redis.Client, limits Limits) *Redis {
	return &Redis{rdb: rdb, limits: limits}
}

func (r *Redis) keys(userID string) (tokensKey, requestsKey string) {
	d := day(time.Now())
	return "budget:" + userID + ":" + d + ":tokens",
		"budget:" + userID + ":" + d + ":requests"
}

func (r *Redis) Check(ctx context.Context, userID string, estTokens int) error {
	tk, rk := r.keys(userID)

	vals, err := r.rdb.MGet(ctx, tk, rk).Result()
	if err != nil {
		return err
	}

	tokens := parseCounter(vals[0])
	requests := parseCounter(vals[1])

	if r.limits.DailyRequests > 0 && requests+1 > r.limits.DailyRequests {
		return utils.ErrBudgetExceeded
	}
	if r.limits.DailyTokens > 0 && tokens+int64(estTokens) > r.limits.DailyTokens {
		return utils.ErrBudgetExceeded
	}
	return nil
}

func (r *Redis) Commit(ctx context.Context, userID string, tokens int) error {
	tk, rk := r.keys(userID)

	pipe := r.rdb.TxPipeline()
	pipe.IncrBy(ctx, tk, int64(tokens))
	pipe.Incr(ctx, rk)
	pipe.Expire(ctx, tk, counterTTL)
	pipe.Expire(ctx, rk, counterTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Redis) Usage(ctx context.Context, userID string) (Usage, error) {
	tk, rk := r.keys(userID)

	vals, err := r.rdb.MGet(ctx, tk, rk).Result()
	if err != nil {
		return Usage{}, err
	}

	return Usage{
		Tokens:     parseCounter(vals[0]),
		Requests:   parseCounter(vals[1]),
		TokenCap:   r.limits.DailyTokens,
		RequestCap: r.limits.DailyRequests,
	}, nil
}

func parseCounter(v any) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	var n int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int64(c-'0')
	}
	return n
}
