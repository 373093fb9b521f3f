package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/foundernet/foundernet-backend/internal/logger"
	"github.com/foundernet/foundernet-backend/internal/scoring"
)

// ScoreCache shares pair-score breakdowns across replicas so a discovery scan
// on one instance can reuse computations done on another. Every path degrades
// to recomputing, so cache errors are logged at debug and swallowed.
type ScoreCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewScoreCache(log *logger.Logger) (*ScoreCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ttl := 10 * time.Minute
	if raw := strings.TrimSpace(os.Getenv("REDIS_SCORE_TTL")); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			ttl = d
		}
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &ScoreCache{
		log: log.With("client", "RedisScoreCache"),
		rdb: rdb,
		ttl: ttl,
	}, nil
}

// pairCacheKey is direction-agnostic: the scorer is symmetric, so both
// orderings hit the same entry.
func pairCacheKey(a, b uuid.UUID) string {
	lo, hi := a.String(), b.String()
	if hi < lo {
		lo, hi = hi, lo
	}
	return "score:" + lo + ":" + hi
}

func (sc *ScoreCache) Get(ctx context.Context, a, b uuid.UUID) (scoring.Breakdown, bool) {
	raw, err := sc.rdb.Get(ctx, pairCacheKey(a, b)).Bytes()
	if err != nil {
		if err != goredis.Nil {
			sc.log.Debug("score cache get failed", "error", err)
		}
		return scoring.Breakdown{}, false
	}
	var bd scoring.Breakdown
	if err := json.Unmarshal(raw, &bd); err != nil {
		sc.log.Debug("score cache entry malformed", "error", err)
		return scoring.Breakdown{}, false
	}
	return bd, true
}

func (sc *ScoreCache) Set(ctx context.Context, a, b uuid.UUID, bd scoring.Breakdown) {
	raw, err := json.Marshal(bd)
	if err != nil {
		return
	}
	if err := sc.rdb.Set(ctx, pairCacheKey(a, b), raw, sc.ttl).Err(); err != nil {
		sc.log.Debug("score cache set failed", "error", err)
	}
}

func (sc *ScoreCache) Close() error {
	return sc.rdb.Close()
}
