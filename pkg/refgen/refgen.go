package refgen

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const sequenceTTL = 48 * time.Hour

// Generator allocates human-readable reference numbers of the form
// PREFIX-YYYYMMDD-NNNN. Sequences restart daily and are coordinated through
// Redis so concurrent instances never hand out the same number; without a
// Redis client a mutex-guarded process-local counter takes over.
type Generator struct {
	client *redis.Client
	logger *zap.Logger

	mu    sync.Mutex
	local map[string]int64

	now func() time.Time
}

// New constructs a Generator. The Redis client may be nil.
func New(client *redis.Client, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		client: client,
		logger: logger,
		local:  make(map[string]int64),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Next returns the next reference number for the given prefix.
func (g *Generator) Next(ctx context.Context, prefix string) (string, error) {
	date := g.now().Format("20060102")
	seq, err := g.nextSequence(ctx, prefix, date)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%04d", prefix, date, seq), nil
}

func (g *Generator) nextSequence(ctx context.Context, prefix, date string) (int64, error) {
	if g.client != nil {
		key := fmt.Sprintf("refseq:%s:%s", prefix, date)
		seq, err := g.client.Incr(ctx, key).Result()
		if err == nil {
			if seq == 1 {
				if err := g.client.Expire(ctx, key, sequenceTTL).Err(); err != nil {
					g.logger.Warn("failed to set reference sequence TTL", zap.String("key", key), zap.Error(err))
				}
			}
			return seq, nil
		}
		g.logger.Warn("redis sequence unavailable, falling back to local counter", zap.Error(err))
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	key := prefix + ":" + date
	g.local[key]++
	return g.local[key], nil
}
