package directory

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"proconnect/internal/participant/models"
	"proconnect/pkg/domain"
	"proconnect/pkg/platform/circuit"
)

// Redis key prefix for cached display payloads
const displayKeyPrefix = "directory:display:"

// Cached is a read-through Redis decorator over the directory. Only
// DisplayInfo is cached; Exists always hits the backing store so that
// soft deletes take effect immediately.
//
// A circuit breaker tracks cache health. While open, reads skip Redis and
// go straight to the backing store; writebacks keep probing so the breaker
// closes again once Redis recovers.
type Cached struct {
	backing *Service
	client  *redis.Client
	ttl     time.Duration
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// NewCached wraps the directory with a Redis read-through cache.
// The client must be non-nil; wire the plain Service when Redis is not
// configured.
func NewCached(backing *Service, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cached {
	return &Cached{
		backing: backing,
		client:  client,
		ttl:     ttl,
		breaker: circuit.New("display-cache"),
		logger:  logger,
	}
}

// Exists delegates to the backing store. Existence is never cached.
func (c *Cached) Exists(ctx context.Context, ref domain.ParticipantRef) (bool, error) {
	return c.backing.Exists(ctx, ref)
}

// DisplayInfo serves from Redis when possible, falling back to the backing
// store on miss or cache failure. Cache unavailability never fails the call.
func (c *Cached) DisplayInfo(ctx context.Context, ref domain.ParticipantRef) (*models.DisplayInfo, error) {
	if !c.breaker.IsOpen() {
		if info, ok := c.cacheGet(ctx, ref); ok {
			return info, nil
		}
	}

	info, err := c.backing.DisplayInfo(ctx, ref)
	if err != nil {
		return nil, err
	}
	c.cacheSet(ctx, ref, info)
	return info, nil
}

// DisplayInfoBatch resolves display attributes with bounded concurrency,
// each lookup going through the cache.
func (c *Cached) DisplayInfoBatch(ctx context.Context, refs []domain.ParticipantRef) map[domain.ParticipantRef]*models.DisplayInfo {
	return displayBatch(ctx, c, refs)
}

func (c *Cached) cacheGet(ctx context.Context, ref domain.ParticipantRef) (*models.DisplayInfo, bool) {
	payload, err := c.client.Get(ctx, displayKeyPrefix+ref.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.recordFailure(err)
		return nil, false
	}

	var info models.DisplayInfo
	if err := json.Unmarshal(payload, &info); err != nil {
		// Corrupt entry; treat as a miss and let the writeback replace it.
		return nil, false
	}
	c.recordSuccess()
	return &info, true
}

// cacheSet writes the payload back to Redis. While the breaker is open this
// doubles as the recovery probe: enough consecutive successful writes close
// the circuit again.
func (c *Cached) cacheSet(ctx context.Context, ref domain.ParticipantRef, info *models.DisplayInfo) {
	payload, err := json.Marshal(info)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, displayKeyPrefix+ref.String(), payload, c.ttl).Err(); err != nil {
		c.recordFailure(err)
		return
	}
	c.recordSuccess()
}

func (c *Cached) recordFailure(err error) {
	_, change := c.breaker.RecordFailure()
	if change.Opened {
		c.logger.Warn("display cache unavailable, circuit opened",
			"breaker", c.breaker.Name(),
			"error", err,
		)
	}
}

func (c *Cached) recordSuccess() {
	_, change := c.breaker.RecordSuccess()
	if change.Closed {
		c.logger.Info("display cache recovered, circuit closed",
			"breaker", c.breaker.Name(),
		)
	}
}
