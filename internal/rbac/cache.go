package rbac

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheVersionKey = "rbac:version"
	bumpChannel     = "rbac.bump"
)

// Cache memoises permission decisions in Redis under a versioned key space.
// Bumping the version invalidates every cached decision at once.
type Cache struct {
	client *redis.Client
	ttl    time.Duration

	// version memoises the Redis version while a listener keeps it current.
	version   atomic.Int64
	listening atomic.Bool
}

// NewCache instantiates the cache helper. A nil client or non-positive ttl disables it.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Enabled reports whether decisions are cached at all.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if !c.Enabled() {
		return 0, nil
	}
	if c.listening.Load() {
		if ver := c.version.Load(); ver > 0 {
			return ver, nil
		}
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		ver, err = c.client.Get(ctx, cacheVersionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	if c.listening.Load() {
		c.version.CompareAndSwap(0, ver)
	}
	return ver, nil
}

// Lookup returns the decision cached for the pair under version ver, if present.
func (c *Cache) Lookup(ctx context.Context, ver int64, principalID int64, res Resource) (Decision, bool, error) {
	if !c.Enabled() {
		return Deny, false, nil
	}
	val, err := c.client.Get(ctx, decisionKey(ver, principalID, res)).Result()
	if errors.Is(err, redis.Nil) {
		return Deny, false, nil
	}
	if err != nil {
		return Deny, false, err
	}
	if val == "1" {
		return Allow, true, nil
	}
	return Deny, true, nil
}

// Store records a decision for the pair under version ver. Callers pass the
// version read before evaluating so a decision computed across a Bump lands
// under a key nobody reads again.
func (c *Cache) Store(ctx context.Context, ver int64, principalID int64, res Resource, d Decision) error {
	if !c.Enabled() {
		return nil
	}
	val := "0"
	if d == Allow {
		val = "1"
	}
	return c.client.Set(ctx, decisionKey(ver, principalID, res), val, c.ttl).Err()
}

// Bump invalidates the cache by incrementing the version and publishing an event.
func (c *Cache) Bump(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return err
	}
	c.version.Store(ver)
	return c.client.Publish(ctx, bumpChannel, strconv.FormatInt(ver, 10)).Err()
}

// ListenForInvalidation subscribes to version bumps published by other
// replicas so the local version memo follows them. It returns once the
// subscription is confirmed; the listener stops when ctx is cancelled.
func (c *Cache) ListenForInvalidation(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	pubsub := c.client.Subscribe(ctx, bumpChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	c.version.Store(0)
	c.listening.Store(true)
	go func() {
		defer func() { _ = pubsub.Close() }()
		defer c.listening.Store(false)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				ver, err := strconv.ParseInt(msg.Payload, 10, 64)
				if err != nil {
					// Unknown payload: fall back to reading Redis on the next lookup.
					c.version.Store(0)
					continue
				}
				if ver > c.version.Load() {
					c.version.Store(ver)
				}
			}
		}
	}()
	return nil
}

func decisionKey(ver int64, principalID int64, res Resource) string {
	return fmt.Sprintf("rbac:decision:%d:%s:%d:v%d", principalID, res.Kind(), res.ID(), ver)
}
