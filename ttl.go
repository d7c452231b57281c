package nanocol

import (
	"context"
	"time"

	"github.com/nolandb/nanocol/errors"
)

// ttlConfig mirrors the spec's `TTL: {age, interval, handle}` collection field
type ttlConfig struct {
	age      time.Duration
	interval time.Duration
	cancel   context.CancelFunc
}

// startTTL launches the eviction daemon via machine.Go, the same
// goroutine-per-background-concern style the event bus uses. Disabled by
// passing age < 0, which cancels any running handle. Forbidden when metadata
// is disabled (validated at construction, see New).
func (c *Collection) startTTL(age, interval time.Duration) error {
	if c.opts.disableMeta && age > 0 {
		return errors.ConfigError("ttl requires metadata to be enabled")
	}
	if c.ttl != nil && c.ttl.cancel != nil {
		c.ttl.cancel()
	}
	if age < 0 {
		c.ttl = nil
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.ttl = &ttlConfig{age: age, interval: interval, cancel: cancel}
	c.bus.m.Go(ctx, func(ctx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case now := <-ticker.C:
				c.sweepExpired(ctx, now)
			}
		}
	})
	return nil
}

// sweepExpired removes every document whose meta.updated is older than
// now - age. Runs as a normal mutation: transaction -> removes -> commit.
func (c *Collection) sweepExpired(ctx context.Context, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var expired []int64
	for _, doc := range c.data {
		meta, ok := doc.Meta()
		if !ok {
			continue
		}
		if meta.age(now) > c.ttl.age {
			if id, ok := doc.ID(); ok {
				expired = append(expired, id)
			}
		}
	}
	for _, id := range expired {
		if err := c.removeByID(ctx, id); err != nil {
			c.logger.Sugar().Warnw("ttl sweep failed to remove document", "id", id, "error", err)
		}
	}
}
