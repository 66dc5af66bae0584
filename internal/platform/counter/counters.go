package counter

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// AllBucket is the reserved tag naming the aggregate bucket of a record
// type.
const AllBucket = "all"

// RecountFunc recomputes a bucket's true value from the store of record.
type RecountFunc func(ctx context.Context) (int64, error)

// Counters implements the bucket maintenance protocol. Writes adjust warm
// buckets in place; cold buckets are recomputed on read. The cache is never
// consulted to decide the correctness of a write, and a cache failure never
// fails the mutation that triggered it — adjustment errors are logged and
// swallowed, leaving the bucket to heal on its next cold read.
type Counters struct {
	store Store
	log   zerolog.Logger
}

func New(store Store, log zerolog.Logger) *Counters {
	return &Counters{store: store, log: log}
}

// BucketKey derives the cache key for a record type's tag bucket.
func BucketKey(entityType, tag string) string {
	if tag == "" {
		tag = AllBucket
	}
	return fmt.Sprintf("count:%s:%s", entityType, tag)
}

// Get returns the bucket's cached value, or recomputes it via recount and
// warms the bucket when it is cold or expired.
func (c *Counters) Get(ctx context.Context, entityType, tag string, recount RecountFunc) (int64, error) {
	key := BucketKey(entityType, tag)
	v, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn().Err(err).Str("bucket", key).Msg("counter cache read failed, recounting")
	} else if ok {
		return v, nil
	}

	n, err := recount(ctx)
	if err != nil {
		return 0, fmt.Errorf("recount %s: %w", key, err)
	}
	if err := c.store.Set(ctx, key, n); err != nil {
		c.log.Warn().Err(err).Str("bucket", key).Msg("counter cache warm failed")
	}
	return n, nil
}

// OnCreate adjusts buckets for a newly created record carrying tags.
func (c *Counters) OnCreate(ctx context.Context, entityType string, tags []string) {
	c.increment(ctx, entityType, AllBucket)
	for _, tag := range tags {
		c.increment(ctx, entityType, tag)
	}
}

// OnDelete reverses the contributions a record made at creation and through
// its current tags.
func (c *Counters) OnDelete(ctx context.Context, entityType string, tags []string) {
	c.decrement(ctx, entityType, AllBucket)
	for _, tag := range tags {
		c.decrement(ctx, entityType, tag)
	}
}

// OnTagsChanged adjusts only the tag buckets a record entered or left; the
// aggregate bucket moves on create and delete alone.
func (c *Counters) OnTagsChanged(ctx context.Context, entityType string, oldTags, newTags []string) {
	old := toSet(oldTags)
	cur := toSet(newTags)
	for tag := range cur {
		if _, ok := old[tag]; !ok {
			c.increment(ctx, entityType, tag)
		}
	}
	for tag := range old {
		if _, ok := cur[tag]; !ok {
			c.decrement(ctx, entityType, tag)
		}
	}
}

func (c *Counters) increment(ctx context.Context, entityType, tag string) {
	if _, _, err := c.store.Increment(ctx, BucketKey(entityType, tag), 1); err != nil {
		c.log.Warn().Err(err).Str("bucket", BucketKey(entityType, tag)).Msg("counter increment failed")
	}
}

func (c *Counters) decrement(ctx context.Context, entityType, tag string) {
	if _, _, err := c.store.Decrement(ctx, BucketKey(entityType, tag), 1); err != nil {
		c.log.Warn().Err(err).Str("bucket", BucketKey(entityType, tag)).Msg("counter decrement failed")
	}
}

func toSet(tags []string) map[string]struct{} {
	s := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		s[t] = struct{}{}
	}
	return s
}
