package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/model"
)

// Redis is the multi-replica cache backend. Entries live under
// <prefix>:<key>; a per-organizer set indexes the live keys so range
// invalidation can find intersecting entries without SCAN.
type Redis struct {
	rdb    *redis.Client
	prefix string
	// index entries outlive data entries by this margin so expired data
	// keys get pruned from the set on the next invalidation pass.
	indexTTL time.Duration
}

func NewRedis(rdb *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "avail"
	}
	return &Redis{rdb: rdb, prefix: prefix, indexTTL: 24 * time.Hour}
}

func (c *Redis) dataKey(key Key) string {
	return c.prefix + ":v1:" + key.String()
}

func (c *Redis) indexKey(organizerID string) string {
	return c.prefix + ":idx:" + organizerID
}

func (c *Redis) Get(ctx context.Context, key Key) (Entry, bool, error) {
	raw, err := c.rdb.Get(ctx, c.dataKey(key)).Bytes()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		// Corrupt entries are treated as misses and recomputed.
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (c *Redis) Put(ctx context.Context, key Key, entry Entry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, c.dataKey(key), raw, ttl)
	pipe.SAdd(ctx, c.indexKey(key.OrganizerID), key.String())
	pipe.Expire(ctx, c.indexKey(key.OrganizerID), c.indexTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *Redis) Invalidate(ctx context.Context, organizerID string, dateRange *model.DateRange) error {
	idx := c.indexKey(organizerID)
	members, err := c.rdb.SMembers(ctx, idx).Result()
	if err != nil {
		return err
	}
	var dataKeys []string
	var indexMembers []string
	for _, m := range members {
		key, err := ParseKey(m)
		if err != nil {
			// Unparseable members are stale format leftovers; drop them.
			indexMembers = append(indexMembers, m)
			continue
		}
		if dateRange != nil && !key.Range().Intersects(*dateRange) {
			continue
		}
		dataKeys = append(dataKeys, c.prefix+":v1:"+m)
		indexMembers = append(indexMembers, m)
	}
	if len(indexMembers) == 0 {
		return nil
	}
	pipe := c.rdb.TxPipeline()
	if len(dataKeys) > 0 {
		pipe.Del(ctx, dataKeys...)
	}
	args := make([]interface{}, len(indexMembers))
	for i, m := range indexMembers {
		args[i] = m
	}
	pipe.SRem(ctx, idx, args...)
	_, err = pipe.Exec(ctx)
	return err
}
