package cache_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"jarcode/internal/common/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type record struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func newTestCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func marshalRecord(r *record) string {
	data, _ := json.Marshal(r)
	return string(data)
}

func unmarshalRecord(s string) (*record, error) {
	var r record
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func TestGetWithCachedServesSecondReadFromCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, _ := newTestCache(t)

	fetches := 0
	fetch := func(ctx context.Context) (*record, error) {
		fetches++
		return &record{ID: 1, Name: "two-sum"}, nil
	}

	for i := 0; i < 2; i++ {
		got, err := cache.GetWithCached(ctx, c, "record:1",
			time.Minute, 10*time.Second,
			func(r *record) bool { return r == nil },
			marshalRecord, unmarshalRecord, fetch)
		if err != nil {
			t.Fatalf("read %d failed: %v", i+1, err)
		}
		if got == nil || got.Name != "two-sum" {
			t.Fatalf("read %d returned %+v", i+1, got)
		}
	}
	if fetches != 1 {
		t.Fatalf("fetched %d times, want 1", fetches)
	}
}

func TestGetWithCachedCachesAbsence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, mr := newTestCache(t)

	fetches := 0
	fetch := func(ctx context.Context) (*record, error) {
		fetches++
		return nil, nil
	}

	for i := 0; i < 2; i++ {
		got, err := cache.GetWithCached(ctx, c, "record:404",
			time.Minute, 10*time.Second,
			func(r *record) bool { return r == nil },
			marshalRecord, unmarshalRecord, fetch)
		if err != nil {
			t.Fatalf("read %d failed: %v", i+1, err)
		}
		if got != nil {
			t.Fatalf("read %d returned %+v, want nil", i+1, got)
		}
	}
	if fetches != 1 {
		t.Fatalf("fetched %d times, want absence cached after the first", fetches)
	}
	if stored, err := mr.Get("record:404"); err != nil || stored != cache.NullCacheValue {
		t.Fatalf("stored = %q, %v; want null sentinel", stored, err)
	}
}

func TestUpdateCachedInvalidatesKey(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, mr := newTestCache(t)

	if err := c.Set(ctx, "record:1", "stale", time.Minute); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	err := cache.UpdateCached(ctx, c, "record:1", func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if mr.Exists("record:1") {
		t.Fatal("key still cached after update")
	}
}

func TestIncrWithExpireActsAsWindowCounter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, mr := newTestCache(t)

	const key = "submit:rate:7"
	for want := int64(1); want <= 3; want++ {
		count, err := c.Incr(ctx, key)
		if err != nil {
			t.Fatalf("incr failed: %v", err)
		}
		if count != want {
			t.Fatalf("count = %d, want %d", count, want)
		}
		if count == 1 {
			if err := c.Expire(ctx, key, time.Minute); err != nil {
				t.Fatalf("expire failed: %v", err)
			}
		}
	}

	mr.FastForward(2 * time.Minute)
	count, err := c.Incr(ctx, key)
	if err != nil {
		t.Fatalf("incr after window failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want counter reset after the window", count)
	}
}

func TestGetMissingKeyReturnsEmpty(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(t)

	value, err := c.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if value != "" {
		t.Fatalf("value = %q, want empty for a miss", value)
	}
}

func TestJitterTTLStaysWithinBounds(t *testing.T) {
	t.Parallel()

	ttl := 10 * time.Minute
	for i := 0; i < 100; i++ {
		jittered := cache.JitterTTL(ttl)
		if jittered > ttl || jittered < ttl-ttl/10 {
			t.Fatalf("jittered ttl %v outside [%v, %v]", jittered, ttl-ttl/10, ttl)
		}
	}
	if cache.JitterTTL(0) != 0 {
		t.Fatal("zero ttl must pass through")
	}
}
