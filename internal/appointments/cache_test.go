package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*MonthCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewMonthCache(client, time.Minute), mr
}

func TestMonthCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	if _, ok := cache.Get(ctx, "prov-1", "2024-03"); ok {
		t.Fatal("expected miss on empty cache")
	}

	counts := map[string]int{"2024-03-05": 2, "2024-03-12": 1}
	cache.Set(ctx, "prov-1", "2024-03", counts)

	got, ok := cache.Get(ctx, "prov-1", "2024-03")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if got["2024-03-05"] != 2 || got["2024-03-12"] != 1 {
		t.Errorf("got %v, want %v", got, counts)
	}

	// Other providers and months stay isolated.
	if _, ok := cache.Get(ctx, "prov-2", "2024-03"); ok {
		t.Error("unexpected hit for different provider")
	}
	if _, ok := cache.Get(ctx, "prov-1", "2024-04"); ok {
		t.Error("unexpected hit for different month")
	}
}

func TestMonthCacheExpires(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "prov-1", "2024-03", map[string]int{"2024-03-05": 1})
	mr.FastForward(2 * time.Minute)

	if _, ok := cache.Get(ctx, "prov-1", "2024-03"); ok {
		t.Error("expected miss after TTL")
	}
}

func TestMonthCacheInvalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "prov-1", "2024-03", map[string]int{"2024-03-05": 1})
	cache.Set(ctx, "prov-1", "2024-04", map[string]int{"2024-04-01": 1})

	cache.Invalidate(ctx, "prov-1", "2024-03", "2024-03")

	if _, ok := cache.Get(ctx, "prov-1", "2024-03"); ok {
		t.Error("expected 2024-03 to be dropped")
	}
	if _, ok := cache.Get(ctx, "prov-1", "2024-04"); !ok {
		t.Error("2024-04 should survive")
	}
}

func TestMonthCacheNilReceiver(t *testing.T) {
	var cache *MonthCache
	ctx := context.Background()

	if _, ok := cache.Get(ctx, "prov-1", "2024-03"); ok {
		t.Error("nil cache must always miss")
	}
	cache.Set(ctx, "prov-1", "2024-03", map[string]int{"2024-03-05": 1})
	cache.Invalidate(ctx, "prov-1", "2024-03")
}

func TestMonthCacheUnreachableRedis(t *testing.T) {
	cache, mr := newTestCache(t)
	mr.Close()
	ctx := context.Background()

	cache.Set(ctx, "prov-1", "2024-03", map[string]int{"2024-03-05": 1})
	if _, ok := cache.Get(ctx, "prov-1", "2024-03"); ok {
		t.Error("expected miss when redis is down")
	}
}
