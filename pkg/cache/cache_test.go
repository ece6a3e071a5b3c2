package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type quote struct {
	Ticker string  `json:"ticker"`
	Close  float64 `json:"close"`
}

func TestMemoryCacheRoundTripsStructs(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	if err := mc.Set(ctx, "q", quote{"AAPL", 190.5}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got quote
	if err := mc.Get(ctx, "q", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != (quote{"AAPL", 190.5}) {
		t.Fatalf("unexpected value %+v", got)
	}
	if err := mc.Get(ctx, "missing", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
}

func TestMemoryCacheExpires(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	_ = mc.Set(ctx, "k", 1, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	var v int
	if err := mc.Get(ctx, "k", &v); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expired entry to miss, got %v", err)
	}
	if ok, _ := mc.Exists(ctx, "k"); ok {
		t.Fatalf("expired entry reported as existing")
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	_ = mc.Set(ctx, "a", 1, time.Minute)
	time.Sleep(time.Millisecond)
	_ = mc.Set(ctx, "b", 2, time.Minute)
	time.Sleep(time.Millisecond)
	var v int
	_ = mc.Get(ctx, "a", &v) // a is now more recent than b
	time.Sleep(time.Millisecond)
	_ = mc.Set(ctx, "c", 3, time.Minute)

	if mc.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", mc.Len())
	}
	if err := mc.Get(ctx, "b", &v); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected b to be evicted")
	}
	if err := mc.Get(ctx, "a", &v); err != nil || v != 1 {
		t.Fatalf("expected a to survive, got %v %d", err, v)
	}
}

func TestMemoryCacheLock(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	if ok, _ := mc.TryLock(ctx, "lock:AAPL", time.Minute); !ok {
		t.Fatalf("first lock should succeed")
	}
	if ok, _ := mc.TryLock(ctx, "lock:AAPL", time.Minute); ok {
		t.Fatalf("second lock should fail")
	}
	_ = mc.Unlock(ctx, "lock:AAPL")
	if ok, _ := mc.TryLock(ctx, "lock:AAPL", time.Minute); !ok {
		t.Fatalf("lock after unlock should succeed")
	}
}

func TestLayeredCacheFillsL1FromL2(t *testing.T) {
	ctx := context.Background()
	l2 := NewMemoryCache()
	lc := NewLayeredCache(l2, 10, time.Minute)
	defer lc.Close()

	_ = l2.Set(ctx, "q", quote{"MSFT", 410}, time.Hour)

	var got quote
	if err := lc.Get(ctx, "q", &got); err != nil || got.Ticker != "MSFT" {
		t.Fatalf("unexpected %v %+v", err, got)
	}
	_ = l2.Delete(ctx, "q")
	got = quote{}
	if err := lc.Get(ctx, "q", &got); err != nil || got.Close != 410 {
		t.Fatalf("expected L1 hit after L2 delete, got %v %+v", err, got)
	}
}

func TestRemember(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	calls := 0
	load := func(context.Context) ([]quote, error) {
		calls++
		return []quote{{"AAPL", 1}}, nil
	}
	for i := 0; i < 3; i++ {
		v, hit, err := Remember(ctx, mc, "k", time.Minute, load)
		if err != nil || len(v) != 1 || hit != (i > 0) {
			t.Fatalf("call %d: %v %v %v", i, v, hit, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected loader to run once, ran %d", calls)
	}

	_, _, err := Remember(ctx, mc, "bad", time.Minute, func(context.Context) (int, error) {
		return 0, errors.New("upstream down")
	})
	if err == nil {
		t.Fatalf("expected loader error")
	}
	if ok, _ := mc.Exists(ctx, "bad"); ok {
		t.Fatalf("failed loads must not be cached")
	}
}

func TestKey(t *testing.T) {
	if got := Key("prices", "AAPL", "6mo"); got != "prices:AAPL:6mo" {
		t.Fatalf("got %q", got)
	}
	if got := Key("lock"); got != "lock" {
		t.Fatalf("got %q", got)
	}
}

func TestTextKeyNormalizes(t *testing.T) {
	a := TextKey("Apple  earnings ")
	if len(a) != 32 {
		t.Fatalf("expected 32 hex chars, got %q", a)
	}
	if a != TextKey("apple earnings") {
		t.Fatalf("case and spacing should not change the key")
	}
	if a == TextKey("apple earning") {
		t.Fatalf("different text must not collide")
	}
}

func TestRedisOptionsIgnoreZeroValues(t *testing.T) {
	cfg := &RedisConfig{Addr: "localhost:6379", PoolSize: 10, ReadTimeout: 3 * time.Second}
	for _, opt := range []RedisOption{
		WithRedisAddr(""),
		WithRedisPool(0, 4, 0),
		WithRedisTimeouts(0, -1, time.Second),
	} {
		opt(cfg)
	}
	if cfg.Addr != "localhost:6379" || cfg.PoolSize != 10 || cfg.MinIdleConns != 4 {
		t.Fatalf("unexpected pool config %+v", cfg)
	}
	if cfg.ReadTimeout != 3*time.Second || cfg.WriteTimeout != time.Second {
		t.Fatalf("unexpected timeouts %+v", cfg)
	}
}
