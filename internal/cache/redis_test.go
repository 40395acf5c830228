package cache

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/doefacil/doefacil-api/internal/config"
	"github.com/doefacil/doefacil-api/pkg/logger"
)

// setupTestCache starts an in-process Redis server and connects a cache to it.
func setupTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	host, portStr, found := strings.Cut(mr.Addr(), ":")
	if !found {
		t.Fatalf("Unexpected miniredis address %q", mr.Addr())
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("Failed to parse miniredis port: %v", err)
	}

	log := logger.New("error", "json", "stdout")
	c, err := NewRedisCache(&config.RedisConfig{Host: host, Port: port}, log)
	if err != nil {
		t.Fatalf("Failed to create redis cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	return c, mr
}

func TestRedisCache_SetGet(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "leaderboard:top", `[{"user":"alice"}]`, time.Minute); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	val, err := c.Get(ctx, "leaderboard:top")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if val != `[{"user":"alice"}]` {
		t.Errorf("Expected stored value, got %q", val)
	}
}

func TestRedisCache_Get_Missing(t *testing.T) {
	c, _ := setupTestCache(t)

	val, err := c.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get() on missing key failed: %v", err)
	}
	if val != "" {
		t.Errorf("Expected empty value for missing key, got %q", val)
	}
}

func TestRedisCache_SetNX(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "lock:reconciliation", "1", time.Minute)
	if err != nil {
		t.Fatalf("SetNX() failed: %v", err)
	}
	if !ok {
		t.Error("Expected first SetNX to acquire")
	}

	ok, err = c.SetNX(ctx, "lock:reconciliation", "1", time.Minute)
	if err != nil {
		t.Fatalf("Second SetNX() failed: %v", err)
	}
	if ok {
		t.Error("Expected second SetNX to be rejected")
	}
}

func TestRedisCache_Del(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "campaign:1:summary", "{}", time.Minute); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if err := c.Del(ctx, "campaign:1:summary"); err != nil {
		t.Fatalf("Del() failed: %v", err)
	}

	count, err := c.Exists(ctx, "campaign:1:summary")
	if err != nil {
		t.Fatalf("Exists() failed: %v", err)
	}
	if count != 0 {
		t.Error("Expected key to be deleted")
	}
}

func TestRedisCache_Expiration(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "ephemeral", "v", time.Second); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	mr.FastForward(2 * time.Second)

	val, err := c.Get(ctx, "ephemeral")
	if err != nil {
		t.Fatalf("Get() after expiry failed: %v", err)
	}
	if val != "" {
		t.Errorf("Expected key to have expired, got %q", val)
	}
}
