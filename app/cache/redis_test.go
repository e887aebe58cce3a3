package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestGenerateKey(t *testing.T) {
	cache := &Cache{}

	key := cache.GenerateKey("config")
	if key != "rss-insight:config" {
		t.Errorf("Expected key rss-insight:config, got %s", key)
	}

	if cache.GenerateKey("a") == cache.GenerateKey("b") {
		t.Error("Expected different keys for different names")
	}
}

func TestNewCacheFailsWithoutServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Port 1 is never a Redis server.
	cache, err := NewCache(ctx, "127.0.0.1:1")
	if err == nil {
		cache.Close()
		t.Fatal("Expected connection error")
	}
}

func TestHealthReportsUnreachableServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cache := &Cache{client: redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})}
	defer cache.Close()

	health := cache.Health(ctx)
	if health["status"] != "unhealthy" {
		t.Errorf("Expected status unhealthy, got %v", health["status"])
	}
	if health["type"] != "redis" {
		t.Errorf("Expected type redis, got %v", health["type"])
	}
	if _, ok := health["error"]; !ok {
		t.Error("Expected error detail for unreachable server")
	}
}
