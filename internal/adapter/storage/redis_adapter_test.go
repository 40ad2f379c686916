package storage

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestAcquireLease_Exclusive(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	client.Del(ctx, leaseKeyPrefix+"test-lease")

	token, ok, err := adapter.AcquireLease(ctx, "test-lease", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || token == "" {
		t.Fatal("expected first acquire to succeed")
	}

	_, ok, err = adapter.AcquireLease(ctx, "test-lease", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected second acquire to fail while held")
	}

	if err := adapter.ReleaseLease(ctx, "test-lease", token); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	_, ok, _ = adapter.AcquireLease(ctx, "test-lease", time.Minute)
	if !ok {
		t.Error("expected acquire to succeed after release")
	}
	client.Del(ctx, leaseKeyPrefix+"test-lease")
}

func TestReleaseLease_WrongToken(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	client.Del(ctx, leaseKeyPrefix+"token-lease")

	_, ok, _ := adapter.AcquireLease(ctx, "token-lease", time.Minute)
	if !ok {
		t.Fatal("expected acquire to succeed")
	}

	if err := adapter.ReleaseLease(ctx, "token-lease", "not-the-holder"); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	exists, _ := client.Exists(ctx, leaseKeyPrefix+"token-lease").Result()
	if exists != 1 {
		t.Error("expected lease to survive release with a foreign token")
	}
	client.Del(ctx, leaseKeyPrefix+"token-lease")
}

func TestAcquireLease_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	client.Del(ctx, leaseKeyPrefix+"concurrent-lease")

	var successCount atomic.Int32
	var wg sync.WaitGroup
	concurrency := 100

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := adapter.AcquireLease(ctx, "concurrent-lease", time.Minute)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()

	if successCount.Load() != 1 {
		t.Errorf("expected exactly 1 success, got %d", successCount.Load())
	}
	client.Del(ctx, leaseKeyPrefix+"concurrent-lease")
}
