package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T, indexes []Index) *Redis {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Skipping integration test: Redis not available (%v)", err)
	}

	backend, err := NewRedisWithConfig(RedisConfig{
		Client:    client,
		Indexes:   indexes,
		KeyPrefix: fmt.Sprintf("tollgate_test_%d", time.Now().UnixNano()),
	})
	if err != nil {
		t.Fatalf("Failed to create Redis backend: %v", err)
	}
	t.Cleanup(func() { backend.Close() })

	return backend
}

func TestRedis_Integration(t *testing.T) {
	indexes := []Index{
		{Table: "non-fungible", Name: "resource-id-index", Attribute: "resourceId"},
	}

	t.Run("PutAndGet", func(t *testing.T) {
		backend := newTestRedis(t, indexes)
		ctx := context.Background()

		row := Row{
			Key:   Key{Hash: "gpu-large:acct-1", Range: "state"},
			Attrs: Attributes{"tokens": 2.5, "lastRefill": 1000.0},
		}
		if err := backend.Put(ctx, "fungible", row); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		loaded, err := backend.Get(ctx, "fungible", row.Key)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if tokens, _ := loaded.Attrs.Float64("tokens"); tokens != 2.5 {
			t.Errorf("Expected tokens 2.5, got %v", tokens)
		}

		_, err = backend.Get(ctx, "fungible", Key{Hash: "missing", Range: "state"})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ConditionalWrite", func(t *testing.T) {
		backend := newTestRedis(t, indexes)
		ctx := context.Background()
		key := Key{Hash: "gpu-large:acct-1", Range: "state"}

		err := backend.PutIf(ctx, "fungible", Row{
			Key:   key,
			Attrs: Attributes{"tokens": 3.0, "lastRefill": 1000.0},
		}, IfAbsent())
		if err != nil {
			t.Fatalf("PutIf absent failed: %v", err)
		}

		err = backend.PutIf(ctx, "fungible", Row{
			Key:   key,
			Attrs: Attributes{"tokens": 9.0},
		}, IfAbsent())
		if !errors.Is(err, ErrConditionFailed) {
			t.Errorf("Expected ErrConditionFailed for existing row, got %v", err)
		}

		err = backend.PutIf(ctx, "fungible", Row{
			Key:   key,
			Attrs: Attributes{"tokens": 2.0, "lastRefill": 1005.0},
		}, IfMatch(Attributes{"tokens": 3.0, "lastRefill": 1000.0}))
		if err != nil {
			t.Fatalf("Matching PutIf failed: %v", err)
		}

		err = backend.PutIf(ctx, "fungible", Row{
			Key:   key,
			Attrs: Attributes{"tokens": 1.0},
		}, IfMatch(Attributes{"tokens": 3.0, "lastRefill": 1000.0}))
		if !errors.Is(err, ErrConditionFailed) {
			t.Errorf("Expected ErrConditionFailed for stale condition, got %v", err)
		}
	})

	t.Run("QueryAndDelete", func(t *testing.T) {
		backend := newTestRedis(t, indexes)
		ctx := context.Background()

		for _, rk := range []string{"res-c", "res-a", "res-b"} {
			err := backend.Put(ctx, "non-fungible", Row{
				Key:   Key{Hash: "gpu-large:acct-1", Range: rk},
				Attrs: Attributes{"resourceId": ""},
			})
			if err != nil {
				t.Fatalf("Put failed: %v", err)
			}
		}

		rows, err := backend.Query(ctx, "non-fungible", "gpu-large:acct-1")
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(rows) != 3 {
			t.Fatalf("Expected 3 rows, got %d", len(rows))
		}
		for i, want := range []string{"res-a", "res-b", "res-c"} {
			if rows[i].Key.Range != want {
				t.Errorf("Expected row %d range %s, got %s", i, want, rows[i].Key.Range)
			}
		}

		err = backend.Delete(ctx, "non-fungible", Key{Hash: "gpu-large:acct-1", Range: "res-b"})
		if err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		rows, err = backend.Query(ctx, "non-fungible", "gpu-large:acct-1")
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(rows) != 2 {
			t.Errorf("Expected 2 rows after delete, got %d", len(rows))
		}
	})

	t.Run("IndexMaintenance", func(t *testing.T) {
		backend := newTestRedis(t, indexes)
		ctx := context.Background()
		key := Key{Hash: "gpu-large:acct-1", Range: "res-1"}

		err := backend.Put(ctx, "non-fungible", Row{
			Key:   key,
			Attrs: Attributes{"resourceId": "i-first"},
		})
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		rows, err := backend.QueryIndex(ctx, "non-fungible", "resource-id-index", "i-first")
		if err != nil {
			t.Fatalf("QueryIndex failed: %v", err)
		}
		if len(rows) != 1 {
			t.Fatalf("Expected 1 row, got %d", len(rows))
		}

		// Rewriting the indexed attribute must move the row between sets
		err = backend.Put(ctx, "non-fungible", Row{
			Key:   key,
			Attrs: Attributes{"resourceId": "i-second"},
		})
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		rows, err = backend.QueryIndex(ctx, "non-fungible", "resource-id-index", "i-first")
		if err != nil {
			t.Fatalf("QueryIndex failed: %v", err)
		}
		if len(rows) != 0 {
			t.Errorf("Expected 0 rows under old value, got %d", len(rows))
		}
		rows, err = backend.QueryIndex(ctx, "non-fungible", "resource-id-index", "i-second")
		if err != nil {
			t.Fatalf("QueryIndex failed: %v", err)
		}
		if len(rows) != 1 {
			t.Errorf("Expected 1 row under new value, got %d", len(rows))
		}

		// Deleting the row must clear its index membership
		if err := backend.Delete(ctx, "non-fungible", key); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		rows, err = backend.QueryIndex(ctx, "non-fungible", "resource-id-index", "i-second")
		if err != nil {
			t.Fatalf("QueryIndex failed: %v", err)
		}
		if len(rows) != 0 {
			t.Errorf("Expected 0 rows after delete, got %d", len(rows))
		}
	})

	t.Run("Expiry", func(t *testing.T) {
		backend := newTestRedis(t, indexes)
		ctx := context.Background()
		key := Key{Hash: "gpu-large:acct-1", Range: "res-1"}

		err := backend.Put(ctx, "non-fungible", Row{
			Key:       key,
			Attrs:     Attributes{"resourceId": ""},
			ExpiresAt: time.Now().Add(100 * time.Millisecond),
		})
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		if _, err := backend.Get(ctx, "non-fungible", key); err != nil {
			t.Fatalf("Get before expiry failed: %v", err)
		}

		time.Sleep(200 * time.Millisecond)

		if _, err := backend.Get(ctx, "non-fungible", key); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound after expiry, got %v", err)
		}

		// Queries self-heal stale partition members left by expired rows
		rows, err := backend.Query(ctx, "non-fungible", "gpu-large:acct-1")
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(rows) != 0 {
			t.Errorf("Expected 0 rows after expiry, got %d", len(rows))
		}
	})

	t.Run("SharedState", func(t *testing.T) {
		backend := newTestRedis(t, indexes)
		ctx := context.Background()
		key := Key{Hash: "gpu-large:acct-1", Range: "state"}

		// A second backend over the same prefix sees the first one's writes
		other, err := NewRedisWithConfig(RedisConfig{
			Client:    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
			Indexes:   indexes,
			KeyPrefix: backend.prefix,
		})
		if err != nil {
			t.Fatalf("Failed to create second backend: %v", err)
		}
		defer other.Close()

		err = backend.PutIf(ctx, "fungible", Row{
			Key:   key,
			Attrs: Attributes{"tokens": 1.0},
		}, IfAbsent())
		if err != nil {
			t.Fatalf("PutIf failed: %v", err)
		}

		err = other.PutIf(ctx, "fungible", Row{
			Key:   key,
			Attrs: Attributes{"tokens": 5.0},
		}, IfAbsent())
		if !errors.Is(err, ErrConditionFailed) {
			t.Errorf("Second process should see the row written by the first, got %v", err)
		}
	})
}
