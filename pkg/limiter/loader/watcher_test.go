package loader

import (
	"context"
	"testing"
	"time"

	"tollgate-hq/tollgate/pkg/limiter"
	"tollgate-hq/tollgate/pkg/limiter/store"
)

func TestWatcher_ResyncOnChange(t *testing.T) {
	l, backend, path := newTestLoader(t, limitsV1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := l.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	w, err := NewWatcher(WatcherConfig{Loader: l, Debounce: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer func() { _ = w.Stop() }()

	watchDone := make(chan error, 1)
	go func() {
		watchDone <- w.Watch(ctx)
	}()

	// Give the watcher time to register
	time.Sleep(100 * time.Millisecond)

	writeLimits(t, path, limitsV1+`  - resource: tpu-pods
    account: acct-4
    limit: 2
`)

	key := store.Key{Hash: "tpu-pods", Range: "acct-4"}
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := backend.Get(ctx, limiter.DefaultLimitTable, key); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("New limit row never appeared after file change")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := <-watchDone; err != nil {
		t.Fatalf("Watch returned error: %v", err)
	}
}

func TestWatcher_StopBeforeWatch(t *testing.T) {
	l, _, _ := newTestLoader(t, limitsV1)

	w, err := NewWatcher(WatcherConfig{Loader: l})
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop before Watch failed: %v", err)
	}
}

func TestNewWatcher_Validation(t *testing.T) {
	if _, err := NewWatcher(WatcherConfig{}); err == nil {
		t.Error("Expected error for missing loader, got nil")
	}
}
