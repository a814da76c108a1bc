package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// countingPurger records which tables were purged.
type countingPurger struct {
	mu     sync.Mutex
	purged map[string]int
	err    error
}

func (p *countingPurger) PurgeExpired(ctx context.Context, table string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return 0, p.err
	}
	if p.purged == nil {
		p.purged = make(map[string]int)
	}
	p.purged[table]++
	return 3, nil
}

func TestSweeper_RunOnce(t *testing.T) {
	purger := &countingPurger{}
	sweeper := NewSweeper(purger, SweeperConfig{
		Tables: []string{"fungible", "non-fungible"},
	})

	total, err := sweeper.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if total != 6 {
		t.Errorf("Expected 6 purged rows, got %d", total)
	}
	if purger.purged["fungible"] != 1 || purger.purged["non-fungible"] != 1 {
		t.Errorf("Expected each table purged once, got %v", purger.purged)
	}
}

func TestSweeper_RunOnceError(t *testing.T) {
	purger := &countingPurger{err: fmt.Errorf("backend down")}
	sweeper := NewSweeper(purger, SweeperConfig{Tables: []string{"fungible"}})

	if _, err := sweeper.RunOnce(context.Background()); err == nil {
		t.Error("Expected error from failing purger, got nil")
	}
}

func TestSweeper_InvalidSchedule(t *testing.T) {
	sweeper := NewSweeper(&countingPurger{}, SweeperConfig{
		Tables:   []string{"fungible"},
		Schedule: "not a cron expression",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sweeper.Start(ctx); err == nil {
		t.Error("Expected error for invalid schedule, got nil")
	}
}

func TestSweeper_StartStop(t *testing.T) {
	sweeper := NewSweeper(&countingPurger{}, SweeperConfig{
		Tables:   []string{"fungible"},
		Schedule: "*/5 * * * *",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sweeper.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !sweeper.IsRunning() {
		t.Error("Expected sweeper to be running after Start")
	}
	if next := sweeper.NextRun(); next == nil || next.Before(time.Now()) {
		t.Error("Expected a future NextRun time")
	}

	sweeper.Stop()
	if sweeper.IsRunning() {
		t.Error("Expected sweeper to be stopped after Stop")
	}
}

func TestSweeper_PurgesExpiredRows(t *testing.T) {
	clock := newTestClock(time.Unix(1_700_000_000, 0))
	backend := NewMemoryWithConfig(MemoryConfig{NowFunc: clock.Now})
	defer backend.Close()

	ctx := context.Background()

	err := backend.Put(ctx, "non-fungible", Row{
		Key:       Key{Hash: "gpu-large:acct-1", Range: "res-1"},
		Attrs:     Attributes{"resourceId": ""},
		ExpiresAt: clock.Now().Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	clock.Advance(5 * time.Minute)

	sweeper := NewSweeper(backend, SweeperConfig{Tables: []string{"non-fungible"}})
	total, err := sweeper.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if total != 1 {
		t.Errorf("Expected 1 purged row, got %d", total)
	}
}
