package locks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"kioskcm/services/store"
)

func TestSweeperRemovesExpiredLocks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res := f.node(t, nil, store.TypeRoot)

	if _, err := f.ctrl.Acquire(ctx, f.appID, res, "u1"); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	f.clock.Advance(6 * time.Minute)

	sweeper, err := NewSweeper(f.ctrl, 10*time.Millisecond, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSweeper() error = %v", err)
	}
	if err := sweeper.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = sweeper.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, err := f.store.GetLockByResource(ctx, res)
		if errors.Is(err, store.ErrNotFound) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("sweeper did not remove expired lock, last error = %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := sweeper.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}
