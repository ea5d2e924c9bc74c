package db

import (
	"context"
	"testing"
	"time"
)

func TestWithDeadline(t *testing.T) {
	t.Run("applies query timeout", func(t *testing.T) {
		ctx, cancel := withDeadline(context.Background())
		defer cancel()

		deadline, ok := ctx.Deadline()
		if !ok {
			t.Fatal("expected a deadline")
		}
		if left := time.Until(deadline); left > queryTimeout || left < queryTimeout-time.Second {
			t.Fatalf("deadline in %v, want about %v", left, queryTimeout)
		}
	})

	t.Run("keeps sooner caller deadline", func(t *testing.T) {
		parent, cancelParent := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancelParent()
		want, _ := parent.Deadline()

		ctx, cancel := withDeadline(parent)
		defer cancel()

		got, ok := ctx.Deadline()
		if !ok || !got.Equal(want) {
			t.Fatalf("Deadline() = %v, %v; want %v", got, ok, want)
		}
	})

	t.Run("shortens distant caller deadline", func(t *testing.T) {
		parent, cancelParent := context.WithTimeout(context.Background(), time.Hour)
		defer cancelParent()

		ctx, cancel := withDeadline(parent)
		defer cancel()

		got, _ := ctx.Deadline()
		if time.Until(got) > queryTimeout {
			t.Fatalf("deadline in %v, want at most %v", time.Until(got), queryTimeout)
		}
	})
}

func TestMigrateRequiresPool(t *testing.T) {
	if err := Migrate(context.Background(), nil); err == nil {
		t.Fatal("Migrate(nil) error = nil")
	}
}
