package locks

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"kioskcm/internal/testutil"
	"kioskcm/pkg/events"
)

func TestBusNotifierPublishesOnLockSubject(t *testing.T) {
	pub := &testutil.RecordingPublisher{}
	n, err := NewBusNotifier(pub, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewBusNotifier() error = %v", err)
	}

	evt := events.LockChanged{ResourceID: uuid.New(), Locked: true}
	n.NotifyLockChange(context.Background(), evt)

	if got := pub.Count(events.LockSubject); got != 1 {
		t.Fatalf("published on %s = %d, want 1", events.LockSubject, got)
	}
	got, ok := pub.Messages[events.LockSubject][0].(events.LockChanged)
	if !ok || got.ResourceID != evt.ResourceID || !got.Locked {
		t.Fatalf("published payload = %#v", pub.Messages[events.LockSubject][0])
	}
}
