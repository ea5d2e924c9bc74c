package audit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"kioskcm/pkg/events"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

type fakeBus struct {
	mu       sync.Mutex
	handlers map[string]func(context.Context, []byte) error
	durables []string
	closed   int
}

func (b *fakeBus) Subscribe(_ context.Context, subj, durable string, fn func(context.Context, []byte) error) (io.Closer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers == nil {
		b.handlers = map[string]func(context.Context, []byte) error{}
	}
	b.handlers[subj] = fn
	b.durables = append(b.durables, durable)
	return closerFunc(func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.closed++
		return nil
	}), nil
}

func (b *fakeBus) deliver(t *testing.T, subj string, v any) error {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b.mu.Lock()
	fn := b.handlers[subj]
	b.mu.Unlock()
	if fn == nil {
		t.Fatalf("no handler for %s", subj)
	}
	return fn(context.Background(), data)
}

type recordingWriter struct {
	entries []Entry
	err     error
}

func (w *recordingWriter) Insert(_ context.Context, e Entry) error {
	if w.err != nil {
		return w.err
	}
	w.entries = append(w.entries, e)
	return nil
}

func TestIngestorRecordsEvents(t *testing.T) {
	writer := &recordingWriter{}
	bus := &fakeBus{}
	ing, err := NewIngestor(writer, bus, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewIngestor() error = %v", err)
	}
	if err := ing.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if len(bus.durables) != 2 {
		t.Fatalf("durables = %v, want two consumers", bus.durables)
	}

	at := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	resource := uuid.New()
	source := uuid.New()
	if err := bus.deliver(t, events.LockSubject, events.LockChanged{ResourceID: resource, Locked: true, UserID: "u1", At: at}); err != nil {
		t.Fatalf("lock handler error = %v", err)
	}
	if err := bus.deliver(t, events.ResourceSubject, events.ResourceChanged{Action: events.ActionCopied, ResourceID: resource, SourceID: &source, Count: 3, ActorID: "u2", At: at}); err != nil {
		t.Fatalf("resource handler error = %v", err)
	}

	if len(writer.entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(writer.entries))
	}
	lock := writer.entries[0]
	if lock.Actor != "u1" || lock.Action != actionLocked || lock.Obj != resource.String() || !lock.At.Equal(at) {
		t.Fatalf("lock entry = %+v", lock)
	}
	copied := writer.entries[1]
	if copied.Action != string(events.ActionCopied) || copied.Details["source_id"] != source.String() || copied.Details["count"] != 3 {
		t.Fatalf("copy entry = %+v", copied)
	}

	if err := ing.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if bus.closed != 2 {
		t.Fatalf("closed subscriptions = %d, want 2", bus.closed)
	}
}

func TestIngestorNacksFailedWrites(t *testing.T) {
	writer := &recordingWriter{err: errors.New("connection refused")}
	bus := &fakeBus{}
	ing, _ := NewIngestor(writer, bus, zerolog.Nop())
	if err := ing.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	err := bus.deliver(t, events.LockSubject, events.LockChanged{ResourceID: uuid.New()})
	if err == nil {
		t.Fatalf("handler error = nil, want the write failure for redelivery")
	}
	if err := bus.deliver(t, events.LockSubject, map[string]any{"locked": true}); err != nil {
		t.Fatalf("malformed event error = %v, want it dropped", err)
	}
}

func TestEntryFromLock(t *testing.T) {
	resource := uuid.New()
	app := uuid.New()
	data, _ := json.Marshal(events.LockChanged{ResourceID: resource, ApplicationID: app})

	e, err := entryFromLock(data)
	if err != nil {
		t.Fatalf("entryFromLock() error = %v", err)
	}
	if e.Action != actionUnlocked || e.Actor != systemActor || e.Details["application_id"] != app.String() {
		t.Fatalf("entry = %+v", e)
	}
	if e.At.IsZero() {
		t.Fatalf("missing timestamp not defaulted")
	}

	if _, err := entryFromLock([]byte("{")); err == nil {
		t.Fatalf("entryFromLock(invalid) error = nil")
	}
}

func TestEntryFromResourceRequiresAction(t *testing.T) {
	data, _ := json.Marshal(events.ResourceChanged{ResourceID: uuid.New()})
	if _, err := entryFromResource(data); err == nil {
		t.Fatalf("entryFromResource() error = nil, want missing action")
	}
}

func TestClampLimit(t *testing.T) {
	tests := map[int]int{0: DefaultListLimit, -3: DefaultListLimit, 10: 10, MaxListLimit + 1: MaxListLimit}
	for in, want := range tests {
		if got := clampLimit(in); got != want {
			t.Errorf("clampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
