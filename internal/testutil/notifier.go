package testutil

import (
	"context"
	"sync"

	"kioskcm/pkg/events"
)

// RecordingNotifier collects lock change notifications.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []events.LockChanged
}

func (n *RecordingNotifier) NotifyLockChange(_ context.Context, evt events.LockChanged) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
}

func (n *RecordingNotifier) Events() []events.LockChanged {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]events.LockChanged, len(n.events))
	copy(out, n.events)
	return out
}

// RecordingPublisher collects bus publications keyed by subject.
type RecordingPublisher struct {
	mu       sync.Mutex
	Messages map[string][]any
}

func (p *RecordingPublisher) Publish(_ context.Context, subj string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Messages == nil {
		p.Messages = map[string][]any{}
	}
	p.Messages[subj] = append(p.Messages[subj], v)
	return nil
}

func (p *RecordingPublisher) Count(subj string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Messages[subj])
}
