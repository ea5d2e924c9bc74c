// Package audit records lock and tree changes published on the bus and
// serves them back for review.
package audit

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"kioskcm/pkg/events"
)

// Subscriber is satisfied by *bus.Bus.
type Subscriber interface {
	Subscribe(ctx context.Context, subj, durable string, fn func(ctx context.Context, data []byte) error) (io.Closer, error)
}

// Writer persists audit entries.
type Writer interface {
	Insert(ctx context.Context, e Entry) error
}

// Ingestor consumes change events from the bus and writes them to the audit
// table. Delivery is at-least-once: a failed write nacks the message.
type Ingestor struct {
	writer Writer
	bus    Subscriber
	log    zerolog.Logger

	subMu sync.Mutex
	subs  []io.Closer
}

// NewIngestor constructs an Ingestor for the provided dependencies.
func NewIngestor(writer Writer, bus Subscriber, logger zerolog.Logger) (*Ingestor, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if bus == nil {
		return nil, errors.New("bus is required")
	}
	return &Ingestor{writer: writer, bus: bus, log: logger.With().Str("component", "audit").Logger()}, nil
}

// Start subscribes to lock and resource change events and processes them
// until ctx is cancelled.
func (i *Ingestor) Start(ctx context.Context) error {
	if i == nil {
		return errors.New("nil ingestor")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	routes := []struct {
		subject string
		durable string
		decode  func([]byte) (Entry, error)
	}{
		{subject: events.LockSubject, durable: "audit-locks", decode: entryFromLock},
		{subject: events.ResourceSubject, durable: "audit-resources", decode: entryFromResource},
	}

	for _, r := range routes {
		decode := r.decode
		subject := r.subject
		sub, err := i.bus.Subscribe(ctx, subject, r.durable, func(msgCtx context.Context, data []byte) error {
			return i.handle(msgCtx, subject, data, decode)
		})
		if err != nil {
			_ = i.Close()
			return err
		}
		i.subMu.Lock()
		i.subs = append(i.subs, sub)
		i.subMu.Unlock()
	}
	return nil
}

// Close stops every subscription created by Start.
func (i *Ingestor) Close() error {
	if i == nil {
		return nil
	}

	i.subMu.Lock()
	defer i.subMu.Unlock()

	var errs []error
	for _, s := range i.subs {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	i.subs = nil
	return errors.Join(errs...)
}

func (i *Ingestor) handle(ctx context.Context, subject string, data []byte, decode func([]byte) (Entry, error)) error {
	entry, err := decode(data)
	if err != nil {
		// Redelivering a malformed payload cannot succeed.
		i.log.Error().Err(err).Str("subject", subject).Msg("dropping malformed event")
		return nil
	}
	if err := i.writer.Insert(ctx, entry); err != nil {
		i.log.Warn().Err(err).Str("subject", subject).Str("obj", entry.Obj).Msg("audit insert failed")
		return err
	}
	return nil
}
