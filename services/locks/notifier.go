package locks

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"kioskcm/pkg/events"
)

const publishTimeout = 2 * time.Second

// Publisher is satisfied by *bus.Bus.
type Publisher interface {
	Publish(ctx context.Context, subj string, v any) error
}

// BusNotifier publishes lock changes on the message bus. Delivery is
// fire-and-forget; failures are logged only.
type BusNotifier struct {
	pub Publisher
	log zerolog.Logger
}

func NewBusNotifier(pub Publisher, logger zerolog.Logger) (*BusNotifier, error) {
	if pub == nil {
		return nil, errors.New("publisher is required")
	}
	return &BusNotifier{pub: pub, log: logger}, nil
}

func (n *BusNotifier) NotifyLockChange(ctx context.Context, evt events.LockChanged) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := n.pub.Publish(ctx, events.LockSubject, evt); err != nil {
		n.log.Warn().Err(err).Str("resource_id", evt.ResourceID.String()).Bool("locked", evt.Locked).Msg("publish lock change")
	}
}
