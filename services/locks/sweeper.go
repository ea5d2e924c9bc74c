package locks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSweepInterval is how often the Sweeper removes expired locks.
const DefaultSweepInterval = time.Minute

// Sweeper runs Controller.Sweep on a fixed interval until closed.
type Sweeper struct {
	ctrl     *Controller
	interval time.Duration
	log      zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper constructs a Sweeper for ctrl.
func NewSweeper(ctrl *Controller, interval time.Duration, logger zerolog.Logger) (*Sweeper, error) {
	if ctrl == nil {
		return nil, errors.New("lock controller is required")
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{ctrl: ctrl, interval: interval, log: logger.With().Str("component", "lock-sweeper").Logger()}, nil
}

// Start launches the sweep loop. It returns immediately.
func (s *Sweeper) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("sweeper already started")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(loopCtx, s.done)
	return nil
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ctrl.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.log.Error().Err(err).Msg("lock sweep failed")
			}
		}
	}
}

// Close stops the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}
