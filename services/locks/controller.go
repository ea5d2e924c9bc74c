// Package locks implements the advisory, TTL bounded edit locks on content
// nodes.
package locks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"kioskcm/pkg/clock"
	"kioskcm/pkg/events"
	"kioskcm/pkg/faults"
	"kioskcm/pkg/metrics"
	"kioskcm/services/store"
)

// DefaultTTL is how long a lock lives without renewal.
const DefaultTTL = 5 * time.Minute

// Notifier receives lock state changes after they commit.
type Notifier interface {
	NotifyLockChange(ctx context.Context, evt events.LockChanged)
}

type nopNotifier struct{}

func (nopNotifier) NotifyLockChange(context.Context, events.LockChanged) {}

// Options configures a Controller.
type Options struct {
	TTL      time.Duration
	Clock    clock.Clock
	Notifier Notifier
	Logger   zerolog.Logger
}

// Controller serializes lock transitions per resource through the store.
type Controller struct {
	store    *store.Store
	ttl      time.Duration
	clock    clock.Clock
	notifier Notifier
	log      zerolog.Logger
}

// New constructs a Controller.
func New(st *store.Store, opts Options) (*Controller, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	return &Controller{
		store:    st,
		ttl:      opts.TTL,
		clock:    opts.Clock,
		notifier: opts.Notifier,
		log:      opts.Logger.With().Str("component", "locks").Logger(),
	}, nil
}

// Acquire locks resourceID for userID, renewing the lock if userID already
// holds it. A live lock held by another user is a Conflict.
func (c *Controller) Acquire(ctx context.Context, applicationID, resourceID uuid.UUID, userID string) (store.Lock, error) {
	if userID == "" {
		return store.Lock{}, faults.Unauthorized("user id is required")
	}

	var (
		result  store.Lock
		created bool
	)
	err := c.store.Transaction(ctx, func(tx *store.Store) error {
		// The row lock on the resource serializes concurrent requests for it.
		if _, err := tx.GetResourceForUpdate(ctx, resourceID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return faults.NotFound("resource %s not found", resourceID)
			}
			return err
		}

		now := clock.Stamp(c.clock)
		expiresAt := now.Add(c.ttl)

		existing, err := tx.GetLockByResource(ctx, resourceID)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return err
		case !existing.Expired(now) && existing.UserID == userID:
			if !expiresAt.After(existing.ExpiresAt) {
				expiresAt = existing.ExpiresAt.Add(time.Microsecond)
			}
			if err := tx.ExtendLock(ctx, existing.ID, expiresAt); err != nil {
				return err
			}
			existing.ExpiresAt = expiresAt
			result = existing
			return nil
		case !existing.Expired(now):
			return faults.Conflict("resource %s is locked by another user", resourceID)
		default:
			if err := tx.DeleteLock(ctx, existing.ID); err != nil {
				return err
			}
		}

		result = store.Lock{
			ID:            uuid.New(),
			ApplicationID: applicationID,
			ResourceID:    resourceID,
			UserID:        userID,
			ExpiresAt:     expiresAt,
			CreatedAt:     now,
		}
		created = true
		return tx.CreateLock(ctx, result)
	})
	if err != nil {
		if faults.Is(err, faults.KindConflict) {
			metrics.LockRequests.WithLabelValues("conflict").Inc()
			return store.Lock{}, err
		}
		return store.Lock{}, wrapStoreErr("acquire lock", err)
	}

	if created {
		metrics.LockRequests.WithLabelValues("acquired").Inc()
		c.notify(ctx, result, true)
	} else {
		metrics.LockRequests.WithLabelValues("renewed").Inc()
	}
	return result, nil
}

// Release removes the caller's lock. A missing or expired lock is NotFound;
// a lock held by someone else is a Conflict.
func (c *Controller) Release(ctx context.Context, resourceID uuid.UUID, userID string) error {
	var released store.Lock
	err := c.store.Transaction(ctx, func(tx *store.Store) error {
		now := clock.Stamp(c.clock)
		existing, err := tx.GetLockByResource(ctx, resourceID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && existing.Expired(now)) {
			return faults.NotFound("resource %s is not locked", resourceID)
		}
		if err != nil {
			return err
		}
		if existing.UserID != userID {
			return faults.Conflict("resource %s is locked by another user", resourceID)
		}
		released = existing
		return tx.DeleteLock(ctx, existing.ID)
	})
	if err != nil {
		return wrapStoreErr("release lock", err)
	}

	metrics.LocksReleased.Inc()
	c.notify(ctx, released, false)
	return nil
}

// Find returns the live lock on resourceID, or NotFound.
func (c *Controller) Find(ctx context.Context, resourceID uuid.UUID) (store.Lock, error) {
	l, err := c.store.GetLockByResource(ctx, resourceID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && l.Expired(clock.Stamp(c.clock))) {
		return store.Lock{}, faults.NotFound("resource %s is not locked", resourceID)
	}
	if err != nil {
		return store.Lock{}, wrapStoreErr("find lock", err)
	}
	return l, nil
}

// IsLockedForAnotherUser reports whether resourceID carries a live lock held
// by someone other than userID.
func (c *Controller) IsLockedForAnotherUser(ctx context.Context, resourceID uuid.UUID, userID string) (bool, error) {
	foreign, err := c.store.HasForeignActiveLock(ctx, []uuid.UUID{resourceID}, userID, clock.Stamp(c.clock))
	if err != nil {
		return false, wrapStoreErr("check lock", err)
	}
	return foreign, nil
}

// IsDeletable reports whether no node in the subtree rooted at resourceID,
// including itself, carries a live lock held by someone other than userID.
func (c *Controller) IsDeletable(ctx context.Context, resourceID uuid.UUID, userID string) (bool, error) {
	ids, err := c.store.SubtreeIDs(ctx, resourceID)
	if err != nil {
		return false, wrapStoreErr("collect subtree", err)
	}
	foreign, err := c.store.HasForeignActiveLock(ctx, ids, userID, clock.Stamp(c.clock))
	if err != nil {
		return false, wrapStoreErr("check locks", err)
	}
	return !foreign, nil
}

// List returns the live locks of an application, optionally limited to one resource.
func (c *Controller) List(ctx context.Context, applicationID uuid.UUID, resourceID *uuid.UUID) ([]store.Lock, error) {
	locks, err := c.store.ListActiveLocks(ctx, applicationID, resourceID, clock.Stamp(c.clock))
	if err != nil {
		return nil, wrapStoreErr("list locks", err)
	}
	return locks, nil
}

// Sweep deletes every lock that expired before now and reports how many were
// removed. It is safe to rerun after a partial failure.
func (c *Controller) Sweep(ctx context.Context) (int, error) {
	now := clock.Stamp(c.clock)

	var swept []store.Lock
	err := c.store.Transaction(ctx, func(tx *store.Store) error {
		stale, err := tx.ListExpiredLocks(ctx, now)
		if err != nil || len(stale) == 0 {
			return err
		}
		ids := make([]uuid.UUID, 0, len(stale))
		for _, l := range stale {
			ids = append(ids, l.ID)
		}
		if _, err := tx.DeleteExpiredLocks(ctx, ids, now); err != nil {
			return err
		}
		swept = stale
		return nil
	})
	if err != nil {
		return 0, wrapStoreErr("sweep expired locks", err)
	}
	if len(swept) == 0 {
		return 0, nil
	}

	metrics.LocksExpired.Add(float64(len(swept)))
	for _, l := range swept {
		c.notify(ctx, l, false)
	}
	c.log.Debug().Int("count", len(swept)).Msg("expired locks swept")
	return len(swept), nil
}

func (c *Controller) notify(ctx context.Context, l store.Lock, locked bool) {
	c.notifier.NotifyLockChange(ctx, events.LockChanged{
		ResourceID:    l.ResourceID,
		Locked:        locked,
		ApplicationID: l.ApplicationID,
		UserID:        l.UserID,
		At:            clock.Stamp(c.clock),
	})
}

func wrapStoreErr(op string, err error) error {
	var typed *faults.Error
	if errors.As(err, &typed) {
		return err
	}
	return faults.Internal(op, err)
}
