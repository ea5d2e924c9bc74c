package resources

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"kioskcm/pkg/clock"
	"kioskcm/pkg/faults"
	"kioskcm/services/store"
)

// ReconcileProperties replaces the property set of a node with desired.
// Existing rows are reused by key, missing keys are created and keys absent
// from desired are deleted.
func (c *Controller) ReconcileProperties(ctx context.Context, id uuid.UUID, desired map[string]string, actorID string) error {
	return c.reconcileOne(ctx, store.KindProperty, id, desired, actorID)
}

// ReconcileStyles is ReconcileProperties for styles.
func (c *Controller) ReconcileStyles(ctx context.Context, id uuid.UUID, desired map[string]string, actorID string) error {
	return c.reconcileOne(ctx, store.KindStyle, id, desired, actorID)
}

func (c *Controller) reconcileOne(ctx context.Context, kind store.AttributeKind, id uuid.UUID, desired map[string]string, actorID string) error {
	err := c.store.Transaction(ctx, func(tx *store.Store) error {
		if _, err := getResource(ctx, tx, id); err != nil {
			return err
		}
		return reconcile(ctx, tx, kind, id, desired, actorID, clock.Stamp(c.clock))
	})
	return wrapStoreErr("reconcile "+string(kind)+" set", err)
}

func reconcile(ctx context.Context, tx *store.Store, kind store.AttributeKind, resourceID uuid.UUID, desired map[string]string, actorID string, now time.Time) error {
	existing, err := tx.ListAttributes(ctx, kind, resourceID)
	if err != nil {
		return err
	}

	byKey := make(map[string]store.Attribute, len(existing))
	var stale []uuid.UUID
	for _, a := range existing {
		if _, dup := byKey[a.Key]; dup {
			stale = append(stale, a.ID)
			continue
		}
		byKey[a.Key] = a
	}

	keys := make([]string, 0, len(desired))
	for k := range desired {
		if k == "" {
			return faults.InvalidRequest("%s key must not be empty", kind)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		value := desired[k]
		if current, ok := byKey[k]; ok {
			delete(byKey, k)
			if current.Value == value {
				continue
			}
			current.Value = value
			current.ModifierID = actorID
			current.ModifiedAt = now
			if err := tx.UpdateAttribute(ctx, kind, current); err != nil {
				return err
			}
			continue
		}
		if err := tx.CreateAttribute(ctx, kind, store.Attribute{
			ID:         uuid.New(),
			ResourceID: resourceID,
			Key:        k,
			Value:      value,
			CreatorID:  actorID,
			ModifierID: actorID,
			CreatedAt:  now,
			ModifiedAt: now,
		}); err != nil {
			return err
		}
	}

	for _, a := range byKey {
		stale = append(stale, a.ID)
	}
	return tx.DeleteAttributes(ctx, kind, stale)
}
