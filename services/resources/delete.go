package resources

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"kioskcm/pkg/clock"
	"kioskcm/pkg/events"
	"kioskcm/pkg/faults"
	"kioskcm/services/store"
)

// DeleteSubtree removes a node with all of its descendants, their attribute
// sets and locks in one transaction, children before parents. External
// protection records are removed afterwards on a best-effort basis.
func (c *Controller) DeleteSubtree(ctx context.Context, id uuid.UUID, actorID string) error {
	node, err := c.Get(ctx, id)
	if err != nil {
		return err
	}
	if node.Type == store.TypeRoot {
		return faults.Conflict("root resources are deleted with their application")
	}
	return c.deleteTree(ctx, id, actorID, nil)
}

// deleteTree runs before inside the delete transaction ahead of any row removal.
// Every lock removed with the subtree is announced as released after commit.
func (c *Controller) deleteTree(ctx context.Context, id uuid.UUID, actorID string, before func(tx *store.Store) error) (err error) {
	ctx, span := c.tracer.Start(ctx, "resources.DeleteSubtree")
	span.SetAttributes(attribute.String("resource.id", id.String()))
	defer func() { endSpan(span, err) }()

	var (
		removed  []store.Resource
		unlocked []store.Lock
	)
	err = c.store.Transaction(ctx, func(tx *store.Store) error {
		ids, err := tx.SubtreeIDs(ctx, id)
		if err != nil {
			return err
		}
		nodes, err := tx.GetResources(ctx, ids)
		if err != nil {
			return err
		}
		// Listed before anything cascades them away.
		if unlocked, err = tx.ListLocksOf(ctx, ids); err != nil {
			return err
		}
		if before != nil {
			if err := before(tx); err != nil {
				return err
			}
		}

		postOrder := make([]uuid.UUID, 0, len(ids))
		for i := len(ids) - 1; i >= 0; i-- {
			postOrder = append(postOrder, ids[i])
			if n, ok := nodes[ids[i]]; ok {
				removed = append(removed, n)
			}
		}

		if err := tx.ClearActiveContentVersion(ctx, ids); err != nil {
			return err
		}
		if err := tx.DeleteAttributesOf(ctx, store.KindProperty, ids); err != nil {
			return err
		}
		if err := tx.DeleteAttributesOf(ctx, store.KindStyle, ids); err != nil {
			return err
		}
		if err := tx.DeleteLocksOf(ctx, ids); err != nil {
			return err
		}
		return tx.DeleteResources(ctx, postOrder)
	})
	if err != nil {
		return wrapStoreErr("delete resources", err)
	}
	span.SetAttributes(attribute.Int("resource.count", len(removed)))

	now := clock.Stamp(c.clock)
	for _, l := range unlocked {
		c.locks.NotifyLockChange(ctx, events.LockChanged{
			ResourceID:    l.ResourceID,
			Locked:        false,
			ApplicationID: l.ApplicationID,
			UserID:        l.UserID,
			At:            now,
		})
	}

	unprotectCtx := context.WithoutCancel(ctx)
	for _, n := range removed {
		c.protector.Unprotect(unprotectCtx, n.ProtectionID)
	}

	c.publish(ctx, events.ResourceChanged{
		Action:     events.ActionDeleted,
		ResourceID: id,
		Count:      len(removed),
		ActorID:    actorID,
		At:         now,
	})
	return nil
}
