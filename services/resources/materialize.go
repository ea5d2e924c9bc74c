package resources

import (
	"context"

	"kioskcm/services/protection"
	"kioskcm/services/store"
)

// plannedNode is a node ready to be inserted together with its attribute sets.
type plannedNode struct {
	resource   store.Resource
	properties map[string]string
	styles     map[string]string
}

// materialize registers an external protection record for every planned node,
// then inserts all nodes, parents first, and their attributes in one
// transaction. extra runs last inside the same transaction. Protection records
// created for a failed call are removed again.
func (c *Controller) materialize(ctx context.Context, target protection.Target, plan []plannedNode, actorID string, extra func(tx *store.Store) error) error {
	protected := make([]string, 0, len(plan))
	for i := range plan {
		t := target
		t.ResourceID = plan[i].resource.ID
		t.OwnerID = actorID

		id, err := c.protector.Protect(ctx, t)
		if err != nil {
			c.compensate(ctx, protected)
			return err
		}
		plan[i].resource.ProtectionID = id
		protected = append(protected, id)
	}

	err := c.store.Transaction(ctx, func(tx *store.Store) error {
		for _, p := range plan {
			if err := tx.CreateResource(ctx, p.resource); err != nil {
				return err
			}
			now := p.resource.CreatedAt
			if err := reconcile(ctx, tx, store.KindProperty, p.resource.ID, p.properties, actorID, now); err != nil {
				return err
			}
			if err := reconcile(ctx, tx, store.KindStyle, p.resource.ID, p.styles, actorID, now); err != nil {
				return err
			}
		}
		if extra != nil {
			return extra(tx)
		}
		return nil
	})
	if err != nil {
		c.compensate(ctx, protected)
		return wrapStoreErr("persist resources", err)
	}
	return nil
}

func (c *Controller) compensate(ctx context.Context, protectionIDs []string) {
	if len(protectionIDs) == 0 {
		return
	}
	c.log.Warn().Int("count", len(protectionIDs)).Msg("removing protection records of failed write")
	ctx = context.WithoutCancel(ctx)
	for _, id := range protectionIDs {
		c.protector.Unprotect(ctx, id)
	}
}
