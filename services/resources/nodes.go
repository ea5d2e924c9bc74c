package resources

import (
	"context"

	"github.com/google/uuid"

	"kioskcm/pkg/clock"
	"kioskcm/pkg/events"
	"kioskcm/pkg/faults"
	"kioskcm/services/store"
)

// CreateNode adds a node under parentID in app's tree. The external
// protection record is created first; no node is persisted without one.
func (c *Controller) CreateNode(ctx context.Context, app store.Application, parentID uuid.UUID, in NodeInput, actorID string) (store.Resource, error) {
	if _, err := store.ParseResourceType(string(in.Type)); err != nil {
		return store.Resource{}, faults.InvalidRequest("%v", err)
	}
	if in.Type == store.TypeRoot {
		return store.Resource{}, faults.Conflict("root resources are created with their application")
	}

	parent, err := c.Get(ctx, parentID)
	if err != nil {
		return store.Resource{}, err
	}
	if err := checkPlacement(in.Type, parent); err != nil {
		return store.Resource{}, err
	}
	root, err := resolveRoot(ctx, c.store, parent.ID)
	if err != nil {
		return store.Resource{}, err
	}
	if root.ID != app.RootResourceID {
		return store.Resource{}, faults.Conflict("resource %s is not part of application %s", parent.ID, app.ID)
	}

	target, err := c.scope(ctx, app)
	if err != nil {
		return store.Resource{}, err
	}

	now := clock.Stamp(c.clock)
	plan := []plannedNode{{
		resource: store.Resource{
			ID:          uuid.New(),
			ParentID:    &parent.ID,
			Type:        in.Type,
			Name:        in.Name,
			Slug:        in.Slug,
			OrderNumber: in.OrderNumber,
			Data:        in.Data,
			CreatorID:   actorID,
			ModifierID:  actorID,
			CreatedAt:   now,
			ModifiedAt:  now,
		},
		properties: in.Properties,
		styles:     in.Styles,
	}}
	if err := c.materialize(ctx, target, plan, actorID, nil); err != nil {
		return store.Resource{}, err
	}

	created := plan[0].resource
	c.publish(ctx, events.ResourceChanged{Action: events.ActionCreated, ResourceID: created.ID, Count: 1, ActorID: actorID, At: now})
	return created, nil
}

// UpdateInput is NodeInput plus the new parent.
type UpdateInput struct {
	NodeInput
	ParentID *uuid.UUID
}

// UpdateNode replaces the fields and attribute sets of a node. A ROOT node
// only has its attribute sets replaced.
func (c *Controller) UpdateNode(ctx context.Context, app store.Application, id uuid.UUID, in UpdateInput, actorID string) (store.Resource, error) {
	var updated store.Resource
	now := clock.Stamp(c.clock)

	err := c.store.Transaction(ctx, func(tx *store.Store) error {
		node, err := getResource(ctx, tx, id)
		if err != nil {
			return err
		}
		root, err := resolveRoot(ctx, tx, node.ID)
		if err != nil {
			return err
		}
		if root.ID != app.RootResourceID {
			return faults.Conflict("resource %s is not part of application %s", id, app.ID)
		}

		if node.Type != store.TypeRoot {
			if err := c.applyUpdate(ctx, tx, &node, in, root.ID); err != nil {
				return err
			}
			node.ModifierID = actorID
			node.ModifiedAt = now
			if err := tx.UpdateResource(ctx, node); err != nil {
				return err
			}
		}

		if err := reconcile(ctx, tx, store.KindProperty, node.ID, in.Properties, actorID, now); err != nil {
			return err
		}
		if err := reconcile(ctx, tx, store.KindStyle, node.ID, in.Styles, actorID, now); err != nil {
			return err
		}
		updated = node
		return nil
	})
	if err != nil {
		return store.Resource{}, wrapStoreErr("update resource", err)
	}

	c.publish(ctx, events.ResourceChanged{Action: events.ActionUpdated, ResourceID: id, Count: 1, ActorID: actorID, At: now})
	return updated, nil
}

func (c *Controller) applyUpdate(ctx context.Context, tx *store.Store, node *store.Resource, in UpdateInput, rootID uuid.UUID) error {
	if _, err := store.ParseResourceType(string(in.Type)); err != nil {
		return faults.InvalidRequest("%v", err)
	}
	if in.Type == store.TypeRoot {
		return faults.Conflict("resource %s cannot become a root", node.ID)
	}
	if in.ParentID == nil {
		return faults.InvalidRequest("parent id is required")
	}
	if *in.ParentID == node.ID {
		return faults.InvalidRequest("resource %s cannot be its own parent", node.ID)
	}

	parent, err := getResource(ctx, tx, *in.ParentID)
	if err != nil {
		return err
	}
	if err := checkPlacement(in.Type, parent); err != nil {
		return err
	}
	if in.Type.IsLeaf() {
		children, err := tx.ListChildren(ctx, node.ID)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return faults.Conflict("resource %s has children and cannot become %s", node.ID, in.Type)
		}
	}

	// Walk up from the new parent: reaching the node means a descendant was
	// chosen as parent, reaching another root means another application.
	for cur := parent; cur.Type != store.TypeRoot; {
		if cur.ParentID == nil {
			return faults.NotFound("resource %s has no root", parent.ID)
		}
		if *cur.ParentID == node.ID {
			return faults.InvalidRequest("resource %s cannot be moved under its own descendant", node.ID)
		}
		cur, err = getResource(ctx, tx, *cur.ParentID)
		if err != nil {
			return err
		}
		if cur.Type == store.TypeRoot && cur.ID != rootID {
			return faults.Conflict("resource %s is not part of the same application", parent.ID)
		}
	}
	if parent.Type == store.TypeRoot && parent.ID != rootID {
		return faults.Conflict("resource %s is not part of the same application", parent.ID)
	}

	node.ParentID = &parent.ID
	node.Type = in.Type
	node.Name = in.Name
	node.Slug = in.Slug
	node.OrderNumber = in.OrderNumber
	node.Data = in.Data
	return nil
}

// checkPlacement enforces the parent type rules for a child of type typ.
func checkPlacement(typ store.ResourceType, parent store.Resource) error {
	if parent.Type.IsLeaf() {
		return faults.Conflict("resources of type %s cannot have children", parent.Type)
	}
	if typ == store.TypeContentVersion && parent.Type != store.TypeRoot {
		return faults.Conflict("content versions must be placed directly under the root resource")
	}
	return nil
}
