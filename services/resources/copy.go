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

// CopySubtree duplicates the subtree rooted at sourceID under targetParentID
// in targetApp. The target parent must have the same type as the source's
// parent so the copy stays on the same structural level. Copies receive new
// ids, fresh timestamps and their own protection records; properties and
// styles are duplicated with them.
func (c *Controller) CopySubtree(ctx context.Context, sourceID uuid.UUID, targetApp store.Application, targetParentID uuid.UUID, actorID string) (copied store.Resource, err error) {
	ctx, span := c.tracer.Start(ctx, "resources.CopySubtree")
	span.SetAttributes(
		attribute.String("resource.id", sourceID.String()),
		attribute.String("application.id", targetApp.ID.String()),
	)
	defer func() { endSpan(span, err) }()

	source, err := c.Get(ctx, sourceID)
	if err != nil {
		return store.Resource{}, err
	}
	if source.ParentID == nil {
		return store.Resource{}, faults.InvalidRequest("root resources cannot be copied")
	}
	sourceParent, err := c.Get(ctx, *source.ParentID)
	if err != nil {
		return store.Resource{}, err
	}
	targetParent, err := c.Get(ctx, targetParentID)
	if err != nil {
		return store.Resource{}, err
	}
	if sourceParent.Type != targetParent.Type {
		return store.Resource{}, faults.InvalidRequest("copy source parent type %s does not match target parent type %s", sourceParent.Type, targetParent.Type)
	}
	root, err := resolveRoot(ctx, c.store, targetParent.ID)
	if err != nil {
		return store.Resource{}, err
	}
	if root.ID != targetApp.RootResourceID {
		return store.Resource{}, faults.Conflict("resource %s is not part of application %s", targetParent.ID, targetApp.ID)
	}

	target, err := c.scope(ctx, targetApp)
	if err != nil {
		return store.Resource{}, err
	}

	plan, err := c.planCopy(ctx, source, targetParent.ID, actorID)
	if err != nil {
		return store.Resource{}, err
	}
	span.SetAttributes(attribute.Int("resource.count", len(plan)))

	if err := c.materialize(ctx, target, plan, actorID, nil); err != nil {
		return store.Resource{}, err
	}

	copied = plan[0].resource
	c.publish(ctx, events.ResourceChanged{
		Action:     events.ActionCopied,
		ResourceID: copied.ID,
		SourceID:   &source.ID,
		Count:      len(plan),
		ActorID:    actorID,
		At:         copied.CreatedAt,
	})
	return copied, nil
}

// planCopy walks the source subtree level by level and returns the new nodes
// with every parent ahead of its children.
func (c *Controller) planCopy(ctx context.Context, source store.Resource, targetParentID uuid.UUID, actorID string) ([]plannedNode, error) {
	now := clock.Stamp(c.clock)
	newIDs := map[uuid.UUID]uuid.UUID{}
	sources := []store.Resource{source}

	dup := func(r store.Resource, parent uuid.UUID) store.Resource {
		id := uuid.New()
		newIDs[r.ID] = id
		p := parent
		return store.Resource{
			ID:          id,
			ParentID:    &p,
			Type:        r.Type,
			Name:        r.Name,
			Slug:        r.Slug,
			OrderNumber: r.OrderNumber,
			Data:        r.Data,
			CreatorID:   actorID,
			ModifierID:  actorID,
			CreatedAt:   now,
			ModifiedAt:  now,
		}
	}

	plan := []plannedNode{{resource: dup(source, targetParentID)}}
	frontier := []uuid.UUID{source.ID}
	for len(frontier) > 0 {
		children, err := c.store.ListChildrenOf(ctx, frontier)
		if err != nil {
			return nil, faults.Internal("list resources", err)
		}
		frontier = nil
		for _, child := range children {
			if _, done := newIDs[child.ID]; done {
				continue
			}
			plan = append(plan, plannedNode{resource: dup(child, newIDs[*child.ParentID])})
			sources = append(sources, child)
			frontier = append(frontier, child.ID)
		}
	}

	ids := make([]uuid.UUID, 0, len(sources))
	for _, s := range sources {
		ids = append(ids, s.ID)
	}
	props, err := c.attributeMaps(ctx, store.KindProperty, ids)
	if err != nil {
		return nil, err
	}
	styles, err := c.attributeMaps(ctx, store.KindStyle, ids)
	if err != nil {
		return nil, err
	}
	for i, s := range sources {
		plan[i].properties = props[s.ID]
		plan[i].styles = styles[s.ID]
	}
	return plan, nil
}

func (c *Controller) attributeMaps(ctx context.Context, kind store.AttributeKind, ids []uuid.UUID) (map[uuid.UUID]map[string]string, error) {
	attrs, err := c.store.ListAttributesOf(ctx, kind, ids)
	if err != nil {
		return nil, faults.Internal("list attributes", err)
	}
	out := make(map[uuid.UUID]map[string]string)
	for _, a := range attrs {
		m, ok := out[a.ResourceID]
		if !ok {
			m = map[string]string{}
			out[a.ResourceID] = m
		}
		m[a.Key] = a.Value
	}
	return out, nil
}
