package resources

import (
	"context"

	"github.com/google/uuid"

	"kioskcm/pkg/clock"
	"kioskcm/pkg/events"
	"kioskcm/pkg/faults"
	"kioskcm/services/store"
)

// ImportNode is a wall-export shaped tree accepted by ImportContentVersion.
type ImportNode struct {
	Type       string            `json:"type"`
	Name       string            `json:"name"`
	Slug       string            `json:"slug"`
	Data       string            `json:"data,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
	Styles     map[string]string `json:"styles,omitempty"`
	Children   []ImportNode      `json:"children,omitempty"`
}

// ImportContentVersion recreates tree, which must be rooted at a content
// version, under app's root. Children are ordered by their position.
func (c *Controller) ImportContentVersion(ctx context.Context, app store.Application, tree ImportNode, actorID string) (store.Resource, error) {
	typ, err := store.ParseResourceType(tree.Type)
	if err != nil {
		return store.Resource{}, faults.InvalidRequest("%v", err)
	}
	if typ != store.TypeContentVersion {
		return store.Resource{}, faults.InvalidRequest("imported tree must be rooted at a content version, got %s", typ)
	}

	siblings, err := c.store.ListChildren(ctx, app.RootResourceID)
	if err != nil {
		return store.Resource{}, faults.Internal("list resources", err)
	}
	target, err := c.scope(ctx, app)
	if err != nil {
		return store.Resource{}, err
	}

	now := clock.Stamp(c.clock)
	newNode := func(n ImportNode, typ store.ResourceType, parent uuid.UUID, order int) plannedNode {
		p := parent
		return plannedNode{
			resource: store.Resource{
				ID:          uuid.New(),
				ParentID:    &p,
				Type:        typ,
				Name:        n.Name,
				Slug:        n.Slug,
				OrderNumber: order,
				Data:        n.Data,
				CreatorID:   actorID,
				ModifierID:  actorID,
				CreatedAt:   now,
				ModifiedAt:  now,
			},
			properties: n.Properties,
			styles:     n.Styles,
		}
	}

	type pending struct {
		node  *ImportNode
		index int
	}
	plan := []plannedNode{newNode(tree, typ, app.RootResourceID, len(siblings))}
	queue := []pending{{node: &tree, index: 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		parent := plan[cur.index].resource

		for i := range cur.node.Children {
			child := &cur.node.Children[i]
			childType, err := store.ParseResourceType(child.Type)
			if err != nil {
				return store.Resource{}, faults.InvalidRequest("%v", err)
			}
			if childType == store.TypeRoot || childType == store.TypeContentVersion {
				return store.Resource{}, faults.InvalidRequest("%s cannot be nested inside a content version", childType)
			}
			if parent.Type.IsLeaf() {
				return store.Resource{}, faults.InvalidRequest("resources of type %s cannot have children", parent.Type)
			}
			plan = append(plan, newNode(*child, childType, parent.ID, i))
			queue = append(queue, pending{node: child, index: len(plan) - 1})
		}
	}

	if err := c.materialize(ctx, target, plan, actorID, nil); err != nil {
		return store.Resource{}, err
	}

	imported := plan[0].resource
	c.publish(ctx, events.ResourceChanged{Action: events.ActionImported, ResourceID: imported.ID, Count: len(plan), ActorID: actorID, At: now})
	return imported, nil
}
