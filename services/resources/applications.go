package resources

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"kioskcm/pkg/clock"
	"kioskcm/pkg/faults"
	"kioskcm/services/protection"
	"kioskcm/services/store"
)

const (
	rootSlug                  = "[root]"
	defaultContentVersionName = "1"
)

// CreateApplication creates an application on device together with its ROOT
// node and a default content version, which becomes the active one.
func (c *Controller) CreateApplication(ctx context.Context, device store.Device, name, actorID string) (app store.Application, err error) {
	ctx, span := c.tracer.Start(ctx, "resources.CreateApplication")
	span.SetAttributes(attribute.String("device.id", device.ID.String()))
	defer func() { endSpan(span, err) }()

	name = strings.TrimSpace(name)
	if name == "" {
		return store.Application{}, faults.InvalidRequest("name is required")
	}

	now := clock.Stamp(c.clock)
	node := func(parent *uuid.UUID, typ store.ResourceType, name, slug string) store.Resource {
		return store.Resource{
			ID:         uuid.New(),
			ParentID:   parent,
			Type:       typ,
			Name:       name,
			Slug:       slug,
			CreatorID:  actorID,
			ModifierID: actorID,
			CreatedAt:  now,
			ModifiedAt: now,
		}
	}
	root := node(nil, store.TypeRoot, name, rootSlug)
	version := node(&root.ID, store.TypeContentVersion, defaultContentVersionName, defaultContentVersionName)

	app = store.Application{
		ID:                     uuid.New(),
		DeviceID:               device.ID,
		Name:                   name,
		RootResourceID:         root.ID,
		ActiveContentVersionID: &version.ID,
		CreatorID:              actorID,
		ModifierID:             actorID,
		CreatedAt:              now,
		ModifiedAt:             now,
	}

	target := protection.Target{CustomerID: device.CustomerID, DeviceID: device.ID, ApplicationID: app.ID}
	plan := []plannedNode{{resource: root}, {resource: version}}
	err = c.materialize(ctx, target, plan, actorID, func(tx *store.Store) error {
		return tx.CreateApplication(ctx, app)
	})
	if err != nil {
		return store.Application{}, err
	}
	return app, nil
}

// UpdateApplication renames an application and sets its active content
// version, which must be a CONTENT_VERSION node directly under its root.
func (c *Controller) UpdateApplication(ctx context.Context, id uuid.UUID, name string, activeContentVersionID *uuid.UUID, actorID string) (store.Application, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.Application{}, faults.InvalidRequest("name is required")
	}

	var updated store.Application
	err := c.store.Transaction(ctx, func(tx *store.Store) error {
		app, err := tx.GetApplication(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return faults.NotFound("application %s not found", id)
		}
		if err != nil {
			return err
		}

		if activeContentVersionID != nil {
			cv, err := tx.GetResource(ctx, *activeContentVersionID)
			if errors.Is(err, store.ErrNotFound) {
				return faults.InvalidRequest("content version %s not found", *activeContentVersionID)
			}
			if err != nil {
				return err
			}
			if cv.Type != store.TypeContentVersion {
				return faults.InvalidRequest("resource %s is not a content version", cv.ID)
			}
			if cv.ParentID == nil || *cv.ParentID != app.RootResourceID {
				return faults.InvalidRequest("content version %s does not belong to application %s", cv.ID, app.ID)
			}
		}

		app.Name = name
		app.ActiveContentVersionID = activeContentVersionID
		app.ModifierID = actorID
		app.ModifiedAt = clock.Stamp(c.clock)
		if err := tx.UpdateApplication(ctx, app); err != nil {
			return err
		}
		updated = app
		return nil
	})
	if err != nil {
		return store.Application{}, wrapStoreErr("update application", err)
	}
	return updated, nil
}

// DeleteApplication removes an application and its whole content tree.
func (c *Controller) DeleteApplication(ctx context.Context, id uuid.UUID, actorID string) error {
	app, err := c.store.GetApplication(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return faults.NotFound("application %s not found", id)
	}
	if err != nil {
		return faults.Internal("load application", err)
	}
	return c.deleteTree(ctx, app.RootResourceID, actorID, func(tx *store.Store) error {
		return tx.DeleteApplication(ctx, app.ID)
	})
}
