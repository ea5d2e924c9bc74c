package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"kioskcm/pkg/faults"
	"kioskcm/services/resources"
	"kioskcm/services/store"
)

func (req resourceRequest) nodeInput() (resources.NodeInput, error) {
	typ, err := store.ParseResourceType(req.Type)
	if err != nil {
		return resources.NodeInput{}, faults.InvalidRequest("%v", err)
	}
	props, err := keyValueMap("property", req.Properties)
	if err != nil {
		return resources.NodeInput{}, err
	}
	styles, err := keyValueMap("style", req.Styles)
	if err != nil {
		return resources.NodeInput{}, err
	}
	return resources.NodeInput{
		Type:        typ,
		Name:        strings.TrimSpace(req.Name),
		Slug:        strings.TrimSpace(req.Slug),
		OrderNumber: req.OrderNumber,
		Data:        req.Data,
		Properties:  props,
		Styles:      styles,
	}, nil
}

func (a *API) handleListResources(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	app, err := a.loadApplication(r.WithContext(ctx))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	parentID, err := queryID(r, "parentId")
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	parent := app.RootResourceID
	if parentID != nil {
		parent = *parentID
		if err := a.requireApplicationResource(r.WithContext(ctx), app, parent); err != nil {
			a.respondFault(w, r, err)
			return
		}
	}

	var types []store.ResourceType
	for _, raw := range r.URL.Query()["type"] {
		typ, err := store.ParseResourceType(raw)
		if err != nil {
			a.respondFault(w, r, faults.InvalidRequest("%v", err))
			return
		}
		types = append(types, typ)
	}

	items, err := a.svc.Resources.ListChildren(ctx, parent, types...)
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"resources": items})
}

// handleCreateResource creates a node from the request body, or copies an
// existing subtree when copyResourceId is given. Copy requests carry no body.
func (a *API) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	copyID, err := queryID(r, "copyResourceId")
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	if copyID != nil {
		a.copyResource(w, r, *copyID)
		return
	}

	var req resourceRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondFault(w, r, err)
		return
	}
	if req.ParentID == nil {
		a.respondFault(w, r, faults.InvalidRequest("parentId is required"))
		return
	}
	in, err := req.nodeInput()
	if err != nil {
		a.respondFault(w, r, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	app, err := a.loadApplication(r.WithContext(ctx))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	created, err := a.svc.Resources.CreateNode(ctx, app, *req.ParentID, in, userFrom(r.Context()))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	a.respondResource(w, r, http.StatusCreated, created)
}

func (a *API) copyResource(w http.ResponseWriter, r *http.Request, sourceID uuid.UUID) {
	parentID, err := queryID(r, "copyResourceParentId")
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	if parentID == nil {
		a.respondFault(w, r, faults.InvalidRequest("copyResourceParentId is required with copyResourceId"))
		return
	}
	if hasBody(r) {
		a.respondFault(w, r, faults.InvalidRequest("copy requests must not carry a body"))
		return
	}

	ctx, cancel := withLongTimeout(r.Context())
	defer cancel()

	app, err := a.loadApplication(r.WithContext(ctx))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	copied, err := a.svc.Resources.CopySubtree(ctx, sourceID, app, *parentID, userFrom(r.Context()))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	a.respondResource(w, r, http.StatusCreated, copied)
}

func (a *API) handleGetResource(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	_, id, err := a.loadResourceRef(r.WithContext(ctx))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	res, err := a.svc.Resources.Get(ctx, id)
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	a.respondResource(w, r.WithContext(ctx), http.StatusOK, res)
}

func (a *API) handleUpdateResource(w http.ResponseWriter, r *http.Request) {
	var req resourceRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondFault(w, r, err)
		return
	}
	in, err := req.nodeInput()
	if err != nil {
		a.respondFault(w, r, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	app, id, err := a.loadResourceRef(r.WithContext(ctx))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	user := userFrom(r.Context())
	locked, err := a.svc.Locks.IsLockedForAnotherUser(ctx, id, user)
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	if locked {
		a.respondFault(w, r, faults.Conflict("resource %s is locked by another user", id))
		return
	}

	updated, err := a.svc.Resources.UpdateNode(ctx, app, id, resources.UpdateInput{NodeInput: in, ParentID: req.ParentID}, user)
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	a.respondResource(w, r.WithContext(ctx), http.StatusOK, updated)
}

func (a *API) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withLongTimeout(r.Context())
	defer cancel()

	_, id, err := a.loadResourceRef(r.WithContext(ctx))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	user := userFrom(r.Context())
	ok, err := a.svc.Locks.IsDeletable(ctx, id, user)
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	if !ok {
		a.respondFault(w, r, faults.Conflict("resource %s or one of its descendants is locked by another user", id))
		return
	}
	if err := a.svc.Resources.DeleteSubtree(ctx, id, user); err != nil {
		a.respondFault(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// loadResourceRef resolves the application of the URL and checks that the
// addressed resource is part of its tree.
func (a *API) loadResourceRef(r *http.Request) (store.Application, uuid.UUID, error) {
	app, err := a.loadApplication(r)
	if err != nil {
		return store.Application{}, uuid.Nil, err
	}
	id, err := urlID(r, "resourceId")
	if err != nil {
		return store.Application{}, uuid.Nil, err
	}
	if err := a.requireApplicationResource(r, app, id); err != nil {
		return store.Application{}, uuid.Nil, err
	}
	return app, id, nil
}

func (a *API) requireApplicationResource(r *http.Request, app store.Application, id uuid.UUID) error {
	if _, err := a.svc.Resources.Get(r.Context(), id); err != nil {
		return err
	}
	ok, err := a.svc.Resources.IsApplicationResource(r.Context(), app, id)
	if err != nil {
		return err
	}
	if !ok {
		return faults.Conflict("resource %s is not part of application %s", id, app.ID)
	}
	return nil
}

func (a *API) respondResource(w http.ResponseWriter, r *http.Request, status int, res store.Resource) {
	props, err := a.svc.Resources.Attributes(r.Context(), store.KindProperty, res.ID)
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	styles, err := a.svc.Resources.Attributes(r.Context(), store.KindStyle, res.ID)
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	respondJSON(w, status, map[string]any{"resource": Resource{
		Resource:   res,
		Properties: keyValues(props),
		Styles:     keyValues(styles),
	}})
}
