package api

import (
	"net/http"

	"github.com/google/uuid"

	"kioskcm/pkg/faults"
	"kioskcm/services/resources"
	"kioskcm/services/store"
)

type applicationRequest struct {
	Name                   string     `json:"name"`
	ActiveContentVersionID *uuid.UUID `json:"activeContentVersionResourceId"`
}

func (a *API) handleListApplications(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	d, err := a.loadDevice(r.WithContext(ctx))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	items, err := a.svc.Store.ListApplications(ctx, d.ID)
	if err != nil {
		a.respondFault(w, r, faults.Internal("list applications", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"applications": items})
}

func (a *API) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	var req applicationRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondFault(w, r, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	d, err := a.loadDevice(r.WithContext(ctx))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	app, err := a.svc.Resources.CreateApplication(ctx, d, req.Name, userFrom(r.Context()))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"application": app})
}

func (a *API) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	app, err := a.loadApplication(r.WithContext(ctx))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"application": app})
}

func (a *API) handleUpdateApplication(w http.ResponseWriter, r *http.Request) {
	var req applicationRequest
	if err := decodeJSON(r, &req); err != nil {
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
	updated, err := a.svc.Resources.UpdateApplication(ctx, app.ID, req.Name, req.ActiveContentVersionID, userFrom(r.Context()))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"application": updated})
}

func (a *API) handleDeleteApplication(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withLongTimeout(r.Context())
	defer cancel()

	app, err := a.loadApplication(r.WithContext(ctx))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	user := userFrom(r.Context())
	ok, err := a.svc.Locks.IsDeletable(ctx, app.RootResourceID, user)
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	if !ok {
		a.respondFault(w, r, faults.Conflict("application %s has resources locked by another user", app.ID))
		return
	}
	if err := a.svc.Resources.DeleteApplication(ctx, app.ID, user); err != nil {
		a.respondFault(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleImport(w http.ResponseWriter, r *http.Request) {
	var tree resources.ImportNode
	if err := decodeJSON(r, &tree); err != nil {
		a.respondFault(w, r, err)
		return
	}

	ctx, cancel := withLongTimeout(r.Context())
	defer cancel()

	app, err := a.loadApplication(r.WithContext(ctx))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	created, err := a.svc.Resources.ImportContentVersion(ctx, app, tree, userFrom(r.Context()))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"resource": created})
}

// loadApplication resolves the application of the URL through its device and customer.
func (a *API) loadApplication(r *http.Request) (store.Application, error) {
	d, err := a.loadDevice(r)
	if err != nil {
		return store.Application{}, err
	}
	id, err := urlID(r, "applicationId")
	if err != nil {
		return store.Application{}, err
	}
	app, err := a.svc.Store.GetApplication(r.Context(), id)
	if err != nil {
		return store.Application{}, storeFault("application", err)
	}
	if app.DeviceID != d.ID {
		return store.Application{}, faults.NotFound("application not found")
	}
	return app, nil
}
