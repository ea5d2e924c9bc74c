package api

import (
	"net/http"

	"github.com/google/uuid"

	"kioskcm/services/store"
)

func (a *API) handleGetLock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	_, id, err := a.loadResourceRef(r.WithContext(ctx))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	l, err := a.svc.Locks.Find(ctx, id)
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	a.respondLock(w, r.WithContext(ctx), http.StatusOK, l)
}

func (a *API) handleAcquireLock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	app, id, err := a.loadResourceRef(r.WithContext(ctx))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	l, err := a.svc.Locks.Acquire(ctx, app.ID, id, userFrom(r.Context()))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	a.respondLock(w, r.WithContext(ctx), http.StatusOK, l)
}

func (a *API) handleReleaseLock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	_, id, err := a.loadResourceRef(r.WithContext(ctx))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	if err := a.svc.Locks.Release(ctx, id, userFrom(r.Context())); err != nil {
		a.respondFault(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleLockedResources(w http.ResponseWriter, r *http.Request) {
	appID, err := urlID(r, "applicationId")
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	resourceID, err := queryID(r, "resourceId")
	if err != nil {
		a.respondFault(w, r, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	if _, err := a.svc.Store.GetApplication(ctx, appID); err != nil {
		a.respondFault(w, r, storeFault("application", err))
		return
	}
	locks, err := a.svc.Locks.List(ctx, appID, resourceID)
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	ids := make([]uuid.UUID, 0, len(locks))
	for _, l := range locks {
		ids = append(ids, l.ResourceID)
	}
	respondJSON(w, http.StatusOK, map[string]any{"resourceIds": ids})
}

func (a *API) respondLock(w http.ResponseWriter, r *http.Request, status int, l store.Lock) {
	out := Lock{
		ResourceID:    l.ResourceID,
		ApplicationID: l.ApplicationID,
		UserID:        l.UserID,
		ExpiresAt:     l.ExpiresAt,
		CreatedAt:     l.CreatedAt,
	}
	if a.svc.Names != nil {
		if name, ok := a.svc.Names.DisplayName(r.Context(), l.UserID); ok {
			out.UserDisplayName = &name
		}
	}
	respondJSON(w, status, map[string]any{"lock": out})
}
