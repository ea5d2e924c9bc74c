package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"kioskcm/pkg/clock"
	"kioskcm/pkg/faults"
	"kioskcm/services/store"
)

type customerRequest struct {
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
}

func (req *customerRequest) validate() error {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return faults.InvalidRequest("name is required")
	}
	return nil
}

func (a *API) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	items, err := a.svc.Store.ListCustomers(ctx)
	if err != nil {
		a.respondFault(w, r, faults.Internal("list customers", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"customers": items})
}

func (a *API) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondFault(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		a.respondFault(w, r, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	user := userFrom(r.Context())
	now := clock.Stamp(a.clock)
	c := store.Customer{
		ID:         uuid.New(),
		Name:       req.Name,
		ImageURL:   req.ImageURL,
		CreatorID:  user,
		ModifierID: user,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if err := a.svc.Store.CreateCustomer(ctx, c); err != nil {
		a.respondFault(w, r, faults.Internal("create customer", err))
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"customer": c})
}

func (a *API) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	c, err := a.loadCustomer(r.WithContext(ctx))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"customer": c})
}

func (a *API) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondFault(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		a.respondFault(w, r, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	c, err := a.loadCustomer(r.WithContext(ctx))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	c.Name = req.Name
	c.ImageURL = req.ImageURL
	c.ModifierID = userFrom(r.Context())
	c.ModifiedAt = clock.Stamp(a.clock)
	if err := a.svc.Store.UpdateCustomer(ctx, c); err != nil {
		a.respondFault(w, r, storeFault("customer", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"customer": c})
}

func (a *API) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	c, err := a.loadCustomer(r.WithContext(ctx))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	n, err := a.svc.Store.CountDevices(ctx, c.ID)
	if err != nil {
		a.respondFault(w, r, faults.Internal("count devices", err))
		return
	}
	if n > 0 {
		a.respondFault(w, r, faults.Conflict("customer %s still owns %d devices", c.ID, n))
		return
	}
	if err := a.svc.Store.DeleteCustomer(ctx, c.ID); err != nil {
		a.respondFault(w, r, storeFault("customer", err))
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *API) loadCustomer(r *http.Request) (store.Customer, error) {
	id, err := urlID(r, "customerId")
	if err != nil {
		return store.Customer{}, err
	}
	c, err := a.svc.Store.GetCustomer(r.Context(), id)
	if err != nil {
		return store.Customer{}, storeFault("customer", err)
	}
	return c, nil
}

// storeFault maps a store error for the named entity or operation.
func storeFault(what string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return faults.NotFound("%s not found", what)
	}
	return faults.Internal(what, err)
}
