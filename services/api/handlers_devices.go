package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"kioskcm/pkg/clock"
	"kioskcm/pkg/faults"
	"kioskcm/services/store"
)

type deviceRequest struct {
	Name     string     `json:"name"`
	APIKey   string     `json:"apiKey"`
	ImageURL string     `json:"imageUrl"`
	Metas    []KeyValue `json:"metas"`
}

// Device is a device with its metadata entries.
type Device struct {
	store.Device
	Metas []KeyValue `json:"metas"`
}

func (req *deviceRequest) validate() (map[string]string, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, faults.InvalidRequest("name is required")
	}
	return keyValueMap("meta", req.Metas)
}

// saveDevice writes d and replaces its metadata in one transaction.
func (a *API) saveDevice(ctx context.Context, d store.Device, metas map[string]string, create bool) error {
	return a.svc.Store.Transaction(ctx, func(tx *store.Store) error {
		write := tx.UpdateDevice
		if create {
			write = tx.CreateDevice
		}
		if err := write(ctx, d); err != nil {
			return err
		}
		return tx.ReplaceDeviceMetas(ctx, d.ID, metas, d.ModifierID, d.ModifiedAt)
	})
}

func (a *API) devicesWithMetas(ctx context.Context, devices ...store.Device) ([]Device, error) {
	ids := make([]uuid.UUID, 0, len(devices))
	for _, d := range devices {
		ids = append(ids, d.ID)
	}
	metas, err := a.svc.Store.ListDeviceMetasOf(ctx, ids)
	if err != nil {
		return nil, faults.Internal("list device metas", err)
	}
	byDevice := make(map[uuid.UUID][]KeyValue, len(devices))
	for _, m := range metas {
		byDevice[m.DeviceID] = append(byDevice[m.DeviceID], KeyValue{Key: m.Key, Value: m.Value})
	}
	out := make([]Device, 0, len(devices))
	for _, d := range devices {
		kv := byDevice[d.ID]
		if kv == nil {
			kv = []KeyValue{}
		}
		out = append(out, Device{Device: d, Metas: kv})
	}
	return out, nil
}

func (a *API) respondDevice(w http.ResponseWriter, r *http.Request, status int, d store.Device) {
	out, err := a.devicesWithMetas(r.Context(), d)
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	respondJSON(w, status, map[string]any{"device": out[0]})
}

func (a *API) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	c, err := a.loadCustomer(r.WithContext(ctx))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	items, err := a.svc.Store.ListDevices(ctx, c.ID)
	if err != nil {
		a.respondFault(w, r, faults.Internal("list devices", err))
		return
	}
	out, err := a.devicesWithMetas(ctx, items...)
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"devices": out})
}

func (a *API) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondFault(w, r, err)
		return
	}
	metas, err := req.validate()
	if err != nil {
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

	user := userFrom(r.Context())
	now := clock.Stamp(a.clock)
	d := store.Device{
		ID:         uuid.New(),
		CustomerID: c.ID,
		Name:       req.Name,
		APIKey:     req.APIKey,
		ImageURL:   req.ImageURL,
		CreatorID:  user,
		ModifierID: user,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if err := a.saveDevice(ctx, d, metas, true); err != nil {
		a.respondFault(w, r, faults.Internal("create device", err))
		return
	}
	a.respondDevice(w, r.WithContext(ctx), http.StatusCreated, d)
}

func (a *API) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	d, err := a.loadDevice(r.WithContext(ctx))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	a.respondDevice(w, r.WithContext(ctx), http.StatusOK, d)
}

func (a *API) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondFault(w, r, err)
		return
	}
	metas, err := req.validate()
	if err != nil {
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
	d.Name = req.Name
	d.APIKey = req.APIKey
	d.ImageURL = req.ImageURL
	d.ModifierID = userFrom(r.Context())
	d.ModifiedAt = clock.Stamp(a.clock)
	if err := a.saveDevice(ctx, d, metas, false); err != nil {
		a.respondFault(w, r, storeFault("device", err))
		return
	}
	a.respondDevice(w, r.WithContext(ctx), http.StatusOK, d)
}

func (a *API) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	d, err := a.loadDevice(r.WithContext(ctx))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	n, err := a.svc.Store.CountApplications(ctx, d.ID)
	if err != nil {
		a.respondFault(w, r, faults.Internal("count applications", err))
		return
	}
	if n > 0 {
		a.respondFault(w, r, faults.Conflict("device %s still owns %d applications", d.ID, n))
		return
	}
	if err := a.svc.Store.DeleteDevice(ctx, d.ID); err != nil {
		a.respondFault(w, r, storeFault("device", err))
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// loadDevice resolves the device of the URL, which must belong to the URL's customer.
func (a *API) loadDevice(r *http.Request) (store.Device, error) {
	customerID, err := urlID(r, "customerId")
	if err != nil {
		return store.Device{}, err
	}
	id, err := urlID(r, "deviceId")
	if err != nil {
		return store.Device{}, err
	}
	d, err := a.svc.Store.GetDevice(r.Context(), id)
	if err != nil {
		return store.Device{}, storeFault("device", err)
	}
	if d.CustomerID != customerID {
		return store.Device{}, faults.NotFound("device not found")
	}
	return d, nil
}
