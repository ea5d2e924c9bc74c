package api

import (
	"net/http"

	"kioskcm/services/media"
)

type mediaRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

func (a *API) handleListMedia(w http.ResponseWriter, r *http.Request) {
	customerID, err := urlID(r, "customerId")
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	typ, err := media.ParseType(r.URL.Query().Get("type"))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	items, err := a.svc.Media.List(ctx, customerID, typ)
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"medias": items})
}

func (a *API) handleCreateMedia(w http.ResponseWriter, r *http.Request) {
	customerID, err := urlID(r, "customerId")
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	var req mediaRequest
	if err := decodeJSON(r, &req); err != nil {
		a.respondFault(w, r, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	upload, err := a.svc.Media.Create(ctx, customerID, req.FileName, req.ContentType, userFrom(r.Context()))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, upload)
}

func (a *API) handleGetMedia(w http.ResponseWriter, r *http.Request) {
	customerID, err := urlID(r, "customerId")
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	id, err := urlID(r, "mediaId")
	if err != nil {
		a.respondFault(w, r, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	m, err := a.svc.Media.Get(ctx, customerID, id)
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"media": m})
}

func (a *API) handleDeleteMedia(w http.ResponseWriter, r *http.Request) {
	customerID, err := urlID(r, "customerId")
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	id, err := urlID(r, "mediaId")
	if err != nil {
		a.respondFault(w, r, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	if err := a.svc.Media.Delete(ctx, customerID, id); err != nil {
		a.respondFault(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
