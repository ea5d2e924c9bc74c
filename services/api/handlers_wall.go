package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// wallKeyHeader carries the device API key on wall export requests.
const wallKeyHeader = "X-API-KEY"

func (a *API) handleWallApplication(w http.ResponseWriter, r *http.Request) {
	appID, err := urlID(r, "applicationId")
	if err != nil {
		a.respondFault(w, r, err)
		return
	}

	ctx, cancel := withLongTimeout(r.Context())
	defer cancel()

	out, err := a.svc.Wall.ExportApplication(ctx, appID, r.Header.Get(wallKeyHeader))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (a *API) handleWallContentVersion(w http.ResponseWriter, r *http.Request) {
	appID, err := urlID(r, "applicationId")
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	slug := strings.TrimSpace(chi.URLParam(r, "slug"))

	ctx, cancel := withLongTimeout(r.Context())
	defer cancel()

	out, err := a.svc.Wall.ExportContentVersion(ctx, appID, slug, r.Header.Get(wallKeyHeader))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (a *API) handleWallDevice(w http.ResponseWriter, r *http.Request) {
	deviceID, err := urlID(r, "deviceId")
	if err != nil {
		a.respondFault(w, r, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	out, err := a.svc.Wall.ExportDevice(ctx, deviceID, r.Header.Get(wallKeyHeader))
	if err != nil {
		a.respondFault(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}
