package api

import (
	"net/http"
	"strconv"
	"strings"

	"kioskcm/pkg/faults"
)

func (a *API) handleListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	obj := strings.TrimSpace(q.Get("objectId"))
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			a.respondFault(w, r, faults.InvalidRequest("invalid limit"))
			return
		}
		limit = n
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	entries, err := a.svc.Audit.List(ctx, obj, limit)
	if err != nil {
		a.respondFault(w, r, faults.Internal("list audit entries", err))
		return
	}
	total, err := a.svc.Audit.Count(ctx, obj)
	if err != nil {
		a.respondFault(w, r, faults.Internal("count audit entries", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"entries": entries, "total": total})
}
