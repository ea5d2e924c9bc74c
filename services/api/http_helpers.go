package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"kioskcm/pkg/faults"
)

func decodeJSON(r *http.Request, dest any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return faults.InvalidRequest("request body required")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return faults.InvalidRequest("request body required")
		}
		return faults.InvalidRequest("invalid request body: %v", err)
	}
	return nil
}

// hasBody reports whether the request carries a non-empty body.
func hasBody(r *http.Request) bool {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return false
	}
	if r.ContentLength > 0 {
		return true
	}
	var b [1]byte
	n, _ := r.Body.Read(b[:])
	return n > 0
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

func statusFor(kind faults.Kind) int {
	switch kind {
	case faults.KindNotFound:
		return http.StatusNotFound
	case faults.KindConflict:
		return http.StatusConflict
	case faults.KindInvalidRequest:
		return http.StatusBadRequest
	case faults.KindUnauthorized:
		return http.StatusUnauthorized
	case faults.KindForbidden:
		return http.StatusForbidden
	case faults.KindUpstreamFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondFault translates a controller error into a status code. Internal
// failures are logged and reported without detail.
func (a *API) respondFault(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(faults.KindOf(err))
	if status >= http.StatusInternalServerError {
		a.log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	}
	if status == http.StatusInternalServerError {
		respondError(w, status, errors.New("internal server error"))
		return
	}
	respondError(w, status, err)
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 5*time.Second)
}

// withLongTimeout bounds recursive operations over whole subtrees.
func withLongTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 30*time.Second)
}

func urlID(r *http.Request, param string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, faults.InvalidRequest("invalid %s", param)
	}
	return id, nil
}

func queryID(r *http.Request, param string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(param))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, faults.InvalidRequest("invalid %s", param)
	}
	return &id, nil
}
