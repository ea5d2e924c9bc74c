package api

import (
	"context"
	"net/http"
	"strings"

	"kioskcm/pkg/faults"
)

// UserHeader carries the id of the caller authenticated by the fronting proxy.
const UserHeader = "X-User-Id"

type userKey struct{}

func (a *API) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserHeader))
		if userID == "" {
			a.respondFault(w, r, faults.Unauthorized("missing %s header", UserHeader))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, userID)))
	})
}

func userFrom(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}
