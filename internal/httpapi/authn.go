package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"jobboard.org/internal/auth"
	"jobboard.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// withAuth authenticates the bearer token (when present) and runs the gate
// on the resolved route template before the mux dispatches. Authorization is
// decided on the template the request matched (/v1/jobs/{id}), never on the
// raw URI, so a permission row covers every id under its resource.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		routePath := a.routeTemplate(r)

		var principal *auth.User
		if token, ok := bearerToken(r.Header.Get(authHeader)); ok {
			p, err := a.svc.ResolvePrincipal(r.Context(), token)
			if err != nil {
				obs.AuthzDecisionsTotal.WithLabelValues("unauthenticated").Inc()
				handleServiceError(w, r, err)
				return
			}
			principal = p
		}

		if err := a.svc.Authorize(principal, routePath, r.Method); err != nil {
			switch {
			case errors.Is(err, auth.ErrUnauthenticated):
				obs.AuthzDecisionsTotal.WithLabelValues("unauthenticated").Inc()
			default:
				obs.AuthzDecisionsTotal.WithLabelValues("denied").Inc()
			}
			handleServiceError(w, r, err)
			return
		}
		obs.AuthzDecisionsTotal.WithLabelValues("allowed").Inc()

		if principal != nil {
			r = r.WithContext(auth.ContextWithPrincipal(r.Context(), principal))
		}
		next.ServeHTTP(w, r)
	})
}

// routeTemplate resolves the mux pattern the request will dispatch to and
// strips the method prefix, yielding the template the permission catalog
// speaks ("GET /v1/jobs/{id}" becomes "/v1/jobs/{id}"). Unrouted requests
// fall through as their raw path and meet the catch-all 404.
func (a *API) routeTemplate(r *http.Request) string {
	_, pattern := a.mux.Handler(r)
	if pattern == "" {
		return r.URL.Path
	}
	if i := strings.IndexByte(pattern, ' '); i >= 0 {
		pattern = pattern[i+1:]
	}
	pattern = strings.TrimSuffix(pattern, "{$}")
	if pattern == "" {
		pattern = "/"
	}
	return pattern
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", false
	}
	return token, true
}

// requirePrincipal returns the authenticated principal or writes a 401.
// Used by the identity endpoints the gate leaves public but whose handlers
// act on "whoever is logged in".
func (a *API) requirePrincipal(w http.ResponseWriter, r *http.Request) (*auth.User, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication failed")
		return nil, false
	}
	return principal, true
}
