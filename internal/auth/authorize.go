package auth

// Route identifies one authorizable operation: the resolved route template
// (e.g. /v1/jobs/{id}, never the raw request URI) plus the HTTP method.
type Route struct {
	Path   string
	Method string
}

// MethodAny matches any HTTP method in a RouteSet entry.
const MethodAny = "*"

// RouteSet is a small static allow-list of routes.
type RouteSet struct {
	routes map[Route]struct{}
}

// NewRouteSet builds a RouteSet from the given routes.
func NewRouteSet(routes ...Route) *RouteSet {
	set := make(map[Route]struct{}, len(routes))
	for _, r := range routes {
		set[r] = struct{}{}
	}
	return &RouteSet{routes: set}
}

// Contains reports whether (path, method) is in the set.
func (s *RouteSet) Contains(path, method string) bool {
	if s == nil {
		return false
	}
	if _, ok := s.routes[Route{Path: path, Method: method}]; ok {
		return true
	}
	_, ok := s.routes[Route{Path: path, Method: MethodAny}]
	return ok
}

// DefaultPublicRoutes is the unauthenticated-OK set. Logout is listed here
// because the decision not to require a permission row for it belongs to
// the gate; the handler still demands a resolved principal.
func DefaultPublicRoutes() *RouteSet {
	return NewRouteSet(
		Route{Path: "/", Method: MethodAny},
		Route{Path: "/healthz", Method: MethodAny},
		Route{Path: "/readyz", Method: MethodAny},
		Route{Path: "/metrics", Method: "GET"},
		Route{Path: "/v1/info", Method: "GET"},
		Route{Path: "/v1/auth/login", Method: "POST"},
		Route{Path: "/v1/auth/refresh", Method: "GET"},
		Route{Path: "/v1/auth/logout", Method: "POST"},
		Route{Path: "/v1/auth/register", Method: "POST"},
		Route{Path: "/v1/auth/verify", Method: "GET"},
		Route{Path: "/v1/auth/forgot-password", Method: "POST"},
		Route{Path: "/v1/auth/reset-password", Method: "POST"},
		Route{Path: "/v1/auth/account", Method: "GET"},
		Route{Path: "/v1/auth/change-password", Method: "POST"},
		Route{Path: "/v1/companies", Method: "GET"},
		Route{Path: "/v1/jobs", Method: "GET"},
		Route{Path: "/v1/jobs/search", Method: "POST"},
		Route{Path: "/v1/skills", Method: "GET"},
	)
}

// DefaultSelfServiceRoutes is the narrow exception set for role-less
// principals: candidate self-service endpoints for submitting and listing
// their own applications.
func DefaultSelfServiceRoutes() *RouteSet {
	return NewRouteSet(
		Route{Path: "/v1/resumes", Method: MethodAny},
		Route{Path: "/v1/resumes/by-users", Method: MethodAny},
	)
}

// Gate is the per-request authorization decision function.
type Gate struct {
	public      *RouteSet
	selfService *RouteSet
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithPublicRoutes replaces the default public allow-list.
func WithPublicRoutes(set *RouteSet) GateOption {
	return func(g *Gate) {
		if set != nil {
			g.public = set
		}
	}
}

// WithSelfServiceRoutes replaces the default role-less exception set.
func WithSelfServiceRoutes(set *RouteSet) GateOption {
	return func(g *Gate) {
		if set != nil {
			g.selfService = set
		}
	}
}

// NewGate constructs a Gate with the default route sets.
func NewGate(opts ...GateOption) *Gate {
	g := &Gate{
		public:      DefaultPublicRoutes(),
		selfService: DefaultSelfServiceRoutes(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Public reports whether (path, method) requires no principal at all.
func (g *Gate) Public(path, method string) bool {
	return g.public.Contains(path, method)
}

// Authorize decides allow/deny for the principal on the resolved route
// template. Evaluation order: public allow-list, then authentication, then
// the role-less exception set, then the role's permission set. A nil error
// means allow. The permission catalog is expected to hold one matching row
// per (path, method); with duplicates any match suffices.
func (g *Gate) Authorize(principal *User, path, method string) error {
	if g.Public(path, method) {
		return nil
	}
	if principal == nil {
		return ErrUnauthenticated
	}
	if principal.Role == nil {
		if g.selfService.Contains(path, method) {
			return nil
		}
		return ErrPermissionDenied
	}
	for _, p := range principal.Role.Permissions {
		if p.APIPath == path && p.Method == method {
			return nil
		}
	}
	return ErrPermissionDenied
}
