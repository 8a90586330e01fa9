package auth

import (
	"errors"
	"testing"
)

func roleWith(perms ...Permission) *Role {
	return &Role{ID: "r1", Name: "ADMIN", Active: true, Permissions: perms}
}

func TestGateAuthorize(t *testing.T) {
	gate := NewGate()

	companyAdmin := roleWith(
		Permission{Name: "COMPANIES_CREATE", APIPath: "/v1/companies", Method: "POST", Module: "COMPANIES"},
		Permission{Name: "COMPANIES_DELETE", APIPath: "/v1/companies/{id}", Method: "DELETE", Module: "COMPANIES"},
	)
	jobLister := roleWith(
		Permission{Name: "JOBS_LIST", APIPath: "/v1/jobs", Method: "GET", Module: "JOBS"},
	)

	cases := []struct {
		name      string
		principal *User
		path      string
		method    string
		want      error
	}{
		{"public route without principal", nil, "/v1/auth/login", "POST", nil},
		{"public GET listing without principal", nil, "/v1/jobs", "GET", nil},
		{"metrics only public for GET", nil, "/metrics", "POST", ErrUnauthenticated},
		{"protected route without principal", nil, "/v1/companies", "POST", ErrUnauthenticated},

		{"role-less principal on self-service", &User{ID: "u1"}, "/v1/resumes", "POST", nil},
		{"role-less principal on self-service listing", &User{ID: "u1"}, "/v1/resumes/by-users", "GET", nil},
		{"role-less principal elsewhere", &User{ID: "u1"}, "/v1/companies", "POST", ErrPermissionDenied},

		{"granted exact route", &User{ID: "u2", Role: companyAdmin}, "/v1/companies", "POST", nil},
		{"granted template route", &User{ID: "u2", Role: companyAdmin}, "/v1/companies/{id}", "DELETE", nil},
		{"method not granted", &User{ID: "u2", Role: companyAdmin}, "/v1/companies/{id}", "PUT", ErrPermissionDenied},
		{"path not granted", &User{ID: "u3", Role: jobLister}, "/v1/companies", "POST", ErrPermissionDenied},

		// A roled principal does not inherit the role-less exception set;
		// self-service is reachable through its role or not at all.
		{"roled principal on self-service without grant", &User{ID: "u3", Role: jobLister}, "/v1/resumes", "POST", ErrPermissionDenied},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := gate.Authorize(tc.principal, tc.path, tc.method)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Authorize(%s %s) = %v, want %v", tc.method, tc.path, err, tc.want)
			}
		})
	}
}

func TestGatePublic(t *testing.T) {
	gate := NewGate()
	if !gate.Public("/healthz", "GET") {
		t.Fatal("/healthz should be public")
	}
	if gate.Public("/v1/users", "GET") {
		t.Fatal("/v1/users should not be public")
	}
}

func TestGateCustomRouteSets(t *testing.T) {
	gate := NewGate(
		WithPublicRoutes(NewRouteSet(Route{Path: "/ping", Method: MethodAny})),
		WithSelfServiceRoutes(NewRouteSet()),
	)
	if !gate.Public("/ping", "DELETE") {
		t.Fatal("/ping should be public for any method")
	}
	if gate.Public("/v1/auth/login", "POST") {
		t.Fatal("default public set should be replaced")
	}
	if err := gate.Authorize(&User{ID: "u1"}, "/v1/resumes", "POST"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Authorize = %v, want ErrPermissionDenied", err)
	}
}

func TestRouteSetContains(t *testing.T) {
	set := NewRouteSet(
		Route{Path: "/v1/jobs", Method: "GET"},
		Route{Path: "/v1/resumes", Method: MethodAny},
	)
	if !set.Contains("/v1/jobs", "GET") {
		t.Fatal("exact match missed")
	}
	if set.Contains("/v1/jobs", "POST") {
		t.Fatal("method should not match")
	}
	if !set.Contains("/v1/resumes", "PATCH") {
		t.Fatal("wildcard method missed")
	}
	var nilSet *RouteSet
	if nilSet.Contains("/v1/jobs", "GET") {
		t.Fatal("nil set should contain nothing")
	}
}

func TestBuiltinPermissionCatalog(t *testing.T) {
	byName := make(map[string]Permission, len(BuiltinPermissions))
	for _, p := range BuiltinPermissions {
		if _, dup := byName[p.Name]; dup {
			t.Fatalf("duplicate permission name %q", p.Name)
		}
		byName[p.Name] = p
	}
	seen := make(map[[2]string]string, len(BuiltinPermissions))
	for _, p := range BuiltinPermissions {
		key := [2]string{p.APIPath, p.Method}
		if prev, dup := seen[key]; dup {
			t.Fatalf("permissions %q and %q share (%s %s)", prev, p.Name, p.Method, p.APIPath)
		}
		seen[key] = p.Name
	}

	for _, module := range []string{"COMPANIES", "JOBS", "PERMISSIONS", "RESUMES", "ROLES", "SKILLS", "USERS"} {
		for _, op := range []string{"LIST", "CREATE", "UPDATE", "DELETE"} {
			if _, ok := byName[module+"_"+op]; !ok {
				t.Fatalf("missing builtin permission %s_%s", module, op)
			}
		}
	}

	del := byName["JOBS_DELETE"]
	if del.APIPath != "/v1/jobs/{id}" || del.Method != "DELETE" {
		t.Fatalf("JOBS_DELETE = %s %s", del.Method, del.APIPath)
	}
}
