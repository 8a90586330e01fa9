package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"jobboard.org/internal/auth"
)

// fakeStore is an in-memory auth.Store for handler tests.
type fakeStore struct {
	mu    sync.Mutex
	users map[string]*auth.User // keyed by email
	roles map[string]*auth.Role
	perms map[string]*auth.Permission
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: make(map[string]*auth.User),
		roles: make(map[string]*auth.Role),
		perms: make(map[string]*auth.Permission),
	}
}

func (f *fakeStore) Users(ctx context.Context) auth.UserStore             { return (*fakeUsers)(f) }
func (f *fakeStore) Roles(ctx context.Context) auth.RoleStore             { return (*fakeRoles)(f) }
func (f *fakeStore) Permissions(ctx context.Context) auth.PermissionStore { return (*fakePerms)(f) }

type fakeUsers fakeStore

func (f *fakeUsers) Create(ctx context.Context, u *auth.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.Email]; ok {
		return auth.ErrAlreadyExists
	}
	cp := *u
	f.users[u.Email] = &cp
	return nil
}

func (f *fakeUsers) Find(ctx context.Context, id string) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (f *fakeUsers) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) FindByRefreshTokenAndEmail(ctx context.Context, token, email string) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok || token == "" || u.RefreshToken != token {
		return nil, auth.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.users[email]
	return ok, nil
}

func (f *fakeUsers) List(ctx context.Context) ([]*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*auth.User
	for _, u := range f.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeUsers) Update(ctx context.Context, u *auth.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for email, cur := range f.users {
		if cur.ID == u.ID {
			cp := *u
			cp.RefreshToken = cur.RefreshToken
			cp.PasswordHash = cur.PasswordHash
			delete(f.users, email)
			f.users[u.Email] = &cp
			return nil
		}
	}
	return auth.ErrNotFound
}

func (f *fakeUsers) UpdateRefreshToken(ctx context.Context, email, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return auth.ErrNotFound
	}
	u.RefreshToken = token
	return nil
}

func (f *fakeUsers) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return auth.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (f *fakeUsers) SetActive(ctx context.Context, email string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return auth.ErrNotFound
	}
	u.Active = active
	return nil
}

func (f *fakeUsers) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for email, u := range f.users {
		if u.ID == id {
			delete(f.users, email)
			return nil
		}
	}
	return auth.ErrNotFound
}

type fakeRoles fakeStore

func (f *fakeRoles) Create(ctx context.Context, role *auth.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *role
	f.roles[role.ID] = &cp
	return nil
}

func (f *fakeRoles) Find(ctx context.Context, id string) (*auth.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.roles[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *role
	return &cp, nil
}

func (f *fakeRoles) FindByName(ctx context.Context, name string) (*auth.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, role := range f.roles {
		if role.Name == name {
			cp := *role
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (f *fakeRoles) List(ctx context.Context) ([]*auth.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*auth.Role
	for _, role := range f.roles {
		cp := *role
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRoles) Update(ctx context.Context, role *auth.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.roles[role.ID]
	if !ok {
		return auth.ErrNotFound
	}
	cp := *role
	cp.Permissions = cur.Permissions
	f.roles[role.ID] = &cp
	return nil
}

func (f *fakeRoles) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.roles[id]; !ok {
		return auth.ErrNotFound
	}
	delete(f.roles, id)
	return nil
}

func (f *fakeRoles) SetPermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.roles[roleID]
	if !ok {
		return auth.ErrNotFound
	}
	role.Permissions = nil
	for _, id := range permissionIDs {
		if p, ok := f.perms[id]; ok {
			role.Permissions = append(role.Permissions, *p)
		}
	}
	return nil
}

type fakePerms fakeStore

func (f *fakePerms) Create(ctx context.Context, p *auth.Permission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.perms[p.ID] = &cp
	return nil
}

func (f *fakePerms) Find(ctx context.Context, id string) (*auth.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.perms[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePerms) List(ctx context.Context) ([]auth.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []auth.Permission
	for _, p := range f.perms {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakePerms) Update(ctx context.Context, p *auth.Permission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.perms[p.ID]; !ok {
		return auth.ErrNotFound
	}
	cp := *p
	f.perms[p.ID] = &cp
	return nil
}

func (f *fakePerms) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.perms[id]; !ok {
		return auth.ErrNotFound
	}
	delete(f.perms, id)
	return nil
}

func (f *fakePerms) Ensure(ctx context.Context, perms []auth.Permission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range perms {
		exists := false
		for _, cur := range f.perms {
			if cur.APIPath == p.APIPath && cur.Method == p.Method {
				exists = true
				break
			}
		}
		if !exists {
			cp := p
			if cp.ID == "" {
				cp.ID = cp.Name
			}
			f.perms[cp.ID] = &cp
		}
	}
	return nil
}

// --- harness ---

func newTestAPI(t *testing.T) (*API, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	minter, err := auth.NewTokenMinter([]byte("0123456789abcdef0123456789abcdef"), auth.WithIssuer("jobboard"))
	if err != nil {
		t.Fatalf("NewTokenMinter: %v", err)
	}
	svc, err := auth.NewService(store, minter)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return New(svc, ReadyProbe{}, "test"), store
}

func seedAccount(t *testing.T, store *fakeStore, email, password string, role *auth.Role) *auth.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	u := &auth.User{ID: "u-" + email, Email: email, Name: "Test User", PasswordHash: hash, Active: true}
	if role != nil {
		if err := store.Roles(context.Background()).Create(context.Background(), role); err != nil {
			t.Fatalf("seed role: %v", err)
		}
		u.RoleID = &role.ID
	}
	if err := store.Users(context.Background()).Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func doJSON(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var body map[string]any
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
	}
	return rec, body
}

// --- health ---

func TestHealthz(t *testing.T) {
	api, _ := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec, body := doJSON(t, api.Handler(), req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["status"] != "ok" || body["service"] != "jobboard-api" {
		t.Fatalf("body = %v", body)
	}
}

func TestReadyzWithoutDB(t *testing.T) {
	api, _ := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec, body := doJSON(t, api.Handler(), req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["status"] != "ready" {
		t.Fatalf("body = %v", body)
	}
}

func TestUnroutedPathIs404(t *testing.T) {
	api, _ := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/no/such/path", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}
