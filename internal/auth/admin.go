package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"jobboard.org/internal/ids"
)

// Administrative operations over principals, roles and the permission
// catalog. These back the /v1/users, /v1/roles and /v1/permissions
// endpoints and are themselves guarded by the gate.

var allowedMethods = map[string]struct{}{
	http.MethodGet:    {},
	http.MethodPost:   {},
	http.MethodPut:    {},
	http.MethodPatch:  {},
	http.MethodDelete: {},
}

// CreateUserRequest carries administrative user creation input.
type CreateUserRequest struct {
	Name      string
	Email     string
	Password  string
	Active    bool
	RoleID    *string
	CompanyID *string
}

// CreateUser creates an account administratively. Unlike Register it may
// set the role, company and active flag directly.
func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len(req.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	users := s.store.Users(ctx)
	exists, err := users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: email %s", ErrAlreadyExists, req.Email)
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &User{
		ID:           ids.New(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		Active:       req.Active,
		CompanyID:    req.CompanyID,
	}
	if req.RoleID != nil && *req.RoleID != "" {
		role, err := s.store.Roles(ctx).Find(ctx, *req.RoleID)
		if err != nil {
			return nil, fmt.Errorf("resolve role: %w", err)
		}
		user.RoleID = &role.ID
		user.Role = role
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUserRequest carries administrative user update input. Nil fields
// are left unchanged, except RoleID and CompanyID which follow
// replace-on-write semantics like the original board: omitting them clears
// the reference.
type UpdateUserRequest struct {
	Name      *string
	Email     *string
	Active    *bool
	RoleID    *string
	CompanyID *string
}

// UpdateUser applies an administrative update to an account.
func (s *Service) UpdateUser(ctx context.Context, userID string, req UpdateUserRequest) (*User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	users := s.store.Users(ctx)
	user, err := users.Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if email == "" || !strings.Contains(email, "@") {
			return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
		}
		if email != user.Email {
			exists, err := users.ExistsByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, fmt.Errorf("%w: email %s", ErrAlreadyExists, email)
			}
			user.Email = email
		}
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
		}
		user.Name = name
	}
	if req.Active != nil {
		user.Active = *req.Active
	}
	if req.RoleID != nil && *req.RoleID != "" {
		role, err := s.store.Roles(ctx).Find(ctx, *req.RoleID)
		if err != nil {
			return nil, fmt.Errorf("resolve role: %w", err)
		}
		user.RoleID = &role.ID
		user.Role = role
	} else {
		user.RoleID = nil
		user.Role = nil
	}
	user.CompanyID = req.CompanyID
	if err := users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetUser fetches an account with its role resolved.
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	user, err := s.store.Users(ctx).Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.attachRole(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers returns all accounts with their roles resolved.
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	users, err := s.store.Users(ctx).List(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if err := s.attachRole(ctx, u); err != nil {
			return nil, err
		}
	}
	return users, nil
}

// DeleteUser removes an account.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return s.store.Users(ctx).Delete(ctx, userID)
}

// CreateRoleRequest carries role creation input.
type CreateRoleRequest struct {
	Name          string
	Description   string
	Active        bool
	PermissionIDs []string
}

// CreateRole creates a role and binds its permission set.
func (s *Service) CreateRole(ctx context.Context, req CreateRoleRequest) (*Role, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	roles := s.store.Roles(ctx)
	role := &Role{
		ID:          ids.New(),
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		Active:      req.Active,
	}
	if err := roles.Create(ctx, role); err != nil {
		return nil, err
	}
	if len(req.PermissionIDs) > 0 {
		if err := roles.SetPermissions(ctx, role.ID, dedupeStrings(req.PermissionIDs)); err != nil {
			return nil, err
		}
	}
	return roles.Find(ctx, role.ID)
}

// UpdateRoleRequest carries role update input; nil fields stay unchanged.
// A non-nil PermissionIDs replaces the whole permission set.
type UpdateRoleRequest struct {
	Name          *string
	Description   *string
	Active        *bool
	PermissionIDs []string
}

// UpdateRole edits a role and, when given, replaces its permission set.
func (s *Service) UpdateRole(ctx context.Context, roleID string, req UpdateRoleRequest) (*Role, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	roles := s.store.Roles(ctx)
	role, err := roles.Find(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
		}
		role.Name = name
	}
	if req.Description != nil {
		role.Description = strings.TrimSpace(*req.Description)
	}
	if req.Active != nil {
		role.Active = *req.Active
	}
	if err := roles.Update(ctx, role); err != nil {
		return nil, err
	}
	if req.PermissionIDs != nil {
		if err := roles.SetPermissions(ctx, role.ID, dedupeStrings(req.PermissionIDs)); err != nil {
			return nil, err
		}
	}
	return roles.Find(ctx, role.ID)
}

// GetRole fetches a role with its permission set.
func (s *Service) GetRole(ctx context.Context, roleID string) (*Role, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	return s.store.Roles(ctx).Find(ctx, roleID)
}

// ListRoles returns all roles with their permission sets.
func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	return s.store.Roles(ctx).List(ctx)
}

// DeleteRole removes a role. Users referencing it fall back to the
// role-less tier.
func (s *Service) DeleteRole(ctx context.Context, roleID string) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	return s.store.Roles(ctx).Delete(ctx, roleID)
}

// CreatePermissionRequest carries permission creation input.
type CreatePermissionRequest struct {
	Name    string
	APIPath string
	Method  string
	Module  string
}

// CreatePermission adds a row to the catalog.
func (s *Service) CreatePermission(ctx context.Context, req CreatePermissionRequest) (*Permission, error) {
	perm, err := validatePermission(req.Name, req.APIPath, req.Method, req.Module)
	if err != nil {
		return nil, err
	}
	perm.ID = ids.New()
	if err := s.store.Permissions(ctx).Create(ctx, perm); err != nil {
		return nil, err
	}
	return perm, nil
}

// UpdatePermission replaces a catalog row's fields.
func (s *Service) UpdatePermission(ctx context.Context, permID string, req CreatePermissionRequest) (*Permission, error) {
	permID = strings.TrimSpace(permID)
	if permID == "" {
		return nil, fmt.Errorf("%w: permission_id is required", ErrInvalidInput)
	}
	perm, err := validatePermission(req.Name, req.APIPath, req.Method, req.Module)
	if err != nil {
		return nil, err
	}
	perm.ID = permID
	if err := s.store.Permissions(ctx).Update(ctx, perm); err != nil {
		return nil, err
	}
	return perm, nil
}

// ListPermissions returns the whole catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.Permissions(ctx).List(ctx)
}

// DeletePermission removes a catalog row.
func (s *Service) DeletePermission(ctx context.Context, permID string) error {
	permID = strings.TrimSpace(permID)
	if permID == "" {
		return fmt.Errorf("%w: permission_id is required", ErrInvalidInput)
	}
	return s.store.Permissions(ctx).Delete(ctx, permID)
}

func validatePermission(name, apiPath, method, module string) (*Permission, error) {
	name = strings.TrimSpace(name)
	apiPath = strings.TrimSpace(apiPath)
	method = strings.ToUpper(strings.TrimSpace(method))
	module = strings.ToUpper(strings.TrimSpace(module))
	if name == "" {
		return nil, fmt.Errorf("%w: permission name is required", ErrInvalidInput)
	}
	if !strings.HasPrefix(apiPath, "/") {
		return nil, fmt.Errorf("%w: api_path must start with /", ErrInvalidInput)
	}
	if _, ok := allowedMethods[method]; !ok {
		return nil, fmt.Errorf("%w: unsupported method %s", ErrInvalidInput, method)
	}
	if module == "" {
		return nil, fmt.Errorf("%w: module is required", ErrInvalidInput)
	}
	return &Permission{Name: name, APIPath: apiPath, Method: method, Module: module}, nil
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
