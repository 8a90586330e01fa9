package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"jobboard.org/internal/audit"
	"jobboard.org/internal/auth"
)

type createUserRequest struct {
	Name      string  `json:"name" validate:"required"`
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=8"`
	Active    bool    `json:"active"`
	RoleID    *string `json:"role_id"`
	CompanyID *string `json:"company_id"`
}

type updateUserRequest struct {
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	Active    *bool   `json:"active"`
	RoleID    *string `json:"role_id"`
	CompanyID *string `json:"company_id"`
}

type roleRequest struct {
	Name          string   `json:"name" validate:"required"`
	Description   string   `json:"description"`
	Active        bool     `json:"active"`
	PermissionIDs []string `json:"permission_ids"`
}

type updateRoleRequest struct {
	Name          *string  `json:"name"`
	Description   *string  `json:"description"`
	Active        *bool    `json:"active"`
	PermissionIDs []string `json:"permission_ids"`
}

type permissionRequest struct {
	Name    string `json:"name" validate:"required"`
	APIPath string `json:"api_path" validate:"required"`
	Method  string `json:"method" validate:"required"`
	Module  string `json:"module" validate:"required"`
}

type permissionResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	APIPath string `json:"api_path"`
	Method  string `json:"method"`
	Module  string `json:"module"`
}

type roleDetailResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Active      bool                 `json:"active"`
	Permissions []permissionResponse `json:"permissions"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

func toPermissionResponse(p auth.Permission) permissionResponse {
	return permissionResponse{
		ID:      p.ID,
		Name:    p.Name,
		APIPath: p.APIPath,
		Method:  p.Method,
		Module:  p.Module,
	}
}

func toRoleDetailResponse(role *auth.Role) roleDetailResponse {
	resp := roleDetailResponse{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		Active:      role.Active,
		Permissions: make([]permissionResponse, 0, len(role.Permissions)),
		CreatedAt:   role.CreatedAt,
		UpdatedAt:   role.UpdatedAt,
	}
	for _, p := range role.Permissions {
		resp.Permissions = append(resp.Permissions, toPermissionResponse(p))
	}
	return resp
}

// --- users ---

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.svc.ListUsers(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, "name, email and a password of at least 8 characters are required")
		return
	}
	user, err := a.svc.CreateUser(r.Context(), auth.CreateUserRequest{
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		Active:    req.Active,
		RoleID:    req.RoleID,
		CompanyID: req.CompanyID,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.user.create", map[string]any{
		"target_id": user.ID,
		"email":     user.Email,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/users/%s", user.ID))
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.svc.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (a *API) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.svc.UpdateUser(r.Context(), r.PathValue("id"), auth.UpdateUserRequest{
		Name:      req.Name,
		Email:     req.Email,
		Active:    req.Active,
		RoleID:    req.RoleID,
		CompanyID: req.CompanyID,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.user.update", map[string]any{
		"target_id": user.ID,
	})
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.svc.DeleteUser(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.user.delete", map[string]any{
		"target_id": id,
	})
	w.WriteHeader(http.StatusNoContent)
}

// --- roles ---

func (a *API) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := a.svc.ListRoles(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	out := make([]roleDetailResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleDetailResponse(role))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, "role name is required")
		return
	}
	role, err := a.svc.CreateRole(r.Context(), auth.CreateRoleRequest{
		Name:          req.Name,
		Description:   req.Description,
		Active:        req.Active,
		PermissionIDs: req.PermissionIDs,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.role.create", map[string]any{
		"target_id": role.ID,
		"name":      role.Name,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/roles/%s", role.ID))
	writeJSON(w, http.StatusCreated, toRoleDetailResponse(role))
}

func (a *API) handleGetRole(w http.ResponseWriter, r *http.Request) {
	role, err := a.svc.GetRole(r.Context(), r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoleDetailResponse(role))
}

func (a *API) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	var req updateRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := a.svc.UpdateRole(r.Context(), r.PathValue("id"), auth.UpdateRoleRequest{
		Name:          req.Name,
		Description:   req.Description,
		Active:        req.Active,
		PermissionIDs: req.PermissionIDs,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.role.update", map[string]any{
		"target_id": role.ID,
	})
	writeJSON(w, http.StatusOK, toRoleDetailResponse(role))
}

func (a *API) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.svc.DeleteRole(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.role.delete", map[string]any{
		"target_id": id,
	})
	w.WriteHeader(http.StatusNoContent)
}

// --- permissions ---

func (a *API) handleListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := a.svc.ListPermissions(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	out := make([]permissionResponse, 0, len(perms))
	for _, p := range perms {
		out = append(out, toPermissionResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleCreatePermission(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, "name, api_path, method and module are required")
		return
	}
	perm, err := a.svc.CreatePermission(r.Context(), auth.CreatePermissionRequest{
		Name:    req.Name,
		APIPath: req.APIPath,
		Method:  req.Method,
		Module:  req.Module,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.permission.create", map[string]any{
		"target_id": perm.ID,
		"name":      perm.Name,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/permissions/%s", perm.ID))
	writeJSON(w, http.StatusCreated, toPermissionResponse(*perm))
}

func (a *API) handleUpdatePermission(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, "name, api_path, method and module are required")
		return
	}
	perm, err := a.svc.UpdatePermission(r.Context(), r.PathValue("id"), auth.CreatePermissionRequest{
		Name:    req.Name,
		APIPath: req.APIPath,
		Method:  req.Method,
		Module:  req.Module,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.permission.update", map[string]any{
		"target_id": perm.ID,
	})
	writeJSON(w, http.StatusOK, toPermissionResponse(*perm))
}

func (a *API) handleDeletePermission(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.svc.DeletePermission(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.permission.delete", map[string]any{
		"target_id": id,
	})
	w.WriteHeader(http.StatusNoContent)
}
