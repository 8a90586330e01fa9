package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"jobboard.org/internal/audit"
	"jobboard.org/internal/auth"
	"jobboard.org/internal/obs"
)

const refreshCookieName = "refresh_token"

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type roleResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

type userResponse struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Email     string        `json:"email"`
	Active    bool          `json:"active"`
	CompanyID *string       `json:"company_id,omitempty"`
	Role      *roleResponse `json:"role,omitempty"`
}

type sessionResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        userResponse `json:"user"`
}

func toUserResponse(u *auth.User) userResponse {
	resp := userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Active:    u.Active,
		CompanyID: u.CompanyID,
	}
	if u.Role != nil {
		role := &roleResponse{
			ID:          u.Role.ID,
			Name:        u.Role.Name,
			Description: u.Role.Description,
		}
		for _, p := range u.Role.Permissions {
			role.Permissions = append(role.Permissions, p.Name)
		}
		resp.Role = role
	}
	return resp
}

// The refresh token never appears in a response body. It travels only in
// this cookie, scoped to the auth endpoints.
func (a *API) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/v1/auth",
		MaxAge:   int(a.svc.Minter().RefreshTTL() / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *API) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/v1/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	pair, user, err := a.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		obs.LoginsTotal.WithLabelValues("failure").Inc()
		handleServiceError(w, r, err)
		return
	}
	obs.LoginsTotal.WithLabelValues("success").Inc()
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"email": user.Email,
	})

	a.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken: pair.AccessToken,
		ExpiresAt:   pair.AccessExpiresAt,
		User:        toUserResponse(user),
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		obs.TokenRefreshTotal.WithLabelValues("failure").Inc()
		writeError(w, r, http.StatusUnauthorized, "authentication failed")
		return
	}

	pair, user, err := a.svc.Refresh(r.Context(), cookie.Value)
	if err != nil {
		obs.TokenRefreshTotal.WithLabelValues("failure").Inc()
		a.clearRefreshCookie(w)
		handleServiceError(w, r, err)
		return
	}
	obs.TokenRefreshTotal.WithLabelValues("success").Inc()
	_ = audit.LogEvent(r.Context(), "auth.refresh", map[string]any{
		"email": user.Email,
	})

	a.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken: pair.AccessToken,
		ExpiresAt:   pair.AccessExpiresAt,
		User:        toUserResponse(user),
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requirePrincipal(w, r)
	if !ok {
		return
	}
	if err := a.svc.Logout(r.Context(), principal.Email); err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	a.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, "name, email and a password of at least 8 characters are required")
		return
	}

	user, err := a.svc.Register(r.Context(), auth.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{
		"email": user.Email,
	})
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		writeError(w, r, http.StatusBadRequest, "token is required")
		return
	}
	if err := a.svc.VerifyAccount(r.Context(), token); err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.verify", nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "verified"})
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, "email is required")
		return
	}

	// Unknown addresses get the same 202 as known ones; the response must
	// not reveal which emails have accounts.
	if err := a.svc.ForgotPassword(r.Context(), req.Email); err != nil && !errors.Is(err, auth.ErrNotFound) {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, "token and a password of at least 8 characters are required")
		return
	}

	if err := a.svc.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.password.reset", nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requirePrincipal(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, "current, new and confirm passwords are required")
		return
	}

	err := a.svc.ChangePassword(r.Context(), principal.Email,
		req.CurrentPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.password.change", nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAccount(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requirePrincipal(w, r)
	if !ok {
		return
	}
	user, err := a.svc.Account(r.Context(), principal.Email)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}
