package auth

import "time"

// User is the authenticated principal. The row also owns the password hash
// and the single refresh-token session slot; neither is ever serialized
// outward.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	RefreshToken string    `json:"-"`
	RoleID       *string   `json:"role_id,omitempty"`
	CompanyID    *string   `json:"company_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Role is resolved eagerly by the store so the authorization gate never
	// touches the database mid-check. Nil for role-less accounts.
	Role *Role `json:"role,omitempty"`
}

// HasSession reports whether a refresh token currently occupies the slot.
func (u *User) HasSession() bool {
	return u.RefreshToken != ""
}

// Role is a named bundle of permissions assigned to users.
type Role struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Active      bool         `json:"active"`
	Permissions []Permission `json:"permissions,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Permission identifies one authorizable operation as a (route template,
// method) pair. (APIPath, Method) is unique, and so is Name.
type Permission struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	APIPath   string    `json:"api_path"`
	Method    string    `json:"method"`
	Module    string    `json:"module"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TokenPair carries freshly minted access and refresh tokens along with
// their expirations.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}
