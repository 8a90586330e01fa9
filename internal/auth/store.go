package auth

import "context"

// Store describes the persistence operations the identity subsystem
// consumes. Entity persistence for jobs, companies and the rest of the
// board lives elsewhere; only the contracts below are visible here.
type Store interface {
	Users(ctx context.Context) UserStore
	Roles(ctx context.Context) RoleStore
	Permissions(ctx context.Context) PermissionStore
}

// UserStore manages principals, their credentials and the session slot.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)

	// FindByRefreshTokenAndEmail is the exact-match revocation check: it
	// succeeds only when the presented token is the one currently stored in
	// the user's session slot.
	FindByRefreshTokenAndEmail(ctx context.Context, token, email string) (*User, error)

	ExistsByEmail(ctx context.Context, email string) (bool, error)
	List(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, u *User) error

	// UpdateRefreshToken overwrites the session slot. An empty token clears
	// the slot (logout).
	UpdateRefreshToken(ctx context.Context, email, token string) error

	UpdatePassword(ctx context.Context, email, passwordHash string) error
	SetActive(ctx context.Context, email string, active bool) error
	Delete(ctx context.Context, id string) error
}

// RoleStore manages roles. Find and FindByName resolve the permission set
// eagerly; the authorization gate never triggers a lazy fetch mid-check.
type RoleStore interface {
	Create(ctx context.Context, role *Role) error
	Find(ctx context.Context, id string) (*Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]*Role, error)
	Update(ctx context.Context, role *Role) error
	Delete(ctx context.Context, id string) error
	SetPermissions(ctx context.Context, roleID string, permissionIDs []string) error
}

// PermissionStore manages the permission catalog.
type PermissionStore interface {
	Create(ctx context.Context, p *Permission) error
	Find(ctx context.Context, id string) (*Permission, error)
	List(ctx context.Context) ([]Permission, error)
	Update(ctx context.Context, p *Permission) error
	Delete(ctx context.Context, id string) error

	// Ensure upserts the given permissions by (api_path, method), leaving
	// existing rows untouched.
	Ensure(ctx context.Context, perms []Permission) error
}
