package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"jobboard.org/internal/ids"
)

// DefaultRoleName is assigned to self-registered accounts when the role
// exists. Accounts keep working without it, falling into the role-less
// self-service tier.
const DefaultRoleName = "USER"

// Service owns the identity flows: credential authentication, token
// issuance, single-slot refresh rotation and the account lifecycle.
type Service struct {
	store  Store
	minter *TokenMinter
	mailer Mailer
	gate   *Gate
	now    func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithMailer overrides the mail collaborator.
func WithMailer(m Mailer) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.mailer = m
		}
	}
}

// WithGate overrides the authorization gate.
func WithGate(g *Gate) ServiceOption {
	return func(s *Service) {
		if g != nil {
			s.gate = g
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service.
func NewService(store Store, minter *TokenMinter, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if minter == nil {
		return nil, errors.New("auth: token minter is required")
	}
	svc := &Service{
		store:  store,
		minter: minter,
		mailer: LogMailer{},
		gate:   NewGate(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Minter exposes the token minter, mainly for the HTTP layer's cookie TTL.
func (s *Service) Minter() *TokenMinter { return s.minter }

// EnsureBuiltins seeds the permission catalog.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	return s.store.Permissions(ctx).Ensure(ctx, BuiltinPermissions)
}

// Login authenticates credentials and issues a fresh token pair. The
// refresh token lands in the session slot before it is returned, displacing
// whatever session was active before.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, *User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return TokenPair{}, nil, ErrBadCredentials
	}
	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrBadCredentials
		}
		return TokenPair{}, nil, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return TokenPair{}, nil, ErrBadCredentials
	}
	if !user.Active {
		return TokenPair{}, nil, ErrAccountInactive
	}
	if err := s.attachRole(ctx, user); err != nil {
		return TokenPair{}, nil, err
	}
	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, user, nil
}

// Refresh exchanges a presented refresh token for a new pair, rotating the
// session slot. A token that is cryptographically valid but no longer
// occupies the slot fails with ErrInvalidRefreshToken; that is how logout
// and rotation revoke without a blacklist. First use wins.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, *User, error) {
	claims, err := s.minter.Verify(refreshToken)
	if err != nil {
		return TokenPair{}, nil, err
	}
	if claims.Type != "" || claims.User == nil {
		return TokenPair{}, nil, ErrInvalidRefreshToken
	}
	email := claims.Subject
	user, err := s.store.Users(ctx).FindByRefreshTokenAndEmail(ctx, refreshToken, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrInvalidRefreshToken
		}
		return TokenPair{}, nil, err
	}
	if err := s.attachRole(ctx, user); err != nil {
		return TokenPair{}, nil, err
	}
	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, user, nil
}

// Logout clears the session slot. Already-issued access tokens stay valid
// until their own expiry; only future refresh attempts are cut off.
func (s *Service) Logout(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return ErrUnauthenticated
	}
	return s.store.Users(ctx).UpdateRefreshToken(ctx, email, "")
}

// issuePair mints access+refresh tokens and persists the refresh token to
// the slot before returning. An issued-but-unstored refresh token must
// never escape this function.
func (s *Service) issuePair(ctx context.Context, user *User) (TokenPair, error) {
	access, accessExp, err := s.minter.SignAccess(user)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.minter.SignRefresh(user)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.Users(ctx).UpdateRefreshToken(ctx, user.Email, refresh); err != nil {
		return TokenPair{}, err
	}
	user.RefreshToken = refresh
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// ResolvePrincipal validates an access token and loads the principal with
// its role resolved. Tokens carrying a type claim are not access tokens and
// are rejected.
func (s *Service) ResolvePrincipal(ctx context.Context, accessToken string) (*User, error) {
	claims, err := s.minter.Verify(accessToken)
	if err != nil {
		return nil, err
	}
	if claims.Type != "" || claims.User == nil {
		return nil, ErrTokenMalformed
	}
	user, err := s.store.Users(ctx).FindByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if err := s.attachRole(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authorize runs the gate for the principal on a resolved route template.
func (s *Service) Authorize(principal *User, path, method string) error {
	return s.gate.Authorize(principal, path, method)
}

// Public reports whether the route requires no principal.
func (s *Service) Public(path, method string) bool {
	return s.gate.Public(path, method)
}

// RegisterRequest carries the self-registration input.
type RegisterRequest struct {
	Name     string
	Email    string
	Password string
}

// Register creates an inactive account with the default role and sends the
// activation token. The account cannot log in until verified.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
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
		Active:       false,
	}
	if role, err := s.store.Roles(ctx).FindByName(ctx, DefaultRoleName); err == nil {
		user.RoleID = &role.ID
		user.Role = role
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, err
	}

	token, _, err := s.minter.SignEmailVerification(user.Email)
	if err != nil {
		_ = users.Delete(ctx, user.ID)
		return nil, err
	}
	if err := s.mailer.SendVerificationEmail(ctx, user.Name, user.Email, token); err != nil {
		// An inactive account that never received its verification token is
		// unreachable forever; drop the row so the address can try again.
		_ = users.Delete(ctx, user.ID)
		return nil, fmt.Errorf("send verification email: %w", err)
	}
	return user, nil
}

// VerifyAccount activates the account named by a verification token. The
// handler is idempotence-guarded: a second use fails with
// ErrAlreadyVerified rather than silently succeeding, which is the only
// replay defense these tokens have.
func (s *Service) VerifyAccount(ctx context.Context, token string) error {
	claims, err := s.minter.Verify(token)
	if err != nil {
		return err
	}
	if claims.Type != TokenTypeEmailVerification {
		return ErrTokenMalformed
	}
	users := s.store.Users(ctx)
	user, err := users.FindByEmail(ctx, claims.Subject)
	if err != nil {
		return err
	}
	if user.Active {
		return ErrAlreadyVerified
	}
	return users.SetActive(ctx, user.Email, true)
}

// ForgotPassword mints a short-lived reset token and hands it to the mail
// collaborator. The token is revoked by expiry only.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	token, _, err := s.minter.SignPasswordReset(user.Email)
	if err != nil {
		return err
	}
	return s.mailer.SendPasswordResetEmail(ctx, user.Email, token)
}

// ResetPassword sets a new password for the account named by a reset token.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	claims, err := s.minter.Verify(token)
	if err != nil {
		return err
	}
	if claims.Type != TokenTypeResetPassword {
		return ErrTokenMalformed
	}
	if len(newPassword) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	users := s.store.Users(ctx)
	user, err := users.FindByEmail(ctx, claims.Subject)
	if err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return users.UpdatePassword(ctx, user.Email, hash)
}

// ChangePassword rotates the password after re-checking the current one.
func (s *Service) ChangePassword(ctx context.Context, email, current, newPassword, confirm string) error {
	email = normalizeEmail(email)
	if email == "" {
		return ErrUnauthenticated
	}
	if newPassword != confirm {
		return fmt.Errorf("%w: password confirmation does not match", ErrInvalidInput)
	}
	if len(newPassword) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	users := s.store.Users(ctx)
	user, err := users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := VerifyPassword(user.PasswordHash, current); err != nil {
		return ErrBadCredentials
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return users.UpdatePassword(ctx, user.Email, hash)
}

// Account returns the principal summary for the given email with the role
// resolved.
func (s *Service) Account(ctx context.Context, email string) (*User, error) {
	email = normalizeEmail(email)
	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := s.attachRole(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) attachRole(ctx context.Context, user *User) error {
	if user.RoleID == nil || *user.RoleID == "" {
		user.Role = nil
		return nil
	}
	role, err := s.store.Roles(ctx).Find(ctx, *user.RoleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			user.Role = nil
			return nil
		}
		return err
	}
	user.Role = role
	return nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
