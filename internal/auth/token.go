package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token kind markers carried in the "type" claim. Access and refresh tokens
// carry no type claim; the layer consuming them decides how to interpret
// the claim set (the session slot check is what makes a refresh token
// stateful).
const (
	TokenTypeEmailVerification = "EMAIL_VERIFICATION"
	TokenTypeResetPassword     = "RESET_PASSWORD"
)

const signingAlg = "HS512"

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 14 * 24 * time.Hour
	defaultVerifyTTL  = 24 * time.Hour
	defaultResetTTL   = 15 * time.Minute
)

// UserClaim is the minimal principal snapshot embedded in access and
// refresh tokens. Deliberately not a response DTO, and deliberately without
// the permission list to keep token size bounded.
type UserClaim struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Claims is the signed payload shared by all token kinds.
type Claims struct {
	User *UserClaim `json:"user,omitempty"`
	Type string     `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// TokenMinter signs and verifies all token kinds with a single symmetric
// secret. It performs no I/O; refresh-token revocation lives in the session
// slot, one layer up.
type TokenMinter struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	verifyTTL  time.Duration
	resetTTL   time.Duration
	now        func() time.Time
}

// MinterOption configures a TokenMinter.
type MinterOption func(*TokenMinter)

// WithIssuer sets the iss claim stamped into every token.
func WithIssuer(issuer string) MinterOption {
	return func(m *TokenMinter) {
		if s := strings.TrimSpace(issuer); s != "" {
			m.issuer = s
		}
	}
}

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(ttl time.Duration) MinterOption {
	return func(m *TokenMinter) {
		if ttl > 0 {
			m.accessTTL = ttl
		}
	}
}

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) MinterOption {
	return func(m *TokenMinter) {
		if ttl > 0 {
			m.refreshTTL = ttl
		}
	}
}

// WithVerifyTTL overrides the email-verification token lifetime.
func WithVerifyTTL(ttl time.Duration) MinterOption {
	return func(m *TokenMinter) {
		if ttl > 0 {
			m.verifyTTL = ttl
		}
	}
}

// WithResetTTL overrides the password-reset token lifetime.
func WithResetTTL(ttl time.Duration) MinterOption {
	return func(m *TokenMinter) {
		if ttl > 0 {
			m.resetTTL = ttl
		}
	}
}

// WithMinterClock overrides the time source (useful for tests).
func WithMinterClock(fn func() time.Time) MinterOption {
	return func(m *TokenMinter) {
		if fn != nil {
			m.now = fn
		}
	}
}

// NewTokenMinter constructs a TokenMinter over the given symmetric secret.
func NewTokenMinter(secret []byte, opts ...MinterOption) (*TokenMinter, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	m := &TokenMinter{
		secret:     secret,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		verifyTTL:  defaultVerifyTTL,
		resetTTL:   defaultResetTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// RefreshTTL reports the configured refresh token lifetime. The HTTP layer
// uses it as the refresh cookie max-age.
func (m *TokenMinter) RefreshTTL() time.Duration { return m.refreshTTL }

// SignAccess mints a short-lived access token for the user.
func (m *TokenMinter) SignAccess(user *User) (string, time.Time, error) {
	return m.sign(Claims{User: snapshot(user)}, user.Email, m.accessTTL)
}

// SignRefresh mints a long-lived refresh token for the user. Callers must
// persist it to the session slot before returning it anywhere.
func (m *TokenMinter) SignRefresh(user *User) (string, time.Time, error) {
	return m.sign(Claims{User: snapshot(user)}, user.Email, m.refreshTTL)
}

// SignEmailVerification mints an account activation token. Its sole
// authority is signature plus expiry; there is no store backing.
func (m *TokenMinter) SignEmailVerification(email string) (string, time.Time, error) {
	return m.sign(Claims{Type: TokenTypeEmailVerification}, email, m.verifyTTL)
}

// SignPasswordReset mints a short-lived password reset token.
func (m *TokenMinter) SignPasswordReset(email string) (string, time.Time, error) {
	return m.sign(Claims{Type: TokenTypeResetPassword}, email, m.resetTTL)
}

func (m *TokenMinter) sign(claims Claims, subject string, validity time.Duration) (string, time.Time, error) {
	now := m.now().UTC()
	expiresAt := now.Add(validity)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    m.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks signature and expiry and returns the claim set. It accepts
// every token kind; kind-specific interpretation of the type claim happens
// one layer up. Failure is always one of ErrTokenMalformed, ErrTokenExpired
// or ErrInvalidSignature.
func (m *TokenMinter) Verify(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrTokenMalformed
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(t *jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{signingAlg}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrTokenMalformed
		}
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if m.issuer != "" && claims.Issuer != m.issuer {
		return nil, ErrTokenMalformed
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

func snapshot(user *User) *UserClaim {
	return &UserClaim{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
	}
}
