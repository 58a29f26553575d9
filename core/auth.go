package core

import (
	"context"
	"errors"
	"time"
)

// Principal is an authenticated identity as seen by authorization checks.
// The password hash never leaves the repository layer.
type Principal struct {
	ID        int64
	Username  string
	Email     string
	Role      Role
	CreatedAt time.Time
}

// Authority returns the principal's single authority string derived from its
// role.
func (p Principal) Authority() string {
	return p.Role.Authority()
}

var (
	// ErrInvalidCredentials is returned when login lookup or password
	// verification fails. The two cases are deliberately indistinguishable
	// so the response carries no identifier-enumeration signal.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrDuplicateUser is returned when registration collides with an
	// existing username or email.
	ErrDuplicateUser = errors.New("username or email already exists")

	// ErrUserNotFound is returned when a token subject no longer resolves
	// to a stored user. Tokens are not invalidated retroactively, so this
	// is an expected outcome after account deletion.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidToken is returned when a token is malformed, expired, or
	// carries a signature that does not verify.
	ErrInvalidToken = errors.New("invalid token")
)

// TokenVerifier is the subset of TokenCodec the request authenticator needs.
type TokenVerifier interface {
	IsValid(token string) bool
	Subject(token string) (string, error)
}

// IdentityResolver maps a token subject (email) to a Principal.
type IdentityResolver interface {
	Resolve(ctx context.Context, email string) (Principal, error)
}

// AuthService defines the login/registration entry points that produce the
// first token of a session.
type AuthService interface {
	IdentityResolver
	Login(ctx context.Context, email, password string) (Principal, string, error)
	Register(ctx context.Context, username, email, password string) (Principal, string, error)
}
