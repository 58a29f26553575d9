package core

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

// RepositoryAuthService implements AuthService on top of the user repository
// and a token codec. It owns password hashing and verification; the codec
// owns token issuance.
type RepositoryAuthService struct {
	users UserRepository
	codec *TokenCodec
}

func NewRepositoryAuthService(users UserRepository, codec *TokenCodec) *RepositoryAuthService {
	return &RepositoryAuthService{users: users, codec: codec}
}

// Login verifies the stored password hash for the given email and issues a
// token. A missing record and a wrong password both return
// ErrInvalidCredentials.
func (s *RepositoryAuthService) Login(ctx context.Context, email, password string) (Principal, string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Principal{}, "", ErrInvalidCredentials
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil || u == nil {
		return Principal{}, "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return Principal{}, "", ErrInvalidCredentials
	}

	p, err := principalFromRecord(u)
	if err != nil {
		return Principal{}, "", ErrInvalidCredentials
	}
	token, err := s.codec.Issue(p.Email, p.Role)
	if err != nil {
		return Principal{}, "", err
	}
	return p, token, nil
}

// Register creates a new user with role USER and issues its first token.
// The raw password is hashed immediately and never stored or returned.
func (s *RepositoryAuthService) Register(ctx context.Context, username, email, password string) (Principal, string, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return Principal{}, "", errors.New("username, email and password are required")
	}

	if u, err := s.users.FindByUsername(ctx, username); err == nil && u != nil {
		return Principal{}, "", ErrDuplicateUser
	} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return Principal{}, "", err
	}
	if u, err := s.users.FindByEmail(ctx, email); err == nil && u != nil {
		return Principal{}, "", ErrDuplicateUser
	} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return Principal{}, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Principal{}, "", err
	}

	if _, err := s.users.Create(ctx, username, email, string(hash), string(RoleUser)); err != nil {
		// Unique constraints may still fire under concurrent registration.
		if strings.Contains(err.Error(), "duplicate") || strings.Contains(err.Error(), "unique") {
			return Principal{}, "", ErrDuplicateUser
		}
		return Principal{}, "", err
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil || u == nil {
		return Principal{}, "", ErrUserNotFound
	}
	p, err := principalFromRecord(u)
	if err != nil {
		return Principal{}, "", err
	}
	token, err := s.codec.Issue(p.Email, p.Role)
	if err != nil {
		return Principal{}, "", err
	}
	return p, token, nil
}

// Resolve maps a token subject to the stored principal. ErrUserNotFound is
// expected when the account was deleted after the token was issued.
func (s *RepositoryAuthService) Resolve(ctx context.Context, email string) (Principal, error) {
	if strings.TrimSpace(email) == "" {
		return Principal{}, ErrUserNotFound
	}
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Principal{}, ErrUserNotFound
		}
		return Principal{}, err
	}
	if u == nil {
		return Principal{}, ErrUserNotFound
	}
	return principalFromRecord(u)
}

func principalFromRecord(u *UserRecord) (Principal, error) {
	role, err := ParseRole(u.Role)
	if err != nil {
		return Principal{}, err
	}
	return Principal{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      role,
		CreatedAt: u.CreatedAt,
	}, nil
}
