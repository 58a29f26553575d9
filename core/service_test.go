package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

// memUserRepo is an in-memory UserRepository for service-level tests.
type memUserRepo struct {
	nextID int64
	users  []UserRecord
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{nextID: 1}
}

func (r *memUserRepo) FindByUsername(_ context.Context, username string) (*UserRecord, error) {
	for i := range r.users {
		if r.users[i].Username == username {
			u := r.users[i]
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*UserRecord, error) {
	for i := range r.users {
		if r.users[i].Email == email {
			u := r.users[i]
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memUserRepo) Create(_ context.Context, username, email, passwordHash, role string) (int64, error) {
	id := r.nextID
	r.nextID++
	r.users = append(r.users, UserRecord{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now(),
	})
	return id, nil
}

func (r *memUserRepo) HasAdmin(_ context.Context) (bool, error) {
	for i := range r.users {
		if r.users[i].Role == string(RoleAdmin) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memUserRepo) List(_ context.Context, page, perPage int) ([]AdminUserListItem, int, error) {
	items := make([]AdminUserListItem, 0, len(r.users))
	for _, u := range r.users {
		items = append(items, AdminUserListItem{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt})
	}
	return items, len(items), nil
}

func newTestAuthService(t *testing.T) (*RepositoryAuthService, *memUserRepo) {
	t.Helper()
	repo := newMemUserRepo()
	codec, err := NewTokenCodec(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec error: %v", err)
	}
	return NewRepositoryAuthService(repo, codec), repo
}

func TestRegisterThenLogin(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	principal, token, err := svc.Register(ctx, "alice", "user@example.com", "rightpw")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if principal.Username != "alice" || principal.Email != "user@example.com" || principal.Role != RoleUser {
		t.Fatalf("unexpected principal: %+v", principal)
	}
	if token == "" {
		t.Fatal("Register should issue a token")
	}

	loggedIn, loginToken, err := svc.Login(ctx, "user@example.com", "rightpw")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if loginToken == "" {
		t.Fatal("Login should issue a token")
	}
	if loggedIn.Username != "alice" {
		t.Fatalf("login principal username = %q, want alice", loggedIn.Username)
	}

	// Token subject resolves back to the registered user.
	subject, err := svc.codec.Subject(loginToken)
	if err != nil {
		t.Fatalf("Subject error: %v", err)
	}
	resolved, err := svc.Resolve(ctx, subject)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if resolved.Username != "alice" {
		t.Fatalf("resolved username = %q, want alice", resolved.Username)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "alice", "user@example.com", "rightpw"); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	_, _, wrongPw := svc.Login(ctx, "user@example.com", "wrongpw")
	_, _, noUser := svc.Login(ctx, "ghost@example.com", "rightpw")

	if !errors.Is(wrongPw, ErrInvalidCredentials) {
		t.Fatalf("wrong password error = %v, want ErrInvalidCredentials", wrongPw)
	}
	if !errors.Is(noUser, ErrInvalidCredentials) {
		t.Fatalf("unknown identifier error = %v, want ErrInvalidCredentials", noUser)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "alice", "user@example.com", "rightpw"); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	if _, _, err := svc.Register(ctx, "alice", "other@example.com", "pw"); !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("duplicate username error = %v, want ErrDuplicateUser", err)
	}
	if _, _, err := svc.Register(ctx, "bob", "user@example.com", "pw"); !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("duplicate email error = %v, want ErrDuplicateUser", err)
	}
}

func TestRegisterNeverStoresRawPassword(t *testing.T) {
	svc, repo := newTestAuthService(t)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "alice", "user@example.com", "rightpw"); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	u, err := repo.FindByEmail(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("FindByEmail error: %v", err)
	}
	if u.PasswordHash == "rightpw" || u.PasswordHash == "" {
		t.Fatalf("stored hash must be a non-empty bcrypt hash, got %q", u.PasswordHash)
	}
}

func TestResolveUnknownSubject(t *testing.T) {
	svc, _ := newTestAuthService(t)

	if _, err := svc.Resolve(context.Background(), "ghost@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("Resolve error = %v, want ErrUserNotFound", err)
	}
}
