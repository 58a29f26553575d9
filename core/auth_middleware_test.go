package core

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// fakeVerifier records calls so tests can assert which steps ran.
type fakeVerifier struct {
	valid        bool
	subject      string
	subjectErr   error
	isValidCalls int
	subjectCalls int
}

func (f *fakeVerifier) IsValid(string) bool {
	f.isValidCalls++
	return f.valid
}

func (f *fakeVerifier) Subject(string) (string, error) {
	f.subjectCalls++
	if f.subjectErr != nil {
		return "", f.subjectErr
	}
	return f.subject, nil
}

type fakeResolver struct {
	principal Principal
	err       error
	calls     int
}

func (f *fakeResolver) Resolve(context.Context, string) (Principal, error) {
	f.calls++
	if f.err != nil {
		return Principal{}, f.err
	}
	return f.principal, nil
}

// runAuth sends one request through TokenAuth and reports the downstream
// view: whether the handler ran and what principal it saw.
func runAuth(t *testing.T, verifier TokenVerifier, resolver IdentityResolver, header string) (forwarded bool, principal Principal, authenticated bool) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TokenAuth(verifier, resolver))
	r.GET("/probe", func(c *gin.Context) {
		forwarded = true
		principal, authenticated = CurrentPrincipal(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("request not forwarded, status=%d", w.Code)
	}
	return forwarded, principal, authenticated
}

func TestTokenAuthNoHeader(t *testing.T) {
	v := &fakeVerifier{}
	res := &fakeResolver{}

	forwarded, _, authenticated := runAuth(t, v, res, "")
	if !forwarded {
		t.Fatal("request must be forwarded without a header")
	}
	if authenticated {
		t.Fatal("context must stay empty without a header")
	}
	if v.isValidCalls != 0 {
		t.Fatal("verifier must not run without a credential")
	}
}

func TestTokenAuthWrongScheme(t *testing.T) {
	v := &fakeVerifier{}
	res := &fakeResolver{}

	_, _, authenticated := runAuth(t, v, res, "Basic dXNlcjpwdw==")
	if authenticated {
		t.Fatal("context must stay empty for a non-bearer header")
	}
	if v.isValidCalls != 0 {
		t.Fatal("verifier must not run for a non-bearer header")
	}
}

func TestTokenAuthEmptyBearerToken(t *testing.T) {
	v := &fakeVerifier{}
	res := &fakeResolver{}

	_, _, authenticated := runAuth(t, v, res, "Bearer ")
	if authenticated {
		t.Fatal("context must stay empty for an empty bearer token")
	}
	if v.isValidCalls != 0 {
		t.Fatal("verifier must not run for an empty bearer token")
	}
}

func TestTokenAuthSchemeIsCaseSensitive(t *testing.T) {
	v := &fakeVerifier{valid: true, subject: "a@b.c"}
	res := &fakeResolver{}

	_, _, authenticated := runAuth(t, v, res, "bearer sometoken")
	if authenticated {
		t.Fatal("scheme marker must be matched exactly")
	}
	if v.isValidCalls != 0 {
		t.Fatal("verifier must not run for a lowercased scheme")
	}
}

func TestTokenAuthInvalidToken(t *testing.T) {
	v := &fakeVerifier{valid: false}
	res := &fakeResolver{}

	forwarded, _, authenticated := runAuth(t, v, res, "Bearer bogus")
	if !forwarded {
		t.Fatal("request must be forwarded after a failed validation")
	}
	if authenticated {
		t.Fatal("context must stay empty for an invalid token")
	}
	if res.calls != 0 {
		t.Fatal("resolver must not run for an invalid token")
	}
}

func TestTokenAuthSubjectNoLongerExists(t *testing.T) {
	v := &fakeVerifier{valid: true, subject: "deleted@example.com"}
	res := &fakeResolver{err: ErrUserNotFound}

	forwarded, _, authenticated := runAuth(t, v, res, "Bearer sometoken")
	if !forwarded {
		t.Fatal("request must be forwarded when the subject is gone")
	}
	if authenticated {
		t.Fatal("context must stay empty when the subject is gone")
	}
	if res.calls != 1 {
		t.Fatalf("resolver calls = %d, want 1", res.calls)
	}
}

func TestTokenAuthResolverFailureIsSwallowed(t *testing.T) {
	v := &fakeVerifier{valid: true, subject: "a@b.c"}
	res := &fakeResolver{err: errors.New("store unavailable")}

	forwarded, _, authenticated := runAuth(t, v, res, "Bearer sometoken")
	if !forwarded {
		t.Fatal("request must be forwarded when resolution fails")
	}
	if authenticated {
		t.Fatal("context must stay empty when resolution fails")
	}
}

func TestTokenAuthSuccess(t *testing.T) {
	want := Principal{ID: 7, Username: "alice", Email: "a@b.c", Role: RoleUser}
	v := &fakeVerifier{valid: true, subject: "a@b.c"}
	res := &fakeResolver{principal: want}

	_, got, authenticated := runAuth(t, v, res, "Bearer sometoken")
	if !authenticated {
		t.Fatal("context must hold the resolved principal")
	}
	if got.Username != want.Username || got.Role != want.Role {
		t.Fatalf("principal = %+v, want %+v", got, want)
	}
}

func TestTokenAuthWithRealCodec(t *testing.T) {
	codec, err := NewTokenCodec(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec error: %v", err)
	}
	token, err := codec.Issue("a@b.c", RoleAdmin)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	res := &fakeResolver{principal: Principal{ID: 1, Username: "alice", Email: "a@b.c", Role: RoleAdmin}}

	_, got, authenticated := runAuth(t, codec, res, "Bearer "+token)
	if !authenticated {
		t.Fatal("valid codec-issued token must authenticate")
	}
	if got.Authority() != "ROLE_ADMIN" {
		t.Fatalf("authority = %q, want ROLE_ADMIN", got.Authority())
	}
}

func TestRequireAuthAndAdminOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)

	serve := func(principal *Principal, path string) int {
		r := gin.New()
		if principal != nil {
			p := *principal
			r.Use(func(c *gin.Context) { c.Set(principalKey, p) })
		}
		auth := r.Group("/auth", RequireAuth())
		auth.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
		admin := r.Group("/admin", AdminOnly())
		admin.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w.Code
	}

	user := Principal{Username: "alice", Role: RoleUser}
	admin := Principal{Username: "root", Role: RoleAdmin}

	if code := serve(nil, "/auth/ok"); code != http.StatusUnauthorized {
		t.Fatalf("anonymous on protected route: status=%d, want 401", code)
	}
	if code := serve(&user, "/auth/ok"); code != http.StatusOK {
		t.Fatalf("user on protected route: status=%d, want 200", code)
	}
	if code := serve(&user, "/admin/ok"); code != http.StatusForbidden {
		t.Fatalf("user on admin route: status=%d, want 403", code)
	}
	if code := serve(&admin, "/admin/ok"); code != http.StatusOK {
		t.Fatalf("admin on admin route: status=%d, want 200", code)
	}
}
