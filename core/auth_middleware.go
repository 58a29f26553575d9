package core

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	authHeader   = "Authorization"
	bearerScheme = "Bearer "
	principalKey = "auth_principal"
)

// TokenAuth runs once per request before any protected handler. It extracts
// the bearer token, validates it, resolves the subject to a principal, and
// attaches the result to the request context.
//
// It never rejects a request. Missing or malformed headers, invalid or
// expired tokens, and unresolvable subjects all leave the context empty and
// let the request continue; whether "anonymous" is acceptable for a given
// route is decided by RequireAuth / AdminOnly downstream.
func TokenAuth(verifier TokenVerifier, resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(authHeader)
		token, found := strings.CutPrefix(header, bearerScheme)
		if !found || token == "" {
			c.Next()
			return
		}

		if !verifier.IsValid(token) {
			c.Next()
			return
		}

		subject, err := verifier.Subject(token)
		if err != nil {
			c.Next()
			return
		}
		principal, err := resolver.Resolve(c.Request.Context(), subject)
		if err != nil {
			c.Next()
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// CurrentPrincipal returns the principal attached by TokenAuth, if any.
func CurrentPrincipal(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// RequireAuth aborts with 401 when the request carries no authenticated
// principal.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentPrincipal(c); !ok {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminOnly aborts with 403 unless the authenticated principal holds the
// admin authority.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			c.Abort()
			return
		}
		if p.Authority() != RoleAdmin.Authority() {
			respondError(c, http.StatusForbidden, "FORBIDDEN", "admin privileges required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// requirePrincipal is the inline-handler variant of RequireAuth.
func requirePrincipal(c *gin.Context) (Principal, bool) {
	p, ok := CurrentPrincipal(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return Principal{}, false
	}
	return p, true
}
