package core

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// bearerToken extracts the token from an Authorization: Bearer header.
// Returns "" when the header is absent or not a bearer scheme.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireAuth resolves the bearer token to a Principal and stores it in the
// request context. Missing, invalid, expired and orphaned tokens all abort
// with the same 401.
func RequireAuth(verifier *TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := verifier.Verify(c.Request.Context(), bearerToken(c))
		if err != nil {
			abortAuthError(c, err)
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// RequireRole is RequireAuth plus a role membership test. There is no role
// hierarchy: the principal's role must be in allowedRoles exactly.
// An authenticated principal with a role outside the set gets 403, which is
// deliberately distinct from the 401 for a bad token.
func RequireRole(verifier *TokenVerifier, allowedRoles ...Role) gin.HandlerFunc {
	if len(allowedRoles) == 0 {
		panic("RequireRole needs at least one allowed role")
	}
	allowed := make(map[Role]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		p, err := verifier.Verify(c.Request.Context(), bearerToken(c))
		if err != nil {
			abortAuthError(c, err)
			return
		}
		if _, ok := allowed[p.Role]; !ok {
			respondError(c, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
			c.Abort()
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

func abortAuthError(c *gin.Context, err error) {
	switch err {
	case ErrUnauthenticated:
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	default:
		respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "internal server error")
	}
	c.Abort()
}

// CurrentPrincipal returns the Principal stored by RequireAuth/RequireRole.
// Handlers behind those middlewares can rely on ok being true.
func CurrentPrincipal(c *gin.Context) (Principal, bool) {
	v, exists := c.Get(principalKey)
	if !exists {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}
