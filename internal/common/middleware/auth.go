package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"support-relay-backend/internal/common/errors"
	"support-relay-backend/internal/domain/chat"
)

// SessionVerifier validates a bearer session token.
type SessionVerifier interface {
	VerifySession(token string) (chat.Principal, error)
}

// RequireSession verifies the Authorization bearer token on every request and
// stores the principal in the context.
func RequireSession(v SessionVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			abort(c, errors.NewInvalidCredentialError("missing bearer token"))
			return
		}
		p, err := v.VerifySession(token)
		if err != nil {
			abort(c, err)
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// RequireUser admits guest and Telegram sessions only.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			abort(c, errors.NewInvalidCredentialError("missing session"))
			return
		}
		if p.IsAdmin() {
			abort(c, errors.NewAccessDeniedError("user session required"))
			return
		}
		c.Next()
	}
}

// RequireAdmin admits admin sessions only.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			abort(c, errors.NewInvalidCredentialError("missing session"))
			return
		}
		if !p.IsAdmin() {
			abort(c, errors.NewAccessDeniedError("admin session required"))
			return
		}
		c.Next()
	}
}

// PrincipalFrom returns the principal stored by RequireSession.
func PrincipalFrom(c *gin.Context) (chat.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return chat.Principal{}, false
	}
	p, ok := v.(chat.Principal)
	return p, ok
}

func bearerToken(c *gin.Context) string {
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
