package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-relay-backend/internal/common/errors"
	"support-relay-backend/internal/domain/chat"
)

type verifierFunc func(string) (chat.Principal, error)

func (f verifierFunc) VerifySession(token string) (chat.Principal, error) { return f(token) }

func testEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	verifier := verifierFunc(func(token string) (chat.Principal, error) {
		switch token {
		case "user":
			return chat.Principal{ActorID: 1, Role: chat.ActorGuest}, nil
		case "admin":
			return chat.Principal{ActorID: 9, Role: chat.ActorAdmin}, nil
		}
		return chat.Principal{}, errors.NewInvalidCredentialError("bad token")
	})

	r := gin.New()
	r.Use(RequestID(), Recovery(), ErrorHandler())
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }
	r.GET("/user", RequireSession(verifier), RequireUser(), ok)
	r.GET("/admin", RequireSession(verifier), RequireAdmin(), ok)
	r.GET("/boom", func(c *gin.Context) { panic("boom") })
	r.GET("/plain", func(c *gin.Context) { _ = c.Error(assert.AnError) })
	return r
}

func do(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) errors.ErrorCode {
	t.Helper()
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code errors.ErrorCode `json:"code"`
		} `json:"error"`
		RequestID string `json:"request_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.NotEmpty(t, body.RequestID)
	return body.Error.Code
}

func TestAuthMiddleware(t *testing.T) {
	r := testEngine()

	assert.Equal(t, http.StatusNoContent, do(r, "/user", "user").Code)
	assert.Equal(t, http.StatusNoContent, do(r, "/admin", "admin").Code)

	w := do(r, "/user", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, errors.ErrCodeInvalidCredential, errorCode(t, w))

	w = do(r, "/user", "forged")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, "/admin", "user")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, errors.ErrCodeAccessDenied, errorCode(t, w))

	w = do(r, "/user", "admin")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRecoveryAndUntypedErrors(t *testing.T) {
	r := testEngine()

	w := do(r, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errors.ErrCodeInternal, errorCode(t, w))

	w = do(r, "/plain", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errors.ErrCodeStorage, errorCode(t, w))
}

func TestRequestIDPropagates(t *testing.T) {
	r := testEngine()
	req := httptest.NewRequest(http.MethodGet, "/user", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestLogPathMasksCredentials(t *testing.T) {
	u, err := url.Parse("/api/auth/telegram/webapp?init_data=user%3D%7B%7D%26hash%3Dabc&lang=en")
	require.NoError(t, err)
	got := logPath(u)
	assert.NotContains(t, got, "hash")
	assert.Contains(t, got, "init_data=REDACTED")
	assert.Contains(t, got, "lang=en")

	u, err = url.Parse("/ws?token=eyJhbGciOi")
	require.NoError(t, err)
	assert.Equal(t, "/ws?token=REDACTED", logPath(u))

	u, err = url.Parse("/api/health")
	require.NoError(t, err)
	assert.Equal(t, "/api/health", logPath(u))
}
