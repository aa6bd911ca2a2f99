package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/username/fundfolio/backend/src/logger"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

const testJWTSecret = "0123456789abcdef0123456789abcdef"

func newTestAuthHandler(t *testing.T, password string) *AuthHandler {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return NewAuthHandler(testJWTSecret, string(hash), time.Hour)
}

func TestLoginIssuesToken(t *testing.T) {
	handler := newTestAuthHandler(t, "sekret")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"password":"sekret"}`))
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"token"`)
	assert.Contains(t, rec.Body.String(), `"expiresAt"`)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	handler := newTestAuthHandler(t, "sekret")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"password":"zle-haslo"}`))
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRejectsMalformedBody(t *testing.T) {
	handler := newTestAuthHandler(t, "sekret")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`not json`))
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	handler := newTestAuthHandler(t, "sekret")

	loginReq := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"password":"sekret"}`))
	loginRec := httptest.NewRecorder()
	handler.Login(loginRec, loginReq)
	require.Equal(t, http.StatusOK, loginRec.Code)

	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(loginRec.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)

	called := false
	protected := handler.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuthMiddlewareRejectsBadTokens(t *testing.T) {
	handler := newTestAuthHandler(t, "sekret")
	protected := handler.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	}))

	missing := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, missing)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	garbage := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	garbage.Header.Set("Authorization", "Bearer not.a.token")
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, garbage)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
