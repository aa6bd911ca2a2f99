package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/username/fundfolio/backend/src/logger"
	"github.com/username/fundfolio/backend/src/utils"
)

// AuthHandler implements the single-user login and the bearer token check.
// There is one operator; authentication proves possession of the admin
// password, not an identity.
type AuthHandler struct {
	jwtSecret         []byte
	adminPasswordHash string
	tokenExpiry       time.Duration
}

func NewAuthHandler(jwtSecret, adminPasswordHash string, tokenExpiry time.Duration) *AuthHandler {
	return &AuthHandler{
		jwtSecret:         []byte(jwtSecret),
		adminPasswordHash: adminPasswordHash,
		tokenExpiry:       tokenExpiry,
	}
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

// Login exchanges the admin password for a signed access token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	var payload loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&payload); err != nil {
		utils.SendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.adminPasswordHash), []byte(payload.Password)); err != nil {
		ctxLogger.Warn("Login rejected", "remote", r.RemoteAddr)
		utils.SendJSONError(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	expiresAt := time.Now().Add(h.tokenExpiry)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	signed, err := token.SignedString(h.jwtSecret)
	if err != nil {
		ctxLogger.Error("Signing access token failed", "error", err)
		utils.SendJSONError(w, "Could not issue token", http.StatusInternalServerError)
		return
	}

	ctxLogger.Info("Login accepted")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loginResponse{
		Token:     signed,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	})
}

// AuthMiddleware rejects requests without a valid bearer token.
func (h *AuthHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxLogger := logger.FromContext(r.Context())

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			utils.SendJSONError(w, "Authorization header required", http.StatusUnauthorized)
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == "" {
			utils.SendJSONError(w, "Malformed token", http.StatusUnauthorized)
			return
		}

		token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return h.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			ctxLogger.Warn("Token validation failed", "path", r.URL.Path, "error", err)
			utils.SendJSONError(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
