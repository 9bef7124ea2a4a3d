// internal/auth/auth.go
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"aquahub/internal/config"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const (
	ContextUsername contextKey = "username"
	ContextRole     contextKey = "role"
)

// Claims represents JWT claims for dashboard users.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.StandardClaims
}

// Manager handles dashboard-user JWTs and producer API keys. When no JWT
// secret is configured the manager runs open (dev mode) and RequireJWT
// passes requests through.
type Manager struct {
	secret     string
	expiration time.Duration
	apiKeys    []string
	users      []config.User
}

func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		secret:     cfg.Auth.JWTSecret,
		expiration: time.Duration(cfg.Auth.JWTExpirationMinutes) * time.Minute,
		apiKeys:    cfg.Auth.APIKeys,
		users:      cfg.Auth.Users,
	}
}

func (m *Manager) Enabled() bool {
	return m.secret != ""
}

// GenerateJWT creates a signed token for an authenticated user.
func (m *Manager) GenerateJWT(username, role string) (string, error) {
	if !m.Enabled() {
		return "", errors.New("auth disabled: no JWT secret configured")
	}
	now := time.Now()
	claims := &Claims{
		Username: username,
		Role:     role,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: now.Add(m.expiration).Unix(),
			IssuedAt:  now.Unix(),
			Issuer:    "aquahub",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.secret))
}

// ValidateJWT parses and verifies a token.
func (m *Manager) ValidateJWT(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// ValidateAPIKey checks a producer API key in constant time. With no keys
// configured, all producers are accepted.
func (m *Manager) ValidateAPIKey(apiKey string) bool {
	if len(m.apiKeys) == 0 {
		return true
	}
	for _, validKey := range m.apiKeys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(validKey)) == 1 {
			return true
		}
	}
	return false
}

// AuthenticateUser validates a username/password pair against the configured
// users and returns the user's role.
func (m *Manager) AuthenticateUser(username, password string) (string, error) {
	for _, user := range m.users {
		if user.Username != username {
			continue
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
			return "", errors.New("invalid password")
		}
		return user.Role, nil
	}
	return "", errors.New("user not found")
}

// HashPassword creates a bcrypt hash for seeding user entries.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(bytes), err
}

// RequireJWT guards an endpoint with bearer-token auth. Pass-through when
// auth is disabled.
func (m *Manager) RequireJWT(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization format", http.StatusUnauthorized)
			return
		}
		claims, err := m.ValidateJWT(parts[1])
		if err != nil {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := r.Context()
		ctx = contextWithClaims(ctx, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}
