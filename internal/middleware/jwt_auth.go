package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/faultline/faultline/internal/api"
	"github.com/faultline/faultline/internal/database"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// UserClaims represents the JWT claims for a user
type UserClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTAuthConfig holds JWT authentication configuration
type JWTAuthConfig struct {
	// Enabled determines if JWT authentication is enforced
	Enabled bool

	// JWTSecret is the secret key for signing JWT tokens
	JWTSecret string

	// JWTExpiryHours is the token expiry in hours
	JWTExpiryHours int

	// SkipPaths are paths that don't require authentication
	SkipPaths []string

	// AnonymousPaths are paths served to unauthenticated requesters as well.
	// A valid token still attaches the user; an absent token means anonymous
	// access, and only a present-but-invalid token is rejected.
	AnonymousPaths []string
}

// JWTAuthMiddleware provides JWT-based authentication backed by user records
type JWTAuthMiddleware struct {
	config  *JWTAuthConfig
	mu      sync.RWMutex
	skipMap map[string]bool
	anonMap map[string]bool
}

// ContextKey is a type for context keys
type ContextKey string

const (
	// UserContextKey is the context key for the authenticated user
	UserContextKey ContextKey = "user"
)

// NewJWTAuthMiddleware creates a new JWT authentication middleware
func NewJWTAuthMiddleware(config *JWTAuthConfig) *JWTAuthMiddleware {
	m := &JWTAuthMiddleware{
		config:  config,
		skipMap: make(map[string]bool),
		anonMap: make(map[string]bool),
	}

	// Build path maps for O(1) lookup
	for _, path := range config.SkipPaths {
		m.skipMap[path] = true
	}
	for _, path := range config.AnonymousPaths {
		m.anonMap[path] = true
	}

	return m
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword checks if the provided password matches the hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// GenerateToken generates a JWT token for a user
func (m *JWTAuthMiddleware) GenerateToken(username string) (string, error) {
	m.mu.RLock()
	secret := m.config.JWTSecret
	expiryHours := m.config.JWTExpiryHours
	m.mu.RUnlock()

	claims := UserClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(expiryHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "faultline",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken validates a JWT token and returns the claims
func (m *JWTAuthMiddleware) ValidateToken(tokenString string) (*UserClaims, error) {
	m.mu.RLock()
	secret := m.config.JWTSecret
	m.mu.RUnlock()

	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}

// ValidateCredentials checks a username/password pair against the user table.
// Returns the matched user on success.
func (m *JWTAuthMiddleware) ValidateCredentials(username, password string) (*database.User, bool) {
	user, err := database.GetUserByUsername(username)
	if err != nil {
		// Burn a bcrypt comparison so missing users take as long as bad
		// passwords.
		CheckPassword(password, "$2a$10$000000000000000000000uGZLKJ7yMeYyV7HhK1zKqxXG3eOMPy2m")
		return nil, false
	}
	if !CheckPassword(password, user.PasswordHash) {
		return nil, false
	}
	return user, true
}

// Wrap wraps an http.Handler with JWT authentication
func (m *JWTAuthMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check if auth is enabled
		m.mu.RLock()
		enabled := m.config.Enabled
		m.mu.RUnlock()

		if !enabled {
			next.ServeHTTP(w, r)
			return
		}

		// Check if path should skip authentication
		if m.matchPath(m.skipMap, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		anonymous := m.matchPath(m.anonMap, r.URL.Path)

		// Extract token from request
		tokenString := m.extractToken(r)
		if tokenString == "" {
			if anonymous {
				next.ServeHTTP(w, r)
				return
			}
			m.unauthorized(w, "Missing authentication token")
			return
		}

		// Validate token
		claims, err := m.ValidateToken(tokenString)
		if err != nil {
			log.Printf("JWTAuthMiddleware: Invalid token from %s: %v", r.RemoteAddr, err)
			m.unauthorized(w, "Invalid or expired token")
			return
		}

		// Resolve the user record; deactivated users lose access immediately
		user, err := database.GetUserByUsername(claims.Username)
		if err != nil {
			m.unauthorized(w, "Unknown or deactivated user")
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WrapFunc wraps an http.HandlerFunc with JWT authentication
func (m *JWTAuthMiddleware) WrapFunc(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.Wrap(http.HandlerFunc(next)).ServeHTTP(w, r)
	}
}

// matchPath checks a path against a configured path set, honoring trailing-*
// prefixes (e.g. "/webhook/*").
func (m *JWTAuthMiddleware) matchPath(paths map[string]bool, path string) bool {
	if paths[path] {
		return true
	}

	for p := range paths {
		if strings.HasSuffix(p, "*") {
			prefix := strings.TrimSuffix(p, "*")
			if strings.HasPrefix(path, prefix) {
				return true
			}
		}
	}

	return false
}

// extractToken extracts the JWT token from the request
func (m *JWTAuthMiddleware) extractToken(r *http.Request) string {
	// Try Authorization header (Bearer token)
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}

// unauthorized sends an unauthorized response
func (m *JWTAuthMiddleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer realm=\"API\"")
	api.RespondErrorWithCode(w, http.StatusUnauthorized, api.CodeAuthRequired, message)
}

// SetEnabled enables or disables authentication
func (m *JWTAuthMiddleware) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Enabled = enabled
}

// IsEnabled returns whether authentication is enabled
func (m *JWTAuthMiddleware) IsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Enabled
}

// GetUserFromContext returns the authenticated user from the request context,
// or nil for anonymous requests.
func GetUserFromContext(ctx context.Context) *database.User {
	if user, ok := ctx.Value(UserContextKey).(*database.User); ok {
		return user
	}
	return nil
}
