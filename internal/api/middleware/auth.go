package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken indicates the JWT token is invalid
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired indicates the JWT token has expired
	ErrTokenExpired = errors.New("token expired")
)

const (
	// ServiceKeyHeader carries the key of machine clients such as an MTA
	// forwarding inbound mail
	ServiceKeyHeader = "X-Service-Key"
	// AuthorizationHeader is the header name for JWT token
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for Bearer token
	BearerPrefix = "Bearer "
	// ServiceKeyLength is the length of generated keys (32 bytes = 64 hex chars)
	ServiceKeyLength = 32
	// DefaultTokenExpiry is the default JWT token expiry duration
	DefaultTokenExpiry = 24 * time.Hour
)

// ServiceKeyManager keeps the shared secret of machine clients in a file
// under the data directory.
type ServiceKeyManager struct {
	path string
	key  string
	mu   sync.RWMutex
}

// NewServiceKeyManager loads the key from dataDir, generating one on first use
func NewServiceKeyManager(dataDir string) (*ServiceKeyManager, error) {
	m := &ServiceKeyManager{path: filepath.Join(dataDir, "service_key.txt")}

	m.mu.Lock()
	defer m.mu.Unlock()
	if data, err := os.ReadFile(m.path); err == nil && len(strings.TrimSpace(string(data))) > 0 {
		m.key = strings.TrimSpace(string(data))
		return m, nil
	}
	if err := m.rotate(); err != nil {
		return nil, err
	}
	return m, nil
}

// rotate writes a fresh key. The caller holds mu.
func (m *ServiceKeyManager) rotate() error {
	buf := make([]byte, ServiceKeyLength)
	if _, err := rand.Read(buf); err != nil {
		return err
	}
	key := hex.EncodeToString(buf)

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(m.path, []byte(key), 0600); err != nil {
		return err
	}
	m.key = key
	return nil
}

// CurrentKey returns the active key
func (m *ServiceKeyManager) CurrentKey() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.key
}

// Validate compares key with the active key in constant time
func (m *ServiceKeyManager) Validate(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.key == "" || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(m.key), []byte(key)) == 1
}

// Reset replaces the key, invalidating the old one
func (m *ServiceKeyManager) Reset() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.rotate(); err != nil {
		return "", err
	}
	return m.key, nil
}

// JWTClaims are the claims of a user token. The subject is the username.
type JWTClaims struct {
	UserID uint `json:"uid"`
	jwt.RegisteredClaims
}

// Username returns the subject claim
func (c *JWTClaims) Username() string {
	return c.Subject
}

const tokenIssuer = "koordinator"

// JWTManager signs and verifies HS256 user tokens
type JWTManager struct {
	secret []byte
	ttl    time.Duration
	parser *jwt.Parser
}

// NewJWTManager creates a JWTManager; a zero ttl means DefaultTokenExpiry
func NewJWTManager(secret string, ttl time.Duration) *JWTManager {
	if ttl <= 0 {
		ttl = DefaultTokenExpiry
	}
	return &JWTManager{
		secret: []byte(secret),
		ttl:    ttl,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(tokenIssuer),
			jwt.WithExpirationRequired(),
		),
	}
}

// GenerateToken returns a signed token and its expiry as unix seconds
func (m *JWTManager) GenerateToken(userID uint, username string) (string, int64, error) {
	now := time.Now()
	exp := now.Add(m.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &JWTClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", 0, err
	}
	return signed, exp.Unix(), nil
}

// ValidateToken verifies signature, issuer and expiry. Expired tokens yield
// ErrTokenExpired, every other failure ErrInvalidToken.
func (m *JWTManager) ValidateToken(raw string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	_, err := m.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil || claims.UserID == 0:
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "AUTH_FAILED",
			"message": message,
		},
	})
}

// ServiceKeyMiddleware admits requests carrying the service key
func ServiceKeyMiddleware(keys *ServiceKeyManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(ServiceKeyHeader)
		if key == "" {
			abortUnauthorized(c, "Service key is required")
			return
		}
		if !keys.Validate(key) {
			abortUnauthorized(c, "Invalid service key")
			return
		}
		c.Next()
	}
}

// JWTMiddleware validates JWT token for protected routes
func JWTMiddleware(jwtManager *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthorizationHeader)
		if authHeader == "" {
			abortUnauthorized(c, "Authorization header is required")
			return
		}
		if !strings.HasPrefix(authHeader, BearerPrefix) {
			abortUnauthorized(c, "Invalid authorization header format")
			return
		}

		claims, err := jwtManager.ValidateToken(strings.TrimPrefix(authHeader, BearerPrefix))
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				abortUnauthorized(c, "Token has expired")
			} else {
				abortUnauthorized(c, "Invalid token")
			}
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxUsername, claims.Username())

		c.Next()
	}
}

// gin context keys set by JWTMiddleware
const (
	ctxUserID   = "user_id"
	ctxUsername = "username"
)

// GetUserIDFromContext retrieves the user ID from the Gin context
func GetUserIDFromContext(c *gin.Context) (uint, bool) {
	userID, exists := c.Get(ctxUserID)
	if !exists {
		return 0, false
	}
	id, ok := userID.(uint)
	return id, ok
}

// GetUsernameFromContext retrieves the username from the Gin context
func GetUsernameFromContext(c *gin.Context) (string, bool) {
	username, exists := c.Get(ctxUsername)
	if !exists {
		return "", false
	}
	name, ok := username.(string)
	return name, ok
}
