package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"investment-core/internal/domain"
)

const actorContextKey = "Actor"

// UserClaims represents JWT claims for authenticated users.
type UserClaims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 session tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a manager; ttl <= 0 falls back to 30 days.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for userID with role.
func (m *TokenManager) Issue(userID string, role domain.Role) (string, error) {
	now := m.now()
	claims := UserClaims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Parse verifies tokenStr and returns the actor it was issued to.
func (m *TokenManager) Parse(tokenStr string) (domain.Actor, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.Actor{}, err
	}
	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return domain.Actor{}, errors.New("invalid token claims")
	}
	role := domain.Role(claims.Role)
	if !role.Valid() {
		return domain.Actor{}, errors.New("invalid role claim")
	}
	return domain.Actor{ID: claims.UserID, Role: role}, nil
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// AuthMiddleware enforces JWT auth for protected routes.
func AuthMiddleware(tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			respondCode(c, http.StatusUnauthorized, "MISSING_TOKEN", "missing Authorization header")
			c.Abort()
			return
		}
		raw, ok := bearerToken(authHeader)
		if !ok {
			respondCode(c, http.StatusUnauthorized, "INVALID_AUTH_HEADER", "invalid Authorization header")
			c.Abort()
			return
		}

		actor, err := tokens.Parse(raw)
		if err != nil {
			respondCode(c, http.StatusUnauthorized, "INVALID_TOKEN", "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(actorContextKey, actor)
		c.Next()
	}
}

// RequireAction rejects actors the policy does not allow to perform action.
func RequireAction(action domain.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := domain.Authorize(currentActor(c), action); err != nil {
			respondError(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// currentActor returns the authenticated actor from context.
func currentActor(c *gin.Context) domain.Actor {
	if v, ok := c.Get(actorContextKey); ok {
		if a, okCast := v.(domain.Actor); okCast {
			return a
		}
	}
	return domain.Actor{}
}
