package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkdrop/go-server/internal/model"
	"github.com/fonsecaaso/linkdrop/go-server/internal/service"
)

const (
	SessionCookieName = "session"

	userKey    = "user"
	sessionKey = "session_token"
)

// Authenticator resolves a signed session cookie to a live session.
type Authenticator interface {
	Authenticate(ctx context.Context, signed string) (*model.Session, error)
}

// LoadSession attaches the signed-in user to the request when a valid
// session cookie or bearer token is present. It never rejects a request.
func LoadSession(auth Authenticator) gin.HandlerFunc {
	logger := zap.L().With(zap.String("component", "AuthMiddleware"))

	return func(c *gin.Context) {
		signed := sessionToken(c)
		if signed == "" {
			c.Next()
			return
		}

		session, err := auth.Authenticate(c.Request.Context(), signed)
		if err != nil {
			if !errors.Is(err, service.ErrUnauthenticated) {
				logger.Error("Failed to load session", zap.Error(err))
			}
			c.Next()
			return
		}

		c.Set(userKey, session.User)
		c.Set(sessionKey, signed)
		c.Next()
	}
}

func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": service.ErrUnauthenticated.Error(),
				"code":  "UNAUTHORIZED",
			})
			return
		}
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "admin access required",
				"code":  "FORBIDDEN",
			})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the signed-in user, or nil.
func CurrentUser(c *gin.Context) *model.User {
	value, exists := c.Get(userKey)
	if !exists {
		return nil
	}
	user, _ := value.(*model.User)
	return user
}

// SessionToken returns the signed session of the current request, if any.
func SessionToken(c *gin.Context) string {
	return c.GetString(sessionKey)
}

func sessionToken(c *gin.Context) string {
	if cookie, err := c.Cookie(SessionCookieName); err == nil && cookie != "" {
		return cookie
	}
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
