package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paper-portal/auth"
	"paper-portal/services"
)

const (
	sessionKey = "session"
	// CookieName ist der Name des Session-Cookies.
	CookieName = "session"
)

// Session liest das Token aus "Authorization: Bearer" oder dem Session-Cookie und lädt den Benutzer.
// Ohne oder mit ungültigem Token bleibt die Anfrage anonym.
func Session(issuer *auth.SessionIssuer, db *gorm.DB, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			c.Next()
			return
		}
		claims, err := issuer.Parse(raw)
		if err != nil {
			log.Debug("Ignoring invalid session token", zap.Error(err))
			c.Next()
			return
		}
		sess, err := services.LoadSession(db.WithContext(c.Request.Context()), claims.Subject)
		switch {
		case errors.Is(err, services.ErrUnauthenticated):
			log.Debug("Session user missing or inactive", zap.String("user_id", claims.Subject))
		case err != nil:
			log.Error("Failed to load session", zap.String("user_id", claims.Subject), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		default:
			c.Set(sessionKey, sess)
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := c.Cookie(CookieName); err == nil {
		return cookie
	}
	return ""
}

// CurrentSession liefert die Session der Anfrage oder nil.
func CurrentSession(c *gin.Context) *auth.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*auth.Session)
	return sess
}

// RequireSession bricht anonyme Anfragen mit 401 ab.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentSession(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		c.Next()
	}
}
