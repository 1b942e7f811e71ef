package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paper-portal/auth"
	"paper-portal/middleware"
	"paper-portal/services"
)

// Handler bündelt die Services für die HTTP-Schicht.
type Handler struct {
	Auth          *services.AuthService
	Tokens        *services.TokenService
	Organizations *services.OrganizationService
	Events        *services.EventService
	Papers        *services.PaperService
	Uploads       *services.UploadService
	Logger        *zap.Logger
	// Production unterdrückt Fehlerdetails in 500-Antworten.
	Production bool
}

// FileSource liefert gespeicherte Objekte zum Ausliefern unter /files.
type FileSource interface {
	Object(key string) ([]byte, string, bool)
}

// RouterOptions sind die Abhängigkeiten der Middleware.
type RouterOptions struct {
	Sessions     *auth.SessionIssuer
	DB           *gorm.DB
	LoginLimiter *middleware.RateLimiter
	TokenLimiter *middleware.RateLimiter
	MetricsKey   string
	// Files ist nur beim In-Memory-Speicher gesetzt; S3 liefert Dateien selbst aus.
	Files FileSource
}

// NewRouter baut die gin-Engine mit allen Routen.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(h.Logger))
	r.Use(middleware.Metrics())

	r.GET("/health", h.health)
	r.GET("/metrics", middleware.APIKey(opts.MetricsKey), gin.WrapH(promhttp.Handler()))
	if opts.Files != nil {
		r.GET("/files/*key", serveFile(opts.Files))
	}

	api := r.Group("/api")
	api.Use(middleware.Session(opts.Sessions, opts.DB, h.Logger))
	loginLimit, tokenLimit := limitWith(opts.LoginLimiter), limitWith(opts.TokenLimiter)
	authed := middleware.RequireSession()

	// Öffentliche Endpunkte
	api.POST("/auth/register", h.register)
	api.POST("/auth/login", loginLimit, h.login)
	api.POST("/auth/logout", h.logout)
	api.POST("/token/validate", tokenLimit, h.validateToken)
	api.POST("/keywords/normalize", h.normalizeKeywords)
	api.GET("/states", h.states)

	a := api.Group("", authed)
	a.GET("/auth/session", h.session)
	a.GET("/auth/login-history", h.loginHistory)
	a.PUT("/auth/password", h.changePassword)
	a.GET("/auth/accounts", h.listAccounts)
	a.POST("/auth/accounts", h.linkAccount)
	a.DELETE("/auth/accounts/:provider", h.unlinkAccount)

	a.POST("/token/join", h.joinWithToken)
	a.GET("/organization/tokens", h.listTokens)
	a.POST("/organization/tokens", h.createToken)
	a.DELETE("/organization/tokens/:id", h.revokeToken)

	a.GET("/organizations", h.listOrganizations)
	a.POST("/organizations", h.createOrganization)
	a.GET("/organization/users", h.listOrganizationUsers)
	a.PUT("/organization/users/:id/role", h.changeRole)
	a.DELETE("/organization/users/:id", h.removeMember)

	a.GET("/events", h.listEvents)
	a.POST("/events", h.createEvent)
	a.GET("/events/:id", h.getEvent)
	a.PUT("/events/:id", h.updateEvent)
	a.GET("/events/:id/form", h.eventForm)
	a.POST("/events/:id/areas", h.addArea)
	a.POST("/events/:id/paper-types", h.addPaperType)
	a.POST("/events/:id/fields", h.addField)
	a.PUT("/events/:id/fields/:fieldId", h.updateField)
	a.DELETE("/events/:id/fields/:fieldId", h.deleteField)

	a.GET("/paper", h.listPapers)
	a.POST("/paper", h.createPaper)
	a.POST("/paper/upload", h.uploadPaperFile)
	a.GET("/paper/:id", h.getPaper)
	a.PUT("/paper/:id", h.updatePaper)
	a.DELETE("/paper/:id", h.deletePaper)
	a.PUT("/paper/:id/status", h.changeStatus)
	a.POST("/paper/:id/submit", h.submitPaper)
	a.POST("/paper/:id/withdraw", h.withdrawPaper)
	a.GET("/paper/:id/history", h.paperHistory)
	a.GET("/paper/:id/reviews", h.listReviews)
	a.POST("/paper/:id/reviews", h.saveReview)

	return r
}

func limitWith(l *middleware.RateLimiter) gin.HandlerFunc {
	if l == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return l.Limit()
}

func serveFile(files FileSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, contentType, ok := files.Object(strings.TrimPrefix(c.Param("key"), "/"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.Data(http.StatusOK, contentType, data)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// bindJSON liest den Body; bei Fehlern wird direkt 400 geantwortet.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}

// respondError übersetzt Service-Fehler in HTTP-Antworten.
func (h *Handler) respondError(c *gin.Context, err error) {
	var verr *services.ValidationError
	var terr *services.TransitionError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": verr.Fields})
	case errors.As(err, &terr):
		status := http.StatusBadRequest
		if terr.Code == services.CodeForbiddenActor {
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"error": terr.Message, "code": terr.Code})
	case errors.Is(err, services.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": message(err, services.ErrUnauthenticated)})
	case errors.Is(err, services.ErrCannotChangeOwnRole):
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot change own role"})
	case errors.Is(err, services.ErrInvalidPassword):
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid password"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": message(err, services.ErrForbidden)})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": message(err, services.ErrNotFound)})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": message(err, services.ErrConflict)})
	case errors.Is(err, services.ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": services.CodeInvalidTransition})
	default:
		h.Logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		body := gin.H{"error": "internal error"}
		if errors.Is(err, services.ErrStorage) {
			body["error"] = services.ErrStorage.Error()
		}
		if !h.Production {
			body["details"] = err.Error()
		}
		c.JSON(http.StatusInternalServerError, body)
	}
}

// message liefert den Zusatz nach dem Sentinel ("forbidden: not the owner" -> "not the owner").
func message(err, sentinel error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
		return rest
	}
	return msg
}

func currentSession(c *gin.Context) *auth.Session {
	return middleware.CurrentSession(c)
}
