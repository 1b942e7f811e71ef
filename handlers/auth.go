package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"paper-portal/middleware"
	"paper-portal/services"
)

func (h *Handler) register(c *gin.Context) {
	var in services.RegisterInput
	if !bindJSON(c, &in) {
		return
	}
	user, err := h.Auth.Register(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password, services.LoginMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	maxAge := int(time.Until(res.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.CookieName, res.Token, maxAge, "/", "", h.Production, true)
	c.JSON(http.StatusOK, res)
}

func (h *Handler) logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.CookieName, "", -1, "/", "", h.Production, true)
	c.Status(http.StatusNoContent)
}

func (h *Handler) session(c *gin.Context) {
	info, err := h.Auth.SessionInfo(c.Request.Context(), currentSession(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handler) loginHistory(c *gin.Context) {
	var p services.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	page, err := h.Auth.LoginHistory(c.Request.Context(), currentSession(c), p)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) changePassword(c *gin.Context) {
	var in services.ChangePasswordInput
	if !bindJSON(c, &in) {
		return
	}
	if err := h.Auth.ChangePassword(c.Request.Context(), currentSession(c), in); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}

func (h *Handler) listAccounts(c *gin.Context) {
	accounts, err := h.Auth.ListAccounts(c.Request.Context(), currentSession(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

func (h *Handler) linkAccount(c *gin.Context) {
	var in services.AccountInput
	if !bindJSON(c, &in) {
		return
	}
	account, err := h.Auth.LinkAccount(c.Request.Context(), currentSession(c), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *Handler) unlinkAccount(c *gin.Context) {
	if err := h.Auth.UnlinkAccount(c.Request.Context(), currentSession(c), c.Param("provider")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) states(c *gin.Context) {
	states, err := h.Auth.States(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, states)
}

type tokenRequest struct {
	Token string `json:"token"`
}

// validateToken ist öffentlich; ein ungültiges Token ist kein HTTP-Fehler.
func (h *Handler) validateToken(c *gin.Context) {
	var req tokenRequest
	if !bindJSON(c, &req) {
		return
	}
	v, err := h.Tokens.Validate(c.Request.Context(), req.Token)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) joinWithToken(c *gin.Context) {
	var req tokenRequest
	if !bindJSON(c, &req) {
		return
	}
	v, err := h.Tokens.Join(c.Request.Context(), currentSession(c), req.Token)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

type keywordsRequest struct {
	Keywords string `json:"keywords"`
}

func (h *Handler) normalizeKeywords(c *gin.Context) {
	var req keywordsRequest
	if !bindJSON(c, &req) {
		return
	}
	normalized, duplicates := services.NormalizeKeywords(req.Keywords)
	c.JSON(http.StatusOK, gin.H{
		"keywords":   normalized,
		"list":       services.SplitKeywords(normalized),
		"duplicates": duplicates,
	})
}
