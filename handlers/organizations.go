package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"paper-portal/services"
)

func (h *Handler) listOrganizations(c *gin.Context) {
	orgs, err := h.Organizations.ListMine(c.Request.Context(), currentSession(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orgs)
}

func (h *Handler) createOrganization(c *gin.Context) {
	var in services.OrganizationInput
	if !bindJSON(c, &in) {
		return
	}
	org, err := h.Organizations.Create(c.Request.Context(), currentSession(c), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, org)
}

func (h *Handler) listOrganizationUsers(c *gin.Context) {
	var f services.MemberFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	page, err := h.Organizations.ListUsers(c.Request.Context(), currentSession(c), c.Query("organizationId"), f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) changeRole(c *gin.Context) {
	var in services.ChangeRoleInput
	if !bindJSON(c, &in) {
		return
	}
	member, err := h.Organizations.ChangeRole(c.Request.Context(), currentSession(c), c.Param("id"), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

func (h *Handler) removeMember(c *gin.Context) {
	err := h.Organizations.RemoveMember(c.Request.Context(), currentSession(c), c.Query("organizationId"), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listTokens(c *gin.Context) {
	tokens, err := h.Tokens.List(c.Request.Context(), currentSession(c), c.Query("organizationId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

func (h *Handler) createToken(c *gin.Context) {
	var in services.TokenInput
	if !bindJSON(c, &in) {
		return
	}
	token, err := h.Tokens.Create(c.Request.Context(), currentSession(c), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, token)
}

func (h *Handler) revokeToken(c *gin.Context) {
	if err := h.Tokens.Revoke(c.Request.Context(), currentSession(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
