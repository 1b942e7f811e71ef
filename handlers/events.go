package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"paper-portal/services"
)

func (h *Handler) listEvents(c *gin.Context) {
	events, err := h.Events.List(c.Request.Context(), currentSession(c), c.Query("organizationId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *Handler) createEvent(c *gin.Context) {
	var in services.EventInput
	if !bindJSON(c, &in) {
		return
	}
	event, err := h.Events.Create(c.Request.Context(), currentSession(c), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

// getEvent liefert ein Event für Mitglieder der Organisation.
func (h *Handler) getEvent(c *gin.Context) {
	event, err := h.Events.View(c.Request.Context(), currentSession(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *Handler) updateEvent(c *gin.Context) {
	var in services.EventInput
	if !bindJSON(c, &in) {
		return
	}
	event, err := h.Events.Update(c.Request.Context(), currentSession(c), c.Param("id"), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *Handler) eventForm(c *gin.Context) {
	form, err := h.Events.Form(c.Request.Context(), currentSession(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, form)
}

func (h *Handler) addArea(c *gin.Context) {
	var in services.OptionInput
	if !bindJSON(c, &in) {
		return
	}
	area, err := h.Events.AddArea(c.Request.Context(), currentSession(c), c.Param("id"), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, area)
}

func (h *Handler) addPaperType(c *gin.Context) {
	var in services.OptionInput
	if !bindJSON(c, &in) {
		return
	}
	pt, err := h.Events.AddPaperType(c.Request.Context(), currentSession(c), c.Param("id"), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pt)
}

func (h *Handler) addField(c *gin.Context) {
	var in services.FieldInput
	if !bindJSON(c, &in) {
		return
	}
	field, err := h.Events.AddField(c.Request.Context(), currentSession(c), c.Param("id"), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, field)
}

func (h *Handler) updateField(c *gin.Context) {
	var in services.FieldInput
	if !bindJSON(c, &in) {
		return
	}
	field, err := h.Events.UpdateField(c.Request.Context(), currentSession(c), c.Param("id"), c.Param("fieldId"), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, field)
}

func (h *Handler) deleteField(c *gin.Context) {
	if err := h.Events.DeleteField(c.Request.Context(), currentSession(c), c.Param("id"), c.Param("fieldId")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
