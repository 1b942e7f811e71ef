package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"paper-portal/models"
	"paper-portal/services"
)

func (h *Handler) listPapers(c *gin.Context) {
	var f services.PaperFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	page, err := h.Papers.List(c.Request.Context(), currentSession(c), f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) createPaper(c *gin.Context) {
	var in services.PaperInput
	if !bindJSON(c, &in) {
		return
	}
	res, err := h.Papers.Create(c.Request.Context(), currentSession(c), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) getPaper(c *gin.Context) {
	view, err := h.Papers.Get(c.Request.Context(), currentSession(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) updatePaper(c *gin.Context) {
	var in services.PaperInput
	if !bindJSON(c, &in) {
		return
	}
	res, err := h.Papers.Update(c.Request.Context(), currentSession(c), c.Param("id"), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) deletePaper(c *gin.Context) {
	if err := h.Papers.Delete(c.Request.Context(), currentSession(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type statusRequest struct {
	Status  models.PaperStatus `json:"status"`
	Comment string             `json:"comment"`
}

// bindOptionalJSON erlaubt einen leeren Body (z.B. Einreichen ohne Kommentar).
func bindOptionalJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}

func (h *Handler) changeStatus(c *gin.Context) {
	var req statusRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": gin.H{"status": "is required"}})
		return
	}
	paper, err := h.Papers.ChangeStatus(c.Request.Context(), currentSession(c), c.Param("id"), req.Status, req.Comment)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paper)
}

func (h *Handler) submitPaper(c *gin.Context) {
	var req statusRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	paper, err := h.Papers.Submit(c.Request.Context(), currentSession(c), c.Param("id"), req.Comment)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paper)
}

func (h *Handler) withdrawPaper(c *gin.Context) {
	var req statusRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	paper, err := h.Papers.Withdraw(c.Request.Context(), currentSession(c), c.Param("id"), req.Comment)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paper)
}

func (h *Handler) paperHistory(c *gin.Context) {
	history, err := h.Papers.History(c.Request.Context(), currentSession(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *Handler) listReviews(c *gin.Context) {
	reviews, err := h.Papers.Reviews(c.Request.Context(), currentSession(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

func (h *Handler) saveReview(c *gin.Context) {
	var in services.ReviewInput
	if !bindJSON(c, &in) {
		return
	}
	review, err := h.Papers.SaveReview(c.Request.Context(), currentSession(c), c.Param("id"), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

// uploadPaperFile erwartet multipart/form-data mit paperId und file.
func (h *Handler) uploadPaperFile(c *gin.Context) {
	paperID := c.PostForm("paperId")
	if paperID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": gin.H{"paperId": "is required"}})
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": gin.H{"file": "is required"}})
		return
	}
	paper, err := h.Uploads.Upload(c.Request.Context(), currentSession(c), paperID, fh)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paper)
}
