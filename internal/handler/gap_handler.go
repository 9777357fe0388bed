package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/knowhub/internal/pkg/errcode"
	"github.com/xxxsen/knowhub/internal/pkg/response"
	"github.com/xxxsen/knowhub/internal/repo"
	"github.com/xxxsen/knowhub/internal/service"
)

type GapHandler struct {
	gaps *service.GapService
}

func NewGapHandler(gaps *service.GapService) *GapHandler {
	return &GapHandler{gaps: gaps}
}

type gapCreateRequest struct {
	Question string `json:"question"`
	Category string `json:"category"`
	Priority int    `json:"priority"`
}

func (h *GapHandler) Create(c *gin.Context) {
	var req gapCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	gap, err := h.gaps.Create(c.Request.Context(), getTenantID(c), req.Question, req.Category, req.Priority)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gap)
}

func (h *GapHandler) List(c *gin.Context) {
	filter := repo.GapListFilter{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Limit:    parseUint(c.Query("limit"), 50),
		Offset:   parseUint(c.Query("offset"), 0),
	}
	gaps, total, err := h.gaps.List(c.Request.Context(), getTenantID(c), filter)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": gaps, "total": total})
}

func (h *GapHandler) Get(c *gin.Context) {
	gap, err := h.gaps.Get(c.Request.Context(), getTenantID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gap)
}

type gapAnswerRequest struct {
	Answer string `json:"answer"`
}

func (h *GapHandler) Answer(c *gin.Context) {
	var req gapAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	gap, err := h.gaps.Answer(c.Request.Context(), getTenantID(c), c.Param("id"), req.Answer)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gap)
}

func (h *GapHandler) Dismiss(c *gin.Context) {
	if err := h.gaps.Dismiss(c.Request.Context(), getTenantID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *GapHandler) BulkDismiss(c *gin.Context) {
	var req bulkIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	count, err := h.gaps.BulkDismiss(c.Request.Context(), getTenantID(c), req.IDs)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"updated": count})
}

func (h *GapHandler) Delete(c *gin.Context) {
	if err := h.gaps.Delete(c.Request.Context(), getTenantID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *GapHandler) Stats(c *gin.Context) {
	stats, err := h.gaps.Stats(c.Request.Context(), getTenantID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stats)
}

func (h *GapHandler) Categories(c *gin.Context) {
	categories, err := h.gaps.Categories(c.Request.Context(), getTenantID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, categories)
}

func (h *GapHandler) Detect(c *gin.Context) {
	gaps, err := h.gaps.Detect(c.Request.Context(), getTenantID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gaps)
}
