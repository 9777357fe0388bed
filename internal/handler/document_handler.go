package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/knowhub/internal/pkg/errcode"
	"github.com/xxxsen/knowhub/internal/pkg/response"
	"github.com/xxxsen/knowhub/internal/repo"
	"github.com/xxxsen/knowhub/internal/service"
)

type DocumentHandler struct {
	documents *service.DocumentService
}

func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

func (h *DocumentHandler) Create(c *gin.Context) {
	var req service.DocumentCreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.Title == "" {
		response.Error(c, errcode.ErrInvalid, "title required")
		return
	}
	doc, err := h.documents.Create(c.Request.Context(), getTenantID(c), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	filter := repo.DocumentListFilter{
		Status:         c.Query("status"),
		Classification: c.Query("classification"),
		ProjectID:      c.Query("project_id"),
		ConnectorID:    c.Query("connector_id"),
		Search:         c.Query("q"),
		Limit:          parseUint(c.Query("limit"), 50),
		Offset:         parseUint(c.Query("offset"), 0),
	}
	docs, total, err := h.documents.List(c.Request.Context(), getTenantID(c), filter)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"items": docs, "total": total})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), getTenantID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) Stats(c *gin.Context) {
	stats, err := h.documents.Stats(c.Request.Context(), getTenantID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stats)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), getTenantID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

type bulkIDsRequest struct {
	IDs []string `json:"ids"`
}

func (h *DocumentHandler) BulkDelete(c *gin.Context) {
	var req bulkIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	count, err := h.documents.BulkDelete(c.Request.Context(), getTenantID(c), req.IDs)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": count})
}

type bulkClassifyRequest struct {
	IDs            []string `json:"ids"`
	Classification string   `json:"classification"`
	Confidence     float64  `json:"confidence"`
}

func (h *DocumentHandler) BulkClassify(c *gin.Context) {
	var req bulkClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	count, err := h.documents.BulkClassify(c.Request.Context(), getTenantID(c), req.IDs, req.Classification, req.Confidence)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"updated": count})
}

type bulkStatusRequest struct {
	IDs    []string `json:"ids"`
	Status string   `json:"status"`
}

func (h *DocumentHandler) BulkUpdateStatus(c *gin.Context) {
	var req bulkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	count, err := h.documents.BulkUpdateStatus(c.Request.Context(), getTenantID(c), req.IDs, req.Status)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"updated": count})
}

type bulkProjectRequest struct {
	IDs       []string `json:"ids"`
	ProjectID string   `json:"project_id"`
}

func (h *DocumentHandler) BulkAssignProject(c *gin.Context) {
	var req bulkProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	count, err := h.documents.BulkAssignProject(c.Request.Context(), getTenantID(c), req.IDs, req.ProjectID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"updated": count})
}

func (h *DocumentHandler) Classify(c *gin.Context) {
	doc, err := h.documents.AutoClassify(c.Request.Context(), getTenantID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func parseUint(value string, fallback uint) uint {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return uint(parsed)
}
