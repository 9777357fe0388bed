package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/knowhub/internal/pkg/errcode"
	"github.com/xxxsen/knowhub/internal/pkg/response"
	"github.com/xxxsen/knowhub/internal/service"
)

type ConnectorHandler struct {
	connectors *service.ConnectorService
	sync       *service.SyncService
}

func NewConnectorHandler(connectors *service.ConnectorService, sync *service.SyncService) *ConnectorHandler {
	return &ConnectorHandler{connectors: connectors, sync: sync}
}

func (h *ConnectorHandler) Create(c *gin.Context) {
	var req service.ConnectorCreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	conn, err := h.connectors.Create(c.Request.Context(), getTenantID(c), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, conn)
}

func (h *ConnectorHandler) List(c *gin.Context) {
	conns, err := h.connectors.List(c.Request.Context(), getTenantID(c), c.Query("connector_type"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, conns)
}

func (h *ConnectorHandler) Get(c *gin.Context) {
	conn, err := h.connectors.Get(c.Request.Context(), getTenantID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, conn)
}

type connectorUpdateRequest struct {
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

func (h *ConnectorHandler) Update(c *gin.Context) {
	var req connectorUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	conn, err := h.connectors.Update(c.Request.Context(), getTenantID(c), c.Param("id"), req.Name, req.IsActive)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, conn)
}

type connectorCredentialsRequest struct {
	Credentials string `json:"credentials"`
}

func (h *ConnectorHandler) UpdateCredentials(c *gin.Context) {
	var req connectorCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if err := h.connectors.UpdateCredentials(c.Request.Context(), getTenantID(c), c.Param("id"), req.Credentials); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *ConnectorHandler) Delete(c *gin.Context) {
	if err := h.connectors.Delete(c.Request.Context(), getTenantID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *ConnectorHandler) TestConnection(c *gin.Context) {
	if err := h.connectors.TestConnection(c.Request.Context(), getTenantID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *ConnectorHandler) SupportedTypes(c *gin.Context) {
	response.Success(c, h.connectors.SupportedTypes())
}

// StartSync accepts the request and runs the sync in the background;
// the caller polls Progress for state.
func (h *ConnectorHandler) StartSync(c *gin.Context) {
	if err := h.sync.StartSync(c.Request.Context(), getTenantID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"started": true})
}

func (h *ConnectorHandler) Progress(c *gin.Context) {
	progress, err := h.sync.Progress(c.Request.Context(), getTenantID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, progress)
}
