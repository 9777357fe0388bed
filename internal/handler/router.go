package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/knowhub/internal/middleware"
)

type RouterDeps struct {
	Documents  *DocumentHandler
	Connectors *ConnectorHandler
	Chat       *ChatHandler
	Gaps       *GapHandler
	Projects   *ProjectHandler
	JWTSecret  []byte
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	authGroup := api.Group("")
	authGroup.Use(middleware.TenantAuth(deps.JWTSecret))

	authGroup.POST("/documents", deps.Documents.Create)
	authGroup.GET("/documents", deps.Documents.List)
	authGroup.GET("/documents/stats", deps.Documents.Stats)
	authGroup.POST("/documents/bulk_delete", deps.Documents.BulkDelete)
	authGroup.POST("/documents/bulk_classify", deps.Documents.BulkClassify)
	authGroup.POST("/documents/bulk_status", deps.Documents.BulkUpdateStatus)
	authGroup.POST("/documents/bulk_project", deps.Documents.BulkAssignProject)
	authGroup.GET("/documents/:id", deps.Documents.Get)
	authGroup.POST("/documents/:id/classify", deps.Documents.Classify)
	authGroup.DELETE("/documents/:id", deps.Documents.Delete)

	authGroup.GET("/connectors/types", deps.Connectors.SupportedTypes)
	authGroup.POST("/connectors", deps.Connectors.Create)
	authGroup.GET("/connectors", deps.Connectors.List)
	authGroup.GET("/connectors/:id", deps.Connectors.Get)
	authGroup.PUT("/connectors/:id", deps.Connectors.Update)
	authGroup.PUT("/connectors/:id/credentials", deps.Connectors.UpdateCredentials)
	authGroup.DELETE("/connectors/:id", deps.Connectors.Delete)
	authGroup.POST("/connectors/:id/test", deps.Connectors.TestConnection)
	authGroup.POST("/connectors/:id/sync", deps.Connectors.StartSync)
	authGroup.GET("/connectors/:id/sync", deps.Connectors.Progress)

	authGroup.POST("/chat/sessions", deps.Chat.CreateSession)
	authGroup.GET("/chat/sessions", deps.Chat.ListSessions)
	authGroup.GET("/chat/sessions/:id", deps.Chat.GetSession)
	authGroup.DELETE("/chat/sessions/:id", deps.Chat.DeleteSession)
	authGroup.GET("/chat/sessions/:id/messages", deps.Chat.ListMessages)
	authGroup.POST("/chat/sessions/:id/messages", deps.Chat.Chat)
	authGroup.POST("/chat/sessions/:id/stream", deps.Chat.ChatStream)

	authGroup.POST("/gaps", deps.Gaps.Create)
	authGroup.GET("/gaps", deps.Gaps.List)
	authGroup.GET("/gaps/stats", deps.Gaps.Stats)
	authGroup.GET("/gaps/categories", deps.Gaps.Categories)
	authGroup.POST("/gaps/detect", deps.Gaps.Detect)
	authGroup.POST("/gaps/bulk_dismiss", deps.Gaps.BulkDismiss)
	authGroup.GET("/gaps/:id", deps.Gaps.Get)
	authGroup.POST("/gaps/:id/answer", deps.Gaps.Answer)
	authGroup.POST("/gaps/:id/dismiss", deps.Gaps.Dismiss)
	authGroup.DELETE("/gaps/:id", deps.Gaps.Delete)

	authGroup.POST("/projects", deps.Projects.Create)
	authGroup.GET("/projects", deps.Projects.List)
	authGroup.GET("/projects/:id", deps.Projects.Get)
	authGroup.PUT("/projects/:id", deps.Projects.Update)
	authGroup.DELETE("/projects/:id", deps.Projects.Delete)
}
