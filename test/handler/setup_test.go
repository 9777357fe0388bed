package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/knowhub/internal/ai"
	"github.com/xxxsen/knowhub/internal/handler"
	"github.com/xxxsen/knowhub/internal/middleware"
	"github.com/xxxsen/knowhub/internal/pkg/jwt"
	"github.com/xxxsen/knowhub/internal/pkg/secret"
	"github.com/xxxsen/knowhub/internal/repo"
	"github.com/xxxsen/knowhub/internal/service"
	"github.com/xxxsen/knowhub/internal/vector"
	"github.com/xxxsen/knowhub/test/testutil"
)

var testJWTSecret = []byte("test-secret")

// scriptedChatter is a deterministic stand-in for a chat model.
type scriptedChatter struct {
	reply string
}

func (c *scriptedChatter) Chat(ctx context.Context, system string, msgs []ai.Message) (string, error) {
	return c.reply, nil
}

func (c *scriptedChatter) ChatStream(ctx context.Context, system string, msgs []ai.Message, onChunk ai.ChunkFunc) (string, error) {
	if err := onChunk(c.reply); err != nil {
		return "", err
	}
	return c.reply, nil
}

// hashEmbedder derives a stable unit vector from the text so retrieval
// behaves consistently without a real embedding model.
type hashEmbedder struct{}

func (hashEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		emb := make([]float32, 768)
		var sum int
		for _, b := range []byte(text) {
			sum += int(b)
		}
		emb[sum%768] = 1
		out[i] = emb
	}
	return out, nil
}

func (hashEmbedder) ModelName() string { return "hash-test" }

func setupRouter(t *testing.T) (http.Handler, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, cleanup := testutil.OpenTestDB(t)
	connRepo := repo.NewConnectorRepo(db)
	docRepo := repo.NewDocumentRepo(db)
	progressRepo := repo.NewSyncProgressRepo(db)
	chatRepo := repo.NewChatRepo(db)
	gapRepo := repo.NewGapRepo(db)
	projectRepo := repo.NewProjectRepo(db)

	index := vector.NewPGIndex(db)
	box := secret.NewBox("test-credential-secret")
	manager := ai.NewManager(
		&scriptedChatter{reply: "answer from context [1]"},
		hashEmbedder{},
		ai.ManagerConfig{Timeout: 5, EmbedBatchSize: 100},
	)

	connectorService := service.NewConnectorService(connRepo, box)
	syncService := service.NewSyncService(connRepo, progressRepo, docRepo, connectorService, manager, index)
	documentService := service.NewDocumentService(docRepo, projectRepo, index, manager)
	chatService := service.NewChatService(chatRepo, manager, index)
	gapService := service.NewGapService(gapRepo, docRepo, manager)
	projectService := service.NewProjectService(projectRepo)

	deps := handler.RouterDeps{
		Documents:  handler.NewDocumentHandler(documentService),
		Connectors: handler.NewConnectorHandler(connectorService, syncService),
		Chat:       handler.NewChatHandler(chatService),
		Gaps:       handler.NewGapHandler(gapService),
		Projects:   handler.NewProjectHandler(projectService),
		JWTSecret:  testJWTSecret,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)

	return engine, cleanup
}

func seedTenantToken(t *testing.T) (string, string) {
	t.Helper()
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	tenantID := testutil.SeedTenant(t, db)
	token, err := jwt.GenerateToken(tenantID, "user-1", testJWTSecret, time.Hour)
	require.NoError(t, err)
	return tenantID, token
}
