package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/knowhub/internal/ai"
	"github.com/xxxsen/knowhub/internal/config"
	"github.com/xxxsen/knowhub/internal/db"
	"github.com/xxxsen/knowhub/internal/embedcache"
	"github.com/xxxsen/knowhub/internal/handler"
	"github.com/xxxsen/knowhub/internal/job"
	"github.com/xxxsen/knowhub/internal/middleware"
	"github.com/xxxsen/knowhub/internal/repo"
	"github.com/xxxsen/knowhub/internal/pkg/secret"
	"github.com/xxxsen/knowhub/internal/schedule"
	"github.com/xxxsen/knowhub/internal/service"
	"github.com/xxxsen/knowhub/internal/vector"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "knowhub",
		Short: "knowhub backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run knowhub server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			database, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(database); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, database)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func buildChatter(cfg config.AIConfig) (ai.IChatter, error) {
	items := make([]ai.ChatterEntry, 0, len(cfg.Generators))
	for _, pc := range cfg.Generators {
		provider, err := ai.NewChatProvider(pc.Provider, pc.Data)
		if err != nil {
			return nil, err
		}
		items = append(items, ai.ChatterEntry{
			Name:    fmt.Sprintf("%s/%s", pc.Provider, pc.Model),
			Chatter: ai.NewChatter(provider, pc.Model),
		})
	}
	return ai.NewGroupChatter(items), nil
}

func buildEmbedder(cfg config.AIConfig, cacheRepo *repo.EmbeddingCacheRepo) (ai.IEmbedder, error) {
	items := make([]ai.EmbedderEntry, 0, len(cfg.Embedders))
	for _, pc := range cfg.Embedders {
		provider, err := ai.NewEmbedProvider(pc.Provider, pc.Data)
		if err != nil {
			return nil, err
		}
		items = append(items, ai.EmbedderEntry{
			Name:     pc.Model,
			Embedder: ai.NewEmbedder(provider, pc.Model),
		})
	}
	embedder := ai.NewGroupEmbedder(items)
	if embedder == nil {
		return nil, nil
	}
	embedder = embedcache.WithStore(embedder, cacheRepo)
	embedder = embedcache.WithLRU(embedder, cfg.EmbedCacheSize, time.Hour)
	return embedder, nil
}

func runServer(cfg *config.Config, database *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.Int("generators", len(cfg.AI.Generators)),
		zap.Int("embedders", len(cfg.AI.Embedders)),
	)

	connRepo := repo.NewConnectorRepo(database)
	docRepo := repo.NewDocumentRepo(database)
	progressRepo := repo.NewSyncProgressRepo(database)
	chatRepo := repo.NewChatRepo(database)
	gapRepo := repo.NewGapRepo(database)
	projectRepo := repo.NewProjectRepo(database)
	cacheRepo := repo.NewEmbeddingCacheRepo(database)

	index := vector.NewPGIndex(database)
	box := secret.NewBox(cfg.CredentialSecret)

	chatter, err := buildChatter(cfg.AI)
	if err != nil {
		return fmt.Errorf("init ai generators: %w", err)
	}
	embedder, err := buildEmbedder(cfg.AI, cacheRepo)
	if err != nil {
		return fmt.Errorf("init ai embedders: %w", err)
	}
	manager := ai.NewManager(chatter, embedder, ai.ManagerConfig{
		Timeout:        cfg.AI.Timeout,
		EmbedBatchSize: cfg.AI.EmbedBatchSize,
	})

	connectorService := service.NewConnectorService(connRepo, box)
	syncService := service.NewSyncService(connRepo, progressRepo, docRepo, connectorService, manager, index)
	documentService := service.NewDocumentService(docRepo, projectRepo, index, manager)
	chatService := service.NewChatService(chatRepo, manager, index)
	gapService := service.NewGapService(gapRepo, docRepo, manager)
	projectService := service.NewProjectService(projectRepo)

	scheduler := schedule.NewCronScheduler()
	if cfg.Sync.ReindexSpec != "" {
		if err := scheduler.AddJob(job.NewReindexJob(docRepo, manager, index, cfg.Sync.ReindexLimit), cfg.Sync.ReindexSpec); err != nil {
			return fmt.Errorf("schedule reindex job: %w", err)
		}
	}
	if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(cacheRepo, 0), "0 4 * * *"); err != nil {
		return fmt.Errorf("schedule cache cleanup job: %w", err)
	}

	deps := handler.RouterDeps{
		Documents:  handler.NewDocumentHandler(documentService),
		Connectors: handler.NewConnectorHandler(connectorService, syncService),
		Chat:       handler.NewChatHandler(chatService),
		Gaps:       handler.NewGapHandler(gapService),
		Projects:   handler.NewProjectHandler(projectService),
		JWTSecret:  []byte(cfg.JWTSecret),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
