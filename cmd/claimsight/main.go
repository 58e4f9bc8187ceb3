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

	"github.com/claimsight/claimsight/internal/ai"
	"github.com/claimsight/claimsight/internal/config"
	"github.com/claimsight/claimsight/internal/db"
	"github.com/claimsight/claimsight/internal/filestore"
	"github.com/claimsight/claimsight/internal/handler"
	"github.com/claimsight/claimsight/internal/job"
	"github.com/claimsight/claimsight/internal/middleware"
	"github.com/claimsight/claimsight/internal/repo"
	"github.com/claimsight/claimsight/internal/schedule"
	"github.com/claimsight/claimsight/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "claimsight",
		Short: "invoice reimbursement analysis server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the claimsight server",
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

			database, err := db.Open(cfg.DB)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(database, cfg.Vector.Dimension); err != nil {
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

func runServer(cfg *config.Config, database *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
	)

	manager, err := buildAIManager(cfg.AI)
	if err != nil {
		return err
	}

	documentRepo := repo.NewDocumentRepo(database)
	embedCacheRepo := repo.NewEmbeddingCacheRepo(database)
	chatRepo := repo.NewChatRepo(database)

	archive, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	embeddingService := service.NewEmbeddingService(manager, embedCacheRepo)
	vectorService := service.NewVectorService(embeddingService, documentRepo, cfg.Vector)
	analysisService := service.NewAnalysisService(manager, vectorService, archive, cfg.Upload)
	chatService := service.NewChatService(manager, vectorService, chatRepo, cfg.Chat)

	deps := handler.RouterDeps{
		Analysis: handler.NewAnalysisHandler(analysisService, cfg.Upload.MaxFileSizeMB),
		Chat:     handler.NewChatHandler(chatService),
		Health:   handler.NewHealthHandler(vectorService, manager, cfg.Version),
	}

	middlewares := []gin.HandlerFunc{
		middleware.RequestID(),
		middleware.CORS(cfg.CORSOrigins),
		gzip.Gzip(gzip.DefaultCompression),
	}
	if cfg.RateLimitMS > 0 {
		middlewares = append(middlewares, middleware.RateLimit(time.Duration(cfg.RateLimitMS)*time.Millisecond))
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(middlewares...),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewSessionCleanupJob(chatRepo, cfg.Jobs.SessionTTLDays), cfg.Jobs.SessionCleanupSpec); err != nil {
		return fmt.Errorf("schedule session cleanup: %w", err)
	}
	if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(embedCacheRepo, cfg.Jobs.EmbedCacheTTLDays), cfg.Jobs.EmbedCacheCleanupSpec); err != nil {
		return fmt.Errorf("schedule embedding cache cleanup: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

// buildAIManager wires every configured provider into fallback chains
// for generation and embedding.
func buildAIManager(cfg config.AIConfig) (*ai.Manager, error) {
	opts := ai.GenerateOptions{
		Temperature:     cfg.Temperature,
		MaxOutputTokens: cfg.MaxOutputTokens,
	}
	var generators []ai.GeneratorEntry
	var embedders []ai.EmbedderEntry
	for _, pc := range cfg.Providers {
		provider, err := ai.NewProvider(pc.Name, pc.Data)
		if err != nil {
			return nil, fmt.Errorf("init ai provider %s: %w", pc.Name, err)
		}
		generators = append(generators, ai.GeneratorEntry{
			Name:      pc.Name + "/" + pc.Model,
			Generator: ai.NewGenerator(provider, pc.Model, opts),
		})
		if pc.EmbedModel != "" {
			embedders = append(embedders, ai.EmbedderEntry{
				Name:     pc.EmbedModel,
				Embedder: ai.NewEmbedder(provider, pc.EmbedModel),
			})
		}
	}
	if len(embedders) == 0 {
		return nil, fmt.Errorf("no embedding model configured")
	}
	return ai.NewManager(
		ai.NewGroupGenerator(generators),
		ai.NewGroupEmbedder(embedders),
		ai.ManagerConfig{Timeout: cfg.Timeout, MaxInputChars: cfg.MaxInputChars},
	), nil
}
