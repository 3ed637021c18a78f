package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/docuquery/backend/internal/ai"
	aimock "github.com/docuquery/backend/internal/ai/mock"
	aiopenai "github.com/docuquery/backend/internal/ai/openai"
	"github.com/docuquery/backend/internal/ai/plaintext"
	"github.com/docuquery/backend/internal/api"
	"github.com/docuquery/backend/internal/config"
	"github.com/docuquery/backend/internal/index"
	"github.com/docuquery/backend/internal/ingest"
	"github.com/docuquery/backend/internal/query"
	"github.com/docuquery/backend/internal/storage"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Local .env files carry the API key and overrides in development;
	// absence is fine in production.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Advanced.LogLevel)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Open the document index.
	store, err := index.Open(cfg.Storage.IndexFile, index.Options{
		Threads:     cfg.Advanced.DuckDBThreads,
		MemoryLimit: cfg.Advanced.DuckDBMemoryLimit,
	}, logger)
	if err != nil {
		logger.Fatal("failed to open index", zap.Error(err))
	}
	defer store.Close()

	// Blob staging area for raw uploads.
	blobs, err := storage.NewLocalStore(cfg.Storage.BlobsDirectory)
	if err != nil {
		logger.Fatal("failed to initialize blob storage", zap.Error(err))
	}

	extractor, embedder, answerer, err := buildCapabilities(cfg, store, logger)
	if err != nil {
		logger.Fatal("failed to initialize AI capabilities", zap.Error(err))
	}

	pipeline := ingest.NewPipeline(blobs, store, extractor, embedder, cfg.AI.EmbeddingDimensions, logger)
	engine := query.NewEngine(answerer, store, logger)
	h := api.NewHandler(pipeline, engine, store, store, store, logger, Version)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.ErrorHandler

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			return c.Request().URL.Path == "/api/health"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	// Progress streams must not pass through gzip buffering.
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/ingest") ||
				c.Request().Method == http.MethodDelete
		},
	}))

	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, cfg.Security.PrincipalHeader},
		}))
	}

	api.RegisterRoutes(e, h, cfg)

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	logger.Info("server starting",
		zap.String("version", Version),
		zap.String("buildTime", BuildTime),
		zap.String("addr", cfg.GetServerAddr()),
		zap.String("dataDir", cfg.Storage.DataDirectory),
		zap.String("aiProvider", cfg.AI.Provider))

	go func() {
		if err := e.StartServer(s); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}

// buildCapabilities wires the configured AI provider. The mock provider
// serves offline development and integration tests.
func buildCapabilities(cfg *config.AppConfig, store *index.Store, logger *zap.Logger) (ai.Extractor, ai.Embedder, ai.Answerer, error) {
	extractor := plaintext.NewExtractor()

	if cfg.AI.Provider == "mock" {
		embedder := aimock.NewEmbedder()
		if cfg.AI.EmbeddingDimensions > 0 {
			embedder.Dimensions = cfg.AI.EmbeddingDimensions
		}
		return extractor, embedder, aimock.NewAnswerer(), nil
	}

	aiConfig := &ai.Config{
		BaseURL:             cfg.AI.BaseURL,
		APIKey:              cfg.AI.APIKey,
		ChatModel:           cfg.AI.ChatModel,
		EmbeddingModel:      cfg.AI.EmbeddingModel,
		EmbeddingDimensions: cfg.AI.EmbeddingDimensions,
	}
	if err := aiConfig.Validate(); err != nil {
		return nil, nil, nil, err
	}

	embedder, err := aiopenai.NewEmbedder(aiConfig, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	answerer, err := aiopenai.NewAnswerer(aiConfig, embedder, store, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return extractor, embedder, answerer, nil
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(lvl)
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapCfg.Build()
}
