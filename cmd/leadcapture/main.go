package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"leadcapture/internal/app"
	"leadcapture/internal/config"
	"leadcapture/internal/email"
	"leadcapture/internal/server"
	"leadcapture/internal/transcribe"
	"leadcapture/internal/util"
	"leadcapture/pkg/ai"
	"leadcapture/pkg/storage"
	"leadcapture/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	db, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		util.Fatal("failed to init database", "error", err)
	}

	objects, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		util.Fatal("failed to init object storage", "error", err)
	}

	gemini, err := ai.NewGeminiClient(cfg.GeminiAPIKey)
	if err != nil {
		util.Fatal("failed to init gemini client", "error", err)
	}
	extractor := ai.NewGeminiCardReader(gemini, cfg.OCRModel)

	generator, err := buildGenerator(cfg, gemini)
	if err != nil {
		util.Fatal("failed to init text generator", "error", err)
	}

	transcriber := transcribe.NewClient(cfg.DeepgramURL, cfg.DeepgramAPIKey)
	sender := email.NewSendgridClient(cfg.SendgridAPIKey, cfg.FromEmail)
	if !sender.Configured() {
		logger.Warn("sendgrid not configured, email sending disabled")
	}

	core := app.New(app.Options{
		Store:          db,
		Objects:        objects,
		Generator:      generator,
		Extractor:      extractor,
		Transcriber:    transcriber,
		ClassifierMode: cfg.ClassifierMode,
		CompanyName:    cfg.CompanyName,
		CompanyContext: cfg.CompanyContext,
		Logger:         logger,
	})

	httpServer, err := server.New(server.Config{
		App:                     core,
		Sender:                  sender,
		DeepgramLiveURL:         cfg.DeepgramLiveURL,
		DeepgramAPIKey:          cfg.DeepgramAPIKey,
		RedisAddr:               cfg.RedisAddr,
		RedisPassword:           cfg.RedisPassword,
		ScanRateLimitPerMinute:  cfg.ScanRateLimitPerMinute,
		AudioRateLimitPerMinute: cfg.AudioRateLimitPerMinute,
		EmailRateLimitPerMinute: cfg.EmailRateLimitPerMinute,
		MaxUploadBytes:          cfg.MaxUploadBytes,
		EnableDevRoutes:         os.Getenv("ENABLE_DEV_ROUTES") == "true",
	})
	if err != nil {
		util.Fatal("failed to init http server", "error", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

func buildGenerator(cfg config.FileConfig, gemini *ai.GeminiClient) (ai.TextGenerator, error) {
	switch cfg.GenerationProvider {
	case "ollama":
		return ai.NewOllamaGenerator(cfg.GenerationBaseURL, cfg.GenerationModel), nil
	case "openai-compat":
		return ai.NewOpenAICompatGenerator(cfg.GenerationBaseURL, cfg.GenerationAPIKey, cfg.GenerationModel), nil
	default:
		return ai.NewGeminiGenerator(gemini, cfg.GenerationModel), nil
	}
}
