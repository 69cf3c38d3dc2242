package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"openjournal/internal/catalog"
	"openjournal/internal/config"
	"openjournal/internal/identity"
	"openjournal/internal/server"
	"openjournal/internal/submission"
	"openjournal/internal/util"
	"openjournal/internal/workflow"
	"openjournal/pkg/storage"
	"openjournal/pkg/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	st, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	objects, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		log.Fatalf("failed to init object storage: %v", err)
	}

	sessionTTL := time.Duration(cfg.SessionTTLHours) * time.Hour
	var sessions store.SessionStore
	switch cfg.SessionStrategy {
	case "jwt":
		revoker := store.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword)
		sessions, err = store.NewJWTSessionStore(cfg.SessionSecret, sessionTTL, revoker)
		if err != nil {
			log.Fatalf("failed to init jwt sessions: %v", err)
		}
	default:
		sessions = store.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword, sessionTTL)
	}

	httpServer := server.New(server.Config{
		Identity:       identity.New(st),
		Submissions:    submission.New(st, objects),
		Workflow:       workflow.New(st),
		Catalog:        catalog.New(st),
		Sessions:       sessions,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("journal server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
