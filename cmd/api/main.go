package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shrimpsizemoose/trekker/logger"

	"campusroll/internal/attendance"
	"campusroll/internal/auth"
	"campusroll/internal/cloudinary"
	"campusroll/internal/config"
	"campusroll/internal/conversation"
	"campusroll/internal/exam"
	"campusroll/internal/httpapi"
	"campusroll/internal/httpmiddleware"
	"campusroll/internal/identity"
	"campusroll/internal/prefs"
	"campusroll/internal/roster"
	"campusroll/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
		if cfg.JWTSigningKey == "dev-signing-secret-change" {
			logger.Error.Fatalf("JWT_SIGNING_KEY must be set in production")
		}
	}

	if err := run(cfg); err != nil {
		logger.Error.Fatalf("api: %v", err)
	}
}

func run(cfg config.App) error {
	ctx := context.Background()

	kv, err := store.Open(ctx, store.Options{
		Backend:     cfg.StoreBackend,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
		RedisAddr:   cfg.RedisAddr,
		RedisPrefix: cfg.RedisKeyPrefix,
	})
	if err != nil {
		return err
	}
	defer kv.Close()

	accounts := identity.NewRegistry(kv)
	idx := roster.NewIndex(accounts)

	var uploads cloudinary.Uploader
	if cfg.CloudinaryConfigured() {
		uploads = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		logger.Info.Println("cloudinary configured:", cfg.CloudinaryCloudName)
	} else {
		logger.Info.Println("cloudinary not configured, uploads disabled")
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Store:      kv,
		Accounts:   accounts,
		Roster:     idx,
		Attendance: attendance.NewManager(attendance.NewRepository(kv), accounts, idx),
		Messages:   conversation.NewLog(kv, accounts),
		Exams:      exam.NewService(kv, accounts),
		Prefs:      prefs.New(kv),
		Signer:     auth.NewSigner(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL),
		Uploads:    uploads,
		Limiter:    httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info.Printf("starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	logger.Info.Println("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error.Printf("server forced shutdown: %v", err)
	}
	logger.Info.Println("server exited")
	return nil
}
