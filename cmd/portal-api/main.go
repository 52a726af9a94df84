package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	v1 "farmfund/funding-portal/funding-portal-backend/api/v1"
	"farmfund/funding-portal/funding-portal-backend/internal/app"
	"farmfund/funding-portal/funding-portal-backend/internal/auth"
	"farmfund/funding-portal/funding-portal-backend/internal/config"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := app.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var tokens *auth.TokenManager
	if cfg.Security.JWTSecret != "" {
		tokens = auth.NewTokenManager(cfg.Security.JWTSecret, cfg.Security.TokenTTL.Duration)
	}

	// portal-api token <subject> prints an admin token and exits
	if flag.Arg(0) == "token" {
		if err := printToken(tokens, flag.Arg(1)); err != nil {
			logger.Fatal("Failed to issue token", zap.Error(err))
		}
		return
	}

	ctx := context.Background()
	platform, err := app.Build(ctx, cfg, logger, true)
	if err != nil {
		logger.Fatal("Failed to build platform", zap.Error(err))
	}

	gin.SetMode(cfg.Server.Mode)
	router := v1.NewRouter(v1.Dependencies{
		Orchestrator: platform.Orchestrator,
		Tokenization: platform.Tokenization,
		Reports:      platform.Reports,
		WebSocket:    platform.WebSocket,
		Tokens:       tokens,
		Logger:       logger.Named("http"),
	})

	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
		IdleTimeout:  cfg.Server.IdleTimeout.Duration,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := platform.Close(shutdownCtx); err != nil {
		logger.Error("Failed to close platform", zap.Error(err))
	}

	logger.Info("Server exiting")
}

func printToken(tokens *auth.TokenManager, subject string) error {
	if tokens == nil {
		return errors.New("JWT_SECRET is not set")
	}
	if subject == "" {
		subject = "admin"
	}
	token, err := tokens.Issue(subject, auth.RoleAdmin)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
