package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/taskpage/taskpage/internal/config"
	"github.com/taskpage/taskpage/internal/handler"
	"github.com/taskpage/taskpage/internal/remote"
	"github.com/taskpage/taskpage/internal/store"
	"github.com/taskpage/taskpage/internal/wizard"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// A .env file is optional; real environments set the variables directly.
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	auth := remote.NewAuthClient(cfg.ServiceURL, cfg.ServiceKey, logger)
	sessions := remote.NewSessionManager(auth, logger)
	defer sessions.Close()

	rowsHTTP := oauth2.NewClient(ctx, sessions)
	rowsHTTP.Timeout = 10 * time.Second
	rows := remote.NewRowsClient(cfg.ServiceURL, cfg.ServiceKey, rowsHTTP, logger)

	taskStore := store.New(rows, sessions, logger)

	// Session guard subscription: when the remote service reports no active
	// session anymore, drop all local task state. The next request hits the
	// login boundary through the middleware.
	changes, release := sessions.Subscribe()
	defer release()
	go func() {
		for ev := range changes {
			if ev.Session == nil {
				logger.Info("session ended, discarding local tasks")
				taskStore.Reset()
			}
		}
	}()

	h := handler.New(taskStore, sessions, wizard.New(), logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Mount("/", h.Routes())

	srv := http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Shutdown error", zap.Error(err))
	}
	release()
	logger.Info("Server stopped")
}
