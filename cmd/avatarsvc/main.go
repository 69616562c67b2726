// Command avatarsvc runs the avatar control-plane HTTP/WS server: load
// config, build the dependency graph, start background workers, serve,
// and shut down gracefully on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/avatarplatform/mediator/internal/app"
	"github.com/avatarplatform/mediator/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()
	built, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("build failed: %v", err)
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	built.Scheduler.Start(runCtx)
	built.Live.StartJanitor(runCtx, 5*time.Second)

	if err := built.Reaper.Start(runCtx, "@every 1m"); err != nil {
		built.Log.Fatal("reaper start failed", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: built.API.Router(),
	}

	go func() {
		built.Log.Info("server listening", zap.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			built.Log.Fatal("listen error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	built.Log.Info("shutdown signal received")

	runCancel()
	built.Reaper.Stop()
	built.Scheduler.Drain()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		built.Log.Warn("graceful shutdown failed", zap.Error(err))
		_ = httpServer.Close()
	}

	if err := built.Cleanup(); err != nil {
		built.Log.Warn("cleanup failed", zap.Error(err))
	}

	built.Log.Info("shutdown complete")
}
