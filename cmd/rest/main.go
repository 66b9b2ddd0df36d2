package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"preset-teaching-be/internal/bootstrap"
	"preset-teaching-be/internal/config"
	"preset-teaching-be/internal/model"
	"preset-teaching-be/internal/pkg/logger"
	"preset-teaching-be/internal/server"
	"preset-teaching-be/internal/tracer"
	"preset-teaching-be/pkg/database"
)

func main() {
	cfg := config.Load()
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())

	shutdownTracer := tracer.InitTracer(cfg.App.OtelEnabled, sysLogger)
	defer shutdownTracer(context.Background())

	db, err := database.Open(cfg.Database.Connection, !cfg.IsProduction(), database.DefaultPool)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	if err := database.Migrate(db, &model.Preset{}, &model.TeachingExample{}, &model.TeachingRound{}); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	container, err := bootstrap.NewContainer(db, cfg, sysLogger)
	if err != nil {
		log.Fatalf("Bootstrap failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := container.Start(ctx); err != nil {
		log.Fatalf("Background services failed: %v", err)
	}

	srv := server.New(cfg, container)
	go func() {
		if err := srv.Run(); err != nil {
			sysLogger.Error("SERVER", "Server stopped", map[string]interface{}{"error": err.Error()})
			stop()
		}
	}()

	<-ctx.Done()
	sysLogger.Info("SERVER", "Shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sysLogger.Warn("SERVER", "Shutdown error", map[string]interface{}{"error": err.Error()})
	}
	container.Stop()
}
