package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docuvault/docscan/api/handlers"
	"github.com/docuvault/docscan/api/routes"
	"github.com/docuvault/docscan/config"
	"github.com/docuvault/docscan/internal/service/scan"
	"github.com/docuvault/docscan/pkg/logger"
)

func main() {
	cfgPath := os.Getenv("DOCSCAN_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}

	// init logger
	log, err := logger.NewLogger(
		logger.WithLevel(cfg.Logging.Level),
		logger.WithEncoding(cfg.Logging.Encoding),
		logger.WithOutputPaths(cfg.Logging.OutputPaths),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// init scan service
	scanService, err := scan.GetService(log)
	if err != nil {
		log.Fatal("Failed to get scan service:", logger.Error(err))
	}
	defer scanService.Close()

	// init handlers
	h := handlers.NewHandlers(scanService, log)
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, h)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	// start server
	go func() {
		log.Info("Server starting", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error:", logger.Error(err))
		}
	}()

	// wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown:", logger.Error(err))
	}
}
