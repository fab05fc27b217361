package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vk/flowgrid/internal/coordinator"
	"github.com/vk/flowgrid/internal/ctxlog"
)

// newRouter builds the status server's routes: /health for liveness and
// /status for the coordinator's run state.
func (a *App) newRouter(status func() coordinator.Status) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		c.Next()
		a.logger.Debug("Status server request.", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "remote_addr", c.ClientIP())
	})

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK\n")
	})
	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, status())
	})
	return r
}

// startHealthcheckServer runs the status server in the background.
func (a *App) startHealthcheckServer(ctx context.Context, status func() coordinator.Status) {
	logger := ctxlog.FromContext(ctx)
	addr := fmt.Sprintf(":%d", a.config.HealthcheckPort)
	a.httpServer = &http.Server{
		Addr:              addr,
		Handler:           a.newRouter(status),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("🩺 Health check server starting", "address", fmt.Sprintf("http://localhost%s/health", addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health check server failed unexpectedly", "error", err)
		}
	}()
}

func (a *App) closeHealthcheckServer(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	if a.httpServer == nil {
		logger.Debug("Health check server was not running.")
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	logger.Info("🩺 Shutting down health check server...")
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Health check server shutdown failed", "error", err)
		return err
	}
	a.httpServer = nil
	logger.Debug("Health check server shut down gracefully.")
	return nil
}
