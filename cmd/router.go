package main

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/angeloszaimis/resilient-client/config"
	"github.com/angeloszaimis/resilient-client/internal/handler"
)

func setupRouter(gateway *handler.Gateway, log *slog.Logger, environment string) *gin.Engine {
	if environment == config.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))

	gateway.Routes(r)
	return r
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debug("Handled request",
			slog.String("from", c.ClientIP()),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)))
	}
}
