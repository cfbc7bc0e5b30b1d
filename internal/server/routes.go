package server

import (
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/nulzo/model-hub/internal/server/middleware"
	v1 "github.com/nulzo/model-hub/internal/server/v1"
)

func (s *Server) SetupRoutes() {
	s.router.Use(otelgin.Middleware("model-hub"))
	s.router.Use(middleware.ErrorHandler(s.logger))

	handler := v1.NewHandler(s.hub, s.ingestor, s.repo, s.logger)

	// Health check stays public
	s.router.GET("/health", handler.Health)

	api := s.router.Group("/v1")
	api.Use(middleware.Auth(s.config.Server.APIKeys))

	limiter := middleware.NewRateLimiter(s.config.RateLimit.RequestsPerSecond, s.config.RateLimit.Burst, s.logger)
	api.Use(limiter.Middleware())
	{
		api.GET("/models", handler.ListModels)
		api.GET("/models/records", handler.ListModelRecords)
		api.POST("/resolve", handler.Resolve)
		api.POST("/generate", handler.Generate)
		api.POST("/images", handler.GenerateImage)
		api.POST("/meshes", handler.GenerateMesh)
		api.POST("/transcriptions", handler.Transcribe)

		api.GET("/stats/daily", handler.DailyStats)
		api.GET("/stats/requests", handler.RecentRequests)
	}
}
