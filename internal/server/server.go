package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nulzo/model-hub/internal/analytics"
	"github.com/nulzo/model-hub/internal/config"
	"github.com/nulzo/model-hub/internal/core/services"
	"github.com/nulzo/model-hub/internal/server/middleware"
	"github.com/nulzo/model-hub/internal/server/validator"
	"github.com/nulzo/model-hub/internal/store"
)

type Server struct {
	router   *gin.Engine
	config   *config.Config
	logger   *zap.Logger
	hub      *services.Hub
	ingestor analytics.Ingestor
	repo     store.Repository
}

func New(cfg *config.Config, logger *zap.Logger, hub *services.Hub, ingestor analytics.Ingestor, repo store.Repository) *Server {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	validator.InitValidator()

	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Logger(logger))

	s := &Server{
		router:   engine,
		config:   cfg,
		logger:   logger,
		hub:      hub,
		ingestor: ingestor,
		repo:     repo,
	}

	s.SetupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}
