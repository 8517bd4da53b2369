/*
 * Copyright 2025 Cong Wang
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package server is the REST transport over the registry engine. The engine
// never depends on this package.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/artifact-registry/registryd/internal/config"
	"github.com/artifact-registry/registryd/internal/logging"
	"github.com/artifact-registry/registryd/internal/middleware"
	"github.com/artifact-registry/registryd/internal/provider"
	"github.com/artifact-registry/registryd/internal/registry"
	"github.com/artifact-registry/registryd/internal/storage"
)

// Server represents the registry HTTP server
type Server struct {
	config     *config.Config
	httpServer *http.Server
	router     *gin.Engine
	backend    storage.Backend
	engine     *registry.Engine
	logger     *logging.Logger
}

// New creates a new registry server
func New(cfg *config.Config) (*Server, error) {
	logger := logging.NewLogger(cfg.Logging)

	backend, err := storage.NewBackend(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage backend: %w", err)
	}

	engine := registry.NewEngine(
		backend,
		provider.NewDefaultFactory(),
		registry.NewStaticIdentity(cfg.Identity.Principal),
		logger,
	)

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	server := &Server{
		config:  cfg,
		router:  router,
		backend: backend,
		engine:  engine,
		logger:  logger.WithComponent("server"),
	}

	server.setupMiddleware()
	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return server, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	if s.config.TLS.Enabled {
		return s.httpServer.ListenAndServeTLS(s.config.TLS.CertFile, s.config.TLS.KeyFile)
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	return s.backend.Close()
}

// GetRouter returns the Gin router for testing purposes
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.Logger(s.config.Logging))
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestSizeLimit(s.config.Limits.MaxContentSize))
	s.router.Use(middleware.SecurityHeaders())
}

// setupRoutes configures routes for the server
func (s *Server) setupRoutes() {
	server := s

	// Health check endpoints
	server.router.GET("/health", func(c *gin.Context) { server.handleHealth(c) })
	server.router.GET("/ready", func(c *gin.Context) { server.handleReady(c) })

	v2 := server.router.Group("/apis/registry/v2")
	{
		// Artifact id listing across groups
		v2.GET("/artifacts", server.withRequestLogging(func(c *gin.Context) { server.handleListArtifactIDs(c) }))

		groups := v2.Group("/groups/:groupId")
		{
			groups.POST("/artifacts", server.withRequestLogging(func(c *gin.Context) { server.handleCreateArtifact(c) }))
			groups.DELETE("/artifacts", server.withRequestLogging(func(c *gin.Context) { server.handleDeleteGroupArtifacts(c) }))

			artifact := groups.Group("/artifacts/:artifactId")
			{
				artifact.GET("", server.withRequestLogging(func(c *gin.Context) { server.handleGetArtifact(c) }))
				artifact.PUT("", server.withRequestLogging(func(c *gin.Context) { server.handleUpdateArtifact(c) }))
				artifact.DELETE("", server.withRequestLogging(func(c *gin.Context) { server.handleDeleteArtifact(c) }))

				artifact.GET("/meta", server.withRequestLogging(func(c *gin.Context) { server.handleGetArtifactMetaData(c) }))
				artifact.PUT("/meta", server.withRequestLogging(func(c *gin.Context) { server.handleUpdateArtifactMetaData(c) }))
				artifact.POST("/meta", server.withRequestLogging(func(c *gin.Context) { server.handleGetArtifactMetaDataByContent(c) }))

				artifact.PUT("/state", server.withRequestLogging(func(c *gin.Context) { server.handleUpdateArtifactState(c) }))

				artifact.GET("/versions", server.withRequestLogging(func(c *gin.Context) { server.handleListVersions(c) }))
				artifact.GET("/versions/:version", server.withRequestLogging(func(c *gin.Context) { server.handleGetArtifactVersion(c) }))
				artifact.DELETE("/versions/:version", server.withRequestLogging(func(c *gin.Context) { server.handleDeleteArtifactVersion(c) }))
				artifact.GET("/versions/:version/meta", server.withRequestLogging(func(c *gin.Context) { server.handleGetVersionMetaData(c) }))
				artifact.PUT("/versions/:version/meta", server.withRequestLogging(func(c *gin.Context) { server.handleUpdateVersionMetaData(c) }))
				artifact.DELETE("/versions/:version/meta", server.withRequestLogging(func(c *gin.Context) { server.handleDeleteVersionMetaData(c) }))
				artifact.PUT("/versions/:version/state", server.withRequestLogging(func(c *gin.Context) { server.handleUpdateVersionState(c) }))

				artifact.POST("/rules", server.withRequestLogging(func(c *gin.Context) { server.handleCreateArtifactRule(c) }))
				artifact.GET("/rules", server.withRequestLogging(func(c *gin.Context) { server.handleListArtifactRules(c) }))
				artifact.DELETE("/rules", server.withRequestLogging(func(c *gin.Context) { server.handleDeleteArtifactRules(c) }))
				artifact.GET("/rules/:rule", server.withRequestLogging(func(c *gin.Context) { server.handleGetArtifactRule(c) }))
				artifact.PUT("/rules/:rule", server.withRequestLogging(func(c *gin.Context) { server.handleUpdateArtifactRule(c) }))
				artifact.DELETE("/rules/:rule", server.withRequestLogging(func(c *gin.Context) { server.handleDeleteArtifactRule(c) }))
			}
		}

		// Search
		v2.GET("/search/artifacts", server.withRequestLogging(func(c *gin.Context) { server.handleSearchArtifacts(c) }))

		// Global id lookups
		v2.GET("/ids/globalIds/:globalId", server.withRequestLogging(func(c *gin.Context) { server.handleGetByGlobalID(c) }))
		v2.GET("/ids/globalIds/:globalId/meta", server.withRequestLogging(func(c *gin.Context) { server.handleGetMetaDataByGlobalID(c) }))

		// Global rules
		admin := v2.Group("/admin")
		{
			admin.POST("/rules", server.withRequestLogging(func(c *gin.Context) { server.handleCreateGlobalRule(c) }))
			admin.GET("/rules", server.withRequestLogging(func(c *gin.Context) { server.handleListGlobalRules(c) }))
			admin.DELETE("/rules", server.withRequestLogging(func(c *gin.Context) { server.handleDeleteGlobalRules(c) }))
			admin.GET("/rules/:rule", server.withRequestLogging(func(c *gin.Context) { server.handleGetGlobalRule(c) }))
			admin.PUT("/rules/:rule", server.withRequestLogging(func(c *gin.Context) { server.handleUpdateGlobalRule(c) }))
			admin.DELETE("/rules/:rule", server.withRequestLogging(func(c *gin.Context) { server.handleDeleteGlobalRule(c) }))
		}
	}
}

// handleHealth handles health check requests (liveness probe)
func (s *Server) handleHealth(c *gin.Context) {
	health := s.checkHealth(c.Request.Context())

	statusCode := http.StatusOK
	if !health.Healthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, health)
}

// handleReady handles readiness check requests (readiness probe)
func (s *Server) handleReady(c *gin.Context) {
	readiness := s.checkReadiness(c.Request.Context())

	statusCode := http.StatusOK
	if !readiness.Ready {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, readiness)
}

// HealthStatus represents the health status of the registry
type HealthStatus struct {
	Status     string            `json:"status"`
	Healthy    bool              `json:"healthy"`
	Timestamp  time.Time         `json:"timestamp"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components"`
}

// ReadinessStatus represents the readiness status of the registry
type ReadinessStatus struct {
	Status       string            `json:"status"`
	Ready        bool              `json:"ready"`
	Timestamp    time.Time         `json:"timestamp"`
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies"`
}

// checkHealth performs basic health checks (liveness)
func (s *Server) checkHealth(ctx context.Context) HealthStatus {
	healthy := true
	components := make(map[string]string)

	if s.router == nil {
		healthy = false
		components["router"] = "not_initialized"
	} else {
		components["router"] = "healthy"
	}

	if s.engine == nil {
		healthy = false
		components["registry_engine"] = "not_initialized"
	} else {
		components["registry_engine"] = "healthy"
	}

	if s.backend == nil {
		healthy = false
		components["storage_backend"] = "not_initialized"
	} else if err := s.backend.HealthCheck(ctx); err != nil {
		healthy = false
		components["storage_backend"] = "unhealthy"
	} else {
		components["storage_backend"] = "healthy"
	}

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	return HealthStatus{
		Status:     status,
		Healthy:    healthy,
		Timestamp:  time.Now().UTC(),
		Version:    "2.0",
		Components: components,
	}
}

// checkReadiness performs comprehensive readiness checks
func (s *Server) checkReadiness(ctx context.Context) ReadinessStatus {
	ready := true
	dependencies := make(map[string]string)

	if s.backend != nil {
		if err := s.backend.HealthCheck(ctx); err != nil {
			ready = false
			dependencies["storage_backend"] = "unavailable"
		} else {
			dependencies["storage_backend"] = "ready"
		}
	} else {
		ready = false
		dependencies["storage_backend"] = "not_initialized"
	}

	if s.engine != nil {
		dependencies["registry_engine"] = "ready"
	} else {
		ready = false
		dependencies["registry_engine"] = "not_initialized"
	}

	status := "ready"
	if !ready {
		status = "not_ready"
	}

	return ReadinessStatus{
		Status:       status,
		Ready:        ready,
		Timestamp:    time.Now().UTC(),
		Version:      "2.0",
		Dependencies: dependencies,
	}
}
