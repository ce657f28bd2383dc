package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/david/feedback-triage/internal/ai"
	"github.com/david/feedback-triage/internal/auth"
	"github.com/david/feedback-triage/internal/cache"
	"github.com/david/feedback-triage/internal/config"
	"github.com/david/feedback-triage/internal/db"
	"github.com/david/feedback-triage/internal/feedback"
	"github.com/david/feedback-triage/internal/ingest"
	"github.com/david/feedback-triage/internal/logger"
)

const maxUploadBytes = 20 << 20

type Server struct {
	Store       *db.Store
	AuthService *auth.Service
	Tokens      *auth.Tokens
	Echo        *echo.Echo
	AI          ai.Generator
	Clusterer   *ai.Clusterer
	Composer    *feedback.Composer
	Importer    *ingest.Importer
	Cache       cache.Cache
	Config      *config.Config
	Log         *logger.Logger
}

// Deps are the collaborators a Server is built from. Cache may be nil.
type Deps struct {
	Config *config.Config
	Log    *logger.Logger
	Store  *db.Store
	Tokens *auth.Tokens
	AI     ai.Generator
	Cache  cache.Cache
}

func NewServer(d Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()
	e.HTTPErrorHandler = errorHandler(d.Log)

	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware(d.Config.ServiceName))
	e.Use(requestLogger(d.Log))
	e.Use(metricsMiddleware)
	e.Use(middleware.BodyLimit("25M"))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: d.Config.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s := &Server{
		Store:       d.Store,
		AuthService: auth.NewService(d.Store.Pool(), d.Tokens),
		Tokens:      d.Tokens,
		Echo:        e,
		AI:          d.AI,
		Clusterer:   ai.NewClusterer(d.AI, d.Log),
		Importer:    ingest.NewImporter(d.Store, d.Log, d.Config.ImportChunkSize),
		Cache:       d.Cache,
		Config:      d.Config,
		Log:         d.Log,
	}
	s.Composer = feedback.NewComposer(d.Store, productSnapshot{s})

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	s.Echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.Echo.Group("/api/v1")
	api.POST("/auth/signup", s.handleSignup)
	api.POST("/auth/login", s.handleLogin)

	protected := api.Group("")
	protected.Use(auth.Middleware(s.Tokens))

	protected.GET("/stats", s.handleGetStats)

	protected.GET("/dimensions", s.handleListDimensions)
	protected.POST("/dimensions", s.handleCreateDimension)
	protected.PATCH("/dimensions/:id", s.handleUpdateDimension)
	protected.DELETE("/dimensions/:id", s.handleDeleteDimension)

	protected.GET("/feedback", s.handleListFeedback)
	protected.POST("/feedback", s.handleCreateFeedback)
	protected.POST("/feedback/bulk/reject", s.handleBulkRejectFeedback)
	protected.POST("/feedback/bulk/assign", s.handleBulkAssignFeedback)
	protected.GET("/feedback/:id", s.handleGetFeedback)
	protected.PATCH("/feedback/:id", s.handleUpdateFeedback)
	protected.POST("/feedback/:id/opportunities", s.handleLinkFeedback)
	protected.DELETE("/feedback/:id/opportunities/:opportunityId", s.handleUnlinkFeedback)

	protected.GET("/opportunities", s.handleListOpportunities)
	protected.POST("/opportunities", s.handleCreateOpportunity)
	protected.POST("/opportunities/bulk/delete", s.handleBulkDeleteOpportunities)
	protected.GET("/opportunities/:id", s.handleGetOpportunity)
	protected.PATCH("/opportunities/:id", s.handleUpdateOpportunity)
	protected.PATCH("/opportunities/:id/scores", s.handleUpdateOpportunityScores)
	protected.DELETE("/opportunities/:id", s.handleDeleteOpportunity)
	protected.POST("/opportunities/:id/merge", s.handleMergeOpportunity)
	protected.POST("/opportunities/:id/report", s.handleOpportunityReport)

	protected.GET("/features", s.handleListFeatures)
	protected.POST("/features", s.handleCreateFeature)
	protected.GET("/features/:id", s.handleGetFeature)
	protected.PATCH("/features/:id", s.handleUpdateFeature)
	protected.PATCH("/features/:id/scores", s.handleUpdateFeatureScores)
	protected.DELETE("/features/:id", s.handleDeleteFeature)

	protected.GET("/products", s.handleListProducts)
	protected.GET("/products/tree", s.handleProductTree)
	protected.POST("/products", s.handleCreateProduct)
	protected.GET("/products/:id", s.handleGetProduct)
	protected.PATCH("/products/:id", s.handleUpdateProduct)
	protected.DELETE("/products/:id", s.handleDeleteProduct)

	protected.POST("/imports/preview", s.handlePreviewImport)
	protected.POST("/imports", s.handleCreateImport)
	protected.GET("/imports", s.handleListImports)
	protected.DELETE("/imports/:id", s.handleDeleteImport)

	protected.POST("/cluster/analyze", s.handleAnalyzeClusters)
	protected.POST("/cluster/apply", s.handleApplyClusters)
	protected.GET("/settings/cluster-prompt", s.handleGetClusterPrompt)
	protected.PUT("/settings/cluster-prompt", s.handlePutClusterPrompt)

	protected.GET("/roadmap", s.handleRoadmap)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleGetStats(c echo.Context) error {
	stats, err := s.Store.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) Start(port string) error {
	s.Log.Info("server starting", "port", port)
	return s.Echo.Start(":" + port)
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return s.Echo.Shutdown(ctx)
}
