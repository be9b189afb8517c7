package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/storesmith/storesmith/internal/config"
	"github.com/storesmith/storesmith/internal/service"
	"github.com/storesmith/storesmith/internal/service/catalog"
	"github.com/storesmith/storesmith/internal/service/generator"
	"github.com/storesmith/storesmith/internal/service/processor"
)

type Server struct {
	Config *config.Config
	DB     *gorm.DB
	Router *gin.Engine
	Logger *zap.Logger
	Server *http.Server

	// Services
	Tenants   *service.TenantService
	Credits   *service.CreditService
	Jobs      *service.JobService
	Publish   *service.PublishService
	Campaigns *service.CampaignService
	Bridge    *service.GenerationBridge
	Workers   *service.WorkerPool
	Scheduler *service.Scheduler
	Stale     *service.StaleDetector
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	// Set gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	db, err := service.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// External collaborators
	gen := generator.NewClient(&cfg.Generator, logger)
	pusher := catalog.NewClient(&cfg.Catalog, logger)

	// Kind processors
	processors := processor.NewManager(logger)
	for _, p := range []processor.Processor{
		processor.NewTextOptimizeProcessor(gen, logger),
		processor.NewImageOptimizeProcessor(gen, logger),
		processor.NewBlogPostProcessor(gen, logger),
	} {
		if err := processors.Register(p); err != nil {
			return nil, fmt.Errorf("failed to register processor: %w", err)
		}
	}

	// Core services
	tenants := service.NewTenantService(db, logger, cfg.Billing.CycleDays)
	credits := service.NewCreditService(db, logger, cfg.Billing.CycleDays)
	jobs := service.NewJobService(db, logger, credits, &cfg.Jobs)
	publish := service.NewPublishService(db, logger, pusher)
	campaigns := service.NewCampaignService(db, logger)
	bridge := service.NewGenerationBridge(db, logger, jobs, processors, &cfg.Bridge)
	workers := service.NewWorkerPool(jobs, bridge, processors, logger, &cfg.Worker)
	scheduler := service.NewScheduler(&cfg.Scheduler, logger, db, jobs, credits)
	stale, err := service.NewStaleDetector(jobs, logger, &cfg.Worker)
	if err != nil {
		return nil, fmt.Errorf("failed to create stale detector: %w", err)
	}

	// Create router
	router := gin.New()

	srv := &Server{
		Config:    cfg,
		DB:        db,
		Router:    router,
		Logger:    logger,
		Tenants:   tenants,
		Credits:   credits,
		Jobs:      jobs,
		Publish:   publish,
		Campaigns: campaigns,
		Bridge:    bridge,
		Workers:   workers,
		Scheduler: scheduler,
		Stale:     stale,
	}

	// Setup middleware and routes
	srv.setupMiddleware()
	srv.setupRoutes()

	return srv, nil
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.Router.Use(gin.Recovery())

	// Logger middleware
	s.Router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	// CORS middleware
	s.Router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})
}

func (s *Server) setupRoutes() {
	// Health check
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	// Prometheus metrics
	s.Router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := s.Router.Group("/api/v1")
	{
		tenants := api.Group("/tenants")
		{
			tenants.POST("", s.handleCreateTenant)
			tenants.GET("/:id/credits", s.handleGetCredits)
		}

		jobs := api.Group("/jobs")
		{
			jobs.POST("", s.handleCreateJob)
			jobs.GET("", s.handleListJobs)
			jobs.GET("/:id", s.handleGetJob)
			jobs.GET("/:id/items", s.handleListJobItems)
			jobs.POST("/:id/cancel", s.handleCancelJob)
		}

		items := api.Group("/items")
		{
			items.POST("/:id/publish", s.handlePublishItem)
		}

		billing := api.Group("/billing")
		{
			billing.POST("/events", s.handleBillingEvent)
		}

		campaigns := api.Group("/campaigns")
		{
			campaigns.POST("", s.handleCreateCampaign)
			campaigns.GET("", s.handleListCampaigns)
			campaigns.DELETE("/:id", s.handleDeleteCampaign)
		}
	}
}

func (s *Server) Start(ctx context.Context) error {
	// Start background components
	if err := s.Workers.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}
	if err := s.Bridge.Start(ctx); err != nil {
		return fmt.Errorf("failed to start generation bridge: %w", err)
	}
	if err := s.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	s.Stale.Start(ctx)

	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)

	s.Server = &http.Server{
		Addr:    addr,
		Handler: s.Router,
	}

	s.Logger.Info("Starting HTTP server", zap.String("addr", addr))

	if s.Config.Server.CertFile != "" && s.Config.Server.KeyFile != "" {
		return s.Server.ListenAndServeTLS(s.Config.Server.CertFile, s.Config.Server.KeyFile)
	}

	return s.Server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	// Stop background components first
	s.Scheduler.Stop()
	s.Bridge.Stop()
	s.Stale.Stop()
	s.Workers.Stop()

	if s.Server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.Server.Shutdown(shutdownCtx)
}
