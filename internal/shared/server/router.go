package server

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"shoplens-backend/internal/analyze"
	"shoplens-backend/internal/checklist"
	"shoplens-backend/internal/feedback"
	"shoplens-backend/internal/harvest"
	"shoplens-backend/internal/jobs"
	"shoplens-backend/internal/notify"
	"shoplens-backend/internal/reconcile"
	"shoplens-backend/internal/report"
	"shoplens-backend/internal/shared/config"
	"shoplens-backend/internal/shared/metrics"
	"shoplens-backend/internal/shared/server/middleware"
	"shoplens-backend/internal/shared/server/respond"
	"shoplens-backend/internal/shared/storage/db"
)

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(cfg config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.RateLimit(middleware.RateLimitConfig{
			GroupFor: func(c *gin.Context) string {
				if c.Request.Method == http.MethodGet {
					return "READ"
				}
				return "WRITE"
			},
			Rules: map[string]middleware.RateLimitRule{
				"READ":  {Rate: 20, Burst: 40},
				"WRITE": {Rate: 5, Burst: 10},
			},
		}),
	)

	// Dependencies
	var sqlDB *sql.DB
	if cfg.DatabaseURL != "" {
		dbConn, err := db.Connect(context.Background(), cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
		if err != nil {
			log.Printf("failed to connect database, falling back to memory: %v", err)
		} else {
			if err := db.RunMigrations(context.Background(), dbConn); err != nil {
				log.Printf("failed to run migrations, falling back to memory: %v", err)
				dbConn = nil
			}
		}
		sqlDB = dbConn
	}

	var feedbackRepo feedback.Repo
	if sqlDB != nil {
		feedbackRepo = &feedback.PGRepo{DB: sqlDB}
	} else {
		feedbackRepo = feedback.NewMemoryRepo()
	}
	feedbackSvc := &feedback.Service{Repo: feedbackRepo}
	feedbackHandler := feedback.NewHandler(feedbackSvc)

	harvester := harvest.New(harvest.Options{
		UserAgent:   cfg.CrawlUserAgent,
		Timeout:     30 * time.Second,
		RatePerHost: rate.Limit(cfg.CrawlRatePerHost),
		Burst:       2,
	}, feedbackSvc)
	analyzer := analyze.NewAnalyzer()
	evaluator, err := checklist.NewEvaluator()
	if err != nil {
		log.Fatalf("failed to load checklist catalog: %v", err)
	}
	validator := reconcile.NewValidator(cfg.ValidationThreshold)
	renderer := report.NewRenderer()

	var jobRepo jobs.Repo
	if sqlDB != nil {
		jobRepo = &jobs.PGRepo{DB: sqlDB}
	} else {
		jobRepo = jobs.NewMemoryRepo()
	}
	var notifyRepo notify.Repo
	if sqlDB != nil {
		notifyRepo = &notify.PGRepo{DB: sqlDB}
	} else {
		notifyRepo = notify.NewMemoryRepo()
	}
	notifySvc := &notify.Service{Repo: notifyRepo, ScoreAlertThreshold: cfg.ScoreAlertThreshold}
	notifyHandler := notify.NewHandler(notifySvc)

	monitor := jobs.NewMemoryMonitor()
	runner := jobs.NewRunner(jobRepo, harvester, analyzer, evaluator, validator, monitor, cfg.WorkerPoolSize, cfg.JobTimeout)
	runner.Notifier = notifySvc
	jobSvc := &jobs.Service{Repo: jobRepo, Dispatcher: runner}
	jobHandler := jobs.NewHandler(jobSvc, renderer, monitor)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	api.GET("/metrics", metrics.Handler())
	jobHandler.RegisterRoutes(api)
	feedbackHandler.RegisterRoutes(api)
	notifyHandler.RegisterRoutes(api)

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
