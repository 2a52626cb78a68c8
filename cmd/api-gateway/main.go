package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/grade-insight-api/api/swagger"
	"github.com/noah-isme/grade-insight-api/internal/handler"
	"github.com/noah-isme/grade-insight-api/internal/middleware"
	"github.com/noah-isme/grade-insight-api/internal/models"
	"github.com/noah-isme/grade-insight-api/internal/repository"
	"github.com/noah-isme/grade-insight-api/internal/service"
	"github.com/noah-isme/grade-insight-api/pkg/cache"
	"github.com/noah-isme/grade-insight-api/pkg/config"
	"github.com/noah-isme/grade-insight-api/pkg/database"
	"github.com/noah-isme/grade-insight-api/pkg/jobs"
	"github.com/noah-isme/grade-insight-api/pkg/llm"
	"github.com/noah-isme/grade-insight-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/grade-insight-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/grade-insight-api/pkg/middleware/requestid"
)

// @title Grade Insight API
// @version 1.0.0
// @description Analytics and AI-assisted reporting for class score data
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	quotaRepo := repository.NewQuotaRepository(redisClient, logr)
	scoreRepo := repository.NewScoreRepository(db)
	reportRepo := repository.NewReportRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	classRepo := repository.NewClassRepository(db)
	userRepo := repository.NewUserRepository(db)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Analytics.CacheTTL, logr)
	quotaSvc := service.NewQuotaService(quotaRepo, cfg.AI.DailyQuota, metricsSvc, logr)

	llmClient := llm.NewClient(llm.Config{
		BaseURL:        cfg.AI.BaseURL,
		APIKey:         cfg.AI.APIKey,
		DefaultModel:   cfg.AI.DefaultModel,
		MaxRetries:     cfg.AI.MaxRetries,
		RetryBaseDelay: cfg.AI.RetryBaseDelay,
		Timeout:        cfg.AI.RequestTimeout,
	}, quotaSvc, quotaSvc, logr)

	analyticsSvc := service.NewAnalyticsService(scoreRepo, classRepo, cacheSvc, metricsSvc, cfg.Analytics.CacheTTL, logr)

	var reportSvc *service.ReportService
	reportQueue := jobs.NewQueue("report-persist", func(ctx context.Context, job jobs.Job) error {
		return reportSvc.HandlePersistJob(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		RetryDelay: cfg.Reports.WorkerRetryDelay,
		Logger:     logr,
	})
	reportSvc = service.NewReportService(reportRepo, scoreRepo, classRepo, llmClient, reportQueue, metricsSvc, service.ReportServiceConfig{
		Model:           cfg.Reports.Model,
		FailureSentinel: cfg.Reports.FailureSentinel,
	}, logr)
	reportQueue.Start(context.Background())

	commentSvc := service.NewCommentService(commentRepo, scoreRepo, classRepo, llmClient, cacheSvc, metricsSvc, service.CommentServiceConfig{
		Model:    cfg.Comments.Model,
		CacheTTL: cfg.Comments.CacheTTL,
	}, logr)

	chatModel := cfg.AI.ChatModel
	if chatModel == "" {
		chatModel = cfg.AI.DefaultModel
	}
	chatSvc := service.NewChatService(llmClient, metricsSvc, service.ChatServiceConfig{Model: chatModel}, logr)

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     "grade-insight-api",
	})

	authHandler := handler.NewAuthHandler(authSvc)
	analysisHandler := handler.NewAnalysisHandler(analyticsSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	aiHandler := handler.NewAIHandler(commentSvc, chatSvc, quotaSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := r.Group("/api/v1")
	v1.POST("/auth/login", authHandler.Login)

	protected := v1.Group("")
	protected.Use(middleware.JWT(authSvc))

	analysis := protected.Group("/analysis")
	analysis.GET("/exams/:examId/quality", analysisHandler.ExamQuality)
	analysis.GET("/students/:studentId/profile", analysisHandler.StudentProfile)

	classScoped := analysis.Group("/classes/:classId")
	classScoped.Use(middleware.ClassAccess(classRepo))
	classScoped.GET("/focus-groups", analysisHandler.FocusGroups)
	classScoped.GET("/exams/:examId/distribution", analysisHandler.Distribution)
	classScoped.POST("/exams/:examId/report", reportHandler.Generate)
	classScoped.POST("/exams/:examId/report/stream", reportHandler.Stream)
	classScoped.GET("/exams/:examId/report/pdf", reportHandler.PDF)

	ai := protected.Group("/ai")
	ai.POST("/comments/students/:studentId", aiHandler.GenerateComment)
	ai.GET("/comments/students/:studentId", aiHandler.LatestComment)
	ai.POST("/chat/stream", aiHandler.ChatStream)
	ai.GET("/usage", aiHandler.Usage)
	ai.GET("/models/quota", middleware.RequireRoles(models.RoleAdmin), aiHandler.ModelQuotas)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("server shutdown incomplete", "error", err)
	}
	reportQueue.Drain(10 * time.Second)
}
