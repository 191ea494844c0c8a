package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campushq/classroom-api/api/swagger"
	"github.com/campushq/classroom-api/internal/handler"
	"github.com/campushq/classroom-api/internal/middleware"
	"github.com/campushq/classroom-api/internal/models"
	"github.com/campushq/classroom-api/internal/repository"
	"github.com/campushq/classroom-api/internal/service"
	"github.com/campushq/classroom-api/pkg/cache"
	"github.com/campushq/classroom-api/pkg/config"
	"github.com/campushq/classroom-api/pkg/database"
	"github.com/campushq/classroom-api/pkg/logger"
	corsmiddleware "github.com/campushq/classroom-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campushq/classroom-api/pkg/middleware/requestid"
	"github.com/campushq/classroom-api/pkg/storage"
)

// @title Classroom API
// @version 0.1.0
// @description Course enrollment, live lectures, doubts and resources
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	// Repositories.
	studentRepo := repository.NewStudentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	lectureRepo := repository.NewLectureRepository(db)
	doubtRepo := repository.NewDoubtRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	exportRepo := repository.NewExportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, cfg.Cache, metricsSvc, logr)
	authSvc := service.NewAuthService(studentRepo, teacherRepo, tokenRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	courseSvc := service.NewCourseService(courseRepo, studentRepo, nil, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, courseRepo, courseRepo, studentRepo, nil, logr)
	lectureSvc := service.NewLectureService(lectureRepo, courseRepo, cacheSvc, nil, logr)
	doubtSvc := service.NewDoubtService(doubtRepo, courseRepo, enrollmentRepo, lectureRepo, resourceRepo, studentRepo, teacherRepo, nil, logr)
	resourceSvc := service.NewResourceService(resourceRepo, courseRepo, enrollmentRepo, lectureRepo, cacheSvc, nil, logr)

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(exportRepo, courseRepo, enrollmentRepo, doubtRepo, store, signer, cfg.Exports, metricsSvc, logr)
		exportSvc.Start(ctx)
		defer exportSvc.Stop()
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	lectureHandler := handler.NewLectureHandler(lectureSvc)
	doubtHandler := handler.NewDoubtHandler(doubtSvc)
	resourceHandler := handler.NewResourceHandler(resourceSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register/student", authHandler.RegisterStudent)
	auth.POST("/register/teacher", authHandler.RegisterTeacher)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	teacherOnly := middleware.RequireRoles(models.RoleTeacher)
	studentOnly := middleware.RequireRoles(models.RoleStudent)

	authed.POST("/courses", teacherOnly, courseHandler.Create)
	authed.GET("/courses", teacherOnly, courseHandler.ListOwned)
	authed.GET("/courses/:code", courseHandler.Get)

	authed.GET("/enrollments/available", studentOnly, enrollmentHandler.ListAvailable)
	authed.POST("/courses/:code/enrollments", studentOnly, enrollmentHandler.Request)
	authed.GET("/courses/:code/enrollments/pending", teacherOnly, enrollmentHandler.ListPending)
	authed.POST("/courses/:code/enrollments/:studentId/approve", teacherOnly, enrollmentHandler.Approve)
	authed.POST("/courses/:code/enrollments/:studentId/reject", teacherOnly, enrollmentHandler.Reject)

	authed.POST("/lectures", teacherOnly, lectureHandler.Create)
	authed.GET("/lectures/live", teacherOnly, lectureHandler.ListLive)
	authed.POST("/lectures/:id/join", studentOnly, lectureHandler.Join)
	authed.POST("/lectures/:id/end", teacherOnly, lectureHandler.End)
	authed.GET("/courses/:code/lectures", lectureHandler.ListForCourse)

	authed.POST("/doubts", studentOnly, doubtHandler.Ask)
	authed.POST("/doubts/:id/answers", doubtHandler.Answer)
	authed.POST("/doubts/:id/upvote", studentOnly, doubtHandler.Upvote)
	authed.POST("/doubts/:id/important", teacherOnly, doubtHandler.MarkImportant)
	authed.GET("/courses/:code/doubts", doubtHandler.ListForCourse)

	authed.POST("/courses/:code/resources", resourceHandler.Add)
	authed.GET("/courses/:code/resources", resourceHandler.ListForCourse)
	authed.GET("/courses/:code/resources/search", resourceHandler.Search)
	authed.GET("/lectures/:id/resources", resourceHandler.ListForLecture)
	authed.PUT("/resources/:id", resourceHandler.Update)
	authed.DELETE("/resources/:id", resourceHandler.Delete)

	var scheduler *cron.Cron
	if exportSvc != nil {
		exportHandler := handler.NewExportHandler(exportSvc)
		authed.POST("/courses/:code/exports/roster", teacherOnly, exportHandler.EnqueueRoster)
		authed.POST("/courses/:code/exports/doubt-digest", teacherOnly, exportHandler.EnqueueDoubtDigest)
		authed.GET("/exports", teacherOnly, exportHandler.List)
		authed.GET("/exports/:id", teacherOnly, exportHandler.Get)
		api.GET("/exports/download/:token", exportHandler.Download)

		scheduler = cron.New()
		if _, err := scheduler.AddFunc(cfg.Exports.CleanupSchedule, func() {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := exportSvc.Cleanup(cleanupCtx); err != nil {
				logr.Sugar().Errorw("export cleanup failed", "error", err)
			}
			if deleted, err := tokenRepo.DeleteExpired(cleanupCtx, time.Now().UTC()); err != nil {
				logr.Sugar().Errorw("refresh token cleanup failed", "error", err)
			} else if deleted > 0 {
				logr.Sugar().Infow("expired refresh tokens removed", "count", deleted)
			}
		}); err != nil {
			logr.Sugar().Fatalw("invalid cleanup schedule", "schedule", cfg.Exports.CleanupSchedule, "error", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
	if err := cacheRepo.Close(); err != nil {
		logr.Sugar().Warnw("redis close failed", "error", err)
	}
	logr.Sugar().Infow("server stopped")
}
