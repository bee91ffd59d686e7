package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campusware/atp-api/api/swagger"
	"github.com/campusware/atp-api/internal/handler"
	"github.com/campusware/atp-api/internal/middleware"
	"github.com/campusware/atp-api/internal/models"
	"github.com/campusware/atp-api/internal/repository"
	"github.com/campusware/atp-api/internal/service"
	"github.com/campusware/atp-api/pkg/cache"
	"github.com/campusware/atp-api/pkg/config"
	"github.com/campusware/atp-api/pkg/database"
	"github.com/campusware/atp-api/pkg/logger"
	corsmiddleware "github.com/campusware/atp-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campusware/atp-api/pkg/middleware/requestid"
)

// @title Campus Attendance Platform API
// @version 1.0.0
// @description Lecture scheduling and geofenced attendance capture
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	metricsService := service.NewMetricsService()

	// Redis is optional: with no reachable instance the summary cache
	// degrades to pass-through.
	cacheRepo := repository.NewCacheRepository(nil, logr)
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, summary cache disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close()
		}
	}
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Cache.SummaryTTL, logr, cfg.Cache.Enabled)

	lectureRepo := repository.NewLectureRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	userRepo := repository.NewUserRepository(db)

	authService := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	scheduleService := service.NewScheduleService(lectureRepo, courseRepo, nil, logr)
	attendanceService := service.NewAttendanceService(attendanceRepo, lectureRepo, enrollmentRepo, cacheService, cfg.Geofence.ToleranceDegrees, nil, logr)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, courseRepo, userRepo, nil, logr)

	authHandler := handler.NewAuthHandler(authService)
	lectureHandler := handler.NewLectureHandler(scheduleService)
	attendanceHandler := handler.NewAttendanceHandler(attendanceService)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
	auth.GET("/me", middleware.JWT(authService), authHandler.Me)

	protected := api.Group("")
	protected.Use(middleware.JWT(authService))

	teaching := protected.Group("")
	teaching.Use(middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin))
	teaching.POST("/lectures", lectureHandler.Create)
	teaching.POST("/lectures/conflicts", lectureHandler.CheckConflict)
	teaching.GET("/lectures/board", lectureHandler.Board)
	teaching.GET("/lectures/:id", lectureHandler.Get)
	teaching.PUT("/lectures/:id", lectureHandler.Update)
	teaching.DELETE("/lectures/:id", lectureHandler.Delete)
	teaching.GET("/lectures/:id/attendance", attendanceHandler.LectureRoster)
	teaching.GET("/courses", lectureHandler.Courses)
	teaching.GET("/courses/progress", lectureHandler.CourseProgress)

	student := protected.Group("")
	student.Use(middleware.RequireRoles(models.RoleStudent))
	student.GET("/lectures/today", lectureHandler.TodaysLectures)
	student.POST("/attendance", attendanceHandler.Record)
	student.GET("/attendance/summary", attendanceHandler.Summary)
	student.GET("/attendance/summary/export", attendanceHandler.Export)

	admin := protected.Group("")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	admin.POST("/enrollments", enrollmentHandler.Assign)
	admin.DELETE("/enrollments", enrollmentHandler.Unassign)
	admin.GET("/enrollments/students/:studentId", enrollmentHandler.ListByStudent)
	admin.GET("/enrollments/courses/:courseId", enrollmentHandler.ListByCourse)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
