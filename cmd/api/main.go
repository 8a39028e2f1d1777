package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jarcode/internal/common/cache"
	"jarcode/internal/common/db"
	commonmw "jarcode/internal/common/http/middleware"
	"jarcode/internal/common/mq"
	"jarcode/internal/common/storage"
	"jarcode/internal/notify"
	problemcontroller "jarcode/internal/problem/controller"
	problemrepo "jarcode/internal/problem/repository"
	submissioncontroller "jarcode/internal/submission/controller"
	submissionrepo "jarcode/internal/submission/repository"
	submissionservice "jarcode/internal/submission/service"
	usercontroller "jarcode/internal/user/controller"
	usermw "jarcode/internal/user/middleware"
	userrepo "jarcode/internal/user/repository"
	userservice "jarcode/internal/user/service"
	"jarcode/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/api.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	mysqlDB, err := db.NewMySQLWithConfig(&appCfg.Database)
	if err != nil {
		logger.Error(context.Background(), "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mysqlDB.Close()
	}()

	redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
	if err != nil {
		logger.Error(context.Background(), "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisCache.Close()
	}()

	mqClient, err := mq.NewKafkaQueue(appCfg.Kafka)
	if err != nil {
		logger.Error(context.Background(), "init kafka failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mqClient.Close()
	}()

	var objStorage storage.ObjectStorage
	if appCfg.MinIO.Endpoint != "" {
		minioStorage, err := storage.NewMinIOStorage(appCfg.MinIO)
		if err != nil {
			logger.Error(context.Background(), "init minio failed", zap.Error(err))
			return
		}
		objStorage = minioStorage
	}

	userRepo := userrepo.NewUserRepository(mysqlDB)
	authService, err := userservice.NewAuthService(userRepo, userservice.AuthServiceConfig{
		JWTSecret: []byte(appCfg.Auth.JWTSecret),
		JWTIssuer: appCfg.Auth.JWTIssuer,
		TokenTTL:  appCfg.Auth.TokenTTL,
	})
	if err != nil {
		logger.Error(context.Background(), "init auth service failed", zap.Error(err))
		return
	}

	problemRepo := problemrepo.NewProblemRepositoryWithTTL(mysqlDB, redisCache,
		appCfg.Submit.ProblemCacheTTL, appCfg.Submit.ProblemEmptyTTL)
	submissionRepo := submissionrepo.NewSubmissionRepository(mysqlDB)
	statusRepo, err := submissionrepo.NewStatusRepositoryWithTTL(redisCache, appCfg.Submit.StatusTTL)
	if err != nil {
		logger.Error(context.Background(), "init status repository failed", zap.Error(err))
		return
	}

	submitService, err := submissionservice.NewSubmitService(
		mysqlDB, submissionRepo, problemRepo, redisCache, mqClient, objStorage, statusRepo,
		submissionservice.SubmitServiceConfig{
			Topic:            appCfg.Submit.Topic,
			MaxCodeBytes:     appCfg.Submit.MaxCodeBytes,
			RateLimit:        appCfg.Submit.RateLimit,
			RateWindow:       appCfg.Submit.RateWindow,
			ArchiveBucket:    appCfg.Submit.ArchiveBucket,
			ArchiveKeyPrefix: appCfg.Submit.ArchiveKeyPrefix,
		})
	if err != nil {
		logger.Error(context.Background(), "init submit service failed", zap.Error(err))
		return
	}

	hub := notify.NewHub()
	forwarder, err := notify.NewRedisForwarder(redisCache.Client(), hub)
	if err != nil {
		logger.Error(context.Background(), "init notification forwarder failed", zap.Error(err))
		return
	}
	forwardCtx, stopForwarder := context.WithCancel(context.Background())
	defer stopForwarder()
	go func() {
		if err := forwarder.Run(forwardCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(forwardCtx, "notification forwarder stopped", zap.Error(err))
		}
	}()

	httpServer := buildHTTPServer(appCfg.Server, authService, problemRepo, submitService, hub)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "api http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
}

func buildHTTPServer(
	cfg ServerConfig,
	authService *userservice.AuthService,
	problems problemrepo.ProblemRepository,
	submitService *submissionservice.SubmitService,
	hub *notify.Hub,
) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContext())
	router.Use(requestLogger())

	authController := usercontroller.NewAuthController(authService)
	user := router.Group("/api/v1/user")
	user.POST("/register", authController.Register)
	user.POST("/login", authController.Login)

	problemController := problemcontroller.NewProblemController(problems)
	problemRoutes := router.Group("/api/v1/problems")
	problemRoutes.GET("", problemController.List)
	problemRoutes.GET("/:id", problemController.Get)

	submissionController := submissioncontroller.NewSubmissionController(submitService)
	submissions := router.Group("/api/v1/submissions")
	submissions.Use(usermw.RequireAuth(authService))
	submissions.POST("", submissionController.Create)
	submissions.GET("", submissionController.List)
	submissions.GET("/:id", submissionController.Get)
	submissions.GET("/:id/status", submissionController.Status)

	notifyHandler := notify.NewHandler(hub, authService)
	router.GET("/ws/submissions", notifyHandler.Serve)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
