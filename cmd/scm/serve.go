package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bitfantasy/nimo-scm/internal/cache"
	"github.com/bitfantasy/nimo-scm/internal/config"
	"github.com/bitfantasy/nimo-scm/internal/database"
	"github.com/bitfantasy/nimo-scm/internal/metrics"
	"github.com/bitfantasy/nimo-scm/internal/middleware"
	"github.com/bitfantasy/nimo-scm/internal/scm/handler"
	"github.com/bitfantasy/nimo-scm/internal/scm/repository"
	"github.com/bitfantasy/nimo-scm/internal/scm/service"
	"github.com/bitfantasy/nimo-scm/internal/scm/sse"
	"github.com/bitfantasy/nimo-scm/internal/shared/feishu"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var skipMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Run: func(cmd *cobra.Command, args []string) {
		banner()
		if err := serve(); err != nil {
			log.Fatalf("%v", err)
		}
	},
}

func init() {
	serveCmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not auto-migrate tables on startup")
	rootCmd.AddCommand(serveCmd)
}

func serve() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer zapLogger.Sync()
	zap.ReplaceGlobals(zapLogger)

	zapLogger.Info("Starting nimo-scm service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("db_driver", cfg.Database.Driver),
	)

	// 初始化数据库
	db, err := database.Open(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if !skipMigrate {
		if err := database.Migrate(db); err != nil {
			zapLogger.Fatal("AutoMigrate SCM tables failed", zap.Error(err))
		}
	}

	// 幂等键存储：配置 Redis 时使用 Redis，否则进程内存
	var store cache.Store
	if cfg.Redis.Enabled() {
		rdb := initRedis(cfg.Redis)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			zapLogger.Warn("Redis unavailable, falling back to memory store", zap.Error(err))
			store = cache.NewMemoryStore()
		} else {
			store = cache.NewRedisStore(rdb, "nimo-scm:")
			defer rdb.Close()
		}
		cancel()
	} else {
		store = cache.NewMemoryStore()
	}

	repos := repository.NewRepositories(db)
	reports, err := repository.NewReportRepository(db)
	if err != nil {
		zapLogger.Fatal("Failed to init report repository", zap.Error(err))
	}

	workflowSvc := service.NewWorkflowService(repos, reports, service.Options{
		CancelReasonMinLength: cfg.Workflow.CancelReasonMinLength,
	})

	collector := metrics.NewCollector(cfg.Metrics.Namespace)
	workflowSvc.SetMetrics(collector)

	hub := sse.NewHub()
	publishers := service.Publishers{hub}
	var notifier *feishu.StoreNotifier
	if cfg.Feishu.Enabled() {
		client := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret, feishu.WithTimeout(cfg.Feishu.Timeout))
		notifier = feishu.NewStoreNotifier(client, cfg.Feishu.StoreChatID, cfg.Feishu.Timeout)
		publishers = append(publishers, notifier)
		zapLogger.Info("Feishu store notifications enabled", zap.String("chat_id", cfg.Feishu.StoreChatID))
	}
	workflowSvc.SetPublisher(publishers)

	if minioClient := initMinIO(cfg.MinIO, zapLogger); minioClient != nil {
		workflowSvc.SetStorage(minioClient, cfg.MinIO.Bucket)
	}

	handlers := handler.NewHandlers(workflowSvc, hub)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/events"})))
	if cfg.Metrics.Enabled {
		router.Use(collector.Middleware())
	}

	registerRoutes(router, handlers, db, store, collector, cfg)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 0, // SSE 长连接
	}

	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	if notifier != nil {
		notifier.Wait()
	}

	zapLogger.Info("Server exited")
	return nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// initMinIO 未配置或连接失败时返回 nil，附件上传将不可用
func initMinIO(cfg config.MinIOConfig, zapLogger *zap.Logger) *minio.Client {
	if cfg.Endpoint == "" {
		return nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		zapLogger.Warn("MinIO client init failed, attachments disabled", zap.Error(err))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		zapLogger.Warn("MinIO bucket check failed", zap.String("bucket", cfg.Bucket), zap.Error(err))
		return client
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			zapLogger.Warn("MinIO make bucket failed", zap.String("bucket", cfg.Bucket), zap.Error(err))
		}
	}
	return client
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, db *gorm.DB, store cache.Store, collector *metrics.Collector, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	if cfg.Metrics.Enabled {
		r.GET("/metrics", gin.WrapH(collector.Handler()))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": 40400, "message": "Not found"})
	})

	// API v1
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(cfg.JWT.Secret))
	v1.Use(middleware.Idempotency(store, cfg.Workflow.IdempotencyTTL))
	handler.RegisterRoutes(v1, h)
}
