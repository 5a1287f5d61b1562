package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "storefront/docs"
	_ "storefront/internal/domain/audit"
	_ "storefront/internal/domain/common"
	_ "storefront/internal/domain/inventory"
	_ "storefront/internal/domain/order"
	_ "storefront/internal/domain/pagomovil"
	_ "storefront/internal/domain/wallet"
	"storefront/internal/pkg/config"
	"storefront/internal/pkg/middleware"
	"storefront/internal/pkg/notify"
	"storefront/internal/pkg/registry"
	"storefront/pkg/database"
	"storefront/pkg/logger"
	"storefront/pkg/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// settingsTTL 商店参数的最长缓存时间
const settingsTTL = 5 * time.Minute

// @title Storefront API
// @version 1.0
// @description 订单履约、钱包与 Pago Móvil 支付核验服务
// @BasePath /
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
func main() {
	// .env 仅用于本地开发
	_ = godotenv.Load()

	v, cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zlog, err := logger.Init(cfg.App.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider := config.NewViperProvider(v, cfg, settingsTTL, func(err error) {
		zlog.Warn("reload settings failed, keeping previous snapshot", zap.Error(err))
	})

	// 1. 基础设施
	db, err := database.InitDatabase(cfg.Database, cfg.App.Debug, zlog)
	if err != nil {
		zlog.Fatal("database init failed", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		zlog.Fatal("database handle", zap.Error(err))
	}
	defer sqlDB.Close()

	var rdb *redis.Client
	if rdb, err = database.InitRedis(ctx, cfg.Redis); err != nil {
		// 敏感接口限流回落到进程内
		zlog.Warn("redis unavailable, using local rate limiting", zap.Error(err))
		rdb = nil
	} else {
		defer rdb.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetricsCollector(reg)

	var notifier notify.Dispatcher
	if cfg.Kafka.Enabled {
		kd := notify.NewKafkaDispatcher(
			notify.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.NotificationTopic),
			cfg.Kafka.Workers,
			cfg.Kafka.QueueSize,
			m,
			zlog.Named("notify"),
		)
		kd.Start()
		defer func() {
			if err := kd.Close(); err != nil {
				zlog.Error("close kafka dispatcher", zap.Error(err))
			}
		}()
		notifier = kd
	} else {
		notifier = notify.NewLogDispatcher(zlog.Named("notify"))
	}

	// 2. 路由与中间件
	r := gin.New()
	r.Use(
		middleware.TraceMiddleware(),
		middleware.LoggerMiddleware(),
		middleware.RecoveryMiddleware(),
		middleware.SecurityHeadersMiddleware(),
		cors.New(corsConfig(cfg.Server.AllowedOrigins)),
		m.Middleware(),
		middleware.RateLimitMiddleware(middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimit.GlobalRPS), cfg.RateLimit.GlobalBurst)),
		requestTimeout(cfg.Server.RequestTimeout),
	)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	if cfg.App.Env != "prod" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// 3. 模块初始化
	err = registry.InitModules(&registry.ModuleContext{
		Ctx:        ctx,
		DB:         db,
		SQLX:       sqlx.NewDb(sqlDB, "postgres"),
		Redis:      rdb,
		Router:     r,
		Config:     provider,
		Transactor: database.NewTransactor(db, cfg.Database.TxRetries),
		Notifier:   notifier,
		Metrics:    m,
		Logger:     zlog,
		Auth:       middleware.AuthMiddleware(cfg.JWT.Secret),
		Sensitive: middleware.NewSensitiveRateLimiter(
			rdb,
			cfg.RateLimit.SensitiveLimit,
			cfg.RateLimit.SensitiveWindow,
			zlog.Named("ratelimit"),
		),
	})
	if err != nil {
		zlog.Fatal("module init failed", zap.Error(err))
	}

	go reportDBStats(ctx, sqlDB, m)

	// 4. 启动与优雅退出
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info("server started", zap.String("port", cfg.Server.Port), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server forced to shutdown", zap.Error(err))
	}
	zlog.Info("server exited")
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: len(origins) > 0,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

// requestTimeout 为每个请求设置截止时间，银行接口等下游调用随之取消
func requestTimeout(d time.Duration) gin.HandlerFunc {
	if d <= 0 {
		d = 30 * time.Second
	}
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func reportDBStats(ctx context.Context, sqlDB *sql.DB, m *metrics.MetricsCollector) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.UpdateDBConnections(sqlDB.Stats())
		}
	}
}
