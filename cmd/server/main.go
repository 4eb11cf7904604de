package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hustconnect/config"
	"hustconnect/internal/handler"
	"hustconnect/internal/repository"
	"hustconnect/internal/service"
	"hustconnect/pkg/broker"
	dbPkg "hustconnect/pkg/db"
	"hustconnect/pkg/jwt"
	"hustconnect/pkg/logger"
	"hustconnect/pkg/ratelimit"
	redisPkg "hustconnect/pkg/redis"
	"hustconnect/pkg/tracing"
	"hustconnect/pkg/websocket"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "配置文件路径")
	flag.Parse()

	// 1. 加载配置
	cfg := config.LoadConfig(*configPath)

	// 2. 初始化日志系统
	log := logger.InitLogger(cfg.Log)
	defer log.Sync()

	log.Info("=== HustConnect 启动 ===")
	log.Info("服务器配置信息",
		zap.String("port", cfg.Server.Port),
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("database_host", cfg.Database.Host),
		zap.String("database_name", cfg.Database.Database),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
		zap.String("broker", cfg.Broker.Kind),
		zap.Duration("jwt_expire_time", cfg.JWT.ExpireTime),
		zap.String("log_level", cfg.Log.Level),
	)

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// 2.1 Sentry（可选）
	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.Sentry.Environment}); err != nil {
			log.Warn("Sentry 初始化失败", zap.Error(err))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// 2.2 链路追踪（可选）
	shutdownTracing, err := tracing.Init(rootCtx, cfg.Tracing)
	if err != nil {
		log.Fatal("链路追踪初始化失败", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Warn("关闭链路追踪失败", zap.Error(err))
		}
	}()

	// 3. 初始化数据库连接
	gdb, err := dbPkg.InitDB(cfg.Database)
	if err != nil {
		log.Fatal("数据库连接失败", zap.Error(err))
	}
	defer func() {
		if err := dbPkg.CloseDB(gdb); err != nil {
			log.Error("关闭数据库连接失败", zap.Error(err))
		}
	}()
	log.Info("数据库连接成功")

	// 3.1 自动迁移表结构
	if err := dbPkg.AutoMigrate(gdb); err != nil {
		log.Fatal("自动迁移失败", zap.Error(err))
	}
	log.Info("自动迁移完成")

	// 3.2 Redis（可选）：在线状态、跨实例事件
	var redisClient *goredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redisPkg.NewClient(rootCtx, cfg.Redis)
		if err != nil {
			log.Fatal("Redis连接失败", zap.Error(err))
		}
		defer redisClient.Close()
		log.Info("Redis连接成功")
	}
	presence := redisPkg.NewPresence(redisClient)

	// 3.3 实时事件总线
	bus, err := newBroker(cfg.Broker, redisClient)
	if err != nil {
		log.Fatal("事件总线初始化失败", zap.Error(err))
	}
	defer bus.Close()

	hub := websocket.NewHub()
	go hub.Run(rootCtx)
	go func() {
		if err := hub.Subscribe(rootCtx, bus); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("事件订阅中断", zap.Error(err))
		}
	}()
	publisher := websocket.NewPublisher(bus)

	// 3.4 初始化业务服务
	jwtSvc := jwt.NewJWTService(cfg.JWT)
	tx := repository.NewTransactor(gdb)
	userRepo := repository.NewUserRepository(gdb)
	companyRepo := repository.NewCompanyRepository(gdb)

	notificationSvc := service.NewNotificationService(repository.NewNotificationRepository(gdb), publisher)
	relationSvc := service.NewRelationshipService(tx, repository.NewRelationshipRepository(gdb), userRepo, companyRepo, notificationSvc)
	companySvc := service.NewCompanyService(tx, companyRepo, userRepo, relationSvc)
	conversationSvc := service.NewConversationService(tx,
		repository.NewConversationRepository(gdb),
		repository.NewMessageRepository(gdb),
		userRepo, publisher, cfg.Messaging,
	)
	userSvc := service.NewUserService(userRepo, jwtSvc, presence)

	// 4. 设置Gin模式
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := handler.RegisterValidators(); err != nil {
		log.Fatal("注册校验规则失败", zap.Error(err))
	}

	// 5. 创建Gin路由
	router := gin.New()
	router.Use(logger.RequestLogger())         // 请求日志
	router.Use(logger.ErrorLoggerMiddleware()) // panic 恢复
	if cfg.Tracing.Enabled {
		router.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(cfg.RateLimit)
	}

	// 6. 绑定路由
	handler.RegisterRoutes(router, handler.Handlers{
		JWT:          jwtSvc,
		Limiter:      limiter,
		Health:       healthCheck(gdb, redisClient),
		User:         handler.NewUserHandler(userSvc, relationSvc),
		Connection:   handler.NewConnectionHandler(relationSvc),
		Company:      handler.NewCompanyHandler(companySvc, relationSvc),
		Conversation: handler.NewConversationHandler(conversationSvc),
		Notification: handler.NewNotificationHandler(notificationSvc),
		WebSocket:    websocket.NewHandler(hub, jwtSvc, conversationSvc, presence, cfg.WebSocket),
	})

	// 前端单独部署，跨域在最外层处理
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", logger.RequestIDHeader, "traceparent", "baggage", "sentry-trace"},
		ExposedHeaders:   []string{logger.RequestIDHeader},
		AllowCredentials: true,
	}).Handler(router)

	// 7. 创建HTTP服务器
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      corsHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 8. 启动HTTP服务器
	go func() {
		log.Info("HTTP服务器启动", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP服务器启动失败", zap.Error(err))
		}
	}()

	// 9. 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("正在关闭服务器...")

	// 设置关闭超时
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 关闭HTTP服务器
	if err := server.Shutdown(ctx); err != nil {
		log.Error("HTTP服务器关闭失败", zap.Error(err))
	}
	// 停止 hub 与事件订阅，断开全部 WebSocket 连接
	stop()

	log.Info("服务器已安全关闭")
}

// newBroker 按配置选择事件总线
func newBroker(cfg config.BrokerConfig, redisClient *goredis.Client) (broker.Broker, error) {
	switch cfg.Kind {
	case "", "local":
		return broker.NewLocal(), nil
	case "redis":
		if redisClient == nil {
			return nil, errors.New("broker.kind=redis 需要启用 redis")
		}
		return broker.NewRedis(redisClient, cfg.Prefix), nil
	case "nats":
		nb, err := broker.DialNATS(cfg.NATSURL, cfg.Prefix)
		if err != nil {
			return nil, err
		}
		return nb, nil
	default:
		return nil, errors.New("不支持的事件总线: " + cfg.Kind)
	}
}

// healthCheck 数据库必需，Redis 启用时一并检查
func healthCheck(gdb *gorm.DB, redisClient *goredis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := dbPkg.HealthCheck(gdb); err != nil {
			return err
		}
		if redisClient != nil {
			return redisPkg.HealthCheck(ctx, redisClient)
		}
		return nil
	}
}
