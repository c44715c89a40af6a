package main

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"messaging-service/internal/cache"
	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/handlers"
	"messaging-service/internal/media"
	"messaging-service/internal/middleware"
	"messaging-service/internal/notify"
	"messaging-service/internal/observability"
	"messaging-service/internal/push"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/sse"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

const serviceName = "messaging-service"

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	shutdownTracer, err := observability.InitTracer(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("init tracer", zap.Error(err))
	}
	defer shutdownTracer(ctx)

	database, err := db.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("connect db", zap.Error(err))
	}
	defer database.Close()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis ping failed, unread cache disabled", zap.Error(err))
			redisClient = nil
		}
	}
	unread := cache.NewUnreadCounts(redisClient, logger)

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer publisher.Close()
	emitter := telemetry.NewEmitter(publisher, serviceName, cfg.Environment, logger)

	uploader := media.NewClient(cfg.MediaUploadURL, cfg.MediaURLBase, cfg.MediaPrivateKey, logger)
	notifier := notify.NewNotifier(database, cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubscriber, logger)
	if notifier == nil {
		logger.Info("web push disabled: VAPID keys not configured")
	}

	messageRepo := repositories.NewMessageRepo(database)
	userRepo := repositories.NewUserRepo(database)
	registry := push.NewRegistry(cfg.PushBuffer)

	messageHandler := handlers.NewMessageHandler(messageRepo, userRepo, registry, uploader, unread, notifier, emitter, logger)
	userHandler := handlers.NewUserHandler(userRepo, logger)
	notificationHandler := handlers.NewNotificationHandler(notifier)
	sseHandler := sse.NewHandler(registry, emitter, logger, cfg.LiveHeartbeat, cfg.LiveIdleTimeout)
	wsHandler := ws.NewLiveHandler(registry, emitter, logger, cfg.JWTSecret, cfg.LiveHeartbeat)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)

	api := router.Group("/api/messages")
	{
		api.POST("/send", authMiddleware, messageHandler.Send)
		api.POST("/get", authMiddleware, messageHandler.Get)
		api.GET("/recent", authMiddleware, messageHandler.Recent)
		api.POST("/seen", authMiddleware, messageHandler.Seen)
		api.GET("/live/:userId", sseHandler.Stream)
	}

	router.GET("/ws/messages", wsHandler.Handle)
	router.POST("/api/notifications/subscribe", authMiddleware, notificationHandler.Subscribe)
	router.POST("/internal/users/sync", middleware.InternalAuthMiddleware(cfg.InternalSecret), userHandler.Sync)

	router.GET("/healthz", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	logger.Info("listening", zap.String("port", cfg.Port))
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
