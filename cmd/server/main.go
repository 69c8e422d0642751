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

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/rtcface/chat-bot-backend/config"
	"github.com/rtcface/chat-bot-backend/internal/adapter"
	"github.com/rtcface/chat-bot-backend/internal/application"
	"github.com/rtcface/chat-bot-backend/internal/domain"
	"github.com/rtcface/chat-bot-backend/internal/handler"
	"github.com/rtcface/chat-bot-backend/internal/infrastructure/mq"
	"github.com/rtcface/chat-bot-backend/internal/infrastructure/persistence"
	"github.com/rtcface/chat-bot-backend/internal/infrastructure/persistence/cache"
	"github.com/rtcface/chat-bot-backend/internal/infrastructure/persistence/db"
	"github.com/rtcface/chat-bot-backend/internal/infrastructure/persistence/repository"
	"github.com/rtcface/chat-bot-backend/internal/middleware"
	"github.com/rtcface/chat-bot-backend/internal/security"
	"github.com/rtcface/chat-bot-backend/internal/ui"
	"github.com/rtcface/chat-bot-backend/pkg/registry"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	gormDB, err := db.InitGorm(cfg.Postgres.DSN())
	if err != nil {
		log.Fatalf("连接Postgres失败: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.Database,
	})

	// 会话仓储，redis可用时加cache-aside层
	var conversations domain.ConversationRepository = repository.NewConversationRepository(gormDB)
	redisCache, err := cache.NewRedisCache(redisClient)
	if err != nil {
		log.Printf("[WARN] Redis不可用，禁用缓存和限流: %v", err)
		redisCache = nil
	} else {
		conversations = persistence.NewCachedConversationRepository(conversations, redisCache)
	}

	roles := repository.NewRoleRepository(gormDB)
	users := repository.NewUserRepository(gormDB)
	apiKeys := repository.NewAPIKeyRepository(gormDB)

	provider := adapter.NewDeepSeekAdapter(
		adapter.WithBaseURL(cfg.Provider.BaseURL),
		adapter.WithDefaultModel(cfg.Provider.DefaultModel),
		adapter.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Provider.TimeoutSeconds) * time.Second}),
	)

	// RocketMQ可选，未配置时事件只记日志
	var events domain.TurnEventPublisher
	producer, err := mq.InitProducer(cfg)
	if err != nil {
		log.Printf("[WARN] 初始化RocketMQ失败: %v", err)
	} else if producer != nil {
		events = producer
		defer producer.Shutdown()
	}

	jwtService := security.NewJWTService(cfg.Auth.JwtSecret, cfg.Auth.Expire_Access_H, cfg.Auth.Expire_Refresh_H)
	passwords := security.NewBcryptEncoder()

	chatService := application.NewChatService(conversations, roles, provider, events)
	authService := application.NewAuthService(users, apiKeys, jwtService, passwords)

	router := buildRouter(cfg, redisClient, redisCache != nil, chatService, authService, jwtService)

	// Consul自注册可选
	var consulRegistry *registry.ConsulRegistry
	serviceID := registry.GenerateServiceID(cfg.ServerName, cfg.Port)
	if cfg.Consul.Enabled {
		consulRegistry, err = registry.NewConsulRegistry(&registry.ConsulConfig{
			Address:    cfg.Consul.Address,
			Scheme:     cfg.Consul.Scheme,
			Datacenter: cfg.Consul.Datacenter,
		})
		if err != nil {
			log.Printf("[WARN] 初始化Consul客户端失败: %v", err)
			consulRegistry = nil
		} else {
			localIP, err := registry.GetLocalIP()
			if err != nil {
				log.Fatalf("获取本机IP失败: %v", err)
			}
			err = consulRegistry.RegisterService(&registry.ServiceConfig{
				ID:      serviceID,
				Name:    cfg.ServerName,
				Tags:    []string{cfg.ServerName, "api", "v1"},
				Address: localIP,
				Port:    cfg.Port,
				HealthCheck: &registry.HealthCheck{
					HTTP:                           fmt.Sprintf("http://%s:%d/health", localIP, cfg.Port),
					Interval:                       10 * time.Second,
					Timeout:                        3 * time.Second,
					DeregisterCriticalServiceAfter: 1 * time.Minute,
				},
			})
			if err != nil {
				log.Printf("[WARN] 服务注册失败: %v", err)
				consulRegistry = nil
			}
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		ui.PrintBanner(cfg.ServerName, cfg.Version, cfg.Environment, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	if consulRegistry != nil {
		if err := consulRegistry.DeregisterService(serviceID); err != nil {
			log.Printf("[WARN] %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务关闭失败: %v", err)
	}
	log.Println("Server exited")
}

func buildRouter(
	cfg *config.AppConfig,
	redisClient *redis.Client,
	redisAvailable bool,
	chatService *application.ChatService,
	authService *application.AuthService,
	jwtService *security.JWTService,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": cfg.ServerName})
	})

	api := router.Group("/api/v1")

	// 限流挂在认证之后，已登录的请求按user_id限流，登录注册按IP
	var rateLimit gin.HandlerFunc
	if redisAvailable && cfg.Redis.RateLimitQPS > 0 {
		rateLimit = middleware.RateLimit(redisClient, cfg.Redis.RateLimitQPS)
	}
	authn := middleware.Auth(jwtService, authService)

	authHandler := handler.NewAuthHandler(authService)
	chatHandler := handler.NewChatHandler(chatService)

	authPublic := api.Group("/auth")
	authPrivate := api.Group("/auth")
	authPrivate.Use(authn)
	chat := api.Group("/chat")
	chat.Use(authn)
	if rateLimit != nil {
		authPublic.Use(rateLimit)
		authPrivate.Use(rateLimit)
		chat.Use(rateLimit)
	}

	authHandler.RegisterRoutes(authPublic, authPrivate)
	chatHandler.RegisterRoutes(chat)

	return router
}
