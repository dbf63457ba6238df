// Package main runs the live classroom poll server: one WebSocket session,
// one poll at a time, with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/classpulse/backend/config"
	"github.com/classpulse/backend/internal/chat"
	"github.com/classpulse/backend/internal/middleware"
	"github.com/classpulse/backend/internal/polls"
	"github.com/classpulse/backend/internal/realtime"
	"github.com/classpulse/backend/internal/session"
	"github.com/classpulse/backend/pkg/database"
	"github.com/classpulse/backend/pkg/redis"
	"github.com/classpulse/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()

	var store polls.Store
	if dsn := cfg.Database.DSN(); dsn != "" {
		pool, err := database.NewPostgresPool(ctx, dsn, logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		store = polls.NewRepository(pool)
	} else {
		store = polls.NewMemoryStore()
		logger.Warn("no database configured, poll history will not survive restarts")
	}

	var pub realtime.Publisher
	var sub realtime.Subscriber
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
		pub, sub = pubsub, pubsub
	}

	hub := realtime.NewHub(logger, pub, sub)
	defer hub.Shutdown()

	registry := session.NewRegistry()
	engine := polls.NewEngine(store, registry, logger)
	defer engine.Shutdown()
	if err := engine.Bootstrap(ctx); err != nil {
		logger.Fatal("bootstrap poll state", zap.Error(err))
	}

	chatBuf := chat.NewBuffer(cfg.Session.ChatHistoryLimit)
	coordinator := session.NewCoordinator(registry, engine, chatBuf, hub, logger)
	pollHandler := polls.NewHandler(engine, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/api/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/api/polls/history", pollHandler.History)
	router.GET("/api/polls/state", pollHandler.State)
	router.GET("/ws", realtime.ServeWs(hub, coordinator, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
