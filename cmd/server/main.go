package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/realtime-trading-api/realtime-trading/cmd/server/internal/api"
	"github.com/realtime-trading-api/realtime-trading/cmd/server/internal/auth"
	"github.com/realtime-trading-api/realtime-trading/cmd/server/internal/feed"
	"github.com/realtime-trading-api/realtime-trading/cmd/server/internal/hub"
	"github.com/realtime-trading-api/realtime-trading/cmd/server/internal/journal"
	"github.com/realtime-trading-api/realtime-trading/cmd/server/internal/ledger"
	"github.com/realtime-trading-api/realtime-trading/cmd/server/internal/ratelimit"
	"github.com/realtime-trading-api/realtime-trading/cmd/server/internal/repository"
	"github.com/realtime-trading-api/realtime-trading/pkg/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	store, err := repository.Open(cfg.DB.DSN)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}

	wsHub := hub.NewHub(logger)

	// Trade journal: kafka-backed when enabled, otherwise a no-op.
	var tradeJournal ledger.Journal = journal.Nop{}
	var journalWriter *journal.Journal
	if cfg.Kafka.Enabled {
		journal.EnsureTopic(logger, cfg.Kafka.Brokers[0], cfg.Kafka.Topic)
		journalWriter = journal.NewJournal(journal.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), logger)
		tradeJournal = journalWriter
	}

	engine := ledger.NewEngine(store, wsHub, tradeJournal, logger, cfg.App.Symbol)

	var limiter ratelimit.Limiter = ratelimit.Nop{}
	var rdb *redis.Client
	if cfg.RateLimit.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		limiter = ratelimit.NewRedisLimiter(rdb, cfg.RateLimit.Limit, cfg.RateLimit.Window())
	}

	tokens := auth.NewManager(cfg.Auth.Secret, cfg.Auth.TokenTTL())
	handler := api.NewHandler(store, engine, wsHub, tokens, limiter, logger, cfg.App.StartingBalance)

	if cfg.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	handler.RegisterRoutes(router)

	// The feed is a managed background task tied to this context, not a
	// fire-and-forget goroutine.
	ctx, cancel := context.WithCancel(context.Background())
	rnd := feed.RealRand{Rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
	generator := feed.NewGenerator(logger, wsHub, cfg.Feed, rnd, feed.RealClock{})

	feedDone := make(chan struct{})
	go func() {
		defer close(feedDone)
		generator.Run(ctx)
	}()

	srv := &http.Server{Addr: cfg.App.Port, Handler: router}
	go func() {
		logger.Info("Server Started", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("Shutdown signal received")

	cancel()
	<-feedDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	if journalWriter != nil {
		logger.Info("Closing journal writer...")
		if err := journalWriter.Close(); err != nil {
			logger.Error("Error closing journal writer", zap.Error(err))
		}
	}
	if rdb != nil {
		rdb.Close()
	}
	if err := store.Close(); err != nil {
		logger.Error("Error closing store", zap.Error(err))
	}

	logger.Info("Shutdown Complete")
}
