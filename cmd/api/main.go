package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/shopcore/storefront-orders/internal/config"
	"github.com/shopcore/storefront-orders/internal/httpx"
	kafkax "github.com/shopcore/storefront-orders/internal/kafka"
	"github.com/shopcore/storefront-orders/internal/notify"
	"github.com/shopcore/storefront-orders/internal/orders"
	"github.com/shopcore/storefront-orders/internal/postgres"
	"github.com/shopcore/storefront-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per event topic
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, logger)
	pCreated.Start(context.Background())
	pChanged := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStatusChanged, 1024, logger)
	pChanged.Start(context.Background())

	dispatcher := &notify.KafkaDispatcher{
		CreatedProducer: pCreated,
		ChangedProducer: pChanged,
		Service:         cfg.ServiceName,
	}
	svc := orders.NewService(orders.NewPGStore(db), dispatcher, logger)

	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{Service: svc, Redis: rdb, Log: logger}
	oh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	// close inboxes -> flush & close writers
	pCreated.Close()
	pChanged.Close()
	pCreated.WaitClosed()
	pChanged.WaitClosed()
}
