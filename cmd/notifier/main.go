package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/shopcore/storefront-orders/internal/config"
	kafkax "github.com/shopcore/storefront-orders/internal/kafka"
	"github.com/shopcore/storefront-orders/internal/notify"
	"github.com/shopcore/storefront-orders/internal/orders"
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

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	worker := &notify.Worker{
		Redis:  rdb,
		Sender: &notify.LogSender{Log: logger},
		Log:    logger,
	}

	// one consumer per topic, same handler
	for _, topic := range []string{orders.TopicOrderCreated, orders.TopicStatusChanged} {
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, topic, cfg.NotifierWorkers, logger)
		go func(topic string) {
			logger.Info("notifier consumer started",
				zap.String("group", cfg.NotifierGroup),
				zap.String("topic", topic),
				zap.Int("workers", cfg.NotifierWorkers))
			if err := cons.Start(ctx, worker.HandleEvent); err != nil {
				logger.Error("consumer exit", zap.String("topic", topic), zap.Error(err))
				cancel()
			}
		}(topic)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info("shutting down notifier...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}
