package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ariefcatur/storefront-orders/internal/config"
	"github.com/ariefcatur/storefront-orders/internal/events"
	kafkax "github.com/ariefcatur/storefront-orders/internal/kafka"
	"github.com/ariefcatur/storefront-orders/internal/logging"
	"github.com/ariefcatur/storefront-orders/internal/notify"
	"github.com/ariefcatur/storefront-orders/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogLevel, cfg.ServiceName+"-notifier")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if len(cfg.KafkaBrokers) == 0 || cfg.RedisAddr == "" {
		log.Error(ctx, "notifier needs KAFKA_BROKERS and REDIS_ADDR")
		_ = log.Sync()
		os.Exit(1)
	}

	// Redis
	rdb, err := redisx.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		log.Error(ctx, "redis connect failed", "err", err)
		_ = log.Sync()
		os.Exit(1)
	}
	defer rdb.Close()

	svc := &notify.Service{
		Dedup:  redisx.NewDedup(rdb, "notifier"),
		Sender: notify.LogSender{Log: log},
		Log:    log,
	}

	// one consumer per topic, same group
	var wg sync.WaitGroup
	for _, topic := range []string{events.TopicAccountRegistered, events.TopicOrderPlaced} {
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, topic, cfg.NotifierWorkers, log)
		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			log.Info(ctx, "consumer started", "group", cfg.NotifierGroup, "topic", topic, "workers", cfg.NotifierWorkers)
			if err := cons.Start(ctx, svc.Handle); err != nil {
				log.Error(ctx, "consumer exit", "topic", topic, "err", err)
				cancel()
			}
		}(topic)
	}

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down consumers")
	cancel()
	wg.Wait()
}
