package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/accounts"
	"github.com/ariefcatur/storefront-orders/internal/config"
	"github.com/ariefcatur/storefront-orders/internal/credential"
	"github.com/ariefcatur/storefront-orders/internal/events"
	"github.com/ariefcatur/storefront-orders/internal/httpx"
	kafkax "github.com/ariefcatur/storefront-orders/internal/kafka"
	"github.com/ariefcatur/storefront-orders/internal/logging"
	"github.com/ariefcatur/storefront-orders/internal/metrics"
	"github.com/ariefcatur/storefront-orders/internal/orders"
	"github.com/ariefcatur/storefront-orders/internal/postgres"
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
	log, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxConns: int32(cfg.DBMaxConns),
		MinConns: int32(cfg.DBMinConns),
	})
	if err != nil {
		fatal(ctx, log, "db connect", err)
	}
	defer pool.Close()
	db := postgres.OpenDB(pool)
	defer db.Close()

	// no requests are served against an unverified schema
	if err := postgres.EnsureSchema(ctx, db, log); err != nil {
		fatal(ctx, log, "schema", err)
	}

	codec, err := credential.NewCodec(cfg.BcryptCost)
	if err != nil {
		fatal(ctx, log, "credential codec", err)
	}

	acctRepo := accounts.NewPostgresRepository(db)
	acctSvc := accounts.NewService(acctRepo, codec, log)
	acctSvc.Producer = cfg.ServiceName
	orderSvc := orders.NewService(orders.NewRepo(db), acctRepo, log)
	orderSvc.Producer = cfg.ServiceName

	// Redis (optional): login throttle
	if cfg.RedisAddr != "" {
		rdb, err := redisx.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			fatal(ctx, log, "redis connect", err)
		}
		defer rdb.Close()
		acctSvc.Limiter = redisx.NewLoginLimiter(rdb, cfg.LoginMaxFailures, cfg.LoginFailureWindow)
	}

	// Kafka (optional): domain events
	var pub *kafkax.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		pub = kafkax.NewEventPublisher(cfg.KafkaBrokers, 1024, log)
		acctSvc.Events = pub
		orderSvc.Events = pub
	} else {
		acctSvc.Events = events.Nop{}
		orderSvc.Events = events.Nop{}
	}

	m := metrics.New()
	authLimiter := httpx.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log)
	go func() {
		t := time.NewTicker(10 * time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				authLimiter.Cleanup(10000)
			}
		}
	}()

	router := httpx.NewRouter(httpx.RouterConfig{
		Log:        log,
		Metrics:    m,
		DB:         db,
		CORSOrigin: cfg.CORSAllowedOrigin,
	})
	httpx.MountAPI(router,
		&httpx.AccountsHandler{Service: acctSvc, Log: log, Metrics: m, Limiter: authLimiter},
		&httpx.OrdersHandler{Service: orderSvc, Log: log, Metrics: m},
		&httpx.AdminHandler{Service: orderSvc, Log: log, Key: cfg.AdminAPIKey},
	)
	if cfg.AdminAPIKey == "" {
		log.Warn(ctx, "ADMIN_API_KEY not set, admin routes disabled")
	}

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info(ctx, "http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(ctx, log, "listen", err)
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info(ctx, "shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Warn(ctx, "http shutdown", "err", err)
	}
	cancel()
	if pub != nil {
		pub.Close() // flush buffered events
	}
}

func fatal(ctx context.Context, log *logging.ZapLogger, what string, err error) {
	log.Error(ctx, what+" failed", "err", err)
	_ = log.Sync()
	os.Exit(1)
}
