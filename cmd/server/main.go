package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/fjod/go_cart/internal/cart/cache"
	"github.com/fjod/go_cart/internal/cart/consumer"
	cartrepo "github.com/fjod/go_cart/internal/cart/repository"
	cartsvc "github.com/fjod/go_cart/internal/cart/service"
	"github.com/fjod/go_cart/internal/catalog"
	"github.com/fjod/go_cart/internal/checkout/lock"
	checkoutsvc "github.com/fjod/go_cart/internal/checkout/service"
	"github.com/fjod/go_cart/internal/config"
	httpapi "github.com/fjod/go_cart/internal/http"
	"github.com/fjod/go_cart/internal/order/publisher"
	orderrepo "github.com/fjod/go_cart/internal/order/repository"
	ordersvc "github.com/fjod/go_cart/internal/order/service"
	"github.com/fjod/go_cart/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// productSource is what the checkout and the product endpoints need from a catalog.
type productSource interface {
	catalog.Catalog
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.ServiceName, cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// MongoDB holds cart lines
	mongoDB, err := cartrepo.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.DBName)
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	defer func() {
		if err := mongoDB.Client().Disconnect(context.Background()); err != nil {
			log.Warn("mongo disconnect failed", "error", err)
		}
	}()
	cartRepo := cartrepo.NewMongoRepository(mongoDB)
	if err := cartRepo.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("create cart indexes: %w", err)
	}
	log.Info("connected to MongoDB", "db", cfg.Mongo.DBName)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	log.Info("connected to Redis", "addr", cfg.Redis.Addr)

	orders, err := orderrepo.NewRepository(&orderrepo.Credentials{
		Host:         cfg.Postgres.Host,
		Port:         cfg.Postgres.Port,
		User:         cfg.Postgres.User,
		Password:     cfg.Postgres.Password,
		DBName:       cfg.Postgres.DBName,
		MaxOpenConns: cfg.Postgres.MaxOpenConns,
		MaxIdleConns: cfg.Postgres.MaxIdleConns,
	})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer orders.Close()
	if err := orders.RunMigrations(); err != nil {
		return fmt.Errorf("order migrations: %w", err)
	}
	log.Info("order migrations completed")

	products, err := openCatalog(cfg.Catalog, log)
	if err != nil {
		return err
	}
	defer products.Close()

	cartService := cartsvc.NewCartService(cartRepo, cache.NewRedisCache(redisClient, cfg.Redis.CacheTTL), log)
	checkoutService := checkoutsvc.NewCheckoutService(
		cartService,
		products,
		orders,
		lock.NewRedisLocker(redisClient, cfg.Checkout.LockTTL, cfg.Checkout.LockWait),
		checkoutsvc.Config{
			LookupTimeout:        cfg.Checkout.LookupTimeout,
			LookupAttempts:       cfg.Checkout.LookupAttempts,
			RetryBaseDelay:       cfg.Checkout.RetryBaseDelay,
			MaxConcurrentLookups: cfg.Checkout.MaxConcurrentLookups,
			ClearAttempts:        cfg.Checkout.ClearAttempts,
		},
		log,
	)
	orderService := ordersvc.NewOrderService(orders, log)

	var wg sync.WaitGroup

	// A nil interface disables publishing; a typed nil *kafka.Writer would not.
	var writer publisher.MessageWriter
	if cfg.Kafka.Enabled {
		writer = publisher.NewKafkaWriter(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		defer writer.Close()

		orderConsumer := consumer.NewOrderConsumer(
			consumer.NewKafkaReader(cfg.Kafka.Topic, cfg.Kafka.GroupID, cfg.Kafka.Brokers...),
			orders,
			checkoutService,
			log,
		)
		defer orderConsumer.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			orderConsumer.Run(ctx)
		}()
	}

	poller := publisher.NewOutboxPoller(publisher.Config{
		EventTick:     cfg.Outbox.EventTick,
		RecoveryTick:  cfg.Outbox.RecoveryTick,
		RecoveryGrace: cfg.Outbox.RecoveryGrace,
		BatchSize:     cfg.Outbox.BatchSize,
	}, orders, checkoutService, writer, log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Run(ctx)
	}()

	handlers := httpapi.Handlers{
		Cart:     httpapi.NewCartHandler(cartService, cfg.RequestTimeout, cfg.MaxRequestBodySize, log),
		Checkout: httpapi.NewCheckoutHandler(checkoutService, cfg.RequestTimeout, log),
		Orders:   httpapi.NewOrdersHandler(orderService, cfg.RequestTimeout, log),
		Products: httpapi.NewProductHandler(products, cfg.RequestTimeout, log),
	}
	checks := map[string]httpapi.HealthCheck{
		"mongo":    func(ctx context.Context) error { return mongoDB.Client().Ping(ctx, nil) },
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		"postgres": orders.Ping,
	}
	router := httpapi.NewRouter(handlers, checks, cfg.RequestTimeout, log)

	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           otelhttp.NewHandler(router, cfg.ServiceName),
		ReadHeaderTimeout: cfg.RequestTimeout,
	}

	// gRPC carries only health and reflection for probes and grpcurl.
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	healthServer.SetServingStatus(cfg.ServiceName, healthpb.HealthCheckResponse_SERVING)

	errCh := make(chan error, 2)
	go func() {
		log.Info("HTTP server listening", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		log.Info("gRPC server listening", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case serveErr = <-errCh:
		stop()
	}

	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	grpcServer.GracefulStop()
	wg.Wait()

	log.Info("service stopped")
	return serveErr
}

func openCatalog(cfg config.CatalogConfig, log *slog.Logger) (productSource, error) {
	if cfg.Source == config.CatalogSourceSQLite {
		c, err := catalog.NewSQLiteCatalog(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite catalog: %w", err)
		}
		if err := c.RunMigrations(); err != nil {
			c.Close()
			return nil, fmt.Errorf("catalog migrations: %w", err)
		}
		log.Info("using SQLite catalog", "path", cfg.SQLitePath)
		return c, nil
	}

	log.Info("using HTTP catalog", "base_url", cfg.BaseURL)
	return catalog.NewHTTPClient(catalog.HTTPConfig{
		BaseURL:          cfg.BaseURL,
		Timeout:          cfg.RequestTimeout,
		BreakerFailures:  cfg.BreakerFailures,
		BreakerOpenDelay: cfg.BreakerOpenDelay,
	}, log), nil
}
