package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	c "github.com/fjod/go_cart/cart-service/internal/cache"
	"github.com/fjod/go_cart/cart-service/internal/catalog"
	"github.com/fjod/go_cart/cart-service/internal/config"
	"github.com/fjod/go_cart/cart-service/internal/discount"
	"github.com/fjod/go_cart/cart-service/internal/domain"
	h "github.com/fjod/go_cart/cart-service/internal/http"
	"github.com/fjod/go_cart/cart-service/internal/logger"
	"github.com/fjod/go_cart/cart-service/internal/poller"
	"github.com/fjod/go_cart/cart-service/internal/publisher"
	"github.com/fjod/go_cart/cart-service/internal/repository"
	s "github.com/fjod/go_cart/cart-service/internal/service"
	"github.com/fjod/go_cart/cart-service/internal/tax"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l, err := logger.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = l.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Catalog
	catalogRepo, err := catalog.NewRepository(cfg.CatalogDSN)
	if err != nil {
		l.Fatal("Failed to open catalog", zap.Error(err))
	}
	defer catalogRepo.Close()
	if err := catalogRepo.RunMigrations(); err != nil {
		l.Fatal("Failed to migrate catalog", zap.Error(err))
	}
	source := catalog.NewBreaker(catalogRepo, catalog.DefaultBreakerSettings(), l)

	// MongoDB
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		l.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	repo := repository.NewMongoRepository(mongoDB)
	if err := repository.CreateIndexes(ctx, repo); err != nil {
		l.Fatal("Failed to create indexes", zap.Error(err))
	}
	l.Info("Connected to MongoDB", zap.String("db", cfg.MongoDBName))

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		l.Fatal("Redis connection failed", zap.Error(err))
	}
	cache := c.NewRedisCache(redisClient)

	// Kafka
	pub := publisher.NewKafkaPublisher(cfg.CheckoutTopic, cfg.KafkaBrokers...)
	defer pub.Close()

	pricing := domain.Pricing{
		Catalog:   source,
		Discounts: discount.NewResolver(source),
		Tax:       tax.Calculator{},
		Now:       time.Now,
	}
	service := s.NewCartService(repo, cache, pub, pricing, domain.ConventionFor(cfg.PriceIncludingTax), l)

	relay := publisher.NewOutboxRelay(repo, pub, cfg.OutboxInterval, l)
	go relay.Run(ctx)

	orders := poller.NewPoller(service, l, cfg.OrderTopic, cfg.KafkaGroupID, cfg.KafkaBrokers...)
	defer orders.Close()
	go orders.Run(ctx)

	router := h.NewRouter(h.NewCartHandler(service, cfg.RequestTimeout, l), l, func() string {
		return source.ProductsState().String()
	})
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		l.Info("Cart service listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	l.Info("Shutting down cart service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error("server forced to shutdown", zap.Error(err))
	}
	if err := mongoDB.Client().Disconnect(shutdownCtx); err != nil {
		l.Warn("mongo disconnect failed", zap.Error(err))
	}
	l.Info("Cart service stopped")
}
