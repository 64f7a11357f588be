// Command gateway serves records from the cache and the record store and
// publishes write commands to the queue.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/adeilh/rakh-records/auth"
	"github.com/adeilh/rakh-records/cache"
	cacheredis "github.com/adeilh/rakh-records/cache/redis"
	"github.com/adeilh/rakh-records/cache/ristretto"
	"github.com/adeilh/rakh-records/gateway"
	"github.com/adeilh/rakh-records/httpx"
	"github.com/adeilh/rakh-records/internal/config"
	"github.com/adeilh/rakh-records/internal/logging"
	"github.com/adeilh/rakh-records/queue/redisstream"
	"github.com/adeilh/rakh-records/recordcache"
	"github.com/adeilh/rakh-records/recordstore/rpc"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "gateway:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadGateway(nil)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer client.Close()

	store, closeStore, err := cacheStore(ctx, cfg, client, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	records, err := recordcache.New(store,
		recordcache.WithTTL(cfg.CacheTTL),
		recordcache.WithCodec(cfg.CacheCodec),
		recordcache.WithPrefix(cfg.CachePrefix),
		recordcache.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	publisher, err := redisstream.NewPublisher(redisstream.Config{Client: client, Stream: cfg.QueueStream})
	if err != nil {
		return err
	}

	storeClient := rpc.NewClient(cfg.StoreURL,
		httpx.WithClientTimeout(cfg.StoreTimeout),
		rpc.WithToken(cfg.StoreToken),
	)
	svc, err := gateway.NewService(records, storeClient, publisher,
		gateway.WithLogger(logger),
		gateway.WithCommandFormat(cfg.CommandFormat),
	)
	if err != nil {
		return err
	}

	var authMW *auth.Middleware
	if cfg.JWTSecret != "" {
		signer, err := auth.NewSigner([]byte(cfg.JWTSecret))
		if err != nil {
			return err
		}
		authMW, err = auth.NewMiddleware(signer, auth.RequireScope(auth.ScopeWrite))
		if err != nil {
			return err
		}
	}

	serverOpts := []httpx.ServerOption{
		httpx.WithAddress(cfg.Addr),
		httpx.WithLogger(logger),
		httpx.WithErrorMapper(gateway.StatusFor),
	}
	if len(cfg.CORSOrigins) > 0 {
		cors := httpx.DefaultCORSConfig
		cors.AllowOrigins = cfg.CORSOrigins
		serverOpts = append(serverOpts, httpx.WithCORS(&cors))
	}
	server := httpx.NewServer(serverOpts...)
	server.RegisterRoutes(gateway.NewHandler(svc, authMW).Register)

	logger.Info("gateway starting",
		zap.String("cache", cfg.Cache),
		zap.String("codec", cfg.CacheCodec),
		zap.Duration("ttl", cfg.CacheTTL),
		zap.Bool("auth", authMW != nil),
	)
	return server.Start(ctx)
}

func cacheStore(ctx context.Context, cfg config.Gateway, client goredis.UniversalClient, logger *zap.Logger) (cache.Store, func(), error) {
	if cfg.Cache == "memory" {
		s, err := ristretto.New(ristretto.Config{})
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}
	s := cacheredis.NewStore(cacheredis.Options{Client: client})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.Ping(pingCtx); err != nil {
		// reads fall through to the store until redis is back
		logger.Warn("redis cache unreachable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	return s, func() { _ = s.Close() }, nil
}
