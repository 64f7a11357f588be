// Command writer owns the canonical record store. It serves the store over
// RPC for the gateway's reads and applies queued commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/adeilh/rakh-records/consumer"
	dbpg "github.com/adeilh/rakh-records/db/sql/postgres"
	"github.com/adeilh/rakh-records/httpx"
	"github.com/adeilh/rakh-records/internal/config"
	"github.com/adeilh/rakh-records/internal/logging"
	"github.com/adeilh/rakh-records/queue/redisstream"
	"github.com/adeilh/rakh-records/recordstore"
	"github.com/adeilh/rakh-records/recordstore/bolt"
	"github.com/adeilh/rakh-records/recordstore/postgres"
	"github.com/adeilh/rakh-records/recordstore/rpc"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "writer:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWriter(nil)
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

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer client.Close()
	sub, err := redisstream.NewSubscriber(redisstream.ConsumerConfig{
		Config:   redisstream.Config{Client: client, Stream: cfg.QueueStream},
		Group:    cfg.QueueGroup,
		Consumer: cfg.QueueConsumer,
	})
	if err != nil {
		return err
	}

	server := httpx.NewServer(
		httpx.WithAddress(cfg.Addr),
		httpx.WithLogger(logger),
		httpx.WithValidators(rpc.RequireToken(cfg.StoreToken)),
	)
	server.RegisterRoutes(func(a *httpx.App) { rpc.Register(a, store, logger) })

	logger.Info("writer starting",
		zap.String("store", cfg.Store),
		zap.String("stream", cfg.QueueStream),
		zap.String("group", cfg.QueueGroup),
		zap.String("consumer", cfg.QueueConsumer),
	)

	// Either side failing stops the other.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs <- server.Start(ctx)
		cancel()
	}()
	go func() {
		defer wg.Done()
		errs <- consumer.New(sub, store, consumer.WithLogger(logger)).Run(ctx)
		cancel()
	}()
	wg.Wait()
	close(errs)

	var first error
	for err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) && first == nil {
			first = err
		}
	}
	return first
}

func openStore(ctx context.Context, cfg config.Writer) (recordstore.Client, func(), error) {
	if cfg.Store == "bolt" {
		s, err := bolt.Open(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}

	db, err := dbpg.Open(dbpg.WithDSN(cfg.PostgresDSN))
	if err != nil {
		return nil, nil, err
	}
	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := postgres.Migrate(migrateCtx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return postgres.New(db), func() { _ = db.Close() }, nil
}
