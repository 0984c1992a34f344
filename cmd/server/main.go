package main // Entry point package

import (
    "context"
    "database/sql"
    "errors"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "golang.org/x/sync/errgroup"

    "github.com/iliyamo/marketplace-negotiation/internal/config"
    "github.com/iliyamo/marketplace-negotiation/internal/database"
    "github.com/iliyamo/marketplace-negotiation/internal/handler"
    "github.com/iliyamo/marketplace-negotiation/internal/logger"
    "github.com/iliyamo/marketplace-negotiation/internal/middleware"
    "github.com/iliyamo/marketplace-negotiation/internal/negotiation"
    "github.com/iliyamo/marketplace-negotiation/internal/queue"
    "github.com/iliyamo/marketplace-negotiation/internal/repository"
    "github.com/iliyamo/marketplace-negotiation/internal/router"
    "github.com/iliyamo/marketplace-negotiation/internal/service"
)

func main() {
    cfg := config.Load() // Load environment config
    log := logger.New(cfg.Env)

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    store, messages, db, err := openStore(ctx, cfg, log)
    if err != nil {
        log.Error("store_open_failed", "driver", cfg.StoreDriver, "error", err.Error())
        os.Exit(1)
    }
    if db != nil {
        defer db.Close()
    }

    // Redis is optional: without it the limiter is per process and there is no live feed.
    rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
    if err != nil {
        log.Warn("redis_unavailable", "reason", err.Error(), "effect", "in-process rate limiting, live feed disabled")
        rdb = nil
    } else {
        defer rdb.Close()
    }

    amqpSink := service.NewAMQPSink(cfg.AMQPURL, log)
    defer amqpSink.Close()
    sinks := service.FanoutSink{amqpSink}
    if rdb != nil {
        sinks = append(sinks, service.NewRedisSink(rdb, cfg.FeedPrefix, log))
    }
    events := service.NewAsyncSink(sinks, cfg.EventsBuffer, log)

    engine := negotiation.NewEngine(store, messages, events,
        negotiation.WithLogger(log.Component("engine")),
        negotiation.WithMaxMessageLength(cfg.MessageMaxLength),
    )

    e := router.New(log)
    limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log.Component("ratelimit"))
    router.RegisterNegotiations(e, handler.NewNegotiationHandler(engine), cfg.JWTSecret, limiter)

    g, gctx := errgroup.WithContext(ctx)
    g.Go(func() error { return events.Run(gctx) })
    if cfg.ConsumerEnabled {
        consumer := queue.NewConsumer(cfg.AMQPURL, cfg.NotificationLog, log)
        g.Go(func() error { return consumer.Run(gctx) })
    }
    g.Go(func() error {
        addr := ":" + cfg.Port
        log.Info("listening", "addr", addr, "env", cfg.Env, "store", cfg.StoreDriver)
        if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
            return err
        }
        return nil
    })
    g.Go(func() error {
        <-gctx.Done()
        shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        return e.Shutdown(shutdownCtx)
    })

    if err := g.Wait(); err != nil {
        log.Error("server_stopped", "error", err.Error())
        os.Exit(1)
    }
    log.Info("server_stopped")
}

// openStore returns the negotiation and message stores for the configured
// driver.  The *sql.DB is nil for the memory driver.
func openStore(ctx context.Context, cfg config.Config, log *logger.Logger) (negotiation.Store, negotiation.MessageStore, *sql.DB, error) {
    if cfg.StoreDriver == config.StoreMemory {
        log.Warn("memory_store", "effect", "data is lost on restart")
        s := repository.NewMemoryStore()
        return s, s, nil, nil
    }
    db, err := database.Open(ctx, database.Options{
        User:            cfg.DBUser,
        Pass:            cfg.DBPass,
        Host:            cfg.DBHost,
        Port:            cfg.DBPort,
        Name:            cfg.DBName,
        MaxOpenConns:    cfg.DBMaxOpenConns,
        ConnMaxLifetime: cfg.DBConnLifetime,
    })
    if err != nil {
        return nil, nil, nil, err
    }
    if cfg.DBMigrate {
        if err := database.Migrate(ctx, db); err != nil {
            _ = db.Close()
            return nil, nil, nil, err
        }
    }
    return repository.NewNegotiationRepo(db), repository.NewMessageRepo(db), db, nil
}
