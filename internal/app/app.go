// Package app wires configuration to concrete backends for both binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/fjod/tableside/internal/cartstore"
	"github.com/fjod/tableside/internal/config"
	"github.com/fjod/tableside/internal/idempotency"
	"github.com/fjod/tableside/internal/logging"
	"github.com/fjod/tableside/internal/publisher"
	"github.com/fjod/tableside/internal/repository"
	"github.com/redis/go-redis/v9"
)

func LogOptions(cfg config.Config) logging.Options {
	return logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}
}

// Closer collects shutdown steps and runs them in reverse order.
type Closer struct {
	mu    sync.Mutex
	steps []func()
}

func (c *Closer) Add(step func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = append(c.steps, step)
}

func (c *Closer) Close() {
	c.mu.Lock()
	steps := c.steps
	c.steps = nil
	c.mu.Unlock()
	for i := len(steps) - 1; i >= 0; i-- {
		steps[i]()
	}
}

func OpenRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

// CartBackends are the stores the cart service runs on. Redis is set only when
// the cart store uses it, so idempotency keys can share the connection.
type CartBackends struct {
	Carts       cartstore.CartStore
	Idempotency idempotency.Store
	Redis       *redis.Client
}

func OpenCartBackends(ctx context.Context, cfg config.Config, closer *Closer) (*CartBackends, error) {
	log := logging.Base()
	b := &CartBackends{}

	var primary cartstore.CartStore
	switch cfg.Cart.Store.Type {
	case cartstore.TypeRedis:
		client, err := OpenRedis(ctx, cfg)
		if err != nil {
			return nil, err
		}
		closer.Add(func() { client.Close() })
		b.Redis = client
		primary = cartstore.NewRedisStore(client, cfg.Cart.Store.TTL)
		log.Info("cart store: redis", "addr", cfg.Redis.Addr)

	case cartstore.TypeMongo:
		db, err := cartstore.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		closer.Add(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = db.Client().Disconnect(ctx)
		})
		store := cartstore.NewMongoStore(db, cfg.Cart.Store.TTL)
		if err := store.CreateIndexes(ctx); err != nil {
			return nil, err
		}
		primary = store
		log.Info("cart store: mongo", "database", cfg.Mongo.Database)

	default:
		mem := cartstore.NewMemoryStore(cfg.Cart.Store.TTL, cfg.Cart.Store.SweepInterval)
		closer.Add(func() { mem.Close() })
		primary = mem
		log.Info("cart store: memory")
	}

	b.Carts = primary
	if cfg.Cart.Store.FallbackToMemory && cfg.Cart.Store.Type != cartstore.TypeMemory {
		local := cartstore.NewMemoryStore(cfg.Cart.Store.TTL, cfg.Cart.Store.SweepInterval)
		closer.Add(func() { local.Close() })
		b.Carts = cartstore.NewFallbackStore(primary, local)
	}

	if cfg.Idempotency.Enabled {
		if b.Redis != nil {
			b.Idempotency = idempotency.NewRedisStore(b.Redis, cfg.Idempotency.TTL)
		} else {
			b.Idempotency = idempotency.NewMemoryStore(cfg.Idempotency.TTL)
		}
	}
	return b, nil
}

// OpenRepository connects the order ledger and brings its schema up to date.
func OpenRepository(cfg config.Config) (*repository.SQLRepository, error) {
	var repo *repository.SQLRepository
	var err error

	switch cfg.Database.Driver {
	case repository.DriverSQLite:
		repo, err = repository.NewSQLiteRepository(cfg.Database.SQLitePath)
	default:
		repo, err = repository.NewPostgresRepository(&repository.Credentials{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.Name,
			SSLMode:  cfg.Database.SSLMode,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := repo.RunMigrations(); err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return repo, nil
}

// NewEventSink returns nil when no broker is configured.
func NewEventSink(cfg config.Config) (publisher.EventSink, error) {
	switch cfg.Events.Broker {
	case config.BrokerKafka:
		return publisher.NewKafkaSink(cfg.Events.Kafka.Topic, cfg.Events.Kafka.Brokers...), nil
	case config.BrokerRabbitMQ:
		sink, err := publisher.NewRabbitSink(cfg.Events.RabbitMQ.URL, cfg.Events.RabbitMQ.Exchange)
		if err != nil {
			return nil, err
		}
		return sink, nil
	default:
		return nil, nil
	}
}

// StartOutbox runs the outbox poller until ctx is done. Without a broker the
// events stay in the table.
func StartOutbox(ctx context.Context, cfg config.Config, repo publisher.OutboxRepository, closer *Closer) error {
	sink, err := NewEventSink(cfg)
	if err != nil {
		return err
	}
	if sink == nil {
		logging.Base().Info("no event broker configured, outbox events are kept unpublished")
		return nil
	}

	pollCtx, cancel := context.WithCancel(ctx)
	poller := publisher.NewOutboxPoller(repo, sink, cfg.Events.PollInterval, cfg.Events.BatchSize)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Run(pollCtx)
	}()

	closer.Add(func() {
		cancel()
		wg.Wait()
		if err := sink.Close(); err != nil {
			logging.Base().Warn("failed to close event sink", "error", err)
		}
	})
	logging.Base().Info("outbox poller started", "broker", cfg.Events.Broker)
	return nil
}

// Serve runs the HTTP server until ctx is cancelled, then drains it.
func Serve(ctx context.Context, cfg config.Config, handler http.Handler, log *slog.Logger) error {
	srv := &http.Server{
		Addr:         cfg.App.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", "addr", cfg.App.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exited")
	return nil
}
