package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fjod/tableside/internal/app"
	"github.com/fjod/tableside/internal/config"
	h "github.com/fjod/tableside/internal/http"
	"github.com/fjod/tableside/internal/logging"
	"github.com/fjod/tableside/internal/service"
)

func main() {
	configPath := flag.String("config", os.Getenv("TABLESIDE_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load("orders-service", *configPath)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logging.Init(cfg.App.Name, app.LogOptions(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	closer := &app.Closer{}
	defer closer.Close()

	repo, err := app.OpenRepository(cfg)
	if err != nil {
		log.Error("failed to open order ledger", "error", err)
		os.Exit(1)
	}
	closer.Add(func() { repo.Close() })
	log.Info("database migrations completed", "driver", cfg.Database.Driver)

	if err := app.StartOutbox(ctx, cfg, repo, closer); err != nil {
		log.Error("failed to start outbox poller", "error", err)
		closer.Close()
		os.Exit(1)
	}

	ordersHandler := h.NewOrdersHandler(service.NewOrderService(repo), cfg.HTTP.RequestTimeout)

	if err := app.Serve(ctx, cfg, h.NewOrdersRouter(ordersHandler, log, cfg.HTTP.RequestTimeout), log); err != nil {
		log.Error("orders service stopped", "error", err)
		closer.Close()
		os.Exit(1)
	}
}
