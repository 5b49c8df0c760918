package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fjod/tableside/internal/app"
	"github.com/fjod/tableside/internal/client"
	"github.com/fjod/tableside/internal/config"
	h "github.com/fjod/tableside/internal/http"
	"github.com/fjod/tableside/internal/logging"
	"github.com/fjod/tableside/internal/service"
)

func main() {
	configPath := flag.String("config", os.Getenv("TABLESIDE_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load("cart-service", *configPath)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logging.Init(cfg.App.Name, app.LogOptions(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	closer := &app.Closer{}
	defer closer.Close()

	backends, err := app.OpenCartBackends(ctx, cfg, closer)
	if err != nil {
		log.Error("failed to open cart store", "error", err)
		os.Exit(1)
	}

	var creator service.OrderCreator
	switch cfg.Orders.Mode {
	case config.OrdersModeEmbedded:
		repo, err := app.OpenRepository(cfg)
		if err != nil {
			log.Error("failed to open order ledger", "error", err)
			closer.Close()
			os.Exit(1)
		}
		closer.Add(func() { repo.Close() })
		if err := app.StartOutbox(ctx, cfg, repo, closer); err != nil {
			log.Error("failed to start outbox poller", "error", err)
			closer.Close()
			os.Exit(1)
		}
		creator = service.NewLedgerOrderCreator(service.NewOrderService(repo))
		log.Info("orders: embedded ledger", "driver", cfg.Database.Driver)
	default:
		creator = client.NewOrdersClient(cfg.Orders.BaseURL, cfg.Orders.Timeout)
		log.Info("orders: remote", "base_url", cfg.Orders.BaseURL)
	}

	carts := service.NewCartService(backends.Carts)
	checkout := service.NewCheckoutService(
		backends.Carts,
		service.NewOrderCreatorHandler(creator, cfg.Orders.Timeout),
		backends.Idempotency,
	)
	cartHandler := h.NewCartHandler(carts, checkout, cfg.HTTP.RequestTimeout)

	if err := app.Serve(ctx, cfg, h.NewCartRouter(cartHandler, log, cfg.HTTP.RequestTimeout), log); err != nil {
		log.Error("cart service stopped", "error", err)
		closer.Close()
		os.Exit(1)
	}
}
