package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/fjod/tableside/internal/logging"
	"github.com/fjod/tableside/internal/repository"
)

// OutboxRepository is the part of the order repository the poller needs.
type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*repository.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

// EventSink delivers one outbox event to a broker.
type EventSink interface {
	Publish(ctx context.Context, event *repository.OutboxEvent) error
	Close() error
}

// OutboxPoller relays order events recorded by the repository to a broker.
// Delivery is at-least-once: an event is marked processed only after the
// broker accepted it.
type OutboxPoller struct {
	repo      OutboxRepository
	sink      EventSink
	interval  time.Duration
	batchSize int
	timeout   time.Duration
	log       *slog.Logger
}

func NewOutboxPoller(repo OutboxRepository, sink EventSink, interval time.Duration, batchSize int) *OutboxPoller {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxPoller{
		repo:      repo,
		sink:      sink,
		interval:  interval,
		batchSize: batchSize,
		timeout:   5 * time.Second,
		log:       logging.Base().With("worker", "outbox_poller"),
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// processUnpublishedEvents stops at the first failed publish so that events of
// one order never overtake each other.
func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) int {
	events, err := p.repo.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		p.log.Error("failed to fetch outbox events", "error", err)
		return 0
	}

	published := 0
	for _, event := range events {
		pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err := p.sink.Publish(pubCtx, event)
		cancel()
		if err != nil {
			p.log.Warn("failed to publish event", "event_id", event.ID, "event_type", event.EventType, "error", err)
			return published
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			// it will be published again on the next tick
			p.log.Error("failed to mark event as processed", "event_id", event.ID, "error", err)
			return published
		}
		published++
	}
	if published > 0 {
		p.log.Debug("outbox events published", "count", published)
	}
	return published
}
