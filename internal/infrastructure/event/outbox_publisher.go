package event

import (
	"context"

	"gorm.io/gorm"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

// OutboxPublisher publishes domain events to the outbox within a transaction
type OutboxPublisher struct {
	serializer *EventSerializer
	maxRetries int
}

// OutboxPublisherOption configures an OutboxPublisher
type OutboxPublisherOption func(*OutboxPublisher)

// WithMaxRetries sets the delivery attempts an entry gets before it becomes a dead letter
func WithMaxRetries(n int) OutboxPublisherOption {
	return func(p *OutboxPublisher) {
		if n > 0 {
			p.maxRetries = n
		}
	}
}

// NewOutboxPublisher creates a new outbox publisher
func NewOutboxPublisher(serializer *EventSerializer, opts ...OutboxPublisherOption) *OutboxPublisher {
	p := &OutboxPublisher{
		serializer: serializer,
		maxRetries: shared.DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PublishWithTx publishes events to the outbox within the provided transaction.
// This ensures events are persisted atomically with the ledger changes.
func (p *OutboxPublisher) PublishWithTx(ctx context.Context, tx *gorm.DB, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	entries := make([]*shared.OutboxEntry, 0, len(events))
	for _, event := range events {
		payload, err := p.serializer.Serialize(event)
		if err != nil {
			return err
		}
		entry := shared.NewOutboxEntry(event, payload)
		entry.MaxRetries = p.maxRetries
		entries = append(entries, entry)
	}

	return NewGormOutboxRepository(tx).Save(ctx, entries...)
}

// Writer binds the publisher to a transaction
func (p *OutboxPublisher) Writer(tx *gorm.DB) shared.OutboxWriter {
	return &txOutboxWriter{publisher: p, tx: tx}
}

type txOutboxWriter struct {
	publisher *OutboxPublisher
	tx        *gorm.DB
}

func (w *txOutboxWriter) Write(ctx context.Context, events ...shared.DomainEvent) error {
	return w.publisher.PublishWithTx(ctx, w.tx, events...)
}
