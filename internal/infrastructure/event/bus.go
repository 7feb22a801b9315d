package event

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

// subscription is one handler and the event types it asked for; no types
// means every event
type subscription struct {
	handler shared.EventHandler
	types   map[string]struct{}
}

func (s subscription) wants(eventType string) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[eventType]
	return ok
}

// InMemoryEventBus hands outbox events to the ledger's handlers in the
// process. Handlers run in the order they subscribed.
type InMemoryEventBus struct {
	mu            sync.RWMutex
	subscriptions []subscription
	logger        *zap.Logger
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryEventBus{logger: logger}
}

// Publish dispatches events to their handlers synchronously.
// Every handler runs even when an earlier one fails; the failures are joined
// so the outbox processor can schedule a retry.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	var errs []error
	for _, event := range events {
		for _, handler := range b.handlersFor(event.EventType()) {
			if err := b.dispatch(ctx, handler, event); err != nil {
				b.logger.Error("handler failed to process event",
					zap.String("event_type", event.EventType()),
					zap.String("event_id", event.EventID().String()),
					zap.String("tenant_id", event.TenantID().String()),
					zap.String("aggregate_id", event.AggregateID().String()),
					zap.Error(err),
				)
				errs = append(errs, fmt.Errorf("%s %s: %w", event.EventType(), event.EventID(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Subscribe registers a handler for eventTypes, or for the handler's own
// EventTypes when none are given. Subscribing a handler again adds to its
// types instead of delivering twice.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.subscriptions {
		sub := &b.subscriptions[i]
		if sub.handler != handler {
			continue
		}
		if len(eventTypes) == 0 {
			sub.types = nil
		} else if len(sub.types) > 0 {
			for _, t := range eventTypes {
				sub.types[t] = struct{}{}
			}
		}
		return
	}

	sub := subscription{handler: handler}
	if len(eventTypes) > 0 {
		sub.types = make(map[string]struct{}, len(eventTypes))
		for _, t := range eventTypes {
			sub.types[t] = struct{}{}
		}
	}
	b.subscriptions = append(b.subscriptions, sub)
	b.logger.Debug("handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.subscriptions[:0]
	for _, sub := range b.subscriptions {
		if sub.handler != handler {
			kept = append(kept, sub)
		}
	}
	clear(b.subscriptions[len(kept):])
	b.subscriptions = kept
	b.logger.Debug("handler unsubscribed")
}

// Start starts the event bus
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.logger.Info("event bus started", zap.Int("handlers", b.handlerCount()))
	return nil
}

// Stop stops the event bus. Publish is synchronous, so nothing is in flight
// once the outbox processor has stopped.
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.logger.Info("event bus stopped")
	return nil
}

func (b *InMemoryEventBus) handlersFor(eventType string) []shared.EventHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []shared.EventHandler
	for _, sub := range b.subscriptions {
		if sub.wants(eventType) {
			out = append(out, sub.handler)
		}
	}
	return out
}

func (b *InMemoryEventBus) handlerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions)
}

// dispatch runs one handler, turning a panic into an error
func (b *InMemoryEventBus) dispatch(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked",
				zap.String("event_type", event.EventType()),
				zap.Any("panic", r),
			)
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	return handler.Handle(ctx, event)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
