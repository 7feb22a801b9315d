package event

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

// payloadBinding ties an outbox event type to the Go type its payload decodes into
type payloadBinding struct {
	goType reflect.Type
	decode func(data []byte) (shared.DomainEvent, error)
}

// EventSerializer turns ledger events into outbox payloads and back. Only
// bound event types are written, so whatever reaches the outbox table can
// be decoded by the processor.
type EventSerializer struct {
	mu       sync.RWMutex
	bindings map[string]payloadBinding
}

// NewEventSerializer creates a serializer with no event types bound
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{bindings: make(map[string]payloadBinding)}
}

// Bind ties eventTypes to the payload type E. Several event types may
// share one payload type; rebinding an event type to a different payload
// type panics.
func Bind[E any, P interface {
	*E
	shared.DomainEvent
}](s *EventSerializer, eventTypes ...string) {
	goType := reflect.TypeFor[E]()
	decode := func(data []byte) (shared.DomainEvent, error) {
		var payload E
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return P(&payload), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, eventType := range eventTypes {
		if existing, ok := s.bindings[eventType]; ok && existing.goType != goType {
			panic(fmt.Sprintf("event type %s is already bound to %s", eventType, existing.goType))
		}
		s.bindings[eventType] = payloadBinding{goType: goType, decode: decode}
	}
}

// Serialize encodes an event for the outbox. The event's type must be bound
// to its Go type.
func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	b, ok := s.binding(event.EventType())
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", event.EventType())
	}
	if got := reflect.TypeOf(event); got.Kind() != reflect.Pointer || got.Elem() != b.goType {
		return nil, fmt.Errorf("event type %s is carried by %s, not %T", event.EventType(), b.goType, event)
	}
	return json.Marshal(event)
}

// Deserialize decodes an outbox payload. The payload must carry an event id
// and the same event type as the outbox row it was stored under.
func (s *EventSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	b, ok := s.binding(eventType)
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
	event, err := b.decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s payload: %w", eventType, err)
	}
	if event.EventType() != eventType {
		return nil, fmt.Errorf("payload is a %q event but the outbox row says %s", event.EventType(), eventType)
	}
	if event.EventID() == uuid.Nil {
		return nil, fmt.Errorf("%s payload has no event id", eventType)
	}
	return event, nil
}

// IsRegistered reports whether eventType is bound
func (s *EventSerializer) IsRegistered(eventType string) bool {
	_, ok := s.binding(eventType)
	return ok
}

// RegisteredTypes returns the bound event types in name order
func (s *EventSerializer) RegisteredTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.bindings))
}

func (s *EventSerializer) binding(eventType string) (payloadBinding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bindings[eventType]
	return b, ok
}
