package event

import (
	"encoding/json"
	"fmt"

	"github.com/leadcrm/backend/internal/domain/invoicing"
	"github.com/leadcrm/backend/internal/domain/shared"
)

type decodeFunc func(data []byte) (shared.DomainEvent, error)

// EventSerializer encodes events as JSON and decodes them back to the concrete
// type registered for their event type. It is immutable once built.
type EventSerializer struct {
	decoders map[string]decodeFunc
}

// NewBillingEventSerializer knows every event the invoicing domain raises.
func NewBillingEventSerializer() *EventSerializer {
	s := &EventSerializer{decoders: make(map[string]decodeFunc, len(BillingEventTypes))}
	register[invoicing.InvoiceCreatedEvent](s, invoicing.EventTypeInvoiceCreated)
	register[invoicing.PaymentRecordedEvent](s, invoicing.EventTypePaymentRecorded)
	register[invoicing.InvoiceSettledEvent](s, invoicing.EventTypeInvoiceSettled)
	return s
}

// register decodes eventType payloads into a fresh *E.
func register[E any, P interface {
	*E
	shared.DomainEvent
}](s *EventSerializer, eventType string) {
	s.decoders[eventType] = func(data []byte) (shared.DomainEvent, error) {
		ev := P(new(E))
		if err := json.Unmarshal(data, ev); err != nil {
			return nil, err
		}
		return ev, nil
	}
}

func (s *EventSerializer) Serialize(ev shared.DomainEvent) ([]byte, error) {
	return json.Marshal(ev)
}

func (s *EventSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	decode, ok := s.decoders[eventType]
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
	ev, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s event: %w", eventType, err)
	}
	return ev, nil
}

func (s *EventSerializer) IsRegistered(eventType string) bool {
	_, ok := s.decoders[eventType]
	return ok
}
