package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact about an invoice or an account, raised inside a
// transaction and published once it commits.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
}

// BaseDomainEvent is embedded by every concrete event. The JSON form is what
// the audit log writes.
type BaseDomainEvent struct {
	ID            uuid.UUID `json:"id"`
	Type          string    `json:"type"`
	At            time.Time `json:"occurred_at"`
	AggregateRef  uuid.UUID `json:"aggregate_id"`
	AggregateKind string    `json:"aggregate_type"`
}

func (e *BaseDomainEvent) EventID() uuid.UUID     { return e.ID }
func (e *BaseDomainEvent) EventType() string      { return e.Type }
func (e *BaseDomainEvent) OccurredAt() time.Time  { return e.At }
func (e *BaseDomainEvent) AggregateID() uuid.UUID { return e.AggregateRef }
func (e *BaseDomainEvent) AggregateType() string  { return e.AggregateKind }

// NewBaseDomainEvent stamps a new event of eventType for the given aggregate
func NewBaseDomainEvent(eventType, aggregateType string, aggregateID uuid.UUID) BaseDomainEvent {
	return BaseDomainEvent{
		ID:            uuid.New(),
		Type:          eventType,
		At:            time.Now().UTC(),
		AggregateRef:  aggregateID,
		AggregateKind: aggregateType,
	}
}
