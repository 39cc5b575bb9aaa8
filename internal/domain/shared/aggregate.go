package shared

import "time"

// AggregateRoot is an entity that guards its own invariants, carries an
// optimistic version and collects events until they are published.
type AggregateRoot interface {
	Entity
	GetVersion() int
	IncrementVersion()
	AddDomainEvent(event DomainEvent)
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot is embedded by Invoice, Vault and CustodyAccount
type BaseAggregateRoot struct {
	BaseEntity
	Version int `gorm:"not null;default:1"`
	pending []DomainEvent
}

func (a *BaseAggregateRoot) GetVersion() int   { return a.Version }
func (a *BaseAggregateRoot) IncrementVersion() { a.Version++ }

// Touch records a state change: UpdatedAt moves forward and the version is
// bumped so the next compare-and-swap sees the write.
func (a *BaseAggregateRoot) Touch() {
	a.TouchAt(time.Now())
}

// TouchAt is Touch with the caller's clock
func (a *BaseAggregateRoot) TouchAt(at time.Time) {
	a.BaseEntity.TouchAt(at)
	a.IncrementVersion()
}

func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.pending = append(a.pending, event)
}

// GetDomainEvents returns the events raised since the last clear
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent { return a.pending }

func (a *BaseAggregateRoot) ClearDomainEvents() { a.pending = nil }

// NewBaseAggregateRoot starts a new aggregate at version 1
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity(), Version: 1}
}
