package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity is anything with an identity and audit timestamps
type Entity interface {
	GetID() uuid.UUID
	GetCreatedAt() time.Time
	GetUpdatedAt() time.Time
}

// BaseEntity carries the id and timestamps shared by invoices, items,
// accounts and ledger rows. Timestamps are kept in UTC.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (e *BaseEntity) GetID() uuid.UUID        { return e.ID }
func (e *BaseEntity) GetCreatedAt() time.Time { return e.CreatedAt }
func (e *BaseEntity) GetUpdatedAt() time.Time { return e.UpdatedAt }

// Touch stamps UpdatedAt with the current time
func (e *BaseEntity) Touch() {
	e.TouchAt(time.Now())
}

// TouchAt stamps UpdatedAt with at
func (e *BaseEntity) TouchAt(at time.Time) {
	e.UpdatedAt = at.UTC()
}

// NewBaseEntity assigns a fresh id and stamps both timestamps
func NewBaseEntity() BaseEntity {
	now := time.Now().UTC()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}
