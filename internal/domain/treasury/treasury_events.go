package treasury

import (
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type names used in treasury events
const (
	AggregateTypeVault   = "Vault"
	AggregateTypeCustody = "CustodyAccount"
)

// Event type names
const (
	EventTypeVaultAdjusted        = "vault.adjusted"
	EventTypeVaultTransferred     = "vault.transferred"
	EventTypeCustodyCollected     = "custody.collected"
	EventTypeCustodySettled       = "custody.settled"
	EventTypeCustodyAdded         = "custody.added"
	EventTypeCustodyStatusChanged = "custody.status_changed"
)

// TreasuryEventTypes lists every vault and custody event type
var TreasuryEventTypes = []string{
	EventTypeVaultAdjusted,
	EventTypeVaultTransferred,
	EventTypeCustodyCollected,
	EventTypeCustodySettled,
	EventTypeCustodyAdded,
	EventTypeCustodyStatusChanged,
}

// VaultAdjustedEvent is raised on a manual deposit or withdrawal
type VaultAdjustedEvent struct {
	shared.BaseDomainEvent
	VaultID      uuid.UUID       `json:"vault_id"`
	Type         TransactionType `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	Notes        string          `json:"notes"`
}

// EventType returns the event type name
func (e *VaultAdjustedEvent) EventType() string {
	return EventTypeVaultAdjusted
}

// NewVaultAdjustedEvent creates a new VaultAdjustedEvent
func NewVaultAdjustedEvent(v *Vault, row *VaultTransaction) *VaultAdjustedEvent {
	return &VaultAdjustedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeVaultAdjusted, AggregateTypeVault, v.ID),
		VaultID:         v.ID,
		Type:            row.Type,
		Amount:          row.Amount,
		BalanceAfter:    row.BalanceAfter,
		Notes:           row.Notes,
	}
}

// VaultTransferredEvent is raised on the source vault of a transfer
type VaultTransferredEvent struct {
	shared.BaseDomainEvent
	FromVaultID uuid.UUID       `json:"from_vault_id"`
	ToVaultID   uuid.UUID       `json:"to_vault_id"`
	Amount      decimal.Decimal `json:"amount"`
	PerformedBy uuid.UUID       `json:"performed_by"`
}

// EventType returns the event type name
func (e *VaultTransferredEvent) EventType() string {
	return EventTypeVaultTransferred
}

// NewVaultTransferredEvent creates a new VaultTransferredEvent
func NewVaultTransferredEvent(from, to *Vault, amount decimal.Decimal, by uuid.UUID) *VaultTransferredEvent {
	return &VaultTransferredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeVaultTransferred, AggregateTypeVault, from.ID),
		FromVaultID:     from.ID,
		ToVaultID:       to.ID,
		Amount:          amount,
		PerformedBy:     by,
	}
}

// CustodyCollectedEvent is raised when field cash for an invoice enters a custody
type CustodyCollectedEvent struct {
	shared.BaseDomainEvent
	CustodyID    uuid.UUID       `json:"custody_id"`
	InvoiceID    uuid.UUID       `json:"invoice_id"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
}

// EventType returns the event type name
func (e *CustodyCollectedEvent) EventType() string {
	return EventTypeCustodyCollected
}

// NewCustodyCollectedEvent creates a new CustodyCollectedEvent
func NewCustodyCollectedEvent(c *CustodyAccount, invoiceID uuid.UUID, amount decimal.Decimal) *CustodyCollectedEvent {
	return &CustodyCollectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCustodyCollected, AggregateTypeCustody, c.ID),
		CustodyID:       c.ID,
		InvoiceID:       invoiceID,
		Amount:          amount,
		BalanceAfter:    c.Balance,
	}
}

// CustodySettledEvent is raised on the source custody of a settlement
type CustodySettledEvent struct {
	shared.BaseDomainEvent
	CustodyID    uuid.UUID       `json:"custody_id"`
	TargetKind   AccountKind     `json:"target_kind"`
	TargetID     uuid.UUID       `json:"target_id"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
}

// EventType returns the event type name
func (e *CustodySettledEvent) EventType() string {
	return EventTypeCustodySettled
}

// NewCustodySettledEvent creates a new CustodySettledEvent
func NewCustodySettledEvent(c *CustodyAccount, kind AccountKind, targetID uuid.UUID, amount decimal.Decimal) *CustodySettledEvent {
	return &CustodySettledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCustodySettled, AggregateTypeCustody, c.ID),
		CustodyID:       c.ID,
		TargetKind:      kind,
		TargetID:        targetID,
		Amount:          amount,
		BalanceAfter:    c.Balance,
	}
}

// CustodyAddedEvent is raised on a manual float top-up
type CustodyAddedEvent struct {
	shared.BaseDomainEvent
	CustodyID    uuid.UUID       `json:"custody_id"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	Notes        string          `json:"notes"`
}

// EventType returns the event type name
func (e *CustodyAddedEvent) EventType() string {
	return EventTypeCustodyAdded
}

// NewCustodyAddedEvent creates a new CustodyAddedEvent
func NewCustodyAddedEvent(c *CustodyAccount, amount decimal.Decimal, notes string) *CustodyAddedEvent {
	return &CustodyAddedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCustodyAdded, AggregateTypeCustody, c.ID),
		CustodyID:       c.ID,
		Amount:          amount,
		BalanceAfter:    c.Balance,
		Notes:           notes,
	}
}

// CustodyStatusChangedEvent is raised on activation, deactivation and deletion
type CustodyStatusChangedEvent struct {
	shared.BaseDomainEvent
	CustodyID uuid.UUID       `json:"custody_id"`
	UserID    uuid.UUID       `json:"user_id"`
	IsActive  bool            `json:"is_active"`
	IsFrozen  bool            `json:"is_frozen"`
	IsDeleted bool            `json:"is_deleted"`
	Balance   decimal.Decimal `json:"balance"`
}

// EventType returns the event type name
func (e *CustodyStatusChangedEvent) EventType() string {
	return EventTypeCustodyStatusChanged
}

// NewCustodyStatusChangedEvent creates a new CustodyStatusChangedEvent
func NewCustodyStatusChangedEvent(c *CustodyAccount) *CustodyStatusChangedEvent {
	return &CustodyStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCustodyStatusChanged, AggregateTypeCustody, c.ID),
		CustodyID:       c.ID,
		UserID:          c.UserID,
		IsActive:        c.IsActive,
		IsFrozen:        c.IsFrozen(),
		IsDeleted:       c.IsDeleted(),
		Balance:         c.Balance,
	}
}
