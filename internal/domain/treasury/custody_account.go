package treasury

import (
	"fmt"
	"strings"
	"time"

	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HolderType is the role of the person holding a custody account
type HolderType string

const (
	HolderTypeTeamLeader HolderType = "team_leader"
	HolderTypeSupervisor HolderType = "supervisor"
)

// String returns the string representation of HolderType
func (h HolderType) String() string {
	return string(h)
}

// IsValid returns true if the holder type is valid
func (h HolderType) IsValid() bool {
	return h == HolderTypeTeamLeader || h == HolderTypeSupervisor
}

// CustodyAccount is a per-person ledger of field cash.
// An inactive account that still holds money is frozen: it can be drained
// by settlement or reversal but accepts no credits.
type CustodyAccount struct {
	shared.BaseAggregateRoot
	UserID     uuid.UUID
	HolderType HolderType
	TeamID     *uuid.UUID
	Balance    decimal.Decimal
	IsActive   bool
	DeletedAt  *time.Time
}

// NewCustodyAccount creates an active custody account with a zero balance
func NewCustodyAccount(userID uuid.UUID, holderType HolderType, teamID *uuid.UUID) (*CustodyAccount, error) {
	if userID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_USER", "User ID cannot be empty")
	}
	if !holderType.IsValid() {
		return nil, shared.NewValidationError("INVALID_HOLDER_TYPE", fmt.Sprintf("Invalid holder type: %s", holderType))
	}
	return &CustodyAccount{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		UserID:            userID,
		HolderType:        holderType,
		TeamID:            teamID,
		Balance:           decimal.Zero,
		IsActive:          true,
	}, nil
}

// IsFrozen returns true for an inactive account that still holds money
func (c *CustodyAccount) IsFrozen() bool {
	return !c.IsActive && c.Balance.IsPositive()
}

// IsDeleted returns true once the account has been soft-deleted
func (c *CustodyAccount) IsDeleted() bool {
	return c.DeletedAt != nil
}

// EnsureActive returns InvalidState unless the account can receive money
func (c *CustodyAccount) EnsureActive() error {
	if c.IsDeleted() {
		return shared.NewInvalidStateError("CUSTODY_DELETED", "Custody account has been deleted")
	}
	if c.IsFrozen() {
		return shared.NewInvalidStateError("CUSTODY_FROZEN", "Custody account is frozen and only accepts settlement")
	}
	if !c.IsActive {
		return shared.NewInvalidStateError("CUSTODY_INACTIVE", "Custody account is inactive")
	}
	return nil
}

// Activate reopens an inactive account. A frozen account must be drained first.
func (c *CustodyAccount) Activate() error {
	if c.IsDeleted() {
		return shared.NewInvalidStateError("CUSTODY_DELETED", "Custody account has been deleted")
	}
	if c.IsActive {
		return shared.NewInvalidStateError("INVALID_STATE", "Custody account is already active")
	}
	if c.Balance.IsPositive() {
		return shared.NewInvalidStateError("CUSTODY_FROZEN",
			fmt.Sprintf("Custody account is frozen with balance %s; settle it before reactivating", c.Balance.StringFixed(2)))
	}
	c.IsActive = true
	c.Touch()
	c.AddDomainEvent(NewCustodyStatusChangedEvent(c))
	return nil
}

// Deactivate closes the account. With a positive balance it becomes frozen.
func (c *CustodyAccount) Deactivate() error {
	if c.IsDeleted() {
		return shared.NewInvalidStateError("CUSTODY_DELETED", "Custody account has been deleted")
	}
	if !c.IsActive {
		return shared.NewInvalidStateError("INVALID_STATE", "Custody account is already inactive")
	}
	c.IsActive = false
	c.Touch()
	c.AddDomainEvent(NewCustodyStatusChangedEvent(c))
	return nil
}

// MarkDeleted soft-deletes an empty account. Its ledger rows are kept.
func (c *CustodyAccount) MarkDeleted(at time.Time) error {
	if c.IsDeleted() {
		return shared.NewInvalidStateError("CUSTODY_DELETED", "Custody account has been deleted")
	}
	if !c.Balance.IsZero() {
		return shared.NewInvalidStateError("CUSTODY_NOT_EMPTY",
			fmt.Sprintf("Cannot delete custody account with balance %s", c.Balance.StringFixed(2)))
	}
	c.IsActive = false
	c.DeletedAt = &at
	c.TouchAt(at)
	c.AddDomainEvent(NewCustodyStatusChangedEvent(c))
	return nil
}

// Credit adds amount and returns the ledger row. Only active accounts accept credits.
func (c *CustodyAccount) Credit(txType TransactionType, amount decimal.Decimal) (*CustodyTransaction, error) {
	if !txType.IsIncrease() {
		return nil, shared.NewValidationError("INVALID_TRANSACTION_TYPE", fmt.Sprintf("%s does not credit a custody account", txType))
	}
	if err := c.EnsureActive(); err != nil {
		return nil, err
	}
	return c.post(txType, amount, c.Balance.Add(amount))
}

// Debit subtracts amount and returns the ledger row. Frozen accounts may be debited.
func (c *CustodyAccount) Debit(txType TransactionType, amount decimal.Decimal) (*CustodyTransaction, error) {
	if !txType.IsDecrease() {
		return nil, shared.NewValidationError("INVALID_TRANSACTION_TYPE", fmt.Sprintf("%s does not debit a custody account", txType))
	}
	if c.IsDeleted() {
		return nil, shared.NewInvalidStateError("CUSTODY_DELETED", "Custody account has been deleted")
	}
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Amount must be positive")
	}
	if amount.GreaterThan(c.Balance) {
		return nil, shared.NewInsufficientBalanceError(c.Balance, amount)
	}
	return c.post(txType, amount, c.Balance.Sub(amount))
}

func (c *CustodyAccount) post(txType TransactionType, amount, after decimal.Decimal) (*CustodyTransaction, error) {
	entry, err := NewLedgerEntry(txType, amount, c.Balance, after)
	if err != nil {
		return nil, err
	}
	c.Balance = after
	c.Touch()
	return &CustodyTransaction{LedgerEntry: *entry, CustodyID: c.ID}, nil
}

// CollectForInvoice credits cash collected in the field
func (c *CustodyAccount) CollectForInvoice(invoiceID uuid.UUID, amount decimal.Decimal, by uuid.UUID) (*CustodyTransaction, error) {
	row, err := c.Credit(TransactionTypeCollection, amount)
	if err != nil {
		return nil, err
	}
	row.WithInvoice(invoiceID).WithCreatedBy(by)
	c.AddDomainEvent(NewCustodyCollectedEvent(c, invoiceID, amount))
	return row, nil
}

// AddFunds credits a manual float top-up
func (c *CustodyAccount) AddFunds(amount decimal.Decimal, notes string, by uuid.UUID) (*CustodyTransaction, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, shared.NewValidationError("INVALID_NOTES", "Notes are required when adding funds")
	}
	row, err := c.Credit(TransactionTypeAdd, amount)
	if err != nil {
		return nil, err
	}
	row.WithNotes(notes).WithCreatedBy(by)
	c.AddDomainEvent(NewCustodyAddedEvent(c, amount, notes))
	return row, nil
}

// Reverse debits a previous invoice collection
func (c *CustodyAccount) Reverse(invoiceID uuid.UUID, amount decimal.Decimal, reason string, by uuid.UUID) (*CustodyTransaction, error) {
	row, err := c.Debit(TransactionTypeReversal, amount)
	if err != nil {
		return nil, err
	}
	row.WithInvoice(invoiceID).WithNotes(reason).WithCreatedBy(by)
	return row, nil
}

// ResolveSettlementAmount returns the requested amount, or the whole balance when none was requested
func (c *CustodyAccount) ResolveSettlementAmount(requested *decimal.Decimal) (decimal.Decimal, error) {
	if requested == nil {
		if !c.Balance.IsPositive() {
			return decimal.Zero, shared.NewInvalidStateError("NOTHING_TO_SETTLE", "Custody account has no balance to settle")
		}
		return c.Balance, nil
	}
	if !requested.IsPositive() {
		return decimal.Zero, shared.NewValidationError("INVALID_AMOUNT", "Amount must be positive")
	}
	if requested.GreaterThan(c.Balance) {
		return decimal.Zero, shared.NewInsufficientBalanceError(c.Balance, *requested)
	}
	return *requested, nil
}
