package treasury

import (
	"fmt"
	"time"

	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType is the kind of a ledger row
type TransactionType string

const (
	// TransactionTypeDeposit is a manual vault deposit (increase)
	TransactionTypeDeposit TransactionType = "deposit"
	// TransactionTypeWithdrawal is a manual vault withdrawal (decrease)
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	// TransactionTypeTransferIn is the receiving side of a vault transfer (increase)
	TransactionTypeTransferIn TransactionType = "transfer_in"
	// TransactionTypeTransferOut is the sending side of a vault transfer (decrease)
	TransactionTypeTransferOut TransactionType = "transfer_out"
	// TransactionTypeCollection is money received against an invoice (increase)
	TransactionTypeCollection TransactionType = "collection"
	// TransactionTypeSettlementIn is custody cash received by a vault or supervisor (increase)
	TransactionTypeSettlementIn TransactionType = "settlement_in"
	// TransactionTypeSettlementOut is custody cash handed over (decrease)
	TransactionTypeSettlementOut TransactionType = "settlement_out"
	// TransactionTypeAdd is a manual custody float top-up (increase)
	TransactionTypeAdd TransactionType = "add"
	// TransactionTypeReversal undoes a collection when its invoice is cancelled (decrease)
	TransactionTypeReversal TransactionType = "reversal"
)

// AllTransactionTypes lists every ledger row type
var AllTransactionTypes = []TransactionType{
	TransactionTypeDeposit,
	TransactionTypeWithdrawal,
	TransactionTypeTransferIn,
	TransactionTypeTransferOut,
	TransactionTypeCollection,
	TransactionTypeSettlementIn,
	TransactionTypeSettlementOut,
	TransactionTypeAdd,
	TransactionTypeReversal,
}

// String returns the string representation of TransactionType
func (t TransactionType) String() string {
	return string(t)
}

// IsValid returns true if the transaction type is valid
func (t TransactionType) IsValid() bool {
	return t.IsIncrease() || t.IsDecrease()
}

// IsIncrease returns true if rows of this type add to the balance
func (t TransactionType) IsIncrease() bool {
	switch t {
	case TransactionTypeDeposit,
		TransactionTypeTransferIn,
		TransactionTypeCollection,
		TransactionTypeSettlementIn,
		TransactionTypeAdd:
		return true
	}
	return false
}

// IsDecrease returns true if rows of this type subtract from the balance
func (t TransactionType) IsDecrease() bool {
	switch t {
	case TransactionTypeWithdrawal,
		TransactionTypeTransferOut,
		TransactionTypeSettlementOut,
		TransactionTypeReversal:
		return true
	}
	return false
}

// IncreaseTypes returns the types that add to a balance
func IncreaseTypes() []TransactionType {
	out := make([]TransactionType, 0, len(AllTransactionTypes))
	for _, t := range AllTransactionTypes {
		if t.IsIncrease() {
			out = append(out, t)
		}
	}
	return out
}

// AccountKind tells the two ledgers apart
type AccountKind string

const (
	AccountKindVault   AccountKind = "vault"
	AccountKindCustody AccountKind = "custody"
)

// String returns the string representation of AccountKind
func (k AccountKind) String() string {
	return string(k)
}

// LedgerEntry is an immutable record of one balance change.
// Amount is always positive; the direction comes from the type.
// Corrections are made with new rows, never by editing old ones.
type LedgerEntry struct {
	shared.BaseEntity
	Type             TransactionType
	Amount           decimal.Decimal
	BalanceBefore    decimal.Decimal
	BalanceAfter     decimal.Decimal
	InvoiceID        *uuid.UUID
	CounterpartyType AccountKind
	CounterpartyID   *uuid.UUID
	Notes            string
	Metadata         map[string]any
	CreatedBy        *uuid.UUID
}

// NewLedgerEntry validates the amounts against the type and builds the row
func NewLedgerEntry(txType TransactionType, amount, balanceBefore, balanceAfter decimal.Decimal) (*LedgerEntry, error) {
	if !txType.IsValid() {
		return nil, shared.NewValidationError("INVALID_TRANSACTION_TYPE", fmt.Sprintf("Invalid transaction type: %s", txType))
	}
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Amount must be positive")
	}
	if balanceBefore.IsNegative() || balanceAfter.IsNegative() {
		return nil, shared.NewValidationError("INVALID_BALANCE", "Balance cannot be negative")
	}
	expected := balanceBefore.Add(amount)
	if txType.IsDecrease() {
		expected = balanceBefore.Sub(amount)
	}
	if !expected.Equal(balanceAfter) {
		return nil, shared.NewValidationError("INVALID_BALANCE",
			fmt.Sprintf("Balance after %s does not match %s %s on %s", balanceAfter, txType, amount, balanceBefore))
	}

	return &LedgerEntry{
		BaseEntity:    shared.NewBaseEntity(),
		Type:          txType,
		Amount:        amount,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
	}, nil
}

// WithInvoice links the row to the invoice it was posted for
func (e *LedgerEntry) WithInvoice(invoiceID uuid.UUID) *LedgerEntry {
	e.InvoiceID = &invoiceID
	return e
}

// WithCounterparty records the account on the other side of the movement
func (e *LedgerEntry) WithCounterparty(kind AccountKind, id uuid.UUID) *LedgerEntry {
	e.CounterpartyType = kind
	e.CounterpartyID = &id
	return e
}

// WithNotes sets the notes
func (e *LedgerEntry) WithNotes(notes string) *LedgerEntry {
	e.Notes = notes
	return e
}

// WithMetadata merges key/value pairs into the row metadata
func (e *LedgerEntry) WithMetadata(kv map[string]any) *LedgerEntry {
	if len(kv) == 0 {
		return e
	}
	if e.Metadata == nil {
		e.Metadata = make(map[string]any, len(kv))
	}
	for k, v := range kv {
		e.Metadata[k] = v
	}
	return e
}

// WithCreatedBy records the acting user
func (e *LedgerEntry) WithCreatedBy(userID uuid.UUID) *LedgerEntry {
	if userID != uuid.Nil {
		e.CreatedBy = &userID
	}
	return e
}

// WithCreatedAt overrides the row timestamp
func (e *LedgerEntry) WithCreatedAt(at time.Time) *LedgerEntry {
	e.CreatedAt = at
	e.UpdatedAt = at
	return e
}

// GetSignedAmount returns the amount, negated for decreasing types
func (e *LedgerEntry) GetSignedAmount() decimal.Decimal {
	if e.Type.IsDecrease() {
		return e.Amount.Neg()
	}
	return e.Amount
}

// VaultTransaction is a row of a vault ledger
type VaultTransaction struct {
	LedgerEntry
	VaultID uuid.UUID
}

// CustodyTransaction is a row of a custody ledger
type CustodyTransaction struct {
	LedgerEntry
	CustodyID uuid.UUID
}

// SignedSum folds entries into the balance they imply
func SignedSum(entries []LedgerEntry) decimal.Decimal {
	sum := decimal.Zero
	for i := range entries {
		sum = sum.Add(entries[i].GetSignedAmount())
	}
	return sum
}

// ChainBreak is a row whose BalanceBefore does not equal the previous row's BalanceAfter
type ChainBreak struct {
	EntryID  uuid.UUID
	Expected decimal.Decimal
	Actual   decimal.Decimal
}

// VerifyChain checks that entries, in posting order, form an unbroken balance chain
// starting at zero.
func VerifyChain(entries []LedgerEntry) []ChainBreak {
	var breaks []ChainBreak
	prev := decimal.Zero
	for i := range entries {
		e := entries[i]
		if !e.BalanceBefore.Equal(prev) {
			breaks = append(breaks, ChainBreak{EntryID: e.ID, Expected: prev, Actual: e.BalanceBefore})
		}
		prev = e.BalanceAfter
	}
	return breaks
}
