package treasury

import (
	"fmt"
	"strings"

	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VaultType represents the kind of organization account
type VaultType string

const (
	VaultTypeMain   VaultType = "main"
	VaultTypeBranch VaultType = "branch"
	VaultTypeBank   VaultType = "bank"
)

// String returns the string representation of VaultType
func (t VaultType) String() string {
	return string(t)
}

// IsValid returns true if the vault type is valid
func (t VaultType) IsValid() bool {
	switch t {
	case VaultTypeMain, VaultTypeBranch, VaultTypeBank:
		return true
	}
	return false
}

// Vault is an organization-level cash or bank account.
// Balance only moves through the ledger-producing methods below.
type Vault struct {
	shared.BaseAggregateRoot
	Name     string
	NameAr   string
	Type     VaultType
	Balance  decimal.Decimal
	IsActive bool
}

// NewVault creates an active vault with a zero balance
func NewVault(name, nameAr string, vaultType VaultType) (*Vault, error) {
	v := &Vault{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Balance:           decimal.Zero,
		IsActive:          true,
	}
	if err := v.Rename(name, nameAr); err != nil {
		return nil, err
	}
	if err := v.SetType(vaultType); err != nil {
		return nil, err
	}
	return v, nil
}

// Rename sets the display names
func (v *Vault) Rename(name, nameAr string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewValidationError("INVALID_NAME", "Vault name cannot be empty")
	}
	if len(name) > 100 {
		return shared.NewValidationError("INVALID_NAME", "Vault name cannot exceed 100 characters")
	}
	v.Name = name
	v.NameAr = strings.TrimSpace(nameAr)
	v.Touch()
	return nil
}

// SetType changes the vault type
func (v *Vault) SetType(vaultType VaultType) error {
	if !vaultType.IsValid() {
		return shared.NewValidationError("INVALID_VAULT_TYPE", fmt.Sprintf("Invalid vault type: %s", vaultType))
	}
	v.Type = vaultType
	v.Touch()
	return nil
}

// SetActive activates or deactivates the vault
func (v *Vault) SetActive(active bool) {
	if v.IsActive == active {
		return
	}
	v.IsActive = active
	v.Touch()
}

// EnsureActive returns InvalidState for an inactive vault
func (v *Vault) EnsureActive() error {
	if !v.IsActive {
		return shared.NewInvalidStateError("VAULT_INACTIVE", fmt.Sprintf("Vault %s is inactive", v.Name))
	}
	return nil
}

// Credit adds amount and returns the ledger row describing the change
func (v *Vault) Credit(txType TransactionType, amount decimal.Decimal) (*VaultTransaction, error) {
	if !txType.IsIncrease() {
		return nil, shared.NewValidationError("INVALID_TRANSACTION_TYPE", fmt.Sprintf("%s does not credit a vault", txType))
	}
	if err := v.EnsureActive(); err != nil {
		return nil, err
	}
	return v.post(txType, amount, v.Balance.Add(amount))
}

// Debit subtracts amount and returns the ledger row describing the change.
// Debits are allowed on inactive vaults so reversals can still drain them.
func (v *Vault) Debit(txType TransactionType, amount decimal.Decimal) (*VaultTransaction, error) {
	if !txType.IsDecrease() {
		return nil, shared.NewValidationError("INVALID_TRANSACTION_TYPE", fmt.Sprintf("%s does not debit a vault", txType))
	}
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Amount must be positive")
	}
	if amount.GreaterThan(v.Balance) {
		return nil, shared.NewInsufficientBalanceError(v.Balance, amount)
	}
	return v.post(txType, amount, v.Balance.Sub(amount))
}

func (v *Vault) post(txType TransactionType, amount, after decimal.Decimal) (*VaultTransaction, error) {
	entry, err := NewLedgerEntry(txType, amount, v.Balance, after)
	if err != nil {
		return nil, err
	}
	v.Balance = after
	v.Touch()
	return &VaultTransaction{LedgerEntry: *entry, VaultID: v.ID}, nil
}

// Deposit credits a manual deposit
func (v *Vault) Deposit(amount decimal.Decimal, notes string, by uuid.UUID) (*VaultTransaction, error) {
	return v.adjust(TransactionTypeDeposit, amount, notes, by)
}

// Withdraw debits a manual withdrawal. The vault must be active.
func (v *Vault) Withdraw(amount decimal.Decimal, notes string, by uuid.UUID) (*VaultTransaction, error) {
	return v.adjust(TransactionTypeWithdrawal, amount, notes, by)
}

func (v *Vault) adjust(txType TransactionType, amount decimal.Decimal, notes string, by uuid.UUID) (*VaultTransaction, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, shared.NewValidationError("INVALID_NOTES", "Notes are required for a manual adjustment")
	}
	if err := v.EnsureActive(); err != nil {
		return nil, err
	}

	var (
		row *VaultTransaction
		err error
	)
	if txType.IsIncrease() {
		row, err = v.Credit(txType, amount)
	} else {
		row, err = v.Debit(txType, amount)
	}
	if err != nil {
		return nil, err
	}
	row.WithNotes(notes).WithCreatedBy(by)
	v.AddDomainEvent(NewVaultAdjustedEvent(v, row))
	return row, nil
}

// CollectForInvoice credits a reviewed digital payment
func (v *Vault) CollectForInvoice(invoiceID uuid.UUID, amount decimal.Decimal, by uuid.UUID) (*VaultTransaction, error) {
	row, err := v.Credit(TransactionTypeCollection, amount)
	if err != nil {
		return nil, err
	}
	row.WithInvoice(invoiceID).WithCreatedBy(by)
	return row, nil
}

// Reverse debits a previous invoice collection
func (v *Vault) Reverse(invoiceID uuid.UUID, amount decimal.Decimal, reason string, by uuid.UUID) (*VaultTransaction, error) {
	row, err := v.Debit(TransactionTypeReversal, amount)
	if err != nil {
		return nil, err
	}
	row.WithInvoice(invoiceID).WithNotes(reason).WithCreatedBy(by)
	return row, nil
}
