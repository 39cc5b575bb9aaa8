package treasury

import (
	"bytes"
	"strings"

	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LockOrder returns the two ids in the order their rows must be locked.
// Every multi-account operation locks in ascending id order.
func LockOrder(a, b uuid.UUID) (first, second uuid.UUID) {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return a, b
	}
	return b, a
}

// CanSettleBetween enforces who may hand custody cash to whom:
// a team leader settles to a supervisor, never the other way round.
func CanSettleBetween(from, to *CustodyAccount) error {
	if from.ID == to.ID {
		return shared.NewValidationError("SETTLEMENT_NOT_ALLOWED", "Cannot settle a custody account into itself")
	}
	if from.HolderType != HolderTypeTeamLeader {
		return shared.NewValidationError("SETTLEMENT_NOT_ALLOWED", "Only team leader custody can be settled to another custody")
	}
	if to.HolderType != HolderTypeSupervisor {
		return shared.NewValidationError("SETTLEMENT_NOT_ALLOWED", "Custody can only be settled to a supervisor")
	}
	return nil
}

// TransferBetweenVaults moves amount from one active vault to another
func TransferBetweenVaults(from, to *Vault, amount decimal.Decimal, notes string, by uuid.UUID) (*VaultTransaction, *VaultTransaction, error) {
	if from.ID == to.ID {
		return nil, nil, shared.NewValidationError("SAME_VAULT", "Source and destination vaults must differ")
	}
	if !amount.IsPositive() {
		return nil, nil, shared.NewValidationError("INVALID_AMOUNT", "Amount must be positive")
	}
	if err := from.EnsureActive(); err != nil {
		return nil, nil, err
	}
	if err := to.EnsureActive(); err != nil {
		return nil, nil, err
	}
	if amount.GreaterThan(from.Balance) {
		return nil, nil, shared.NewInsufficientBalanceError(from.Balance, amount)
	}

	out, err := from.Debit(TransactionTypeTransferOut, amount)
	if err != nil {
		return nil, nil, err
	}
	in, err := to.Credit(TransactionTypeTransferIn, amount)
	if err != nil {
		return nil, nil, err
	}

	notes = strings.TrimSpace(notes)
	out.WithCounterparty(AccountKindVault, to.ID).WithNotes(notes).WithCreatedBy(by)
	in.WithCounterparty(AccountKindVault, from.ID).WithNotes(notes).WithCreatedBy(by)
	from.AddDomainEvent(NewVaultTransferredEvent(from, to, amount, by))
	return out, in, nil
}

// SettleToVault drains custody cash into a vault. A frozen custody may be drained.
func SettleToVault(from *CustodyAccount, to *Vault, amount decimal.Decimal, notes string, by uuid.UUID) (*CustodyTransaction, *VaultTransaction, error) {
	if err := to.EnsureActive(); err != nil {
		return nil, nil, err
	}
	out, err := from.Debit(TransactionTypeSettlementOut, amount)
	if err != nil {
		return nil, nil, err
	}
	in, err := to.Credit(TransactionTypeSettlementIn, amount)
	if err != nil {
		return nil, nil, err
	}

	notes = strings.TrimSpace(notes)
	out.WithCounterparty(AccountKindVault, to.ID).WithNotes(notes).WithCreatedBy(by)
	in.WithCounterparty(AccountKindCustody, from.ID).WithNotes(notes).WithCreatedBy(by)
	from.AddDomainEvent(NewCustodySettledEvent(from, AccountKindVault, to.ID, amount))
	return out, in, nil
}

// SettleToCustody hands team leader cash to an active supervisor custody
func SettleToCustody(from, to *CustodyAccount, amount decimal.Decimal, notes string, by uuid.UUID) (*CustodyTransaction, *CustodyTransaction, error) {
	if err := CanSettleBetween(from, to); err != nil {
		return nil, nil, err
	}
	if err := to.EnsureActive(); err != nil {
		return nil, nil, err
	}
	out, err := from.Debit(TransactionTypeSettlementOut, amount)
	if err != nil {
		return nil, nil, err
	}
	in, err := to.Credit(TransactionTypeSettlementIn, amount)
	if err != nil {
		return nil, nil, err
	}

	notes = strings.TrimSpace(notes)
	out.WithCounterparty(AccountKindCustody, to.ID).WithNotes(notes).WithCreatedBy(by)
	in.WithCounterparty(AccountKindCustody, from.ID).WithNotes(notes).WithCreatedBy(by)
	from.AddDomainEvent(NewCustodySettledEvent(from, AccountKindCustody, to.ID, amount))
	return out, in, nil
}
