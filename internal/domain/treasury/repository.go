package treasury

import (
	"context"
	"time"

	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VaultFilter narrows vault listings
type VaultFilter struct {
	shared.Filter
	Type     *VaultType
	IsActive *bool
}

// CustodyFilter narrows custody listings
type CustodyFilter struct {
	shared.Filter
	HolderType *HolderType
	TeamID     *uuid.UUID
	IsActive   *bool
}

// LedgerFilter narrows ledger listings
type LedgerFilter struct {
	shared.Filter
	Type      *TransactionType
	InvoiceID *uuid.UUID
	DateFrom  *time.Time
	DateTo    *time.Time
}

// VaultRepository persists vaults
type VaultRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Vault, error)
	// FindByIDForUpdate loads the vault and locks its row until the transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Vault, error)
	FindAll(ctx context.Context, filter VaultFilter) ([]Vault, int64, error)
	// ListAll returns every vault, active or not
	ListAll(ctx context.Context) ([]Vault, error)
	Create(ctx context.Context, vault *Vault) error
	Save(ctx context.Context, vault *Vault) error
}

// CustodyAccountRepository persists custody accounts. Deleted accounts are invisible to reads.
type CustodyAccountRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*CustodyAccount, error)
	// FindByIDForUpdate loads the account and locks its row until the transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*CustodyAccount, error)
	// FindActiveByUser returns the user's active account
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (*CustodyAccount, error)
	// FindByUser returns the user's active account, or the most recent one
	FindByUser(ctx context.Context, userID uuid.UUID) (*CustodyAccount, error)
	// HasActiveForUser reports whether the user owns an active account other than excludeID
	HasActiveForUser(ctx context.Context, userID uuid.UUID, excludeID *uuid.UUID) (bool, error)
	FindAll(ctx context.Context, filter CustodyFilter) ([]CustodyAccount, int64, error)
	ListAll(ctx context.Context) ([]CustodyAccount, error)
	// Create inserts the account. A second active account for the user yields
	// a Conflict with code CUSTODY_ALREADY_EXISTS.
	Create(ctx context.Context, account *CustodyAccount) error
	Save(ctx context.Context, account *CustodyAccount) error
}

// VaultTransactionRepository is the append-only vault ledger
type VaultTransactionRepository interface {
	Append(ctx context.Context, rows ...*VaultTransaction) error
	FindByVault(ctx context.Context, vaultID uuid.UUID, filter LedgerFilter) ([]VaultTransaction, int64, error)
	// NetCollectedByInvoice returns collection minus reversal per vault for the invoice
	NetCollectedByInvoice(ctx context.Context, invoiceID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
	// SignedSums returns Σ signed amount per vault
	SignedSums(ctx context.Context) (map[uuid.UUID]decimal.Decimal, error)
	// FindChain returns every row of the vault in posting order
	FindChain(ctx context.Context, vaultID uuid.UUID) ([]LedgerEntry, error)
}

// CustodyTransactionRepository is the append-only custody ledger
type CustodyTransactionRepository interface {
	Append(ctx context.Context, rows ...*CustodyTransaction) error
	FindByCustody(ctx context.Context, custodyID uuid.UUID, filter LedgerFilter) ([]CustodyTransaction, int64, error)
	// NetCollectedByInvoice returns collection minus reversal per custody account for the invoice
	NetCollectedByInvoice(ctx context.Context, invoiceID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
	// SignedSums returns Σ signed amount per custody account
	SignedSums(ctx context.Context) (map[uuid.UUID]decimal.Decimal, error)
	// FindChain returns every row of the account in posting order
	FindChain(ctx context.Context, custodyID uuid.UUID) ([]LedgerEntry, error)
}
