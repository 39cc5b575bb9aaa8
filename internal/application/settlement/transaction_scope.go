package settlement

import (
	"context"

	"github.com/fieldops/backend/internal/domain/invoicing"
	"github.com/fieldops/backend/internal/domain/treasury"
)

// SettlementScope runs a financial operation in one database transaction.
// Every repository handed to fn shares that transaction, so row locks taken
// through FindByIDForUpdate are held until fn returns.
type SettlementScope interface {
	// Execute commits when fn returns nil and rolls back otherwise
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
	// Snapshot runs read-only fn against one consistent view of the database
	Snapshot(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories gives access to every settlement repository inside a transaction.
//
// Ledger repositories are append-only: balance changes are persisted by saving
// the account aggregate and appending the row the aggregate produced, in that order.
type TransactionalRepositories interface {
	InvoiceRepo() invoicing.InvoiceRepository
	VaultRepo() treasury.VaultRepository
	CustodyRepo() treasury.CustodyAccountRepository
	VaultTxRepo() treasury.VaultTransactionRepository
	CustodyTxRepo() treasury.CustodyTransactionRepository
}

// NoOpSettlementScope runs fn against plain repositories without a transaction.
// Used by tests.
type NoOpSettlementScope struct {
	invoiceRepo   invoicing.InvoiceRepository
	vaultRepo     treasury.VaultRepository
	custodyRepo   treasury.CustodyAccountRepository
	vaultTxRepo   treasury.VaultTransactionRepository
	custodyTxRepo treasury.CustodyTransactionRepository
}

// NewNoOpSettlementScope creates a NoOpSettlementScope with the given repositories.
func NewNoOpSettlementScope(
	invoiceRepo invoicing.InvoiceRepository,
	vaultRepo treasury.VaultRepository,
	custodyRepo treasury.CustodyAccountRepository,
	vaultTxRepo treasury.VaultTransactionRepository,
	custodyTxRepo treasury.CustodyTransactionRepository,
) *NoOpSettlementScope {
	return &NoOpSettlementScope{
		invoiceRepo:   invoiceRepo,
		vaultRepo:     vaultRepo,
		custodyRepo:   custodyRepo,
		vaultTxRepo:   vaultTxRepo,
		custodyTxRepo: custodyTxRepo,
	}
}

// Execute runs fn directly
func (s *NoOpSettlementScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Snapshot runs fn directly
func (s *NoOpSettlementScope) Snapshot(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpSettlementScope) InvoiceRepo() invoicing.InvoiceRepository         { return s.invoiceRepo }
func (s *NoOpSettlementScope) VaultRepo() treasury.VaultRepository              { return s.vaultRepo }
func (s *NoOpSettlementScope) CustodyRepo() treasury.CustodyAccountRepository   { return s.custodyRepo }
func (s *NoOpSettlementScope) VaultTxRepo() treasury.VaultTransactionRepository { return s.vaultTxRepo }
func (s *NoOpSettlementScope) CustodyTxRepo() treasury.CustodyTransactionRepository {
	return s.custodyTxRepo
}

var (
	_ SettlementScope           = (*NoOpSettlementScope)(nil)
	_ TransactionalRepositories = (*NoOpSettlementScope)(nil)
)
