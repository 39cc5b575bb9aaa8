package persistence

import (
	"context"
	"database/sql"

	"github.com/fieldops/backend/internal/application/settlement"
	"github.com/fieldops/backend/internal/domain/invoicing"
	"github.com/fieldops/backend/internal/domain/treasury"
	"gorm.io/gorm"
)

// GormSettlementScope implements settlement.SettlementScope with one GORM
// transaction per Execute. Every repository handed out shares that transaction.
type GormSettlementScope struct {
	db *gorm.DB
}

// NewGormSettlementScope creates a new GormSettlementScope.
func NewGormSettlementScope(db *gorm.DB) *GormSettlementScope {
	return &GormSettlementScope{db: db}
}

// Execute commits when fn returns nil and rolls back otherwise.
func (s *GormSettlementScope) Execute(ctx context.Context, fn func(repos settlement.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormSettlementRepositories{tx: tx})
	})
}

// snapshotTxOptions pins every statement of a Snapshot to the snapshot taken
// by its first one. Drivers without isolation levels ignore them.
var snapshotTxOptions = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

// Snapshot runs fn in a read-only REPEATABLE READ transaction.
func (s *GormSettlementScope) Snapshot(ctx context.Context, fn func(repos settlement.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormSettlementRepositories{tx: tx})
	}, snapshotTxOptions)
}

type gormSettlementRepositories struct {
	tx *gorm.DB
}

func (r *gormSettlementRepositories) InvoiceRepo() invoicing.InvoiceRepository {
	return NewGormInvoiceRepository(r.tx)
}

func (r *gormSettlementRepositories) VaultRepo() treasury.VaultRepository {
	return NewGormVaultRepository(r.tx)
}

func (r *gormSettlementRepositories) CustodyRepo() treasury.CustodyAccountRepository {
	return NewGormCustodyAccountRepository(r.tx)
}

func (r *gormSettlementRepositories) VaultTxRepo() treasury.VaultTransactionRepository {
	return NewGormVaultTransactionRepository(r.tx)
}

func (r *gormSettlementRepositories) CustodyTxRepo() treasury.CustodyTransactionRepository {
	return NewGormCustodyTransactionRepository(r.tx)
}

var (
	_ settlement.SettlementScope           = (*GormSettlementScope)(nil)
	_ settlement.TransactionalRepositories = (*gormSettlementRepositories)(nil)
)
