package persistence

import (
	"context"

	"github.com/fieldops/backend/internal/domain/treasury"
	"github.com/fieldops/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Both ledgers share one query shape; they differ only in table and account column.
type ledgerTable struct {
	table   string
	account string
}

var (
	vaultLedger   = ledgerTable{table: "vault_transactions", account: "vault_id"}
	custodyLedger = ledgerTable{table: "custody_transactions", account: "custody_id"}
)

type accountSum struct {
	AccountID uuid.UUID
	Total     decimal.Decimal
}

func (l ledgerTable) filtered(db *gorm.DB, accountID uuid.UUID, filter treasury.LedgerFilter) *gorm.DB {
	query := db.Table(l.table).Where(l.account+" = ?", accountID)
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.InvoiceID != nil {
		query = query.Where("invoice_id = ?", *filter.InvoiceID)
	}
	if filter.DateFrom != nil {
		query = query.Where("created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("created_at <= ?", *filter.DateTo)
	}
	return query
}

// netCollected is Σ collection − Σ reversal per account for one invoice
func (l ledgerTable) netCollected(ctx context.Context, db *gorm.DB, invoiceID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	var rows []accountSum
	err := db.WithContext(ctx).
		Table(l.table).
		Select(l.account+" AS account_id, SUM(CASE WHEN type = ? THEN amount ELSE -amount END) AS total", treasury.TransactionTypeCollection).
		Where("invoice_id = ? AND type IN ?", invoiceID, []treasury.TransactionType{treasury.TransactionTypeCollection, treasury.TransactionTypeReversal}).
		Group(l.account).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return sumsToMap(rows), nil
}

// signedSums is Σ signed amount per account over the whole ledger
func (l ledgerTable) signedSums(ctx context.Context, db *gorm.DB) (map[uuid.UUID]decimal.Decimal, error) {
	var rows []accountSum
	err := db.WithContext(ctx).
		Table(l.table).
		Select(l.account+" AS account_id, SUM(CASE WHEN type IN ? THEN amount ELSE -amount END) AS total", treasury.IncreaseTypes()).
		Group(l.account).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return sumsToMap(rows), nil
}

func sumsToMap(rows []accountSum) map[uuid.UUID]decimal.Decimal {
	out := make(map[uuid.UUID]decimal.Decimal, len(rows))
	for _, row := range rows {
		out[row.AccountID] = row.Total
	}
	return out
}

func chainOrder(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("id ASC")
}

// GormVaultTransactionRepository is the append-only vault ledger
type GormVaultTransactionRepository struct {
	db *gorm.DB
}

// NewGormVaultTransactionRepository creates a new GormVaultTransactionRepository
func NewGormVaultTransactionRepository(db *gorm.DB) *GormVaultTransactionRepository {
	return &GormVaultTransactionRepository{db: db}
}

// Append inserts ledger rows. The ledger has no update or delete path.
func (r *GormVaultTransactionRepository) Append(ctx context.Context, rows ...*treasury.VaultTransaction) error {
	if len(rows) == 0 {
		return nil
	}
	batch := make([]models.VaultTransactionModel, len(rows))
	for i, row := range rows {
		batch[i] = *models.VaultTransactionModelFromDomain(row)
	}
	return r.db.WithContext(ctx).Create(&batch).Error
}

// FindByVault lists a vault's rows, newest first unless the filter says otherwise
func (r *GormVaultTransactionRepository) FindByVault(ctx context.Context, vaultID uuid.UUID, filter treasury.LedgerFilter) ([]treasury.VaultTransaction, int64, error) {
	query := vaultLedger.filtered(r.db.WithContext(ctx), vaultID, filter)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.VaultTransactionModel
	if err := paginate(query, filter.Filter, LedgerSortFields, "created_at").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]treasury.VaultTransaction, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// NetCollectedByInvoice returns collection minus reversal per vault for the invoice
func (r *GormVaultTransactionRepository) NetCollectedByInvoice(ctx context.Context, invoiceID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	return vaultLedger.netCollected(ctx, r.db, invoiceID)
}

// SignedSums returns Σ signed amount per vault
func (r *GormVaultTransactionRepository) SignedSums(ctx context.Context) (map[uuid.UUID]decimal.Decimal, error) {
	return vaultLedger.signedSums(ctx, r.db)
}

// FindChain returns every row of the vault in posting order
func (r *GormVaultTransactionRepository) FindChain(ctx context.Context, vaultID uuid.UUID) ([]treasury.LedgerEntry, error) {
	var rows []models.VaultTransactionModel
	if err := chainOrder(r.db.WithContext(ctx)).Where("vault_id = ?", vaultID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]treasury.LedgerEntry, len(rows))
	for i := range rows {
		out[i] = rows[i].ToEntry()
	}
	return out, nil
}

// GormCustodyTransactionRepository is the append-only custody ledger
type GormCustodyTransactionRepository struct {
	db *gorm.DB
}

// NewGormCustodyTransactionRepository creates a new GormCustodyTransactionRepository
func NewGormCustodyTransactionRepository(db *gorm.DB) *GormCustodyTransactionRepository {
	return &GormCustodyTransactionRepository{db: db}
}

// Append inserts ledger rows
func (r *GormCustodyTransactionRepository) Append(ctx context.Context, rows ...*treasury.CustodyTransaction) error {
	if len(rows) == 0 {
		return nil
	}
	batch := make([]models.CustodyTransactionModel, len(rows))
	for i, row := range rows {
		batch[i] = *models.CustodyTransactionModelFromDomain(row)
	}
	return r.db.WithContext(ctx).Create(&batch).Error
}

// FindByCustody lists a custody account's rows
func (r *GormCustodyTransactionRepository) FindByCustody(ctx context.Context, custodyID uuid.UUID, filter treasury.LedgerFilter) ([]treasury.CustodyTransaction, int64, error) {
	query := custodyLedger.filtered(r.db.WithContext(ctx), custodyID, filter)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.CustodyTransactionModel
	if err := paginate(query, filter.Filter, LedgerSortFields, "created_at").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]treasury.CustodyTransaction, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// NetCollectedByInvoice returns collection minus reversal per custody account for the invoice
func (r *GormCustodyTransactionRepository) NetCollectedByInvoice(ctx context.Context, invoiceID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	return custodyLedger.netCollected(ctx, r.db, invoiceID)
}

// SignedSums returns Σ signed amount per custody account
func (r *GormCustodyTransactionRepository) SignedSums(ctx context.Context) (map[uuid.UUID]decimal.Decimal, error) {
	return custodyLedger.signedSums(ctx, r.db)
}

// FindChain returns every row of the account in posting order
func (r *GormCustodyTransactionRepository) FindChain(ctx context.Context, custodyID uuid.UUID) ([]treasury.LedgerEntry, error) {
	var rows []models.CustodyTransactionModel
	if err := chainOrder(r.db.WithContext(ctx)).Where("custody_id = ?", custodyID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]treasury.LedgerEntry, len(rows))
	for i := range rows {
		out[i] = rows[i].ToEntry()
	}
	return out, nil
}

var (
	_ treasury.VaultTransactionRepository   = (*GormVaultTransactionRepository)(nil)
	_ treasury.CustodyTransactionRepository = (*GormCustodyTransactionRepository)(nil)
)
