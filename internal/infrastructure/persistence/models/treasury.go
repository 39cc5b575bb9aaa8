package models

import (
	"time"

	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/domain/treasury"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// VaultModel is the persistence model for the Vault aggregate root.
type VaultModel struct {
	AggregateModel
	Name     string             `gorm:"type:varchar(100);not null"`
	NameAr   string             `gorm:"type:varchar(100)"`
	Type     treasury.VaultType `gorm:"type:varchar(20);not null;index"`
	Balance  decimal.Decimal    `gorm:"type:decimal(18,2);not null;default:0"`
	IsActive bool               `gorm:"not null;default:true;index"`
}

// TableName returns the table name for GORM
func (VaultModel) TableName() string {
	return "vaults"
}

// ToDomain converts the persistence model to a domain Vault
func (m *VaultModel) ToDomain() *treasury.Vault {
	return &treasury.Vault{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Name:              m.Name,
		NameAr:            m.NameAr,
		Type:              m.Type,
		Balance:           m.Balance,
		IsActive:          m.IsActive,
	}
}

// FromDomain populates the persistence model from a domain Vault
func (m *VaultModel) FromDomain(v *treasury.Vault) {
	m.FromDomainAggregateRoot(v.BaseAggregateRoot)
	m.Name = v.Name
	m.NameAr = v.NameAr
	m.Type = v.Type
	m.Balance = v.Balance
	m.IsActive = v.IsActive
}

// CustodyAccountModel is the persistence model for the CustodyAccount aggregate root.
// At most one active, undeleted account exists per user.
type CustodyAccountModel struct {
	AggregateModel
	UserID     uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_custody_active_user,where:is_active = true AND deleted_at IS NULL"`
	HolderType treasury.HolderType `gorm:"type:varchar(20);not null"`
	TeamID     *uuid.UUID          `gorm:"type:uuid;index"`
	Balance    decimal.Decimal     `gorm:"type:decimal(18,2);not null;default:0"`
	IsActive   bool                `gorm:"not null;default:true"`
	DeletedAt  gorm.DeletedAt      `gorm:"index"`
}

// TableName returns the table name for GORM
func (CustodyAccountModel) TableName() string {
	return "custody_accounts"
}

// ToDomain converts the persistence model to a domain CustodyAccount
func (m *CustodyAccountModel) ToDomain() *treasury.CustodyAccount {
	acc := &treasury.CustodyAccount{
		BaseAggregateRoot: m.ToAggregateRoot(),
		UserID:            m.UserID,
		HolderType:        m.HolderType,
		TeamID:            m.TeamID,
		Balance:           m.Balance,
		IsActive:          m.IsActive,
	}
	if m.DeletedAt.Valid {
		at := m.DeletedAt.Time
		acc.DeletedAt = &at
	}
	return acc
}

// FromDomain populates the persistence model from a domain CustodyAccount
func (m *CustodyAccountModel) FromDomain(c *treasury.CustodyAccount) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.UserID = c.UserID
	m.HolderType = c.HolderType
	m.TeamID = c.TeamID
	m.Balance = c.Balance
	m.IsActive = c.IsActive
	m.DeletedAt = gorm.DeletedAt{}
	if c.DeletedAt != nil {
		m.DeletedAt = gorm.DeletedAt{Time: *c.DeletedAt, Valid: true}
	}
}

// LedgerColumns are the columns shared by both transaction tables.
// Rows are never updated, so there is no updated_at.
type LedgerColumns struct {
	ID               uuid.UUID                `gorm:"type:uuid;primaryKey"`
	Type             treasury.TransactionType `gorm:"type:varchar(20);not null;index"`
	Amount           decimal.Decimal          `gorm:"type:decimal(18,2);not null"`
	BalanceBefore    decimal.Decimal          `gorm:"type:decimal(18,2);not null"`
	BalanceAfter     decimal.Decimal          `gorm:"type:decimal(18,2);not null"`
	InvoiceID        *uuid.UUID               `gorm:"type:uuid;index"`
	CounterpartyType treasury.AccountKind     `gorm:"type:varchar(20)"`
	CounterpartyID   *uuid.UUID               `gorm:"type:uuid"`
	Notes            string                   `gorm:"type:text"`
	Metadata         datatypes.JSONMap
	CreatedBy        *uuid.UUID `gorm:"type:uuid"`
	CreatedAt        time.Time  `gorm:"not null;index"`
}

func (c *LedgerColumns) toEntry() treasury.LedgerEntry {
	e := treasury.LedgerEntry{
		BaseEntity: shared.BaseEntity{
			ID:        c.ID,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.CreatedAt,
		},
		Type:             c.Type,
		Amount:           c.Amount,
		BalanceBefore:    c.BalanceBefore,
		BalanceAfter:     c.BalanceAfter,
		InvoiceID:        c.InvoiceID,
		CounterpartyType: c.CounterpartyType,
		CounterpartyID:   c.CounterpartyID,
		Notes:            c.Notes,
		CreatedBy:        c.CreatedBy,
	}
	if len(c.Metadata) > 0 {
		e.Metadata = map[string]any(c.Metadata)
	}
	return e
}

func ledgerColumnsFrom(e *treasury.LedgerEntry) LedgerColumns {
	c := LedgerColumns{
		ID:               e.ID,
		Type:             e.Type,
		Amount:           e.Amount,
		BalanceBefore:    e.BalanceBefore,
		BalanceAfter:     e.BalanceAfter,
		InvoiceID:        e.InvoiceID,
		CounterpartyType: e.CounterpartyType,
		CounterpartyID:   e.CounterpartyID,
		Notes:            e.Notes,
		CreatedBy:        e.CreatedBy,
		CreatedAt:        e.CreatedAt,
	}
	if len(e.Metadata) > 0 {
		c.Metadata = datatypes.JSONMap(e.Metadata)
	}
	return c
}

// VaultTransactionModel is a row of the append-only vault ledger
type VaultTransactionModel struct {
	LedgerColumns
	VaultID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// TableName returns the table name for GORM
func (VaultTransactionModel) TableName() string {
	return "vault_transactions"
}

// ToDomain converts the persistence model to a domain VaultTransaction
func (m *VaultTransactionModel) ToDomain() *treasury.VaultTransaction {
	return &treasury.VaultTransaction{
		LedgerEntry: m.toEntry(),
		VaultID:     m.VaultID,
	}
}

// VaultTransactionModelFromDomain creates a persistence model from a domain VaultTransaction
func VaultTransactionModelFromDomain(tx *treasury.VaultTransaction) *VaultTransactionModel {
	return &VaultTransactionModel{
		LedgerColumns: ledgerColumnsFrom(&tx.LedgerEntry),
		VaultID:       tx.VaultID,
	}
}

// CustodyTransactionModel is a row of the append-only custody ledger
type CustodyTransactionModel struct {
	LedgerColumns
	CustodyID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// TableName returns the table name for GORM
func (CustodyTransactionModel) TableName() string {
	return "custody_transactions"
}

// ToDomain converts the persistence model to a domain CustodyTransaction
func (m *CustodyTransactionModel) ToDomain() *treasury.CustodyTransaction {
	return &treasury.CustodyTransaction{
		LedgerEntry: m.toEntry(),
		CustodyID:   m.CustodyID,
	}
}

// CustodyTransactionModelFromDomain creates a persistence model from a domain CustodyTransaction
func CustodyTransactionModelFromDomain(tx *treasury.CustodyTransaction) *CustodyTransactionModel {
	return &CustodyTransactionModel{
		LedgerColumns: ledgerColumnsFrom(&tx.LedgerEntry),
		CustodyID:     tx.CustodyID,
	}
}

// ToEntry returns the row as a bare ledger entry
func (m *VaultTransactionModel) ToEntry() treasury.LedgerEntry { return m.toEntry() }

// ToEntry returns the row as a bare ledger entry
func (m *CustodyTransactionModel) ToEntry() treasury.LedgerEntry { return m.toEntry() }

// AllModels lists every model, in dependency order, for AutoMigrate in tests
func AllModels() []any {
	return []any{
		&InvoiceModel{},
		&InvoiceItemModel{},
		&VaultModel{},
		&CustodyAccountModel{},
		&VaultTransactionModel{},
		&CustodyTransactionModel{},
	}
}
