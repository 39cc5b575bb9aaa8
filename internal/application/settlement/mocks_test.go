package settlement

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/fieldops/backend/internal/domain/invoicing"
	"github.com/fieldops/backend/internal/domain/payroll"
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/domain/treasury"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Repository mocks
// =============================================================================

type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByNumber(ctx context.Context, invoiceNumber string) (*invoicing.Invoice, error) {
	args := m.Called(ctx, invoiceNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindAll(ctx context.Context, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]invoicing.Invoice), args.Get(1).(int64), args.Error(2)
}

func (m *MockInvoiceRepository) FindPendingReview(ctx context.Context, filter shared.Filter) ([]invoicing.Invoice, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]invoicing.Invoice), args.Get(1).(int64), args.Error(2)
}

func (m *MockInvoiceRepository) Create(ctx context.Context, invoice *invoicing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) SaveWithLock(ctx context.Context, invoice *invoicing.Invoice, expectedStatuses ...invoicing.InvoiceStatus) error {
	args := m.Called(ctx, invoice, expectedStatuses)
	return args.Error(0)
}

func (m *MockInvoiceRepository) ApplyItemPlan(ctx context.Context, invoiceID uuid.UUID, plan *invoicing.ItemReconciliationPlan) error {
	args := m.Called(ctx, invoiceID, plan)
	return args.Error(0)
}

func (m *MockInvoiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockInvoiceRepository) FindReferencedProofURLs(ctx context.Context, urls []string) (map[string]bool, error) {
	args := m.Called(ctx, urls)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]bool), args.Error(1)
}

type MockVaultRepository struct {
	mock.Mock
}

func (m *MockVaultRepository) FindByID(ctx context.Context, id uuid.UUID) (*treasury.Vault, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*treasury.Vault), args.Error(1)
}

func (m *MockVaultRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*treasury.Vault, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*treasury.Vault), args.Error(1)
}

func (m *MockVaultRepository) FindAll(ctx context.Context, filter treasury.VaultFilter) ([]treasury.Vault, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]treasury.Vault), args.Get(1).(int64), args.Error(2)
}

func (m *MockVaultRepository) ListAll(ctx context.Context) ([]treasury.Vault, error) {
	args := m.Called(ctx)
	return args.Get(0).([]treasury.Vault), args.Error(1)
}

func (m *MockVaultRepository) Create(ctx context.Context, vault *treasury.Vault) error {
	args := m.Called(ctx, vault)
	return args.Error(0)
}

func (m *MockVaultRepository) Save(ctx context.Context, vault *treasury.Vault) error {
	args := m.Called(ctx, vault)
	return args.Error(0)
}

type MockCustodyRepository struct {
	mock.Mock
}

func (m *MockCustodyRepository) FindByID(ctx context.Context, id uuid.UUID) (*treasury.CustodyAccount, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*treasury.CustodyAccount), args.Error(1)
}

func (m *MockCustodyRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*treasury.CustodyAccount, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*treasury.CustodyAccount), args.Error(1)
}

func (m *MockCustodyRepository) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*treasury.CustodyAccount, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*treasury.CustodyAccount), args.Error(1)
}

func (m *MockCustodyRepository) FindByUser(ctx context.Context, userID uuid.UUID) (*treasury.CustodyAccount, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*treasury.CustodyAccount), args.Error(1)
}

func (m *MockCustodyRepository) HasActiveForUser(ctx context.Context, userID uuid.UUID, excludeID *uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockCustodyRepository) FindAll(ctx context.Context, filter treasury.CustodyFilter) ([]treasury.CustodyAccount, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]treasury.CustodyAccount), args.Get(1).(int64), args.Error(2)
}

func (m *MockCustodyRepository) ListAll(ctx context.Context) ([]treasury.CustodyAccount, error) {
	args := m.Called(ctx)
	return args.Get(0).([]treasury.CustodyAccount), args.Error(1)
}

func (m *MockCustodyRepository) Create(ctx context.Context, account *treasury.CustodyAccount) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockCustodyRepository) Save(ctx context.Context, account *treasury.CustodyAccount) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

type MockVaultTxRepository struct {
	mock.Mock
}

func (m *MockVaultTxRepository) Append(ctx context.Context, rows ...*treasury.VaultTransaction) error {
	args := m.Called(ctx, rows)
	return args.Error(0)
}

func (m *MockVaultTxRepository) FindByVault(ctx context.Context, vaultID uuid.UUID, filter treasury.LedgerFilter) ([]treasury.VaultTransaction, int64, error) {
	args := m.Called(ctx, vaultID, filter)
	return args.Get(0).([]treasury.VaultTransaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockVaultTxRepository) NetCollectedByInvoice(ctx context.Context, invoiceID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	args := m.Called(ctx, invoiceID)
	return args.Get(0).(map[uuid.UUID]decimal.Decimal), args.Error(1)
}

func (m *MockVaultTxRepository) SignedSums(ctx context.Context) (map[uuid.UUID]decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[uuid.UUID]decimal.Decimal), args.Error(1)
}

func (m *MockVaultTxRepository) FindChain(ctx context.Context, vaultID uuid.UUID) ([]treasury.LedgerEntry, error) {
	args := m.Called(ctx, vaultID)
	return args.Get(0).([]treasury.LedgerEntry), args.Error(1)
}

type MockCustodyTxRepository struct {
	mock.Mock
}

func (m *MockCustodyTxRepository) Append(ctx context.Context, rows ...*treasury.CustodyTransaction) error {
	args := m.Called(ctx, rows)
	return args.Error(0)
}

func (m *MockCustodyTxRepository) FindByCustody(ctx context.Context, custodyID uuid.UUID, filter treasury.LedgerFilter) ([]treasury.CustodyTransaction, int64, error) {
	args := m.Called(ctx, custodyID, filter)
	return args.Get(0).([]treasury.CustodyTransaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockCustodyTxRepository) NetCollectedByInvoice(ctx context.Context, invoiceID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	args := m.Called(ctx, invoiceID)
	return args.Get(0).(map[uuid.UUID]decimal.Decimal), args.Error(1)
}

func (m *MockCustodyTxRepository) SignedSums(ctx context.Context) (map[uuid.UUID]decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[uuid.UUID]decimal.Decimal), args.Error(1)
}

func (m *MockCustodyTxRepository) FindChain(ctx context.Context, custodyID uuid.UUID) ([]treasury.LedgerEntry, error) {
	args := m.Called(ctx, custodyID)
	return args.Get(0).([]treasury.LedgerEntry), args.Error(1)
}

// =============================================================================
// Port mocks
// =============================================================================

type MockProofStorage struct {
	mock.Mock
}

func (m *MockProofStorage) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	args := m.Called(ctx, key, contentType, body, size)
	return args.String(0), args.Error(1)
}

func (m *MockProofStorage) List(ctx context.Context, prefix string) ([]StoredObject, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]StoredObject), args.Error(1)
}

func (m *MockProofStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockProofStorage) PublicURL(key string) string {
	return "https://storage.test/receipts/" + key
}

type MockBonusCalculator struct {
	mock.Mock
}

func (m *MockBonusCalculator) Calculate(ctx context.Context, q payroll.BonusQuery) ([]payroll.WorkerBonus, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]payroll.WorkerBonus), args.Error(1)
}

type MockStatsReader struct {
	mock.Mock
}

func (m *MockStatsReader) InvoiceStats(ctx context.Context, from, to *time.Time) (*invoicing.InvoiceStats, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.InvoiceStats), args.Error(1)
}

// MockEventPublisher collects published events
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (m *MockEventPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) EventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.EventType()
	}
	return out
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// mapCache is a minimal Cache used to observe hits
type mapCache[V any] struct {
	mu    sync.Mutex
	items map[string]V
	sets  int
}

func newMapCache[V any]() *mapCache[V] {
	return &mapCache[V]{items: make(map[string]V)}
}

func (c *mapCache[V]) Get(_ context.Context, key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok
}

func (c *mapCache[V]) Set(_ context.Context, key string, value V, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	c.sets++
}

func (c *mapCache[V]) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *mapCache[V]) DeletePrefix(_ context.Context, prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.items {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.items, k)
		}
	}
}

// =============================================================================
// Fixtures
// =============================================================================

type testRepos struct {
	invoices  *MockInvoiceRepository
	vaults    *MockVaultRepository
	custody   *MockCustodyRepository
	vaultTx   *MockVaultTxRepository
	custodyTx *MockCustodyTxRepository
	scope     *NoOpSettlementScope
}

func newTestRepos() *testRepos {
	r := &testRepos{
		invoices:  new(MockInvoiceRepository),
		vaults:    new(MockVaultRepository),
		custody:   new(MockCustodyRepository),
		vaultTx:   new(MockVaultTxRepository),
		custodyTx: new(MockCustodyTxRepository),
	}
	r.scope = NewNoOpSettlementScope(r.invoices, r.vaults, r.custody, r.vaultTx, r.custodyTx)
	return r
}

func (r *testRepos) assertExpectations(t mock.TestingT) {
	r.invoices.AssertExpectations(t)
	r.vaults.AssertExpectations(t)
	r.custody.AssertExpectations(t)
	r.vaultTx.AssertExpectations(t)
	r.custodyTx.AssertExpectations(t)
}

type sequenceNumbers struct{ n int }

func (s *sequenceNumbers) NextInvoiceNumber() string {
	s.n++
	return fmt.Sprintf("INV-T%d", s.n)
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func sampleItems() []ItemInput {
	return []ItemInput{
		{Description: "AC maintenance", Quantity: 2, UnitPrice: dec(100)},
		{Description: "Filter replacement", Quantity: 1, UnitPrice: dec(50)},
	}
}

// createPendingInvoice returns a pending invoice with subtotal 250, discount 20 and total 230
func createPendingInvoice(t *testing.T) *invoicing.Invoice {
	t.Helper()
	inv, err := invoicing.NewInvoice("INV-TEST", uuid.New(), toDomainItems(sampleItems()), dec(20))
	require.NoError(t, err)
	require.NoError(t, inv.Submit(uuid.New(), time.Now()))
	inv.ClearDomainEvents()
	inv.PersistedVersion = inv.Version
	return inv
}

func createVault(balance int64) *treasury.Vault {
	v, _ := treasury.NewVault("Main vault", "", treasury.VaultTypeMain)
	if balance > 0 {
		_, _ = v.Deposit(dec(balance), "opening balance", uuid.New())
	}
	v.ClearDomainEvents()
	return v
}

func createCustody(holder treasury.HolderType, balance int64) *treasury.CustodyAccount {
	c, _ := treasury.NewCustodyAccount(uuid.New(), holder, nil)
	if balance > 0 {
		_, _ = c.AddFunds(dec(balance), "float", uuid.New())
	}
	c.ClearDomainEvents()
	return c
}
