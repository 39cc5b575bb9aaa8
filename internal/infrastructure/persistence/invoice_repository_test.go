package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fieldops/backend/internal/domain/invoicing"
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInvoice(t *testing.T, number string) *invoicing.Invoice {
	t.Helper()
	inv, err := invoicing.NewInvoice(number, uuid.New(), []invoicing.ItemInput{
		{Description: "AC cleaning", Quantity: 2, UnitPrice: dec("100")},
		{Description: "Filter", Quantity: 1, UnitPrice: dec("50")},
	}, dec("20"))
	require.NoError(t, err)
	inv.ClearDomainEvents()
	return inv
}

func TestGormInvoiceRepository_CreateAndFind(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	inv := newTestInvoice(t, "INV-A1")
	require.NoError(t, repo.Create(ctx, inv))
	assert.Equal(t, inv.Version, inv.PersistedVersion)

	found, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-A1", found.InvoiceNumber)
	assert.True(t, dec("250").Equal(found.Subtotal))
	assert.True(t, dec("230").Equal(found.TotalAmount))
	require.Len(t, found.Items, 2)
	assert.Equal(t, "AC cleaning", found.Items[0].Description)
	assert.Equal(t, found.Version, found.PersistedVersion)

	byNumber, err := repo.FindByNumber(ctx, "INV-A1")
	require.NoError(t, err)
	assert.Equal(t, inv.ID, byNumber.ID)

	locked, err := repo.FindByIDForUpdate(ctx, inv.ID)
	require.NoError(t, err)
	assert.Len(t, locked.Items, 2)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.True(t, shared.IsKind(err, shared.KindNotFound))
}

func TestGormInvoiceRepository_CreateDuplicateNumber(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTestInvoice(t, "INV-DUP")))
	err := repo.Create(ctx, newTestInvoice(t, "INV-DUP"))

	assert.True(t, shared.IsKind(err, shared.KindConflict))
}

func TestGormInvoiceRepository_SaveWithLock(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	inv := newTestInvoice(t, "INV-CAS")
	require.NoError(t, repo.Create(ctx, inv))

	t.Run("matching version and status", func(t *testing.T) {
		loaded, err := repo.FindByID(ctx, inv.ID)
		require.NoError(t, err)
		require.NoError(t, loaded.Submit(uuid.New(), time.Now()))

		require.NoError(t, repo.SaveWithLock(ctx, loaded, invoicing.InvoiceStatusDraft))
		assert.Equal(t, loaded.Version, loaded.PersistedVersion)

		stored, err := repo.FindByID(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, invoicing.InvoiceStatusPending, stored.Status)
	})

	t.Run("stale version", func(t *testing.T) {
		stale, err := repo.FindByID(ctx, inv.ID)
		require.NoError(t, err)
		fresh, err := repo.FindByID(ctx, inv.ID)
		require.NoError(t, err)

		notes := "first writer"
		_, err = fresh.ApplyUpdate(invoicing.InvoiceUpdate{Notes: &notes})
		require.NoError(t, err)
		require.NoError(t, repo.SaveWithLock(ctx, fresh, invoicing.MutableInvoiceStatuses...))

		notes = "second writer"
		_, err = stale.ApplyUpdate(invoicing.InvoiceUpdate{Notes: &notes})
		require.NoError(t, err)
		err = repo.SaveWithLock(ctx, stale, invoicing.MutableInvoiceStatuses...)
		assert.True(t, shared.IsKind(err, shared.KindConflict))
	})

	t.Run("unexpected status", func(t *testing.T) {
		loaded, err := repo.FindByID(ctx, inv.ID)
		require.NoError(t, err)
		err = repo.SaveWithLock(ctx, loaded, invoicing.InvoiceStatusPaid)
		assert.True(t, shared.IsKind(err, shared.KindConflict))
	})

	t.Run("missing invoice", func(t *testing.T) {
		ghost := newTestInvoice(t, "INV-GHOST")
		err := repo.SaveWithLock(ctx, ghost)
		assert.True(t, shared.IsKind(err, shared.KindNotFound))
	})
}

func TestGormInvoiceRepository_ApplyItemPlan(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	inv := newTestInvoice(t, "INV-PLAN")
	require.NoError(t, repo.Create(ctx, inv))
	keep, drop := inv.Items[0], inv.Items[1]

	loaded, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	items := []invoicing.ItemInput{
		{ID: &keep.ID, Description: keep.Description, Quantity: 3, UnitPrice: keep.UnitPrice},
		{Description: "Gas refill", Quantity: 1, UnitPrice: dec("75")},
	}
	plan, err := loaded.ApplyUpdate(invoicing.InvoiceUpdate{Items: &items})
	require.NoError(t, err)
	require.Len(t, plan.Insert, 1)
	require.Len(t, plan.Update, 1)
	require.Equal(t, []uuid.UUID{drop.ID}, plan.Delete)

	require.NoError(t, repo.ApplyItemPlan(ctx, inv.ID, plan))
	require.NoError(t, repo.SaveWithLock(ctx, loaded, invoicing.MutableInvoiceStatuses...))

	stored, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, keep.ID, stored.Items[0].ID, "edited item keeps its id")
	assert.Equal(t, 3, stored.Items[0].Quantity)
	assert.True(t, dec("375").Equal(stored.Subtotal))
	assert.True(t, dec("355").Equal(stored.TotalAmount))

	t.Run("empty plan is a no-op", func(t *testing.T) {
		assert.NoError(t, repo.ApplyItemPlan(ctx, inv.ID, &invoicing.ItemReconciliationPlan{}))
	})

	t.Run("foreign item ids are not deleted", func(t *testing.T) {
		other := newTestInvoice(t, "INV-OTHER")
		require.NoError(t, repo.Create(ctx, other))

		err := repo.ApplyItemPlan(ctx, inv.ID, &invoicing.ItemReconciliationPlan{Delete: []uuid.UUID{other.Items[0].ID}})
		assert.True(t, shared.IsKind(err, shared.KindConflict))

		untouched, err := repo.FindByID(ctx, other.ID)
		require.NoError(t, err)
		assert.Len(t, untouched.Items, 2)
	})
}

func TestGormInvoiceRepository_FindAllAndPendingReview(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	draft := newTestInvoice(t, "INV-L1")
	require.NoError(t, repo.Create(ctx, draft))

	awaiting := newTestInvoice(t, "INV-L2")
	require.NoError(t, awaiting.Submit(uuid.New(), time.Now()))
	require.NoError(t, awaiting.SubmitPaymentProof(invoicing.PaymentMethodInstapay, "https://storage.test/receipts/invoice_x.png", uuid.New(), time.Now()))
	require.NoError(t, repo.Create(ctx, awaiting))

	pending := invoicing.InvoiceStatusPending
	filter := invoicing.InvoiceFilter{Filter: shared.DefaultFilter(), Status: &pending}
	rows, total, err := repo.FindAll(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, rows, 1)
	assert.Equal(t, "INV-L2", rows[0].InvoiceNumber)
	assert.Len(t, rows[0].Items, 2)

	search := invoicing.InvoiceFilter{Filter: shared.DefaultFilter()}
	search.Search = "inv-l1"
	rows, total, err = repo.FindAll(ctx, search)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, draft.ID, rows[0].ID)

	review, total, err := repo.FindPendingReview(ctx, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, awaiting.ID, review[0].ID)
}

func TestGormInvoiceRepository_DeleteCascadesItems(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	inv := newTestInvoice(t, "INV-DEL")
	require.NoError(t, repo.Create(ctx, inv))
	require.NoError(t, repo.Delete(ctx, inv.ID))

	var items int64
	require.NoError(t, db.Table("invoice_items").Where("invoice_id = ?", inv.ID).Count(&items).Error)
	assert.Zero(t, items)

	err := repo.Delete(ctx, inv.ID)
	assert.True(t, shared.IsKind(err, shared.KindNotFound))
}

func TestGormInvoiceRepository_FindReferencedProofURLs(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	inv := newTestInvoice(t, "INV-PROOF")
	require.NoError(t, inv.Submit(uuid.New(), time.Now()))
	require.NoError(t, inv.SubmitPaymentProof(invoicing.PaymentMethodBankTransfer, "https://s/receipts/invoice_a.pdf", uuid.New(), time.Now()))
	require.NoError(t, repo.Create(ctx, inv))

	refs, err := repo.FindReferencedProofURLs(ctx, []string{"https://s/receipts/invoice_a.pdf", "https://s/receipts/invoice_b.pdf"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"https://s/receipts/invoice_a.pdf": true}, refs)

	refs, err = repo.FindReferencedProofURLs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestGormInvoiceRepository_FindByIDForUpdate_SQL(t *testing.T) {
	gormDB, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewGormInvoiceRepository(gormDB)

	id := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM "invoices" WHERE id = \$1 ORDER BY "invoices"\."id" LIMIT \$2 FOR UPDATE`).
		WithArgs(id, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "invoice_number", "status", "version"}).
			AddRow(id, "INV-1", "pending", 4))
	mock.ExpectQuery(`SELECT \* FROM "invoice_items" WHERE invoice_id = \$1 ORDER BY created_at ASC, id ASC`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "invoice_id"}))

	inv, err := repo.FindByIDForUpdate(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 4, inv.PersistedVersion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormInvoiceRepository_SaveWithLock_SQL(t *testing.T) {
	gormDB, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewGormInvoiceRepository(gormDB)

	inv := newTestInvoice(t, "INV-SQL")
	inv.PersistedVersion = 3
	inv.Version = 4

	mock.ExpectExec(`UPDATE "invoices" SET .* WHERE \(?id = \$\d+ AND version = \$\d+\)? AND status IN \(\$\d+,\$\d+\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "invoices" WHERE id = \$1`).
		WithArgs(inv.ID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	err := repo.SaveWithLock(context.Background(), inv, invoicing.MutableInvoiceStatuses...)
	assert.True(t, shared.IsKind(err, shared.KindConflict))
	assert.Equal(t, 3, inv.PersistedVersion, "failed CAS leaves the persisted version alone")
	assert.NoError(t, mock.ExpectationsWereMet())
}
