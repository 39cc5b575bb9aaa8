package persistence

import (
	"context"
	"testing"

	"github.com/fieldops/backend/internal/application/settlement"
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabase_Ping(t *testing.T) {
	gormDB, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	db := &Database{DB: gormDB}

	mock.ExpectPing()
	require.NoError(t, db.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Stats(t *testing.T) {
	gormDB, _, mockDB := newMockDB(t)
	defer mockDB.Close()
	db := &Database{DB: gormDB}

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.OpenConnections, stats.InUse)
	assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
}

func TestDatabase_Close(t *testing.T) {
	gormDB, mock, _ := newMockDB(t)
	db := &Database{DB: gormDB}

	mock.ExpectClose()
	require.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormSettlementScope_CommitAndRollback(t *testing.T) {
	t.Run("commits when the callback succeeds", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()

		mock.ExpectBegin()
		mock.ExpectCommit()

		err := NewGormSettlementScope(gormDB).Execute(context.Background(), func(repos settlement.TransactionalRepositories) error {
			assert.NotNil(t, repos.InvoiceRepo())
			assert.NotNil(t, repos.VaultRepo())
			assert.NotNil(t, repos.CustodyRepo())
			assert.NotNil(t, repos.VaultTxRepo())
			assert.NotNil(t, repos.CustodyTxRepo())
			return nil
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back and returns the callback error", func(t *testing.T) {
		gormDB, mock, mockDB := newMockDB(t)
		defer mockDB.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := NewGormSettlementScope(gormDB).Execute(context.Background(), func(settlement.TransactionalRepositories) error {
			return shared.ErrConcurrencyConflict
		})
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back writes on sqlite", func(t *testing.T) {
		db := newSQLiteDB(t)
		ctx := context.Background()
		inv := newTestInvoice(t, "INV-ROLLBACK")

		err := NewGormSettlementScope(db).Execute(ctx, func(repos settlement.TransactionalRepositories) error {
			require.NoError(t, repos.InvoiceRepo().Create(ctx, inv))
			return assert.AnError
		})
		require.ErrorIs(t, err, assert.AnError)

		_, err = NewGormInvoiceRepository(db).FindByID(ctx, inv.ID)
		assert.True(t, shared.IsKind(err, shared.KindNotFound))
	})
}
