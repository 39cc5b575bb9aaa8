package persistence

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fieldops/backend/internal/application/settlement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormSettlementScope_SnapshotIsReadOnlyRepeatableRead(t *testing.T) {
	assert.Equal(t, sql.LevelRepeatableRead, snapshotTxOptions.Isolation)
	assert.True(t, snapshotTxOptions.ReadOnly)
}

func TestReconcile_ReadsInsideOneTransaction(t *testing.T) {
	db, mock, _ := newMockDB(t)
	svc := settlement.NewReconciliationService(NewGormSettlementScope(db))

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM "vaults"`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`FROM "vault_transactions"`).WillReturnRows(sqlmock.NewRows([]string{"account_id", "total"}))
	mock.ExpectQuery(`FROM "custody_accounts"`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`FROM "custody_transactions"`).WillReturnRows(sqlmock.NewRows([]string{"account_id", "total"}))
	mock.ExpectCommit()

	out, err := svc.Reconcile(context.Background())

	require.NoError(t, err)
	assert.Empty(t, out)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcile_SnapshotRollsBackOnReadError(t *testing.T) {
	db, mock, _ := newMockDB(t)
	svc := settlement.NewReconciliationService(NewGormSettlementScope(db))

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM "vaults"`).WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err := svc.Reconcile(context.Background())

	require.ErrorIs(t, err, sql.ErrConnDone)
	require.NoError(t, mock.ExpectationsWereMet())
}
