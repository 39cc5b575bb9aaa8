package treasury

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionType_Direction(t *testing.T) {
	for _, tt := range AllTransactionTypes {
		t.Run(tt.String(), func(t *testing.T) {
			assert.True(t, tt.IsValid())
			assert.NotEqual(t, tt.IsIncrease(), tt.IsDecrease())
		})
	}
	assert.False(t, TransactionType("refund").IsValid())
	assert.Len(t, IncreaseTypes(), 5)
}

func TestNewLedgerEntry_RejectsInconsistentBalances(t *testing.T) {
	_, err := NewLedgerEntry(TransactionTypeDeposit, dec(10), dec(0), dec(11))
	assert.Error(t, err)

	_, err = NewLedgerEntry(TransactionTypeWithdrawal, dec(10), dec(5), dec(-5))
	assert.Error(t, err)

	e, err := NewLedgerEntry(TransactionTypeWithdrawal, dec(10), dec(15), dec(5))
	require.NoError(t, err)
	assert.True(t, e.GetSignedAmount().Equal(dec(-10)))
}

func TestLedgerEntry_WithMetadataMerges(t *testing.T) {
	e, err := NewLedgerEntry(TransactionTypeCollection, dec(10), dec(0), dec(10))
	require.NoError(t, err)

	e.WithMetadata(map[string]any{"proof_url": "u"}).WithMetadata(map[string]any{"payment_method": "instapay"})
	assert.Equal(t, "u", e.Metadata["proof_url"])
	assert.Equal(t, "instapay", e.Metadata["payment_method"])

	e.WithCreatedBy(uuid.Nil)
	assert.Nil(t, e.CreatedBy)
}

func TestVerifyChain(t *testing.T) {
	v := createTestVault(t, 0)
	var rows []LedgerEntry
	r1, err := v.Deposit(dec(100), "a", uuid.New())
	require.NoError(t, err)
	r2, err := v.Withdraw(dec(30), "b", uuid.New())
	require.NoError(t, err)
	rows = append(rows, r1.LedgerEntry, r2.LedgerEntry)

	assert.Empty(t, VerifyChain(rows))
	assert.True(t, SignedSum(rows).Equal(v.Balance))

	rows[1].BalanceBefore = dec(90)
	breaks := VerifyChain(rows)
	require.Len(t, breaks, 1)
	assert.Equal(t, rows[1].ID, breaks[0].EntryID)
	assert.True(t, breaks[0].Expected.Equal(dec(100)))
}
