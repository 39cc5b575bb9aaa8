package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fieldops/backend/internal/domain/invoicing"
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/domain/treasury"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestCollectionService(r *testRepos, storage ProofStorage, clock shared.Clock) (*CollectionService, *MockEventPublisher) {
	cancellation := NewCancellationService(r.scope)
	svc := NewCollectionService(r.invoices, r.scope, storage, cancellation, clock)
	pub := &MockEventPublisher{}
	svc.SetEventPublisher(pub)
	cancellation.SetEventPublisher(pub)
	return svc, pub
}

// ============================================
// Cash collection
// ============================================

func TestCollectCash_FullAmountIntoEmptyCustody(t *testing.T) {
	r := newTestRepos()
	svc, pub := newTestCollectionService(r, nil, nil)
	inv := createPendingInvoice(t)
	custody := createCustody(treasury.HolderTypeTeamLeader, 0)

	var appended []*treasury.CustodyTransaction
	r.invoices.On("FindByIDForUpdate", mock.Anything, inv.ID).Return(inv, nil)
	r.custody.On("FindByIDForUpdate", mock.Anything, custody.ID).Return(custody, nil)
	r.custody.On("Save", mock.Anything, custody).Return(nil)
	r.custodyTx.On("Append", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { appended = args.Get(1).([]*treasury.CustodyTransaction) }).
		Return(nil)
	r.invoices.On("SaveWithLock", mock.Anything, inv, []invoicing.InvoiceStatus{invoicing.InvoiceStatusPending}).Return(nil)

	result, err := svc.CollectCash(context.Background(), CollectCashInput{
		InvoiceID:   inv.ID,
		CustodyID:   custody.ID,
		PerformedBy: uuid.New(),
	})

	require.NoError(t, err)
	assert.True(t, result.Amount.Equal(dec(230)))
	assert.True(t, custody.Balance.Equal(dec(230)))
	assert.True(t, result.BalanceAfter.Equal(dec(230)))
	assert.Equal(t, invoicing.InvoiceStatusPaid, inv.Status)
	assert.True(t, inv.PaidAmount.Equal(dec(230)))
	require.Len(t, appended, 1)
	assert.Equal(t, treasury.TransactionTypeCollection, appended[0].Type)
	assert.True(t, appended[0].Amount.Equal(dec(230)))
	require.NotNil(t, appended[0].InvoiceID)
	assert.Equal(t, inv.ID, *appended[0].InvoiceID)
	assert.ElementsMatch(t, []string{invoicing.EventTypeInvoiceCollected, treasury.EventTypeCustodyCollected}, pub.EventTypes())
	r.assertExpectations(t)
}

func TestCollectCash_PartialThenRemainder(t *testing.T) {
	r := newTestRepos()
	svc, _ := newTestCollectionService(r, nil, nil)
	inv := createPendingInvoice(t)
	custody := createCustody(treasury.HolderTypeTeamLeader, 0)

	r.invoices.On("FindByIDForUpdate", mock.Anything, inv.ID).Return(inv, nil)
	r.custody.On("FindByIDForUpdate", mock.Anything, custody.ID).Return(custody, nil)
	r.custody.On("Save", mock.Anything, custody).Return(nil)
	r.custodyTx.On("Append", mock.Anything, mock.Anything).Return(nil)
	r.invoices.On("SaveWithLock", mock.Anything, inv, mock.Anything).Return(nil)

	_, err := svc.CollectCash(context.Background(), CollectCashInput{
		InvoiceID: inv.ID, CustodyID: custody.ID, Amount: decPtr(100), PerformedBy: uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, invoicing.InvoiceStatusPartiallyPaid, inv.Status)

	result, err := svc.CollectCash(context.Background(), CollectCashInput{
		InvoiceID: inv.ID, CustodyID: custody.ID, PerformedBy: uuid.New(),
	})
	require.NoError(t, err)
	assert.True(t, result.Amount.Equal(dec(130)), "default amount is the remainder")
	assert.Equal(t, invoicing.InvoiceStatusPaid, inv.Status)
	assert.True(t, custody.Balance.Equal(dec(230)))
}

func TestCollectCash_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(inv *invoicing.Invoice, c *treasury.CustodyAccount)
		amount  *int64
		kind    shared.ErrorKind
	}{
		{
			name:    "inactive custody",
			prepare: func(_ *invoicing.Invoice, c *treasury.CustodyAccount) { _ = c.Deactivate() },
			kind:    shared.KindInvalidState,
		},
		{
			name: "draft invoice",
			prepare: func(inv *invoicing.Invoice, _ *treasury.CustodyAccount) {
				inv.Status = invoicing.InvoiceStatusDraft
			},
			kind: shared.KindInvalidState,
		},
		{
			name:   "amount above outstanding",
			amount: func() *int64 { v := int64(231); return &v }(),
			kind:   shared.KindValidation,
		},
		{
			name:   "zero amount",
			amount: func() *int64 { v := int64(0); return &v }(),
			kind:   shared.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRepos()
			svc, pub := newTestCollectionService(r, nil, nil)
			inv := createPendingInvoice(t)
			custody := createCustody(treasury.HolderTypeTeamLeader, 0)
			if tt.prepare != nil {
				tt.prepare(inv, custody)
			}

			r.invoices.On("FindByIDForUpdate", mock.Anything, inv.ID).Return(inv, nil)
			r.custody.On("FindByIDForUpdate", mock.Anything, custody.ID).Return(custody, nil)

			in := CollectCashInput{InvoiceID: inv.ID, CustodyID: custody.ID, PerformedBy: uuid.New()}
			if tt.amount != nil {
				in.Amount = decPtr(*tt.amount)
			}
			_, err := svc.CollectCash(context.Background(), in)

			require.Error(t, err)
			assert.Equal(t, tt.kind, shared.KindOf(err))
			assert.True(t, custody.Balance.IsZero())
			r.custodyTx.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
			r.invoices.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything, mock.Anything)
			assert.Empty(t, pub.EventTypes())
		})
	}
}

// ============================================
// Digital payment: proof upload and admin review
// ============================================

func TestSubmitDigitalPayment_UploadsProofAndQueuesForReview(t *testing.T) {
	r := newTestRepos()
	storage := new(MockProofStorage)
	now := time.UnixMilli(1700000000123)
	svc, pub := newTestCollectionService(r, storage, fixedClock{now: now})
	inv := createPendingInvoice(t)

	expectedKey := ProofKey(inv.ID, now.UnixMilli(), "png")
	url := "https://storage.test/receipts/" + expectedKey
	r.invoices.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)
	storage.On("Upload", mock.Anything, expectedKey, "image/png", mock.Anything, int64(3)).Return(url, nil)
	r.invoices.On("FindByIDForUpdate", mock.Anything, inv.ID).Return(inv, nil)
	r.invoices.On("SaveWithLock", mock.Anything, inv, []invoicing.InvoiceStatus{invoicing.InvoiceStatusPending}).Return(nil)

	resp, err := svc.SubmitDigitalPayment(context.Background(), SubmitProofInput{
		InvoiceID:     inv.ID,
		PaymentMethod: invoicing.PaymentMethodInstapay,
		FileName:      "receipt.png",
		ContentType:   "image/png",
		Data:          []byte{1, 2, 3},
		PerformedBy:   uuid.New(),
	})

	require.NoError(t, err)
	assert.Equal(t, url, resp.PaymentProofURL)
	assert.True(t, resp.AwaitingReview)
	assert.Equal(t, "pending", resp.Status)
	require.NotNil(t, inv.PaymentSubmittedAt)
	assert.True(t, now.Equal(*inv.PaymentSubmittedAt))
	assert.Equal(t, []string{invoicing.EventTypeInvoicePaymentSubmitted}, pub.EventTypes())
	storage.AssertExpectations(t)
	r.assertExpectations(t)
}

func TestSubmitDigitalPayment_UploadFailureAbortsBeforeInvoiceChange(t *testing.T) {
	r := newTestRepos()
	storage := new(MockProofStorage)
	svc, _ := newTestCollectionService(r, storage, nil)
	inv := createPendingInvoice(t)

	r.invoices.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)
	storage.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("bucket unavailable"))

	_, err := svc.SubmitDigitalPayment(context.Background(), SubmitProofInput{
		InvoiceID:     inv.ID,
		PaymentMethod: invoicing.PaymentMethodBankTransfer,
		ContentType:   "application/pdf",
		Data:          []byte("%PDF"),
		PerformedBy:   uuid.New(),
	})

	require.Error(t, err)
	assert.False(t, inv.AwaitingReview)
	assert.Empty(t, inv.PaymentProofURL)
	r.invoices.AssertNotCalled(t, "FindByIDForUpdate", mock.Anything, mock.Anything)
}

func TestSubmitDigitalPayment_ProofChecks(t *testing.T) {
	tests := []struct {
		name        string
		method      invoicing.PaymentMethod
		contentType string
		data        []byte
		code        string
	}{
		{"cash is not digital", invoicing.PaymentMethodCash, "image/png", []byte{1}, "INVALID_PAYMENT_METHOD"},
		{"empty file", invoicing.PaymentMethodInstapay, "image/png", nil, "INVALID_PROOF"},
		{"unsupported type", invoicing.PaymentMethodInstapay, "text/plain", []byte{1}, "INVALID_PROOF_TYPE"},
		{"too large", invoicing.PaymentMethodInstapay, "image/jpeg", make([]byte, 11), "PROOF_TOO_LARGE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRepos()
			storage := new(MockProofStorage)
			svc, _ := newTestCollectionService(r, storage, nil)
			svc.SetProofPolicy(ProofPolicy{MaxBytes: 10})

			_, err := svc.SubmitDigitalPayment(context.Background(), SubmitProofInput{
				InvoiceID:     uuid.New(),
				PaymentMethod: tt.method,
				ContentType:   tt.contentType,
				Data:          tt.data,
			})

			var de *shared.DomainError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.code, de.Code)
			storage.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCollectAdmin_CreditsVaultWithProofMetadata(t *testing.T) {
	r := newTestRepos()
	svc, pub := newTestCollectionService(r, nil, nil)
	inv := createPendingInvoice(t)
	require.NoError(t, inv.SubmitPaymentProof(invoicing.PaymentMethodInstapay, "https://storage.test/receipts/p.png", uuid.New(), time.Now()))
	inv.ClearDomainEvents()
	vault := createVault(0)

	var appended []*treasury.VaultTransaction
	r.invoices.On("FindByIDForUpdate", mock.Anything, inv.ID).Return(inv, nil)
	r.vaults.On("FindByIDForUpdate", mock.Anything, vault.ID).Return(vault, nil)
	r.vaults.On("Save", mock.Anything, vault).Return(nil)
	r.vaultTx.On("Append", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { appended = args.Get(1).([]*treasury.VaultTransaction) }).
		Return(nil)
	r.invoices.On("SaveWithLock", mock.Anything, inv, mock.Anything).Return(nil)

	result, err := svc.CollectAdmin(context.Background(), CollectAdminInput{
		InvoiceID:     inv.ID,
		VaultID:       vault.ID,
		PaymentMethod: invoicing.PaymentMethodInstapay,
		PerformedBy:   uuid.New(),
	})

	require.NoError(t, err)
	assert.Equal(t, treasury.AccountKindVault.String(), result.AccountKind)
	assert.True(t, vault.Balance.Equal(dec(230)))
	assert.Equal(t, invoicing.InvoiceStatusPaid, inv.Status)
	assert.False(t, inv.AwaitingReview)
	require.Len(t, appended, 1)
	assert.Equal(t, treasury.TransactionTypeCollection, appended[0].Type)
	assert.Equal(t, "https://storage.test/receipts/p.png", appended[0].Metadata["proof_url"])
	assert.Equal(t, "instapay", appended[0].Metadata["payment_method"])
	assert.Contains(t, pub.EventTypes(), invoicing.EventTypeInvoiceCollected)
	r.assertExpectations(t)
}

func TestCollectAdmin_RequiresReviewOrProof(t *testing.T) {
	t.Run("no proof and nothing under review", func(t *testing.T) {
		r := newTestRepos()
		svc, pub := newTestCollectionService(r, nil, nil)
		inv := createPendingInvoice(t)
		vault := createVault(0)

		r.invoices.On("FindByIDForUpdate", mock.Anything, inv.ID).Return(inv, nil)
		r.vaults.On("FindByIDForUpdate", mock.Anything, vault.ID).Return(vault, nil)

		_, err := svc.CollectAdmin(context.Background(), CollectAdminInput{
			InvoiceID: inv.ID, VaultID: vault.ID, PaymentMethod: invoicing.PaymentMethodInstapay, ProofURL: "   ", PerformedBy: uuid.New(),
		})

		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "NOT_AWAITING_REVIEW", de.Code)
		assert.Equal(t, shared.KindInvalidState, de.Kind)
		assert.Equal(t, invoicing.InvoiceStatusPending, inv.Status)
		assert.True(t, vault.Balance.IsZero())
		assert.Empty(t, pub.EventTypes())
		r.vaultTx.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("explicit proof collects directly", func(t *testing.T) {
		r := newTestRepos()
		svc, _ := newTestCollectionService(r, nil, nil)
		inv := createPendingInvoice(t)
		vault := createVault(0)

		var appended []*treasury.VaultTransaction
		r.invoices.On("FindByIDForUpdate", mock.Anything, inv.ID).Return(inv, nil)
		r.vaults.On("FindByIDForUpdate", mock.Anything, vault.ID).Return(vault, nil)
		r.vaults.On("Save", mock.Anything, vault).Return(nil)
		r.vaultTx.On("Append", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { appended = args.Get(1).([]*treasury.VaultTransaction) }).
			Return(nil)
		r.invoices.On("SaveWithLock", mock.Anything, inv, mock.Anything).Return(nil)

		_, err := svc.CollectAdmin(context.Background(), CollectAdminInput{
			InvoiceID: inv.ID, VaultID: vault.ID, PaymentMethod: invoicing.PaymentMethodBankTransfer,
			ProofURL: "https://bank.test/statements/0412.pdf", PerformedBy: uuid.New(),
		})

		require.NoError(t, err)
		assert.Equal(t, invoicing.InvoiceStatusPaid, inv.Status)
		assert.Equal(t, "https://bank.test/statements/0412.pdf", inv.PaymentProofURL)
		require.Len(t, appended, 1)
		assert.Equal(t, "https://bank.test/statements/0412.pdf", appended[0].Metadata["proof_url"])
	})
}

func TestCollectAdmin_InactiveVaultRejected(t *testing.T) {
	r := newTestRepos()
	svc, _ := newTestCollectionService(r, nil, nil)
	inv := createPendingInvoice(t)
	vault := createVault(0)
	vault.SetActive(false)

	r.invoices.On("FindByIDForUpdate", mock.Anything, inv.ID).Return(inv, nil)
	r.vaults.On("FindByIDForUpdate", mock.Anything, vault.ID).Return(vault, nil)

	_, err := svc.CollectAdmin(context.Background(), CollectAdminInput{
		InvoiceID: inv.ID, VaultID: vault.ID, PaymentMethod: invoicing.PaymentMethodBankTransfer, PerformedBy: uuid.New(),
	})

	require.Error(t, err)
	assert.Equal(t, shared.KindInvalidState, shared.KindOf(err))
	assert.Equal(t, invoicing.InvoiceStatusPending, inv.Status)
}

func TestRejectDigitalPayment(t *testing.T) {
	t.Run("awaiting review is cancelled without reversal", func(t *testing.T) {
		r := newTestRepos()
		svc, pub := newTestCollectionService(r, nil, nil)
		inv := createPendingInvoice(t)
		require.NoError(t, inv.SubmitPaymentProof(invoicing.PaymentMethodInstapay, "https://x/p.png", uuid.New(), time.Now()))
		inv.ClearDomainEvents()

		r.invoices.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)
		r.invoices.On("FindByIDForUpdate", mock.Anything, inv.ID).Return(inv, nil)
		r.invoices.On("SaveWithLock", mock.Anything, inv, mock.Anything).Return(nil)

		result, err := svc.RejectDigitalPayment(context.Background(), inv.ID, uuid.New())

		require.NoError(t, err)
		assert.False(t, result.Refunded)
		assert.Equal(t, "cancelled", result.Invoice.Status)
		assert.Equal(t, RejectionReason, result.Invoice.CancelReason)
		assert.Equal(t, []string{invoicing.EventTypeInvoiceCancelled}, pub.EventTypes())
		r.vaultTx.AssertNotCalled(t, "NetCollectedByInvoice", mock.Anything, mock.Anything)
	})

	t.Run("invoice without proof is rejected", func(t *testing.T) {
		r := newTestRepos()
		svc, _ := newTestCollectionService(r, nil, nil)
		inv := createPendingInvoice(t)

		r.invoices.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)

		_, err := svc.RejectDigitalPayment(context.Background(), inv.ID, uuid.New())

		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "NOT_AWAITING_REVIEW", de.Code)
	})
}
