package settlement

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/fieldops/backend/internal/domain/invoicing"
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/domain/treasury"
	"github.com/fieldops/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RejectionReason is recorded on invoices whose digital payment an admin rejected
const RejectionReason = "rejected by admin"

// ProofBucket is the bucket payment proofs are stored in
const ProofBucket = "receipts"

// ProofPolicy bounds uploaded payment proofs
type ProofPolicy struct {
	MaxBytes     int64
	AllowedTypes []string
}

// DefaultProofPolicy accepts common image formats and PDF up to 10 MiB
func DefaultProofPolicy() ProofPolicy {
	return ProofPolicy{
		MaxBytes:     10 << 20,
		AllowedTypes: []string{"image/jpeg", "image/png", "image/webp", "application/pdf"},
	}
}

var proofExtensions = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/webp":      "webp",
	"application/pdf": "pdf",
}

// ProofKey builds the object key of an invoice's payment proof
func ProofKey(invoiceID uuid.UUID, unixMillis int64, ext string) string {
	return fmt.Sprintf("invoice_%s_%d.%s", invoiceID, unixMillis, ext)
}

// CollectionService moves invoice payments into custody accounts and vaults
type CollectionService struct {
	invoiceRepo  invoicing.InvoiceRepository
	scope        SettlementScope
	storage      ProofStorage
	cancellation *CancellationService
	clock        shared.Clock
	policy       ProofPolicy
	publisher    shared.EventPublisher
	observer     OperationObserver
}

// NewCollectionService creates a new CollectionService
func NewCollectionService(
	invoiceRepo invoicing.InvoiceRepository,
	scope SettlementScope,
	storage ProofStorage,
	cancellation *CancellationService,
	clock shared.Clock,
) *CollectionService {
	if clock == nil {
		clock = shared.NewSystemClock()
	}
	return &CollectionService{
		invoiceRepo:  invoiceRepo,
		scope:        scope,
		storage:      storage,
		cancellation: cancellation,
		clock:        clock,
		policy:       DefaultProofPolicy(),
		observer:     noopObserver{},
	}
}

// SetEventPublisher sets the publisher used after commit
func (s *CollectionService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetObserver sets the operation metrics observer
func (s *CollectionService) SetObserver(observer OperationObserver) {
	if observer != nil {
		s.observer = observer
	}
}

// SetProofPolicy overrides the upload limits
func (s *CollectionService) SetProofPolicy(policy ProofPolicy) {
	if policy.MaxBytes > 0 {
		s.policy.MaxBytes = policy.MaxBytes
	}
	if len(policy.AllowedTypes) > 0 {
		s.policy.AllowedTypes = policy.AllowedTypes
	}
}

// CollectCash credits field cash for an invoice into an active custody account.
// The amount defaults to the outstanding amount.
func (s *CollectionService) CollectCash(ctx context.Context, in CollectCashInput) (*CollectionResult, error) {
	ctx, op := startOperation(ctx, s.observer, OpCollectCash,
		"invoice_id", in.InvoiceID.String(),
		"custody_id", in.CustodyID.String(),
	)

	var (
		inv     *invoicing.Invoice
		custody *treasury.CustodyAccount
		row     *treasury.CustodyTransaction
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		inv, err = repos.InvoiceRepo().FindByIDForUpdate(ctx, in.InvoiceID)
		if err != nil {
			return err
		}
		custody, err = repos.CustodyRepo().FindByIDForUpdate(ctx, in.CustodyID)
		if err != nil {
			return err
		}
		if err := custody.EnsureActive(); err != nil {
			return err
		}
		if !inv.Status.CanCollect() {
			return shared.NewInvalidStateError("INVALID_STATE",
				fmt.Sprintf("Cannot collect invoice in %s status", inv.Status))
		}

		previous := inv.Status
		amount, err := inv.ResolveCollectionAmount(in.Amount)
		if err != nil {
			return err
		}
		if err := inv.RecordCollection(amount, invoicing.PaymentMethodCash, in.PerformedBy, s.clock.Now()); err != nil {
			return err
		}
		row, err = custody.CollectForInvoice(inv.ID, amount, in.PerformedBy)
		if err != nil {
			return err
		}
		row.WithMetadata(map[string]any{
			"invoice_number": inv.InvoiceNumber,
			"payment_method": invoicing.PaymentMethodCash.String(),
		})

		if err := repos.CustodyRepo().Save(ctx, custody); err != nil {
			return err
		}
		if err := repos.CustodyTxRepo().Append(ctx, row); err != nil {
			return err
		}
		return repos.InvoiceRepo().SaveWithLock(ctx, inv, previous)
	})
	if err != nil {
		return nil, op.end(err)
	}

	op.setAmount(row.Amount)
	logger.L(ctx).Info("cash collected",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("custody_id", custody.ID.String()),
		zap.String("amount", row.Amount.String()),
		zap.String("status", inv.Status.String()))
	publishAfterCommit(ctx, s.publisher, inv, custody)

	return &CollectionResult{
		Invoice:      ToInvoiceResponse(inv),
		Amount:       row.Amount,
		AccountKind:  treasury.AccountKindCustody.String(),
		AccountID:    custody.ID,
		BalanceAfter: custody.Balance,
	}, op.end(nil)
}

// SubmitDigitalPayment uploads a payment proof and places the invoice in the
// admin review queue. The upload happens before, and outside, the transaction;
// a failed upload aborts without touching the invoice.
func (s *CollectionService) SubmitDigitalPayment(ctx context.Context, in SubmitProofInput) (*InvoiceResponse, error) {
	ctx, op := startOperation(ctx, s.observer, OpSubmitProof,
		"invoice_id", in.InvoiceID.String(),
		"payment_method", in.PaymentMethod.String(),
	)

	if !in.PaymentMethod.IsDigital() {
		return nil, op.end(shared.NewValidationError("INVALID_PAYMENT_METHOD", "Payment proof is only accepted for instapay or bank_transfer"))
	}
	ext, err := s.checkProof(in)
	if err != nil {
		return nil, op.end(err)
	}

	current, err := s.invoiceRepo.FindByID(ctx, in.InvoiceID)
	if err != nil {
		return nil, op.end(err)
	}
	if !current.Status.CanCollect() {
		return nil, op.end(shared.NewInvalidStateError("INVALID_STATE",
			fmt.Sprintf("Cannot submit payment proof for invoice in %s status", current.Status)))
	}

	key := ProofKey(in.InvoiceID, s.clock.Now().UnixMilli(), ext)
	url, err := s.storage.Upload(ctx, key, in.ContentType, bytes.NewReader(in.Data), int64(len(in.Data)))
	if err != nil {
		return nil, op.end(fmt.Errorf("failed to upload payment proof: %w", err))
	}

	var inv *invoicing.Invoice
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		inv, err = repos.InvoiceRepo().FindByIDForUpdate(ctx, in.InvoiceID)
		if err != nil {
			return err
		}
		previous := inv.Status
		if err := inv.SubmitPaymentProof(in.PaymentMethod, url, in.PerformedBy, s.clock.Now()); err != nil {
			return err
		}
		return repos.InvoiceRepo().SaveWithLock(ctx, inv, previous)
	})
	if err != nil {
		logger.L(ctx).Warn("payment proof stored but not recorded", zap.String("key", key))
		return nil, op.end(err)
	}

	logger.L(ctx).Info("payment proof submitted",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("payment_method", in.PaymentMethod.String()),
		zap.String("proof_url", url))
	publishAfterCommit(ctx, s.publisher, inv)
	return ToInvoiceResponse(inv), op.end(nil)
}

func (s *CollectionService) checkProof(in SubmitProofInput) (string, error) {
	if len(in.Data) == 0 {
		return "", shared.NewValidationError("INVALID_PROOF", "Payment proof file is empty")
	}
	if int64(len(in.Data)) > s.policy.MaxBytes {
		return "", shared.NewValidationError("PROOF_TOO_LARGE",
			fmt.Sprintf("Payment proof exceeds %d bytes", s.policy.MaxBytes))
	}
	contentType := strings.ToLower(strings.TrimSpace(strings.Split(in.ContentType, ";")[0]))
	allowed := false
	for _, t := range s.policy.AllowedTypes {
		if t == contentType {
			allowed = true
			break
		}
	}
	ext, known := proofExtensions[contentType]
	if !allowed || !known {
		return "", shared.NewValidationError("INVALID_PROOF_TYPE",
			fmt.Sprintf("Unsupported payment proof type: %s", in.ContentType))
	}
	return ext, nil
}

// CollectAdmin credits a reviewed digital payment into an active vault and
// marks the invoice paid or partially paid. The invoice must be waiting for
// review unless the admin supplies the proof URL.
func (s *CollectionService) CollectAdmin(ctx context.Context, in CollectAdminInput) (*CollectionResult, error) {
	ctx, op := startOperation(ctx, s.observer, OpCollectAdmin,
		"invoice_id", in.InvoiceID.String(),
		"vault_id", in.VaultID.String(),
		"payment_method", in.PaymentMethod.String(),
	)

	if !in.PaymentMethod.IsDigital() {
		return nil, op.end(shared.NewValidationError("INVALID_PAYMENT_METHOD", "Admin collection requires instapay or bank_transfer"))
	}

	var (
		inv   *invoicing.Invoice
		vault *treasury.Vault
		row   *treasury.VaultTransaction
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		inv, err = repos.InvoiceRepo().FindByIDForUpdate(ctx, in.InvoiceID)
		if err != nil {
			return err
		}
		vault, err = repos.VaultRepo().FindByIDForUpdate(ctx, in.VaultID)
		if err != nil {
			return err
		}
		if err := vault.EnsureActive(); err != nil {
			return err
		}
		if !inv.Status.CanCollect() {
			return shared.NewInvalidStateError("INVALID_STATE",
				fmt.Sprintf("Cannot collect invoice in %s status", inv.Status))
		}

		previous := inv.Status
		amount, err := inv.ResolveCollectionAmount(in.Amount)
		if err != nil {
			return err
		}
		proofURL := strings.TrimSpace(in.ProofURL)
		if proofURL == "" {
			if !inv.IsAwaitingReview() {
				return shared.NewInvalidStateError("NOT_AWAITING_REVIEW",
					"Invoice has no payment waiting for review; attach a proof URL to collect it directly")
			}
			proofURL = inv.PaymentProofURL
		}
		if err := inv.RecordCollection(amount, in.PaymentMethod, in.PerformedBy, s.clock.Now()); err != nil {
			return err
		}
		inv.PaymentProofURL = proofURL

		row, err = vault.CollectForInvoice(inv.ID, amount, in.PerformedBy)
		if err != nil {
			return err
		}
		row.WithMetadata(map[string]any{
			"invoice_number": inv.InvoiceNumber,
			"payment_method": in.PaymentMethod.String(),
			"proof_url":      proofURL,
		})

		if err := repos.VaultRepo().Save(ctx, vault); err != nil {
			return err
		}
		if err := repos.VaultTxRepo().Append(ctx, row); err != nil {
			return err
		}
		return repos.InvoiceRepo().SaveWithLock(ctx, inv, previous)
	})
	if err != nil {
		return nil, op.end(err)
	}

	op.setAmount(row.Amount)
	logger.L(ctx).Info("digital payment collected",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("vault_id", vault.ID.String()),
		zap.String("amount", row.Amount.String()),
		zap.String("status", inv.Status.String()))
	publishAfterCommit(ctx, s.publisher, inv, vault)

	return &CollectionResult{
		Invoice:      ToInvoiceResponse(inv),
		Amount:       row.Amount,
		AccountKind:  treasury.AccountKindVault.String(),
		AccountID:    vault.ID,
		BalanceAfter: vault.Balance,
	}, op.end(nil)
}

// RejectDigitalPayment cancels an invoice whose payment proof an admin refused.
// Only invoices waiting for review can be rejected.
func (s *CollectionService) RejectDigitalPayment(ctx context.Context, invoiceID, by uuid.UUID) (*CancellationResult, error) {
	ctx, op := startOperation(ctx, s.observer, OpRejectPayment, "invoice_id", invoiceID.String())

	inv, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, op.end(err)
	}
	if !inv.IsAwaitingReview() {
		return nil, op.end(shared.NewInvalidStateError("NOT_AWAITING_REVIEW", "Invoice has no payment waiting for review"))
	}

	result, err := s.cancellation.CancelInvoice(ctx, CancelInvoiceInput{
		InvoiceID:   invoiceID,
		Reason:      RejectionReason,
		PerformedBy: by,
	})
	if err != nil {
		return nil, op.end(err)
	}
	return result, op.end(nil)
}
