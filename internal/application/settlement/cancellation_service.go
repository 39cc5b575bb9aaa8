package settlement

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/fieldops/backend/internal/domain/invoicing"
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/domain/treasury"
	"github.com/fieldops/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CancellationService cancels invoices and reverses any money they moved
type CancellationService struct {
	scope     SettlementScope
	clock     shared.Clock
	publisher shared.EventPublisher
	observer  OperationObserver
}

// NewCancellationService creates a new CancellationService
func NewCancellationService(scope SettlementScope) *CancellationService {
	return &CancellationService{scope: scope, clock: shared.NewSystemClock(), observer: noopObserver{}}
}

// SetClock overrides the wall clock
func (s *CancellationService) SetClock(clock shared.Clock) {
	if clock != nil {
		s.clock = clock
	}
}

// SetEventPublisher sets the publisher used after commit
func (s *CancellationService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetObserver sets the operation metrics observer
func (s *CancellationService) SetObserver(observer OperationObserver) {
	if observer != nil {
		s.observer = observer
	}
}

// creditedAccount is an account that still holds money collected for an invoice
type creditedAccount struct {
	kind   treasury.AccountKind
	id     uuid.UUID
	amount decimal.Decimal
}

// CancelInvoice cancels an invoice. Draft and pending invoices flip status only.
// Paid and partially paid invoices need a reason; every account still holding
// money for the invoice is debited by exactly that amount with one reversal row,
// in the same transaction as the status flip. If any account cannot cover its
// reversal the whole cancellation fails.
func (s *CancellationService) CancelInvoice(ctx context.Context, in CancelInvoiceInput) (*CancellationResult, error) {
	ctx, op := startOperation(ctx, s.observer, OpCancelInvoice, "invoice_id", in.InvoiceID.String())

	var (
		inv      *invoicing.Invoice
		refunded = decimal.Zero
		touched  []eventSource
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		inv, err = repos.InvoiceRepo().FindByIDForUpdate(ctx, in.InvoiceID)
		if err != nil {
			return err
		}
		if !inv.Status.CanCancel() {
			return shared.NewInvalidStateError("INVALID_STATE", "Invoice is already cancelled")
		}
		reason := strings.TrimSpace(in.Reason)
		previous := inv.Status

		if previous.HasCollections() {
			if reason == "" {
				return shared.NewValidationError("INVALID_REASON", "Cancel reason is required for a paid invoice")
			}
			accounts, err := s.creditedAccounts(ctx, repos, inv.ID)
			if err != nil {
				return err
			}
			for _, acc := range accounts {
				src, err := s.reverse(ctx, repos, acc, inv.ID, reason, in.PerformedBy)
				if err != nil {
					return err
				}
				touched = append(touched, src)
				refunded = refunded.Add(acc.amount)
			}
		}

		if err := inv.Cancel(in.PerformedBy, reason, refunded, s.clock.Now()); err != nil {
			return err
		}
		return repos.InvoiceRepo().SaveWithLock(ctx, inv, previous)
	})
	if err != nil {
		return nil, op.end(err)
	}

	op.setAmount(refunded)
	logger.L(ctx).Info("invoice cancelled",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("reason", inv.CancelReason),
		zap.String("refunded_amount", refunded.String()),
		zap.Int("accounts_reversed", len(touched)))
	publishAfterCommit(ctx, s.publisher, append(touched, inv)...)

	return &CancellationResult{
		Invoice:        ToInvoiceResponse(inv),
		Refunded:       refunded.IsPositive(),
		RefundedAmount: refunded,
	}, op.end(nil)
}

// creditedAccounts returns every account with a positive net collection for the
// invoice, in lock order.
func (s *CancellationService) creditedAccounts(ctx context.Context, repos TransactionalRepositories, invoiceID uuid.UUID) ([]creditedAccount, error) {
	vaultNets, err := repos.VaultTxRepo().NetCollectedByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	custodyNets, err := repos.CustodyTxRepo().NetCollectedByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	accounts := make([]creditedAccount, 0, len(vaultNets)+len(custodyNets))
	for id, net := range vaultNets {
		if net.IsPositive() {
			accounts = append(accounts, creditedAccount{kind: treasury.AccountKindVault, id: id, amount: net})
		}
	}
	for id, net := range custodyNets {
		if net.IsPositive() {
			accounts = append(accounts, creditedAccount{kind: treasury.AccountKindCustody, id: id, amount: net})
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		return bytes.Compare(accounts[i].id[:], accounts[j].id[:]) < 0
	})
	return accounts, nil
}

func (s *CancellationService) reverse(
	ctx context.Context,
	repos TransactionalRepositories,
	acc creditedAccount,
	invoiceID uuid.UUID,
	reason string,
	by uuid.UUID,
) (eventSource, error) {
	switch acc.kind {
	case treasury.AccountKindVault:
		vault, err := repos.VaultRepo().FindByIDForUpdate(ctx, acc.id)
		if err != nil {
			return nil, goneAsInsufficient(err, acc.amount)
		}
		row, err := vault.Reverse(invoiceID, acc.amount, reason, by)
		if err != nil {
			return nil, err
		}
		if err := repos.VaultRepo().Save(ctx, vault); err != nil {
			return nil, err
		}
		return vault, repos.VaultTxRepo().Append(ctx, row)
	default:
		custody, err := repos.CustodyRepo().FindByIDForUpdate(ctx, acc.id)
		if err != nil {
			return nil, goneAsInsufficient(err, acc.amount)
		}
		row, err := custody.Reverse(invoiceID, acc.amount, reason, by)
		if err != nil {
			return nil, err
		}
		if err := repos.CustodyRepo().Save(ctx, custody); err != nil {
			return nil, err
		}
		return custody, repos.CustodyTxRepo().Append(ctx, row)
	}
}

// goneAsInsufficient reports a credited account that was deleted since the
// collection as holding nothing: the reversal cannot be funded.
func goneAsInsufficient(err error, amount decimal.Decimal) error {
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NewInsufficientBalanceError(decimal.Zero, amount)
	}
	return err
}
