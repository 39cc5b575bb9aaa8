package settlement

import (
	"context"

	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/domain/treasury"
	"github.com/fieldops/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CustodyService manages custody accounts and settles their cash
type CustodyService struct {
	custodyRepo   treasury.CustodyAccountRepository
	custodyTxRepo treasury.CustodyTransactionRepository
	scope         SettlementScope
	clock         shared.Clock
	publisher     shared.EventPublisher
	observer      OperationObserver
}

// NewCustodyService creates a new CustodyService
func NewCustodyService(
	custodyRepo treasury.CustodyAccountRepository,
	custodyTxRepo treasury.CustodyTransactionRepository,
	scope SettlementScope,
) *CustodyService {
	return &CustodyService{
		custodyRepo:   custodyRepo,
		custodyTxRepo: custodyTxRepo,
		scope:         scope,
		clock:         shared.NewSystemClock(),
		observer:      noopObserver{},
	}
}

// SetClock overrides the wall clock
func (s *CustodyService) SetClock(clock shared.Clock) {
	if clock != nil {
		s.clock = clock
	}
}

// SetEventPublisher sets the publisher used after commit
func (s *CustodyService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetObserver sets the operation metrics observer
func (s *CustodyService) SetObserver(observer OperationObserver) {
	if observer != nil {
		s.observer = observer
	}
}

// SettleToVault drains custody cash into an active vault. The amount defaults
// to the whole custody balance; frozen accounts can be drained.
func (s *CustodyService) SettleToVault(ctx context.Context, in SettleToVaultInput) (*TransferResult, error) {
	ctx, op := startOperation(ctx, s.observer, OpSettleToVault,
		"custody_id", in.CustodyID.String(),
		"vault_id", in.VaultID.String(),
	)

	var (
		custody *treasury.CustodyAccount
		vault   *treasury.Vault
		out     *treasury.CustodyTransaction
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		// both ids share one lock order even though they live in different tables
		first, _ := treasury.LockOrder(in.CustodyID, in.VaultID)
		if first == in.CustodyID {
			if custody, err = repos.CustodyRepo().FindByIDForUpdate(ctx, in.CustodyID); err != nil {
				return err
			}
			if vault, err = repos.VaultRepo().FindByIDForUpdate(ctx, in.VaultID); err != nil {
				return err
			}
		} else {
			if vault, err = repos.VaultRepo().FindByIDForUpdate(ctx, in.VaultID); err != nil {
				return err
			}
			if custody, err = repos.CustodyRepo().FindByIDForUpdate(ctx, in.CustodyID); err != nil {
				return err
			}
		}

		if err := authorizeSettlement(custody, in.PerformedBy, in.Privileged); err != nil {
			return err
		}
		amount, err := custody.ResolveSettlementAmount(in.Amount)
		if err != nil {
			return err
		}
		var inRow *treasury.VaultTransaction
		out, inRow, err = treasury.SettleToVault(custody, vault, amount, in.Notes, in.PerformedBy)
		if err != nil {
			return err
		}
		if err := repos.CustodyRepo().Save(ctx, custody); err != nil {
			return err
		}
		if err := repos.VaultRepo().Save(ctx, vault); err != nil {
			return err
		}
		if err := repos.CustodyTxRepo().Append(ctx, out); err != nil {
			return err
		}
		return repos.VaultTxRepo().Append(ctx, inRow)
	})
	if err != nil {
		return nil, op.end(err)
	}

	op.setAmount(out.Amount)
	logger.L(ctx).Info("custody settled to vault",
		zap.String("custody_id", custody.ID.String()),
		zap.String("vault_id", vault.ID.String()),
		zap.String("amount", out.Amount.String()))
	publishAfterCommit(ctx, s.publisher, custody, vault)

	return &TransferResult{
		Amount:        out.Amount,
		SourceID:      custody.ID,
		SourceBalance: custody.Balance,
		TargetID:      vault.ID,
		TargetBalance: vault.Balance,
	}, op.end(nil)
}

// SettleToCustody hands team leader cash to an active supervisor custody.
// Both rows are locked in ascending id order.
func (s *CustodyService) SettleToCustody(ctx context.Context, in SettleToCustodyInput) (*TransferResult, error) {
	ctx, op := startOperation(ctx, s.observer, OpSettleToCustody,
		"from_custody_id", in.FromCustodyID.String(),
		"to_custody_id", in.ToCustodyID.String(),
	)

	if in.FromCustodyID == in.ToCustodyID {
		return nil, op.end(shared.NewValidationError("SETTLEMENT_NOT_ALLOWED", "Cannot settle a custody account into itself"))
	}

	var (
		from, to *treasury.CustodyAccount
		out      *treasury.CustodyTransaction
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		first, second := treasury.LockOrder(in.FromCustodyID, in.ToCustodyID)
		locked := make(map[uuid.UUID]*treasury.CustodyAccount, 2)
		for _, id := range []uuid.UUID{first, second} {
			acc, err := repos.CustodyRepo().FindByIDForUpdate(ctx, id)
			if err != nil {
				return err
			}
			locked[id] = acc
		}
		from, to = locked[in.FromCustodyID], locked[in.ToCustodyID]
		if err := authorizeSettlement(from, in.PerformedBy, in.Privileged); err != nil {
			return err
		}

		amount, err := from.ResolveSettlementAmount(in.Amount)
		if err != nil {
			return err
		}
		var inRow *treasury.CustodyTransaction
		out, inRow, err = treasury.SettleToCustody(from, to, amount, in.Notes, in.PerformedBy)
		if err != nil {
			return err
		}
		if err := repos.CustodyRepo().Save(ctx, from); err != nil {
			return err
		}
		if err := repos.CustodyRepo().Save(ctx, to); err != nil {
			return err
		}
		return repos.CustodyTxRepo().Append(ctx, out, inRow)
	})
	if err != nil {
		return nil, op.end(err)
	}

	op.setAmount(out.Amount)
	logger.L(ctx).Info("custody settled to custody",
		zap.String("from_custody_id", from.ID.String()),
		zap.String("to_custody_id", to.ID.String()),
		zap.String("amount", out.Amount.String()))
	publishAfterCommit(ctx, s.publisher, from, to)

	return &TransferResult{
		Amount:        out.Amount,
		SourceID:      from.ID,
		SourceBalance: from.Balance,
		TargetID:      to.ID,
		TargetBalance: to.Balance,
	}, op.end(nil)
}

// AddToCustody tops up an active custody account's float
func (s *CustodyService) AddToCustody(ctx context.Context, in AddFundsInput) (*CustodyResponse, error) {
	ctx, op := startOperation(ctx, s.observer, OpAddToCustody, "custody_id", in.CustodyID.String())
	op.setAmount(in.Amount)

	var custody *treasury.CustodyAccount
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		custody, err = repos.CustodyRepo().FindByIDForUpdate(ctx, in.CustodyID)
		if err != nil {
			return err
		}
		row, err := custody.AddFunds(in.Amount, in.Notes, in.PerformedBy)
		if err != nil {
			return err
		}
		if err := repos.CustodyRepo().Save(ctx, custody); err != nil {
			return err
		}
		return repos.CustodyTxRepo().Append(ctx, row)
	})
	if err != nil {
		return nil, op.end(err)
	}

	logger.L(ctx).Info("custody funds added",
		zap.String("custody_id", custody.ID.String()),
		zap.String("amount", in.Amount.String()),
		zap.String("balance", custody.Balance.String()))
	publishAfterCommit(ctx, s.publisher, custody)
	return ToCustodyResponse(custody), op.end(nil)
}

// CreateCustodyAccount opens an account. A user can hold one active account.
func (s *CustodyService) CreateCustodyAccount(ctx context.Context, in CreateCustodyInput) (*CustodyResponse, error) {
	account, err := treasury.NewCustodyAccount(in.UserID, in.HolderType, in.TeamID)
	if err != nil {
		return nil, err
	}

	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		exists, err := repos.CustodyRepo().HasActiveForUser(ctx, in.UserID, nil)
		if err != nil {
			return err
		}
		if exists {
			return errCustodyExists()
		}
		return repos.CustodyRepo().Create(ctx, account)
	})
	if err != nil {
		return nil, err
	}

	logger.L(ctx).Info("custody account created",
		zap.String("custody_id", account.ID.String()),
		zap.String("user_id", account.UserID.String()),
		zap.String("holder_type", account.HolderType.String()))
	return ToCustodyResponse(account), nil
}

func errCustodyExists() error {
	return shared.NewConflictError("CUSTODY_ALREADY_EXISTS", "User already has an active custody account")
}

// ActivateCustodyAccount reopens an empty inactive account
func (s *CustodyService) ActivateCustodyAccount(ctx context.Context, id uuid.UUID) (*CustodyResponse, error) {
	return s.changeStatus(ctx, id, "activated", func(repos TransactionalRepositories, acc *treasury.CustodyAccount) error {
		exists, err := repos.CustodyRepo().HasActiveForUser(ctx, acc.UserID, &acc.ID)
		if err != nil {
			return err
		}
		if exists {
			return errCustodyExists()
		}
		return acc.Activate()
	})
}

// DeactivateCustodyAccount closes an account; with a balance it becomes frozen
func (s *CustodyService) DeactivateCustodyAccount(ctx context.Context, id uuid.UUID) (*CustodyResponse, error) {
	return s.changeStatus(ctx, id, "deactivated", func(_ TransactionalRepositories, acc *treasury.CustodyAccount) error {
		return acc.Deactivate()
	})
}

// DeleteCustodyAccount soft-deletes an empty account. Its ledger rows are kept.
func (s *CustodyService) DeleteCustodyAccount(ctx context.Context, id uuid.UUID) error {
	_, err := s.changeStatus(ctx, id, "deleted", func(_ TransactionalRepositories, acc *treasury.CustodyAccount) error {
		return acc.MarkDeleted(s.clock.Now())
	})
	return err
}

func (s *CustodyService) changeStatus(
	ctx context.Context,
	id uuid.UUID,
	action string,
	apply func(repos TransactionalRepositories, acc *treasury.CustodyAccount) error,
) (*CustodyResponse, error) {
	ctx, op := startOperation(ctx, s.observer, OpCustodyStatusChange, "custody_id", id.String(), "action", action)

	var account *treasury.CustodyAccount
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		account, err = repos.CustodyRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := apply(repos, account); err != nil {
			return err
		}
		return repos.CustodyRepo().Save(ctx, account)
	})
	if err != nil {
		return nil, op.end(err)
	}

	logger.L(ctx).Info("custody account "+action,
		zap.String("custody_id", account.ID.String()),
		zap.Bool("frozen", account.IsFrozen()))
	publishAfterCommit(ctx, s.publisher, account)
	return ToCustodyResponse(account), op.end(nil)
}

// GetCustodyAccount returns a custody account
func (s *CustodyService) GetCustodyAccount(ctx context.Context, id uuid.UUID) (*CustodyResponse, error) {
	account, err := s.custodyRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToCustodyResponse(account), nil
}

// GetByUser returns the user's active account, or their most recent one
func (s *CustodyService) GetByUser(ctx context.Context, userID uuid.UUID) (*CustodyResponse, error) {
	account, err := s.custodyRepo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ToCustodyResponse(account), nil
}

// ListCustodyAccounts returns a page of custody accounts
func (s *CustodyService) ListCustodyAccounts(ctx context.Context, filter treasury.CustodyFilter) (shared.Paginated[CustodyResponse], error) {
	filter.Filter = normalizePage(filter.Page, filter.PageSize, filter.OrderBy, filter.OrderDir)
	accounts, total, err := s.custodyRepo.FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[CustodyResponse]{}, err
	}
	items := make([]CustodyResponse, len(accounts))
	for i := range accounts {
		items[i] = *ToCustodyResponse(&accounts[i])
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

// ListCustodyTransactions returns a page of a custody ledger, newest first
func (s *CustodyService) ListCustodyTransactions(ctx context.Context, custodyID uuid.UUID, f LedgerListFilter) (shared.Paginated[LedgerEntryResponse], error) {
	if _, err := s.custodyRepo.FindByID(ctx, custodyID); err != nil {
		return shared.Paginated[LedgerEntryResponse]{}, err
	}
	filter := toLedgerFilter(f)
	rows, total, err := s.custodyTxRepo.FindByCustody(ctx, custodyID, filter)
	if err != nil {
		return shared.Paginated[LedgerEntryResponse]{}, err
	}
	items := make([]LedgerEntryResponse, len(rows))
	for i := range rows {
		items[i] = toLedgerEntryResponse(rows[i].CustodyID, &rows[i].LedgerEntry)
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

// authorizeSettlement lets only the holder or a privileged caller drain a custody account.
func authorizeSettlement(acc *treasury.CustodyAccount, performedBy uuid.UUID, privileged bool) error {
	if privileged || acc.UserID == performedBy {
		return nil
	}
	return shared.NewKindError(shared.KindForbidden, shared.ErrForbidden.Code,
		"Only the account holder or an admin can settle this custody account")
}
