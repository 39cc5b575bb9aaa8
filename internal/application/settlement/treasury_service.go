package settlement

import (
	"context"
	"fmt"

	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/domain/treasury"
	"github.com/fieldops/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TreasuryService manages vaults and the money moving between them
type TreasuryService struct {
	vaultRepo   treasury.VaultRepository
	vaultTxRepo treasury.VaultTransactionRepository
	scope       SettlementScope
	publisher   shared.EventPublisher
	observer    OperationObserver
}

// NewTreasuryService creates a new TreasuryService
func NewTreasuryService(
	vaultRepo treasury.VaultRepository,
	vaultTxRepo treasury.VaultTransactionRepository,
	scope SettlementScope,
) *TreasuryService {
	return &TreasuryService{
		vaultRepo:   vaultRepo,
		vaultTxRepo: vaultTxRepo,
		scope:       scope,
		observer:    noopObserver{},
	}
}

// SetEventPublisher sets the publisher used after commit
func (s *TreasuryService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetObserver sets the operation metrics observer
func (s *TreasuryService) SetObserver(observer OperationObserver) {
	if observer != nil {
		s.observer = observer
	}
}

// TransferBetweenVaults moves money between two active vaults. Both rows are
// locked in ascending id order.
func (s *TreasuryService) TransferBetweenVaults(ctx context.Context, in TransferInput) (*TransferResult, error) {
	ctx, op := startOperation(ctx, s.observer, OpTransferVaults,
		"from_vault_id", in.FromVaultID.String(),
		"to_vault_id", in.ToVaultID.String(),
	)
	op.setAmount(in.Amount)

	if in.FromVaultID == in.ToVaultID {
		return nil, op.end(shared.NewValidationError("SAME_VAULT", "Source and destination vaults must differ"))
	}
	if !in.Amount.IsPositive() {
		return nil, op.end(shared.NewValidationError("INVALID_AMOUNT", "Amount must be positive"))
	}

	var from, to *treasury.Vault
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		locked, err := lockVaults(ctx, repos.VaultRepo(), in.FromVaultID, in.ToVaultID)
		if err != nil {
			return err
		}
		from, to = locked[in.FromVaultID], locked[in.ToVaultID]

		out, inRow, err := treasury.TransferBetweenVaults(from, to, in.Amount, in.Notes, in.PerformedBy)
		if err != nil {
			return err
		}
		if err := repos.VaultRepo().Save(ctx, from); err != nil {
			return err
		}
		if err := repos.VaultRepo().Save(ctx, to); err != nil {
			return err
		}
		return repos.VaultTxRepo().Append(ctx, out, inRow)
	})
	if err != nil {
		return nil, op.end(err)
	}

	logger.L(ctx).Info("vault transfer completed",
		zap.String("from_vault_id", from.ID.String()),
		zap.String("to_vault_id", to.ID.String()),
		zap.String("amount", in.Amount.String()))
	publishAfterCommit(ctx, s.publisher, from, to)

	return &TransferResult{
		Amount:        in.Amount,
		SourceID:      from.ID,
		SourceBalance: from.Balance,
		TargetID:      to.ID,
		TargetBalance: to.Balance,
	}, op.end(nil)
}

func lockVaults(ctx context.Context, repo treasury.VaultRepository, a, b uuid.UUID) (map[uuid.UUID]*treasury.Vault, error) {
	first, second := treasury.LockOrder(a, b)
	out := make(map[uuid.UUID]*treasury.Vault, 2)
	for _, id := range []uuid.UUID{first, second} {
		v, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = v
	}
	return out, nil
}

// ManualAdjustment deposits into or withdraws from a vault. Notes are mandatory.
func (s *TreasuryService) ManualAdjustment(ctx context.Context, in AdjustmentInput) (*VaultResponse, error) {
	ctx, op := startOperation(ctx, s.observer, OpManualAdjustment,
		"vault_id", in.VaultID.String(),
		"type", in.Type.String(),
	)
	op.setAmount(in.Amount)

	if in.Type != treasury.TransactionTypeDeposit && in.Type != treasury.TransactionTypeWithdrawal {
		return nil, op.end(shared.NewValidationError("INVALID_ADJUSTMENT_TYPE",
			fmt.Sprintf("Adjustment type must be deposit or withdrawal, got %s", in.Type)))
	}

	var vault *treasury.Vault
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		vault, err = repos.VaultRepo().FindByIDForUpdate(ctx, in.VaultID)
		if err != nil {
			return err
		}
		var row *treasury.VaultTransaction
		if in.Type == treasury.TransactionTypeDeposit {
			row, err = vault.Deposit(in.Amount, in.Notes, in.PerformedBy)
		} else {
			row, err = vault.Withdraw(in.Amount, in.Notes, in.PerformedBy)
		}
		if err != nil {
			return err
		}
		if err := repos.VaultRepo().Save(ctx, vault); err != nil {
			return err
		}
		return repos.VaultTxRepo().Append(ctx, row)
	})
	if err != nil {
		return nil, op.end(err)
	}

	logger.L(ctx).Info("vault adjusted",
		zap.String("vault_id", vault.ID.String()),
		zap.String("type", in.Type.String()),
		zap.String("amount", in.Amount.String()),
		zap.String("balance", vault.Balance.String()))
	publishAfterCommit(ctx, s.publisher, vault)
	return ToVaultResponse(vault), op.end(nil)
}

// CreateVault opens a vault with a zero balance
func (s *TreasuryService) CreateVault(ctx context.Context, in CreateVaultInput) (*VaultResponse, error) {
	vault, err := treasury.NewVault(in.Name, in.NameAr, in.Type)
	if err != nil {
		return nil, err
	}
	if err := s.vaultRepo.Create(ctx, vault); err != nil {
		return nil, err
	}
	logger.L(ctx).Info("vault created", zap.String("vault_id", vault.ID.String()), zap.String("name", vault.Name))
	return ToVaultResponse(vault), nil
}

// UpdateVault edits a vault's names, type and active flag
func (s *TreasuryService) UpdateVault(ctx context.Context, id uuid.UUID, in UpdateVaultInput) (*VaultResponse, error) {
	var vault *treasury.Vault
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		vault, err = repos.VaultRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if in.Name != nil || in.NameAr != nil {
			name, nameAr := vault.Name, vault.NameAr
			if in.Name != nil {
				name = *in.Name
			}
			if in.NameAr != nil {
				nameAr = *in.NameAr
			}
			if err := vault.Rename(name, nameAr); err != nil {
				return err
			}
		}
		if in.Type != nil {
			if err := vault.SetType(*in.Type); err != nil {
				return err
			}
		}
		if in.IsActive != nil {
			vault.SetActive(*in.IsActive)
		}
		return repos.VaultRepo().Save(ctx, vault)
	})
	if err != nil {
		return nil, err
	}
	return ToVaultResponse(vault), nil
}

// GetVault returns a vault
func (s *TreasuryService) GetVault(ctx context.Context, id uuid.UUID) (*VaultResponse, error) {
	vault, err := s.vaultRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToVaultResponse(vault), nil
}

// ListVaults returns a page of vaults
func (s *TreasuryService) ListVaults(ctx context.Context, vaultType *treasury.VaultType, isActive *bool, page, pageSize int) (shared.Paginated[VaultResponse], error) {
	filter := treasury.VaultFilter{
		Filter:   normalizePage(page, pageSize, "name", "asc"),
		Type:     vaultType,
		IsActive: isActive,
	}
	vaults, total, err := s.vaultRepo.FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[VaultResponse]{}, err
	}
	items := make([]VaultResponse, len(vaults))
	for i := range vaults {
		items[i] = *ToVaultResponse(&vaults[i])
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

// ListVaultTransactions returns a page of a vault's ledger, newest first
func (s *TreasuryService) ListVaultTransactions(ctx context.Context, vaultID uuid.UUID, f LedgerListFilter) (shared.Paginated[LedgerEntryResponse], error) {
	if _, err := s.vaultRepo.FindByID(ctx, vaultID); err != nil {
		return shared.Paginated[LedgerEntryResponse]{}, err
	}
	filter := toLedgerFilter(f)
	rows, total, err := s.vaultTxRepo.FindByVault(ctx, vaultID, filter)
	if err != nil {
		return shared.Paginated[LedgerEntryResponse]{}, err
	}
	items := make([]LedgerEntryResponse, len(rows))
	for i := range rows {
		items[i] = toLedgerEntryResponse(rows[i].VaultID, &rows[i].LedgerEntry)
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}
