package settlement

import (
	"context"
	"sort"

	"github.com/fieldops/backend/internal/domain/treasury"
	"github.com/fieldops/backend/internal/infrastructure/logger"
	"github.com/fieldops/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Discrepancy is an account whose balance disagrees with its ledger
type Discrepancy struct {
	AccountKind treasury.AccountKind  `json:"account_kind"`
	AccountID   uuid.UUID             `json:"account_id"`
	Balance     decimal.Decimal       `json:"balance"`
	LedgerSum   decimal.Decimal       `json:"ledger_sum"`
	ChainBreaks []treasury.ChainBreak `json:"chain_breaks,omitempty"`
}

// ReconciliationService checks balances against the transaction logs
type ReconciliationService struct {
	scope SettlementScope
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(scope SettlementScope) *ReconciliationService {
	return &ReconciliationService{scope: scope}
}

// Reconcile returns every account whose balance differs from the signed sum of
// its ledger, or whose chain of balance_before/balance_after is broken.
// An empty result means the books agree.
//
// Every read happens inside one snapshot, so a settlement committing midway
// cannot show up as a false discrepancy.
func (s *ReconciliationService) Reconcile(ctx context.Context) ([]Discrepancy, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, "reconcile")
	defer span.End()

	var (
		out       []Discrepancy
		vaults    []treasury.Vault
		custodies []treasury.CustodyAccount
	)
	err := s.scope.Snapshot(ctx, func(repos TransactionalRepositories) error {
		var err error
		if vaults, err = repos.VaultRepo().ListAll(ctx); err != nil {
			return err
		}
		vaultSums, err := repos.VaultTxRepo().SignedSums(ctx)
		if err != nil {
			return err
		}
		if custodies, err = repos.CustodyRepo().ListAll(ctx); err != nil {
			return err
		}
		custodySums, err := repos.CustodyTxRepo().SignedSums(ctx)
		if err != nil {
			return err
		}

		for i := range vaults {
			v := &vaults[i]
			chain, err := repos.VaultTxRepo().FindChain(ctx, v.ID)
			if err != nil {
				return err
			}
			if d, ok := check(treasury.AccountKindVault, v.ID, v.Balance, vaultSums[v.ID], chain); ok {
				out = append(out, d)
			}
		}
		for i := range custodies {
			c := &custodies[i]
			chain, err := repos.CustodyTxRepo().FindChain(ctx, c.ID)
			if err != nil {
				return err
			}
			if d, ok := check(treasury.AccountKindCustody, c.ID, c.Balance, custodySums[c.ID], chain); ok {
				out = append(out, d)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].AccountKind != out[j].AccountKind {
			return out[i].AccountKind < out[j].AccountKind
		}
		return out[i].AccountID.String() < out[j].AccountID.String()
	})

	log := logger.L(ctx)
	for _, d := range out {
		log.Warn("ledger discrepancy",
			zap.String("account_kind", d.AccountKind.String()),
			zap.String("account_id", d.AccountID.String()),
			zap.String("balance", d.Balance.String()),
			zap.String("ledger_sum", d.LedgerSum.String()),
			zap.Int("chain_breaks", len(d.ChainBreaks)))
	}
	log.Info("reconciliation finished",
		zap.Int("vaults", len(vaults)),
		zap.Int("custody_accounts", len(custodies)),
		zap.Int("discrepancies", len(out)))
	return out, nil
}

func check(kind treasury.AccountKind, id uuid.UUID, balance, sum decimal.Decimal, chain []treasury.LedgerEntry) (Discrepancy, bool) {
	breaks := treasury.VerifyChain(chain)
	if balance.Equal(sum) && len(breaks) == 0 {
		return Discrepancy{}, false
	}
	return Discrepancy{
		AccountKind: kind,
		AccountID:   id,
		Balance:     balance,
		LedgerSum:   sum,
		ChainBreaks: breaks,
	}, true
}
