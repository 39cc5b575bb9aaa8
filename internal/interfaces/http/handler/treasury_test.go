package handler

import (
	"net/http"
	"testing"

	"github.com/fieldops/backend/internal/application/settlement"
	"github.com/fieldops/backend/internal/interfaces/http/dto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVaultHandler_AdjustAndTransfer(t *testing.T) {
	s := newTestServer(t)
	admin := adminUser()
	main := s.createVault(t, admin, "Head office")
	branch := s.createVault(t, admin, "Branch")

	w := s.do(t, admin, http.MethodPost, path("vaults", main.ID.String(), "adjust"), map[string]any{
		"type": "deposit", "amount": "500", "notes": "opening float",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, dec("500").Equal(dataAs[settlement.VaultResponse](t, w).Balance))

	w = s.do(t, admin, http.MethodPost, path("vaults", "transfer"), map[string]any{
		"from_vault_id": main.ID.String(), "to_vault_id": branch.ID.String(), "amount": "200",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	transfer := dataAs[settlement.TransferResult](t, w)
	assert.True(t, dec("300").Equal(transfer.SourceBalance))
	assert.True(t, dec("200").Equal(transfer.TargetBalance))

	w = s.do(t, admin, http.MethodPost, path("vaults", "transfer"), map[string]any{
		"from_vault_id": branch.ID.String(), "to_vault_id": main.ID.String(), "amount": "1000",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, dto.ErrCodeInsufficientBalance, errorCode(t, w))

	w = s.do(t, admin, http.MethodGet, path("vaults", main.ID.String(), "transactions"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), decodeEnvelope(t, w).Meta.Total)

	w = s.do(t, admin, http.MethodGet, path("vaults", main.ID.String(), "transactions")+"?type=transfer_out", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := dataAs[[]settlement.LedgerEntryResponse](t, w)
	require.Len(t, page, 1)
	assert.True(t, dec("500").Equal(page[0].BalanceBefore))
	assert.True(t, dec("300").Equal(page[0].BalanceAfter))
}

func TestVaultHandler_RequestValidation(t *testing.T) {
	s := newTestServer(t)
	admin := adminUser()
	vault := s.createVault(t, admin, "Head office")

	tests := []struct {
		name string
		url  string
		body map[string]any
	}{
		{"unknown vault type", path("vaults"), map[string]any{"name": "x", "type": "safe"}},
		{"same vault transfer", path("vaults", "transfer"), map[string]any{
			"from_vault_id": vault.ID.String(), "to_vault_id": vault.ID.String(), "amount": "1",
		}},
		{"negative adjustment", path("vaults", vault.ID.String(), "adjust"), map[string]any{
			"type": "deposit", "amount": "-5", "notes": "x",
		}},
		{"adjustment without notes", path("vaults", vault.ID.String(), "adjust"), map[string]any{
			"type": "withdrawal", "amount": "5",
		}},
		{"adjustment as collection", path("vaults", vault.ID.String(), "adjust"), map[string]any{
			"type": "collection", "amount": "5", "notes": "x",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, admin, http.MethodPost, tt.url, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, dto.ErrCodeValidation, errorCode(t, w))
		})
	}
}

func TestVaultHandler_AdminOnlyMutations(t *testing.T) {
	s := newTestServer(t)
	vault := s.createVault(t, adminUser(), "Head office")
	leader := leaderUser()

	w := s.do(t, leader, http.MethodPost, path("vaults", vault.ID.String(), "adjust"), map[string]any{
		"type": "deposit", "amount": "5", "notes": "x",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, leader, http.MethodPut, path("vaults", vault.ID.String()), map[string]any{"name": "Mine"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, leader, http.MethodGet, path("vaults"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decodeEnvelope(t, w).Meta.Total)
}

func TestVaultHandler_UpdateAndFilter(t *testing.T) {
	s := newTestServer(t)
	admin := adminUser()
	vault := s.createVault(t, admin, "Head office")
	s.createVault(t, admin, "Spare")

	w := s.do(t, admin, http.MethodPut, path("vaults", vault.ID.String()), map[string]any{
		"name": "Cairo office", "type": "branch", "is_active": false,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := dataAs[settlement.VaultResponse](t, w)
	assert.Equal(t, "Cairo office", updated.Name)
	assert.Equal(t, "branch", updated.Type)
	assert.False(t, updated.IsActive)

	w = s.do(t, admin, http.MethodGet, path("vaults")+"?type=branch", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decodeEnvelope(t, w).Meta.Total)

	w = s.do(t, admin, http.MethodGet, path("vaults")+"?is_active=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decodeEnvelope(t, w).Meta.Total)
}

func TestCustodyHandler_OneActiveAccountPerUser(t *testing.T) {
	s := newTestServer(t)
	admin, leader := adminUser(), leaderUser()
	first := s.createCustody(t, admin, leader)

	w := s.do(t, admin, http.MethodPost, path("custody"), map[string]any{
		"user_id": leader.userID.String(), "holder_type": "team_leader",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CUSTODY_ALREADY_EXISTS", errorCode(t, w))

	w = s.do(t, leader, http.MethodGet, path("custody", "me"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first.ID, dataAs[settlement.CustodyResponse](t, w).ID)

	w = s.do(t, admin, http.MethodGet, path("custody", "user", leader.userID.String()), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first.ID, dataAs[settlement.CustodyResponse](t, w).ID)

	w = s.do(t, admin, http.MethodGet, path("custody", "user", uuid.NewString()), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCustodyHandler_FrozenAccountSettlesToVault(t *testing.T) {
	s := newTestServer(t)
	admin, leader := adminUser(), leaderUser()
	vault := s.createVault(t, admin, "Head office")
	custody := s.createCustody(t, admin, leader)

	inv := s.pendingInvoice(t, leader, "120", 1)
	w := s.do(t, leader, http.MethodPost, path("invoices", inv.ID.String(), "collect", "cash"), map[string]any{
		"custody_id": custody.ID.String(),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, admin, http.MethodPost, path("custody", custody.ID.String(), "deactivate"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	frozen := dataAs[settlement.CustodyResponse](t, w)
	assert.False(t, frozen.IsActive)
	assert.True(t, frozen.IsFrozen)

	other := s.pendingInvoice(t, leader, "10", 1)
	w = s.do(t, leader, http.MethodPost, path("invoices", other.ID.String(), "collect", "cash"), map[string]any{
		"custody_id": custody.ID.String(),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "CUSTODY_FROZEN", errorCode(t, w))

	w = s.do(t, leader, http.MethodPost, path("custody", custody.ID.String(), "settle", "vault"), map[string]any{
		"vault_id": vault.ID.String(),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	settled := dataAs[settlement.TransferResult](t, w)
	assert.True(t, dec("120").Equal(settled.Amount))
	assert.True(t, settled.SourceBalance.IsZero())
	assert.True(t, dec("120").Equal(settled.TargetBalance))

	w = s.do(t, admin, http.MethodGet, path("reports", "reconciliation"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := dataAs[ReconciliationReport](t, w)
	assert.True(t, report.Balanced)
	assert.Empty(t, report.Discrepancies)
}

func TestCustodyHandler_SettleRequiresHolderOrAdmin(t *testing.T) {
	s := newTestServer(t)
	admin, leader, stranger := adminUser(), leaderUser(), leaderUser()
	vault := s.createVault(t, admin, "Branch safe")
	custody := s.createCustody(t, admin, leader)

	w := s.do(t, admin, http.MethodPost, path("custody", custody.ID.String(), "add"), map[string]any{
		"amount": "60", "notes": "opening float",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	settleURL := path("custody", custody.ID.String(), "settle", "vault")
	w = s.do(t, stranger, http.MethodPost, settleURL, map[string]any{"vault_id": vault.ID.String()})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, w))

	w = s.do(t, admin, http.MethodGet, path("custody", custody.ID.String()), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, dec("60").Equal(dataAs[settlement.CustodyResponse](t, w).Balance))

	w = s.do(t, admin, http.MethodPost, settleURL, map[string]any{"vault_id": vault.ID.String(), "amount": "25"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, dec("35").Equal(dataAs[settlement.TransferResult](t, w).SourceBalance))
}

func TestCustodyHandler_AddFundsAdminOnly(t *testing.T) {
	s := newTestServer(t)
	admin, leader := adminUser(), leaderUser()
	custody := s.createCustody(t, admin, leader)
	url := path("custody", custody.ID.String(), "add")

	w := s.do(t, leader, http.MethodPost, url, map[string]any{"amount": "50"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, admin, http.MethodPost, url, map[string]any{"amount": "50", "notes": "fuel float"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, dec("50").Equal(dataAs[settlement.CustodyResponse](t, w).Balance))

	w = s.do(t, admin, http.MethodGet, path("custody", custody.ID.String(), "transactions")+"?type=add", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decodeEnvelope(t, w).Meta.Total)
}

func TestCustodyHandler_ListFilters(t *testing.T) {
	s := newTestServer(t)
	admin := adminUser()
	s.createCustody(t, admin, leaderUser())
	s.createCustody(t, admin, leaderUser())

	w := s.do(t, admin, http.MethodPost, path("custody"), map[string]any{
		"user_id": uuid.NewString(), "holder_type": "supervisor",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, admin, http.MethodGet, path("custody")+"?holder_type=team_leader", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(2), decodeEnvelope(t, w).Meta.Total)

	w = s.do(t, admin, http.MethodGet, path("custody")+"?holder_type=driver", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
