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

func TestInvoiceHandler_CreateAndGet(t *testing.T) {
	s := newTestServer(t)
	leader := leaderUser()

	w := s.do(t, leader, http.MethodPost, path("invoices"), map[string]any{
		"customer_id": uuid.NewString(),
		"discount":    "10",
		"notes":       "second floor",
		"items": []map[string]any{
			{"description": "AC maintenance", "quantity": 2, "unit_price": "75.50"},
			{"description": "Filter", "quantity": 1, "unit_price": "20"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := dataAs[settlement.InvoiceResponse](t, w)

	assert.Equal(t, "draft", created.Status)
	assert.True(t, dec("171").Equal(created.Subtotal))
	assert.True(t, dec("161").Equal(created.TotalAmount))
	assert.Len(t, created.Items, 2)
	require.NotNil(t, created.CreatedBy)
	assert.Equal(t, leader.userID, *created.CreatedBy)

	w = s.do(t, leader, http.MethodGet, path("invoices", created.ID.String()), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.InvoiceNumber, dataAs[settlement.InvoiceResponse](t, w).InvoiceNumber)

	w = s.do(t, leader, http.MethodGet, path("invoices", "number", created.InvoiceNumber), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, dataAs[settlement.InvoiceResponse](t, w).ID)
}

func TestInvoiceHandler_CreateValidation(t *testing.T) {
	s := newTestServer(t)
	leader := leaderUser()

	tests := []struct {
		name string
		body any
		code string
	}{
		{
			name: "malformed json",
			body: `{"customer_id":`,
			code: dto.ErrCodeInvalidJSON,
		},
		{
			name: "no items",
			body: map[string]any{"customer_id": uuid.NewString(), "items": []any{}},
			code: dto.ErrCodeValidation,
		},
		{
			name: "negative unit price",
			body: map[string]any{
				"customer_id": uuid.NewString(),
				"items":       []map[string]any{{"description": "x", "quantity": 1, "unit_price": "-1"}},
			},
			code: dto.ErrCodeValidation,
		},
		{
			name: "unknown payment method",
			body: map[string]any{
				"customer_id":    uuid.NewString(),
				"payment_method": "cheque",
				"items":          []map[string]any{{"description": "x", "quantity": 1, "unit_price": "1"}},
			},
			code: dto.ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, leader, http.MethodPost, path("invoices"), tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func TestInvoiceHandler_ValidationDetailsUseJSONNames(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, leaderUser(), http.MethodPost, path("invoices"), map[string]any{
		"items": []map[string]any{{"description": "x", "quantity": 1, "unit_price": "1"}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeEnvelope(t, w)
	require.NotEmpty(t, resp.Error.Details)
	assert.Equal(t, "customer_id", resp.Error.Details[0].Field)
}

func TestInvoiceHandler_NotFoundAndBadID(t *testing.T) {
	s := newTestServer(t)
	leader := leaderUser()

	w := s.do(t, leader, http.MethodGet, path("invoices", uuid.NewString()), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, w))

	w = s.do(t, leader, http.MethodGet, path("invoices", "not-a-uuid"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeBadRequest, errorCode(t, w))
}

func TestInvoiceHandler_RequiresIdentity(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, identity{}, http.MethodGet, path("invoices"), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInvoiceHandler_UpdateWithStaleVersion(t *testing.T) {
	s := newTestServer(t)
	leader := leaderUser()
	inv := s.pendingInvoice(t, leader, "100", 1)

	w := s.do(t, leader, http.MethodPut, path("invoices", inv.ID.String()), map[string]any{
		"notes":            "gate code 1234",
		"expected_version": inv.Version,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := dataAs[settlement.InvoiceResponse](t, w)
	assert.Equal(t, "gate code 1234", updated.Notes)
	assert.Greater(t, updated.Version, inv.Version)

	w = s.do(t, leader, http.MethodPut, path("invoices", inv.ID.String()), map[string]any{
		"notes":            "late edit",
		"expected_version": inv.Version,
	})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	assert.Equal(t, "CONCURRENCY_CONFLICT", errorCode(t, w))
}

func TestInvoiceHandler_DeleteOnlyDrafts(t *testing.T) {
	s := newTestServer(t)
	leader := leaderUser()

	pending := s.pendingInvoice(t, leader, "40", 1)
	w := s.do(t, leader, http.MethodDelete, path("invoices", pending.ID.String()), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "INVALID_STATE", errorCode(t, w))

	w = s.do(t, leader, http.MethodPost, path("invoices"), map[string]any{
		"customer_id": uuid.NewString(),
		"items":       []map[string]any{{"description": "x", "quantity": 1, "unit_price": "5"}},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	draft := dataAs[settlement.InvoiceResponse](t, w)

	w = s.do(t, leader, http.MethodDelete, path("invoices", draft.ID.String()), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, leader, http.MethodGet, path("invoices", draft.ID.String()), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvoiceHandler_ListFiltersAndPaging(t *testing.T) {
	s := newTestServer(t)
	leader := leaderUser()
	for i := 0; i < 3; i++ {
		s.pendingInvoice(t, leader, "10", 1)
	}

	w := s.do(t, leader, http.MethodGet, path("invoices")+"?status=pending&page=1&page_size=2", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeEnvelope(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(3), resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.PageSize)
	assert.Equal(t, 2, resp.Meta.TotalPages)
	assert.Len(t, resp.Data, 2)

	w = s.do(t, leader, http.MethodGet, path("invoices")+"?status=paid", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decodeEnvelope(t, w)
	assert.Equal(t, int64(0), resp.Meta.Total)
	assert.Equal(t, []any{}, resp.Data)

	w = s.do(t, leader, http.MethodGet, path("invoices")+"?date_from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, leader, http.MethodGet, path("invoices")+"?page_size=500", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeValidation, errorCode(t, w))
}
