package handler

import (
	"github.com/fieldops/backend/internal/application/settlement"
	"github.com/fieldops/backend/internal/domain/treasury"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VaultHandler serves vault administration and vault ledgers
type VaultHandler struct {
	BaseHandler
	treasury *settlement.TreasuryService
}

// NewVaultHandler creates a new VaultHandler
func NewVaultHandler(treasury *settlement.TreasuryService) *VaultHandler {
	return &VaultHandler{treasury: treasury}
}

// CreateVaultRequest creates an empty vault
type CreateVaultRequest struct {
	Name   string `json:"name" binding:"required,max=100"`
	NameAr string `json:"name_ar" binding:"max=100"`
	Type   string `json:"type" binding:"required,oneof=main branch bank"`
}

// UpdateVaultRequest edits vault metadata; the balance is never editable
type UpdateVaultRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=1,max=100"`
	NameAr   *string `json:"name_ar" binding:"omitempty,max=100"`
	Type     *string `json:"type" binding:"omitempty,oneof=main branch bank"`
	IsActive *bool   `json:"is_active"`
}

// TransferRequest moves money between two vaults
type TransferRequest struct {
	FromVaultID string          `json:"from_vault_id" binding:"required,uuid"`
	ToVaultID   string          `json:"to_vault_id" binding:"required,uuid,nefield=FromVaultID"`
	Amount      decimal.Decimal `json:"amount" binding:"decimal_positive"`
	Notes       string          `json:"notes" binding:"max=500"`
}

// AdjustmentRequest is a manual deposit or withdrawal
type AdjustmentRequest struct {
	Type   string          `json:"type" binding:"required,oneof=deposit withdrawal"`
	Amount decimal.Decimal `json:"amount" binding:"decimal_positive"`
	Notes  string          `json:"notes" binding:"required,max=500"`
}

// VaultListQuery filters GET /vaults
type VaultListQuery struct {
	ListQuery
	Type     string `form:"type" binding:"omitempty,oneof=main branch bank"`
	IsActive *bool  `form:"is_active"`
}

// LedgerQuery filters ledger listings
type LedgerQuery struct {
	ListQuery
	DateRangeQuery
	Type      string `form:"type" binding:"omitempty,oneof=deposit withdrawal transfer_in transfer_out collection settlement_in settlement_out add reversal"`
	InvoiceID string `form:"invoice_id" binding:"omitempty,uuid"`
}

func (q LedgerQuery) filter() (settlement.LedgerListFilter, bool) {
	from, to, ok := q.parse()
	if !ok {
		return settlement.LedgerListFilter{}, false
	}
	f := settlement.LedgerListFilter{
		DateFrom: from,
		DateTo:   to,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	if q.Type != "" {
		t := treasury.TransactionType(q.Type)
		f.Type = &t
	}
	if q.InvoiceID != "" {
		id := uuid.MustParse(q.InvoiceID)
		f.InvoiceID = &id
	}
	return f, true
}

// Create handles POST /vaults
func (h *VaultHandler) Create(c *gin.Context) {
	var req CreateVaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	vault, err := h.treasury.CreateVault(c.Request.Context(), settlement.CreateVaultInput{
		Name:   req.Name,
		NameAr: req.NameAr,
		Type:   treasury.VaultType(req.Type),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, vault)
}

// Get handles GET /vaults/:id
func (h *VaultHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	vault, err := h.treasury.GetVault(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, vault)
}

// List handles GET /vaults
func (h *VaultHandler) List(c *gin.Context) {
	var q VaultListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	var vaultType *treasury.VaultType
	if q.Type != "" {
		t := treasury.VaultType(q.Type)
		vaultType = &t
	}
	page, err := h.treasury.ListVaults(c.Request.Context(), vaultType, q.IsActive, q.Page, q.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(c, page)
}

// Update handles PUT /vaults/:id
func (h *VaultHandler) Update(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req UpdateVaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	in := settlement.UpdateVaultInput{
		Name:     req.Name,
		NameAr:   req.NameAr,
		IsActive: req.IsActive,
	}
	if req.Type != nil {
		t := treasury.VaultType(*req.Type)
		in.Type = &t
	}
	vault, err := h.treasury.UpdateVault(c.Request.Context(), id, in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, vault)
}

// Transfer handles POST /vaults/transfer
func (h *VaultHandler) Transfer(c *gin.Context) {
	userID, ok := h.caller(c)
	if !ok {
		return
	}
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	result, err := h.treasury.TransferBetweenVaults(c.Request.Context(), settlement.TransferInput{
		FromVaultID: uuid.MustParse(req.FromVaultID),
		ToVaultID:   uuid.MustParse(req.ToVaultID),
		Amount:      req.Amount,
		Notes:       req.Notes,
		PerformedBy: userID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Adjust handles POST /vaults/:id/adjust
func (h *VaultHandler) Adjust(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := h.caller(c)
	if !ok {
		return
	}
	var req AdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	vault, err := h.treasury.ManualAdjustment(c.Request.Context(), settlement.AdjustmentInput{
		VaultID:     id,
		Type:        treasury.TransactionType(req.Type),
		Amount:      req.Amount,
		Notes:       req.Notes,
		PerformedBy: userID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, vault)
}

// Transactions handles GET /vaults/:id/transactions
func (h *VaultHandler) Transactions(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var q LedgerQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	filter, ok := q.filter()
	if !ok {
		h.BadRequest(c, "Invalid date range")
		return
	}
	page, err := h.treasury.ListVaultTransactions(c.Request.Context(), id, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(c, page)
}
