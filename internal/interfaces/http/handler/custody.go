package handler

import (
	"github.com/fieldops/backend/internal/application/settlement"
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/domain/treasury"
	"github.com/fieldops/backend/internal/infrastructure/auth"
	"github.com/fieldops/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustodyHandler serves custody accounts and their settlement flows
type CustodyHandler struct {
	BaseHandler
	custody *settlement.CustodyService
}

// NewCustodyHandler creates a new CustodyHandler
func NewCustodyHandler(custody *settlement.CustodyService) *CustodyHandler {
	return &CustodyHandler{custody: custody}
}

// CreateCustodyRequest opens a custody account for a user
type CreateCustodyRequest struct {
	UserID     string  `json:"user_id" binding:"required,uuid"`
	HolderType string  `json:"holder_type" binding:"required,oneof=team_leader supervisor"`
	TeamID     *string `json:"team_id" binding:"omitempty,uuid"`
}

// AddFundsRequest tops up a custody float
type AddFundsRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"decimal_positive"`
	Notes  string          `json:"notes" binding:"max=500"`
}

// SettleToVaultRequest drains custody cash into a vault. Amount defaults to the full balance.
type SettleToVaultRequest struct {
	VaultID string           `json:"vault_id" binding:"required,uuid"`
	Amount  *decimal.Decimal `json:"amount" binding:"omitempty,decimal_positive"`
	Notes   string           `json:"notes" binding:"max=500"`
}

// SettleToCustodyRequest hands custody cash to a supervisor
type SettleToCustodyRequest struct {
	ToCustodyID string           `json:"to_custody_id" binding:"required,uuid"`
	Amount      *decimal.Decimal `json:"amount" binding:"omitempty,decimal_positive"`
	Notes       string           `json:"notes" binding:"max=500"`
}

// CustodyListQuery filters GET /custody
type CustodyListQuery struct {
	ListQuery
	Search     string `form:"search"`
	HolderType string `form:"holder_type" binding:"omitempty,oneof=team_leader supervisor"`
	TeamID     string `form:"team_id" binding:"omitempty,uuid"`
	IsActive   *bool  `form:"is_active"`
}

// Create handles POST /custody
func (h *CustodyHandler) Create(c *gin.Context) {
	var req CreateCustodyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	teamID, ok := parseOptionalUUID(req.TeamID)
	if !ok {
		h.BadRequest(c, "Invalid team_id format")
		return
	}
	account, err := h.custody.CreateCustodyAccount(c.Request.Context(), settlement.CreateCustodyInput{
		UserID:     uuid.MustParse(req.UserID),
		HolderType: treasury.HolderType(req.HolderType),
		TeamID:     teamID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, account)
}

// Get handles GET /custody/:id
func (h *CustodyHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	account, err := h.custody.GetCustodyAccount(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, account)
}

// GetByUser handles GET /custody/user/:user_id
func (h *CustodyHandler) GetByUser(c *gin.Context) {
	userID, ok := h.pathID(c, "user_id")
	if !ok {
		return
	}
	account, err := h.custody.GetByUser(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, account)
}

// Mine handles GET /custody/me
func (h *CustodyHandler) Mine(c *gin.Context) {
	userID, ok := h.caller(c)
	if !ok {
		return
	}
	account, err := h.custody.GetByUser(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, account)
}

// List handles GET /custody
func (h *CustodyHandler) List(c *gin.Context) {
	var q CustodyListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	filter := treasury.CustodyFilter{
		Filter: shared.Filter{
			Page:     q.Page,
			PageSize: q.PageSize,
			OrderBy:  q.OrderBy,
			OrderDir: q.OrderDir,
			Search:   q.Search,
		},
		IsActive: q.IsActive,
	}
	if q.HolderType != "" {
		ht := treasury.HolderType(q.HolderType)
		filter.HolderType = &ht
	}
	if q.TeamID != "" {
		teamID := uuid.MustParse(q.TeamID)
		filter.TeamID = &teamID
	}
	page, err := h.custody.ListCustodyAccounts(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(c, page)
}

// Activate handles POST /custody/:id/activate
func (h *CustodyHandler) Activate(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	account, err := h.custody.ActivateCustodyAccount(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, account)
}

// Deactivate handles POST /custody/:id/deactivate
func (h *CustodyHandler) Deactivate(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	account, err := h.custody.DeactivateCustodyAccount(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, account)
}

// Delete handles DELETE /custody/:id
func (h *CustodyHandler) Delete(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.custody.DeleteCustodyAccount(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Add handles POST /custody/:id/add
func (h *CustodyHandler) Add(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := h.caller(c)
	if !ok {
		return
	}
	var req AddFundsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	account, err := h.custody.AddToCustody(c.Request.Context(), settlement.AddFundsInput{
		CustodyID:   id,
		Amount:      req.Amount,
		Notes:       req.Notes,
		PerformedBy: userID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, account)
}

// SettleToVault handles POST /custody/:id/settle/vault
func (h *CustodyHandler) SettleToVault(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := h.caller(c)
	if !ok {
		return
	}
	var req SettleToVaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	result, err := h.custody.SettleToVault(c.Request.Context(), settlement.SettleToVaultInput{
		CustodyID:   id,
		VaultID:     uuid.MustParse(req.VaultID),
		Amount:      req.Amount,
		Notes:       req.Notes,
		PerformedBy: userID,
		Privileged:  middleware.GetJWTRole(c) == auth.RoleAdmin,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// SettleToCustody handles POST /custody/:id/settle/custody
func (h *CustodyHandler) SettleToCustody(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := h.caller(c)
	if !ok {
		return
	}
	var req SettleToCustodyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	result, err := h.custody.SettleToCustody(c.Request.Context(), settlement.SettleToCustodyInput{
		FromCustodyID: id,
		ToCustodyID:   uuid.MustParse(req.ToCustodyID),
		Amount:        req.Amount,
		Notes:         req.Notes,
		PerformedBy:   userID,
		Privileged:    middleware.GetJWTRole(c) == auth.RoleAdmin,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Transactions handles GET /custody/:id/transactions
func (h *CustodyHandler) Transactions(c *gin.Context) {
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
	page, err := h.custody.ListCustodyTransactions(c.Request.Context(), id, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(c, page)
}
