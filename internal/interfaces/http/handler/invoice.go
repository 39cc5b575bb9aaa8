package handler

import (
	"github.com/fieldops/backend/internal/application/settlement"
	"github.com/fieldops/backend/internal/domain/invoicing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceHandler serves the invoice lifecycle endpoints
type InvoiceHandler struct {
	BaseHandler
	invoices *settlement.InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoices *settlement.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// InvoiceItemRequest is one submitted invoice line. ID is set when editing an
// existing line in place.
type InvoiceItemRequest struct {
	ID          *string         `json:"id" binding:"omitempty,uuid"`
	ServiceID   *string         `json:"service_id" binding:"omitempty,uuid"`
	Description string          `json:"description" binding:"required,max=500"`
	Quantity    int             `json:"quantity" binding:"required,min=1"`
	UnitPrice   decimal.Decimal `json:"unit_price" binding:"decimal_nonnegative"`
}

// CreateInvoiceRequest creates a draft invoice
type CreateInvoiceRequest struct {
	CustomerID    string               `json:"customer_id" binding:"required,uuid"`
	OrderID       *string              `json:"order_id" binding:"omitempty,uuid"`
	PaymentMethod *string              `json:"payment_method" binding:"omitempty,oneof=cash instapay bank_transfer"`
	Discount      decimal.Decimal      `json:"discount" binding:"decimal_nonnegative"`
	Notes         string               `json:"notes" binding:"max=2000"`
	Items         []InvoiceItemRequest `json:"items" binding:"required,min=1,dive"`
}

// UpdateInvoiceRequest edits a draft or pending invoice. Absent fields are kept.
type UpdateInvoiceRequest struct {
	CustomerID      *string               `json:"customer_id" binding:"omitempty,uuid"`
	PaymentMethod   *string               `json:"payment_method" binding:"omitempty,oneof=cash instapay bank_transfer"`
	Discount        *decimal.Decimal      `json:"discount" binding:"omitempty,decimal_nonnegative"`
	Notes           *string               `json:"notes" binding:"omitempty,max=2000"`
	Items           *[]InvoiceItemRequest `json:"items" binding:"omitempty,min=1,dive"`
	ExpectedVersion *int                  `json:"expected_version" binding:"omitempty,min=1"`
}

// InvoiceListQuery filters GET /invoices
type InvoiceListQuery struct {
	ListQuery
	DateRangeQuery
	Search        string `form:"search"`
	Status        string `form:"status" binding:"omitempty,oneof=draft pending partially_paid paid cancelled"`
	CustomerID    string `form:"customer_id" binding:"omitempty,uuid"`
	PaymentMethod string `form:"payment_method" binding:"omitempty,oneof=cash instapay bank_transfer"`
}

func toItemInputs(items []InvoiceItemRequest) ([]settlement.ItemInput, bool) {
	out := make([]settlement.ItemInput, len(items))
	for i, it := range items {
		id, ok := parseOptionalUUID(it.ID)
		if !ok {
			return nil, false
		}
		serviceID, ok := parseOptionalUUID(it.ServiceID)
		if !ok {
			return nil, false
		}
		out[i] = settlement.ItemInput{
			ID:          id,
			ServiceID:   serviceID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		}
	}
	return out, true
}

func paymentMethodPtr(s *string) *invoicing.PaymentMethod {
	if s == nil || *s == "" {
		return nil
	}
	m := invoicing.PaymentMethod(*s)
	return &m
}

// Create handles POST /invoices
func (h *InvoiceHandler) Create(c *gin.Context) {
	userID, ok := h.caller(c)
	if !ok {
		return
	}
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	items, ok := toItemInputs(req.Items)
	if !ok {
		h.BadRequest(c, "Invalid item id format")
		return
	}
	orderID, _ := parseOptionalUUID(req.OrderID)

	inv, err := h.invoices.CreateInvoice(c.Request.Context(), settlement.CreateInvoiceInput{
		CustomerID:    uuid.MustParse(req.CustomerID),
		OrderID:       orderID,
		PaymentMethod: paymentMethodPtr(req.PaymentMethod),
		Discount:      req.Discount,
		Notes:         req.Notes,
		Items:         items,
		CreatedBy:     userID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, inv)
}

// Get handles GET /invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	inv, err := h.invoices.GetInvoice(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// GetByNumber handles GET /invoices/number/:number
func (h *InvoiceHandler) GetByNumber(c *gin.Context) {
	inv, err := h.invoices.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// List handles GET /invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	var q InvoiceListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	from, to, ok := q.parse()
	if !ok {
		h.BadRequest(c, "Invalid date range")
		return
	}

	filter := settlement.InvoiceListFilter{
		Search:   q.Search,
		DateFrom: from,
		DateTo:   to,
		Page:     q.Page,
		PageSize: q.PageSize,
		OrderBy:  q.OrderBy,
		OrderDir: q.OrderDir,
	}
	if q.Status != "" {
		status := invoicing.InvoiceStatus(q.Status)
		filter.Status = &status
	}
	if q.CustomerID != "" {
		customerID := uuid.MustParse(q.CustomerID)
		filter.CustomerID = &customerID
	}
	filter.PaymentMethod = paymentMethodPtr(&q.PaymentMethod)

	page, err := h.invoices.ListInvoices(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(c, page)
}

// PendingReview handles GET /invoices/pending-review
func (h *InvoiceHandler) PendingReview(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	page, err := h.invoices.ListPendingReview(c.Request.Context(), q.Page, q.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(c, page)
}

// Update handles PUT /invoices/:id
func (h *InvoiceHandler) Update(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := h.caller(c)
	if !ok {
		return
	}
	var req UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	in := settlement.UpdateInvoiceInput{
		PaymentMethod:   paymentMethodPtr(req.PaymentMethod),
		Discount:        req.Discount,
		Notes:           req.Notes,
		ExpectedVersion: req.ExpectedVersion,
		UpdatedBy:       userID,
	}
	if in.CustomerID, ok = parseOptionalUUID(req.CustomerID); !ok {
		h.BadRequest(c, "Invalid customer_id format")
		return
	}
	if req.Items != nil {
		items, ok := toItemInputs(*req.Items)
		if !ok {
			h.BadRequest(c, "Invalid item id format")
			return
		}
		in.Items = &items
	}

	inv, err := h.invoices.UpdateInvoice(c.Request.Context(), id, in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// Submit handles POST /invoices/:id/submit
func (h *InvoiceHandler) Submit(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := h.caller(c)
	if !ok {
		return
	}
	inv, err := h.invoices.SubmitInvoice(c.Request.Context(), id, userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// Delete handles DELETE /invoices/:id
func (h *InvoiceHandler) Delete(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.invoices.DeleteInvoice(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
