package handler

import (
	"io"
	"net/http"

	"github.com/fieldops/backend/internal/application/settlement"
	"github.com/fieldops/backend/internal/domain/invoicing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProofFormField is the multipart field carrying the payment proof file
const ProofFormField = "proof"

// CollectionHandler serves collection, review and cancellation of invoices
type CollectionHandler struct {
	BaseHandler
	collection   *settlement.CollectionService
	cancellation *settlement.CancellationService
}

// NewCollectionHandler creates a new CollectionHandler
func NewCollectionHandler(collection *settlement.CollectionService, cancellation *settlement.CancellationService) *CollectionHandler {
	return &CollectionHandler{collection: collection, cancellation: cancellation}
}

// CollectCashRequest collects field cash. Amount defaults to the outstanding balance.
type CollectCashRequest struct {
	CustodyID string           `json:"custody_id" binding:"required,uuid"`
	Amount    *decimal.Decimal `json:"amount" binding:"omitempty,decimal_positive"`
}

// CollectAdminRequest credits a reviewed digital payment into a vault
type CollectAdminRequest struct {
	VaultID       string           `json:"vault_id" binding:"required,uuid"`
	PaymentMethod string           `json:"payment_method" binding:"required,oneof=instapay bank_transfer"`
	ProofURL      string           `json:"proof_url" binding:"omitempty,url"`
	Amount        *decimal.Decimal `json:"amount" binding:"omitempty,decimal_positive"`
}

// CancelInvoiceRequest cancels an invoice
type CancelInvoiceRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// SubmitProofForm is the non-file part of the payment proof upload
type SubmitProofForm struct {
	PaymentMethod string `form:"payment_method" binding:"required,oneof=instapay bank_transfer"`
}

// CollectCash handles POST /invoices/:id/collect/cash
func (h *CollectionHandler) CollectCash(c *gin.Context) {
	invoiceID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := h.caller(c)
	if !ok {
		return
	}
	var req CollectCashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.collection.CollectCash(c.Request.Context(), settlement.CollectCashInput{
		InvoiceID:   invoiceID,
		CustodyID:   uuid.MustParse(req.CustodyID),
		Amount:      req.Amount,
		PerformedBy: userID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// SubmitProof handles POST /invoices/:id/payment-proof (multipart)
func (h *CollectionHandler) SubmitProof(c *gin.Context) {
	invoiceID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := h.caller(c)
	if !ok {
		return
	}
	var form SubmitProofForm
	if err := c.ShouldBind(&form); err != nil {
		h.BindError(c, err)
		return
	}
	fh, err := c.FormFile(ProofFormField)
	if err != nil {
		h.BadRequest(c, "Missing payment proof file")
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.BadRequest(c, "Unreadable payment proof file")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		h.BadRequest(c, "Unreadable payment proof file")
		return
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	inv, err := h.collection.SubmitDigitalPayment(c.Request.Context(), settlement.SubmitProofInput{
		InvoiceID:     invoiceID,
		PaymentMethod: invoicing.PaymentMethod(form.PaymentMethod),
		FileName:      fh.Filename,
		ContentType:   contentType,
		Size:          fh.Size,
		Data:          data,
		PerformedBy:   userID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// CollectAdmin handles POST /invoices/:id/collect/admin
func (h *CollectionHandler) CollectAdmin(c *gin.Context) {
	invoiceID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := h.caller(c)
	if !ok {
		return
	}
	var req CollectAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.collection.CollectAdmin(c.Request.Context(), settlement.CollectAdminInput{
		InvoiceID:     invoiceID,
		VaultID:       uuid.MustParse(req.VaultID),
		PaymentMethod: invoicing.PaymentMethod(req.PaymentMethod),
		ProofURL:      req.ProofURL,
		Amount:        req.Amount,
		PerformedBy:   userID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Reject handles POST /invoices/:id/reject
func (h *CollectionHandler) Reject(c *gin.Context) {
	invoiceID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := h.caller(c)
	if !ok {
		return
	}
	result, err := h.collection.RejectDigitalPayment(c.Request.Context(), invoiceID, userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Cancel handles POST /invoices/:id/cancel
func (h *CollectionHandler) Cancel(c *gin.Context) {
	invoiceID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := h.caller(c)
	if !ok {
		return
	}
	// the body is optional: only paid invoices need a reason
	var req CancelInvoiceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}

	result, err := h.cancellation.CancelInvoice(c.Request.Context(), settlement.CancelInvoiceInput{
		InvoiceID:   invoiceID,
		Reason:      req.Reason,
		PerformedBy: userID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
