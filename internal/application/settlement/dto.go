package settlement

import (
	"time"

	"github.com/fieldops/backend/internal/domain/invoicing"
	"github.com/fieldops/backend/internal/domain/treasury"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ============================================
// Invoice DTOs
// ============================================

// ItemInput is a submitted invoice line
type ItemInput struct {
	ID          *uuid.UUID      `json:"id,omitempty"`
	ServiceID   *uuid.UUID      `json:"service_id,omitempty"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func toDomainItems(items []ItemInput) []invoicing.ItemInput {
	out := make([]invoicing.ItemInput, len(items))
	for i, it := range items {
		out[i] = invoicing.ItemInput{
			ID:          it.ID,
			ServiceID:   it.ServiceID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		}
	}
	return out
}

// CreateInvoiceInput creates an invoice. Totals are always derived from the items.
type CreateInvoiceInput struct {
	CustomerID    uuid.UUID
	OrderID       *uuid.UUID
	PaymentMethod *invoicing.PaymentMethod
	Discount      decimal.Decimal
	Notes         string
	Items         []ItemInput
	CreatedBy     uuid.UUID
}

// UpdateInvoiceInput edits a draft or pending invoice. Nil fields are left as they are.
type UpdateInvoiceInput struct {
	CustomerID      *uuid.UUID
	PaymentMethod   *invoicing.PaymentMethod
	Discount        *decimal.Decimal
	Notes           *string
	Items           *[]ItemInput
	ExpectedVersion *int
	UpdatedBy       uuid.UUID
}

// InvoiceListFilter narrows invoice listings
type InvoiceListFilter struct {
	Search        string
	Status        *invoicing.InvoiceStatus
	CustomerID    *uuid.UUID
	PaymentMethod *invoicing.PaymentMethod
	DateFrom      *time.Time
	DateTo        *time.Time
	Page          int
	PageSize      int
	OrderBy       string
	OrderDir      string
}

// InvoiceItemResponse is the API view of an invoice line
type InvoiceItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	ServiceID   *uuid.UUID      `json:"service_id,omitempty"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// InvoiceResponse is the API view of an invoice
type InvoiceResponse struct {
	ID                 uuid.UUID             `json:"id"`
	InvoiceNumber      string                `json:"invoice_number"`
	CustomerID         uuid.UUID             `json:"customer_id"`
	OrderID            *uuid.UUID            `json:"order_id,omitempty"`
	Status             string                `json:"status"`
	PaymentMethod      string                `json:"payment_method"`
	Subtotal           decimal.Decimal       `json:"subtotal"`
	Discount           decimal.Decimal       `json:"discount"`
	TotalAmount        decimal.Decimal       `json:"total_amount"`
	PaidAmount         decimal.Decimal       `json:"paid_amount"`
	OutstandingAmount  decimal.Decimal       `json:"outstanding_amount"`
	PaymentProofURL    string                `json:"payment_proof_url,omitempty"`
	PaymentSubmittedAt *time.Time            `json:"payment_submitted_at,omitempty"`
	AwaitingReview     bool                  `json:"awaiting_review"`
	CollectedBy        *uuid.UUID            `json:"collected_by,omitempty"`
	CollectedAt        *time.Time            `json:"collected_at,omitempty"`
	Notes              string                `json:"notes,omitempty"`
	CancelReason       string                `json:"cancel_reason,omitempty"`
	CancelledBy        *uuid.UUID            `json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time            `json:"cancelled_at,omitempty"`
	CreatedBy          *uuid.UUID            `json:"created_by,omitempty"`
	Items              []InvoiceItemResponse `json:"items"`
	Version            int                   `json:"version"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

// ToInvoiceResponse converts the aggregate to its API view
func ToInvoiceResponse(inv *invoicing.Invoice) *InvoiceResponse {
	items := make([]InvoiceItemResponse, len(inv.Items))
	for i, it := range inv.Items {
		items[i] = InvoiceItemResponse{
			ID:          it.ID,
			ServiceID:   it.ServiceID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
		}
	}
	return &InvoiceResponse{
		ID:                 inv.ID,
		InvoiceNumber:      inv.InvoiceNumber,
		CustomerID:         inv.CustomerID,
		OrderID:            inv.OrderID,
		Status:             inv.Status.String(),
		PaymentMethod:      inv.PaymentMethod.String(),
		Subtotal:           inv.Subtotal,
		Discount:           inv.Discount,
		TotalAmount:        inv.TotalAmount,
		PaidAmount:         inv.PaidAmount,
		OutstandingAmount:  inv.Outstanding(),
		PaymentProofURL:    inv.PaymentProofURL,
		PaymentSubmittedAt: inv.PaymentSubmittedAt,
		AwaitingReview:     inv.IsAwaitingReview(),
		CollectedBy:        inv.CollectedBy,
		CollectedAt:        inv.CollectedAt,
		Notes:              inv.Notes,
		CancelReason:       inv.CancelReason,
		CancelledBy:        inv.CancelledBy,
		CancelledAt:        inv.CancelledAt,
		CreatedBy:          inv.CreatedBy,
		Items:              items,
		Version:            inv.Version,
		CreatedAt:          inv.CreatedAt,
		UpdatedAt:          inv.UpdatedAt,
	}
}

// ToInvoiceResponses converts a slice of aggregates
func ToInvoiceResponses(invs []invoicing.Invoice) []InvoiceResponse {
	out := make([]InvoiceResponse, len(invs))
	for i := range invs {
		out[i] = *ToInvoiceResponse(&invs[i])
	}
	return out
}

// ============================================
// Collection and cancellation DTOs
// ============================================

// CollectCashInput collects field cash into a custody account
type CollectCashInput struct {
	InvoiceID   uuid.UUID
	CustodyID   uuid.UUID
	Amount      *decimal.Decimal
	PerformedBy uuid.UUID
}

// SubmitProofInput uploads a digital payment proof
type SubmitProofInput struct {
	InvoiceID     uuid.UUID
	PaymentMethod invoicing.PaymentMethod
	FileName      string
	ContentType   string
	Size          int64
	Data          []byte
	PerformedBy   uuid.UUID
}

// CollectAdminInput credits a reviewed digital payment into a vault
type CollectAdminInput struct {
	InvoiceID     uuid.UUID
	VaultID       uuid.UUID
	PaymentMethod invoicing.PaymentMethod
	ProofURL      string
	Amount        *decimal.Decimal
	PerformedBy   uuid.UUID
}

// CollectionResult reports a collection
type CollectionResult struct {
	Invoice      *InvoiceResponse `json:"invoice"`
	Amount       decimal.Decimal  `json:"amount"`
	AccountKind  string           `json:"account_kind"`
	AccountID    uuid.UUID        `json:"account_id"`
	BalanceAfter decimal.Decimal  `json:"balance_after"`
}

// CancelInvoiceInput cancels an invoice
type CancelInvoiceInput struct {
	InvoiceID   uuid.UUID
	Reason      string
	PerformedBy uuid.UUID
}

// CancellationResult reports a cancellation and any reversal it caused
type CancellationResult struct {
	Invoice        *InvoiceResponse `json:"invoice"`
	Refunded       bool             `json:"refunded"`
	RefundedAmount decimal.Decimal  `json:"refunded_amount"`
}

// ============================================
// Treasury DTOs
// ============================================

// TransferInput moves money between vaults
type TransferInput struct {
	FromVaultID uuid.UUID
	ToVaultID   uuid.UUID
	Amount      decimal.Decimal
	Notes       string
	PerformedBy uuid.UUID
}

// AdjustmentInput is a manual deposit or withdrawal
type AdjustmentInput struct {
	VaultID     uuid.UUID
	Type        treasury.TransactionType
	Amount      decimal.Decimal
	Notes       string
	PerformedBy uuid.UUID
}

// CreateVaultInput creates a vault
type CreateVaultInput struct {
	Name   string
	NameAr string
	Type   treasury.VaultType
}

// UpdateVaultInput edits a vault. The balance is never editable.
type UpdateVaultInput struct {
	Name     *string
	NameAr   *string
	Type     *treasury.VaultType
	IsActive *bool
}

// VaultResponse is the API view of a vault
type VaultResponse struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	NameAr    string          `json:"name_ar,omitempty"`
	Type      string          `json:"type"`
	Balance   decimal.Decimal `json:"balance"`
	IsActive  bool            `json:"is_active"`
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ToVaultResponse converts the aggregate to its API view
func ToVaultResponse(v *treasury.Vault) *VaultResponse {
	return &VaultResponse{
		ID:        v.ID,
		Name:      v.Name,
		NameAr:    v.NameAr,
		Type:      v.Type.String(),
		Balance:   v.Balance,
		IsActive:  v.IsActive,
		Version:   v.Version,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
}

// TransferResult reports both sides of a two-account movement
type TransferResult struct {
	Amount        decimal.Decimal `json:"amount"`
	SourceID      uuid.UUID       `json:"source_id"`
	SourceBalance decimal.Decimal `json:"source_balance"`
	TargetID      uuid.UUID       `json:"target_id"`
	TargetBalance decimal.Decimal `json:"target_balance"`
}

// ============================================
// Custody DTOs
// ============================================

// CreateCustodyInput opens a custody account
type CreateCustodyInput struct {
	UserID     uuid.UUID
	HolderType treasury.HolderType
	TeamID     *uuid.UUID
}

// SettleToVaultInput drains custody cash into a vault
type SettleToVaultInput struct {
	CustodyID   uuid.UUID
	VaultID     uuid.UUID
	Amount      *decimal.Decimal
	Notes       string
	PerformedBy uuid.UUID
	// Privileged callers may settle accounts they do not hold.
	Privileged bool
}

// SettleToCustodyInput hands team leader cash to a supervisor
type SettleToCustodyInput struct {
	FromCustodyID uuid.UUID
	ToCustodyID   uuid.UUID
	Amount        *decimal.Decimal
	Notes         string
	PerformedBy   uuid.UUID
	Privileged    bool
}

// AddFundsInput tops up a custody float
type AddFundsInput struct {
	CustodyID   uuid.UUID
	Amount      decimal.Decimal
	Notes       string
	PerformedBy uuid.UUID
}

// CustodyResponse is the API view of a custody account
type CustodyResponse struct {
	ID         uuid.UUID       `json:"id"`
	UserID     uuid.UUID       `json:"user_id"`
	HolderType string          `json:"holder_type"`
	TeamID     *uuid.UUID      `json:"team_id,omitempty"`
	Balance    decimal.Decimal `json:"balance"`
	IsActive   bool            `json:"is_active"`
	IsFrozen   bool            `json:"is_frozen"`
	Version    int             `json:"version"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ToCustodyResponse converts the aggregate to its API view
func ToCustodyResponse(c *treasury.CustodyAccount) *CustodyResponse {
	return &CustodyResponse{
		ID:         c.ID,
		UserID:     c.UserID,
		HolderType: c.HolderType.String(),
		TeamID:     c.TeamID,
		Balance:    c.Balance,
		IsActive:   c.IsActive,
		IsFrozen:   c.IsFrozen(),
		Version:    c.Version,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

// ============================================
// Ledger DTOs
// ============================================

// LedgerListFilter narrows ledger listings
type LedgerListFilter struct {
	Type      *treasury.TransactionType
	InvoiceID *uuid.UUID
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}

// LedgerEntryResponse is the API view of a ledger row
type LedgerEntryResponse struct {
	ID               uuid.UUID       `json:"id"`
	AccountID        uuid.UUID       `json:"account_id"`
	Type             string          `json:"type"`
	Amount           decimal.Decimal `json:"amount"`
	SignedAmount     decimal.Decimal `json:"signed_amount"`
	BalanceBefore    decimal.Decimal `json:"balance_before"`
	BalanceAfter     decimal.Decimal `json:"balance_after"`
	InvoiceID        *uuid.UUID      `json:"invoice_id,omitempty"`
	CounterpartyType string          `json:"counterparty_type,omitempty"`
	CounterpartyID   *uuid.UUID      `json:"counterparty_id,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	Metadata         map[string]any  `json:"metadata,omitempty"`
	CreatedBy        *uuid.UUID      `json:"created_by,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

func toLedgerEntryResponse(accountID uuid.UUID, e *treasury.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:               e.ID,
		AccountID:        accountID,
		Type:             e.Type.String(),
		Amount:           e.Amount,
		SignedAmount:     e.GetSignedAmount(),
		BalanceBefore:    e.BalanceBefore,
		BalanceAfter:     e.BalanceAfter,
		InvoiceID:        e.InvoiceID,
		CounterpartyType: e.CounterpartyType.String(),
		CounterpartyID:   e.CounterpartyID,
		Notes:            e.Notes,
		Metadata:         e.Metadata,
		CreatedBy:        e.CreatedBy,
		CreatedAt:        e.CreatedAt,
	}
}

func toLedgerFilter(f LedgerListFilter) treasury.LedgerFilter {
	return treasury.LedgerFilter{
		Filter:    normalizePage(f.Page, f.PageSize, "created_at", "desc"),
		Type:      f.Type,
		InvoiceID: f.InvoiceID,
		DateFrom:  f.DateFrom,
		DateTo:    f.DateTo,
	}
}
