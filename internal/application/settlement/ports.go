package settlement

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// ProofStorage stores uploaded payment proofs in the receipts bucket
type ProofStorage interface {
	// Upload writes the object and returns its public URL
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	// List returns the objects whose key starts with prefix
	List(ctx context.Context, prefix string) ([]StoredObject, error)
	Delete(ctx context.Context, key string) error
	// PublicURL returns the URL an object is served under
	PublicURL(key string) string
}

// StoredObject describes an object in the receipts bucket
type StoredObject struct {
	Key          string
	URL          string
	Size         int64
	LastModified time.Time
}

// Cache is the read-path cache used by report services
type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Set(ctx context.Context, key string, value V, ttl time.Duration)
	Delete(ctx context.Context, key string)
	// DeletePrefix drops every key starting with prefix
	DeletePrefix(ctx context.Context, prefix string)
}

// OperationObserver records the outcome and duration of a financial operation
type OperationObserver interface {
	ObserveOperation(ctx context.Context, operation string, amount decimal.Decimal, duration time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) ObserveOperation(context.Context, string, decimal.Decimal, time.Duration, error) {
}

// Operation names used for spans, logs and metrics
const (
	OpCreateInvoice       = "create_invoice"
	OpUpdateInvoice       = "update_invoice"
	OpSubmitInvoice       = "submit_invoice"
	OpDeleteInvoice       = "delete_invoice"
	OpCollectCash         = "collect_cash"
	OpSubmitProof         = "submit_payment_proof"
	OpCollectAdmin        = "collect_admin"
	OpRejectPayment       = "reject_payment"
	OpCancelInvoice       = "cancel_invoice"
	OpTransferVaults      = "transfer_between_vaults"
	OpManualAdjustment    = "manual_adjustment"
	OpSettleToVault       = "settle_to_vault"
	OpSettleToCustody     = "settle_to_custody"
	OpAddToCustody        = "add_to_custody"
	OpCustodyStatusChange = "custody_status_change"
)
