package invoicing

// InvoiceStatus represents the payment lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "draft"          // Being prepared, freely editable
	InvoiceStatusPending       InvoiceStatus = "pending"        // Issued to the customer, awaiting payment
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid" // Part of the total has been collected
	InvoiceStatusPaid          InvoiceStatus = "paid"           // Fully collected
	InvoiceStatusCancelled     InvoiceStatus = "cancelled"      // Terminated, ledger effects reversed
)

// AllInvoiceStatuses lists every status in lifecycle order
var AllInvoiceStatuses = []InvoiceStatus{
	InvoiceStatusDraft,
	InvoiceStatusPending,
	InvoiceStatusPartiallyPaid,
	InvoiceStatusPaid,
	InvoiceStatusCancelled,
}

// MutableInvoiceStatuses are the statuses in which header and items may be edited
var MutableInvoiceStatuses = []InvoiceStatus{InvoiceStatusDraft, InvoiceStatusPending}

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusPending, InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsMutable returns true if the invoice header and items can be edited
func (s InvoiceStatus) IsMutable() bool {
	return s == InvoiceStatusDraft || s == InvoiceStatusPending
}

// IsTerminal returns true if no further transition is possible
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusCancelled
}

// CanSubmit returns true if the invoice can be issued
func (s InvoiceStatus) CanSubmit() bool {
	return s == InvoiceStatusDraft
}

// CanCollect returns true if money can be collected against the invoice
func (s InvoiceStatus) CanCollect() bool {
	return s == InvoiceStatusPending || s == InvoiceStatusPartiallyPaid
}

// CanCancel returns true if the invoice can be cancelled
func (s InvoiceStatus) CanCancel() bool {
	return s != InvoiceStatusCancelled
}

// HasCollections returns true if money has moved into a ledger for this invoice
func (s InvoiceStatus) HasCollections() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusPartiallyPaid
}

// PaymentMethod represents how an invoice is settled by the customer
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodInstapay     PaymentMethod = "instapay"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodInstapay, PaymentMethodBankTransfer:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// IsDigital returns true for methods that need an admin-reviewed proof of payment
func (m PaymentMethod) IsDigital() bool {
	return m == PaymentMethodInstapay || m == PaymentMethodBankTransfer
}
