package persistence

import (
	"strings"

	"github.com/fieldops/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// InvoiceSortFields contains allowed sort fields for invoices
var InvoiceSortFields = map[string]bool{
	"created_at":     true,
	"updated_at":     true,
	"invoice_number": true,
	"status":         true,
	"total_amount":   true,
	"paid_amount":    true,
	"collected_at":   true,
	// pending review queue
	"payment_submitted_at": true,
}

// VaultSortFields contains allowed sort fields for vaults
var VaultSortFields = map[string]bool{
	"created_at": true,
	"name":       true,
	"type":       true,
	"balance":    true,
}

// CustodySortFields contains allowed sort fields for custody accounts
var CustodySortFields = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"balance":    true,
}

// LedgerSortFields contains allowed sort fields for ledger rows
var LedgerSortFields = map[string]bool{
	"created_at": true,
	"amount":     true,
	"type":       true,
}

// paginate applies the whitelisted order and the page window of filter.
// An id tiebreaker keeps pages stable when the sort column has duplicates.
func paginate(query *gorm.DB, filter shared.Filter, allowed map[string]bool, defaultField string) *gorm.DB {
	field := ValidateSortField(filter.OrderBy, allowed, defaultField)
	dir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(field + " " + dir).Order("id " + dir)
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	return query
}
