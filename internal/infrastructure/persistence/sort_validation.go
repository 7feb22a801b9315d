package persistence

import (
	"strings"
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

// ObligationSortFields contains allowed sort fields for invoices and bills
var ObligationSortFields = map[string]bool{
	"created_at":      true,
	"obligation_date": true,
	"number":          true,
	"grand_total":     true,
	"pending_amount":  true,
	"status":          true,
}

// DocumentSortFields contains allowed sort fields for posted documents
var DocumentSortFields = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"status":     true,
}
