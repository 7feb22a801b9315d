package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string returns DESC", "", "DESC"},
		{"asc lowercase returns ASC", "asc", "ASC"},
		{"invalid value returns DESC", "SIDEWAYS", "DESC"},
		{"sql injection attempt returns DESC", "ASC; DROP TABLE obligations;--", "DESC"},
		{"whitespace around ASC returns ASC", "  asc  ", "ASC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateSortOrder(tt.input))
		})
	}
}

func TestValidateSortField(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string returns default", "", "obligation_date"},
		{"allowed field is kept", "pending_amount", "pending_amount"},
		{"unknown field returns default", "party_name", "obligation_date"},
		{"injection attempt returns default", "number; DROP TABLE obligations;--", "obligation_date"},
		{"whitespace is trimmed", "  number ", "number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateSortField(tt.input, ObligationSortFields, "obligation_date"))
		})
	}
}
