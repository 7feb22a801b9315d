package csvimport

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowOf(line int, kv ...string) *Row {
	data := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		data[kv[i]] = kv[i+1]
	}
	return &Row{LineNumber: line, Data: data}
}

func obligationRules() []FieldRule {
	return []FieldRule{
		Field("kind").Required().OneOf("INVOICE", "BILL").Build(),
		Field("number").Required().MaxLength(10).Unique().Build(),
		Field("party_id").Required().UUID().Build(),
		Field("date").Date().Build(),
		Field("grand_total").Required().Positive().Build(),
	}
}

func TestFieldValidator_ValidRow(t *testing.T) {
	v := NewFieldValidator(obligationRules(), 10)
	ok := v.ValidateRow(rowOf(2,
		"kind", "invoice",
		"number", "SB-1",
		"party_id", "3f2504e0-4f89-11d3-9a0c-0305e82c3301",
		"date", "2026-03-31",
		"grand_total", "1500.50",
	))
	assert.True(t, ok)
	assert.False(t, v.Errors().HasErrors())
	assert.ElementsMatch(t, []string{"kind", "number", "party_id", "grand_total"}, v.RequiredColumns())
}

func TestFieldValidator_Failures(t *testing.T) {
	tests := []struct {
		name   string
		row    *Row
		column string
		code   string
	}{
		{"missing required", rowOf(2, "kind", "BILL", "party_id", "3f2504e0-4f89-11d3-9a0c-0305e82c3301", "grand_total", "1"), "number", ErrCodeRequiredField},
		{"bad kind", rowOf(3, "kind", "QUOTE", "number", "Q-1", "party_id", "3f2504e0-4f89-11d3-9a0c-0305e82c3301", "grand_total", "1"), "kind", ErrCodeInvalidValue},
		{"bad uuid", rowOf(4, "kind", "BILL", "number", "B-1", "party_id", "supplier-7", "grand_total", "1"), "party_id", ErrCodeInvalidType},
		{"bad date", rowOf(5, "kind", "BILL", "number", "B-2", "party_id", "3f2504e0-4f89-11d3-9a0c-0305e82c3301", "date", "31/03/2026", "grand_total", "1"), "date", ErrCodeInvalidType},
		{"zero total", rowOf(6, "kind", "BILL", "number", "B-3", "party_id", "3f2504e0-4f89-11d3-9a0c-0305e82c3301", "grand_total", "0"), "grand_total", ErrCodeInvalidRange},
		{"too long", rowOf(7, "kind", "BILL", "number", strings.Repeat("9", 11), "party_id", "3f2504e0-4f89-11d3-9a0c-0305e82c3301", "grand_total", "1"), "number", ErrCodeInvalidLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewFieldValidator(obligationRules(), 10)
			assert.False(t, v.ValidateRow(tt.row))
			errs := v.Errors().Errors()
			require.Len(t, errs, 1)
			assert.Equal(t, tt.column, errs[0].Column)
			assert.Equal(t, tt.code, errs[0].Code)
			assert.Equal(t, tt.row.LineNumber, errs[0].Row)
		})
	}
}

func TestFieldValidator_DuplicateInFile(t *testing.T) {
	v := NewFieldValidator([]FieldRule{Field("number").Required().Unique().Build()}, 10)
	assert.True(t, v.ValidateRow(rowOf(2, "number", "SB-1")))
	assert.False(t, v.ValidateRow(rowOf(3, "number", "sb-1")))

	errs := v.Errors().Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeDuplicateInFile, errs[0].Code)
	assert.Contains(t, errs[0].Message, "first seen in row 2")
}

func TestErrorCollection_Truncates(t *testing.T) {
	ec := NewErrorCollection(2)
	for i := 2; i < 6; i++ {
		ec.AddRequiredError(i, "number")
	}
	assert.Len(t, ec.Errors(), 2)
	assert.Equal(t, 4, ec.TotalCount())
	assert.True(t, ec.IsTruncated())
	assert.Contains(t, ec.String(), "4 error(s) found (showing first 2):")
	assert.Contains(t, ec.String(), "row 2, column 'number': field 'number' is required")

	ec.AddRowError(9, ErrCodeRejected, "already exists")
	assert.Equal(t, "row 9: already exists", RowError{Row: 9, Message: "already exists"}.Error())
	assert.Equal(t, "no errors", NewErrorCollection(0).String())
}
