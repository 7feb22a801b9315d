package csvimport

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FieldType represents the expected type of a field
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeDecimal FieldType = "decimal"
	TypeDate    FieldType = "date"
	TypeUUID    FieldType = "uuid"
)

// FieldRule defines validation rules for a field
type FieldRule struct {
	Column     string
	Type       FieldType
	Required   bool
	MaxLength  int
	Positive   bool
	OneOf      []string
	DateFormat string
	Unique     bool
}

// FieldRuleBuilder helps build field rules fluently
type FieldRuleBuilder struct {
	rule FieldRule
}

// Field creates a new field rule builder
func Field(column string) *FieldRuleBuilder {
	return &FieldRuleBuilder{
		rule: FieldRule{
			Column:     column,
			Type:       TypeString,
			DateFormat: "2006-01-02",
		},
	}
}

// Required marks the field as required
func (b *FieldRuleBuilder) Required() *FieldRuleBuilder {
	b.rule.Required = true
	return b
}

// Decimal sets the field type to decimal
func (b *FieldRuleBuilder) Decimal() *FieldRuleBuilder {
	b.rule.Type = TypeDecimal
	return b
}

// Positive requires a decimal greater than zero
func (b *FieldRuleBuilder) Positive() *FieldRuleBuilder {
	b.rule.Type = TypeDecimal
	b.rule.Positive = true
	return b
}

// Date sets the field type to date
func (b *FieldRuleBuilder) Date() *FieldRuleBuilder {
	b.rule.Type = TypeDate
	return b
}

// UUID sets the field type to UUID
func (b *FieldRuleBuilder) UUID() *FieldRuleBuilder {
	b.rule.Type = TypeUUID
	return b
}

// MaxLength sets the maximum length in characters
func (b *FieldRuleBuilder) MaxLength(n int) *FieldRuleBuilder {
	b.rule.MaxLength = n
	return b
}

// OneOf restricts the value to a fixed set, compared case-insensitively
func (b *FieldRuleBuilder) OneOf(values ...string) *FieldRuleBuilder {
	b.rule.OneOf = values
	return b
}

// Unique marks the field as unique within the file
func (b *FieldRuleBuilder) Unique() *FieldRuleBuilder {
	b.rule.Unique = true
	return b
}

// Build returns the built field rule
func (b *FieldRuleBuilder) Build() FieldRule {
	return b.rule
}

// FieldValidator checks rows against a set of rules
type FieldValidator struct {
	rules       []FieldRule
	uniqueCheck map[string]map[string]int // column -> value -> first row
	errors      *ErrorCollection
}

// NewFieldValidator creates a validator keeping at most maxErrors errors
func NewFieldValidator(rules []FieldRule, maxErrors int) *FieldValidator {
	return &FieldValidator{
		rules:       rules,
		uniqueCheck: make(map[string]map[string]int),
		errors:      NewErrorCollection(maxErrors),
	}
}

// RequiredColumns lists the columns of required rules
func (v *FieldValidator) RequiredColumns() []string {
	var cols []string
	for _, r := range v.rules {
		if r.Required {
			cols = append(cols, r.Column)
		}
	}
	return cols
}

// ValidateRow validates every rule against the row and reports whether it passed
func (v *FieldValidator) ValidateRow(row *Row) bool {
	ok := true
	for _, rule := range v.rules {
		if !v.validateField(row, rule) {
			ok = false
		}
	}
	return ok
}

func (v *FieldValidator) validateField(row *Row, rule FieldRule) bool {
	value := row.Get(rule.Column)
	if value == "" {
		if rule.Required {
			v.errors.AddRequiredError(row.LineNumber, rule.Column)
			return false
		}
		return true
	}

	if err := validateType(value, rule); err != nil {
		v.errors.AddTypeError(row.LineNumber, rule.Column, string(rule.Type), value)
		return false
	}

	if rule.MaxLength > 0 && len([]rune(value)) > rule.MaxLength {
		v.errors.Add(RowError{Row: row.LineNumber, Column: rule.Column, Code: ErrCodeInvalidLength,
			Message: fmt.Sprintf("length must be at most %d", rule.MaxLength)})
		return false
	}

	if rule.Positive && !decimal.RequireFromString(value).IsPositive() {
		v.errors.Add(RowError{Row: row.LineNumber, Column: rule.Column, Code: ErrCodeInvalidRange,
			Message: "must be greater than zero", Value: value})
		return false
	}

	if len(rule.OneOf) > 0 && !containsFold(rule.OneOf, value) {
		v.errors.Add(RowError{Row: row.LineNumber, Column: rule.Column, Code: ErrCodeInvalidValue,
			Message: "must be one of " + strings.Join(rule.OneOf, ", "), Value: value})
		return false
	}

	if rule.Unique {
		seen := v.uniqueCheck[rule.Column]
		if seen == nil {
			seen = make(map[string]int)
			v.uniqueCheck[rule.Column] = seen
		}
		key := strings.ToLower(value)
		if first, dup := seen[key]; dup {
			v.errors.Add(RowError{Row: row.LineNumber, Column: rule.Column, Code: ErrCodeDuplicateInFile,
				Message: fmt.Sprintf("duplicate value '%s' (first seen in row %d)", value, first), Value: value})
			return false
		}
		seen[key] = row.LineNumber
	}
	return true
}

func validateType(value string, rule FieldRule) error {
	switch rule.Type {
	case TypeDecimal:
		_, err := decimal.NewFromString(value)
		return err
	case TypeDate:
		_, err := time.Parse(rule.DateFormat, value)
		return err
	case TypeUUID:
		_, err := uuid.Parse(value)
		return err
	}
	return nil
}

func containsFold(values []string, v string) bool {
	for _, candidate := range values {
		if strings.EqualFold(candidate, v) {
			return true
		}
	}
	return false
}

// Errors returns the error collection
func (v *FieldValidator) Errors() *ErrorCollection {
	return v.errors
}
