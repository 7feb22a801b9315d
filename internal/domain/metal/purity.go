package metal

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

// PurityScale is the number of decimal places a normalized purity keeps.
const PurityScale = 4

var (
	karatDivisor   = decimal.NewFromInt(24)
	finenessPerMil = decimal.NewFromInt(1000)
	percentCutoff  = decimal.NewFromInt(100)
	percentFactor  = decimal.NewFromInt(10)
	karatSuffixes  = []string{"KARAT", "KT", "K"}
)

// NormalizePurity converts a user-entered purity into parts per thousand.
//
//	"22K", "22kt", "22 karat"  -> 22 * 1000 / 24 = 916.6667
//	"91.6" (bare number < 100) -> 916
//	"916", "100" (>= 100)      -> unchanged
//
// The result is rounded to PurityScale places. Empty, non-numeric, zero and
// negative inputs are rejected.
func NormalizePurity(raw string) (decimal.Decimal, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return decimal.Zero, shared.NewValidationError("purity is required")
	}

	for _, suffix := range karatSuffixes {
		if !strings.HasSuffix(s, suffix) {
			continue
		}
		karat, err := parsePositive(strings.TrimSpace(strings.TrimSuffix(s, suffix)), raw)
		if err != nil {
			return decimal.Zero, err
		}
		return karat.Mul(finenessPerMil).Div(karatDivisor).Round(PurityScale), nil
	}

	value, err := parsePositive(s, raw)
	if err != nil {
		return decimal.Zero, err
	}
	if value.LessThan(percentCutoff) {
		value = value.Mul(percentFactor)
	}
	return value.Round(PurityScale), nil
}

func parsePositive(s, raw string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, shared.NewValidationError("invalid purity %q", raw)
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, shared.NewValidationError("invalid purity %q", raw)
	}
	if !v.IsPositive() {
		return decimal.Zero, shared.NewValidationError("purity must be positive, got %q", raw)
	}
	return v, nil
}
