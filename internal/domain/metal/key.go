package metal

import (
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

// MetalKey identifies a metal pool account. A stable metal id wins when
// present; otherwise the (metal type, normalized purity) pair is used.
type MetalKey struct {
	MetalID   *uuid.UUID
	MetalType string
	Purity    decimal.Decimal
}

// NewMetalKey builds a normalized key from raw user input
func NewMetalKey(metalID *uuid.UUID, metalType, purity string) (MetalKey, error) {
	metalType = strings.ToUpper(strings.TrimSpace(metalType))
	if metalID != nil && *metalID == uuid.Nil {
		metalID = nil
	}
	if metalID == nil && metalType == "" {
		return MetalKey{}, shared.NewValidationError("metal type is required when no metal id is given")
	}

	var p decimal.Decimal
	if metalID == nil || strings.TrimSpace(purity) != "" {
		var err error
		if p, err = NormalizePurity(purity); err != nil {
			return MetalKey{}, err
		}
	}
	return MetalKey{MetalID: metalID, MetalType: metalType, Purity: p}, nil
}

// MustMetalKey is NewMetalKey for literals known to be valid
func MustMetalKey(metalType, purity string) MetalKey {
	k, err := NewMetalKey(nil, metalType, purity)
	if err != nil {
		panic(err)
	}
	return k
}

// String returns the canonical form persisted as the account key
func (k MetalKey) String() string {
	if k.MetalID != nil {
		return "metal:" + k.MetalID.String()
	}
	return k.MetalType + "@" + k.Purity.Round(PurityScale).String()
}

// Equal compares canonical forms
func (k MetalKey) Equal(other MetalKey) bool {
	return k.String() == other.String()
}

// IsZero reports whether the key was never set
func (k MetalKey) IsZero() bool {
	return k.MetalID == nil && k.MetalType == ""
}

// InLockOrder returns a copy of items sorted by canonical key. A transaction
// touching several accounts locks them in this order, so two transactions
// over the same keys never wait on each other crosswise.
func InLockOrder[T any](items []T, key func(T) MetalKey) []T {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b T) int {
		return strings.Compare(key(a).String(), key(b).String())
	})
	return out
}
