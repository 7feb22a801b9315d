package metal

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

func TestNormalizePurity(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"22 karat with K", "22K", "916.6667"},
		{"24 karat is fine gold", "24K", "1000"},
		{"lower case k", "18k", "750"},
		{"KT suffix", "14KT", "583.3333"},
		{"spelled karat with space", "22 karat", "916.6667"},
		{"bare percentage below 100", "91.6", "916"},
		{"bare percentage just below 100", "99.99", "999.9"},
		{"single digit percentage", "9", "90"},
		{"exactly 100 stays as-is", "100", "100"},
		{"per-mil value", "916", "916"},
		{"per-mil with decimals", "999.9", "999.9"},
		{"surrounding whitespace", "  916 ", "916"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePurity(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestNormalizePurity_Rejects(t *testing.T) {
	for _, in := range []string{"", "   ", "abc", "0", "-5", "K", "0K", "22X"} {
		t.Run(in, func(t *testing.T) {
			_, err := NormalizePurity(in)
			require.Error(t, err)
			assert.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestNewMetalKey(t *testing.T) {
	t.Run("type and purity form the canonical key", func(t *testing.T) {
		k, err := NewMetalKey(nil, " gold ", "22K")
		require.NoError(t, err)
		assert.Equal(t, "GOLD@916.6667", k.String())
	})

	t.Run("equivalent inputs collapse to one key", func(t *testing.T) {
		a := MustMetalKey("GOLD", "91.6")
		b := MustMetalKey("gold", "916")
		assert.True(t, a.Equal(b))
	})

	t.Run("metal id wins over type and purity", func(t *testing.T) {
		id := uuid.New()
		k, err := NewMetalKey(&id, "GOLD", "22K")
		require.NoError(t, err)
		assert.Equal(t, "metal:"+id.String(), k.String())
	})

	t.Run("metal id allows missing purity", func(t *testing.T) {
		id := uuid.New()
		_, err := NewMetalKey(&id, "", "")
		require.NoError(t, err)
	})

	t.Run("requires type without id", func(t *testing.T) {
		_, err := NewMetalKey(nil, "", "916")
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}
