package matching

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalParams(t *testing.T) {
	t.Run("revives the typed variant", func(t *testing.T) {
		data, err := MarshalParams(DateRangeParams{
			Days:      14,
			Tolerance: decimal.NewFromFloat(0.01),
		})
		require.NoError(t, err)

		params, err := UnmarshalParams(RuleDateRange, data)
		require.NoError(t, err)

		dr, ok := params.(DateRangeParams)
		require.True(t, ok)
		assert.Equal(t, 14, dr.Days)
		assert.True(t, dr.Tolerance.Equal(decimal.NewFromFloat(0.01)))
	})

	t.Run("empty payload yields zero params", func(t *testing.T) {
		params, err := UnmarshalParams(RuleAmount, nil)
		require.NoError(t, err)
		_, ok := params.(AmountParams)
		assert.True(t, ok)
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		_, err := UnmarshalParams("FUZZY", []byte("{}"))
		assert.Error(t, err)
	})

	t.Run("manual has no params", func(t *testing.T) {
		_, err := UnmarshalParams(RuleManual, []byte("{}"))
		assert.Error(t, err)
	})
}

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()
	require.Len(t, rules, 5)

	byName := make(map[string]Rule, len(rules))
	for _, r := range rules {
		byName[r.Name] = r
		assert.True(t, r.Active, "%s should start active", r.Name)
		assert.NotNil(t, r.Params, "%s needs params", r.Name)
	}

	assert.Equal(t, 100, byName["exact-reference"].Priority)
	assert.True(t, byName["exact-reference"].AutoApply)
	assert.True(t, byName["counterparty-iban"].AutoApply)
	assert.False(t, byName["exact-amount"].AutoApply)
	assert.False(t, byName["due-date-window"].AutoApply)
	assert.False(t, byName["weighted-combined"].AutoApply)

	// Each rule round-trips through persistence encoding.
	for _, r := range rules {
		data, err := MarshalParams(r.Params)
		require.NoError(t, err)
		revived, err := UnmarshalParams(r.Type, data)
		require.NoError(t, err)
		assert.IsType(t, r.Params, revived, r.Name)
	}
}
