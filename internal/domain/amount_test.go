package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHumanAmount(t *testing.T) {
	tests := []struct {
		in     string
		atomic string
		human  string
	}{
		{"10", "10000000000000000000", "10"},
		{"0.25", "250000000000000000", "0.25"},
		{"100.", "100000000000000000000", "100"},
		{" 1.5 ", "1500000000000000000", "1.5"},
		{"0.000000000000000001", "1", "0.000000000000000001"},
		{"0", "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			a, err := ParseHumanAmount(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.atomic, a.Atomic())
			assert.Equal(t, tt.human, a.Human())
		})
	}
}

func TestParseHumanAmount_Rejects(t *testing.T) {
	for _, in := range []string{
		"", "  ", "abc", "-1", "+1", "0.0000000000000000001", ".",
		"1e100000000", "1E5", "0x10", "1_000", "1.2.3",
		strings.Repeat("9", 22),
	} {
		_, err := ParseHumanAmount(in)
		assert.Truef(t, errors.Is(err, ErrInvalidAmount), "input %q: got %v", in, err)
	}
}

func TestAmountFromAtomic(t *testing.T) {
	a, err := AmountFromAtomic("2500000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "2.5", a.Human())
	assert.Equal(t, "2.50", a.HumanFixed(2))

	_, err = AmountFromAtomic("1.5")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = AmountFromAtomic("-3")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = AmountFromAtomic("1e50")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = AmountFromAtomic(strings.Repeat("1", 40))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	a, err = AmountFromAtomic(strings.Repeat("9", 39))
	require.NoError(t, err)
	assert.Len(t, a.Atomic(), 39)
}

func TestTradeIntent_ValidateRejectsExponentQuickly(t *testing.T) {
	_, err := TradeIntent{Outcome: "yes", Amount: "1e100000000"}.Validate(MustHumanAmount("100"))
	require.ErrorIs(t, err, ErrInvalidAmount)
	assert.Less(t, len(err.Error()), 200)
}

func TestAmount_JSON(t *testing.T) {
	a := MustHumanAmount("42.1")
	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `"42.1"`, string(data))

	var back Amount
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 0, back.Cmp(a))
}

func TestAmount_ZeroValue(t *testing.T) {
	var a Amount
	assert.True(t, a.IsZero())
	assert.Equal(t, "0", a.Human())
	assert.Equal(t, 1, MustHumanAmount("1").Cmp(a))
}
