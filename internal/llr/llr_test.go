package llr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/gramllr/internal/grammar"
)

func TestRatio(t *testing.T) {
	got, err := Ratio(0.7, 0.1)
	require.NoError(t, err)
	assert.InDelta(t, -1.9459, got, 1e-4)
	assert.InDelta(t, math.Log(0.1)-math.Log(0.7), got, 1e-15)

	got, err = Ratio(0.5, 0.5)
	require.NoError(t, err)
	assert.Zero(t, got)

	got, err = Ratio(0.2, 1)
	require.NoError(t, err)
	assert.Greater(t, got, 0.0)
}

func TestRatio_Degenerate(t *testing.T) {
	tests := []struct {
		name   string
		wt, mt float64
	}{
		{"zero wild type", 0, 0.5},
		{"zero mutant", 0.5, 0},
		{"negative", -0.1, 0.5},
		{"above one", 0.5, 1.2},
		{"NaN", math.NaN(), 0.5},
		{"Inf", 0.5, math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Ratio(tt.wt, tt.mt)
			assert.ErrorIs(t, err, ErrDegenerateProbability)
		})
	}
}

func TestScore_Antisymmetric(t *testing.T) {
	m, err := grammar.NewMatrix(
		[]string{"GAA", "CAA", "AUG"},
		[][]float64{
			{0.7, 0.1, 0.2},
			{0.05, 0.9, 0.05},
		})
	require.NoError(t, err)

	for site := 1; site <= 2; site++ {
		forward, err := Score(m, site, "GAA", "CAA")
		require.NoError(t, err)
		backward, err := Score(m, site, "CAA", "GAA")
		require.NoError(t, err)
		assert.InDelta(t, -forward, backward, 1e-12, "site %d", site)
	}

	got, err := Score(m, 1, "GAA", "CAA")
	require.NoError(t, err)
	assert.InDelta(t, -1.9459, got, 1e-4)
}

func TestScore_LookupErrors(t *testing.T) {
	m, err := grammar.NewMatrix([]string{"GAA", "CAA", "UAA"}, [][]float64{{0.7, 0.3, 0}})
	require.NoError(t, err)

	_, err = Score(m, 1, "GAA", "GGG")
	assert.ErrorIs(t, err, grammar.ErrUnknownToken)

	_, err = Score(m, 5, "GAA", "CAA")
	assert.ErrorIs(t, err, grammar.ErrSiteOutOfRange)

	_, err = Score(m, 1, "GAA", "UAA")
	assert.ErrorIs(t, err, ErrDegenerateProbability)
}
