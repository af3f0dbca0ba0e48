package dispatch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderstats-go/orderstats/kll"
	"github.com/orderstats-go/orderstats/psquare"
	"github.com/orderstats-go/orderstats/window"
)

func TestParseKind(t *testing.T) {
	for _, kind := range Kinds() {
		parsed, err := ParseKind(kind.String())
		require.NoError(t, err)
		assert.Equal(t, kind, parsed)
	}

	parsed, err := ParseKind("PSquare")
	assert.NoError(t, err)
	assert.Equal(t, PSquare, parsed)

	_, err = ParseKind("mean")
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.Equal(t, "Kind(9)", Kind(9).String())
}

func TestNewInvalid(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		params   Params
		expected error
	}{
		{"sort window", Sort, Params{}, window.ErrInvalidWindow},
		{"median window", Median, Params{Window: -1}, window.ErrInvalidWindow},
		{"quantile ranks", Quantile, Params{Window: 3, Ranks: []int{4}}, window.ErrInvalidRank},
		{"psquare probs", PSquare, Params{}, psquare.ErrInvalidProbability},
		{"sketch k", Sketch, Params{}, kll.ErrInvalidK},
		{"sketch c", Sketch, Params{K: 10, C: 1.5}, kll.ErrInvalidC},
		{"unknown kind", Kind(42), Params{}, ErrUnknownKind},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.kind, tc.params)
			assert.ErrorIs(t, err, tc.expected)
		})
	}
}

func TestSortTable(t *testing.T) {
	table, err := New(Sort, Params{Window: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2", "s3"}, table.Columns())

	value := table.Value()
	require.Len(t, value, 1)
	for _, v := range value[0] {
		assert.True(t, math.IsNaN(v))
	}

	rows := table.Update([]float64{5, 1, 4, 2})
	require.Len(t, rows, 4)
	assert.Equal(t, []float64{5}, rows[0][:1])
	assert.True(t, math.IsNaN(rows[0][1]))
	assert.Equal(t, []float64{1, 4, 5}, rows[2])
	assert.Equal(t, []float64{1, 2, 4}, rows[3])
	assert.Equal(t, [][]float64{{1, 2, 4}}, table.Value())
}

func TestMedianTable(t *testing.T) {
	table, _ := New(Median, Params{Window: 3})
	assert.Equal(t, []string{"median"}, table.Columns())
	assert.Equal(t, [][]float64{{5}, {3}, {4}, {2}, {4}}, table.Update([]float64{5, 1, 4, 2, 8}))
	assert.Equal(t, Median, table.Kind())

	_, err := table.Quantile([]float64{0.5})
	assert.ErrorIs(t, err, ErrUnsupported)

	table.Reset()
	assert.True(t, math.IsNaN(table.Value()[0][0]))
}

func TestQuantileTable(t *testing.T) {
	table, _ := New(Quantile, Params{Window: 4, Ranks: []int{1, 4}})
	assert.Equal(t, []string{"r1", "r4"}, table.Columns())
	rows := table.Update([]float64{3, 1, 2})
	assert.Equal(t, [][]float64{{3, 3}, {1, 3}, {1, 3}}, rows)
}

func TestPSquareTable(t *testing.T) {
	table, _ := New(PSquare, Params{Probs: []float64{0.5, 0.95}})
	assert.Equal(t, []string{"p0.5", "p0.95"}, table.Columns())
	rows := table.Update([]float64{5, 1, 4, 2, 8})
	// From the fifth value on, every tracker reports its middle marker
	assert.Equal(t, []float64{5, 5}, rows[0])
	assert.Equal(t, []float64{4, 4}, rows[4])
	assert.Equal(t, [][]float64{{4, 4}}, table.Value())
}

func TestSketchTable(t *testing.T) {
	table, err := New(Sketch, Params{K: 100, Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"value", "weight", "probability"}, table.Columns())
	assert.Empty(t, table.Value())

	rows := table.Update([]float64{5, 1, 4, 2, 8})
	assert.Equal(t, [][]float64{
		{1, 1, 0.2},
		{2, 1, 0.4},
		{4, 1, 0.6},
		{5, 1, 0.8},
		{8, 1, 1},
	}, rows)
	assert.Equal(t, rows, table.Value())

	result, err := table.Quantile([]float64{0.5, 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 8}, result)

	_, err = table.Quantile([]float64{2})
	assert.ErrorIs(t, err, kll.ErrInvalidProbability)

	table.Reset()
	_, err = table.Quantile([]float64{0.5})
	assert.ErrorIs(t, err, kll.ErrEmpty)
}

func TestSketchTableAlternating(t *testing.T) {
	table, _ := New(Sketch, Params{K: 1, C: 0.5, Alternating: true})
	assert.Equal(t, [][]float64{{1, 2, 1}}, table.Update([]float64{1, 2}))
}

func TestSortTable_WindowLimit(t *testing.T) {
	for _, w := range []int{MaxSortWindow + 1, 1 << 60} {
		_, err := New(Sort, Params{Window: w})
		assert.ErrorIs(t, err, window.ErrInvalidWindow, "window=%d", w)
	}

	table, err := New(Sort, Params{Window: MaxSortWindow})
	require.NoError(t, err)
	assert.Len(t, table.Columns(), MaxSortWindow)

	// The limit applies to Sort rows only
	_, err = New(Median, Params{Window: MaxSortWindow + 1})
	assert.NoError(t, err)
}

// Asserts that sketch tables compact lazily unless Eager is set, matching the kll defaults.
func TestSketchTable_Compaction(t *testing.T) {
	xs := make([]float64, 3000)
	for i := range xs {
		xs[i] = float64((i * 7919) % len(xs))
	}

	for _, eager := range []bool{false, true} {
		table, err := New(Sketch, Params{K: 8, Eager: eager, Seed: 3})
		require.NoError(t, err)
		expected, err := kll.Builder(8).WithLazy(!eager).WithRandomParity(3).Build()
		require.NoError(t, err)

		assert.Equal(t, summaryRows(expected.Update(xs)), table.Update(xs), "eager=%v", eager)
	}
}
