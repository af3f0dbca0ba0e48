package psquare

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTrackerInvalidProbability(t *testing.T) {
	for _, p := range []float64{0, 1, -0.5, 1.5, math.NaN()} {
		_, err := NewTracker(p)
		assert.ErrorIs(t, err, ErrInvalidProbability, "p=%v", p)
	}
}

// Asserts that 5 seed values produce the exact median, and that estimates before then are nearest-rank quantiles of
// the seeds.
func TestTracker_Seed(t *testing.T) {
	tracker, err := NewTracker(0.5)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(tracker.Value()))

	var estimates []float64
	for _, x := range []float64{5, 1, 4, 2, 8} {
		estimates = append(estimates, tracker.Add(x))
	}

	assert.Equal(t, []float64{5, 1, 4, 2, 4}, estimates)
	assert.Equal(t, 5, tracker.Count())
	markers := tracker.Markers()
	assert.Equal(t, [5]float64{1, 2, 4, 5, 8}, markers.Heights)
	assert.Equal(t, [5]float64{1, 2, 3, 4, 5}, markers.Positions)
}

func TestTracker_SeedHighQuantile(t *testing.T) {
	tracker, _ := NewTracker(0.9)
	assert.Equal(t, 3.0, tracker.Add(3))
	assert.Equal(t, 3.0, tracker.Add(1))
	assert.Equal(t, 7.0, tracker.Add(7))
}

// Asserts that the quantile estimate converges to known quantiles for a uniform distribution.
func TestTracker_ConvergesUniform(t *testing.T) {
	tests := []struct {
		name      string
		quantile  float64
		expected  float64
		tolerance float64
	}{
		{"p10", 0.10, 100, 25},
		{"p50", 0.50, 500, 25},
		{"p90", 0.90, 900, 25},
		{"p99", 0.99, 990, 15},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tracker, err := NewTracker(tc.quantile)
			require.NoError(t, err)
			rng := rand.New(rand.NewPCG(42, 42))

			for i := 0; i < 20000; i++ {
				tracker.Add(rng.Float64() * 1000)
			}

			assert.InDelta(t, tc.expected, tracker.Value(), tc.tolerance)
		})
	}
}

// Asserts that the quantile estimate converges to known quantiles for skewed and normal distributions.
func TestTracker_ConvergesOtherDistributions(t *testing.T) {
	tests := []struct {
		name      string
		quantile  float64
		sample    func(*rand.Rand) float64
		expected  float64
		tolerance float64
	}{
		{"normal p50", 0.5, func(r *rand.Rand) float64 { return r.NormFloat64()*10 + 100 }, 100, 1},
		{"normal p95", 0.95, func(r *rand.Rand) float64 { return r.NormFloat64()*10 + 100 }, 116.45, 2},
		{"exponential p50", 0.5, func(r *rand.Rand) float64 { return r.ExpFloat64() }, math.Ln2, 0.1},
		{"exponential p99", 0.99, func(r *rand.Rand) float64 { return r.ExpFloat64() }, -math.Log(0.01), 0.6},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tracker, _ := NewTracker(tc.quantile)
			rng := rand.New(rand.NewPCG(7, 11))
			for i := 0; i < 50000; i++ {
				tracker.Add(tc.sample(rng))
			}
			assert.InDelta(t, tc.expected, tracker.Value(), tc.tolerance)
		})
	}
}

// Asserts that marker positions strictly increase and heights never decrease after every update.
func TestTracker_MarkerOrdering(t *testing.T) {
	for _, p := range []float64{0.01, 0.25, 0.5, 0.75, 0.99} {
		tracker, _ := NewTracker(p)
		rng := rand.New(rand.NewPCG(1, uint64(p*100)))
		for i := 0; i < 5000; i++ {
			var x float64
			switch i % 3 {
			case 0:
				x = rng.Float64()
			case 1:
				x = rng.ExpFloat64() * 10
			default:
				x = float64(rng.IntN(4))
			}
			tracker.Add(x)

			if tracker.Count() < 5 {
				continue
			}
			markers := tracker.Markers()
			for j := 1; j < 5; j++ {
				require.Less(t, markers.Positions[j-1], markers.Positions[j], "p=%v step %d", p, i)
				require.LessOrEqual(t, markers.Heights[j-1], markers.Heights[j], "p=%v step %d", p, i)
			}
			require.Equal(t, float64(tracker.Count()), markers.Positions[4])
		}
	}
}

func TestTracker_ConstantValue(t *testing.T) {
	tracker, _ := NewTracker(0.95)
	for i := 0; i < 100; i++ {
		tracker.Add(42)
	}
	assert.Equal(t, 42.0, tracker.Value())
}

func TestTracker_NonFinite(t *testing.T) {
	tracker, _ := NewTracker(0.5)
	for _, x := range []float64{1, 2, 3, 4, 5} {
		tracker.Add(x)
	}

	assert.Equal(t, 3.0, tracker.Add(math.NaN()))
	assert.Equal(t, 5, tracker.Count())

	tracker.Add(math.Inf(1))
	tracker.Add(math.Inf(1))
	tracker.Add(math.Inf(-1))
	for i := 0; i < 20; i++ {
		tracker.Add(float64(i % 5))
	}
	for _, h := range tracker.Markers().Heights {
		assert.False(t, math.IsNaN(h))
	}
	assert.False(t, math.IsNaN(tracker.Value()))
}

func TestTracker_Reset(t *testing.T) {
	tracker, _ := NewTracker(0.5)
	for i := 0; i < 100; i++ {
		tracker.Add(float64(i))
	}
	tracker.Reset()

	assert.Equal(t, 0, tracker.Count())
	assert.True(t, math.IsNaN(tracker.Value()))
	assert.Equal(t, 0.5, tracker.Probability())
	assert.Equal(t, 9.0, tracker.Add(9))
}

func TestNewCumulativeInvalid(t *testing.T) {
	_, err := NewCumulative()
	assert.ErrorIs(t, err, ErrInvalidProbability)
	_, err = NewCumulative(0.5, 1)
	assert.ErrorIs(t, err, ErrInvalidProbability)
}

func TestCumulative(t *testing.T) {
	c, err := NewCumulative(0.5, 0.9)
	require.NoError(t, err)

	values := c.Value()
	require.Len(t, values, 2)
	assert.True(t, math.IsNaN(values[0]))

	rows := c.Update([]float64{5, 1, 4, 2, 8})
	require.Len(t, rows, 5)
	assert.Equal(t, []float64{4, 4}, rows[4])
	assert.Equal(t, []float64{5, 5}, rows[0])
	assert.Equal(t, []float64{0.5, 0.9}, c.Probabilities())

	median, err := c.Estimate(0.5)
	assert.NoError(t, err)
	assert.Equal(t, 4.0, median)

	_, err = c.Estimate(0.75)
	assert.ErrorIs(t, err, ErrUnregisteredProbability)

	// Trackers are independent copies
	tracker := c.Tracker(1)
	tracker.Add(100)
	unchanged := c.Tracker(1)
	assert.Equal(t, 5, unchanged.Count())
}

// Asserts that Update on a batch matches UpdateOne on each element in order, and that Value is idempotent.
func TestCumulative_BatchMatchesSingleUpdates(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 5))
	xs := make([]float64, 500)
	for i := range xs {
		xs[i] = rng.NormFloat64()
	}

	batch, _ := NewCumulative(0.1, 0.5, 0.99)
	single, _ := NewCumulative(0.1, 0.5, 0.99)
	rows := batch.Update(xs)
	for i, x := range xs {
		require.Equal(t, single.UpdateOne(x), rows[i])
	}

	first := batch.Value()
	assert.Equal(t, first, batch.Value())
	assert.Equal(t, rows[len(rows)-1], first)
}

func TestCumulative_Reset(t *testing.T) {
	c, _ := NewCumulative(0.5)
	c.Update([]float64{1, 2, 3, 4, 5, 6})
	c.Reset()

	assert.True(t, math.IsNaN(c.Value()[0]))
	tracker := c.Tracker(0)
	assert.Equal(t, 0, tracker.Count())
}
