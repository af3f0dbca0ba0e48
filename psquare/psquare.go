// Package psquare estimates streaming quantiles with the P² algorithm, which tracks a single quantile with five
// markers and constant memory regardless of stream length.
//
// Jain, R., & Chlamtac, I. (1985). The P² algorithm for dynamic calculation of quantiles and histograms without
// storing observations. Communications of the ACM, 28(10), 1076-1085.
package psquare

import (
	"errors"
	"math"
)

// ErrInvalidProbability is returned when a probability is outside (0, 1), or when no probabilities are given.
var ErrInvalidProbability = errors.New("probability must be in (0, 1)")

// ErrUnregisteredProbability is returned when querying a probability that was not requested at construction.
var ErrUnregisteredProbability = errors.New("probability was not registered")

const markerCount = 5

// Markers is a snapshot of a Tracker's marker state.
type Markers struct {
	// Heights are the marker height estimates. Before 5 observations, only the first Count heights are set.
	Heights [markerCount]float64
	// Positions are the actual marker positions, 1-based.
	Positions [markerCount]float64
	// Desired are the desired marker positions.
	Desired [markerCount]float64
	// Count is the number of observations absorbed.
	Count int
}

// Tracker estimates a single quantile with five markers. The zero value is not usable; create one with NewTracker.
//
// The first 5 observations seed the markers directly. Until then, the estimate is the exact nearest-rank quantile of
// the observations seen so far, or NaN if there are none. From the 5th observation on, the estimate is the height of
// the middle marker. NaN observations are ignored.
//
// This type is not concurrency safe.
type Tracker struct {
	p         float64
	heights   [markerCount]float64
	positions [markerCount]float64
	desired   [markerCount]float64
	increment [markerCount]float64
	count     int
}

// NewTracker returns a Tracker for the probability p. Returns ErrInvalidProbability if p is not in (0, 1).
func NewTracker(p float64) (Tracker, error) {
	if !(p > 0 && p < 1) {
		return Tracker{}, ErrInvalidProbability
	}
	t := Tracker{
		p:         p,
		increment: [markerCount]float64{0, p / 2, p, (1 + p) / 2, 1},
	}
	t.Reset()
	return t, nil
}

// Add absorbs x and returns the updated quantile estimate.
func (t *Tracker) Add(x float64) float64 {
	if math.IsNaN(x) {
		return t.Value()
	}
	if t.count < markerCount {
		t.seed(x)
		return t.Value()
	}
	t.count++

	// Find the cell k such that heights[k] <= x < heights[k+1], extending the extremes
	var k int
	switch {
	case x < t.heights[0]:
		t.heights[0] = x
		k = 0
	case x >= t.heights[4]:
		t.heights[4] = x
		k = 3
	default:
		for k < 3 && x >= t.heights[k+1] {
			k++
		}
	}

	for i := k + 1; i < markerCount; i++ {
		t.positions[i]++
	}
	for i := range t.desired {
		t.desired[i] += t.increment[i]
	}

	// Adjust interior markers that drifted from their desired positions
	for i := 1; i < markerCount-1; i++ {
		d := t.desired[i] - t.positions[i]
		if (d >= 1 && t.positions[i+1]-t.positions[i] > 1) || (d <= -1 && t.positions[i-1]-t.positions[i] < -1) {
			sign := 1
			if d < 0 {
				sign = -1
			}
			if h := t.parabolic(i, float64(sign)); t.heights[i-1] < h && h < t.heights[i+1] {
				t.heights[i] = h
			} else if h := t.linear(i, sign); !math.IsNaN(h) {
				t.heights[i] = h
			}
			t.positions[i] += float64(sign)
		}
	}
	return t.heights[2]
}

// seed stores one of the first 5 observations, keeping the seeds sorted.
func (t *Tracker) seed(x float64) {
	i := t.count
	for ; i > 0 && t.heights[i-1] > x; i-- {
		t.heights[i] = t.heights[i-1]
	}
	t.heights[i] = x
	t.count++
}

// parabolic returns the piecewise-parabolic prediction for moving marker i by d positions.
func (t *Tracker) parabolic(i int, d float64) float64 {
	q, n := t.heights, t.positions
	return q[i] + d/(n[i+1]-n[i-1])*
		((n[i]-n[i-1]+d)*(q[i+1]-q[i])/(n[i+1]-n[i])+
			(n[i+1]-n[i]-d)*(q[i]-q[i-1])/(n[i]-n[i-1]))
}

// linear returns the linear prediction for moving marker i by d positions towards its neighbor.
func (t *Tracker) linear(i int, d int) float64 {
	q, n := t.heights, t.positions
	return q[i] + float64(d)*(q[i+d]-q[i])/(n[i+d]-n[i])
}

// Value returns the current quantile estimate, or NaN if no observations have been absorbed.
func (t *Tracker) Value() float64 {
	switch {
	case t.count == 0:
		return math.NaN()
	case t.count < markerCount:
		idx := int(math.Ceil(t.p*float64(t.count))) - 1
		return t.heights[min(max(idx, 0), t.count-1)]
	default:
		return t.heights[2]
	}
}

// Probability returns the tracked probability.
func (t *Tracker) Probability() float64 {
	return t.p
}

// Count returns the number of observations absorbed.
func (t *Tracker) Count() int {
	return t.count
}

// Markers returns a snapshot of the marker state.
func (t *Tracker) Markers() Markers {
	return Markers{
		Heights:   t.heights,
		Positions: t.positions,
		Desired:   t.desired,
		Count:     t.count,
	}
}

// Reset discards all observations.
func (t *Tracker) Reset() {
	p := t.p
	t.heights = [markerCount]float64{}
	t.positions = [markerCount]float64{1, 2, 3, 4, 5}
	t.desired = [markerCount]float64{1, 1 + 2*p, 1 + 4*p, 3 + 2*p, 5}
	t.count = 0
}
