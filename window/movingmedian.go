package window

import (
	"math"

	"github.com/orderstats-go/orderstats"
)

// MovingMedian computes the median of the last W observations. With an odd occupancy n the median is the element at
// rank ⌈n/2⌉, and with an even occupancy it's the average of the elements at ranks n/2 and n/2+1.
//
// This type is not concurrency safe.
type MovingMedian struct {
	window *sortedWindow
	value  float64
}

var _ orderstats.BatchEstimator[float64] = &MovingMedian{}

// NewMovingMedian returns a MovingMedian for the window size. Returns ErrInvalidWindow if size < 1.
func NewMovingMedian(size int) (*MovingMedian, error) {
	w, err := newSortedWindow(size)
	if err != nil {
		return nil, err
	}
	return &MovingMedian{
		window: w,
		value:  math.NaN(),
	}, nil
}

// UpdateOne absorbs x and returns the median of the window.
func (m *MovingMedian) UpdateOne(x float64) float64 {
	m.window.push(x)
	n := m.window.len()
	if n%2 == 1 {
		m.value = m.window.at(n/2 + 1)
	} else {
		m.value = m.window.at(n/2)/2 + m.window.at(n/2+1)/2
	}
	return m.value
}

// Update absorbs xs in order and returns the median after each value.
func (m *MovingMedian) Update(xs []float64) []float64 {
	return orderstats.Update[float64](m, xs)
}

// Value returns the last computed median, or NaN if no value has been absorbed.
func (m *MovingMedian) Value() float64 {
	return m.value
}

// ToVector returns the sorted window contents.
func (m *MovingMedian) ToVector() []float64 {
	return m.window.toVector()
}

// Len returns the number of observations currently in the window.
func (m *MovingMedian) Len() int {
	return m.window.len()
}

// Window returns the window size.
func (m *MovingMedian) Window() int {
	return m.window.size
}

// Reset removes all observations from the window.
func (m *MovingMedian) Reset() {
	m.window.reset()
	m.value = math.NaN()
}
