package window

import (
	"github.com/orderstats-go/orderstats"
)

// MovingSort maintains the sorted contents of the last W observations.
//
// This type is not concurrency safe.
type MovingSort struct {
	window *sortedWindow
}

var _ orderstats.BatchEstimator[[]float64] = &MovingSort{}

// NewMovingSort returns a MovingSort for the window size. Returns ErrInvalidWindow if size < 1.
func NewMovingSort(size int) (*MovingSort, error) {
	w, err := newSortedWindow(size)
	if err != nil {
		return nil, err
	}
	return &MovingSort{window: w}, nil
}

// UpdateOne absorbs x and returns the sorted window contents.
func (s *MovingSort) UpdateOne(x float64) []float64 {
	s.window.push(x)
	return s.window.toVector()
}

// Update absorbs xs in order and returns the sorted window contents after each value.
func (s *MovingSort) Update(xs []float64) [][]float64 {
	return orderstats.Update[[]float64](s, xs)
}

// Value returns the sorted window contents, which is empty before any value is absorbed.
func (s *MovingSort) Value() []float64 {
	return s.window.toVector()
}

// ToVector returns the sorted window contents.
func (s *MovingSort) ToVector() []float64 {
	return s.window.toVector()
}

// At returns the element at the 0-based index into the sorted window. Returns ErrIndexOutOfRange if index is outside
// the current occupancy.
func (s *MovingSort) At(index int) (float64, error) {
	if index < 0 || index >= s.window.len() {
		return 0, ErrIndexOutOfRange
	}
	return s.window.sorted.At(index), nil
}

// Len returns the number of observations currently in the window.
func (s *MovingSort) Len() int {
	return s.window.len()
}

// Window returns the window size.
func (s *MovingSort) Window() int {
	return s.window.size
}

// Reset removes all observations from the window.
func (s *MovingSort) Reset() {
	s.window.reset()
}
