package window

import (
	"fmt"
	"math"
	"slices"

	"github.com/orderstats-go/orderstats"
)

// MovingQuantile returns the order statistics at a fixed set of 1-based ranks over the last W observations. While the
// window is filling, each rank is clamped to the current occupancy, so rank W reads the largest value seen so far.
//
// This type is not concurrency safe.
type MovingQuantile struct {
	window *sortedWindow
	ranks  []int
	values []float64
}

var _ orderstats.BatchEstimator[[]float64] = &MovingQuantile{}

// NewMovingQuantile returns a MovingQuantile for the window size and ranks. Returns ErrInvalidWindow if size < 1, and
// ErrInvalidRank if no ranks are given or any rank is outside [1, size].
func NewMovingQuantile(size int, ranks ...int) (*MovingQuantile, error) {
	w, err := newSortedWindow(size)
	if err != nil {
		return nil, err
	}
	if len(ranks) == 0 {
		return nil, fmt.Errorf("no ranks requested: %w", ErrInvalidRank)
	}
	for _, rank := range ranks {
		if rank < 1 || rank > size {
			return nil, fmt.Errorf("rank %d with window size %d: %w", rank, size, ErrInvalidRank)
		}
	}

	values := make([]float64, len(ranks))
	for i := range values {
		values[i] = math.NaN()
	}
	return &MovingQuantile{
		window: w,
		ranks:  slices.Clone(ranks),
		values: values,
	}, nil
}

// UpdateOne absorbs x and returns the value at each requested rank, in the order the ranks were requested.
func (q *MovingQuantile) UpdateOne(x float64) []float64 {
	q.window.push(x)
	for i, rank := range q.ranks {
		q.values[i] = q.window.at(rank)
	}
	return q.Value()
}

// Update absorbs xs in order and returns a row of rank values after each value.
func (q *MovingQuantile) Update(xs []float64) [][]float64 {
	return orderstats.Update[[]float64](q, xs)
}

// Value returns the last computed rank values, which are NaN before any value is absorbed.
func (q *MovingQuantile) Value() []float64 {
	return slices.Clone(q.values)
}

// ValueAt returns the last computed value for a rank that was requested at construction. Returns ErrUnregisteredRank
// for any other rank.
func (q *MovingQuantile) ValueAt(rank int) (float64, error) {
	idx := slices.Index(q.ranks, rank)
	if idx < 0 {
		return 0, fmt.Errorf("rank %d: %w", rank, ErrUnregisteredRank)
	}
	return q.values[idx], nil
}

// Ranks returns the requested ranks.
func (q *MovingQuantile) Ranks() []int {
	return slices.Clone(q.ranks)
}

// ToVector returns the sorted window contents.
func (q *MovingQuantile) ToVector() []float64 {
	return q.window.toVector()
}

// Len returns the number of observations currently in the window.
func (q *MovingQuantile) Len() int {
	return q.window.len()
}

// Window returns the window size.
func (q *MovingQuantile) Window() int {
	return q.window.size
}

// Reset removes all observations from the window.
func (q *MovingQuantile) Reset() {
	q.window.reset()
	for i := range q.values {
		q.values[i] = math.NaN()
	}
}
