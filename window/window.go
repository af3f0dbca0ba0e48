// Package window provides exact order statistics over a sliding window of the last W observations.
//
// Each estimator keeps the window in two forms: a FIFO buffer in arrival order, and a sorted mirror holding the same
// multiset in ascending order. Every update evicts the oldest value once the window is full and inserts the new value
// into both, in O(log W) expected time.
//
// Before the window is full, statistics are computed over the observations seen so far.
package window

import (
	"errors"

	"github.com/gammazero/deque"

	"github.com/orderstats-go/orderstats/internal/util"
)

// ErrInvalidWindow is returned when a window size is less than 1.
var ErrInvalidWindow = errors.New("window size must be at least 1")

// ErrInvalidRank is returned when a requested rank is outside [1, window size], or when no ranks are requested.
var ErrInvalidRank = errors.New("rank must be in [1, window size]")

// ErrUnregisteredRank is returned when querying a rank that was not requested at construction.
var ErrUnregisteredRank = errors.New("rank was not registered")

// ErrIndexOutOfRange is returned when an index is outside the current window occupancy.
var ErrIndexOutOfRange = errors.New("index out of range")

// sortedWindow holds the last size observations in arrival order and in sorted order.
type sortedWindow struct {
	size   int
	buffer deque.Deque[float64]
	sorted *util.Skiplist
}

func newSortedWindow(size int) (*sortedWindow, error) {
	if size < 1 {
		return nil, ErrInvalidWindow
	}
	return &sortedWindow{
		size:   size,
		sorted: util.NewSkiplist(size),
	}, nil
}

// push evicts the oldest value if the window is full, then adds x.
func (w *sortedWindow) push(x float64) {
	if w.buffer.Len() == w.size {
		w.sorted.Remove(w.buffer.PopFront())
	}
	w.buffer.PushBack(x)
	w.sorted.Insert(x)
}

// at returns the value at the 1-based rank, clamped to the current occupancy.
func (w *sortedWindow) at(rank int) float64 {
	rank = min(max(rank, 1), w.sorted.Len())
	return w.sorted.At(rank - 1)
}

func (w *sortedWindow) len() int {
	return w.buffer.Len()
}

func (w *sortedWindow) toVector() []float64 {
	return w.sorted.Values()
}

func (w *sortedWindow) reset() {
	w.buffer.Clear()
	w.sorted.Reset()
}
