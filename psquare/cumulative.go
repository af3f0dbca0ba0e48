package psquare

import (
	"fmt"
	"math"
	"slices"

	"github.com/orderstats-go/orderstats"
)

// Cumulative estimates several quantiles of a stream, one independent Tracker per probability.
//
// This type is not concurrency safe.
type Cumulative struct {
	trackers []Tracker
	values   []float64
}

var _ orderstats.BatchEstimator[[]float64] = &Cumulative{}

// NewCumulative returns a Cumulative for the probabilities. Returns ErrInvalidProbability if no probabilities are given
// or any is outside (0, 1).
func NewCumulative(probs ...float64) (*Cumulative, error) {
	if len(probs) == 0 {
		return nil, fmt.Errorf("no probabilities requested: %w", ErrInvalidProbability)
	}
	c := &Cumulative{
		trackers: make([]Tracker, len(probs)),
		values:   make([]float64, len(probs)),
	}
	for i, p := range probs {
		tracker, err := NewTracker(p)
		if err != nil {
			return nil, fmt.Errorf("probability %v: %w", p, err)
		}
		c.trackers[i] = tracker
		c.values[i] = math.NaN()
	}
	return c, nil
}

// UpdateOne absorbs x and returns the estimate for each probability, in the order the probabilities were requested.
func (c *Cumulative) UpdateOne(x float64) []float64 {
	for i := range c.trackers {
		c.values[i] = c.trackers[i].Add(x)
	}
	return c.Value()
}

// Update absorbs xs in order and returns a row of estimates after each value.
func (c *Cumulative) Update(xs []float64) [][]float64 {
	return orderstats.Update[[]float64](c, xs)
}

// Value returns the last computed estimates, which are NaN before any value is absorbed.
func (c *Cumulative) Value() []float64 {
	return slices.Clone(c.values)
}

// Estimate returns the current estimate for a probability requested at construction. Returns
// ErrUnregisteredProbability for any other probability.
func (c *Cumulative) Estimate(p float64) (float64, error) {
	for i := range c.trackers {
		if c.trackers[i].Probability() == p {
			return c.values[i], nil
		}
	}
	return 0, fmt.Errorf("probability %v: %w", p, ErrUnregisteredProbability)
}

// Probabilities returns the tracked probabilities.
func (c *Cumulative) Probabilities() []float64 {
	probs := make([]float64, len(c.trackers))
	for i := range c.trackers {
		probs[i] = c.trackers[i].Probability()
	}
	return probs
}

// Tracker returns a copy of the tracker at index i, in the order the probabilities were requested.
func (c *Cumulative) Tracker(i int) Tracker {
	return c.trackers[i]
}

// Reset discards all observations.
func (c *Cumulative) Reset() {
	for i := range c.trackers {
		c.trackers[i].Reset()
		c.values[i] = math.NaN()
	}
}
