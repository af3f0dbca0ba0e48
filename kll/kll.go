// Package kll provides a compactor-based quantile sketch, following Karnin, Lang & Liberty (2016), "Optimal quantile
// approximation in streams".
//
// The sketch keeps a stack of compactors. Level h holds items that each stand for 2^h observations. When a level
// fills up, its items are sorted and every other one is promoted to the next level with doubled weight, so the
// number of retained items stays bounded while quantile queries retain a provable rank error.
package kll

import (
	"errors"
	"log/slog"
	"math/rand/v2"

	"github.com/orderstats-go/orderstats"
)

// ErrInvalidK is returned when the size parameter k is less than 1.
var ErrInvalidK = errors.New("k must be at least 1")

// ErrInvalidC is returned when the capacity shrink rate c is outside (0, 1).
var ErrInvalidC = errors.New("c must be in (0, 1)")

// ErrInvalidProbability is returned when a quantile probability is outside [0, 1].
var ErrInvalidProbability = errors.New("probability must be in [0, 1]")

// ErrEmpty is returned when querying a sketch that has not absorbed any values.
var ErrEmpty = errors.New("sketch is empty")

// DefaultC is the default capacity shrink rate.
const DefaultC = 2.0 / 3.0

// Item is a retained value together with the number of observations it stands for.
type Item struct {
	Value  float64
	Weight float64
	// Probability is the cumulative weight of all items up to and including this one, divided by the total weight.
	Probability float64
}

// Summary is the set of retained items sorted by value.
type Summary []Item

// Sketch approximates quantiles of an unbounded stream using a bounded number of retained items.
//
// NaN values are ignored. ±Inf are retained like any other value.
//
// This type is not concurrency safe.
type Sketch interface {
	orderstats.Estimator[Summary]

	// Update absorbs xs in order and returns the summary after the last value.
	Update(xs []float64) Summary

	// Insert absorbs xs without computing a summary.
	Insert(xs ...float64)

	// Quantile returns an estimate for each probability in probs. Returns ErrInvalidProbability if any probability is
	// outside [0, 1], and ErrEmpty if no values have been absorbed.
	Quantile(probs ...float64) ([]float64, error)

	// Rank returns the estimated fraction of absorbed values that are less than or equal to x.
	Rank(x float64) (float64, error)

	// RankErrorBound returns a bound on the normalized rank error of Quantile results for the sketch's current state.
	// With random parity the bound holds with probability at least 99% per query. With alternating parity it always
	// holds. The bound includes the weight of the heaviest retained item, since Quantile returns a retained item. It is
	// 0 until the first compaction, while the sketch is exact.
	RankErrorBound() float64

	// N returns the number of values absorbed.
	N() uint64

	// Size returns the number of retained items.
	Size() int

	// NumLevels returns the number of compactor levels.
	NumLevels() int

	// Compactions returns the number of compactions performed at each level.
	Compactions() []uint64

	// Reset discards all absorbed values.
	Reset()
}

/*
SketchBuilder builds Sketch instances.

  - By default, c is DefaultC, compaction is lazy, and compaction parity is chosen by a randomly seeded coin.

This type is not concurrency safe.
*/
type SketchBuilder interface {
	// WithC configures the rate c in (0, 1) at which level capacities shrink with depth below the top level. Level h of H
	// levels holds up to ⌈c^(H-h-1)·k⌉+1 items. Larger values of c retain more items at lower levels, which lowers the
	// error at the cost of memory.
	WithC(c float64) SketchBuilder

	// WithLazy configures whether compaction is deferred. A lazy sketch compacts only when its total size reaches its
	// total capacity, and then only the lowest full level, which amortizes compaction cost but lets levels temporarily
	// exceed their capacity. An eager sketch compacts every full level after each insert.
	WithLazy(lazy bool) SketchBuilder

	// WithRandomParity configures compactions to pick the retained parity with a coin seeded from seed. Without it, each
	// built Sketch draws its own random seed.
	WithRandomParity(seed uint64) SketchBuilder

	// WithAlternatingParity configures compactions to alternate the retained parity at each level, starting with even
	// positions. This makes the sketch deterministic, but its error bound is weaker.
	WithAlternatingParity() SketchBuilder

	// WithLogger configures a logger which provides debug logging of compactions and level growth.
	WithLogger(logger *slog.Logger) SketchBuilder

	// Build returns a new Sketch using the builder's configuration. Returns ErrInvalidK or ErrInvalidC if the
	// configuration is invalid.
	Build() (Sketch, error)
}

type parityRule int

const (
	randomParity parityRule = iota
	alternatingParity
)

type config struct {
	k      int
	c      float64
	lazy   bool
	parity parityRule
	seed   uint64
	seeded bool
	logger *slog.Logger
}

var _ SketchBuilder = &config{}

// New returns a new Sketch for the size parameter k, shrink rate c, and lazy compaction setting.
func New(k int, c float64, lazy bool) (Sketch, error) {
	return Builder(k).WithC(c).WithLazy(lazy).Build()
}

// Builder returns a SketchBuilder for the size parameter k. Larger values of k retain more items and give lower
// rank error.
func Builder(k int) SketchBuilder {
	return &config{
		k:    k,
		c:    DefaultC,
		lazy: true,
	}
}

func (c *config) WithC(shrink float64) SketchBuilder {
	c.c = shrink
	return c
}

func (c *config) WithLazy(lazy bool) SketchBuilder {
	c.lazy = lazy
	return c
}

func (c *config) WithRandomParity(seed uint64) SketchBuilder {
	c.parity = randomParity
	c.seed = seed
	c.seeded = true
	return c
}

func (c *config) WithAlternatingParity() SketchBuilder {
	c.parity = alternatingParity
	return c
}

func (c *config) WithLogger(logger *slog.Logger) SketchBuilder {
	c.logger = logger
	return c
}

func (c *config) Build() (Sketch, error) {
	if c.k < 1 {
		return nil, ErrInvalidK
	}
	if !(c.c > 0 && c.c < 1) {
		return nil, ErrInvalidC
	}
	cCopy := *c
	if !cCopy.seeded {
		cCopy.seed = rand.Uint64()
	}
	s := &sketch{config: &cCopy}
	s.Reset()
	return s, nil
}
