package kll

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"sort"

	"github.com/bits-and-blooms/bitset"
)

// confidence scales the random parity error bound so that it holds with probability at least 99% per query, by
// Hoeffding's inequality: 2·exp(-z²/2) = 0.01.
var confidence = math.Sqrt(2 * math.Log(200))

type sketch struct {
	config *config
	rng    *rand.Rand

	// Mutable state
	levels      [][]float64 // indexed by depth, items at depth h weigh 2^h
	compactions []uint64
	oddParity   bitset.BitSet // for alternating parity, bit h is set when the next compaction at h keeps odd positions
	size        int
	maxSize     int
	n           uint64
	summary     Summary
	stale       bool
}

func (s *sketch) UpdateOne(x float64) Summary {
	s.insert(x)
	return s.Value()
}

func (s *sketch) Update(xs []float64) Summary {
	s.Insert(xs...)
	return s.Value()
}

func (s *sketch) Insert(xs ...float64) {
	for _, x := range xs {
		s.insert(x)
	}
}

func (s *sketch) Value() Summary {
	return slices.Clone(s.sorted())
}

func (s *sketch) insert(x float64) {
	if math.IsNaN(x) {
		return
	}
	s.levels[0] = append(s.levels[0], x)
	s.size++
	s.n++
	s.stale = true

	if s.config.lazy {
		if s.size >= s.maxSize {
			s.compactLowest()
		}
	} else {
		s.compactAll()
	}
}

// capacity returns the number of items level h can hold before it must be compacted.
func (s *sketch) capacity(h int) int {
	depth := len(s.levels) - h - 1
	return int(math.Ceil(math.Pow(s.config.c, float64(depth))*float64(s.config.k))) + 1
}

// grow adds a level on top, which shrinks the capacity of every level below it.
func (s *sketch) grow() {
	s.levels = append(s.levels, nil)
	s.compactions = append(s.compactions, 0)
	s.maxSize = 0
	for h := range s.levels {
		s.maxSize += s.capacity(h)
	}
	if s.config.logger != nil && s.config.logger.Enabled(context.Background(), slog.LevelDebug) {
		s.config.logger.Debug("level added",
			"levels", len(s.levels),
			"maxSize", s.maxSize,
			"n", s.n)
	}
}

// compactLowest compacts the lowest level that is at or above its capacity.
func (s *sketch) compactLowest() {
	for h := range s.levels {
		if len(s.levels[h]) >= s.capacity(h) {
			s.compact(h)
			return
		}
	}
}

// compactAll compacts levels until none is at or above its capacity. Compactions cascade upward, and growing a level
// can shrink the capacity of the levels below it, so levels are swept until a sweep makes no changes.
func (s *sketch) compactAll() {
	for compacted := true; compacted; {
		compacted = false
		for h := 0; h < len(s.levels); h++ {
			if len(s.levels[h]) >= s.capacity(h) {
				s.compact(h)
				compacted = true
			}
		}
	}
}

// compact sorts level h and promotes every other item to level h+1. When the level holds an odd number of items,
// the largest is held back at level h.
func (s *sketch) compact(h int) {
	if h+1 >= len(s.levels) {
		s.grow()
	}

	level := s.levels[h]
	slices.Sort(level)
	var heldBack []float64
	if len(level)%2 == 1 {
		heldBack = level[len(level)-1:]
		level = level[:len(level)-1]
	}

	offset := s.nextOffset(h)
	for i := offset; i < len(level); i += 2 {
		s.levels[h+1] = append(s.levels[h+1], level[i])
	}
	s.levels[h] = append(s.levels[h][:0], heldBack...)
	s.compactions[h]++
	s.size -= len(level) / 2

	if s.config.logger != nil && s.config.logger.Enabled(context.Background(), slog.LevelDebug) {
		s.config.logger.Debug("compaction",
			"level", h,
			"compacted", len(level),
			"offset", offset,
			"size", s.size,
			"maxSize", s.maxSize)
	}
}

// nextOffset returns 0 to keep the even positions of a sorted level, or 1 to keep the odd ones.
func (s *sketch) nextOffset(h int) int {
	if s.config.parity == alternatingParity {
		offset := 0
		if s.oddParity.Test(uint(h)) {
			offset = 1
		}
		s.oddParity.Flip(uint(h))
		return offset
	}
	return s.rng.IntN(2)
}

// sorted returns the cached summary, rebuilding it if values were absorbed since it was last built.
func (s *sketch) sorted() Summary {
	if !s.stale {
		return s.summary
	}
	items := s.summary[:0]
	total := 0.0
	for h, level := range s.levels {
		weight := math.Ldexp(1, h)
		for _, v := range level {
			items = append(items, Item{Value: v, Weight: weight})
			total += weight
		}
	}
	slices.SortFunc(items, func(a, b Item) int {
		return cmp.Compare(a.Value, b.Value)
	})
	cumulative := 0.0
	for i := range items {
		cumulative += items[i].Weight
		items[i].Probability = cumulative / total
	}
	s.summary = items
	s.stale = false
	return items
}

func (s *sketch) Quantile(probs ...float64) ([]float64, error) {
	for _, p := range probs {
		if !(p >= 0 && p <= 1) {
			return nil, fmt.Errorf("probability %v: %w", p, ErrInvalidProbability)
		}
	}
	if s.n == 0 {
		return nil, ErrEmpty
	}

	summary := s.sorted()
	result := make([]float64, len(probs))
	for i, p := range probs {
		idx := sort.Search(len(summary), func(j int) bool {
			return summary[j].Probability >= p
		})
		result[i] = summary[min(idx, len(summary)-1)].Value
	}
	return result, nil
}

func (s *sketch) Rank(x float64) (float64, error) {
	if s.n == 0 {
		return 0, ErrEmpty
	}
	summary := s.sorted()
	idx := sort.Search(len(summary), func(j int) bool {
		return cmp.Less(x, summary[j].Value)
	})
	if idx == 0 {
		return 0, nil
	}
	return summary[idx-1].Probability, nil
}

func (s *sketch) RankErrorBound() float64 {
	if s.n == 0 {
		return 0
	}
	var sum, sumSquares, maxWeight float64
	for h, count := range s.compactions {
		weight := math.Ldexp(1, h)
		sum += float64(count) * weight
		sumSquares += float64(count) * weight * weight
		if len(s.levels[h]) > 0 {
			maxWeight = weight
		}
	}
	if sum == 0 {
		return 0
	}
	bound := sum
	if s.config.parity == randomParity {
		bound = min(bound, confidence*math.Sqrt(sumSquares))
	}
	return (bound + maxWeight) / float64(s.n)
}

func (s *sketch) N() uint64 {
	return s.n
}

func (s *sketch) Size() int {
	return s.size
}

func (s *sketch) NumLevels() int {
	return len(s.levels)
}

func (s *sketch) Compactions() []uint64 {
	return slices.Clone(s.compactions)
}

func (s *sketch) Reset() {
	s.levels = s.levels[:0]
	s.compactions = s.compactions[:0]
	s.oddParity.ClearAll()
	s.rng = rand.New(rand.NewPCG(s.config.seed, s.config.seed^0xda3e39cb94b95bdb))
	s.size = 0
	s.n = 0
	s.summary = Summary{}
	s.stale = false
	s.grow()
}
