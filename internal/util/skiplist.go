package util

import (
	"cmp"
	"math/bits"
	"math/rand/v2"
)

// Skiplist is an indexable skiplist that holds a sorted multiset of float64 values. Insert, Remove and At run in
// O(log n) expected time. Values are ordered with cmp.Compare, so NaN sorts before every other value and is equal to
// itself, which keeps NaN and ±Inf removable by value.
//
// This type is not concurrency safe.
type Skiplist struct {
	head   *skipNode
	levels int
	length int
	rng    *rand.Rand

	// Scratch space reused across calls
	update []*skipNode
	rank   []int
}

type skipNode struct {
	value float64
	next  []*skipNode
	// width[i] is the number of elements spanned by next[i], counting next[i] itself. When next[i] is nil, it spans to
	// a virtual tail positioned after the last element.
	width []int
}

// NewSkiplist returns a Skiplist sized for about capacity elements.
func NewSkiplist(capacity int) *Skiplist {
	levels := max(1, bits.Len(uint(capacity)))
	s := &Skiplist{
		levels: levels,
		rng:    rand.New(rand.NewPCG(uint64(capacity), 0x9e3779b97f4a7c15)),
		update: make([]*skipNode, levels),
		rank:   make([]int, levels),
	}
	s.head = newSkipNode(0, levels)
	s.Reset()
	return s
}

func newSkipNode(value float64, height int) *skipNode {
	return &skipNode{
		value: value,
		next:  make([]*skipNode, height),
		width: make([]int, height),
	}
}

// randomHeight returns a geometrically distributed node height in [1, levels].
func (s *Skiplist) randomHeight() int {
	return min(s.levels, 1+bits.TrailingZeros64(s.rng.Uint64()))
}

// search records, for each level, the last node whose value is less than value and that node's position.
func (s *Skiplist) search(value float64) {
	node := s.head
	pos := 0
	for i := s.levels - 1; i >= 0; i-- {
		for node.next[i] != nil && cmp.Less(node.next[i].value, value) {
			pos += node.width[i]
			node = node.next[i]
		}
		s.update[i] = node
		s.rank[i] = pos
	}
}

// Insert adds value to the list. Equal values are kept as separate entries.
func (s *Skiplist) Insert(value float64) {
	s.search(value)
	height := s.randomHeight()
	node := newSkipNode(value, height)
	pos := s.rank[0] + 1
	for i := 0; i < s.levels; i++ {
		prev := s.update[i]
		if i < height {
			node.next[i] = prev.next[i]
			prev.next[i] = node
			node.width[i] = prev.width[i] - (pos - s.rank[i]) + 1
			prev.width[i] = pos - s.rank[i]
		} else {
			prev.width[i]++
		}
	}
	s.length++
}

// Remove removes one entry equal to value, returning false if no such entry exists.
func (s *Skiplist) Remove(value float64) bool {
	s.search(value)
	node := s.update[0].next[0]
	if node == nil || cmp.Compare(node.value, value) != 0 {
		return false
	}
	for i := 0; i < s.levels; i++ {
		prev := s.update[i]
		if i < len(node.next) {
			prev.width[i] += node.width[i] - 1
			prev.next[i] = node.next[i]
		} else {
			prev.width[i]--
		}
	}
	s.length--
	return true
}

// At returns the element at the 0-based index in sorted order. The index must be in [0, Len()).
func (s *Skiplist) At(index int) float64 {
	if index < 0 || index >= s.length {
		panic("skiplist index out of range")
	}
	target := index + 1
	node := s.head
	pos := 0
	for i := s.levels - 1; i >= 0; i-- {
		for node.next[i] != nil && pos+node.width[i] <= target {
			pos += node.width[i]
			node = node.next[i]
		}
	}
	return node.value
}

// Len returns the number of elements in the list.
func (s *Skiplist) Len() int {
	return s.length
}

// AppendTo appends the elements in sorted order to dst and returns the extended slice.
func (s *Skiplist) AppendTo(dst []float64) []float64 {
	for node := s.head.next[0]; node != nil; node = node.next[0] {
		dst = append(dst, node.value)
	}
	return dst
}

// Values returns the elements in sorted order.
func (s *Skiplist) Values() []float64 {
	return s.AppendTo(make([]float64, 0, s.length))
}

// Reset removes all elements.
func (s *Skiplist) Reset() {
	for i := range s.head.next {
		s.head.next[i] = nil
		s.head.width[i] = 1
	}
	s.length = 0
}
