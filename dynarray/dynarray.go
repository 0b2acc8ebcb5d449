// Package dynarray implements a contiguous, grow-on-demand container with a
// pluggable growth policy, used as the backing store for trie buckets before
// they are shrunk and frozen.
package dynarray

import "sort"

// Strategy picks the next capacity given the current capacity and the
// configured increment factor/minimum. Constant, Linear, Log2 and Log10
// below are the four growth policies callers can pick from.
type Strategy func(curCap int, factor float64, min int) int

// Constant grows by a fixed increment (factor is ignored, min is the
// increment).
func Constant(curCap int, factor float64, min int) int {
	inc := min
	if inc <= 0 {
		inc = 1
	}
	return curCap + inc
}

// Linear grows capacity to about curCap*factor (an increment of
// curCap*(factor-1), floored at min); a factor <= 1 is replaced by 1.5.
func Linear(curCap int, factor float64, min int) int {
	if factor <= 1 {
		factor = 1.5
	}
	inc := int(float64(curCap) * (factor - 1))
	if inc < min {
		inc = min
	}
	if inc <= 0 {
		inc = 1
	}
	return curCap + inc
}

// Log2 doubles capacity (mem_inc_strategy = LOG_2), floored at min.
func Log2(curCap int, factor float64, min int) int {
	next := curCap * 2
	if next-curCap < min {
		next = curCap + min
	}
	if next <= curCap {
		next = curCap + 1
	}
	return next
}

// Log10 grows capacity by a factor of 10, floored at min.
func Log10(curCap int, factor float64, min int) int {
	next := curCap * 10
	if next-curCap < min {
		next = curCap + min
	}
	if next <= curCap {
		next = curCap + 1
	}
	return next
}

// Stack is a growable, contiguous array of T. The zero value is not usable;
// construct with New.
type Stack[T any] struct {
	data     []T
	strategy Strategy
	factor   float64
	min      int
}

// New creates a Stack with the given growth strategy, factor and minimum
// increment. A nil strategy defaults to Linear.
func New[T any](strategy Strategy, factor float64, min int) *Stack[T] {
	if strategy == nil {
		strategy = Linear
	}
	if min <= 0 {
		min = 1
	}
	return &Stack[T]{strategy: strategy, factor: factor, min: min}
}

// WithCapacity pre-allocates capacity n (a common case when the caller
// already knows the final count, e.g. pre_allocate(counts)).
func WithCapacity[T any](n int, strategy Strategy, factor float64, min int) *Stack[T] {
	s := New[T](strategy, factor, min)
	s.data = make([]T, 0, n)
	return s
}

// Len returns the number of live elements.
func (s *Stack[T]) Len() int { return len(s.data) }

// Emplace returns a pointer to a freshly appended zero-value slot, growing
// the backing array via the configured strategy if it is full.
func (s *Stack[T]) Emplace() *T {
	if len(s.data) == cap(s.data) {
		newCap := s.strategy(cap(s.data), s.factor, s.min)
		if newCap <= cap(s.data) {
			panic("dynarray: growth strategy failed to increase capacity")
		}
		grown := make([]T, len(s.data), newCap)
		copy(grown, s.data)
		s.data = grown
	}
	s.data = s.data[:len(s.data)+1]
	return &s.data[len(s.data)-1]
}

// Shrink reallocates the backing array to exactly Len() elements.
func (s *Stack[T]) Shrink() {
	if cap(s.data) == len(s.data) {
		return
	}
	shrunk := make([]T, len(s.data))
	copy(shrunk, s.data)
	s.data = shrunk
}

// Slice exposes the live elements. The returned slice aliases the stack's
// backing array; callers must not retain it across further mutation.
func (s *Stack[T]) Slice() []T { return s.data }

// Sort sorts the live elements in place using less(a, b) to mean a sorts
// before b.
func (s *Stack[T]) Sort(less func(a, b T) bool) {
	sort.Slice(s.data, func(i, j int) bool { return less(s.data[i], s.data[j]) })
}

// BinarySearch returns the index of the first element for which cmp returns
// 0, and whether it was found. cmp(x) should return <0, 0, >0 comparing the
// query to element x, consistent with a slice sorted ascending by the same
// comparator.
func (s *Stack[T]) BinarySearch(cmp func(T) int) (int, bool) {
	idx := sort.Search(len(s.data), func(i int) bool { return cmp(s.data[i]) <= 0 })
	if idx < len(s.data) && cmp(s.data[idx]) == 0 {
		return idx, true
	}
	return idx, false
}
