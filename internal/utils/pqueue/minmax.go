// Package pqueue provides a double-ended priority queue.
package pqueue

import "math/bits"

// MinMaxPriorityQueue is a min-max heap that gives constant time access to
// both its smallest and largest element. Elements are unique: adding an
// element already present is a no-op. An optional maximum size turns the
// queue into a bounded buffer that evicts its largest element.
type MinMaxPriorityQueue[T comparable] struct {
	items   []T
	index   map[T]int
	less    func(a, b T) bool
	maxSize int
	dropped int
}

// New creates a queue ordered by less. A maxSize <= 0 means unbounded.
func New[T comparable](less func(a, b T) bool, maxSize int) *MinMaxPriorityQueue[T] {
	return &MinMaxPriorityQueue[T]{
		index:   make(map[T]int),
		less:    less,
		maxSize: maxSize,
	}
}

// Len returns the number of queued elements.
func (q *MinMaxPriorityQueue[T]) Len() int {
	return len(q.items)
}

// IsEmpty reports whether the queue holds no elements.
func (q *MinMaxPriorityQueue[T]) IsEmpty() bool {
	return len(q.items) == 0
}

// Dropped returns how many elements were evicted or rejected because the
// queue was full.
func (q *MinMaxPriorityQueue[T]) Dropped() int {
	return q.dropped
}

// Contains reports whether x is queued.
func (q *MinMaxPriorityQueue[T]) Contains(x T) bool {
	_, ok := q.index[x]
	return ok
}

// Add inserts x and reports whether the queue changed. When the queue is
// full, x replaces the current maximum if it is smaller, otherwise it is
// rejected.
func (q *MinMaxPriorityQueue[T]) Add(x T) bool {
	if q.Contains(x) {
		return false
	}
	if q.maxSize > 0 && len(q.items) >= q.maxSize {
		q.dropped++
		if !q.less(x, q.items[q.maxIndex()]) {
			return false
		}
		q.removeAt(q.maxIndex())
	}
	q.items = append(q.items, x)
	q.index[x] = len(q.items) - 1
	q.pushUp(len(q.items) - 1)
	return true
}

// PeekMin returns the smallest element without removing it.
func (q *MinMaxPriorityQueue[T]) PeekMin() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	return q.items[0], true
}

// PeekMax returns the largest element without removing it.
func (q *MinMaxPriorityQueue[T]) PeekMax() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	return q.items[q.maxIndex()], true
}

// PollMin removes and returns the smallest element.
func (q *MinMaxPriorityQueue[T]) PollMin() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	return q.removeAt(0), true
}

// PollMax removes and returns the largest element.
func (q *MinMaxPriorityQueue[T]) PollMax() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	return q.removeAt(q.maxIndex()), true
}

// Remove deletes x from the queue and reports whether it was present.
func (q *MinMaxPriorityQueue[T]) Remove(x T) bool {
	i, ok := q.index[x]
	if !ok {
		return false
	}
	q.removeAt(i)
	return true
}

// Clear empties the queue. The dropped counter is kept.
func (q *MinMaxPriorityQueue[T]) Clear() {
	q.items = q.items[:0]
	q.index = make(map[T]int)
}

// Items returns the queued elements in heap order.
func (q *MinMaxPriorityQueue[T]) Items() []T {
	return append([]T(nil), q.items...)
}

// isMinLevel reports whether position i sits on an even depth of the tree.
func isMinLevel(i int) bool {
	return bits.Len(uint(i+1))%2 == 1
}

func (q *MinMaxPriorityQueue[T]) maxIndex() int {
	switch len(q.items) {
	case 1:
		return 0
	case 2:
		return 1
	}
	if q.less(q.items[1], q.items[2]) {
		return 2
	}
	return 1
}

func (q *MinMaxPriorityQueue[T]) swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.index[q.items[i]] = i
	q.index[q.items[j]] = j
}

func (q *MinMaxPriorityQueue[T]) set(i int, x T) {
	q.items[i] = x
	q.index[x] = i
}

// before orders elements for the level kind of a position: ascending on min
// levels, descending on max levels.
func (q *MinMaxPriorityQueue[T]) before(a, b T, min bool) bool {
	if min {
		return q.less(a, b)
	}
	return q.less(b, a)
}

func (q *MinMaxPriorityQueue[T]) pushUp(i int) {
	if i == 0 {
		return
	}
	parent := (i - 1) / 2
	min := isMinLevel(i)
	if q.before(q.items[parent], q.items[i], min) {
		q.swap(i, parent)
		q.pushUpLevel(parent, !min)
		return
	}
	q.pushUpLevel(i, min)
}

func (q *MinMaxPriorityQueue[T]) pushUpLevel(i int, min bool) {
	for i > 2 {
		grandparent := ((i-1)/2 - 1) / 2
		if !q.before(q.items[i], q.items[grandparent], min) {
			return
		}
		q.swap(i, grandparent)
		i = grandparent
	}
}

// extremeDescendant returns the position of the first element in level order
// among the children and grandchildren of i, or -1 if i is a leaf.
func (q *MinMaxPriorityQueue[T]) extremeDescendant(i int, min bool) int {
	best := -1
	candidates := [...]int{2*i + 1, 2*i + 2, 4*i + 3, 4*i + 4, 4*i + 5, 4*i + 6}
	for _, c := range candidates {
		if c >= len(q.items) {
			continue
		}
		if best < 0 || q.before(q.items[c], q.items[best], min) {
			best = c
		}
	}
	return best
}

// removeAt deletes the element at position i. The hole is pulled down to a
// leaf along the extreme descendants of its level kind, then the last element
// fills the leaf and bubbles up like an insert.
func (q *MinMaxPriorityQueue[T]) removeAt(i int) T {
	removed := q.items[i]
	delete(q.index, removed)

	min := isMinLevel(i)
	hole := i
	for {
		next := q.extremeDescendant(hole, min)
		if next < 0 {
			break
		}
		q.set(hole, q.items[next])
		hole = next
	}

	last := len(q.items) - 1
	if hole != last {
		q.set(hole, q.items[last])
	}
	var zero T
	q.items[last] = zero
	q.items = q.items[:last]
	if hole != last {
		q.pushUp(hole)
	}
	return removed
}
