package pqueue

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intLess(a, b int) bool { return a < b }

func TestMinMaxPriorityQueue_Basic(t *testing.T) {
	q := New(intLess, 0)

	_, ok := q.PeekMin()
	assert.False(t, ok)
	_, ok = q.PollMax()
	assert.False(t, ok)

	for _, v := range []int{5, 3, 9, 1, 7} {
		assert.True(t, q.Add(v))
	}
	assert.False(t, q.Add(3), "duplicates are ignored")
	assert.Equal(t, 5, q.Len())

	minV, _ := q.PeekMin()
	maxV, _ := q.PeekMax()
	assert.Equal(t, 1, minV)
	assert.Equal(t, 9, maxV)

	assert.True(t, q.Contains(7))
	assert.True(t, q.Remove(7))
	assert.False(t, q.Contains(7))
	assert.False(t, q.Remove(7))

	var got []int
	for !q.IsEmpty() {
		v, _ := q.PollMin()
		got = append(got, v)
	}
	assert.Equal(t, []int{1, 3, 5, 9}, got)
}

func TestMinMaxPriorityQueue_Bounded(t *testing.T) {
	q := New(intLess, 3)

	q.Add(4)
	q.Add(2)
	q.Add(6)
	assert.False(t, q.Add(8), "worse than the tail")
	assert.True(t, q.Add(1), "better than the tail")
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, 2, q.Dropped())

	maxV, _ := q.PeekMax()
	assert.Equal(t, 4, maxV)
	assert.False(t, q.Contains(6))
}

func TestMinMaxPriorityQueue_RandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	q := New(intLess, 0)
	reference := make(map[int]bool)

	sorted := func() []int {
		out := make([]int, 0, len(reference))
		for v := range reference {
			out = append(out, v)
		}
		sort.Ints(out)
		return out
	}

	for step := 0; step < 5000; step++ {
		switch op := rng.Intn(5); {
		case op <= 1:
			v := rng.Intn(500)
			added := q.Add(v)
			assert.Equal(t, !reference[v], added)
			reference[v] = true
		case op == 2 && len(reference) > 0:
			want := sorted()[0]
			got, ok := q.PollMin()
			require.True(t, ok)
			require.Equal(t, want, got, "step %d", step)
			delete(reference, want)
		case op == 3 && len(reference) > 0:
			s := sorted()
			want := s[len(s)-1]
			got, ok := q.PollMax()
			require.True(t, ok)
			require.Equal(t, want, got, "step %d", step)
			delete(reference, want)
		case op == 4:
			v := rng.Intn(500)
			assert.Equal(t, reference[v], q.Remove(v))
			delete(reference, v)
		}
		require.Equal(t, len(reference), q.Len())
	}

	assert.ElementsMatch(t, sorted(), q.Items())
}

func TestMinMaxPriorityQueue_Pointers(t *testing.T) {
	type node struct{ loss float64 }
	a, b, c := &node{3}, &node{1}, &node{2}
	q := New(func(x, y *node) bool { return x.loss < y.loss }, 0)

	q.Add(a)
	q.Add(b)
	q.Add(c)
	q.Add(&node{1})

	assert.Equal(t, 4, q.Len())
	minV, _ := q.PollMin()
	assert.Equal(t, 1.0, minV.loss)
	maxV, _ := q.PollMax()
	assert.Same(t, a, maxV)

	q.Clear()
	assert.True(t, q.IsEmpty())
	assert.False(t, q.Contains(c))
}
