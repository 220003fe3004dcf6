package livequery

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(id string, priority float64) *DocumentSnapshot {
	return &DocumentSnapshot{ID: id, Fields: map[string]any{"text": id, "priority": priority}}
}

func ids(docs []*DocumentSnapshot) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestDiffInitialLoadIsAllAdds(t *testing.T) {
	next := []*DocumentSnapshot{doc("a", 1), doc("b", 2)}
	changes := Diff(nil, next)

	require.Len(t, changes, 2)
	assert.Equal(t, DocumentChange{Kind: Added, Doc: next[0], OldIndex: -1, NewIndex: 0}, changes[0])
	assert.Equal(t, DocumentChange{Kind: Added, Doc: next[1], OldIndex: -1, NewIndex: 1}, changes[1])
}

func TestDiffNoChanges(t *testing.T) {
	prev := []*DocumentSnapshot{doc("a", 1), doc("b", 2)}
	next := []*DocumentSnapshot{doc("a", 1), doc("b", 2)}
	assert.Empty(t, Diff(prev, next))
}

func TestDiffContentChangeInPlace(t *testing.T) {
	prev := []*DocumentSnapshot{doc("a", 1), doc("b", 2), doc("c", 3)}
	b2 := doc("b", 2)
	b2.Fields["text"] = "edited"
	next := []*DocumentSnapshot{prev[0], b2, prev[2]}

	changes := Diff(prev, next)
	require.Len(t, changes, 1)
	assert.Equal(t, DocumentChange{Kind: Modified, Doc: b2, OldIndex: 1, NewIndex: 1}, changes[0])
}

func TestDiffSingleMove(t *testing.T) {
	prev := []*DocumentSnapshot{doc("a", 1), doc("b", 2), doc("c", 3)}
	a := doc("a", 4)
	next := []*DocumentSnapshot{prev[1], prev[2], a}

	changes := Diff(prev, next)
	require.Len(t, changes, 1)
	assert.Equal(t, DocumentChange{Kind: Modified, Doc: a, OldIndex: 0, NewIndex: 2}, changes[0])
}

func TestDiffRemoveThenAdd(t *testing.T) {
	prev := []*DocumentSnapshot{doc("a", 1), doc("b", 2), doc("c", 3)}
	d := doc("d", 0)
	next := []*DocumentSnapshot{d, prev[0], prev[2]}

	changes := Diff(prev, next)
	require.Len(t, changes, 2)
	assert.Equal(t, DocumentChange{Kind: Removed, Doc: prev[1], OldIndex: 1, NewIndex: -1}, changes[0])
	assert.Equal(t, DocumentChange{Kind: Added, Doc: d, OldIndex: -1, NewIndex: 0}, changes[1])
}

func TestDiffRemoveAll(t *testing.T) {
	prev := []*DocumentSnapshot{doc("a", 1), doc("b", 2)}
	changes := Diff(prev, nil)
	require.Len(t, changes, 2)
	assert.Equal(t, 0, changes[0].OldIndex)
	assert.Equal(t, 0, changes[1].OldIndex)
	assert.Empty(t, Apply(prev, changes))
}

func TestDiffReplaysToNext(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for round := 0; round < 500; round++ {
		pool := make([]*DocumentSnapshot, 12)
		for i := range pool {
			pool[i] = doc(fmt.Sprintf("d%02d", i), float64(rng.IntN(5)))
		}

		prev := pick(rng, pool)
		next := pick(rng, pool)
		for i, d := range next {
			if rng.IntN(4) == 0 {
				next[i] = doc(d.ID, float64(rng.IntN(5)))
				next[i].Fields["text"] = fmt.Sprintf("edit %d", round)
			}
		}

		changes := Diff(prev, next)
		got := Apply(prev, changes)
		require.Equal(t, ids(next), ids(got), "round %d", round)
		for i := range next {
			require.True(t, sameContent(next[i], got[i]), "round %d position %d", round, i)
		}

		removed, added := 0, 0
		for _, c := range changes {
			switch c.Kind {
			case Removed:
				removed++
			case Added:
				added++
			}
		}
		assert.Equal(t, len(prev)-survivors(prev, next), removed)
		assert.Equal(t, len(next)-survivors(prev, next), added)
	}
}

func pick(rng *rand.Rand, pool []*DocumentSnapshot) []*DocumentSnapshot {
	var out []*DocumentSnapshot
	for _, i := range rng.Perm(len(pool)) {
		if rng.IntN(3) > 0 {
			out = append(out, pool[i])
		}
	}
	return out
}

func survivors(prev, next []*DocumentSnapshot) int {
	in := make(map[string]bool)
	for _, d := range next {
		in[d.ID] = true
	}
	n := 0
	for _, d := range prev {
		if in[d.ID] {
			n++
		}
	}
	return n
}

func TestLongestIncreasing(t *testing.T) {
	assert.Nil(t, longestIncreasing(nil))
	assert.Equal(t, []int{0}, longestIncreasing([]int{5}))

	got := longestIncreasing([]int{2, 0, 1})
	assert.Equal(t, []int{1, 2}, got)

	xs := []int{3, 1, 4, 0, 5, 2, 6}
	got = longestIncreasing(xs)
	require.Len(t, got, 4)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1], got[i])
		assert.Less(t, xs[got[i-1]], xs[got[i]])
	}
}

func TestApplyPanicsOnBadIndex(t *testing.T) {
	assert.Panics(t, func() {
		Apply(nil, []DocumentChange{{Kind: Removed, OldIndex: 0, NewIndex: -1}})
	})
}
