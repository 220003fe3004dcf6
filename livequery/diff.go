// server/livequery/diff.go
package livequery

import "slices"

// Diff returns the ordered changes that turn prev into next. Replaying the
// changes in order against a copy of prev yields next exactly.
//
// Removed documents are emitted first. Every edited survivor then costs one
// Modified change whether it moves or not, so the unedited survivors that
// already sit in the right relative order (a longest increasing run of their
// new ranks) stay put and emit nothing. Everything else is re-placed with a
// single change, so re-ranking one memo produces a single move.
func Diff(prev, next []*DocumentSnapshot) []DocumentChange {
	rank := make(map[string]int, len(next))
	for i, d := range next {
		rank[d.ID] = i
	}

	var changes []DocumentChange
	work := make([]*DocumentSnapshot, 0, len(prev))
	for _, d := range prev {
		if _, ok := rank[d.ID]; !ok {
			changes = append(changes, DocumentChange{Kind: Removed, Doc: d, OldIndex: len(work), NewIndex: -1})
			continue
		}
		work = append(work, d)
	}

	var unedited []*DocumentSnapshot
	var ranks []int
	for _, d := range work {
		r := rank[d.ID]
		if sameContent(d, next[r]) {
			unedited = append(unedited, d)
			ranks = append(ranks, r)
		}
	}
	settled := make(map[string]bool, len(next))
	for _, i := range longestIncreasing(ranks) {
		settled[unedited[i].ID] = true
	}

	for r, d := range next {
		if settled[d.ID] {
			continue
		}
		j := slices.IndexFunc(work, func(w *DocumentSnapshot) bool { return w.ID == d.ID })

		if j < 0 {
			t := insertionPoint(work, settled, rank, r)
			work = slices.Insert(work, t, d)
			settled[d.ID] = true
			changes = append(changes, DocumentChange{Kind: Added, Doc: d, OldIndex: -1, NewIndex: t})
			continue
		}

		old := work[j]
		work = slices.Delete(work, j, j+1)
		t := insertionPoint(work, settled, rank, r)
		work = slices.Insert(work, t, d)
		settled[d.ID] = true
		if t != j || !sameContent(old, d) {
			changes = append(changes, DocumentChange{Kind: Modified, Doc: d, OldIndex: j, NewIndex: t})
		}
	}

	return changes
}

// insertionPoint is the slot right after the last settled document ranked
// before r. Settled documents are always in rank order inside work.
func insertionPoint(work []*DocumentSnapshot, settled map[string]bool, rank map[string]int, r int) int {
	t := 0
	for i, w := range work {
		if settled[w.ID] && rank[w.ID] < r {
			t = i + 1
		}
	}
	return t
}

// longestIncreasing returns the indices of one longest strictly increasing
// subsequence of xs.
func longestIncreasing(xs []int) []int {
	if len(xs) == 0 {
		return nil
	}
	tails := make([]int, 0, len(xs)) // index into xs of the smallest tail per length
	prev := make([]int, len(xs))
	for i, x := range xs {
		k, _ := slices.BinarySearchFunc(tails, x, func(ti, target int) int {
			switch {
			case xs[ti] < target:
				return -1
			case xs[ti] > target:
				return 1
			}
			return 0
		})
		if k > 0 {
			prev[i] = tails[k-1]
		} else {
			prev[i] = -1
		}
		if k == len(tails) {
			tails = append(tails, i)
		} else {
			tails[k] = i
		}
	}

	out := make([]int, len(tails))
	for i, k := len(tails)-1, tails[len(tails)-1]; i >= 0; i, k = i-1, prev[k] {
		out[i] = k
	}
	return out
}

// Apply replays changes against list and returns the result. It panics on
// an index outside the list, which means the changes were not produced for
// this list.
func Apply(list []*DocumentSnapshot, changes []DocumentChange) []*DocumentSnapshot {
	out := slices.Clone(list)
	for _, c := range changes {
		switch c.Kind {
		case Added:
			out = slices.Insert(out, c.NewIndex, c.Doc)
		case Modified:
			if c.OldIndex == c.NewIndex {
				out[c.OldIndex] = c.Doc
				continue
			}
			out = slices.Delete(out, c.OldIndex, c.OldIndex+1)
			out = slices.Insert(out, c.NewIndex, c.Doc)
		case Removed:
			out = slices.Delete(out, c.OldIndex, c.OldIndex+1)
		}
	}
	return out
}
