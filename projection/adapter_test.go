package projection

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vinizap/memo/server/livequery"
)

type fakeRegistration struct {
	removed int
}

func (r *fakeRegistration) Remove() { r.removed++ }

// fakeSource hands out registrations and keeps each handler so tests can
// deliver batches by hand.
type fakeSource struct {
	queries  []livequery.Query
	handlers []livequery.Handler
	regs     []*fakeRegistration
}

func (s *fakeSource) Listen(q livequery.Query, h livequery.Handler) livequery.Registration {
	r := &fakeRegistration{}
	s.queries = append(s.queries, q)
	s.handlers = append(s.handlers, h)
	s.regs = append(s.regs, r)
	return r
}

func (s *fakeSource) deliver(i int, changes ...livequery.DocumentChange) {
	s.handlers[i](&livequery.QuerySnapshot{Changes: changes}, nil)
}

func (s *fakeSource) last() int { return len(s.handlers) - 1 }

type recorder struct {
	events []string
}

func (r *recorder) ItemInserted(pos int, doc *livequery.DocumentSnapshot) {
	r.events = append(r.events, fmt.Sprintf("inserted(%d)", pos))
}

func (r *recorder) ItemChanged(pos int, doc *livequery.DocumentSnapshot) {
	r.events = append(r.events, fmt.Sprintf("changed(%d)", pos))
}

func (r *recorder) ItemMoved(from, to int, doc *livequery.DocumentSnapshot) {
	r.events = append(r.events, fmt.Sprintf("moved(%d,%d)", from, to))
}

func (r *recorder) ItemRemoved(pos int) {
	r.events = append(r.events, fmt.Sprintf("removed(%d)", pos))
}

func (r *recorder) DataSetChanged(reason string) {
	r.events = append(r.events, "dataset_changed("+reason+")")
}

func (r *recorder) BatchComplete(count int) {
	r.events = append(r.events, fmt.Sprintf("batch_complete(%d)", count))
}

func (r *recorder) reset() { r.events = nil }

func memoDoc(id, text string, priority float64) *livequery.DocumentSnapshot {
	return &livequery.DocumentSnapshot{ID: id, Fields: map[string]any{"text": text, "priority": priority}}
}

func added(d *livequery.DocumentSnapshot, at int) livequery.DocumentChange {
	return livequery.DocumentChange{Kind: livequery.Added, Doc: d, OldIndex: -1, NewIndex: at}
}

func modified(d *livequery.DocumentSnapshot, from, to int) livequery.DocumentChange {
	return livequery.DocumentChange{Kind: livequery.Modified, Doc: d, OldIndex: from, NewIndex: to}
}

func removed(d *livequery.DocumentSnapshot, at int) livequery.DocumentChange {
	return livequery.DocumentChange{Kind: livequery.Removed, Doc: d, OldIndex: at, NewIndex: -1}
}

func listIDs(a *Adapter) []string {
	var out []string
	for _, d := range a.Snapshots() {
		out = append(out, d.ID)
	}
	return out
}

var memos = livequery.Collection("memos")

// newABC returns a listening adapter mirroring [a, b, c] with the recorder
// cleared.
func newABC(t *testing.T) (*Adapter, *fakeSource, *recorder) {
	t.Helper()
	src := &fakeSource{}
	rec := &recorder{}
	a := NewAdapter(src, memos, rec)
	a.StartListening()
	src.deliver(0,
		added(memoDoc("a", "a", 1), 0),
		added(memoDoc("b", "b", 2), 1),
		added(memoDoc("c", "c", 3), 2),
	)
	require.Equal(t, []string{"a", "b", "c"}, listIDs(a))
	rec.reset()
	return a, src, rec
}

func TestAddToEmptyList(t *testing.T) {
	src := &fakeSource{}
	rec := &recorder{}
	a := NewAdapter(src, memos, rec)
	a.StartListening()

	src.deliver(0, added(memoDoc("a", "a", 1), 0))

	assert.Equal(t, []string{"a"}, listIDs(a))
	assert.Equal(t, 1, a.Count())
	assert.Equal(t, "a", a.Snapshot(0).Fields["text"])
	assert.Equal(t, []string{"inserted(0)", "batch_complete(1)"}, rec.events)
}

func TestModifyInPlace(t *testing.T) {
	a, src, rec := newABC(t)

	b2 := memoDoc("b", "b edited", 2)
	src.deliver(0, modified(b2, 1, 1))

	assert.Equal(t, []string{"a", "b", "c"}, listIDs(a))
	assert.Same(t, b2, a.Snapshot(1))
	assert.Equal(t, []string{"changed(1)", "batch_complete(3)"}, rec.events)
}

func TestModifyWithMove(t *testing.T) {
	a, src, rec := newABC(t)

	src.deliver(0, modified(memoDoc("a", "a", 4), 0, 2))

	assert.Equal(t, []string{"b", "c", "a"}, listIDs(a))
	assert.Equal(t, []string{"moved(0,2)", "batch_complete(3)"}, rec.events)
}

func TestRemove(t *testing.T) {
	a, src, rec := newABC(t)

	src.deliver(0, removed(memoDoc("b", "b", 2), 1))

	assert.Equal(t, []string{"a", "c"}, listIDs(a))
	assert.Equal(t, []string{"removed(1)", "batch_complete(2)"}, rec.events)
}

func TestDataChangedHookRunsOncePerBatch(t *testing.T) {
	src := &fakeSource{}
	calls := 0
	a := NewAdapter(src, memos, nil, WithDataChangedHook(func() { calls++ }))
	a.StartListening()

	src.deliver(0, added(memoDoc("a", "a", 1), 0), added(memoDoc("b", "b", 1), 1))
	src.deliver(0, removed(memoDoc("a", "a", 1), 0))

	assert.Equal(t, 2, calls)
}

func TestErrorDiscardsBatch(t *testing.T) {
	src := &fakeSource{}
	rec := &recorder{}
	var got error
	dataChanged := 0
	a := NewAdapter(src, memos, rec,
		WithErrorHook(func(err error) { got = err }),
		WithDataChangedHook(func() { dataChanged++ }),
	)
	a.StartListening()

	boom := errors.New("permission denied")
	src.handlers[0](&livequery.QuerySnapshot{Changes: []livequery.DocumentChange{added(memoDoc("a", "a", 1), 0)}}, boom)

	assert.ErrorIs(t, got, boom)
	assert.Equal(t, 0, a.Count())
	assert.Empty(t, rec.events)
	assert.Equal(t, 0, dataChanged)
	assert.True(t, a.Listening(), "an error does not close the subscription")
}

func TestStartListeningIsIdempotent(t *testing.T) {
	src := &fakeSource{}
	a := NewAdapter(src, memos, nil)

	a.StartListening()
	a.StartListening()

	assert.Len(t, src.handlers, 1)
	assert.True(t, a.Listening())
}

func TestStopListeningTwice(t *testing.T) {
	a, src, rec := newABC(t)

	a.StopListening()
	assert.Equal(t, 0, a.Count())
	assert.False(t, a.Listening())
	assert.Equal(t, 1, src.regs[0].removed)

	a.StopListening()
	assert.Equal(t, 0, a.Count())
	assert.Equal(t, 1, src.regs[0].removed)
	assert.Equal(t, []string{"dataset_changed(stopped)", "dataset_changed(stopped)"}, rec.events)
}

func TestBatchAfterStopIsDropped(t *testing.T) {
	a, src, rec := newABC(t)
	a.StopListening()
	rec.reset()

	src.deliver(0, added(memoDoc("d", "d", 1), 0))

	assert.Equal(t, 0, a.Count())
	assert.Empty(t, rec.events)
}

func TestSetQueryRejectsStaleBatches(t *testing.T) {
	a, src, rec := newABC(t)

	byText := memos.OrderByField("text", false)
	a.SetQuery(byText)

	require.Len(t, src.handlers, 2)
	assert.Equal(t, 1, src.regs[0].removed)
	assert.Equal(t, byText, src.queries[1])
	assert.Equal(t, byText, a.Query())
	assert.Equal(t, 0, a.Count())
	assert.Equal(t, []string{"dataset_changed(query_changed)"}, rec.events)

	src.deliver(0, added(memoDoc("z", "z", 1), 0))
	assert.Equal(t, 0, a.Count(), "batch for the previous query must not apply")

	src.deliver(src.last(), added(memoDoc("x", "x", 1), 0))
	assert.Equal(t, []string{"x"}, listIDs(a))
}

func TestRestartAfterStopGetsFreshSubscription(t *testing.T) {
	a, src, _ := newABC(t)
	a.StopListening()
	a.StartListening()

	require.Len(t, src.handlers, 2)
	src.deliver(1, added(memoDoc("a", "a", 1), 0))
	assert.Equal(t, []string{"a"}, listIDs(a))
}

func TestOutOfRangeIndexPanics(t *testing.T) {
	_, src, _ := newABC(t)

	assert.Panics(t, func() { src.deliver(0, removed(memoDoc("q", "q", 1), 3)) })
	assert.Panics(t, func() { src.deliver(0, added(memoDoc("q", "q", 1), 5)) })
	assert.Panics(t, func() { src.deliver(0, modified(memoDoc("a", "a", 1), 0, 3)) })
}

func TestMirrorMatchesDiffReplay(t *testing.T) {
	src := &fakeSource{}
	a := NewAdapter(src, memos, nil)
	a.StartListening()

	states := [][]*livequery.DocumentSnapshot{
		{memoDoc("a", "a", 1), memoDoc("b", "b", 2)},
		{memoDoc("c", "c", 0), memoDoc("a", "a", 1), memoDoc("b", "b", 2)},
		{memoDoc("a", "a", 1), memoDoc("b", "b", 2), memoDoc("c", "c", 3)},
		{memoDoc("b", "b edited", 2), memoDoc("c", "c", 3)},
		{},
		{memoDoc("d", "d", 5)},
	}

	var prev []*livequery.DocumentSnapshot
	for _, next := range states {
		src.deliver(0, livequery.Diff(prev, next)...)
		want := make([]string, 0, len(next))
		for _, d := range next {
			want = append(want, d.ID)
		}
		got := listIDs(a)
		if got == nil {
			got = []string{}
		}
		assert.Equal(t, want, got)
		prev = next
	}
}
