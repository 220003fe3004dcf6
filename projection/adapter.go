// server/projection/adapter.go
package projection

import (
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"
	"github.com/vinizap/memo/server/livequery"
	"github.com/vinizap/memo/server/metrics"
)

// Reasons passed to Observer.DataSetChanged.
const (
	ReasonStopped      = "stopped"
	ReasonQueryChanged = "query_changed"
)

// Source opens live queries. Listen must not call the handler before it
// returns.
type Source interface {
	Listen(q livequery.Query, h livequery.Handler) livequery.Registration
}

// Adapter mirrors the result list of one live query and turns each change
// batch into single-item list events on its Observer.
type Adapter struct {
	mu sync.Mutex

	source   Source
	query    livequery.Query
	observer Observer
	log      zerolog.Logger

	onError       func(error)
	onDataChanged func()

	reg       livequery.Registration
	gen       uint64
	snapshots []*livequery.DocumentSnapshot
}

type Option func(*Adapter)

// WithErrorHook replaces the default error hook, which logs the error.
func WithErrorHook(fn func(error)) Option {
	return func(a *Adapter) { a.onError = fn }
}

// WithDataChangedHook runs fn once after every applied batch.
func WithDataChangedHook(fn func()) Option {
	return func(a *Adapter) { a.onDataChanged = fn }
}

func WithLogger(log zerolog.Logger) Option {
	return func(a *Adapter) { a.log = log }
}

func NewAdapter(source Source, q livequery.Query, observer Observer, opts ...Option) *Adapter {
	if observer == nil {
		observer = NopObserver{}
	}
	a := &Adapter{
		source:   source,
		query:    q,
		observer: observer,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.With().Str("component", "projection").Logger()
	if a.onError == nil {
		a.onError = func(err error) {
			a.log.Warn().Err(err).Str("query", a.query.Key()).Msg("live query error")
		}
	}
	if a.onDataChanged == nil {
		a.onDataChanged = func() {}
	}
	return a
}

// StartListening opens the subscription. It does nothing when already
// listening.
func (a *Adapter) StartListening() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.startLocked()
}

// StopListening closes the subscription, clears the mirrored list and
// invalidates the observer's view. Calling it while idle only repeats the
// invalidation.
func (a *Adapter) StopListening() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked(ReasonStopped)
}

// SetQuery replaces the query: stop, rebind, start. Batches still in flight
// for the old query are dropped.
func (a *Adapter) SetQuery(q livequery.Query) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked(ReasonQueryChanged)
	a.query = q
	a.startLocked()
}

func (a *Adapter) Listening() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reg != nil
}

func (a *Adapter) Query() livequery.Query {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.query
}

func (a *Adapter) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.snapshots)
}

// Snapshot returns the record at position i.
func (a *Adapter) Snapshot(i int) *livequery.DocumentSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshots[i]
}

// Snapshots returns a copy of the mirrored list.
func (a *Adapter) Snapshots() []*livequery.DocumentSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.snapshots)
}

func (a *Adapter) startLocked() {
	if a.reg != nil {
		return
	}
	a.gen++
	gen := a.gen
	a.reg = a.source.Listen(a.query, func(snap *livequery.QuerySnapshot, err error) {
		a.onEvent(gen, snap, err)
	})
}

func (a *Adapter) stopLocked(reason string) {
	if a.reg != nil {
		a.reg.Remove()
		a.reg = nil
	}
	a.gen++
	a.snapshots = nil
	metrics.ProjectorEvents.WithLabelValues("dataset_changed").Inc()
	a.observer.DataSetChanged(reason)
}

func (a *Adapter) onEvent(gen uint64, snap *livequery.QuerySnapshot, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.gen || a.reg == nil {
		metrics.StaleBatches.Inc()
		a.log.Debug().Uint64("generation", gen).Msg("dropping batch for stale subscription")
		return
	}
	if err != nil {
		a.onError(err)
		return
	}
	if snap == nil {
		return
	}

	for _, c := range snap.Changes {
		switch c.Kind {
		case livequery.Added:
			a.added(c)
		case livequery.Modified:
			a.modified(c)
		case livequery.Removed:
			a.removed(c)
		}
	}

	a.observer.BatchComplete(len(a.snapshots))
	a.onDataChanged()
}

func (a *Adapter) added(c livequery.DocumentChange) {
	a.checkIndex(c, c.NewIndex, len(a.snapshots))
	a.snapshots = slices.Insert(a.snapshots, c.NewIndex, c.Doc)
	metrics.ProjectorEvents.WithLabelValues("inserted").Inc()
	a.observer.ItemInserted(c.NewIndex, c.Doc)
}

func (a *Adapter) modified(c livequery.DocumentChange) {
	a.checkIndex(c, c.OldIndex, len(a.snapshots)-1)
	if c.OldIndex == c.NewIndex {
		a.snapshots[c.OldIndex] = c.Doc
		metrics.ProjectorEvents.WithLabelValues("changed").Inc()
		a.observer.ItemChanged(c.OldIndex, c.Doc)
		return
	}
	a.snapshots = slices.Delete(a.snapshots, c.OldIndex, c.OldIndex+1)
	a.checkIndex(c, c.NewIndex, len(a.snapshots))
	a.snapshots = slices.Insert(a.snapshots, c.NewIndex, c.Doc)
	metrics.ProjectorEvents.WithLabelValues("moved").Inc()
	a.observer.ItemMoved(c.OldIndex, c.NewIndex, c.Doc)
}

func (a *Adapter) removed(c livequery.DocumentChange) {
	a.checkIndex(c, c.OldIndex, len(a.snapshots)-1)
	a.snapshots = slices.Delete(a.snapshots, c.OldIndex, c.OldIndex+1)
	metrics.ProjectorEvents.WithLabelValues("removed").Inc()
	a.observer.ItemRemoved(c.OldIndex)
}

// checkIndex panics when the transport sent an index outside [0, hi]; the
// mirrored list can no longer be trusted after that.
func (a *Adapter) checkIndex(c livequery.DocumentChange, i, hi int) {
	if i < 0 || i > hi {
		panic(fmt.Sprintf("projection: %s change for %q has index %d outside [0, %d]", c.Kind, docID(c.Doc), i, hi))
	}
}

func docID(d *livequery.DocumentSnapshot) string {
	if d == nil {
		return ""
	}
	return d.ID
}
