// server/livequery/engine.go
package livequery

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vinizap/memo/server/metrics"
)

const defaultFetchTimeout = 10 * time.Second

// Fetcher runs a query to completion and returns the ordered result list.
type Fetcher interface {
	List(ctx context.Context, q Query) ([]*DocumentSnapshot, error)
}

// Registration is the handle of an open live query.
type Registration interface {
	// Remove stops delivery to the handler. It is safe to call more than once.
	Remove()
}

// Engine turns a Fetcher into live queries: every registration re-runs its
// query when Notify is called and delivers the difference to its handler.
type Engine struct {
	fetcher      Fetcher
	log          zerolog.Logger
	fetchTimeout time.Duration

	mu     sync.Mutex
	regs   map[*registration]struct{}
	closed bool
	wg     sync.WaitGroup
}

type EngineOption func(*Engine)

func WithFetchTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.fetchTimeout = d }
}

func NewEngine(fetcher Fetcher, log zerolog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		fetcher:      fetcher,
		log:          log.With().Str("component", "livequery").Logger(),
		fetchTimeout: defaultFetchTimeout,
		regs:         make(map[*registration]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Listen opens a live query. The handler is called from a goroutine owned
// by the registration, one batch at a time. The first batch lists every
// current result as Added.
func (e *Engine) Listen(q Query, h Handler) Registration {
	ctx, cancel := context.WithCancel(context.Background())
	r := &registration{
		engine: e,
		query:  q,
		h:      h,
		signal: make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}
	r.signal <- struct{}{}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		cancel()
		return r
	}
	e.regs[r] = struct{}{}
	e.wg.Add(1)
	e.mu.Unlock()

	metrics.LiveQueries.Inc()
	e.log.Debug().Str("query", q.Key()).Msg("live query opened")

	go r.run()
	return r
}

// Notify asks every open registration to re-evaluate its query. Signals
// coalesce: a registration that is busy runs once more afterwards.
func (e *Engine) Notify() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for r := range e.regs {
		select {
		case r.signal <- struct{}{}:
		default:
		}
	}
}

// Len reports the number of open registrations.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.regs)
}

// Close removes every registration and waits for their goroutines to exit.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	regs := make([]*registration, 0, len(e.regs))
	for r := range e.regs {
		regs = append(regs, r)
	}
	e.mu.Unlock()

	for _, r := range regs {
		r.Remove()
	}
	e.wg.Wait()
}

type registration struct {
	engine *Engine
	query  Query
	h      Handler
	signal chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	last      []*DocumentSnapshot
	delivered bool
}

func (r *registration) Remove() {
	r.once.Do(func() {
		r.cancel()
		e := r.engine
		e.mu.Lock()
		_, open := e.regs[r]
		delete(e.regs, r)
		e.mu.Unlock()
		if open {
			metrics.LiveQueries.Dec()
			e.log.Debug().Str("query", r.query.Key()).Msg("live query closed")
		}
	})
}

func (r *registration) run() {
	defer r.engine.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.signal:
			r.refresh()
		}
	}
}

func (r *registration) refresh() {
	e := r.engine

	docs, err := r.fetch()
	if r.ctx.Err() != nil {
		return
	}
	if err != nil {
		metrics.Batches.WithLabelValues("error").Inc()
		e.log.Warn().Err(err).Str("query", r.query.Key()).Msg("live query fetch failed")
		r.h(nil, err)
		return
	}

	changes := Diff(r.last, docs)
	if len(changes) == 0 && r.delivered {
		return
	}
	r.last = docs
	r.delivered = true

	for _, c := range changes {
		metrics.Changes.WithLabelValues(c.Kind.String()).Inc()
	}
	metrics.Batches.WithLabelValues("ok").Inc()

	r.h(&QuerySnapshot{
		Query:     r.query,
		Changes:   changes,
		Documents: docs,
		ReadTime:  time.Now(),
	}, nil)
}

func (r *registration) fetch() ([]*DocumentSnapshot, error) {
	if err := r.query.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(r.ctx, r.engine.fetchTimeout)
	defer cancel()
	return r.engine.fetcher.List(ctx, r.query)
}
