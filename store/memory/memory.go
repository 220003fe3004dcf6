// server/store/memory/memory.go
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vinizap/memo/server/domain"
	"github.com/vinizap/memo/server/livequery"
	"github.com/vinizap/memo/server/store"
)

// Store keeps memos in process memory. It backs dev mode and tests.
type Store struct {
	mu    sync.RWMutex
	memos map[string]domain.Memo
	now   func() time.Time
}

var _ store.MemoStore = (*Store)(nil)

func New() *Store {
	return &Store{
		memos: make(map[string]domain.Memo),
		now:   time.Now,
	}
}

func (s *Store) Create(ctx context.Context, memo *domain.Memo) error {
	if memo.ID == "" {
		return fmt.Errorf("%w: empty id", store.ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memos[memo.ID]; ok {
		return fmt.Errorf("%w: %s", store.ErrDuplicate, memo.ID)
	}
	now := s.now().UTC()
	if memo.CreatedAt.IsZero() {
		memo.CreatedAt = now
	}
	memo.UpdatedAt = now
	s.memos[memo.ID] = *memo
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.Memo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memos[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return &m, nil
}

func (s *Store) Update(ctx context.Context, memo *domain.Memo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memos[memo.ID]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrNotFound, memo.ID)
	}
	m.Text = memo.Text
	m.Priority = memo.Priority
	m.UpdatedAt = s.now().UTC()
	s.memos[memo.ID] = m
	*memo = m
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memos[id]; !ok {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	delete(s.memos, id)
	return nil
}

func (s *Store) List(ctx context.Context, q livequery.Query) ([]*livequery.DocumentSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.Collection != store.MemoCollection {
		return nil, fmt.Errorf("%w: unknown collection %q", livequery.ErrInvalidQuery, q.Collection)
	}
	s.mu.RLock()
	docs := make([]*livequery.DocumentSnapshot, 0, len(s.memos))
	for _, m := range s.memos {
		docs = append(docs, store.Snapshot(&m))
	}
	s.mu.RUnlock()
	return livequery.Evaluate(q, docs), nil
}
