// server/store/store.go
package store

import (
	"context"
	"errors"

	"github.com/vinizap/memo/server/domain"
	"github.com/vinizap/memo/server/livequery"
)

// MemoCollection is the collection every memo lives in.
const MemoCollection = "memos"

var (
	ErrNotFound  = errors.New("memo not found")
	ErrDuplicate = errors.New("memo already exists")
	ErrInvalid   = errors.New("invalid memo data")
)

// MemoStore persists memos. List doubles as the live query fetcher, so it
// must return snapshots the caller may keep.
type MemoStore interface {
	Create(ctx context.Context, memo *domain.Memo) error
	Get(ctx context.Context, id string) (*domain.Memo, error)
	// Update writes text and priority and bumps UpdatedAt.
	Update(ctx context.Context, memo *domain.Memo) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q livequery.Query) ([]*livequery.DocumentSnapshot, error)
}

// Snapshot renders a memo as a live query document.
func Snapshot(m *domain.Memo) *livequery.DocumentSnapshot {
	return &livequery.DocumentSnapshot{
		ID:         m.ID,
		Fields:     m.Fields(),
		UpdateTime: m.UpdatedAt,
	}
}
