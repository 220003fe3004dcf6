// server/memo/service.go
package memo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vinizap/memo/server/domain"
	"github.com/vinizap/memo/server/livequery"
	"github.com/vinizap/memo/server/store"
)

// Notifier is told after every successful write so live queries re-run.
type Notifier interface {
	Notify()
}

type Service struct {
	store    store.MemoStore
	notifier Notifier
	log      zerolog.Logger
	newID    func() string
}

func NewService(s store.MemoStore, n Notifier, log zerolog.Logger) *Service {
	return &Service{
		store:    s,
		notifier: n,
		log:      log.With().Str("component", "memo_service").Logger(),
		newID:    func() string { return uuid.NewString() },
	}
}

// Add stores a new memo under a fresh ID.
func (s *Service) Add(ctx context.Context, text string, priority float64) (*domain.Memo, error) {
	m := &domain.Memo{ID: s.newID(), Text: text, Priority: priority}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, m); err != nil {
		s.log.Error().Err(err).Msg("failed to add memo")
		return nil, fmt.Errorf("add memo: %w", err)
	}
	s.log.Info().Str("memo_id", m.ID).Float64("priority", m.Priority).Msg("memo added")
	s.notifier.Notify()
	return m, nil
}

// Import stores m as given, assigning an ID only when it has none.
func (s *Service) Import(ctx context.Context, m *domain.Memo) error {
	if m.ID == "" {
		m.ID = s.newID()
	}
	if err := m.Validate(); err != nil {
		return err
	}
	if err := s.store.Create(ctx, m); err != nil {
		return err
	}
	s.notifier.Notify()
	return nil
}

// Update writes a memo's text and priority. A memo that was never stored has
// no ID and cannot be updated.
func (s *Service) Update(ctx context.Context, m *domain.Memo) error {
	if m.ID == "" {
		s.log.Error().Msg("memo id not available for update")
		return domain.ErrNoIdentity
	}
	if err := m.Validate(); err != nil {
		return err
	}
	if err := s.store.Update(ctx, m); err != nil {
		s.log.Warn().Err(err).Str("memo_id", m.ID).Msg("error updating memo")
		return fmt.Errorf("update memo %s: %w", m.ID, err)
	}
	s.log.Debug().Str("memo_id", m.ID).Msg("memo updated")
	s.notifier.Notify()
	return nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		s.log.Error().Msg("memo id not available for delete")
		return domain.ErrNoIdentity
	}
	if err := s.store.Delete(ctx, id); err != nil {
		s.log.Error().Err(err).Str("memo_id", id).Msg("memo deletion failed")
		return fmt.Errorf("delete memo %s: %w", id, err)
	}
	s.notifier.Notify()
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Memo, error) {
	if id == "" {
		return nil, domain.ErrNoIdentity
	}
	return s.store.Get(ctx, id)
}

// List runs q once. Documents that do not decode are skipped.
func (s *Service) List(ctx context.Context, q livequery.Query) ([]*domain.Memo, error) {
	docs, err := s.store.List(ctx, q)
	if err != nil {
		return nil, err
	}
	memos := make([]*domain.Memo, 0, len(docs))
	for _, d := range docs {
		m, err := domain.DecodeMemo(d)
		if err != nil {
			s.log.Warn().Err(err).Msg("skipping memo")
			continue
		}
		memos = append(memos, m)
	}
	return memos, nil
}
