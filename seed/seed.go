// server/seed/seed.go
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/vinizap/memo/server/domain"
	"github.com/vinizap/memo/server/store"
	"gopkg.in/yaml.v3"
)

// File is the YAML layout of a memo seed or export file.
type File struct {
	Memos []domain.Memo `yaml:"memos"`
}

// Importer stores a memo under its own ID, or a fresh one when it has none.
type Importer interface {
	Import(ctx context.Context, m *domain.Memo) error
}

// Read parses a seed file. Entries that fail validation are skipped and
// reported in the second return value.
func Read(r io.Reader) ([]domain.Memo, []error, error) {
	var f File
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to parse seed: %w", err)
	}

	var memos []domain.Memo
	var skipped []error
	for i, m := range f.Memos {
		if err := m.Validate(); err != nil {
			skipped = append(skipped, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		memos = append(memos, m)
	}
	return memos, skipped, nil
}

// Write encodes memos as a seed file. Timestamps are left out; they are
// reassigned on import.
func Write(w io.Writer, memos []domain.Memo) error {
	out := make([]domain.Memo, len(memos))
	for i, m := range memos {
		out[i] = domain.Memo{ID: m.ID, Text: m.Text, Priority: m.Priority}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(File{Memos: out}); err != nil {
		return fmt.Errorf("failed to encode memos: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// LoadFile imports every memo in path. Memos whose ID already exists are
// left alone, so loading the same file twice is harmless.
func LoadFile(ctx context.Context, path string, imp Importer, log zerolog.Logger) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	memos, skipped, err := Read(f)
	if err != nil {
		return 0, err
	}
	for _, e := range skipped {
		log.Warn().Err(e).Str("path", path).Msg("skipping invalid seed memo")
	}

	loaded := 0
	for i := range memos {
		err := imp.Import(ctx, &memos[i])
		switch {
		case errors.Is(err, store.ErrDuplicate):
			continue
		case err != nil:
			return loaded, fmt.Errorf("import %s: %w", memos[i].ID, err)
		}
		loaded++
	}
	log.Info().Str("path", path).Int("loaded", loaded).Msg("seed memos loaded")
	return loaded, nil
}
