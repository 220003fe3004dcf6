// server/domain/memo.go
package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MinPriority   = 0.0
	MaxPriority   = 5.0
	MaxTextLength = 1000
)

// Document field names shared by the store, the live query layer and the
// websocket payloads.
const (
	FieldText      = "text"
	FieldPriority  = "priority"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

var (
	ErrInvalidMemo = errors.New("invalid memo")
	ErrDecode      = errors.New("cannot decode memo")
	ErrNoIdentity  = errors.New("memo has no id")
)

type Memo struct {
	ID        string    `json:"id" yaml:"id,omitempty"`
	Text      string    `json:"text" yaml:"text"`
	Priority  float64   `json:"priority" yaml:"priority"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at,omitempty"`
}

func (m *Memo) Validate() error {
	if strings.TrimSpace(m.Text) == "" {
		return fmt.Errorf("%w: text is required", ErrInvalidMemo)
	}
	if utf8.RuneCountInString(m.Text) > MaxTextLength {
		return fmt.Errorf("%w: text longer than %d characters", ErrInvalidMemo, MaxTextLength)
	}
	if math.IsNaN(m.Priority) || m.Priority < MinPriority || m.Priority > MaxPriority {
		return fmt.Errorf("%w: priority %v outside [%v, %v]", ErrInvalidMemo, m.Priority, MinPriority, MaxPriority)
	}
	return nil
}

// Fields renders the memo as a document field map.
func (m *Memo) Fields() map[string]any {
	return map[string]any{
		FieldText:      m.Text,
		FieldPriority:  m.Priority,
		FieldCreatedAt: m.CreatedAt,
		FieldUpdatedAt: m.UpdatedAt,
	}
}

// Document is the read side of a stored record: an identity plus its fields.
type Document interface {
	DocumentID() string
	Field(name string) (any, bool)
}

// DecodeMemo converts a stored document into a Memo. Missing or mistyped
// text/priority fields yield ErrDecode; timestamps are optional.
func DecodeMemo(doc Document) (*Memo, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrDecode)
	}

	memo := &Memo{ID: doc.DocumentID()}

	raw, ok := doc.Field(FieldText)
	if !ok {
		return nil, fmt.Errorf("%w %s: missing field %q", ErrDecode, memo.ID, FieldText)
	}
	text, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("%w %s: field %q is %T", ErrDecode, memo.ID, FieldText, raw)
	}
	memo.Text = text

	raw, ok = doc.Field(FieldPriority)
	if !ok {
		return nil, fmt.Errorf("%w %s: missing field %q", ErrDecode, memo.ID, FieldPriority)
	}
	switch p := raw.(type) {
	case float64:
		memo.Priority = p
	case float32:
		memo.Priority = float64(p)
	case int:
		memo.Priority = float64(p)
	case int32:
		memo.Priority = float64(p)
	case int64:
		memo.Priority = float64(p)
	default:
		return nil, fmt.Errorf("%w %s: field %q is %T", ErrDecode, memo.ID, FieldPriority, raw)
	}

	if t, ok := doc.Field(FieldCreatedAt); ok {
		memo.CreatedAt, _ = t.(time.Time)
	}
	if t, ok := doc.Field(FieldUpdatedAt); ok {
		memo.UpdatedAt, _ = t.(time.Time)
	}

	return memo, nil
}
