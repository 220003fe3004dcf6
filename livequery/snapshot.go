// server/livequery/snapshot.go
package livequery

import (
	"maps"
	"reflect"
	"time"
)

// DocumentSnapshot is an immutable view of one stored document.
type DocumentSnapshot struct {
	ID         string
	Fields     map[string]any
	UpdateTime time.Time
}

func (d *DocumentSnapshot) DocumentID() string { return d.ID }

func (d *DocumentSnapshot) Field(name string) (any, bool) {
	v, ok := d.Fields[name]
	return v, ok
}

func (d *DocumentSnapshot) Clone() *DocumentSnapshot {
	return &DocumentSnapshot{ID: d.ID, Fields: maps.Clone(d.Fields), UpdateTime: d.UpdateTime}
}

func sameContent(a, b *DocumentSnapshot) bool {
	return a.UpdateTime.Equal(b.UpdateTime) && reflect.DeepEqual(a.Fields, b.Fields)
}

type ChangeKind int

const (
	Added ChangeKind = iota
	Modified
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// DocumentChange is one step from the previous result list to the next.
// Indices are relative to the list immediately before this change is
// applied; a Modified change with OldIndex != NewIndex means "remove at
// OldIndex, then insert at NewIndex". OldIndex is -1 for Added and NewIndex
// is -1 for Removed.
type DocumentChange struct {
	Kind     ChangeKind
	Doc      *DocumentSnapshot
	OldIndex int
	NewIndex int
}

// QuerySnapshot is one delivered batch: the ordered changes plus the full
// result list they lead to.
type QuerySnapshot struct {
	Query     Query
	Changes   []DocumentChange
	Documents []*DocumentSnapshot
	ReadTime  time.Time
}

func (s *QuerySnapshot) Size() int { return len(s.Documents) }

// Handler receives either a snapshot or an error, never both.
type Handler func(snap *QuerySnapshot, err error)
