// server/projection/observer.go
package projection

import "github.com/vinizap/memo/server/livequery"

// Observer receives the list mutations raised while a batch is applied.
// Positions follow the same rules as livequery.DocumentChange: each event is
// relative to the list as it was right before that event.
//
// Callbacks run while the adapter is locked; an observer must not call back
// into the adapter that notifies it.
type Observer interface {
	ItemInserted(position int, doc *livequery.DocumentSnapshot)
	ItemChanged(position int, doc *livequery.DocumentSnapshot)
	ItemMoved(from, to int, doc *livequery.DocumentSnapshot)
	ItemRemoved(position int)
	// DataSetChanged invalidates the whole list.
	DataSetChanged(reason string)
	// BatchComplete follows the last event of a batch; count is the new
	// list length.
	BatchComplete(count int)
}

// NopObserver ignores every event. Embed it to implement only some methods.
type NopObserver struct{}

func (NopObserver) ItemInserted(int, *livequery.DocumentSnapshot) {}
func (NopObserver) ItemChanged(int, *livequery.DocumentSnapshot) {}
func (NopObserver) ItemMoved(int, int, *livequery.DocumentSnapshot) {}
func (NopObserver) ItemRemoved(int) {}
func (NopObserver) DataSetChanged(string) {}
func (NopObserver) BatchComplete(int) {}
