// server/memo/query.go
package memo

import (
	"fmt"

	"github.com/vinizap/memo/server/domain"
	"github.com/vinizap/memo/server/livequery"
	"github.com/vinizap/memo/server/store"
)

// ListOptions is the client-facing shape of a memo list query.
type ListOptions struct {
	Order       string   `json:"order"`
	Dir         string   `json:"dir"`
	MinPriority *float64 `json:"min_priority,omitempty"`
	Limit       int      `json:"limit"`
}

var orderFields = map[string]string{
	"":           domain.FieldPriority,
	"priority":   domain.FieldPriority,
	"text":       domain.FieldText,
	"created_at": domain.FieldCreatedAt,
	"updated_at": domain.FieldUpdatedAt,
}

// DefaultQuery lists every memo, highest priority first.
func DefaultQuery() livequery.Query {
	return livequery.Collection(store.MemoCollection).OrderByField(domain.FieldPriority, true)
}

// Query turns the options into a live query. Priority orders descending
// unless dir says otherwise; every other field orders ascending.
func (o ListOptions) Query() (livequery.Query, error) {
	field, ok := orderFields[o.Order]
	if !ok {
		return livequery.Query{}, fmt.Errorf("%w: unknown order %q", livequery.ErrInvalidQuery, o.Order)
	}

	desc := field == domain.FieldPriority
	switch o.Dir {
	case "":
	case "asc":
		desc = false
	case "desc":
		desc = true
	default:
		return livequery.Query{}, fmt.Errorf("%w: unknown direction %q", livequery.ErrInvalidQuery, o.Dir)
	}

	q := livequery.Collection(store.MemoCollection)
	if o.MinPriority != nil {
		q = q.Where(domain.FieldPriority, livequery.OpGreaterEqual, *o.MinPriority)
	}
	q = q.OrderByField(field, desc).WithLimit(o.Limit)
	return q, q.Validate()
}
