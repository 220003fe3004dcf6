// server/livequery/query.go
package livequery

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

type Op string

const (
	OpEqual        Op = "=="
	OpNotEqual     Op = "!="
	OpLess         Op = "<"
	OpLessEqual    Op = "<="
	OpGreater      Op = ">"
	OpGreaterEqual Op = ">="
)

var ErrInvalidQuery = errors.New("invalid query")

type Filter struct {
	Field string
	Op    Op
	Value any
}

type Order struct {
	Field string
	Desc  bool
}

// Query describes an ordered view over one collection. Results are always
// tie-broken by document ID ascending so the order is total.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    []Order
	Limit      int
}

func Collection(name string) Query {
	return Query{Collection: name}
}

func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(slices.Clone(q.Filters), Filter{Field: field, Op: op, Value: value})
	return q
}

func (q Query) OrderByField(field string, desc bool) Query {
	q.OrderBy = append(slices.Clone(q.OrderBy), Order{Field: field, Desc: desc})
	return q
}

func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

func (q Query) Validate() error {
	if q.Collection == "" {
		return fmt.Errorf("%w: collection is required", ErrInvalidQuery)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrInvalidQuery, q.Limit)
	}
	for _, f := range q.Filters {
		if f.Field == "" {
			return fmt.Errorf("%w: filter without field", ErrInvalidQuery)
		}
		switch f.Op {
		case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		default:
			return fmt.Errorf("%w: unknown operator %q", ErrInvalidQuery, f.Op)
		}
	}
	for _, o := range q.OrderBy {
		if o.Field == "" {
			return fmt.Errorf("%w: order without field", ErrInvalidQuery)
		}
	}
	return nil
}

// Key is a stable textual identity of the query, used for logging and metrics.
func (q Query) Key() string {
	var b strings.Builder
	b.WriteString(q.Collection)
	for _, f := range q.Filters {
		fmt.Fprintf(&b, "|where %s %s %v", f.Field, f.Op, f.Value)
	}
	for _, o := range q.OrderBy {
		dir := "asc"
		if o.Desc {
			dir = "desc"
		}
		fmt.Fprintf(&b, "|order %s %s", o.Field, dir)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, "|limit %d", q.Limit)
	}
	return b.String()
}

// Evaluate filters, orders and limits docs in memory. The input slice is not
// modified.
func Evaluate(q Query, docs []*DocumentSnapshot) []*DocumentSnapshot {
	out := make([]*DocumentSnapshot, 0, len(docs))
	for _, d := range docs {
		if matches(q.Filters, d) {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b *DocumentSnapshot) int {
		return q.Compare(a, b)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// Compare orders two documents under q. Missing fields sort first.
func (q Query) Compare(a, b *DocumentSnapshot) int {
	for _, o := range q.OrderBy {
		av, aok := a.Fields[o.Field]
		bv, bok := b.Fields[o.Field]
		var c int
		switch {
		case !aok && !bok:
			c = 0
		case !aok:
			c = -1
		case !bok:
			c = 1
		default:
			c = compareValues(av, bv)
		}
		if o.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return cmp.Compare(a.ID, b.ID)
}

func matches(filters []Filter, d *DocumentSnapshot) bool {
	for _, f := range filters {
		v, ok := d.Fields[f.Field]
		if !ok {
			return false
		}
		c := compareValues(v, f.Value)
		var pass bool
		switch f.Op {
		case OpEqual:
			pass = c == 0
		case OpNotEqual:
			pass = c != 0
		case OpLess:
			pass = c < 0
		case OpLessEqual:
			pass = c <= 0
		case OpGreater:
			pass = c > 0
		case OpGreaterEqual:
			pass = c >= 0
		}
		if !pass {
			return false
		}
	}
	return true
}

// compareValues orders field values. Numbers compare numerically across int
// and float kinds; values of different kinds order by kind rank.
func compareValues(a, b any) int {
	ar, br := rank(a), rank(b)
	if ar != br {
		return cmp.Compare(ar, br)
	}
	switch av := a.(type) {
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case string:
		return cmp.Compare(av, b.(string))
	case time.Time:
		return av.Compare(b.(time.Time))
	}
	if af, ok := toFloat(a); ok {
		bf, _ := toFloat(b)
		return cmp.Compare(af, bf)
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int, int32, int64, float32, float64:
		return 2
	case time.Time:
		return 3
	case string:
		return 4
	default:
		return 5
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
