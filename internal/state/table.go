package state

import (
	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
)

// Row is one entry of a table together with its location.
type Row[V any] struct {
	Scope string
	Key   string
	Value V
}

// Table is an ordered, scope-partitioned map of rows.
//
// Table is not safe for concurrent use; the engine's single writer owns it.
type Table[V any] struct {
	name   string
	scopes *treemap.Map // scope -> *treemap.Map(key -> V)
	rows   int
}

// NewTable creates an empty table.
func NewTable[V any](name string) *Table[V] {
	return &Table[V]{
		name:   name,
		scopes: treemap.NewWith(utils.StringComparator),
	}
}

// Name returns the table name used in logs and persistence.
func (t *Table[V]) Name() string {
	return t.name
}

// Len returns the number of rows across all scopes.
func (t *Table[V]) Len() int {
	return t.rows
}

// Get performs a point lookup.
func (t *Table[V]) Get(scope, key string) (V, bool) {
	var zero V
	inner, ok := t.scope(scope)
	if !ok {
		return zero, false
	}
	v, found := inner.Get(key)
	if !found {
		return zero, false
	}
	return v.(V), true
}

// Put inserts or replaces a row.
func (t *Table[V]) Put(scope, key string, v V) {
	inner, ok := t.scope(scope)
	if !ok {
		inner = treemap.NewWith(utils.StringComparator)
		t.scopes.Put(scope, inner)
	}
	if _, found := inner.Get(key); !found {
		t.rows++
	}
	inner.Put(key, v)
}

// Ascend calls fn for each row of scope in key order until fn returns false.
func (t *Table[V]) Ascend(scope string, fn func(key string, v V) bool) {
	inner, ok := t.scope(scope)
	if !ok {
		return
	}
	it := inner.Iterator()
	for it.Next() {
		if !fn(it.Key().(string), it.Value().(V)) {
			return
		}
	}
}

// Walk calls fn for every row in (scope, key) order until fn returns false.
func (t *Table[V]) Walk(fn func(row Row[V]) bool) {
	outer := t.scopes.Iterator()
	for outer.Next() {
		scope := outer.Key().(string)
		inner := outer.Value().(*treemap.Map).Iterator()
		for inner.Next() {
			row := Row[V]{Scope: scope, Key: inner.Key().(string), Value: inner.Value().(V)}
			if !fn(row) {
				return
			}
		}
	}
}

// Rows returns every row in (scope, key) order.
func (t *Table[V]) Rows() []Row[V] {
	out := make([]Row[V], 0, t.rows)
	t.Walk(func(row Row[V]) bool {
		out = append(out, row)
		return true
	})
	return out
}

func (t *Table[V]) scope(scope string) (*treemap.Map, bool) {
	v, ok := t.scopes.Get(scope)
	if !ok {
		return nil, false
	}
	return v.(*treemap.Map), true
}
