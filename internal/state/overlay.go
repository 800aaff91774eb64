package state

import (
	"errors"
	"sort"
)

// ErrClosed is returned when an overlay is used after Commit or Discard.
var ErrClosed = errors.New("state: overlay already closed")

type rowKey struct {
	scope string
	key   string
}

// Overlay buffers writes against a Table for the duration of one action.
type Overlay[V any] struct {
	base   *Table[V]
	writes map[rowKey]V
	closed bool
}

// NewOverlay opens an overlay on t.
func NewOverlay[V any](t *Table[V]) *Overlay[V] {
	return &Overlay[V]{base: t, writes: make(map[rowKey]V)}
}

// Get returns the buffered row if one was written, else the committed row.
func (o *Overlay[V]) Get(scope, key string) (V, bool) {
	if v, ok := o.writes[rowKey{scope, key}]; ok {
		return v, true
	}
	return o.base.Get(scope, key)
}

// Put buffers a write.
func (o *Overlay[V]) Put(scope, key string, v V) {
	o.writes[rowKey{scope, key}] = v
}

// Ascend iterates scope in key order, merging buffered writes over committed rows.
func (o *Overlay[V]) Ascend(scope string, fn func(key string, v V) bool) {
	var pending []string
	for rk := range o.writes {
		if rk.scope == scope {
			pending = append(pending, rk.key)
		}
	}
	if len(pending) == 0 {
		o.base.Ascend(scope, fn)
		return
	}
	sort.Strings(pending)

	var keys []string
	o.base.Ascend(scope, func(key string, _ V) bool {
		keys = append(keys, key)
		return true
	})
	keys = mergeSorted(keys, pending)

	for _, key := range keys {
		v, _ := o.Get(scope, key)
		if !fn(key, v) {
			return
		}
	}
}

// Dirty reports whether any write is buffered.
func (o *Overlay[V]) Dirty() bool {
	return len(o.writes) > 0
}

// Changes returns the buffered rows in (scope, key) order.
func (o *Overlay[V]) Changes() []Row[V] {
	out := make([]Row[V], 0, len(o.writes))
	for rk, v := range o.writes {
		out = append(out, Row[V]{Scope: rk.scope, Key: rk.key, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Scope != out[j].Scope {
			return out[i].Scope < out[j].Scope
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Commit applies the buffered rows to the table and returns them.
func (o *Overlay[V]) Commit() ([]Row[V], error) {
	if o.closed {
		return nil, ErrClosed
	}
	changes := o.Changes()
	for _, row := range changes {
		o.base.Put(row.Scope, row.Key, row.Value)
	}
	o.closed = true
	o.writes = nil
	return changes, nil
}

// Discard drops all buffered rows.
func (o *Overlay[V]) Discard() {
	o.closed = true
	o.writes = nil
}

// mergeSorted merges two sorted string slices, dropping duplicates.
func mergeSorted(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
