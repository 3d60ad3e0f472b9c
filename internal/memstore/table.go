// Package memstore keeps documents in process memory. It backs every repository when the
// service runs with STORE_DRIVER=memory and in package tests.
package memstore

import (
	"sync"

	"StudySync/internal/apperr"
	"StudySync/internal/realtime"
)

// Table is an insertion-ordered set of documents keyed by id.
type Table[T any] struct {
	mu        sync.RWMutex
	name      string
	rows      map[string]T
	order     []string
	id        func(T) string
	publisher realtime.Publisher
}

// NewTable creates a table. publisher may be nil.
func NewTable[T any](name string, id func(T) string, publisher realtime.Publisher) *Table[T] {
	return &Table[T]{
		name:      name,
		rows:      make(map[string]T),
		id:        id,
		publisher: publisher,
	}
}

func (t *Table[T]) publish(typ realtime.EventType, newDoc, oldDoc interface{}) {
	if t.publisher != nil {
		t.publisher.Publish(t.name, typ, newDoc, oldDoc)
	}
}

// Insert adds v. An existing id is a conflict.
func (t *Table[T]) Insert(v T) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := t.id(v)
	if _, ok := t.rows[key]; ok {
		return apperr.ErrConflict
	}
	t.rows[key] = v
	t.order = append(t.order, key)
	t.publish(realtime.Insert, v, nil)
	return nil
}

// InsertMany adds every value or none of them.
func (t *Table[T]) InsertMany(vs []T) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	seen := make(map[string]bool, len(vs))
	for _, v := range vs {
		key := t.id(v)
		if _, ok := t.rows[key]; ok || seen[key] {
			return apperr.ErrConflict
		}
		seen[key] = true
	}
	for _, v := range vs {
		key := t.id(v)
		t.rows[key] = v
		t.order = append(t.order, key)
		t.publish(realtime.Insert, v, nil)
	}
	return nil
}

// Get returns the document with id.
func (t *Table[T]) Get(id string) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.rows[id]
	return v, ok
}

// Put replaces an existing document.
func (t *Table[T]) Put(v T) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := t.id(v)
	old, ok := t.rows[key]
	if !ok {
		return apperr.ErrNotFound
	}
	t.rows[key] = v
	t.publish(realtime.Update, v, old)
	return nil
}

// Delete removes the document with id.
func (t *Table[T]) Delete(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	old, ok := t.rows[id]
	if !ok {
		return apperr.ErrNotFound
	}
	delete(t.rows, id)
	for i, key := range t.order {
		if key == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	t.publish(realtime.Delete, nil, old)
	return nil
}

// DeleteAll empties the table and returns how many documents were removed.
func (t *Table[T]) DeleteAll() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.order)
	for _, key := range t.order {
		t.publish(realtime.Delete, nil, t.rows[key])
	}
	t.rows = make(map[string]T)
	t.order = nil
	return n
}

// Select returns the documents accepted by keep in insertion order. A nil keep selects all.
func (t *Table[T]) Select(keep func(T) bool) []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]T, 0, len(t.order))
	for _, key := range t.order {
		v := t.rows[key]
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// Update applies mutate to every document accepted by keep and returns the count.
func (t *Table[T]) Update(keep func(T) bool, mutate func(*T)) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, key := range t.order {
		old := t.rows[key]
		if !keep(old) {
			continue
		}
		v := old
		mutate(&v)
		t.rows[key] = v
		t.publish(realtime.Update, v, old)
		n++
	}
	return n
}

// Len is the number of stored documents.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}
