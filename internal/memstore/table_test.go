package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StudySync/internal/apperr"
	"StudySync/internal/realtime"
)

type doc struct {
	ID    string `bson:"_id"`
	Owner string `bson:"owner"`
	Done  bool   `bson:"done"`
}

func newDocs(p realtime.Publisher) *Table[doc] {
	return NewTable("docs", func(d doc) string { return d.ID }, p)
}

func TestTable_CRUD(t *testing.T) {
	tbl := newDocs(nil)

	require.NoError(t, tbl.Insert(doc{ID: "a", Owner: "u1"}))
	require.NoError(t, tbl.Insert(doc{ID: "b", Owner: "u2"}))
	assert.ErrorIs(t, tbl.Insert(doc{ID: "a"}), apperr.ErrConflict)

	got, ok := tbl.Get("a")
	require.True(t, ok)
	assert.Equal(t, "u1", got.Owner)

	require.NoError(t, tbl.Put(doc{ID: "a", Owner: "u3"}))
	assert.ErrorIs(t, tbl.Put(doc{ID: "zz"}), apperr.ErrNotFound)

	assert.Equal(t, []doc{{ID: "a", Owner: "u3"}, {ID: "b", Owner: "u2"}}, tbl.Select(nil))

	require.NoError(t, tbl.Delete("a"))
	assert.ErrorIs(t, tbl.Delete("a"), apperr.ErrNotFound)
	assert.Equal(t, 1, tbl.Len())
}

func TestTable_InsertManyIsAllOrNothing(t *testing.T) {
	tbl := newDocs(nil)
	require.NoError(t, tbl.Insert(doc{ID: "a"}))

	err := tbl.InsertMany([]doc{{ID: "b"}, {ID: "a"}})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, 1, tbl.Len())

	err = tbl.InsertMany([]doc{{ID: "c"}, {ID: "c"}})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	require.NoError(t, tbl.InsertMany([]doc{{ID: "b"}, {ID: "c"}}))
	assert.Equal(t, 3, tbl.Len())
}

func TestTable_UpdateAndDeleteAll(t *testing.T) {
	tbl := newDocs(nil)
	require.NoError(t, tbl.InsertMany([]doc{{ID: "a", Owner: "u1"}, {ID: "b", Owner: "u1"}, {ID: "c", Owner: "u2"}}))

	n := tbl.Update(func(d doc) bool { return d.Owner == "u1" }, func(d *doc) { d.Done = true })
	assert.Equal(t, 2, n)
	done := tbl.Select(func(d doc) bool { return d.Done })
	assert.Len(t, done, 2)

	assert.Equal(t, 3, tbl.DeleteAll())
	assert.Empty(t, tbl.Select(nil))
}

func TestTable_Publishes(t *testing.T) {
	b := realtime.NewBroker()
	sub, err := b.Subscribe(context.Background(), "docs", realtime.Filter{})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	tbl := newDocs(b)
	require.NoError(t, tbl.Insert(doc{ID: "a"}))
	require.NoError(t, tbl.Put(doc{ID: "a", Done: true}))
	require.NoError(t, tbl.Delete("a"))

	var types []realtime.EventType
	for i := 0; i < 3; i++ {
		types = append(types, (<-sub.Events()).Type)
	}
	assert.Equal(t, []realtime.EventType{realtime.Insert, realtime.Update, realtime.Delete}, types)
}
