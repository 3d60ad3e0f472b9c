package timetable

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"StudySync/internal/apperr"
	"StudySync/internal/clock"
)

var t0 = time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)

// countingRepo wraps a repository, counts reads and can fail chosen steps.
type countingRepo struct {
	Repository
	reads         int
	failFind      error
	failDeleteAll error
	failInsert    error
	// insertedBeforeFailure is how many rows a failing InsertMany reports as written.
	insertedBeforeFailure int
}

func (r *countingRepo) FindAll(ctx context.Context) ([]Entry, error) {
	r.reads++
	if r.failFind != nil {
		return nil, r.failFind
	}
	return r.Repository.FindAll(ctx)
}

func (r *countingRepo) DeleteAll(ctx context.Context) error {
	if r.failDeleteAll != nil {
		return r.failDeleteAll
	}
	return r.Repository.DeleteAll(ctx)
}

func (r *countingRepo) InsertMany(ctx context.Context, entries []Entry) (int, error) {
	if r.failInsert != nil {
		return r.insertedBeforeFailure, r.failInsert
	}
	return r.Repository.InsertMany(ctx, entries)
}

func setup(t *testing.T, seed ...Entry) (*Controller, *countingRepo, *clock.Fake) {
	t.Helper()
	repo := &countingRepo{Repository: NewMemoryRepository(nil)}
	_, err := repo.Repository.InsertMany(context.Background(), seed)
	require.NoError(t, err)
	clk := clock.NewFake(t0)
	c := NewController(repo, NewCache(clk, DefaultCacheTTL), NewMemorySyncStore(), clk, apperr.NewValidator(), zap.NewNop())
	return c, repo, clk
}

func entry(id, day, subject, start, end string) Entry {
	return Entry{ID: id, Day: day, Subject: subject, StartTime: start, EndTime: end, Location: "Room 1", Professor: "Dr. Ada"}
}

func subjects(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Subject)
	}
	return out
}

func TestSortEntries(t *testing.T) {
	entries := []Entry{
		entry("1", "Friday", "Art", "08:00", "09:00"),
		entry("2", "monday", "Chemistry", "13:00", "14:00"),
		entry("3", "Monday", "Biology", "09:00", "10:00"),
		entry("4", "Sunday", "Drama", "07:00", "08:00"),
		entry("5", "Wednesday", "English", "10:00", "11:00"),
	}
	SortEntries(entries)
	assert.Equal(t, []string{"Biology", "Chemistry", "English", "Art", "Drama"}, subjects(entries))
}

func TestApplyFilter(t *testing.T) {
	entries := []Entry{
		entry("1", "Monday", "Mathematics", "09:00", "10:00"),
		entry("2", "Monday", "Applied Math", "11:00", "12:00"),
		entry("3", "Tuesday", "Mathematics", "09:00", "10:00"),
		entry("4", "Tuesday", "Physics", "09:00", "10:00"),
	}
	entries[3].ClassID = "PHY1"

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{name: "no filter", filter: Filter{}, want: []string{"Mathematics", "Applied Math", "Mathematics", "Physics"}},
		{name: "day is case-insensitive exact", filter: Filter{Day: "MONDAY"}, want: []string{"Mathematics", "Applied Math"}},
		{name: "day is not a substring match", filter: Filter{Day: "Mon"}, want: []string{}},
		{name: "subject substring", filter: Filter{Subject: "math"}, want: []string{"Mathematics", "Applied Math", "Mathematics"}},
		{name: "combined", filter: Filter{Day: "tuesday", Subject: "MATH"}, want: []string{"Mathematics"}},
		{name: "class grouping", filter: Filter{ClassID: "PHY1"}, want: []string{"Physics"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyFilter(entries, tt.filter)
			assert.Equal(t, tt.want, subjects(got))
			assert.Subset(t, entries, got)
			assert.Equal(t, got, ApplyFilter(got, tt.filter))
		})
	}
}

func TestPagination(t *testing.T) {
	entries := make([]Entry, 23)
	for i := range entries {
		entries[i] = entry(string(rune('a'+i)), "Monday", "S", "09:00", "10:00")
	}

	for _, size := range []int{1, 5, 10, 23, 50} {
		total := TotalPages(len(entries), size)
		assert.Equal(t, (len(entries)+size-1)/size, total)
		seen := 0
		for page := 1; page <= total; page++ {
			got := Paginate(entries, page, size)
			assert.LessOrEqual(t, len(got), size)
			seen += len(got)
		}
		assert.Equal(t, len(entries), seen)
	}

	assert.Equal(t, 1, TotalPages(0, 10))
	assert.Empty(t, Paginate(entries, 4, 10))
	assert.Equal(t, entries[20:], Paginate(entries, 3, 10))
}

func TestPager_ResetsPageOnFilter(t *testing.T) {
	entries := make([]Entry, 0, 25)
	for i := 0; i < 25; i++ {
		subject := "History"
		if i%5 == 0 {
			subject = "Physics"
		}
		entries = append(entries, entry(string(rune('a'+i)), "Monday", subject, "09:00", "10:00"))
	}

	p := NewPager(10)
	v := p.ApplyFilters(entries, Filter{})
	assert.Equal(t, 3, v.TotalPages)

	v = p.Paginate(3)
	assert.Equal(t, 3, v.Page)
	assert.Len(t, v.Entries, 5)

	v = p.ApplyFilters(entries, Filter{Subject: "physics"})
	assert.Equal(t, 1, v.Page)
	assert.Equal(t, 1, v.TotalPages)
	assert.Len(t, v.Entries, 5)

	p.Paginate(1)
	v = p.Reload(entries[:3])
	assert.Equal(t, 1, v.Page)
	assert.Equal(t, 1, v.Total)
}

func TestEntry_StorageFieldNames(t *testing.T) {
	e := entry("e1", "Monday", "Mathematics", "09:00", "10:30")
	raw, err := bson.Marshal(e)
	require.NoError(t, err)

	var stored bson.M
	require.NoError(t, bson.Unmarshal(raw, &stored))
	assert.Equal(t, "09:00", stored["start_time"])
	assert.Equal(t, "10:30", stored["end_time"])
	assert.NotContains(t, stored, "startTime")

	var back Entry
	require.NoError(t, bson.Unmarshal(raw, &back))
	assert.Equal(t, e, back)
}

func TestCache_States(t *testing.T) {
	clk := clock.NewFake(t0)
	c := NewCache(clk, 5*time.Minute)
	assert.Equal(t, CacheEmpty, c.State())

	c.Put([]Entry{entry("1", "Monday", "A", "09:00", "10:00")})
	assert.Equal(t, CacheValid, c.State())

	clk.Advance(4*time.Minute + 59*time.Second)
	_, ok := c.Get()
	assert.True(t, ok)

	clk.Advance(time.Second)
	assert.Equal(t, CacheStale, c.State())
	_, ok = c.Get()
	assert.False(t, ok)

	c.Put(nil)
	c.Invalidate()
	assert.Equal(t, CacheInvalidated, c.State())
}

func TestController_FetchUsesCacheWithinTTL(t *testing.T) {
	c, repo, clk := setup(t,
		entry("2", "Tuesday", "Physics", "09:00", "10:00"),
		entry("1", "Monday", "Mathematics", "09:00", "10:00"),
	)
	ctx := context.Background()

	got, err := c.Fetch(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mathematics", "Physics"}, subjects(got))

	_, err = c.Fetch(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.reads)

	_, err = c.Fetch(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.reads)

	clk.Advance(DefaultCacheTTL)
	_, err = c.Fetch(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 3, repo.reads)

	_, err = c.SyncToStudents(ctx)
	require.NoError(t, err)
	assert.Equal(t, CacheInvalidated, c.CacheState())
	_, err = c.Fetch(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 4, repo.reads)
}

func TestController_FetchFailureKeepsState(t *testing.T) {
	c, repo, _ := setup(t, entry("1", "Monday", "Mathematics", "09:00", "10:00"))
	ctx := context.Background()

	_, err := c.Fetch(ctx, false)
	require.NoError(t, err)

	repo.failFind = errors.New("timeout")
	_, err = c.Fetch(ctx, true)
	require.Error(t, err)
	assert.True(t, apperr.IsFetch(err))
	assert.Equal(t, err, c.Err())
	assert.Equal(t, []string{"Mathematics"}, subjects(c.Entries()))
}

func TestController_UploadReplace(t *testing.T) {
	c, repo, _ := setup(t, entry("old", "Monday", "Latin", "08:00", "09:00"))
	ctx := context.Background()
	_, err := c.Fetch(ctx, false)
	require.NoError(t, err)

	uploaded := []Entry{
		{Day: "wednesday", Subject: "Physics", StartTime: "10:00", EndTime: "11:00"},
		{Day: "Monday", Subject: "Mathematics", StartTime: "09:00", EndTime: "10:30"},
	}
	result := c.Upload(ctx, uploaded, true)
	require.True(t, result.OK(), "%+v", result)

	readsAfterUpload := repo.reads
	got, err := c.Fetch(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, readsAfterUpload, repo.reads)
	assert.Equal(t, []string{"Mathematics", "Physics"}, subjects(got))
	assert.Equal(t, "Wednesday", got[1].Day)
	for _, e := range got {
		assert.NotEmpty(t, e.ID)
	}
}

func TestController_UploadMerge(t *testing.T) {
	c, _, _ := setup(t, entry("old", "Monday", "Latin", "08:00", "09:00"))
	ctx := context.Background()

	result := c.Upload(ctx, []Entry{{Day: "Monday", Subject: "Greek", StartTime: "10:00", EndTime: "11:00"}}, false)
	require.True(t, result.OK())

	got, err := c.Fetch(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Latin", "Greek"}, subjects(got))
}

func TestController_UploadMergeOfFetchedRows(t *testing.T) {
	c, _, _ := setup(t,
		entry("a", "Monday", "Latin", "08:00", "09:00"),
		entry("b", "Tuesday", "Greek", "08:00", "09:00"),
	)
	ctx := context.Background()

	prior, err := c.Fetch(ctx, false)
	require.NoError(t, err)
	upload := append(append([]Entry{}, prior...), entry("", "Friday", "Art", "10:00", "11:00"))

	result := c.Upload(ctx, upload, false)
	require.True(t, result.OK(), "%+v", result)

	got, err := c.Fetch(ctx, false)
	require.NoError(t, err)
	assert.Len(t, got, 5)
	ids := map[string]bool{}
	for _, e := range got {
		ids[e.ID] = true
	}
	assert.Len(t, ids, 5)
	assert.True(t, ids["a"])
	assert.True(t, ids["b"])
}

func TestController_UploadReplaceIgnoresClientIDs(t *testing.T) {
	c, _, _ := setup(t, entry("old", "Monday", "Latin", "08:00", "09:00"))
	ctx := context.Background()

	upload := []Entry{
		entry("dup", "Monday", "Mathematics", "09:00", "10:00"),
		entry("dup", "Tuesday", "Physics", "09:00", "10:00"),
		entry("old", "Wednesday", "Chemistry", "09:00", "10:00"),
	}
	result := c.Upload(ctx, upload, true)
	require.True(t, result.OK(), "%+v", result)

	got, err := c.Fetch(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mathematics", "Physics", "Chemistry"}, subjects(got))
	for _, e := range got {
		assert.NotEqual(t, "dup", e.ID)
		assert.NotEqual(t, "old", e.ID)
	}
}

func TestController_UploadFailures(t *testing.T) {
	ctx := context.Background()
	newEntries := []Entry{{Day: "Monday", Subject: "Greek", StartTime: "10:00", EndTime: "11:00"}}

	t.Run("delete fails, nothing inserted", func(t *testing.T) {
		c, repo, _ := setup(t, entry("old", "Monday", "Latin", "08:00", "09:00"))
		repo.failDeleteAll = errors.New("denied")

		result := c.Upload(ctx, newEntries, true)
		assert.Equal(t, apperr.FailedBeforeMutation, result.Outcome)
		assert.Equal(t, "delete", result.FailedStep)

		repo.failDeleteAll = nil
		got, err := c.Fetch(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"Latin"}, subjects(got))
	})

	t.Run("insert fails after delete", func(t *testing.T) {
		c, repo, _ := setup(t, entry("old", "Monday", "Latin", "08:00", "09:00"))
		repo.failInsert = errors.New("quota")

		result := c.Upload(ctx, newEntries, true)
		assert.Equal(t, apperr.Partial, result.Outcome)
		assert.Equal(t, "insert", result.FailedStep)
		assert.True(t, apperr.IsWrite(result.Err))
	})

	t.Run("insert fails in merge mode", func(t *testing.T) {
		c, repo, _ := setup(t)
		repo.failInsert = errors.New("quota")

		result := c.Upload(ctx, newEntries, false)
		assert.Equal(t, apperr.FailedBeforeMutation, result.Outcome)
		assert.Equal(t, "insert", result.FailedStep)
	})

	t.Run("merge insert fails after some rows landed", func(t *testing.T) {
		c, repo, _ := setup(t)
		repo.failInsert = errors.New("duplicate key")
		repo.insertedBeforeFailure = 1

		two := append([]Entry{{Day: "Tuesday", Subject: "Latin", StartTime: "08:00", EndTime: "09:00"}}, newEntries...)
		result := c.Upload(ctx, two, false)
		assert.Equal(t, apperr.Partial, result.Outcome)
		assert.Equal(t, "insert", result.FailedStep)
	})

	t.Run("validation blocks every write", func(t *testing.T) {
		c, repo, _ := setup(t, entry("old", "Monday", "Latin", "08:00", "09:00"))
		bad := []Entry{
			{Day: "Monday", Subject: "Greek", StartTime: "10:00", EndTime: "11:00"},
			{Day: "Monday", Subject: "Backwards", StartTime: "12:00", EndTime: "11:00"},
		}
		result := c.Upload(ctx, bad, true)
		assert.Equal(t, apperr.FailedBeforeMutation, result.Outcome)
		assert.Equal(t, "validate", result.FailedStep)
		var verr *apperr.ValidationError
		require.True(t, errors.As(result.Err, &verr))
		assert.Equal(t, "entries[1].endTime", verr.Fields[0].Field)
		assert.Equal(t, 0, repo.reads)

		got, err := c.Fetch(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"Latin"}, subjects(got))
	})
}

func TestController_EntryCRUD(t *testing.T) {
	c, _, _ := setup(t)
	ctx := context.Background()

	created, err := c.Create(ctx, Entry{Day: "friday", Subject: " Art ", StartTime: "14:00", EndTime: "15:00"})
	require.NoError(t, err)
	assert.Equal(t, "Friday", created.Day)
	assert.Equal(t, "Art", created.Subject)

	_, err = c.Create(ctx, Entry{Day: "Friday", Subject: "Art", StartTime: "14:00", EndTime: "14:00"})
	var verr *apperr.ValidationError
	assert.True(t, errors.As(err, &verr))

	created.Location = "Studio"
	updated, err := c.Update(ctx, created.ID, created)
	require.NoError(t, err)
	assert.Equal(t, "Studio", updated.Location)

	_, err = c.Update(ctx, "missing", created)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, c.Delete(ctx, created.ID))
	assert.ErrorIs(t, c.Delete(ctx, created.ID), apperr.ErrNotFound)
}

func TestBoltSyncStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	db, err := bbolt.Open(path, 0600, nil)
	require.NoError(t, err)

	store, err := NewBoltSyncStore(db)
	require.NoError(t, err)
	ctx := context.Background()

	got, err := store.LastSync(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	at := time.Date(2024, 9, 2, 10, 15, 0, 123, time.UTC)
	require.NoError(t, store.SaveLastSync(ctx, at))
	require.NoError(t, db.Close())

	db, err = bbolt.Open(path, 0600, nil)
	require.NoError(t, err)
	defer db.Close()
	store, err = NewBoltSyncStore(db)
	require.NoError(t, err)
	got, err = store.LastSync(ctx)
	require.NoError(t, err)
	assert.True(t, at.Equal(got))
}
