package timetable

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"StudySync/internal/apperr"
	"StudySync/internal/clock"
)

// Controller owns the authoritative in-memory timetable, its TTL cache and every write path.
type Controller struct {
	repo      Repository
	cache     *Cache
	syncStore SyncStore
	clock     clock.Clock
	validator *apperr.Validator
	logger    *zap.Logger

	// uploadMu serializes uploads so two replace uploads cannot interleave delete and insert.
	uploadMu sync.Mutex

	mu      sync.RWMutex
	entries []Entry
	lastErr error
}

// NewController creates a Controller.
func NewController(repo Repository, cache *Cache, syncStore SyncStore, clk clock.Clock, v *apperr.Validator, logger *zap.Logger) *Controller {
	return &Controller{
		repo:      repo,
		cache:     cache,
		syncStore: syncStore,
		clock:     clk,
		validator: v,
		logger:    logger,
	}
}

// Fetch returns the sorted timetable, served from the cache unless force is set or the
// snapshot is no longer valid. On failure the previous in-memory list is kept.
func (c *Controller) Fetch(ctx context.Context, force bool) ([]Entry, error) {
	if !force {
		if entries, ok := c.cache.Get(); ok {
			c.setEntries(entries, nil)
			return entries, nil
		}
	}

	entries, err := c.repo.FindAll(ctx)
	if err != nil {
		err = apperr.Fetch("timetable", err)
		c.logger.Error("Failed to fetch timetable", zap.Error(err))
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		return nil, err
	}
	SortEntries(entries)
	c.cache.Put(entries)
	c.setEntries(entries, nil)
	return entries, nil
}

func (c *Controller) setEntries(entries []Entry, err error) {
	c.mu.Lock()
	c.entries = entries
	c.lastErr = err
	c.mu.Unlock()
}

// Entries is the last successfully fetched timetable.
func (c *Controller) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Err is the error of the most recent fetch, nil when it succeeded.
func (c *Controller) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// CacheState exposes the cache lifecycle position.
func (c *Controller) CacheState() CacheState {
	return c.cache.State()
}

// Invalidate drops the cached snapshot so the next Fetch reads the store.
func (c *Controller) Invalidate() {
	c.cache.Invalidate()
}

// Query fetches and returns one filtered page without touching any session view state.
func (c *Controller) Query(ctx context.Context, force bool, f Filter, page, pageSize int) (View, error) {
	entries, err := c.Fetch(ctx, force)
	if err != nil {
		return View{}, err
	}
	return BuildView(entries, f, page, pageSize), nil
}

// Upload writes entries either alongside the existing ones or, with replace, instead of them.
// In replace mode a failed delete stops before the insert so the upload never degrades into a merge.
func (c *Controller) Upload(ctx context.Context, entries []Entry, replace bool) apperr.WriteResult {
	c.uploadMu.Lock()
	defer c.uploadMu.Unlock()

	prepared := make([]Entry, len(entries))
	var fields []apperr.FieldError
	for i, e := range entries {
		if err := c.prepare(&e); err != nil {
			fields = append(fields, indexedFields(i, err)...)
		}
		// Client ids are never trusted: a re-upload of fetched rows must not collide.
		e.ID = uuid.NewString()
		prepared[i] = e
	}
	if len(fields) > 0 {
		return apperr.FailedBefore("validate", &apperr.ValidationError{Fields: fields})
	}

	if replace {
		if err := c.repo.DeleteAll(ctx); err != nil {
			c.logger.Error("Timetable replace aborted: delete failed", zap.Error(err))
			c.cache.Invalidate()
			return apperr.FailedBefore("delete", err)
		}
	}
	if inserted, err := c.repo.InsertMany(ctx, prepared); err != nil {
		c.logger.Error("Timetable upload insert failed",
			zap.Bool("replace", replace), zap.Int("inserted", inserted), zap.Int("entries", len(prepared)), zap.Error(err))
		c.cache.Invalidate()
		if replace || inserted > 0 {
			return apperr.PartialFailure("insert", err)
		}
		return apperr.FailedBefore("insert", err)
	}

	c.cache.Invalidate()
	if _, err := c.Fetch(ctx, true); err != nil {
		c.logger.Warn("Timetable refresh after upload failed", zap.Error(err))
	}
	c.logger.Info("Timetable uploaded", zap.Int("entries", len(prepared)), zap.Bool("replace", replace))
	return apperr.Success()
}

// SyncToStudents records the sync time and invalidates the cache so the next read is live.
func (c *Controller) SyncToStudents(ctx context.Context) (time.Time, error) {
	now := c.clock.Now()
	c.cache.Invalidate()
	if err := c.syncStore.SaveLastSync(ctx, now); err != nil {
		err = apperr.Write("timetable sync", err)
		c.logger.Error("Failed to record timetable sync", zap.Error(err))
		return time.Time{}, err
	}
	c.logger.Info("Timetable synced to students", zap.Time("at", now))
	return now, nil
}

// LastSync is the time of the last recorded sync, zero when none.
func (c *Controller) LastSync(ctx context.Context) (time.Time, error) {
	t, err := c.syncStore.LastSync(ctx)
	return t, apperr.Fetch("timetable sync", err)
}

// Create validates and stores a single entry.
func (c *Controller) Create(ctx context.Context, e Entry) (Entry, error) {
	if err := c.prepare(&e); err != nil {
		return Entry{}, err
	}
	e.ID = uuid.NewString()
	if err := c.repo.Insert(ctx, &e); err != nil {
		return Entry{}, apperr.Write("timetable entry", err)
	}
	c.cache.Invalidate()
	return e, nil
}

// Update replaces the entry with id.
func (c *Controller) Update(ctx context.Context, id string, e Entry) (Entry, error) {
	if err := c.prepare(&e); err != nil {
		return Entry{}, err
	}
	e.ID = id
	if err := c.repo.Update(ctx, &e); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Entry{}, err
		}
		return Entry{}, apperr.Write("timetable entry", err)
	}
	c.cache.Invalidate()
	return e, nil
}

// Delete removes the entry with id.
func (c *Controller) Delete(ctx context.Context, id string) error {
	if err := c.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		return apperr.Write("timetable entry", err)
	}
	c.cache.Invalidate()
	return nil
}

// prepare trims and canonicalizes e, then validates it.
func (c *Controller) prepare(e *Entry) error {
	e.Day = canonicalDay(strings.TrimSpace(e.Day))
	e.Subject = strings.TrimSpace(e.Subject)
	e.StartTime = strings.TrimSpace(e.StartTime)
	e.EndTime = strings.TrimSpace(e.EndTime)
	e.Location = strings.TrimSpace(e.Location)
	e.Professor = strings.TrimSpace(e.Professor)
	e.ClassID = strings.TrimSpace(e.ClassID)

	if err := c.validator.Validate(e); err != nil {
		return err
	}
	if e.EndTime <= e.StartTime {
		return apperr.NewValidationError("endTime", "endTime must be after startTime")
	}
	return nil
}

func indexedFields(i int, err error) []apperr.FieldError {
	var verr *apperr.ValidationError
	if !errors.As(err, &verr) {
		return []apperr.FieldError{{Field: fmt.Sprintf("entries[%d]", i), Error: err.Error()}}
	}
	out := make([]apperr.FieldError, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		out = append(out, apperr.FieldError{Field: fmt.Sprintf("entries[%d].%s", i, f.Field), Error: f.Error})
	}
	return out
}
