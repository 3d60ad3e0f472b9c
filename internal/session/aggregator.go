package session

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"

	"StudySync/internal/auth"
	"StudySync/internal/task"
	"StudySync/internal/timetable"
)

// TaskSource fetches the task list of one user.
type TaskSource interface {
	List(ctx context.Context, userID string) ([]task.Task, error)
}

// Aggregator holds the tasks of the signed-in user next to a paged view of the shared
// timetable. Timetable change events only mark the view stale; the next ReloadIfStale
// reads the store once for the whole burst.
type Aggregator struct {
	tasks     TaskSource
	timetable *timetable.Controller
	pager     *timetable.Pager
	stale     atomic.Bool

	mu       sync.RWMutex
	userID   string
	taskList []task.Task
	taskErr  error
}

func NewAggregator(tasks TaskSource, tt *timetable.Controller, pageSize int) *Aggregator {
	return &Aggregator{
		tasks:     tasks,
		timetable: tt,
		pager:     timetable.NewPager(pageSize),
		taskList:  []task.Task{},
	}
}

// SetUser re-fetches tasks and timetable when the identity changes. A nil user clears the
// task list; the same user again is a no-op.
func (a *Aggregator) SetUser(ctx context.Context, user *auth.User) error {
	id := ""
	if user != nil {
		id = user.ID
	}
	a.mu.Lock()
	if id == a.userID {
		a.mu.Unlock()
		return nil
	}
	a.userID = id
	a.taskList = []task.Task{}
	a.taskErr = nil
	a.mu.Unlock()

	if id == "" {
		return nil
	}
	return multierr.Combine(a.RefreshTasks(ctx), a.loadTimetable(ctx, false))
}

// UserID is the current identity, empty when signed out.
func (a *Aggregator) UserID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.userID
}

// Tasks is the last fetched task list.
func (a *Aggregator) Tasks() []task.Task {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]task.Task, len(a.taskList))
	copy(out, a.taskList)
	return out
}

// TasksErr is the error of the last task fetch.
func (a *Aggregator) TasksErr() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.taskErr
}

// RefreshTasks replaces the task list with what the store returns for the current user.
// On failure the previous list stays.
func (a *Aggregator) RefreshTasks(ctx context.Context) error {
	uid := a.UserID()
	if uid == "" {
		return nil
	}
	tasks, err := a.tasks.List(ctx, uid)

	a.mu.Lock()
	defer a.mu.Unlock()
	if uid != a.userID {
		// signed out or switched while the fetch was in flight
		return nil
	}
	a.taskErr = err
	if err != nil {
		return err
	}
	a.taskList = tasks
	return nil
}

func (a *Aggregator) loadTimetable(ctx context.Context, force bool) error {
	entries, err := a.timetable.Fetch(ctx, force)
	if err != nil {
		return err
	}
	a.pager.Reload(entries)
	return nil
}

// Timetable is the current timetable page.
func (a *Aggregator) Timetable() timetable.View {
	return a.pager.View()
}

// Entries is the full, unfiltered timetable.
func (a *Aggregator) Entries() []timetable.Entry {
	return a.timetable.Entries()
}

// RefreshTimetable bypasses the cache and re-applies the current filter.
func (a *Aggregator) RefreshTimetable(ctx context.Context) error {
	a.stale.Store(false)
	if err := a.loadTimetable(ctx, true); err != nil {
		a.stale.Store(true)
		return err
	}
	return nil
}

// MarkTimetableStale drops the timetable cache on the first change of a burst.
// Further changes before the next reload are absorbed.
func (a *Aggregator) MarkTimetableStale() {
	if a.stale.CompareAndSwap(false, true) {
		a.timetable.Invalidate()
	}
}

// ReloadIfStale reloads the timetable view when a change was seen since the last reload.
func (a *Aggregator) ReloadIfStale(ctx context.Context) error {
	if !a.stale.CompareAndSwap(true, false) {
		return nil
	}
	if err := a.loadTimetable(ctx, false); err != nil {
		a.stale.Store(true)
		return err
	}
	return nil
}

// FilterTimetable narrows the view and returns to page 1.
func (a *Aggregator) FilterTimetable(f timetable.Filter) timetable.View {
	return a.pager.ApplyFilters(a.timetable.Entries(), f)
}

// Page moves the timetable view.
func (a *Aggregator) Page(page int) timetable.View {
	return a.pager.Paginate(page)
}
