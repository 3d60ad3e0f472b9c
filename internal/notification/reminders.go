package notification

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"StudySync/internal/clock"
	"StudySync/internal/task"
	"StudySync/internal/timetable"
)

const (
	startingSoonWindow = 5 * time.Minute
	endedWindow        = 2 * time.Minute

	kindReminder = "reminder"
	kindSoon     = "soon"
	kindEnded    = "ended"
	kindTaskDue  = "due"
)

// Reminders derives notifications from the timetable, tasks and the wall clock.
// Every pass is best-effort: a failed write is logged and the rest of the pass continues.
type Reminders struct {
	notes  *NotificationService
	ledger Ledger
	clock  clock.Clock
	logger *zap.Logger
}

// NewReminders creates Reminders. A nil ledger disables de-duplication, so every pass
// inside a window creates another notification.
func NewReminders(notes *NotificationService, ledger Ledger, clk clock.Clock, logger *zap.Logger) *Reminders {
	return &Reminders{notes: notes, ledger: ledger, clock: clk, logger: logger}
}

func (r *Reminders) settings(ctx context.Context, userID string) Settings {
	st, err := r.notes.GetSettings(ctx, userID)
	if err != nil {
		r.logger.Warn("Using default notification settings", zap.String("user", userID), zap.Error(err))
		return DefaultSettings(userID)
	}
	return *st
}

// claim reports whether the occurrence still needs a notification. The returned release
// gives the occurrence back when the notification could not be written.
func (r *Reminders) claim(ctx context.Context, userID, relatedID, kind string, day time.Time) (func(), bool) {
	if r.ledger == nil {
		return func() {}, true
	}
	key := OccurrenceKey(userID, relatedID, kind, day)
	ok, err := r.ledger.Claim(ctx, key)
	if err != nil {
		r.logger.Warn("Notification ledger unavailable", zap.String("user", userID), zap.Error(err))
		return func() {}, true
	}
	release := func() {
		if err := r.ledger.Release(ctx, key); err != nil {
			r.logger.Warn("Failed to release notification claim", zap.String("user", userID), zap.String("key", key), zap.Error(err))
		}
	}
	return release, ok
}

func todays(entries []timetable.Entry, now time.Time) []timetable.Entry {
	day := now.Weekday().String()
	out := make([]timetable.Entry, 0, len(entries))
	for _, e := range entries {
		if strings.EqualFold(e.Day, day) {
			out = append(out, e)
		}
	}
	return out
}

// at places an HH:MM clock time on the calendar day of now.
func at(now time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid time %q", hhmm)
	}
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location()), nil
}

// ScheduleClassReminders creates, for each of today's classes, a reminder scheduled
// reminder_time_minutes before the start. Reminders whose time already passed are skipped.
func (r *Reminders) ScheduleClassReminders(ctx context.Context, userID string, entries []timetable.Entry) (int, error) {
	st := r.settings(ctx, userID)
	if !st.EnableClassReminders {
		return 0, nil
	}
	now := r.clock.Now()
	lead := time.Duration(st.ReminderTimeMinutes) * time.Minute

	created := 0
	var errs error
	for _, e := range todays(entries, now) {
		start, err := at(now, e.StartTime)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		remindAt := start.Add(-lead)
		if !remindAt.After(now) {
			continue
		}
		release, ok := r.claim(ctx, userID, e.ID, kindReminder, now)
		if !ok {
			continue
		}
		_, err = r.notes.Create(ctx, Notification{
			UserID:       userID,
			Title:        "Upcoming Class: " + e.Subject,
			Message:      fmt.Sprintf("Your %s class starts in %d minutes at %s in %s", e.Subject, st.ReminderTimeMinutes, e.StartTime, e.Location),
			Type:         TypeClass,
			RelatedID:    e.ID,
			ScheduledFor: &remindAt,
		})
		if err != nil {
			r.logger.Warn("Failed to schedule class reminder", zap.String("user", userID), zap.String("entry", e.ID), zap.Error(err))
			release()
			errs = multierr.Append(errs, err)
			continue
		}
		created++
	}
	return created, errs
}

// ScheduleTaskReminders creates an immediate reminder for every open task due within the next day.
func (r *Reminders) ScheduleTaskReminders(ctx context.Context, userID string, tasks []task.Task) (int, error) {
	st := r.settings(ctx, userID)
	if !st.EnableTaskReminders {
		return 0, nil
	}
	now := r.clock.Now()
	until := now.Add(24 * time.Hour)

	created := 0
	var errs error
	for _, t := range tasks {
		if t.Completed || t.Deadline.Before(now) || t.Deadline.After(until) {
			continue
		}
		when, whenLower := "Tomorrow", "tomorrow"
		if sameDay(t.Deadline.In(now.Location()), now) {
			when, whenLower = "Today", "today"
		}
		release, ok := r.claim(ctx, userID, t.ID, kindTaskDue+whenLower, now)
		if !ok {
			continue
		}
		_, err := r.notes.Send(ctx, userID,
			fmt.Sprintf("Task Due %s: %s", when, t.Title),
			fmt.Sprintf("Your task \"%s\" is due %s", t.Title, whenLower),
			TypeTask, t.ID)
		if err != nil {
			r.logger.Warn("Failed to schedule task reminder", zap.String("user", userID), zap.String("task", t.ID), zap.Error(err))
			release()
			errs = multierr.Append(errs, err)
			continue
		}
		created++
	}
	return created, errs
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// CheckDue returns the due notifications of userID.
func (r *Reminders) CheckDue(ctx context.Context, userID string) ([]Notification, error) {
	return r.notes.Due(ctx, userID)
}

// CheckClassSchedule sends "starting soon" for classes starting within five minutes and
// "completed" for classes that ended within the last two minutes.
func (r *Reminders) CheckClassSchedule(ctx context.Context, userID string, entries []timetable.Entry) (int, error) {
	st := r.settings(ctx, userID)
	if !st.EnableClassReminders {
		return 0, nil
	}
	now := r.clock.Now()

	created := 0
	var errs error
	send := func(e timetable.Entry, kind, title, message string) {
		release, ok := r.claim(ctx, userID, e.ID, kind, now)
		if !ok {
			return
		}
		if _, err := r.notes.Send(ctx, userID, title, message, TypeClass, e.ID); err != nil {
			r.logger.Warn("Failed to send class notification", zap.String("user", userID), zap.String("entry", e.ID), zap.String("kind", kind), zap.Error(err))
			release()
			errs = multierr.Append(errs, err)
			return
		}
		created++
	}

	for _, e := range todays(entries, now) {
		if start, err := at(now, e.StartTime); err != nil {
			errs = multierr.Append(errs, err)
		} else if until := start.Sub(now); until > 0 && until <= startingSoonWindow {
			minutes := int(math.Ceil(until.Minutes()))
			unit := "minutes"
			if minutes == 1 {
				unit = "minute"
			}
			send(e, kindSoon,
				"Class Starting Soon: "+e.Subject,
				fmt.Sprintf("Your %s class starts in %d %s at %s", e.Subject, minutes, unit, e.Location))
		}

		if end, err := at(now, e.EndTime); err != nil {
			errs = multierr.Append(errs, err)
		} else if since := now.Sub(end); since >= 0 && since <= endedWindow {
			send(e, kindEnded,
				"Class Completed: "+e.Subject,
				fmt.Sprintf("Your %s class has ended. Don't forget to review your notes and complete any assignments.", e.Subject))
		}
	}
	return created, errs
}

// ScheduleAll is the dashboard-load pass: class reminders, task reminders and the
// upcoming deadlines digest.
func (r *Reminders) ScheduleAll(ctx context.Context, userID string, entries []timetable.Entry, tasks []task.Task) (int, error) {
	classes, errClasses := r.ScheduleClassReminders(ctx, userID, entries)
	due, errTasks := r.ScheduleTaskReminders(ctx, userID, tasks)
	created := classes + due

	digest, errDigest := r.notes.NotifyUpcomingDeadlines(ctx, userID, tasks)
	if digest != nil {
		created++
	}
	return created, multierr.Combine(errClasses, errTasks, errDigest)
}
