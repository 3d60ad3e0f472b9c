package notification

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"StudySync/internal/auth"
	"StudySync/internal/timetable"
)

// DefaultPollInterval is how often the scheduler and the session pollers tick.
const DefaultPollInterval = time.Minute

// StudentSource lists the students the scheduler works for.
type StudentSource interface {
	ApprovedStudents(ctx context.Context) ([]auth.User, error)
}

// TimetableSource serves the shared timetable.
type TimetableSource interface {
	Fetch(ctx context.Context, force bool) ([]timetable.Entry, error)
}

// NotificationScheduler periodically runs the class schedule check and email delivery
// for every approved student.
type NotificationScheduler struct {
	reminders *Reminders
	notes     *NotificationService
	students  StudentSource
	timetable TimetableSource
	interval  time.Duration
	logger    *zap.Logger
}

// NewNotificationScheduler creates a new scheduler for notifications.
func NewNotificationScheduler(reminders *Reminders, notes *NotificationService, students StudentSource, tt TimetableSource, interval time.Duration, logger *zap.Logger) *NotificationScheduler {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &NotificationScheduler{
		reminders: reminders,
		notes:     notes,
		students:  students,
		timetable: tt,
		interval:  interval,
		logger:    logger,
	}
}

// RunOnce performs one pass. Failures for one student do not stop the others.
func (s *NotificationScheduler) RunOnce(ctx context.Context) error {
	students, err := s.students.ApprovedStudents(ctx)
	if err != nil {
		s.logger.Error("Failed to list students for notification pass", zap.Error(err))
		return err
	}
	entries, err := s.timetable.Fetch(ctx, false)
	if err != nil {
		s.logger.Error("Failed to fetch timetable for notification pass", zap.Error(err))
		entries = nil
	}

	var errs error
	for _, u := range students {
		if len(entries) > 0 {
			if _, err := s.reminders.CheckClassSchedule(ctx, u.ID, entries); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
		sent, err := s.notes.DeliverDueEmails(ctx, u.ID, u.Email)
		if err != nil {
			s.logger.Warn("Email delivery incomplete", zap.String("user", u.ID), zap.Int("sent", sent), zap.Error(err))
			errs = multierr.Append(errs, err)
		} else if sent > 0 {
			s.logger.Debug("Emailed due notifications", zap.String("user", u.ID), zap.Int("sent", sent))
		}
	}
	return errs
}

// StartScheduler starts the background goroutine that runs RunOnce on every tick.
func (s *NotificationScheduler) StartScheduler(lc fx.Lifecycle) {
	ticker := time.NewTicker(s.interval)
	done := make(chan bool)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.logger.Info("Starting notification scheduler", zap.Duration("interval", s.interval))
			go func() {
				schedulerCtx, cancel := context.WithCancel(context.Background())
				defer cancel()
				for {
					select {
					case <-ticker.C:
						_ = s.RunOnce(schedulerCtx)
					case <-done:
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.logger.Info("Stopping notification scheduler")
			ticker.Stop()
			close(done)
			return nil
		},
	})
}
