package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"StudySync/internal/apperr"
	"StudySync/internal/clock"
	"StudySync/internal/task"
)

// Mailer delivers a notification by email.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

// NotificationService owns notification records and per-user settings.
type NotificationService struct {
	repo      Repository
	settings  SettingsRepository
	mailer    Mailer
	clock     clock.Clock
	validator *apperr.Validator
	logger    *zap.Logger
}

// NewNotificationService creates a NotificationService. mailer may be nil, which disables email.
func NewNotificationService(repo Repository, settings SettingsRepository, mailer Mailer, clk clock.Clock, v *apperr.Validator, logger *zap.Logger) *NotificationService {
	return &NotificationService{repo: repo, settings: settings, mailer: mailer, clock: clk, validator: v, logger: logger}
}

// Create stores n, filling in id and created_at.
func (s *NotificationService) Create(ctx context.Context, n Notification) (*Notification, error) {
	if err := s.validator.Validate(n); err != nil {
		return nil, err
	}
	n.ID = uuid.NewString()
	n.CreatedAt = s.clock.Now()
	if err := s.repo.Insert(ctx, &n); err != nil {
		return nil, apperr.Write("notification", err)
	}
	return &n, nil
}

// Send creates a notification that is due immediately.
func (s *NotificationService) Send(ctx context.Context, userID, title, message string, typ Type, relatedID string) (*Notification, error) {
	now := s.clock.Now()
	return s.Create(ctx, Notification{
		UserID:       userID,
		Title:        title,
		Message:      message,
		Type:         typ,
		RelatedID:    relatedID,
		ScheduledFor: &now,
	})
}

// InsertBatch writes ns in a single call. Ids and created_at are filled in.
func (s *NotificationService) InsertBatch(ctx context.Context, ns []Notification) error {
	now := s.clock.Now()
	for i := range ns {
		ns[i].ID = uuid.NewString()
		ns[i].CreatedAt = now
	}
	return s.repo.InsertMany(ctx, ns)
}

// List returns the non-archived notifications of userID, newest first.
func (s *NotificationService) List(ctx context.Context, userID string) ([]Notification, error) {
	ns, err := s.repo.ListByUser(ctx, userID, false)
	if err != nil {
		s.logger.Error("Failed to fetch notifications", zap.String("user", userID), zap.Error(err))
		return nil, apperr.Fetch("notifications", err)
	}
	return ns, nil
}

func (s *NotificationService) ListArchived(ctx context.Context, userID string) ([]Notification, error) {
	ns, err := s.repo.ListByUser(ctx, userID, true)
	return ns, apperr.Fetch("notifications", err)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.CountUnread(ctx, userID)
	return n, apperr.Fetch("notifications", err)
}

// Due returns the notifications of userID that are scheduled at or before now and unread.
// Anything not marked read stays due on every later call.
func (s *NotificationService) Due(ctx context.Context, userID string) ([]Notification, error) {
	ns, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	due := make([]Notification, 0, len(ns))
	for _, n := range ns {
		if n.Due(now) {
			due = append(due, n)
		}
	}
	return due, nil
}

func (s *NotificationService) owned(ctx context.Context, userID, id string) (*Notification, error) {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.Fetch("notification", err)
	}
	if n == nil || n.UserID != userID {
		return nil, errors.Wrapf(apperr.ErrNotFound, "notification %s", id)
	}
	return n, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	return apperr.Write("notification", s.repo.MarkRead(ctx, id))
}

// MarkAllRead marks every listed notification of userID read and, with archive, archives them.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string, archive bool) (int64, error) {
	var at *time.Time
	if archive {
		now := s.clock.Now()
		at = &now
	}
	n, err := s.repo.MarkAllRead(ctx, userID, at)
	return n, apperr.Write("notifications", err)
}

func (s *NotificationService) Archive(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	return apperr.Write("notification", s.repo.Archive(ctx, id, s.clock.Now()))
}

// SendWelcome greets a newly registered user.
func (s *NotificationService) SendWelcome(ctx context.Context, userID, name string) error {
	_, err := s.Send(ctx, userID,
		"Welcome to StudySync!",
		fmt.Sprintf("Hello %s, welcome to StudySync! We're excited to help you stay organized with your college schedule and tasks.", name),
		TypeSystem, "")
	return err
}

// SendTaskCompleted congratulates the owner of a finished task.
func (s *NotificationService) SendTaskCompleted(ctx context.Context, userID, taskID, title string) error {
	_, err := s.Send(ctx, userID,
		"Task Completed: "+title,
		fmt.Sprintf("Congratulations! You've completed the task \"%s\".", title),
		TypeTask, taskID)
	return err
}

// NotifyUpcomingDeadlines sends one digest for the open tasks due within the next 24 hours.
// It returns nil without writing when there are none.
func (s *NotificationService) NotifyUpcomingDeadlines(ctx context.Context, userID string, tasks []task.Task) (*Notification, error) {
	now := s.clock.Now()
	n := 0
	for _, t := range tasks {
		if !t.Completed && !t.Deadline.Before(now) && !t.Deadline.After(now.Add(24*time.Hour)) {
			n++
		}
	}
	if n == 0 {
		return nil, nil
	}
	return s.Send(ctx, userID,
		fmt.Sprintf("%d Upcoming Deadline%s", n, plural(n)),
		fmt.Sprintf("You have %d task%s due in the next 24 hours.", n, plural(n)),
		TypeReminder, "")
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// GetSettings returns the settings of userID, creating the defaults on first access.
func (s *NotificationService) GetSettings(ctx context.Context, userID string) (*Settings, error) {
	st, err := s.settings.Get(ctx, userID)
	if err != nil {
		return nil, apperr.Fetch("notification settings", err)
	}
	if st != nil {
		return st, nil
	}
	def := DefaultSettings(userID)
	def.UpdatedAt = s.clock.Now()
	if err := s.settings.Upsert(ctx, &def); err != nil {
		s.logger.Warn("Failed to store default notification settings", zap.String("user", userID), zap.Error(err))
	}
	return &def, nil
}

func (s *NotificationService) UpdateSettings(ctx context.Context, userID string, in Settings) (*Settings, error) {
	in.UserID = userID
	if in.ReminderTimeMinutes == 0 {
		in.ReminderTimeMinutes = DefaultReminderMinutes
	}
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}
	in.UpdatedAt = s.clock.Now()
	if err := s.settings.Upsert(ctx, &in); err != nil {
		return nil, apperr.Write("notification settings", err)
	}
	return &in, nil
}

// DeliverDueEmails emails every due notification of a user that has not been emailed yet.
// It does nothing unless a mailer is configured and the user enabled email.
func (s *NotificationService) DeliverDueEmails(ctx context.Context, userID, email string) (int, error) {
	if s.mailer == nil || strings.TrimSpace(email) == "" {
		return 0, nil
	}
	st, err := s.GetSettings(ctx, userID)
	if err != nil || !st.EnableEmail {
		return 0, err
	}
	due, err := s.Due(ctx, userID)
	if err != nil {
		return 0, err
	}

	sent := 0
	var errs error
	for _, n := range due {
		if n.EmailedAt != nil {
			continue
		}
		if err := s.mailer.SendEmail(email, n.Title, n.Message); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "email notification %s", n.ID))
			continue
		}
		if err := s.repo.MarkEmailed(ctx, n.ID, s.clock.Now()); err != nil {
			errs = multierr.Append(errs, apperr.Write("notification", err))
			continue
		}
		sent++
	}
	return sent, errs
}
