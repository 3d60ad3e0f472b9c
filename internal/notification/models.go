package notification

import (
	"time"
)

const (
	Collection         = "notifications"
	SettingsCollection = "notification_settings"
)

// Type classifies what caused a notification.
type Type string

const (
	TypeTask     Type = "task"
	TypeClass    Type = "class"
	TypeEvent    Type = "event"
	TypeReminder Type = "reminder"
	TypeNotice   Type = "notice"
	TypeSystem   Type = "system"
)

// Notification is a per-user alert with read and archive state.
type Notification struct {
	ID           string     `json:"id" bson:"_id"`
	UserID       string     `json:"user_id" bson:"user_id"`
	Title        string     `json:"title" bson:"title" validate:"required"`
	Message      string     `json:"message" bson:"message" validate:"required"`
	Type         Type       `json:"type" bson:"type" validate:"required,oneof=task class event reminder notice system"`
	RelatedID    string     `json:"related_id,omitempty" bson:"related_id,omitempty"`
	ScheduledFor *time.Time `json:"scheduled_for" bson:"scheduled_for"`
	IsRead       bool       `json:"is_read" bson:"is_read"`
	CreatedAt    time.Time  `json:"created_at" bson:"created_at"`
	ArchivedAt   *time.Time `json:"archived_at,omitempty" bson:"archived_at,omitempty"`
	EmailedAt    *time.Time `json:"emailed_at,omitempty" bson:"emailed_at,omitempty"`
}

// Due reports whether n should be surfaced at now: scheduled, not in the future, unread.
func (n Notification) Due(now time.Time) bool {
	return n.ScheduledFor != nil && !n.ScheduledFor.After(now) && !n.IsRead
}

// Settings are the per-user notification preferences.
type Settings struct {
	UserID               string    `json:"user_id" bson:"_id"`
	EnableEmail          bool      `json:"enable_email" bson:"enable_email"`
	EnableBrowser        bool      `json:"enable_browser" bson:"enable_browser"`
	EnableTaskReminders  bool      `json:"enable_task_reminders" bson:"enable_task_reminders"`
	EnableClassReminders bool      `json:"enable_class_reminders" bson:"enable_class_reminders"`
	ReminderTimeMinutes  int       `json:"reminder_time_minutes" bson:"reminder_time_minutes" validate:"min=1,max=1440"`
	UpdatedAt            time.Time `json:"updated_at" bson:"updated_at"`
}

// DefaultReminderMinutes is how long before a class its reminder fires.
const DefaultReminderMinutes = 30

func DefaultSettings(userID string) Settings {
	return Settings{
		UserID:               userID,
		EnableEmail:          false,
		EnableBrowser:        true,
		EnableTaskReminders:  true,
		EnableClassReminders: true,
		ReminderTimeMinutes:  DefaultReminderMinutes,
	}
}
