package event

import "time"

const (
	EventCollection = "events"
	ClassCollection = "classes"
)

// Event is a dated campus event shown to every user.
type Event struct {
	ID          string    `json:"id" bson:"_id"`
	Title       string    `json:"title" bson:"title" validate:"required"`
	Date        string    `json:"date" bson:"date" validate:"required,datetime=2006-01-02"`
	Time        string    `json:"time" bson:"time" validate:"omitempty,hhmm"`
	Location    string    `json:"location" bson:"location"`
	Description string    `json:"description" bson:"description"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

// Class groups timetable entries; entries reference it through class_id.
type Class struct {
	ID          string    `json:"id" bson:"_id"`
	Name        string    `json:"name" bson:"name" validate:"required"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}
