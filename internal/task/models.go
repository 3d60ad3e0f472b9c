package task

import "time"

// Collection is the name of the tasks table.
const Collection = "tasks"

// Categories a task may be filed under.
var Categories = []string{"assignment", "exam", "lecture", "project", "reading", "personal"}

// Task is a personal to-do item owned by a single user.
type Task struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"user_id" bson:"user_id"`
	Title     string    `json:"title" bson:"title" validate:"required"`
	Category  string    `json:"category" bson:"category" validate:"required,oneof=assignment exam lecture project reading personal"`
	Deadline  time.Time `json:"deadline" bson:"deadline"`
	Completed bool      `json:"completed" bson:"completed"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

// Request is the body of a task create or update.
type Request struct {
	Title     string    `json:"title" validate:"required"`
	Category  string    `json:"category" validate:"required,oneof=assignment exam lecture project reading personal"`
	Deadline  time.Time `json:"deadline"`
	Completed bool      `json:"completed"`
}
