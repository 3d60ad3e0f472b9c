package notice

import "time"

// Collection is the name of the notices table.
const Collection = "notices"

// Notice is an admin announcement. Inactive notices are kept but hidden from students.
type Notice struct {
	ID        string     `json:"id" bson:"_id"`
	Title     string     `json:"title" bson:"title" validate:"required"`
	Content   string     `json:"content" bson:"content" validate:"required"`
	Priority  string     `json:"priority" bson:"priority" validate:"oneof=low medium high"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
	CreatedBy string     `json:"created_by" bson:"created_by"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
	IsActive  bool       `json:"is_active" bson:"is_active"`
}

// Visible reports whether students should see n at now.
func (n Notice) Visible(now time.Time) bool {
	return n.IsActive && (n.ExpiresAt == nil || n.ExpiresAt.After(now))
}

type Request struct {
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Priority  string     `json:"priority"`
	ExpiresAt *time.Time `json:"expires_at"`
	IsActive  bool       `json:"is_active"`
}

// Patch changes only the fields that are set.
type Patch struct {
	Title     *string    `json:"title"`
	Content   *string    `json:"content"`
	Priority  *string    `json:"priority"`
	ExpiresAt *time.Time `json:"expires_at"`
	IsActive  *bool      `json:"is_active"`
}

func (p Patch) apply(n *Notice) {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	if p.Priority != nil {
		n.Priority = *p.Priority
	}
	if p.ExpiresAt != nil {
		n.ExpiresAt = p.ExpiresAt
	}
	if p.IsActive != nil {
		n.IsActive = *p.IsActive
	}
}
