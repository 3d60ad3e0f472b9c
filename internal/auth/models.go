package auth

import (
	"time"

	"StudySync/internal/apperr"
)

const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// Collection is the name of the users table.
const Collection = "users"

type User struct {
	ID           string     `json:"id" bson:"_id"`
	Email        string     `json:"email" bson:"email"`
	Name         string     `json:"name" bson:"name"`
	Role         string     `json:"role" bson:"role"`
	PasswordHash string     `json:"-" bson:"password_hash"`
	Course       string     `json:"course,omitempty" bson:"course,omitempty"`
	Year         string     `json:"year,omitempty" bson:"year,omitempty"`
	Status       string     `json:"status,omitempty" bson:"status,omitempty"`
	CreatedAt    time.Time  `json:"created_at" bson:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty" bson:"last_login,omitempty"`
	ApprovedAt   *time.Time `json:"approved_at" bson:"approved_at"`
	DeniedAt     *time.Time `json:"denied_at,omitempty" bson:"denied_at,omitempty"`
}

// PermissionState derives the approval state. Admins are always approved.
func (u User) PermissionState() apperr.PermissionState {
	switch {
	case u.Role == RoleAdmin || u.ApprovedAt != nil:
		return apperr.Approved
	case u.DeniedAt != nil:
		return apperr.Denied
	}
	return apperr.Pending
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"omitempty,oneof=student admin"`
}

type Credential struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// StudentRequest is an admin-side student create or update.
type StudentRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Course   string `json:"course"`
	Year     string `json:"year"`
	Password string `json:"password,omitempty"`
	Status   string `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
}

// LoginResult is returned on a successful login. Pending users still get a token
// so the client can poll their approval state.
type LoginResult struct {
	Token string                 `json:"token"`
	User  User                   `json:"user"`
	State apperr.PermissionState `json:"state"`
}
