package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"StudySync/internal/apperr"
	"StudySync/internal/clock"
)

// Welcomer greets newly registered users.
type Welcomer interface {
	SendWelcome(ctx context.Context, userID, name string) error
}

type UserService struct {
	repo      Repository
	tokens    *TokenIssuer
	welcomer  Welcomer
	clock     clock.Clock
	validator *apperr.Validator
	logger    *zap.Logger
}

func NewUserService(repo Repository, tokens *TokenIssuer, welcomer Welcomer, clk clock.Clock, v *apperr.Validator, logger *zap.Logger) *UserService {
	return &UserService{repo: repo, tokens: tokens, welcomer: welcomer, clock: clk, validator: v, logger: logger}
}

// RegisterUser creates an account. Students wait for approval; admins are approved on creation.
func (s *UserService) RegisterUser(ctx context.Context, req RegisterRequest) (*User, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.Role == "" {
		req.Role = RoleStudent
	}
	user, err := s.newUser(req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		return nil, err
	}
	if user.Role == RoleAdmin {
		now := s.clock.Now()
		user.ApprovedAt = &now
	}
	if err := s.create(ctx, user); err != nil {
		return nil, err
	}

	if s.welcomer != nil {
		if err := s.welcomer.SendWelcome(ctx, user.ID, user.Name); err != nil {
			s.logger.Warn("Welcome notification failed", zap.String("user", user.ID), zap.Error(err))
		}
	}
	return user, nil
}

func (s *UserService) newUser(name, email, password, role string) (*User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Name:         strings.TrimSpace(name),
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    s.clock.Now(),
	}, nil
}

func (s *UserService) create(ctx context.Context, user *User) error {
	existing, err := s.repo.FindByEmail(ctx, user.Email)
	if err != nil {
		return apperr.Fetch("user", err)
	}
	if existing != nil {
		return errors.Wrap(apperr.ErrConflict, "email already registered")
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return errors.Wrap(err, "email already registered")
		}
		return apperr.Write("user", err)
	}
	return nil
}

// AuthenticateUser checks credentials, stamps last_login and issues a token.
func (s *UserService) AuthenticateUser(ctx context.Context, cred Credential) (*LoginResult, error) {
	if err := s.validator.Validate(cred); err != nil {
		return nil, err
	}
	user, err := s.repo.FindByEmail(ctx, cred.Email)
	if err != nil {
		return nil, apperr.Fetch("user", err)
	}
	if user == nil || !CheckPasswordHash(cred.Password, user.PasswordHash) {
		return nil, errors.Wrap(apperr.ErrUnauthorized, "invalid credentials")
	}
	state := user.PermissionState()
	if state == apperr.Denied {
		return nil, errors.Wrap(apperr.ErrUnauthorized, "account access denied")
	}

	now := s.clock.Now()
	user.LastLogin = &now
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		s.logger.Warn("Failed to record last login", zap.String("user", user.ID), zap.Error(err))
	}

	token, err := s.tokens.GenerateJWT(*user)
	if err != nil {
		return nil, errors.Wrap(err, "token not generated")
	}
	return &LoginResult{Token: token, User: *user, State: state}, nil
}

// Profile returns the user with id.
func (s *UserService) Profile(ctx context.Context, id string) (*User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.Fetch("user", err)
	}
	if user == nil {
		return nil, apperr.ErrNotFound
	}
	return user, nil
}

// PermissionState looks up the approval state of a user.
func (s *UserService) PermissionState(ctx context.Context, id string) (apperr.PermissionState, error) {
	user, err := s.Profile(ctx, id)
	if err != nil {
		return "", err
	}
	return user.PermissionState(), nil
}

func (s *UserService) PendingUsers(ctx context.Context) ([]User, error) {
	users, err := s.repo.ListPending(ctx)
	return users, apperr.Fetch("pending users", err)
}

func (s *UserService) PendingCount(ctx context.Context) (int64, error) {
	n, err := s.repo.CountPending(ctx)
	return n, apperr.Fetch("pending users", err)
}

// Approve sets approved_at and clears any denial.
func (s *UserService) Approve(ctx context.Context, id string) (*User, error) {
	return s.mutate(ctx, id, func(u *User) {
		now := s.clock.Now()
		u.ApprovedAt = &now
		u.DeniedAt = nil
	})
}

// Deny clears approved_at and records the denial.
func (s *UserService) Deny(ctx context.Context, id string) (*User, error) {
	return s.mutate(ctx, id, func(u *User) {
		now := s.clock.Now()
		u.ApprovedAt = nil
		u.DeniedAt = &now
	})
}

func (s *UserService) mutate(ctx context.Context, id string, apply func(*User)) (*User, error) {
	user, err := s.Profile(ctx, id)
	if err != nil {
		return nil, err
	}
	apply(user)
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		return nil, apperr.Write("user", err)
	}
	return user, nil
}

// Students lists student accounts, newest first.
func (s *UserService) Students(ctx context.Context) ([]User, error) {
	users, err := s.repo.ListByRole(ctx, RoleStudent)
	return users, apperr.Fetch("students", err)
}

// ApprovedStudents lists students allowed to use the app.
func (s *UserService) ApprovedStudents(ctx context.Context) ([]User, error) {
	users, err := s.Students(ctx)
	if err != nil {
		return nil, err
	}
	out := users[:0]
	for _, u := range users {
		if u.PermissionState() == apperr.Approved && u.Status != "inactive" {
			out = append(out, u)
		}
	}
	return out, nil
}

// CreateStudent adds a student on behalf of an admin. Such students are approved immediately.
func (s *UserService) CreateStudent(ctx context.Context, req StudentRequest) (*User, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if len(req.Password) < 8 {
		return nil, apperr.NewValidationError("password", "password must be at least 8 characters in length")
	}
	user, err := s.newUser(req.Name, req.Email, req.Password, RoleStudent)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	user.ApprovedAt = &now
	user.Course = req.Course
	user.Year = req.Year
	user.Status = "active"
	if err := s.create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) UpdateStudent(ctx context.Context, id string, req StudentRequest) (*User, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(u *User) {
		u.Name = strings.TrimSpace(req.Name)
		u.Email = strings.ToLower(strings.TrimSpace(req.Email))
		u.Course = req.Course
		u.Year = req.Year
		if req.Status != "" {
			u.Status = req.Status
		}
	})
}

func (s *UserService) DeleteStudent(ctx context.Context, id string) error {
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		return apperr.Write("user", err)
	}
	return nil
}

// ListIDs returns the id of every user, the audience of a notice broadcast.
func (s *UserService) ListIDs(ctx context.Context) ([]string, error) {
	ids, err := s.repo.ListIDs(ctx)
	return ids, apperr.Fetch("user ids", err)
}

// EnsureAdmin creates the bootstrap admin account when it does not exist yet.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) error {
	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return apperr.Fetch("user", err)
	}
	if existing != nil {
		return nil
	}
	_, err = s.RegisterUser(ctx, RegisterRequest{Name: "Administrator", Email: email, Password: password, Role: RoleAdmin})
	if err == nil {
		s.logger.Info("Bootstrap admin created", zap.String("email", email))
	}
	return err
}
