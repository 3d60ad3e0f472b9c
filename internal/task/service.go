package task

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"StudySync/internal/apperr"
	"StudySync/internal/clock"
)

// Notifier is told when a task moves from open to completed.
type Notifier interface {
	SendTaskCompleted(ctx context.Context, userID, taskID, title string) error
}

type Service struct {
	repo      Repository
	notifier  Notifier
	clock     clock.Clock
	validator *apperr.Validator
	logger    *zap.Logger
}

func NewService(repo Repository, notifier Notifier, clk clock.Clock, v *apperr.Validator, logger *zap.Logger) *Service {
	return &Service{repo: repo, notifier: notifier, clock: clk, validator: v, logger: logger}
}

func (s *Service) validate(req *Request) error {
	req.Title = strings.TrimSpace(req.Title)
	req.Category = strings.ToLower(strings.TrimSpace(req.Category))
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	if req.Deadline.IsZero() {
		return apperr.NewValidationError("deadline", "deadline is required")
	}
	return nil
}

// List returns the tasks of userID, earliest deadline first.
func (s *Service) List(ctx context.Context, userID string) ([]Task, error) {
	tasks, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to fetch tasks", zap.String("user", userID), zap.Error(err))
		return nil, apperr.Fetch("tasks", err)
	}
	return tasks, nil
}

func (s *Service) Create(ctx context.Context, userID string, req Request) (*Task, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	t := &Task{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     req.Title,
		Category:  req.Category,
		Deadline:  req.Deadline,
		Completed: req.Completed,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, t); err != nil {
		return nil, apperr.Write("task", err)
	}
	return t, nil
}

// owned loads a task and hides tasks of other users behind ErrNotFound.
func (s *Service) owned(ctx context.Context, userID, id string) (*Task, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.Fetch("task", err)
	}
	if t == nil || t.UserID != userID {
		return nil, errors.Wrapf(apperr.ErrNotFound, "task %s", id)
	}
	return t, nil
}

func (s *Service) Update(ctx context.Context, userID, id string, req Request) (*Task, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	t, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	wasCompleted := t.Completed
	t.Title = req.Title
	t.Category = req.Category
	t.Deadline = req.Deadline
	t.Completed = req.Completed
	return t, s.save(ctx, t, wasCompleted)
}

// SetCompleted toggles the completion flag only.
func (s *Service) SetCompleted(ctx context.Context, userID, id string, completed bool) (*Task, error) {
	t, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	wasCompleted := t.Completed
	t.Completed = completed
	return t, s.save(ctx, t, wasCompleted)
}

func (s *Service) save(ctx context.Context, t *Task, wasCompleted bool) error {
	if err := s.repo.Update(ctx, t); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		return apperr.Write("task", err)
	}
	if !wasCompleted && t.Completed && s.notifier != nil {
		if err := s.notifier.SendTaskCompleted(ctx, t.UserID, t.ID, t.Title); err != nil {
			s.logger.Warn("Task completed notification failed", zap.String("task", t.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		return apperr.Write("task", err)
	}
	return nil
}
