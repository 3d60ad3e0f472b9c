package event

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"StudySync/internal/apperr"
	"StudySync/internal/clock"
)

type Service struct {
	repo      Repository
	clock     clock.Clock
	validator *apperr.Validator
}

func NewService(repo Repository, clk clock.Clock, v *apperr.Validator) *Service {
	return &Service{repo: repo, clock: clk, validator: v}
}

// Events lists every event, soonest first.
func (s *Service) Events(ctx context.Context) ([]Event, error) {
	events, err := s.repo.ListEvents(ctx)
	return events, apperr.Fetch("events", err)
}

func (s *Service) prepare(e *Event) error {
	e.Title = strings.TrimSpace(e.Title)
	e.Date = strings.TrimSpace(e.Date)
	e.Time = strings.TrimSpace(e.Time)
	return s.validator.Validate(e)
}

func (s *Service) CreateEvent(ctx context.Context, e Event) (*Event, error) {
	if err := s.prepare(&e); err != nil {
		return nil, err
	}
	e.ID = uuid.NewString()
	e.CreatedAt = s.clock.Now()
	if err := s.repo.InsertEvent(ctx, &e); err != nil {
		return nil, apperr.Write("event", err)
	}
	return &e, nil
}

func (s *Service) UpdateEvent(ctx context.Context, id string, e Event) (*Event, error) {
	if err := s.prepare(&e); err != nil {
		return nil, err
	}
	e.ID = id
	if err := s.repo.UpdateEvent(ctx, &e); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		return nil, apperr.Write("event", err)
	}
	return &e, nil
}

func (s *Service) DeleteEvent(ctx context.Context, id string) error {
	if err := s.repo.DeleteEvent(ctx, id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		return apperr.Write("event", err)
	}
	return nil
}

// Classes lists class groupings, newest first.
func (s *Service) Classes(ctx context.Context) ([]Class, error) {
	classes, err := s.repo.ListClasses(ctx)
	return classes, apperr.Fetch("classes", err)
}

func (s *Service) CreateClass(ctx context.Context, c Class) (*Class, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := s.validator.Validate(c); err != nil {
		return nil, err
	}
	c.ID = uuid.NewString()
	c.CreatedAt = s.clock.Now()
	if err := s.repo.InsertClass(ctx, &c); err != nil {
		return nil, apperr.Write("class", err)
	}
	return &c, nil
}
