package notice

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"StudySync/internal/apperr"
	"StudySync/internal/clock"
	"StudySync/internal/notification"
)

// Audience lists every user id a notice is broadcast to.
type Audience interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// Sink writes a batch of notifications in one call.
type Sink interface {
	InsertBatch(ctx context.Context, ns []notification.Notification) error
}

type Service struct {
	repo      Repository
	audience  Audience
	sink      Sink
	clock     clock.Clock
	validator *apperr.Validator
	logger    *zap.Logger
}

func NewService(repo Repository, audience Audience, sink Sink, clk clock.Clock, v *apperr.Validator, logger *zap.Logger) *Service {
	return &Service{repo: repo, audience: audience, sink: sink, clock: clk, validator: v, logger: logger}
}

func (s *Service) List(ctx context.Context) ([]Notice, error) {
	ns, err := s.repo.FindAll(ctx)
	return ns, apperr.Fetch("notices", err)
}

// ListActive returns active, unexpired notices, newest first.
func (s *Service) ListActive(ctx context.Context) ([]Notice, error) {
	ns, err := s.repo.FindActive(ctx)
	if err != nil {
		s.logger.Error("Failed to fetch active notices", zap.Error(err))
		return nil, apperr.Fetch("notices", err)
	}
	now := s.clock.Now()
	out := ns[:0]
	for _, n := range ns {
		if n.Visible(now) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Service) normalize(n *Notice) error {
	n.Title = strings.TrimSpace(n.Title)
	n.Content = strings.TrimSpace(n.Content)
	n.Priority = strings.ToLower(strings.TrimSpace(n.Priority))
	if n.Priority == "" {
		n.Priority = "medium"
	}
	return s.validator.Validate(n)
}

// Create stores a notice and, when it is active, broadcasts it. The notice write and the
// fan-out are separate steps: a fan-out failure after the notice exists is a partial result.
func (s *Service) Create(ctx context.Context, createdBy string, req Request) (*Notice, apperr.WriteResult) {
	n := &Notice{
		ID:        uuid.NewString(),
		Title:     req.Title,
		Content:   req.Content,
		Priority:  req.Priority,
		CreatedAt: s.clock.Now(),
		CreatedBy: createdBy,
		ExpiresAt: req.ExpiresAt,
		IsActive:  req.IsActive,
	}
	if err := s.normalize(n); err != nil {
		return nil, apperr.FailedBefore("validate", err)
	}
	if err := s.repo.Insert(ctx, n); err != nil {
		s.logger.Error("Failed to create notice", zap.Error(err))
		return nil, apperr.FailedBefore("create", err)
	}
	if !n.IsActive {
		return n, apperr.Success()
	}
	return n, afterWrite(s.Broadcast(ctx, *n))
}

// Update applies patch. Turning an inactive notice active broadcasts it.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*Notice, apperr.WriteResult) {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.FailedBefore("load", apperr.Fetch("notice", err))
	}
	if n == nil {
		return nil, apperr.FailedBefore("load", errors.Wrapf(apperr.ErrNotFound, "notice %s", id))
	}
	wasActive := n.IsActive
	patch.apply(n)
	if err := s.normalize(n); err != nil {
		return nil, apperr.FailedBefore("validate", err)
	}
	now := s.clock.Now()
	n.UpdatedAt = &now
	if err := s.repo.Update(ctx, n); err != nil {
		s.logger.Error("Failed to update notice", zap.String("notice", id), zap.Error(err))
		return nil, apperr.FailedBefore("update", err)
	}
	if wasActive || !n.IsActive {
		return n, apperr.Success()
	}
	return n, afterWrite(s.Broadcast(ctx, *n))
}

// afterWrite re-labels a broadcast result for a caller that already wrote the notice.
func afterWrite(r apperr.WriteResult) apperr.WriteResult {
	if r.Outcome == apperr.FailedBeforeMutation {
		r.Outcome = apperr.Partial
	}
	return r
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		return apperr.Write("notice", err)
	}
	return nil
}

// Broadcast fans n out as one notice notification per user, inserted in bulk.
// No per-user retry or reconciliation is attempted.
func (s *Service) Broadcast(ctx context.Context, n Notice) apperr.WriteResult {
	ids, err := s.audience.ListIDs(ctx)
	if err != nil {
		s.logger.Error("Failed to fetch users for notice broadcast", zap.String("notice", n.ID), zap.Error(err))
		return apperr.FailedBefore("audience", err)
	}
	if len(ids) == 0 {
		return apperr.Success()
	}

	batch := make([]notification.Notification, 0, len(ids))
	for _, uid := range ids {
		batch = append(batch, notification.Notification{
			UserID:    uid,
			Title:     "NOTICE: " + n.Title,
			Message:   n.Content,
			Type:      notification.TypeNotice,
			RelatedID: n.ID,
		})
	}
	if err := s.sink.InsertBatch(ctx, batch); err != nil {
		s.logger.Error("Failed to broadcast notice notifications", zap.String("notice", n.ID), zap.Int("users", len(ids)), zap.Error(err))
		return apperr.PartialFailure("fanout", err)
	}
	s.logger.Info("Notice broadcast", zap.String("notice", n.ID), zap.Int("users", len(ids)))
	return apperr.Success()
}
