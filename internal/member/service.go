package member

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"membership/internal/metrics"
)

// Notifier is told after every successful write so derived views can be refreshed.
type Notifier interface {
	Changed(ctx context.Context, reason string)
}

type nopNotifier struct{}

// Changed does nothing.
func (nopNotifier) Changed(context.Context, string) {}

// Service validates member writes before they reach the repository.
type Service struct {
	repo   *Repository
	notify Notifier
	log    *zap.Logger
}

// NewService creates a service backed by a repository. notify may be nil.
func NewService(repo *Repository, notify Notifier, log *zap.Logger) *Service {
	if notify == nil {
		notify = nopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, notify: notify, log: log.Named("member")}
}

// List returns every member ordered by name.
func (s *Service) List(ctx context.Context) ([]Member, error) {
	return s.repo.List(ctx)
}

// Get returns one member or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (Member, error) {
	if id == "" {
		return Member{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// Exists reports whether a member id is known.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	return s.repo.Exists(ctx, id)
}

// Create validates and stores a new member.
func (s *Service) Create(ctx context.Context, f Fields) (Member, error) {
	f = f.Normalize()
	if err := f.Validate(); err != nil {
		return Member{}, err
	}
	m, err := s.repo.Insert(ctx, f)
	metrics.MemberWrites.WithLabelValues("create", metrics.Outcome(err)).Inc()
	if err != nil {
		s.log.Error("create member failed", zap.Error(err))
		return Member{}, err
	}
	s.notify.Changed(ctx, "member.created")
	return m, nil
}

// CreateMany stores a batch atomically without re-validating; callers are
// expected to have produced the payloads through their own validation step.
func (s *Service) CreateMany(ctx context.Context, fs []Fields) ([]Member, error) {
	if len(fs) == 0 {
		return nil, nil
	}
	ms, err := s.repo.InsertMany(ctx, fs)
	metrics.MemberWrites.WithLabelValues("create_many", metrics.Outcome(err)).Inc()
	if err != nil {
		s.log.Error("bulk insert failed", zap.Int("rows", len(fs)), zap.Error(err))
		return nil, err
	}
	s.notify.Changed(ctx, "members.imported")
	return ms, nil
}

// Update validates and overwrites a member. expectedVersion 0 skips the conflict check.
func (s *Service) Update(ctx context.Context, id string, f Fields, expectedVersion int) (Member, error) {
	f = f.Normalize()
	if err := f.Validate(); err != nil {
		return Member{}, err
	}
	m, err := s.repo.Update(ctx, id, f, expectedVersion)
	metrics.MemberWrites.WithLabelValues("update", metrics.Outcome(err)).Inc()
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrConflict) {
			s.log.Error("update member failed", zap.String("member_id", id), zap.Error(err))
		}
		return Member{}, err
	}
	s.notify.Changed(ctx, "member.updated")
	return m, nil
}

// Delete removes a member and its attendance history.
func (s *Service) Delete(ctx context.Context, id string) error {
	removed, err := s.repo.Delete(ctx, id)
	metrics.MemberWrites.WithLabelValues("delete", metrics.Outcome(err)).Inc()
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Error("delete member failed", zap.String("member_id", id), zap.Error(err))
		}
		return err
	}
	s.log.Info("member deleted", zap.String("member_id", id), zap.Int64("attendance_removed", removed))
	s.notify.Changed(ctx, "member.deleted")
	return nil
}
