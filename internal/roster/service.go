package roster

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"membership/internal/member"
	"membership/internal/metrics"
)

var (
	// ErrRejected is returned when an import contains error issues; nothing is inserted.
	ErrRejected = errors.New("import rejected")
	// ErrUnreadable wraps CSV syntax errors and a missing name column.
	ErrUnreadable = errors.New("unreadable csv")
)

// MemberStore is the part of the member service the roster needs.
type MemberStore interface {
	List(ctx context.Context) ([]member.Member, error)
	CreateMany(ctx context.Context, fs []member.Fields) ([]member.Member, error)
}

// Result summarises one import.
type Result struct {
	Rows     int    `json:"rows"`
	Imported int    `json:"imported"`
	DryRun   bool   `json:"dryRun"`
	Issues   Issues `json:"issues"`
}

// Service runs exports and imports against the member store.
type Service struct {
	members MemberStore
	log     *zap.Logger
}

// NewService creates a roster service.
func NewService(members MemberStore, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{members: members, log: log.Named("roster")}
}

// Export writes every member, ordered by name, as members.csv.
func (s *Service) Export(ctx context.Context, w io.Writer) (int, error) {
	ms, err := s.members.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list members: %w", err)
	}
	if err := Export(w, ms); err != nil {
		return 0, fmt.Errorf("write csv: %w", err)
	}
	return len(ms), nil
}

// Import parses r and inserts every row in a single batch. Any error issue
// rejects the whole file with ErrRejected; a store failure inserts nothing.
// With dryRun the file is only parsed and validated.
func (s *Service) Import(ctx context.Context, r io.Reader, dryRun bool) (Result, error) {
	payloads, issues, err := Import(r)
	if err != nil {
		s.log.Warn("unreadable import", zap.Error(err))
		return Result{}, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	res := Result{Rows: len(payloads), DryRun: dryRun, Issues: issues}

	if issues.HasErrors() {
		metrics.ImportRows.WithLabelValues("rejected").Add(float64(len(payloads)))
		s.log.Info("import rejected", zap.Int("rows", len(payloads)), zap.Int("errors", len(issues.Errors())))
		return res, ErrRejected
	}
	if dryRun {
		metrics.ImportRows.WithLabelValues("dry_run").Add(float64(len(payloads)))
		return res, nil
	}

	created, err := s.members.CreateMany(ctx, payloads)
	if err != nil {
		metrics.ImportRows.WithLabelValues("failed").Add(float64(len(payloads)))
		return res, fmt.Errorf("insert members: %w", err)
	}
	res.Imported = len(created)
	metrics.ImportRows.WithLabelValues("inserted").Add(float64(res.Imported))
	s.log.Info("import finished", zap.Int("imported", res.Imported), zap.Int("warnings", len(issues)))
	return res, nil
}
