package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"membership/internal/calendar"
	"membership/internal/metrics"
)

var (
	ErrNotFound      = errors.New("attendance record not found")
	ErrUnknownMember = errors.New("unknown member")
	ErrInvalidDate   = errors.New("invalid attendance date")
	ErrInvalidStatus = errors.New("status must be present or absent")
)

// Status is the attendance status of a member on a date.
type Status string

const (
	Present Status = "present"
	Absent  Status = "absent"
)

// Valid reports whether s is present or absent.
func (s Status) Valid() bool {
	return s == Present || s == Absent
}

// Record is one (member, date) observation. Communion is independent of Status.
type Record struct {
	MemberID  string    `json:"memberId"`
	Date      string    `json:"date"`
	Status    Status    `json:"status"`
	Communion bool      `json:"communion"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Filter narrows List. Empty fields do not filter; From and To are inclusive.
type Filter struct {
	Date   string
	From   string
	To     string
	Status Status
}

// MemberChecker confirms a member id before a record references it.
type MemberChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Notifier is told after every successful write.
type Notifier interface {
	Changed(ctx context.Context, reason string)
}

// Service coordinates attendance marking. Concurrent writers to the same record
// are last-write-wins per field.
type Service struct {
	repo    *Repository
	members MemberChecker
	notify  Notifier
	log     *zap.Logger
}

// NewService creates a service backed by a repository. notify may be nil.
func NewService(repo *Repository, members MemberChecker, notify Notifier, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, members: members, notify: notify, log: log.Named("attendance")}
}

func (s *Service) check(ctx context.Context, memberID, date string) error {
	if !calendar.Valid(date) {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	if memberID == "" {
		return ErrUnknownMember
	}
	ok, err := s.members.Exists(ctx, memberID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownMember
	}
	return nil
}

// SetStatus marks a member present or absent on a date.
func (s *Service) SetStatus(ctx context.Context, memberID, date string, status Status) (Record, error) {
	if !status.Valid() {
		return Record{}, ErrInvalidStatus
	}
	if err := s.check(ctx, memberID, date); err != nil {
		return Record{}, err
	}
	rec, err := s.repo.UpsertStatus(ctx, memberID, date, status)
	if err != nil {
		s.log.Error("update attendance status failed", zap.String("member_id", memberID), zap.String("date", date), zap.Error(err))
		return Record{}, err
	}
	metrics.AttendanceMarks.WithLabelValues("status").Inc()
	s.changed(ctx)
	return rec, nil
}

// SetCommunion records whether a member took communion on a date.
func (s *Service) SetCommunion(ctx context.Context, memberID, date string, communion bool) (Record, error) {
	if err := s.check(ctx, memberID, date); err != nil {
		return Record{}, err
	}
	rec, err := s.repo.UpsertCommunion(ctx, memberID, date, communion)
	if err != nil {
		s.log.Error("update communion failed", zap.String("member_id", memberID), zap.String("date", date), zap.Error(err))
		return Record{}, err
	}
	metrics.AttendanceMarks.WithLabelValues("communion").Inc()
	s.changed(ctx)
	return rec, nil
}

func (s *Service) changed(ctx context.Context) {
	if s.notify != nil {
		s.notify.Changed(ctx, "attendance.changed")
	}
}

// ForDate returns every record on one date.
func (s *Service) ForDate(ctx context.Context, date string) ([]Record, error) {
	if !calendar.Valid(date) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return s.repo.List(ctx, Filter{Date: date})
}

// List returns records matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]Record, error) {
	for _, d := range []string{f.Date, f.From, f.To} {
		if d != "" && !calendar.Valid(d) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDate, d)
		}
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.repo.List(ctx, f)
}

// MarkedDates returns every date with at least one present record.
func (s *Service) MarkedDates(ctx context.Context) ([]string, error) {
	return s.repo.MarkedDates(ctx)
}

// AnyPresent reports whether any record is present, which is what makes a date marked.
func AnyPresent(records []Record) bool {
	for _, r := range records {
		if r.Status == Present {
			return true
		}
	}
	return false
}
