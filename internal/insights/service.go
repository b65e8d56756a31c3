package insights

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"membership/internal/attendance"
	"membership/internal/cache"
	"membership/internal/calendar"
	"membership/internal/member"
	"membership/internal/metrics"
	"membership/internal/queue"
)

const (
	dashboardKey = "dashboard"
	overviewKey  = "overview"

	// DefaultDays is the overview window when none is requested.
	DefaultDays = 7
)

// MemberSource lists members.
type MemberSource interface {
	List(ctx context.Context) ([]member.Member, error)
}

// AttendanceSource lists attendance records.
type AttendanceSource interface {
	List(ctx context.Context, f attendance.Filter) ([]attendance.Record, error)
}

// Publisher announces that cached insights are stale.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Dashboard is the landing page summary. Highest and Lowest are nil until
// someone has been marked present.
type Dashboard struct {
	TotalMembers int          `json:"totalMembers"`
	Demographics Demographics `json:"demographics"`
	Highest      *DailyCount  `json:"highest,omitempty"`
	Lowest       *DailyCount  `json:"lowest,omitempty"`
	GeneratedAt  time.Time    `json:"generatedAt"`
}

// Overview summarizes a trailing window of attendance.
type Overview struct {
	From         string          `json:"from"`
	To           string          `json:"to"`
	Series       []DailyCount    `json:"series"`
	TopAttenders []Attender      `json:"topAttenders"`
	Categories   []CategoryCount `json:"categories"`
	Demographics Demographics    `json:"demographics"`
	GeneratedAt  time.Time       `json:"generatedAt"`
}

// Options tune the service. Zero values pick defaults.
type Options struct {
	TTL  time.Duration
	Top  int
	Now  func() time.Time
	Log  *zap.Logger
	Feed Publisher
}

// Service computes insights from the stores and caches the common snapshots.
type Service struct {
	members    MemberSource
	attendance AttendanceSource
	cache      cache.Snapshots
	feed       Publisher
	ttl        time.Duration
	top        int
	now        func() time.Time
	log        *zap.Logger
}

// NewService wires the sources and snapshot cache.
func NewService(members MemberSource, records AttendanceSource, snapshots cache.Snapshots, opts Options) *Service {
	s := &Service{
		members:    members,
		attendance: records,
		cache:      snapshots,
		feed:       opts.Feed,
		ttl:        opts.TTL,
		top:        opts.Top,
		now:        opts.Now,
		log:        opts.Log,
	}
	if s.ttl <= 0 {
		s.ttl = time.Minute
	}
	if s.top <= 0 {
		s.top = 5
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.log = s.log.Named("insights")
	return s
}

// Dashboard returns the cached dashboard, computing it on a miss.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	gen, cached := s.generation(ctx)
	if cached && s.lookup(ctx, dashboardKey, gen, &d) {
		return d, nil
	}
	d, err := s.computeDashboard(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	if cached {
		s.store(ctx, dashboardKey, gen, d)
	}
	return d, nil
}

// Overview returns the window ending today. days <= 0 means DefaultDays and
// top <= 0 means the configured count. Only the default shape is cached.
func (s *Service) Overview(ctx context.Context, days, top int) (Overview, error) {
	if days <= 0 {
		days = DefaultDays
	}
	if top <= 0 {
		top = s.top
	}
	var (
		o      Overview
		gen    uint64
		cached bool
	)
	if days == DefaultDays && top == s.top {
		gen, cached = s.generation(ctx)
	}
	if cached && s.lookup(ctx, overviewKey, gen, &o) && o.To == calendar.Format(s.now()) {
		return o, nil
	}
	o, err := s.computeOverview(ctx, days, top)
	if err != nil {
		return Overview{}, err
	}
	if cached {
		s.store(ctx, overviewKey, gen, o)
	}
	return o, nil
}

// Invalidate advances the snapshot generation and tells the worker to
// rebuild. Computations that started before the advance store under the old
// generation, so they are never served.
func (s *Service) Invalidate(ctx context.Context, reason string) error {
	gen, err := s.cache.Advance(ctx)
	if err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, snapshotKey(dashboardKey, gen-1), snapshotKey(overviewKey, gen-1)); err != nil {
		s.log.Warn("drop old snapshots failed", zap.Error(err))
	}
	if s.feed == nil {
		return nil
	}
	return s.feed.Publish(ctx, queue.Message{Type: queue.TypeInsightsStale, Reason: reason, At: s.now().UTC()})
}

// Changed satisfies the member and attendance notifiers.
func (s *Service) Changed(ctx context.Context, reason string) {
	if err := s.Invalidate(ctx, reason); err != nil {
		s.log.Warn("invalidate insights failed", zap.String("reason", reason), zap.Error(err))
	}
}

// Refresh recomputes and stores the dashboard and default overview.
func (s *Service) Refresh(ctx context.Context) error {
	gen, err := s.cache.Generation(ctx)
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := s.computeDashboard(gctx)
		if err != nil {
			return err
		}
		return s.cache.Put(gctx, snapshotKey(dashboardKey, gen), d, s.ttl)
	})
	g.Go(func() error {
		o, err := s.computeOverview(gctx, DefaultDays, s.top)
		if err != nil {
			return err
		}
		return s.cache.Put(gctx, snapshotKey(overviewKey, gen), o, s.ttl)
	})
	return g.Wait()
}

func (s *Service) computeDashboard(ctx context.Context) (Dashboard, error) {
	var (
		members []member.Member
		present []attendance.Record
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		members, err = s.members.List(gctx)
		return err
	})
	g.Go(func() (err error) {
		present, err = s.attendance.List(gctx, attendance.Filter{Status: attendance.Present})
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	d := Dashboard{
		TotalMembers: len(members),
		Demographics: ComputeDemographics(members),
		GeneratedAt:  s.now().UTC(),
	}
	if high, low, ok := ExtremalAttendance(DailyAttendanceSeries(present, "", "")); ok {
		d.Highest, d.Lowest = &high, &low
	}
	return d, nil
}

func (s *Service) computeOverview(ctx context.Context, days, top int) (Overview, error) {
	now := s.now()
	from, to := calendar.Window(now, days)

	var (
		members []member.Member
		records []attendance.Record
		present []attendance.Record
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		members, err = s.members.List(gctx)
		return err
	})
	g.Go(func() (err error) {
		records, err = s.attendance.List(gctx, attendance.Filter{From: from, To: to})
		return err
	})
	// Top attenders rank over the whole history, not just the window.
	g.Go(func() (err error) {
		present, err = s.attendance.List(gctx, attendance.Filter{Status: attendance.Present})
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}

	return Overview{
		From:         from,
		To:           to,
		Series:       DailyAttendanceSeries(records, from, to),
		TopAttenders: TopAttenders(members, present, top),
		Categories:   CategoryCounts(members, DefaultCategories),
		Demographics: ComputeDemographics(members),
		GeneratedAt:  now.UTC(),
	}, nil
}

func snapshotKey(name string, gen uint64) string {
	return name + "@" + strconv.FormatUint(gen, 10)
}

// generation reports the key generation to read and write under. false means
// the cache is unreachable and the result should be computed without it.
func (s *Service) generation(ctx context.Context) (uint64, bool) {
	gen, err := s.cache.Generation(ctx)
	if err != nil {
		s.log.Warn("snapshot generation unavailable", zap.Error(err))
		return 0, false
	}
	return gen, true
}

func (s *Service) lookup(ctx context.Context, name string, gen uint64, dst any) bool {
	ok, err := s.cache.Get(ctx, snapshotKey(name, gen), dst)
	switch {
	case err != nil:
		s.log.Warn("snapshot lookup failed", zap.String("key", name), zap.Error(err))
		metrics.CacheLookups.WithLabelValues(name, "error").Inc()
		return false
	case ok:
		metrics.CacheLookups.WithLabelValues(name, "hit").Inc()
	default:
		metrics.CacheLookups.WithLabelValues(name, "miss").Inc()
	}
	return ok
}

func (s *Service) store(ctx context.Context, name string, gen uint64, v any) {
	if err := s.cache.Put(ctx, snapshotKey(name, gen), v, s.ttl); err != nil {
		s.log.Warn("snapshot store failed", zap.String("key", name), zap.Error(err))
	}
}
