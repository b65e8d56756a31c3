package insights_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"membership/internal/attendance"
	"membership/internal/cache"
	"membership/internal/insights"
	"membership/internal/member"
	"membership/internal/queue"
)

type fakeMembers struct {
	mu      sync.Mutex
	members []member.Member
	calls   atomic.Int32
	err     error

	// When hold is set the next List snapshots the members, closes entered
	// and waits for hold to close before returning.
	hold    chan struct{}
	entered chan struct{}
}

func (f *fakeMembers) List(context.Context) ([]member.Member, error) {
	f.calls.Add(1)
	f.mu.Lock()
	out := append([]member.Member(nil), f.members...)
	hold, entered := f.hold, f.entered
	f.hold = nil
	f.mu.Unlock()
	if hold != nil {
		close(entered)
		<-hold
	}
	return out, f.err
}

func (f *fakeMembers) add(m member.Member) {
	f.mu.Lock()
	f.members = append(f.members, m)
	f.mu.Unlock()
}

type fakeAttendance struct {
	records []attendance.Record
}

func (f *fakeAttendance) List(_ context.Context, flt attendance.Filter) ([]attendance.Record, error) {
	var out []attendance.Record
	for _, r := range f.records {
		if flt.Status != "" && r.Status != flt.Status {
			continue
		}
		if (flt.From != "" && r.Date < flt.From) || (flt.To != "" && r.Date > flt.To) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

var today = time.Date(2024, 3, 17, 12, 0, 0, 0, time.UTC)

func fixture() (*fakeMembers, *fakeAttendance) {
	members := &fakeMembers{members: []member.Member{
		{ID: "1", Fields: member.Fields{Name: "Ann", Gender: member.Female, IsBaptized: true}},
		{ID: "2", Fields: member.Fields{Name: "Tom", Gender: member.Male, IsTeenager: true}},
	}}
	records := &fakeAttendance{records: []attendance.Record{
		{MemberID: "1", Date: "2024-03-17", Status: attendance.Present, Communion: true},
		{MemberID: "2", Date: "2024-03-17", Status: attendance.Present},
		{MemberID: "1", Date: "2024-03-10", Status: attendance.Present},
		{MemberID: "2", Date: "2024-03-10", Status: attendance.Absent},
		{MemberID: "1", Date: "2024-02-01", Status: attendance.Absent},
	}}
	return members, records
}

func TestDashboardIsCachedUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	members, records := fixture()
	feed := queue.NewInMemory(4)
	svc := insights.NewService(members, records, cache.NewMemory(), insights.Options{
		Now:  func() time.Time { return today },
		Feed: feed,
	})

	d, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, d.TotalMembers)
	assert.Equal(t, insights.Demographics{Male: 1, Female: 1, Teenager: 1, Adult: 1}, d.Demographics)
	require.NotNil(t, d.Highest)
	assert.Equal(t, "2024-03-17", d.Highest.Date)
	assert.Equal(t, 2, d.Highest.Present)
	assert.Equal(t, "2024-03-10", d.Lowest.Date, "lowest is computed from present records only")

	_, err = svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, members.calls.Load(), "second read is served from cache")

	svc.Changed(ctx, "member.created")
	_, err = svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, members.calls.Load())

	ch, err := feed.Consume(ctx)
	require.NoError(t, err)
	msg := <-ch
	assert.Equal(t, queue.TypeInsightsStale, msg.Type)
	assert.Equal(t, "member.created", msg.Reason)
}

func TestDashboardWithoutAttendance(t *testing.T) {
	svc := insights.NewService(&fakeMembers{}, &fakeAttendance{}, cache.NewMemory(), insights.Options{})
	d, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Zero(t, d.TotalMembers)
	assert.Nil(t, d.Highest)
	assert.Nil(t, d.Lowest)
}

func TestOverviewWindow(t *testing.T) {
	ctx := context.Background()
	members, records := fixture()
	svc := insights.NewService(members, records, cache.NewMemory(), insights.Options{
		Now: func() time.Time { return today },
		Top: 1,
	})

	o, err := svc.Overview(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10", o.From)
	assert.Equal(t, "2024-03-17", o.To)
	require.Len(t, o.Series, 2)
	assert.Equal(t, "2024-03-17", o.Series[0].Date)
	assert.Equal(t, []insights.Attender{{MemberID: "1", Name: "Ann", Present: 2}}, o.TopAttenders)
	assert.Equal(t, []insights.CategoryCount{
		{Label: "Baptized", Count: 1},
		{Label: "Communion", Count: 0},
		{Label: "Teenager", Count: 1},
	}, o.Categories)

	wide, err := svc.Overview(ctx, 60, 5)
	require.NoError(t, err)
	assert.Len(t, wide.Series, 3)
	assert.Len(t, wide.TopAttenders, 2)
}

func TestTopAttendersSpanWholeHistory(t *testing.T) {
	members := &fakeMembers{members: []member.Member{
		{ID: "1", Fields: member.Fields{Name: "Ann", Gender: member.Female}},
		{ID: "2", Fields: member.Fields{Name: "Tom", Gender: member.Male}},
	}}
	records := &fakeAttendance{records: []attendance.Record{
		{MemberID: "2", Date: "2024-01-07", Status: attendance.Present},
		{MemberID: "2", Date: "2024-01-14", Status: attendance.Present},
		{MemberID: "2", Date: "2024-01-21", Status: attendance.Present},
		{MemberID: "1", Date: "2024-01-07", Status: attendance.Absent},
		{MemberID: "1", Date: "2024-03-17", Status: attendance.Present},
	}}
	svc := insights.NewService(members, records, cache.NewMemory(), insights.Options{
		Now: func() time.Time { return today },
	})

	o, err := svc.Overview(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, o.Series, 1, "the series stays inside the window")
	assert.Equal(t, []insights.Attender{
		{MemberID: "2", Name: "Tom", Present: 3},
		{MemberID: "1", Name: "Ann", Present: 1},
	}, o.TopAttenders)
}

func TestWriteDuringComputeIsNotServed(t *testing.T) {
	ctx := context.Background()
	members, records := fixture()
	hold, entered := make(chan struct{}), make(chan struct{})
	members.hold, members.entered = hold, entered
	svc := insights.NewService(members, records, cache.NewMemory(), insights.Options{
		Now: func() time.Time { return today },
	})

	done := make(chan insights.Dashboard, 1)
	go func() {
		d, err := svc.Dashboard(ctx)
		assert.NoError(t, err)
		done <- d
	}()

	<-entered
	members.add(member.Member{ID: "3", Fields: member.Fields{Name: "Eve", Gender: member.Female}})
	svc.Changed(ctx, "member.created")
	close(hold)
	assert.Equal(t, 2, (<-done).TotalMembers, "the in-flight read saw the old rows")

	d, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, d.TotalMembers, "the snapshot built before the write is not cached")
}

func TestRefreshWarmsCache(t *testing.T) {
	ctx := context.Background()
	members, records := fixture()
	svc := insights.NewService(members, records, cache.NewMemory(), insights.Options{Now: func() time.Time { return today }})

	require.NoError(t, svc.Refresh(ctx))
	calls := members.calls.Load()

	_, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	_, err = svc.Overview(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, calls, members.calls.Load())
}

func TestLoadFailureIsReturned(t *testing.T) {
	boom := errors.New("db down")
	svc := insights.NewService(&fakeMembers{err: boom}, &fakeAttendance{}, cache.NewMemory(), insights.Options{})

	_, err := svc.Dashboard(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, svc.Refresh(context.Background()), boom)
}
