package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"anoa.com/lazylegends/internal/entity"
	leaderboardDto "anoa.com/lazylegends/internal/modules/leaderboard/dto"
	seasonRepo "anoa.com/lazylegends/internal/modules/season/repository"
	trackerRepo "anoa.com/lazylegends/internal/modules/tracker/repository"
	"anoa.com/lazylegends/internal/testutil"
	"anoa.com/lazylegends/pkg/social"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeSearcher struct {
	mu      sync.Mutex
	posts   map[string][]social.Post
	errs    map[string]error
	calls   []string
	onCall  func(handle string)
	queries []social.Query
}

func (f *fakeSearcher) Search(_ context.Context, q social.Query) ([]social.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, q.Handle)
	f.queries = append(f.queries, q)
	if f.onCall != nil {
		f.onCall(q.Handle)
	}
	if err := f.errs[q.Handle]; err != nil {
		return nil, err
	}
	return f.posts[q.Handle], nil
}

type fixedMultiplier int

func (m fixedMultiplier) MultiplierAt(context.Context, time.Time) (int, error) { return int(m), nil }

type recordingPublisher struct {
	events []leaderboardDto.ActivityEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e leaderboardDto.ActivityEvent) error {
	p.events = append(p.events, e)
	return nil
}

type sleepCall struct {
	d     time.Duration
	after []string
}

type fixture struct {
	db        *gorm.DB
	svc       *pollerService
	searcher  *fakeSearcher
	publisher *recordingPublisher
	sleeps    []sleepCall
	now       time.Time
}

var opts = Options{
	Hashtag:           "#LazyLegends",
	PointsPerPost:     1,
	PageSize:          10,
	MinInterval:       30 * time.Minute,
	UserDelay:         30 * time.Second,
	RateLimitCooldown: 5 * time.Minute,
}

func newFixture(t *testing.T, seasonStart time.Time, multiplier int) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	testutil.SeedSeason(t, db, seasonStart)

	f := &fixture{
		db:        db,
		searcher:  &fakeSearcher{posts: map[string][]social.Post{}, errs: map[string]error{}},
		publisher: &recordingPublisher{},
		now:       seasonStart.Add(48 * time.Hour),
	}
	f.svc = NewPollerService(
		trackerRepo.NewTrackerRepository(db),
		seasonRepo.NewSeasonRepository(db),
		fixedMultiplier(multiplier),
		f.searcher,
		f.publisher,
		opts,
	).(*pollerService)
	f.svc.now = func() time.Time { return f.now }
	f.svc.sleep = func(_ context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, sleepCall{d: d, after: append([]string(nil), f.searcher.calls...)})
		return nil
	}
	return f
}

func (f *fixture) setCursor(t *testing.T, handle string, at time.Time) {
	t.Helper()
	require.NoError(t, f.db.Model(&entity.User{}).Where("handle = ?", handle).Update("last_checked_at", at).Error)
}

func (f *fixture) user(t *testing.T, handle string) entity.User {
	t.Helper()
	var u entity.User
	require.NoError(t, f.db.First(&u, "handle = ?", handle).Error)
	return u
}

func TestRunCreditsOnlyQualifyingPosts(t *testing.T) {
	seasonStart := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, seasonStart, 2)
	testutil.SeedUser(t, f.db, "@amy", 0, "")

	last := seasonStart.Add(time.Hour)
	f.setCursor(t, "@amy", last)
	f.searcher.posts["@amy"] = []social.Post{
		{ID: "1", CreatedAt: last.Add(time.Minute)},
		{ID: "2", CreatedAt: last.Add(2 * time.Minute)},
		{ID: "3", CreatedAt: seasonStart.Add(-5 * time.Minute)},
		{ID: "4", CreatedAt: last},
	}

	report, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, 1, report.Credited)
	assert.Equal(t, 4, report.Points)

	u := f.user(t, "@amy")
	assert.Equal(t, 4, u.Points)
	require.NotNil(t, u.LastCheckedAt)
	assert.True(t, u.LastCheckedAt.Equal(f.now))

	var logs []entity.ActivityLog
	require.NoError(t, f.db.Find(&logs, "handle = ?", "@amy").Error)
	require.Len(t, logs, 1)
	assert.Equal(t, entity.ReasonPosts, logs[0].Reason)
	assert.Equal(t, 2, logs[0].PostCount)
	assert.Equal(t, 2, logs[0].Multiplier)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, 4, f.publisher.events[0].Points)

	assert.True(t, f.searcher.queries[0].Since.Equal(last))
	assert.Equal(t, "#LazyLegends", f.searcher.queries[0].Hashtag)
}

func TestRunFirstCheckIgnoresPostsBeforeSeason(t *testing.T) {
	seasonStart := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, seasonStart, 1)
	testutil.SeedUser(t, f.db, "@bob", 0, "")
	f.searcher.posts["@bob"] = []social.Post{
		{ID: "1", CreatedAt: seasonStart.Add(-time.Hour)},
		{ID: "2", CreatedAt: seasonStart.Add(time.Hour)},
	}

	report, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Points)
	assert.Equal(t, 1, f.user(t, "@bob").Points)
}

func TestRunAdvancesCursorWithoutPoints(t *testing.T) {
	seasonStart := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, seasonStart, 1)
	testutil.SeedUser(t, f.db, "@cat", 3, "")

	report, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Credited)

	u := f.user(t, "@cat")
	assert.Equal(t, 3, u.Points)
	require.NotNil(t, u.LastCheckedAt)
	assert.True(t, u.LastCheckedAt.Equal(f.now))
	assert.Empty(t, f.publisher.events)
}

func TestRunSkipsRecentlyCheckedUsers(t *testing.T) {
	seasonStart := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, seasonStart, 1)
	testutil.SeedUser(t, f.db, "@amy", 0, "")
	f.setCursor(t, "@amy", f.now.Add(-10*time.Minute))

	report, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, f.searcher.calls)
}

func TestRunRateLimitCoolsDownAndKeepsCursor(t *testing.T) {
	seasonStart := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, seasonStart, 1)
	testutil.SeedUser(t, f.db, "@amy", 0, "")
	testutil.SeedUser(t, f.db, "@bob", 0, "")

	aCursor := seasonStart.Add(time.Hour)
	f.setCursor(t, "@amy", aCursor)
	f.searcher.errs["@amy"] = social.ErrRateLimited
	f.searcher.posts["@bob"] = []social.Post{{ID: "1", CreatedAt: seasonStart.Add(time.Hour)}}

	report, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.RateLimited)
	assert.Equal(t, []string{"@amy", "@bob"}, f.searcher.calls)

	// The cooldown happens after A and before B is queried.
	require.NotEmpty(t, f.sleeps)
	assert.Equal(t, opts.RateLimitCooldown, f.sleeps[0].d)
	assert.Equal(t, []string{"@amy"}, f.sleeps[0].after)

	a := f.user(t, "@amy")
	require.NotNil(t, a.LastCheckedAt)
	assert.True(t, a.LastCheckedAt.Equal(aCursor))
	assert.Equal(t, 1, f.user(t, "@bob").Points)
}

func TestRunOtherErrorsContinue(t *testing.T) {
	seasonStart := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, seasonStart, 1)
	testutil.SeedUser(t, f.db, "@amy", 0, "")
	testutil.SeedUser(t, f.db, "@bob", 0, "")
	f.searcher.errs["@amy"] = errors.New("boom")
	f.searcher.posts["@bob"] = []social.Post{{ID: "1", CreatedAt: seasonStart.Add(time.Hour)}}

	report, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Errors)
	assert.Nil(t, f.user(t, "@amy").LastCheckedAt)
	assert.Equal(t, 1, f.user(t, "@bob").Points)

	// One inter-user delay between the two users, none after the last.
	require.Len(t, f.sleeps, 1)
	assert.Equal(t, opts.UserDelay, f.sleeps[0].d)
}

func TestRunWithoutSeasonSkips(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedUser(t, db, "@amy", 0, "")
	searcher := &fakeSearcher{}
	svc := NewPollerService(
		trackerRepo.NewTrackerRepository(db),
		seasonRepo.NewSeasonRepository(db),
		fixedMultiplier(1),
		searcher,
		nil,
		opts,
	)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Checked)
	assert.Empty(t, searcher.calls)
}

func TestRunStopsWhenSeasonRollsOver(t *testing.T) {
	seasonStart := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, seasonStart, 1)
	testutil.SeedUser(t, f.db, "@amy", 0, "")
	testutil.SeedUser(t, f.db, "@bob", 0, "")
	f.searcher.posts["@amy"] = []social.Post{
		{ID: "1", CreatedAt: seasonStart.Add(time.Hour)},
		{ID: "2", CreatedAt: seasonStart.Add(2 * time.Hour)},
	}
	f.searcher.posts["@bob"] = []social.Post{{ID: "3", CreatedAt: seasonStart.Add(time.Hour)}}

	seasons := seasonRepo.NewSeasonRepository(f.db)
	rolledOver := false
	f.searcher.onCall = func(handle string) {
		if handle != "@amy" || rolledOver {
			return
		}
		rolledOver = true
		_, err := seasons.Rollover(context.Background(), []int64{100, 50, 25}, f.now)
		require.NoError(t, err)
	}

	report, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Aborted)
	assert.Zero(t, report.Points)
	assert.Equal(t, []string{"@amy"}, f.searcher.calls)

	amy := f.user(t, "@amy")
	assert.Equal(t, 0, amy.Points)
	assert.Nil(t, amy.LastCheckedAt)

	var logs int64
	require.NoError(t, f.db.Model(&entity.ActivityLog{}).Count(&logs).Error)
	assert.Zero(t, logs)
	assert.Empty(t, f.publisher.events)
}

func TestRunStopsWhenSeasonRollsOverBeforeCursorUpdate(t *testing.T) {
	seasonStart := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, seasonStart, 1)
	testutil.SeedUser(t, f.db, "@cat", 0, "")

	f.searcher.onCall = func(string) {
		_, err := seasonRepo.NewSeasonRepository(f.db).Rollover(context.Background(), []int64{100, 50, 25}, f.now)
		require.NoError(t, err)
	}

	report, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Aborted)
	assert.Nil(t, f.user(t, "@cat").LastCheckedAt)
}

func TestRunIsSingleFlight(t *testing.T) {
	seasonStart := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, seasonStart, 1)
	testutil.SeedUser(t, f.db, "@amy", 0, "")

	var nested error
	f.searcher.onCall = func(string) {
		_, nested = f.svc.Run(context.Background())
	}

	_, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, nested, ErrPollInProgress)
	assert.False(t, f.svc.Running())
}

func TestRunStopsOnCancel(t *testing.T) {
	seasonStart := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, seasonStart, 1)
	testutil.SeedUser(t, f.db, "@amy", 0, "")
	testutil.SeedUser(t, f.db, "@bob", 0, "")

	ctx, cancel := context.WithCancel(context.Background())
	f.svc.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := f.svc.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"@amy"}, f.searcher.calls)
}

func TestCountQualifying(t *testing.T) {
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	posts := []social.Post{
		{CreatedAt: start},
		{CreatedAt: start.Add(-time.Second)},
		{CreatedAt: start.Add(time.Hour)},
	}
	assert.Equal(t, 1, CountQualifying(posts, start, start))
	assert.Equal(t, 2, CountQualifying(posts, start.Add(-time.Minute), start))
}
