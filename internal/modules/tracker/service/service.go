package service

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"anoa.com/lazylegends/internal/entity"
	leaderboardDto "anoa.com/lazylegends/internal/modules/leaderboard/dto"
	leaderboardService "anoa.com/lazylegends/internal/modules/leaderboard/service"
	"anoa.com/lazylegends/internal/modules/tracker/dto"
	trackerRepo "anoa.com/lazylegends/internal/modules/tracker/repository"
	"anoa.com/lazylegends/pkg/apperror"
	"anoa.com/lazylegends/pkg/logger"
	"anoa.com/lazylegends/pkg/social"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var ErrPollInProgress = apperror.New(http.StatusConflict, "a poll run is already in progress", apperror.ErrConflict)

type SeasonSource interface {
	GetCurrent(ctx context.Context) (*entity.Season, error)
}

type MultiplierSource interface {
	MultiplierAt(ctx context.Context, at time.Time) (int, error)
}

type Options struct {
	Hashtag           string
	PointsPerPost     int
	PageSize          int
	MinInterval       time.Duration
	UserDelay         time.Duration
	RateLimitCooldown time.Duration
}

type PollerService interface {
	// Run performs one pass over every user. It fails with ErrPollInProgress if a pass is active.
	Run(ctx context.Context) (*dto.RunReport, error)
	// Trigger starts a pass in the background and returns immediately.
	Trigger(ctx context.Context) error
	Running() bool
}

type pollerService struct {
	repo       trackerRepo.TrackerRepository
	seasons    SeasonSource
	multiplier MultiplierSource
	searcher   social.Searcher
	publisher  leaderboardService.ActivityPublisher
	opts       Options

	running atomic.Bool
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewPollerService(
	repo trackerRepo.TrackerRepository,
	seasons SeasonSource,
	multiplier MultiplierSource,
	searcher social.Searcher,
	publisher leaderboardService.ActivityPublisher,
	opts Options,
) PollerService {
	if publisher == nil {
		publisher = leaderboardService.NoopPublisher{}
	}
	return &pollerService{
		repo:       repo,
		seasons:    seasons,
		multiplier: multiplier,
		searcher:   searcher,
		publisher:  publisher,
		opts:       opts,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pollerService) Running() bool {
	return p.running.Load()
}

func (p *pollerService) Run(ctx context.Context) (*dto.RunReport, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrPollInProgress
	}
	defer p.running.Store(false)

	return p.run(ctx)
}

func (p *pollerService) Trigger(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrPollInProgress
	}

	go func() {
		defer p.running.Store(false)
		if _, err := p.run(ctx); err != nil {
			logger.WithError(err).Error("Manual poll run failed")
		}
	}()
	return nil
}

func (p *pollerService) run(ctx context.Context) (*dto.RunReport, error) {
	report := &dto.RunReport{}

	season, err := p.seasons.GetCurrent(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Warn("No season has started, skipping poll run")
		return report, nil
	}
	if err != nil {
		return nil, err
	}

	multiplier, err := p.multiplier.MultiplierAt(ctx, p.now())
	if err != nil {
		return nil, err
	}

	cursors, err := p.repo.ListCursors(ctx)
	if err != nil {
		return nil, err
	}

	for i, cursor := range cursors {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		called, err := p.pollUser(ctx, cursor, season, multiplier, report)
		if errors.Is(err, trackerRepo.ErrSeasonChanged) {
			report.Aborted = true
			logger.WithFields(logrus.Fields{
				"season_id": season.ID,
				"handle":    cursor.Handle,
			}).Warn("Season rolled over during poll run, stopping")
			return report, nil
		}
		if errors.Is(err, social.ErrRateLimited) {
			report.RateLimited++
			logger.WithFields(logrus.Fields{
				"handle":   cursor.Handle,
				"cooldown": p.opts.RateLimitCooldown.String(),
			}).Warn("Social search rate limited, cooling down")
			if err := p.sleep(ctx, p.opts.RateLimitCooldown); err != nil {
				return report, err
			}
		} else if err != nil {
			report.Errors++
			logger.WithFields(logrus.Fields{
				"handle": cursor.Handle,
				"error":  err.Error(),
			}).Error("Failed to poll user posts")
		}

		if called && i < len(cursors)-1 {
			if err := p.sleep(ctx, p.opts.UserDelay); err != nil {
				return report, err
			}
		}
	}

	logger.WithFields(logrus.Fields{
		"season_id":    season.ID,
		"multiplier":   multiplier,
		"checked":      report.Checked,
		"skipped":      report.Skipped,
		"credited":     report.Credited,
		"points":       report.Points,
		"errors":       report.Errors,
		"rate_limited": report.RateLimited,
	}).Info("Poll run finished")

	return report, nil
}

// pollUser checks one user's new posts. called reports whether the search API was hit.
func (p *pollerService) pollUser(ctx context.Context, cursor trackerRepo.Cursor, season *entity.Season, multiplier int, report *dto.RunReport) (called bool, err error) {
	now := p.now()
	lastTime := season.StartedAt
	if cursor.LastCheckedAt != nil {
		lastTime = *cursor.LastCheckedAt
	}

	if now.Sub(lastTime) < p.opts.MinInterval {
		report.Skipped++
		return false, nil
	}

	posts, err := p.searcher.Search(ctx, social.Query{
		Handle:  cursor.Handle,
		Hashtag: p.opts.Hashtag,
		Since:   lastTime,
		Limit:   p.opts.PageSize,
	})
	if err != nil {
		return true, err
	}
	report.Checked++

	count := CountQualifying(posts, lastTime, season.StartedAt)
	points := count * p.opts.PointsPerPost * multiplier
	if points <= 0 {
		return true, p.repo.UpdateCursor(ctx, season.ID, cursor.Handle, now)
	}

	seasonID := season.ID
	log := &entity.ActivityLog{
		Handle:     cursor.Handle,
		Points:     points,
		Multiplier: multiplier,
		PostCount:  count,
		Reason:     entity.ReasonPosts,
		SeasonID:   &seasonID,
		CreatedAt:  now,
	}
	if err := p.repo.CreditPoints(ctx, season.ID, log, now); err != nil {
		return true, err
	}
	report.Credited++
	report.Points += points

	logger.WithFields(logrus.Fields{
		"handle":     cursor.Handle,
		"season_id":  season.ID,
		"points":     points,
		"posts":      count,
		"multiplier": multiplier,
	}).Info("Credited points")

	event := leaderboardDto.ActivityEvent{
		Handle:     cursor.Handle,
		Points:     points,
		Multiplier: multiplier,
		PostCount:  count,
		Timestamp:  now,
	}
	if err := p.publisher.Publish(ctx, event); err != nil {
		logger.WithError(err).Warn("Failed to publish activity event")
	}
	return true, nil
}

// CountQualifying counts posts strictly newer than lastTime and not before the season start.
func CountQualifying(posts []social.Post, lastTime, seasonStart time.Time) int {
	n := 0
	for _, post := range posts {
		if post.CreatedAt.After(lastTime) && !post.CreatedAt.Before(seasonStart) {
			n++
		}
	}
	return n
}
