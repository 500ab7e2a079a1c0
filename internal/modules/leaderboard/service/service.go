package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"anoa.com/lazylegends/internal/entity"
	leaderboardDto "anoa.com/lazylegends/internal/modules/leaderboard/dto"
	leaderboardRepo "anoa.com/lazylegends/internal/modules/leaderboard/repository"
	"anoa.com/lazylegends/pkg/apperror"
	"gorm.io/gorm"
)

const (
	DefaultLimit        = 10
	MaxLeaderboardLimit = 100
	MaxActivityLimit    = 50

	// SundayMultiplier applies on Sundays without an explicit bonus_days row.
	SundayMultiplier = 2

	dateLayout = "2006-01-02"
)

var ErrBonusDayNotFound = apperror.New(http.StatusNotFound, "bonus day not found", apperror.ErrNotFound)

type LeaderboardService interface {
	GetLeaderboard(ctx context.Context, limit int) ([]leaderboardDto.LeaderboardEntry, error)
	GetRecentActivity(ctx context.Context, limit int) ([]leaderboardDto.ActivityEntry, error)
	GetBonusDay(ctx context.Context) (*leaderboardDto.BonusDayResponse, error)
	MultiplierAt(ctx context.Context, at time.Time) (int, error)
	ListBonusDays(ctx context.Context) ([]entity.BonusDay, error)
	SetBonusDay(ctx context.Context, input leaderboardDto.BonusDayInput) (*entity.BonusDay, error)
	DeleteBonusDay(ctx context.Context, date string) error
}

type leaderboardService struct {
	repo leaderboardRepo.LeaderboardRepository
	now  func() time.Time
}

func NewLeaderboardService(repo leaderboardRepo.LeaderboardRepository) LeaderboardService {
	return &leaderboardService{
		repo: repo,
		now:  time.Now,
	}
}

func clamp(limit, max int) int {
	if limit < 1 {
		return DefaultLimit
	}
	if limit > max {
		return max
	}
	return limit
}

func (s *leaderboardService) GetLeaderboard(ctx context.Context, limit int) ([]leaderboardDto.LeaderboardEntry, error) {
	users, err := s.repo.GetTopUsers(ctx, clamp(limit, MaxLeaderboardLimit))
	if err != nil {
		return nil, err
	}

	entries := make([]leaderboardDto.LeaderboardEntry, 0, len(users))
	for i, u := range users {
		entries = append(entries, leaderboardDto.LeaderboardEntry{
			Position: i + 1,
			Handle:   u.Handle,
			Points:   u.Points,
			Image:    u.ImageURL,
		})
	}
	return entries, nil
}

func (s *leaderboardService) GetRecentActivity(ctx context.Context, limit int) ([]leaderboardDto.ActivityEntry, error) {
	logs, err := s.repo.GetRecentActivity(ctx, clamp(limit, MaxActivityLimit))
	if err != nil {
		return nil, err
	}

	entries := make([]leaderboardDto.ActivityEntry, 0, len(logs))
	for _, l := range logs {
		entries = append(entries, leaderboardDto.ActivityEntry{
			Handle:     l.Handle,
			Points:     l.Points,
			Multiplier: l.Multiplier,
			Reason:     l.Reason,
			Timestamp:  l.CreatedAt,
		})
	}
	return entries, nil
}

func (s *leaderboardService) GetBonusDay(ctx context.Context) (*leaderboardDto.BonusDayResponse, error) {
	now := s.now()
	m, err := s.MultiplierAt(ctx, now)
	if err != nil {
		return nil, err
	}
	return &leaderboardDto.BonusDayResponse{
		IsBonusDay: m > 1,
		Multiplier: m,
		Date:       now.Format(dateLayout),
	}, nil
}

// MultiplierAt returns the scheduled multiplier for at's calendar date,
// falling back to the Sunday rule.
func (s *leaderboardService) MultiplierAt(ctx context.Context, at time.Time) (int, error) {
	day, err := s.repo.FindBonusDay(ctx, at.Format(dateLayout))
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}
	return Multiplier(at, day), nil
}

// Multiplier applies the bonus rule: an explicit schedule entry wins, otherwise Sunday doubles.
func Multiplier(at time.Time, scheduled *entity.BonusDay) int {
	if scheduled != nil && scheduled.Multiplier >= 1 {
		return scheduled.Multiplier
	}
	if at.Weekday() == time.Sunday {
		return SundayMultiplier
	}
	return 1
}

func (s *leaderboardService) ListBonusDays(ctx context.Context) ([]entity.BonusDay, error) {
	return s.repo.ListBonusDays(ctx)
}

func (s *leaderboardService) SetBonusDay(ctx context.Context, input leaderboardDto.BonusDayInput) (*entity.BonusDay, error) {
	if _, err := time.Parse(dateLayout, input.Date); err != nil {
		return nil, apperror.Validation("date must be YYYY-MM-DD")
	}
	if input.Multiplier < 1 {
		return nil, apperror.Validation("multiplier must be at least 1")
	}

	day := &entity.BonusDay{Date: input.Date, Multiplier: input.Multiplier}
	if err := s.repo.SaveBonusDay(ctx, day); err != nil {
		return nil, err
	}
	return day, nil
}

func (s *leaderboardService) DeleteBonusDay(ctx context.Context, date string) error {
	if err := s.repo.DeleteBonusDay(ctx, date); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBonusDayNotFound
		}
		return err
	}
	return nil
}
