package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"anoa.com/lazylegends/internal/bootstrap"
	"anoa.com/lazylegends/internal/modules/announcement/dto"
	"anoa.com/lazylegends/internal/modules/announcement/repository"
	"anoa.com/lazylegends/pkg/apperror"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"
)

const MaxAnnouncementLength = 500

// MultiplierSource reports the point multiplier in effect at a given instant.
type MultiplierSource interface {
	MultiplierAt(ctx context.Context, at time.Time) (int, error)
}

type AnnouncementService interface {
	GetAnnouncement(ctx context.Context) (*dto.AnnouncementResponse, error)
	UpdateAnnouncement(ctx context.Context, text string) (*dto.AnnouncementResponse, error)
}

type announcementService struct {
	repo       repository.AnnouncementRepository
	multiplier MultiplierSource
	sanitizer  *bluemonday.Policy
	now        func() time.Time
}

func NewAnnouncementService(repo repository.AnnouncementRepository, multiplier MultiplierSource) AnnouncementService {
	return &announcementService{
		repo:       repo,
		multiplier: multiplier,
		sanitizer:  bluemonday.StrictPolicy(),
		now:        time.Now,
	}
}

// GetAnnouncement returns the stored text, with the bonus notice appended on bonus days.
func (s *announcementService) GetAnnouncement(ctx context.Context) (*dto.AnnouncementResponse, error) {
	text := bootstrap.DefaultAnnouncement
	a, err := s.repo.Get(ctx)
	switch {
	case err == nil:
		text = a.Text
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	m, err := s.multiplier.MultiplierAt(ctx, s.now())
	if err != nil {
		return nil, err
	}

	return &dto.AnnouncementResponse{Text: text + bonusSuffix(m)}, nil
}

func bonusSuffix(multiplier int) string {
	if multiplier <= 1 {
		return ""
	}
	return fmt.Sprintf(" 🦥 Today is a Bonus Day: all posts earn %dx SloMo Points!", multiplier)
}

func (s *announcementService) UpdateAnnouncement(ctx context.Context, text string) (*dto.AnnouncementResponse, error) {
	clean := s.clean(text)
	if clean == "" {
		return nil, apperror.Validation("announcement text is required")
	}
	if utf8.RuneCountInString(clean) > MaxAnnouncementLength {
		return nil, apperror.Validation(fmt.Sprintf("announcement must be at most %d characters", MaxAnnouncementLength))
	}

	a, err := s.repo.Save(ctx, clean)
	if err != nil {
		return nil, err
	}
	return &dto.AnnouncementResponse{Text: a.Text}, nil
}

// clean strips markup, decodes entities and collapses whitespace.
func (s *announcementService) clean(text string) string {
	sanitized := s.sanitizer.Sanitize(text)
	return strings.Join(strings.Fields(html.UnescapeString(sanitized)), " ")
}
