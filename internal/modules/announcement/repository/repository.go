package repository

import (
	"context"

	"anoa.com/lazylegends/internal/entity"
	"gorm.io/gorm"
)

type AnnouncementRepository interface {
	Get(ctx context.Context) (*entity.Announcement, error)
	Save(ctx context.Context, text string) (*entity.Announcement, error)
}

type announcementRepository struct {
	db *gorm.DB
}

func NewAnnouncementRepository(db *gorm.DB) AnnouncementRepository {
	return &announcementRepository{db: db}
}

func (r *announcementRepository) Get(ctx context.Context) (*entity.Announcement, error) {
	var a entity.Announcement
	if err := r.db.WithContext(ctx).First(&a, entity.SingletonID).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *announcementRepository) Save(ctx context.Context, text string) (*entity.Announcement, error) {
	a := entity.Announcement{ID: entity.SingletonID, Text: text}
	if err := r.db.WithContext(ctx).Save(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}
