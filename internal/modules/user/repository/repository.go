package repository

import (
	"context"
	"time"

	"anoa.com/lazylegends/internal/entity"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User, activity *entity.ActivityLog) error
	FindByHandle(ctx context.Context, handle string) (*entity.User, error)
	FindAll(ctx context.Context) ([]*entity.User, error)
	UpdateImage(ctx context.Context, handle string, imageURL *string) error
	UpdateWallet(ctx context.Context, handle, wallet string) error
	Delete(ctx context.Context, handle string) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create inserts the user and, when given, its first activity entry in one transaction.
func (r *userRepository) Create(ctx context.Context, user *entity.User, activity *entity.ActivityLog) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}

		if activity != nil {
			activity.Handle = user.Handle
			if activity.CreatedAt.IsZero() {
				activity.CreatedAt = time.Now()
			}
			if err := tx.Create(activity).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *userRepository) FindByHandle(ctx context.Context, handle string) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).
		Where("handle = ?", handle).
		First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindAll(ctx context.Context) ([]*entity.User, error) {
	var users []*entity.User
	if err := r.db.WithContext(ctx).
		Order("points DESC, handle ASC").
		Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) UpdateImage(ctx context.Context, handle string, imageURL *string) error {
	return r.update(ctx, handle, "image_url", imageURL)
}

func (r *userRepository) UpdateWallet(ctx context.Context, handle, wallet string) error {
	return r.update(ctx, handle, "wallet", wallet)
}

func (r *userRepository) update(ctx context.Context, handle, column string, value interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("handle = ?", handle).
		Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes the user; season_rewards and activity_logs cascade.
func (r *userRepository) Delete(ctx context.Context, handle string) error {
	res := r.db.WithContext(ctx).Where("handle = ?", handle).Delete(&entity.User{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
