package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/logger"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/types"
)

type UserProfileRepo interface {
	Create(ctx context.Context, tx *gorm.DB, profiles []*types.UserProfile) ([]*types.UserProfile, error)
	GetByID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.UserProfile, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, userID uuid.UUID, fields map[string]interface{}) error
}

type userProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserProfileRepo(db *gorm.DB, baseLog *logger.Logger) UserProfileRepo {
	repoLog := baseLog.With("repo", "UserProfileRepo")
	return &userProfileRepo{db: db, log: repoLog}
}

func (r *userProfileRepo) Create(ctx context.Context, tx *gorm.DB, profiles []*types.UserProfile) ([]*types.UserProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(profiles) == 0 {
		return []*types.UserProfile{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *userProfileRepo) GetByID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.UserProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if userID == uuid.Nil {
		return nil, nil
	}

	var results []*types.UserProfile
	if err := transaction.WithContext(ctx).
		Where("id = ?", userID).
		Limit(1).
		Find(&results).Error; err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func (r *userProfileRepo) UpdateFields(ctx context.Context, tx *gorm.DB, userID uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if userID == uuid.Nil || len(fields) == 0 {
		return nil
	}

	return transaction.WithContext(ctx).
		Model(&types.UserProfile{}).
		Where("id = ?", userID).
		Updates(fields).Error
}
