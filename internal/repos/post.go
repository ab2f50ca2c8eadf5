package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/logger"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/types"
)

type PostRepo interface {
	Create(ctx context.Context, tx *gorm.DB, posts []*types.Post) ([]*types.Post, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Post, error)
	GetMostRecent(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.Post, error)
	Update(ctx context.Context, tx *gorm.DB, post *types.Post) error
	DeleteByID(ctx context.Context, tx *gorm.DB, postID uuid.UUID) error
}

type postRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostRepo(db *gorm.DB, baseLog *logger.Logger) PostRepo {
	repoLog := baseLog.With("repo", "PostRepo")
	return &postRepo{db: db, log: repoLog}
}

func (r *postRepo) Create(ctx context.Context, tx *gorm.DB, posts []*types.Post) ([]*types.Post, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(posts) == 0 {
		return []*types.Post{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *postRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Post, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Post
	if userID == uuid.Nil {
		return results, nil
	}

	q := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *postRepo) GetMostRecent(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.Post, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if userID == uuid.Nil {
		return nil, nil
	}

	var results []*types.Post
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(1).
		Find(&results).Error; err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func (r *postRepo) Update(ctx context.Context, tx *gorm.DB, post *types.Post) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if post == nil || post.ID == uuid.Nil {
		return nil
	}

	return transaction.WithContext(ctx).Save(post).Error
}

func (r *postRepo) DeleteByID(ctx context.Context, tx *gorm.DB, postID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if postID == uuid.Nil {
		return nil
	}

	return transaction.WithContext(ctx).
		Where("id = ?", postID).
		Delete(&types.Post{}).Error
}
