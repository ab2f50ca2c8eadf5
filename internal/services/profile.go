package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/apierr"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/logger"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/repos"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/types"
)

const profileSyncTimeout = 15 * time.Second

// ProfileService is the backend profile store boundary: fetch, partial
// update, and the fire-and-forget sync used after a generation. A sync
// failure never rolls back in-memory state; it is reported and the operation
// that triggered it stays successful.
type ProfileService interface {
	FetchProfile(ctx context.Context, userID uuid.UUID) (*types.UserProfile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, fields map[string]interface{}) error
	SyncAsync(userID uuid.UUID, fields map[string]interface{}, onErr func(error))
}

type profileService struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.UserProfileRepo
}

func NewProfileService(db *gorm.DB, log *logger.Logger, repo repos.UserProfileRepo) ProfileService {
	serviceLog := log.With("service", "ProfileService")
	return &profileService{db: db, log: serviceLog, repo: repo}
}

func (ps *profileService) FetchProfile(ctx context.Context, userID uuid.UUID) (*types.UserProfile, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id required")
	}
	profile, err := ps.repo.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("error fetching profile: %w", err)
	}
	return profile, nil
}

func (ps *profileService) UpdateProfile(ctx context.Context, userID uuid.UUID, fields map[string]interface{}) error {
	if userID == uuid.Nil {
		return fmt.Errorf("user id required")
	}
	if err := ps.repo.UpdateFields(ctx, nil, userID, fields); err != nil {
		return apierr.New(http.StatusInternalServerError, apierr.CodeSyncFailed, err)
	}
	return nil
}

// SyncAsync persists the given fields in the background. The caller's flow is
// already reported as successful; errors only reach onErr and the log.
func (ps *profileService) SyncAsync(userID uuid.UUID, fields map[string]interface{}, onErr func(error)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), profileSyncTimeout)
		defer cancel()
		if err := ps.UpdateProfile(ctx, userID, fields); err != nil {
			ps.log.Warn("Background profile sync failed", "user_id", userID.String(), "error", err)
			if onErr != nil {
				onErr(err)
			}
		}
	}()
}

// SyncFieldsFromProfile builds the partial update persisted after a
// generation: credits, progression, and the autopilot schedule.
func SyncFieldsFromProfile(profile *types.UserProfile) map[string]interface{} {
	return map[string]interface{}{
		"credits":               profile.Credits,
		"xp":                    profile.XP,
		"level":                 profile.Level,
		"current_streak":        profile.CurrentStreak,
		"last_post_date":        profile.LastPostDate,
		"unlocked_achievements": profile.UnlockedAchievements,
		"auto_pilot":            profile.AutoPilot,
	}
}
