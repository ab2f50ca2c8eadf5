package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/apierr"
	kv "github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/clients/redis"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/logger"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/repos"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/types"
)

// attemptMarkerKey holds the timestamp written right before a remote
// generation call and cleared when the call resolves. Recovery reads it after
// a crash.
const attemptMarkerKey = "generation_attempt"

// GenerationResult is the outcome of one successful generation attempt.
type GenerationResult struct {
	Post           *types.Post
	UpdatedProfile *types.UserProfile
	Progression    types.ProgressionOutcome
}

// GenerationWorkflowService runs one generation attempt end to end: credit
// gate, remote call, post assembly, progression fold, optimistic credit
// deduction. It never mutates the input profile; the caller appends the post
// to history and schedules the background profile sync.
type GenerationWorkflowService interface {
	Execute(ctx context.Context, profile *types.UserProfile, params types.GenerationParams, existing []*types.Post, isAutoPilot bool) (*GenerationResult, error)
}

type generationWorkflowService struct {
	log       *logger.Logger
	genClient GenerationClient
	calc      *ProgressionCalculator
	postRepo  repos.PostRepo
	cache     kv.KVCache
	clock     Clock
}

func NewGenerationWorkflowService(log *logger.Logger, genClient GenerationClient, calc *ProgressionCalculator, postRepo repos.PostRepo, cache kv.KVCache, clock Clock) GenerationWorkflowService {
	serviceLog := log.With("service", "GenerationWorkflowService")
	return &generationWorkflowService{
		log:       serviceLog,
		genClient: genClient,
		calc:      calc,
		postRepo:  postRepo,
		cache:     cache,
		clock:     clock,
	}
}

func (ws *generationWorkflowService) Execute(ctx context.Context, profile *types.UserProfile, params types.GenerationParams, existing []*types.Post, isAutoPilot bool) (*GenerationResult, error) {
	if profile == nil {
		return nil, fmt.Errorf("profile required")
	}
	// The scheduler pre-checks credits before entering its batch loop.
	if profile.Credits <= 0 && !isAutoPilot {
		return nil, apierr.New(http.StatusPaymentRequired, apierr.CodeInsufficientCredits, fmt.Errorf("no credits remaining"))
	}

	ws.writeAttemptMarker(ctx, profile.ID)

	resp, err := ws.genClient.Generate(ctx, profile.ID, profile.BrandVoice, params)
	if err != nil {
		// No partial state mutation on failure.
		ws.clearAttemptMarker(profile.ID)
		return nil, err
	}

	post := ws.buildPost(profile.ID, params, resp, isAutoPilot)

	// Backend write so the authoritative history (and recovery) can see it.
	if _, err := ws.postRepo.Create(ctx, nil, []*types.Post{post}); err != nil {
		ws.log.Warn("Failed to persist generated post", "user_id", profile.ID.String(), "post_id", post.ID.String(), "error", err)
	}

	ws.clearAttemptMarker(profile.ID)

	allPosts := append(append([]*types.Post{}, existing...), post)
	var outcome types.ProgressionOutcome
	if resp.Gamification != nil {
		outcome = types.ProgressionOutcome{
			Source: types.ProgressionServerValidated,
			Result: *resp.Gamification,
		}
	} else {
		outcome = types.ProgressionOutcome{
			Source: types.ProgressionClientComputed,
			Result: ws.calc.Compute(profile, post, allPosts),
		}
	}

	updated := profile.Clone()
	if updated.Credits > 0 {
		updated.Credits--
	}
	updated.XP = outcome.Result.XP
	updated.Level = outcome.Result.Level
	updated.CurrentStreak = outcome.Result.Streak
	createdAt := post.CreatedAt
	updated.LastPostDate = &createdAt
	for _, a := range outcome.Result.NewAchievements {
		if !updated.HasAchievement(a.ID) {
			updated.UnlockedAchievements = append(updated.UnlockedAchievements, a.ID)
		}
	}

	return &GenerationResult{
		Post:           post,
		UpdatedProfile: updated,
		Progression:    outcome,
	}, nil
}

func (ws *generationWorkflowService) buildPost(userID uuid.UUID, params types.GenerationParams, resp *GenerateResponse, isAutoPilot bool) *types.Post {
	id, err := uuid.Parse(resp.ID)
	if err != nil {
		id = uuid.New()
	}
	return &types.Post{
		ID:            id,
		UserID:        userID,
		Content:       resp.Content,
		Params:        datatypes.NewJSONType(params),
		ViralScore:    resp.ViralScore,
		ViralAnalysis: datatypes.NewJSONType(resp.ViralAnalysis),
		IsAutoPilot:   isAutoPilot,
		CreatedAt:     ws.clock.Now(),
	}
}

func (ws *generationWorkflowService) writeAttemptMarker(ctx context.Context, userID uuid.UUID) {
	if ws.cache == nil {
		return
	}
	stamp := ws.clock.Now().UTC().Format(time.RFC3339Nano)
	if err := ws.cache.Set(ctx, userID.String(), attemptMarkerKey, stamp); err != nil {
		ws.log.Warn("Failed to write generation attempt marker", "user_id", userID.String(), "error", err)
	}
}

func (ws *generationWorkflowService) clearAttemptMarker(userID uuid.UUID) {
	if ws.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := ws.cache.Del(ctx, userID.String(), attemptMarkerKey); err != nil {
		ws.log.Warn("Failed to clear generation attempt marker", "user_id", userID.String(), "error", err)
	}
}
