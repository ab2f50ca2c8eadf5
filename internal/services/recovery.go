package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	kv "github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/clients/redis"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/logger"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/repos"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/types"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/utils"
)

const (
	defaultRecoveryWindow     = 5 * time.Minute
	defaultRecoverySettleWait = 2 * time.Second
)

// RecoveryService reconciles a generation that was in flight when the client
// died. It runs once per session: if the attempt marker is recent, it waits
// for any in-flight backend write to settle, then adopts the most recent
// backend post created after the marker. The marker is always cleared so the
// attempt never repeats.
type RecoveryService interface {
	Run(ctx context.Context, userID uuid.UUID, history HistoryStore) (*types.Post, error)
}

type recoveryService struct {
	log        *logger.Logger
	cache      kv.KVCache
	postRepo   repos.PostRepo
	clock      Clock
	window     time.Duration
	settleWait time.Duration

	mu   sync.Mutex
	done map[uuid.UUID]bool
}

func NewRecoveryService(log *logger.Logger, cache kv.KVCache, postRepo repos.PostRepo, clock Clock) RecoveryService {
	serviceLog := log.With("service", "RecoveryService")
	window := time.Duration(utils.GetEnvAsInt("RECOVERY_WINDOW_SECONDS", int(defaultRecoveryWindow.Seconds()), log)) * time.Second
	settle := time.Duration(utils.GetEnvAsInt("RECOVERY_SETTLE_WAIT_SECONDS", int(defaultRecoverySettleWait.Seconds()), log)) * time.Second
	return &recoveryService{
		log:        serviceLog,
		cache:      cache,
		postRepo:   postRepo,
		clock:      clock,
		window:     window,
		settleWait: settle,
		done:       make(map[uuid.UUID]bool),
	}
}

func (rs *recoveryService) Run(ctx context.Context, userID uuid.UUID, history HistoryStore) (*types.Post, error) {
	rs.mu.Lock()
	if rs.done[userID] {
		rs.mu.Unlock()
		return nil, nil
	}
	rs.done[userID] = true
	rs.mu.Unlock()

	raw, err := rs.cache.Get(ctx, userID.String(), attemptMarkerKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			rs.log.Warn("Failed to read attempt marker", "user_id", userID.String(), "error", err)
		}
		return nil, nil
	}

	markerAt, parseErr := time.Parse(time.RFC3339Nano, raw)
	if parseErr != nil {
		rs.log.Warn("Malformed attempt marker, clearing", "user_id", userID.String(), "error", parseErr)
		rs.clearMarker(userID)
		return nil, nil
	}

	now := rs.clock.Now()
	if now.Sub(markerAt) > rs.window {
		// Stale: not worth reconciling, just make sure it never retriggers.
		rs.log.Debug("Stale attempt marker cleared", "user_id", userID.String(), "marker_at", markerAt)
		rs.clearMarker(userID)
		return nil, nil
	}

	// Let any in-flight backend write land before querying.
	select {
	case <-ctx.Done():
		rs.clearMarker(userID)
		return nil, nil
	case <-time.After(rs.settleWait):
	}

	recent, queryErr := rs.postRepo.GetMostRecent(ctx, nil, userID)
	if queryErr != nil {
		// Best-effort reconciliation: treat as nothing to recover.
		rs.log.Warn("Recovery backend query failed", "user_id", userID.String(), "error", queryErr)
		rs.clearMarker(userID)
		return nil, nil
	}

	var recovered *types.Post
	if recent != nil && recent.CreatedAt.After(markerAt) {
		if !history.Contains(recent.ID) {
			history.Add(recent)
		}
		history.SetSelected(recent.ID)
		recovered = recent
		rs.log.Info("Recovered interrupted generation", "user_id", userID.String(), "post_id", recent.ID.String())
	}

	rs.clearMarker(userID)
	return recovered, nil
}

func (rs *recoveryService) clearMarker(userID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := rs.cache.Del(ctx, userID.String(), attemptMarkerKey); err != nil {
		rs.log.Warn("Failed to clear attempt marker", "user_id", userID.String(), "error", err)
	}
}
