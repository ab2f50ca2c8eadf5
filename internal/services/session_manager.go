package services

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	kv "github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/clients/redis"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/logger"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/repos"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/types"
)

// EngineSession is the per-user engine: the state container, the session
// history, and the autopilot scheduler. RecoveredPost is set when startup
// recovery adopted a lost generation.
type EngineSession struct {
	State         *UserStateContainer
	History       HistoryStore
	Scheduler     *AutopilotScheduler
	RecoveredPost *types.Post
}

// SessionManager lazily builds one EngineSession per authenticated user.
// Recovery runs exactly once, before the session's scheduler starts polling.
type SessionManager interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*EngineSession, error)
	Get(userID uuid.UUID) *EngineSession
	Close()
}

type sessionManager struct {
	db       *gorm.DB
	log      *logger.Logger
	cache    kv.KVCache
	postRepo repos.PostRepo
	profiles ProfileService
	workflow GenerationWorkflowService
	recovery RecoveryService
	clock    Clock
	defaults GenerationDefaults

	mu       sync.Mutex
	sessions map[uuid.UUID]*EngineSession
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewSessionManager(
	db *gorm.DB,
	baseLog *logger.Logger,
	cache kv.KVCache,
	postRepo repos.PostRepo,
	profiles ProfileService,
	workflow GenerationWorkflowService,
	recovery RecoveryService,
	clock Clock,
	defaults GenerationDefaults,
) SessionManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &sessionManager{
		db:       db,
		log:      baseLog.With("service", "SessionManager"),
		cache:    cache,
		postRepo: postRepo,
		profiles: profiles,
		workflow: workflow,
		recovery: recovery,
		clock:    clock,
		defaults: defaults,
		sessions: make(map[uuid.UUID]*EngineSession),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (sm *sessionManager) Get(userID uuid.UUID) *EngineSession {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.sessions[userID]
}

func (sm *sessionManager) GetOrCreate(ctx context.Context, userID uuid.UUID) (*EngineSession, error) {
	sm.mu.Lock()
	if existing, ok := sm.sessions[userID]; ok {
		sm.mu.Unlock()
		return existing, nil
	}
	sm.mu.Unlock()

	profile, err := sm.profiles.FetchProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("profile not found")
	}

	seed, err := sm.postRepo.GetByUserID(ctx, nil, userID, HistoryMirrorCap)
	if err != nil {
		sm.log.Warn("Failed to seed history from backend", "user_id", userID.String(), "error", err)
		seed = nil
	}

	state := NewUserStateContainer(profile)
	history := NewHistoryStore(sm.log, sm.cache, userID, seed)

	// Recovery completes before the scheduler's polling is authoritative.
	recovered, recErr := sm.recovery.Run(ctx, userID, history)
	if recErr != nil {
		sm.log.Warn("Recovery attempt failed", "user_id", userID.String(), "error", recErr)
	}

	scheduler := NewAutopilotScheduler(sm.log, state, history, sm.workflow, sm.profiles, sm.clock, rand.New(rand.NewSource(sm.clock.Now().UnixNano())), sm.defaults)

	session := &EngineSession{
		State:         state,
		History:       history,
		Scheduler:     scheduler,
		RecoveredPost: recovered,
	}

	sm.mu.Lock()
	if existing, ok := sm.sessions[userID]; ok {
		sm.mu.Unlock()
		return existing, nil
	}
	sm.sessions[userID] = session
	sm.mu.Unlock()

	scheduler.Start(sm.ctx)
	sm.log.Info("Engine session created", "user_id", userID.String(), "recovered", recovered != nil)
	return session, nil
}

func (sm *sessionManager) Close() {
	sm.cancel()
}
