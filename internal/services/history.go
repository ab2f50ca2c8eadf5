package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	kv "github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/clients/redis"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/logger"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/types"
)

const (
	// HistoryMirrorCap bounds the mirrored snapshot to the first page.
	HistoryMirrorCap = 20

	historyCacheKey = "post_history"
	lastViewedKey   = "last_viewed_post"
	mirrorTimeout   = 3 * time.Second
)

// HistoryStore keeps the session's posts most-recent-first in memory and
// mirrors the first page to the per-user key-value cache. Mirror failures
// (storage quota, cache down) are warnings; the in-memory list stays correct.
type HistoryStore interface {
	Add(post *types.Post)
	Update(post *types.Post)
	Remove(postID uuid.UUID)
	List() []*types.Post
	Contains(postID uuid.UUID) bool
	SetSelected(postID uuid.UUID)
	Selected() *types.Post
}

type historyStore struct {
	mu       sync.Mutex
	log      *logger.Logger
	cache    kv.KVCache
	userID   uuid.UUID
	posts    []*types.Post
	selected uuid.UUID
}

func NewHistoryStore(baseLog *logger.Logger, cache kv.KVCache, userID uuid.UUID, seed []*types.Post) HistoryStore {
	storeLog := baseLog.With("service", "HistoryStore", "user_id", userID.String())
	hs := &historyStore{
		log:    storeLog,
		cache:  cache,
		userID: userID,
		posts:  append([]*types.Post{}, seed...),
	}
	hs.restoreSelection()
	return hs
}

func (hs *historyStore) Add(post *types.Post) {
	if post == nil {
		return
	}
	hs.mu.Lock()
	hs.posts = append([]*types.Post{post}, hs.posts...)
	hs.mirrorLocked()
	hs.mu.Unlock()
}

func (hs *historyStore) Update(post *types.Post) {
	if post == nil {
		return
	}
	hs.mu.Lock()
	for i, p := range hs.posts {
		if p.ID == post.ID {
			hs.posts[i] = post
			break
		}
	}
	hs.mirrorLocked()
	hs.mu.Unlock()
}

func (hs *historyStore) Remove(postID uuid.UUID) {
	hs.mu.Lock()
	kept := hs.posts[:0]
	for _, p := range hs.posts {
		if p.ID != postID {
			kept = append(kept, p)
		}
	}
	hs.posts = kept
	if hs.selected == postID {
		hs.selected = uuid.Nil
		hs.clearSelectionLocked()
	}
	hs.mirrorLocked()
	hs.mu.Unlock()
}

func (hs *historyStore) List() []*types.Post {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	return append([]*types.Post{}, hs.posts...)
}

func (hs *historyStore) Contains(postID uuid.UUID) bool {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	for _, p := range hs.posts {
		if p.ID == postID {
			return true
		}
	}
	return false
}

func (hs *historyStore) SetSelected(postID uuid.UUID) {
	hs.mu.Lock()
	hs.selected = postID
	if hs.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		if err := hs.cache.Set(ctx, hs.userID.String(), lastViewedKey, postID.String()); err != nil {
			hs.log.Warn("Failed to persist last-viewed post", "error", err)
		}
		cancel()
	}
	hs.mu.Unlock()
}

func (hs *historyStore) Selected() *types.Post {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	if hs.selected == uuid.Nil {
		return nil
	}
	for _, p := range hs.posts {
		if p.ID == hs.selected {
			return p
		}
	}
	return nil
}

// mirrorLocked writes the first page of history to the cache. Callers hold
// the mutex.
func (hs *historyStore) mirrorLocked() {
	if hs.cache == nil {
		return
	}
	page := hs.posts
	if len(page) > HistoryMirrorCap {
		page = page[:HistoryMirrorCap]
	}
	raw, err := json.Marshal(page)
	if err != nil {
		hs.log.Warn("Failed to encode history mirror", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := hs.cache.Set(ctx, hs.userID.String(), historyCacheKey, string(raw)); err != nil {
		hs.log.Warn("Failed to write history mirror", "error", err)
	}
}

func (hs *historyStore) clearSelectionLocked() {
	if hs.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := hs.cache.Del(ctx, hs.userID.String(), lastViewedKey); err != nil {
		hs.log.Warn("Failed to clear last-viewed post", "error", err)
	}
}

func (hs *historyStore) restoreSelection() {
	if hs.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	val, err := hs.cache.Get(ctx, hs.userID.String(), lastViewedKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			hs.log.Warn("Failed to read last-viewed post", "error", err)
		}
		return
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return
	}
	hs.selected = id
}
