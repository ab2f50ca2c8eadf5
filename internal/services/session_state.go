package services

import (
	"sync"

	"github.com/google/uuid"

	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/types"
)

// UserStateContainer owns the single mutable profile snapshot for a session.
// Every mutation goes through read-copy-publish: callers take a Snapshot,
// compute a full replacement, and Publish it. Last writer wins; within a
// session the user's own client is the only writer.
type UserStateContainer struct {
	mu      sync.RWMutex
	profile *types.UserProfile
}

func NewUserStateContainer(profile *types.UserProfile) *UserStateContainer {
	return &UserStateContainer{profile: profile.Clone()}
}

func (c *UserStateContainer) UserID() uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.profile.ID
}

// Snapshot returns a deep copy the caller may freely mutate.
func (c *UserStateContainer) Snapshot() *types.UserProfile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.profile.Clone()
}

// Publish replaces the whole snapshot.
func (c *UserStateContainer) Publish(replacement *types.UserProfile) {
	if replacement == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profile = replacement.Clone()
}
