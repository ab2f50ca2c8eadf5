package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	kv "github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/clients/redis"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/logger"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("failed to build test logger: %v", err)
	}
	return log
}

// fakeKV is an in-memory KVCache. failSets makes every Set return an error to
// exercise the non-fatal mirror path.
type fakeKV struct {
	mu       sync.Mutex
	data     map[string]string
	failSets bool
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string)}
}

func (f *fakeKV) key(userID, key string) string { return userID + ":" + key }

func (f *fakeKV) Get(_ context.Context, userID, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	val, ok := f.data[f.key(userID, key)]
	if !ok {
		return "", kv.ErrNotFound
	}
	return val, nil
}

func (f *fakeKV) Set(_ context.Context, userID, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSets {
		return fmt.Errorf("storage quota exhausted")
	}
	f.data[f.key(userID, key)] = value
	return nil
}

func (f *fakeKV) Del(_ context.Context, userID, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, f.key(userID, key))
	return nil
}

func (f *fakeKV) Close() error { return nil }

func (f *fakeKV) has(userID, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[f.key(userID, key)]
	return ok
}

// fakeClock serves a fixed, settable time.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock { return &fakeClock{now: now} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	return &fakeTicker{ch: make(chan time.Time)}
}

type fakeTicker struct {
	ch chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               {}

// scriptedRand returns a fixed sequence of picks, then zeroes.
type scriptedRand struct {
	seq []int
	pos int
}

func (r *scriptedRand) Intn(n int) int {
	if r.pos >= len(r.seq) {
		return 0
	}
	v := r.seq[r.pos] % n
	r.pos++
	return v
}

// fakeGenerationClient replays scripted outcomes, one per call.
type genOutcome struct {
	resp *GenerateResponse
	err  error
}

type fakeGenerationClient struct {
	mu       sync.Mutex
	outcomes []genOutcome
	calls    int
	params   []types.GenerationParams
}

func (f *fakeGenerationClient) Generate(_ context.Context, _ uuid.UUID, _ string, params types.GenerationParams) (*GenerateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	f.calls++
	f.params = append(f.params, params)
	if idx >= len(f.outcomes) {
		return nil, fmt.Errorf("unexpected generation call %d", idx)
	}
	out := f.outcomes[idx]
	return out.resp, out.err
}

// fakePostRepo implements repos.PostRepo in memory.
type fakePostRepo struct {
	mu          sync.Mutex
	created     []*types.Post
	mostRecent  *types.Post
	queryErr    error
	recentCalls int
}

func (f *fakePostRepo) Create(_ context.Context, _ *gorm.DB, posts []*types.Post) ([]*types.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, posts...)
	return posts, nil
}

func (f *fakePostRepo) GetByUserID(_ context.Context, _ *gorm.DB, _ uuid.UUID, _ int) ([]*types.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Post{}, f.created...), nil
}

func (f *fakePostRepo) GetMostRecent(_ context.Context, _ *gorm.DB, _ uuid.UUID) (*types.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recentCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.mostRecent, nil
}

func (f *fakePostRepo) Update(_ context.Context, _ *gorm.DB, _ *types.Post) error { return nil }

func (f *fakePostRepo) DeleteByID(_ context.Context, _ *gorm.DB, _ uuid.UUID) error { return nil }

// fakeProfileService records partial updates instead of touching a database.
type fakeProfileService struct {
	mu      sync.Mutex
	profile *types.UserProfile
	synced  []map[string]interface{}
	syncErr error
}

func (f *fakeProfileService) FetchProfile(_ context.Context, _ uuid.UUID) (*types.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile, nil
}

func (f *fakeProfileService) UpdateProfile(_ context.Context, _ uuid.UUID, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.syncErr != nil {
		return f.syncErr
	}
	f.synced = append(f.synced, fields)
	return nil
}

// SyncAsync runs synchronously in tests so assertions never race the
// background goroutine.
func (f *fakeProfileService) SyncAsync(userID uuid.UUID, fields map[string]interface{}, onErr func(error)) {
	if err := f.UpdateProfile(context.Background(), userID, fields); err != nil {
		if onErr != nil {
			onErr(err)
		}
	}
}

func testProfile(credits int) *types.UserProfile {
	return &types.UserProfile{
		ID:                 uuid.New(),
		Email:              "test@example.com",
		Credits:            credits,
		XP:                 0,
		Level:              1,
		SubscriptionStatus: types.SubscriptionActive,
	}
}

func okResponse(content string) *GenerateResponse {
	return &GenerateResponse{
		ID:         uuid.New().String(),
		Content:    content,
		ViralScore: 72,
	}
}
