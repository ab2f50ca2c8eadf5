package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/apierr"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/types"
)

func newTestWorkflow(t *testing.T, gen *fakeGenerationClient, repo *fakePostRepo, cache *fakeKV, clock Clock) GenerationWorkflowService {
	t.Helper()
	return NewGenerationWorkflowService(testLogger(t), gen, NewProgressionCalculator(), repo, cache, clock)
}

func TestExecuteRejectsAtZeroCredits(t *testing.T) {
	gen := &fakeGenerationClient{}
	clock := newFakeClock(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	ws := newTestWorkflow(t, gen, &fakePostRepo{}, newFakeKV(), clock)

	_, err := ws.Execute(context.Background(), testProfile(0), types.GenerationParams{Topic: "x"}, nil, false)

	if !apierr.IsInsufficientCredits(err) {
		t.Fatalf("expected insufficient_credits, got %v", err)
	}
	if gen.calls != 0 {
		t.Fatalf("remote service must not be invoked at zero credits, got %d calls", gen.calls)
	}
}

func TestExecuteNoMutationOnFailure(t *testing.T) {
	gen := &fakeGenerationClient{outcomes: []genOutcome{
		{err: apierr.New(502, apierr.CodeGenerationFailed, fmt.Errorf("upstream boom"))},
	}}
	cache := newFakeKV()
	clock := newFakeClock(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	ws := newTestWorkflow(t, gen, &fakePostRepo{}, cache, clock)

	profile := testProfile(5)
	profile.XP = 300

	_, err := ws.Execute(context.Background(), profile, types.GenerationParams{Topic: "x"}, nil, false)
	if err == nil {
		t.Fatalf("expected error")
	}
	if profile.Credits != 5 || profile.XP != 300 {
		t.Fatalf("input profile mutated on failure: %+v", profile)
	}
	if cache.has(profile.ID.String(), attemptMarkerKey) {
		t.Fatalf("attempt marker must be cleared after the call resolves")
	}
}

func TestExecuteDecrementsExactlyOneCredit(t *testing.T) {
	gen := &fakeGenerationClient{outcomes: []genOutcome{{resp: okResponse("post body")}}}
	repo := &fakePostRepo{}
	clock := newFakeClock(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	ws := newTestWorkflow(t, gen, repo, newFakeKV(), clock)

	profile := testProfile(3)
	res, err := ws.Execute(context.Background(), profile, types.GenerationParams{Topic: "x"}, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.UpdatedProfile.Credits != 2 {
		t.Fatalf("expected credits=2 got %d", res.UpdatedProfile.Credits)
	}
	if profile.Credits != 3 {
		t.Fatalf("input snapshot must not be mutated, got %d", profile.Credits)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one backend post write, got %d", len(repo.created))
	}
}

func TestExecuteCreditsNeverNegative(t *testing.T) {
	// Autopilot context is pre-checked by the scheduler, so the workflow
	// accepts the call; the deduction still may not cross zero.
	gen := &fakeGenerationClient{outcomes: []genOutcome{{resp: okResponse("post body")}}}
	clock := newFakeClock(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	ws := newTestWorkflow(t, gen, &fakePostRepo{}, newFakeKV(), clock)

	res, err := ws.Execute(context.Background(), testProfile(0), types.GenerationParams{Topic: "x"}, nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.UpdatedProfile.Credits != 0 {
		t.Fatalf("credits must never go negative, got %d", res.UpdatedProfile.Credits)
	}
}

func TestExecuteServerValidatedProgressionWins(t *testing.T) {
	server := &types.ProgressionResult{XP: 999, XPGained: 75, Level: 3, Streak: 4}
	resp := okResponse("post body")
	resp.Gamification = server
	gen := &fakeGenerationClient{outcomes: []genOutcome{{resp: resp}}}
	clock := newFakeClock(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	ws := newTestWorkflow(t, gen, &fakePostRepo{}, newFakeKV(), clock)

	res, err := ws.Execute(context.Background(), testProfile(5), types.GenerationParams{Topic: "x"}, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Progression.Source != types.ProgressionServerValidated {
		t.Fatalf("expected server_validated source, got %s", res.Progression.Source)
	}
	if res.UpdatedProfile.XP != 999 || res.UpdatedProfile.Level != 3 || res.UpdatedProfile.CurrentStreak != 4 {
		t.Fatalf("server result must be applied verbatim: %+v", res.UpdatedProfile)
	}
}

func TestExecuteClientComputedFallback(t *testing.T) {
	gen := &fakeGenerationClient{outcomes: []genOutcome{{resp: okResponse("post body")}}}
	clock := newFakeClock(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	ws := newTestWorkflow(t, gen, &fakePostRepo{}, newFakeKV(), clock)

	res, err := ws.Execute(context.Background(), testProfile(5), types.GenerationParams{Topic: "x"}, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Progression.Source != types.ProgressionClientComputed {
		t.Fatalf("expected client_computed source, got %s", res.Progression.Source)
	}
	// First post ever: 50 base + 100 bonus.
	if res.UpdatedProfile.XP != 150 {
		t.Fatalf("expected xp=150 got %d", res.UpdatedProfile.XP)
	}
	if res.UpdatedProfile.LastPostDate == nil || !res.UpdatedProfile.LastPostDate.Equal(clock.Now()) {
		t.Fatalf("expected last_post_date set to generation time")
	}
	if !res.UpdatedProfile.HasAchievement(AchievementFirstPost) {
		t.Fatalf("expected first_post recorded on the profile")
	}
}

func TestExecuteSequenceNeverDrivesCreditsNegative(t *testing.T) {
	gen := &fakeGenerationClient{outcomes: []genOutcome{
		{resp: okResponse("one")},
		{resp: okResponse("two")},
	}}
	clock := newFakeClock(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	ws := newTestWorkflow(t, gen, &fakePostRepo{}, newFakeKV(), clock)

	profile := testProfile(2)
	var existing []*types.Post
	for i := 0; i < 4; i++ {
		res, err := ws.Execute(context.Background(), profile, types.GenerationParams{Topic: "x"}, existing, false)
		if err != nil {
			if !apierr.IsInsufficientCredits(err) {
				t.Fatalf("call %d: unexpected error %v", i, err)
			}
			continue
		}
		profile = res.UpdatedProfile
		existing = append(existing, res.Post)
	}
	if profile.Credits != 0 {
		t.Fatalf("expected credits drained to exactly 0, got %d", profile.Credits)
	}
	if gen.calls != 2 {
		t.Fatalf("rejected calls must not reach the remote service, got %d calls", gen.calls)
	}
}
