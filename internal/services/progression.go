package services

import (
	"math"
	"strings"
	"time"

	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/types"
)

const (
	// Base reward grows with accumulated XP until the level-3 milestone,
	// then flattens to the floor value.
	baseXPReward        = 50
	goalGradientCeiling = 900
)

const (
	AchievementFirstPost     = "first_post"
	AchievementTenPosts      = "ten_posts"
	AchievementStreakThree   = "streak_3"
	AchievementStreakSeven   = "streak_7"
	AchievementControversial = "controversial_take"
)

var achievementDefs = map[string]types.Achievement{
	AchievementFirstPost:     {ID: AchievementFirstPost, Title: "First Post", XPBonus: 100},
	AchievementTenPosts:      {ID: AchievementTenPosts, Title: "Content Machine", XPBonus: 250},
	AchievementStreakThree:   {ID: AchievementStreakThree, Title: "3-Day Streak", XPBonus: 150},
	AchievementStreakSeven:   {ID: AchievementStreakSeven, Title: "Week Warrior", XPBonus: 300},
	AchievementControversial: {ID: AchievementControversial, Title: "Bold Voice", XPBonus: 200},
}

// ProgressionCalculator folds one new post into a user's progression state.
// It is pure: no I/O, no mutation of its inputs, and repeat calls with the
// same inputs produce the same result. Achievement bonuses are idempotent
// because already-unlocked ids are skipped.
type ProgressionCalculator struct{}

func NewProgressionCalculator() *ProgressionCalculator {
	return &ProgressionCalculator{}
}

// LevelForXP maps cumulative XP to a level, clamped to a minimum of 1.
func LevelForXP(xp int) int {
	if xp < 0 {
		xp = 0
	}
	level := int(math.Floor(math.Sqrt(float64(xp) / 100.0)))
	if level < 1 {
		level = 1
	}
	return level
}

func (pc *ProgressionCalculator) Compute(profile *types.UserProfile, newPost *types.Post, allPosts []*types.Post) types.ProgressionResult {
	streak := nextStreak(profile, newPost.CreatedAt)

	gained := baseReward(profile.XP)

	var unlocked []types.Achievement
	award := func(id string, condition bool) {
		if !condition || profile.HasAchievement(id) {
			return
		}
		def := achievementDefs[id]
		unlocked = append(unlocked, def)
		gained += def.XPBonus
	}

	award(AchievementFirstPost, len(allPosts) == 1)
	award(AchievementTenPosts, len(allPosts) == 10)
	award(AchievementStreakThree, streak >= 3)
	award(AchievementStreakSeven, streak >= 7)
	award(AchievementControversial, isControversialTone(newPost.Params.Data().Tone))

	newXP := profile.XP + gained
	newLevel := LevelForXP(newXP)

	return types.ProgressionResult{
		XP:              newXP,
		XPGained:        gained,
		Level:           newLevel,
		Streak:          streak,
		NewAchievements: unlocked,
		LeveledUp:       newLevel > profile.Level,
	}
}

func baseReward(currentXP int) int {
	if currentXP < goalGradientCeiling {
		return baseXPReward + currentXP/10
	}
	return baseXPReward
}

// nextStreak applies the calendar-day streak rules. A missing LastPostDate is
// treated as no prior activity.
func nextStreak(profile *types.UserProfile, createdAt time.Time) int {
	if profile.LastPostDate == nil {
		return 1
	}
	prior := *profile.LastPostDate
	switch {
	case sameDay(prior, createdAt):
		if profile.CurrentStreak < 1 {
			return 1
		}
		return profile.CurrentStreak
	case sameDay(prior.AddDate(0, 0, 1), createdAt):
		if profile.CurrentStreak < 1 {
			return 2
		}
		return profile.CurrentStreak + 1
	default:
		return 1
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func isControversialTone(tone string) bool {
	return strings.Contains(strings.ToLower(tone), "controversial")
}
