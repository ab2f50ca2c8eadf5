package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
)

type UserProfile struct {
	ID    uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Email string    `gorm:"uniqueIndex;not null;column:email" json:"email"`
	Name  string    `gorm:"column:name" json:"name"`

	Credits       int        `gorm:"not null;default:0" json:"credits"`
	XP            int        `gorm:"column:xp;not null;default:0" json:"xp"`
	Level         int        `gorm:"not null;default:1" json:"level"`
	CurrentStreak int        `gorm:"not null;default:0" json:"current_streak"`
	LastPostDate  *time.Time `gorm:"column:last_post_date" json:"last_post_date,omitempty"`

	UnlockedAchievements datatypes.JSONSlice[string]           `gorm:"column:unlocked_achievements;type:jsonb" json:"unlocked_achievements"`
	AutoPilot            datatypes.JSONType[AutoPilotConfig]   `gorm:"column:auto_pilot;type:jsonb" json:"auto_pilot"`

	BrandVoice     string `gorm:"column:brand_voice;type:text" json:"brand_voice"`
	TargetAudience string `gorm:"column:target_audience" json:"target_audience"`

	SubscriptionStatus string     `gorm:"column:subscription_status;not null;default:'active'" json:"subscription_status"`
	SubscriptionEndsAt *time.Time `gorm:"column:subscription_ends_at" json:"subscription_ends_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (UserProfile) TableName() string { return "user_profile" }

// HasAchievement reports whether the achievement id is already unlocked.
func (u *UserProfile) HasAchievement(id string) bool {
	for _, a := range u.UnlockedAchievements {
		if a == id {
			return true
		}
	}
	return false
}

// SubscriptionBlocked reports whether the account is cancelled but the paid
// period has not run out yet. Autopilot refuses to run in this state.
func (u *UserProfile) SubscriptionBlocked(now time.Time) bool {
	if u.SubscriptionStatus != SubscriptionCancelled {
		return false
	}
	return u.SubscriptionEndsAt == nil || now.Before(*u.SubscriptionEndsAt)
}

// Clone returns a deep copy of the profile so callers can compute a full
// replacement snapshot without mutating the published one.
func (u *UserProfile) Clone() *UserProfile {
	if u == nil {
		return nil
	}
	cp := *u
	if u.LastPostDate != nil {
		t := *u.LastPostDate
		cp.LastPostDate = &t
	}
	if u.SubscriptionEndsAt != nil {
		t := *u.SubscriptionEndsAt
		cp.SubscriptionEndsAt = &t
	}
	cp.UnlockedAchievements = append(datatypes.JSONSlice[string]{}, u.UnlockedAchievements...)
	ap := u.AutoPilot.Data()
	ap.Days = append([]int{}, ap.Days...)
	ap.Topics = append([]string{}, ap.Topics...)
	if ap.NextRun != nil {
		t := *ap.NextRun
		ap.NextRun = &t
	}
	cp.AutoPilot = datatypes.NewJSONType(ap)
	return &cp
}
