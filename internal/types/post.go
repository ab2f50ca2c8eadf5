package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GenerationParams are the inputs sent to the remote generation service for a
// single post.
type GenerationParams struct {
	Topic           string `json:"topic"`
	Audience        string `json:"audience"`
	Tone            string `json:"tone"`
	Framework       string `json:"framework"`
	Length          string `json:"length"`
	CreativityLevel int    `json:"creativity_level"`
	EmojiDensity    string `json:"emoji_density"`
	IncludeCTA      bool   `json:"include_cta"`
}

// ViralAnalysis is the structured quality feedback returned alongside the
// viral score.
type ViralAnalysis struct {
	HookScore        int      `json:"hook_score"`
	ReadabilityScore int      `json:"readability_score"`
	Strengths        []string `json:"strengths,omitempty"`
	Improvements     []string `json:"improvements,omitempty"`
}

type Post struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Content       string                               `gorm:"type:text;not null" json:"content"`
	Params        datatypes.JSONType[GenerationParams] `gorm:"column:params;type:jsonb" json:"params"`
	ViralScore    int                                  `gorm:"column:viral_score;not null;default:0" json:"viral_score"`
	ViralAnalysis datatypes.JSONType[ViralAnalysis]    `gorm:"column:viral_analysis;type:jsonb" json:"viral_analysis"`
	IsAutoPilot   bool                                 `gorm:"column:is_auto_pilot;not null;default:false" json:"is_auto_pilot"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Post) TableName() string { return "post" }
