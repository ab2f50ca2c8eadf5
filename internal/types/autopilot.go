package types

import "time"

const (
	FrequencyDaily    = "daily"
	FrequencyWeekly   = "weekly"
	FrequencyBiweekly = "biweekly"
	FrequencyCustom   = "custom"
)

// AutoPilotConfig is the recurrence configuration for unattended generation.
// Days holds weekday indices (time.Weekday numbering, Sunday=0) and is only
// meaningful when Frequency is "custom".
type AutoPilotConfig struct {
	Enabled        bool       `json:"enabled"`
	Frequency      string     `json:"frequency"`
	Time           string     `json:"time"`
	Days           []int      `json:"days,omitempty"`
	Topics         []string   `json:"topics,omitempty"`
	Tone           string     `json:"tone"`
	TargetAudience string     `json:"target_audience"`
	PostCount      int        `json:"post_count"`
	NextRun        *time.Time `json:"next_run,omitempty"`
}

func ValidFrequency(f string) bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiweekly, FrequencyCustom:
		return true
	default:
		return false
	}
}
