package types

// Achievement is a fixed milestone with a one-time XP bonus.
type Achievement struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	XPBonus int    `json:"xp_bonus"`
}

// ProgressionResult is the full progression state produced by one generation.
type ProgressionResult struct {
	XP              int           `json:"xp"`
	XPGained        int           `json:"xp_gained"`
	Level           int           `json:"level"`
	Streak          int           `json:"streak"`
	NewAchievements []Achievement `json:"new_achievements,omitempty"`
	LeveledUp       bool          `json:"leveled_up"`
}

// ProgressionSource tags which path produced a ProgressionResult. The server
// path is authoritative when both are available.
type ProgressionSource string

const (
	ProgressionServerValidated ProgressionSource = "server_validated"
	ProgressionClientComputed  ProgressionSource = "client_computed"
)

// ProgressionOutcome pairs a result with the path that produced it.
type ProgressionOutcome struct {
	Source ProgressionSource `json:"source"`
	Result ProgressionResult `json:"result"`
}
