package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/logger"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/types"
)

const (
	// DefaultPollInterval drives the scheduler's eligibility check.
	DefaultPollInterval = 60 * time.Second

	// customScanBoundDays bounds the day-by-day scan for custom schedules.
	customScanBoundDays = 14

	maxBatchSize = 10
)

// RandSource is the injectable pseudo-random pick used for topic and
// framework variety inside a batch.
type RandSource interface {
	Intn(n int) int
}

// BatchReport summarizes one autopilot run. Per-post failures are isolated;
// a failed post never cancels the rest of the batch.
type BatchReport struct {
	Generated  []*types.Post
	Errors     []error
	Skipped    bool
	SkipReason string
	NextRun    time.Time
}

// AutopilotScheduler owns the schedule-driven generation loop for one user
// session. One timer, sequential batch generations, credits checked before
// and during the loop.
type AutopilotScheduler struct {
	log      *logger.Logger
	state    *UserStateContainer
	history  HistoryStore
	workflow GenerationWorkflowService
	profiles ProfileService
	clock    Clock
	rnd      RandSource
	defaults GenerationDefaults

	pollInterval time.Duration
	kick         chan struct{}
}

func NewAutopilotScheduler(
	baseLog *logger.Logger,
	state *UserStateContainer,
	history HistoryStore,
	workflow GenerationWorkflowService,
	profiles ProfileService,
	clock Clock,
	rnd RandSource,
	defaults GenerationDefaults,
) *AutopilotScheduler {
	return &AutopilotScheduler{
		log:          baseLog.With("service", "AutopilotScheduler", "user_id", state.UserID().String()),
		state:        state,
		history:      history,
		workflow:     workflow,
		profiles:     profiles,
		clock:        clock,
		rnd:          rnd,
		defaults:     defaults,
		pollInterval: DefaultPollInterval,
		kick:         make(chan struct{}, 1),
	}
}

// Start launches the polling loop. It returns immediately; the loop stops
// when ctx is cancelled. An in-progress batch is not aborted by disablement,
// only the next trigger check sees it.
func (s *AutopilotScheduler) Start(ctx context.Context) {
	go func() {
		ticker := s.clock.NewTicker(s.pollInterval)
		defer ticker.Stop()
		s.log.Info("Autopilot scheduler started", "poll_interval", s.pollInterval.String())
		for {
			select {
			case <-ctx.Done():
				s.log.Info("Autopilot scheduler stopped")
				return
			case <-ticker.C():
				s.check(ctx)
			case <-s.kick:
				s.check(ctx)
			}
		}
	}()
}

// ConfigChanged requests an immediate eligibility check so a fresh enablement
// does not wait out the poll interval.
func (s *AutopilotScheduler) ConfigChanged() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *AutopilotScheduler) check(ctx context.Context) {
	snapshot := s.state.Snapshot()
	cfg := snapshot.AutoPilot.Data()
	if !cfg.Enabled {
		return
	}

	now := s.clock.Now()
	if cfg.NextRun == nil {
		next := s.NextRunTime(cfg, now)
		cfg.NextRun = &next
		snapshot.AutoPilot = datatypes.NewJSONType(cfg)
		s.state.Publish(snapshot)
		s.persistSchedule(snapshot)
		s.log.Info("Autopilot schedule initialized", "next_run", next)
		return
	}

	if now.Before(*cfg.NextRun) {
		return
	}
	s.RunBatch(ctx)
}

// RunBatch executes one batch of PostCount generations and always recomputes
// the schedule from the original configuration afterwards.
func (s *AutopilotScheduler) RunBatch(ctx context.Context) *BatchReport {
	snapshot := s.state.Snapshot()
	cfg := snapshot.AutoPilot.Data()
	now := s.clock.Now()
	report := &BatchReport{}

	if snapshot.SubscriptionBlocked(now) {
		report.Skipped = true
		report.SkipReason = "subscription cancelled"
		s.log.Warn("Autopilot run skipped, subscription cancelled", "user_id", snapshot.ID.String())
		s.finishRun(snapshot, cfg, report)
		return report
	}
	if snapshot.Credits <= 0 {
		report.Skipped = true
		report.SkipReason = "insufficient credits"
		s.log.Warn("Autopilot run skipped, no credits", "user_id", snapshot.ID.String())
		s.finishRun(snapshot, cfg, report)
		return report
	}

	topics := cfg.Topics
	if len(topics) == 0 {
		topics = s.defaults.Topics
	}
	frameworks := s.defaults.Frameworks

	count := cfg.PostCount
	if count < 1 {
		count = 1
	}
	if count > maxBatchSize {
		count = maxBatchSize
	}

	working := snapshot
	existing := s.history.List()
	for i := 0; i < count; i++ {
		if working.Credits <= 0 {
			s.log.Info("Autopilot batch stopped early, credits exhausted", "generated", len(report.Generated))
			break
		}

		params := types.GenerationParams{
			Topic:           topics[s.rnd.Intn(len(topics))],
			Framework:       frameworks[s.rnd.Intn(len(frameworks))],
			Tone:            cfg.Tone,
			Audience:        firstNonEmpty(cfg.TargetAudience, working.TargetAudience),
			Length:          "medium",
			CreativityLevel: 7,
			EmojiDensity:    "low",
			IncludeCTA:      true,
		}

		res, err := s.workflow.Execute(ctx, working, params, existing, true)
		if err != nil {
			report.Errors = append(report.Errors, err)
			s.log.Warn("Autopilot generation failed, continuing batch",
				"index", i,
				"topic", params.Topic,
				"error", err,
			)
			continue
		}

		s.history.Add(res.Post)
		existing = append([]*types.Post{res.Post}, existing...)
		working = res.UpdatedProfile
		report.Generated = append(report.Generated, res.Post)
	}

	s.finishRun(working, cfg, report)
	s.log.Info("Autopilot batch finished",
		"generated", len(report.Generated),
		"errors", len(report.Errors),
		"next_run", report.NextRun,
	)
	return report
}

// finishRun commits the recomputed schedule and kicks off the background
// profile sync. In-memory state stands even if the sync fails.
func (s *AutopilotScheduler) finishRun(profile *types.UserProfile, cfg types.AutoPilotConfig, report *BatchReport) {
	next := s.NextRunTime(cfg, s.clock.Now())
	report.NextRun = next
	cfg.NextRun = &next
	profile.AutoPilot = datatypes.NewJSONType(cfg)
	s.state.Publish(profile)
	s.persistSchedule(profile)
}

func (s *AutopilotScheduler) persistSchedule(profile *types.UserProfile) {
	s.profiles.SyncAsync(profile.ID, SyncFieldsFromProfile(profile), nil)
}

// NextRunTime computes the next eligible run strictly after now. Ties roll
// forward to the following day.
func (s *AutopilotScheduler) NextRunTime(cfg types.AutoPilotConfig, now time.Time) time.Time {
	hour, minute := parseClockTime(cfg.Time)

	switch cfg.Frequency {
	case types.FrequencyCustom:
		return nextCustomRun(cfg.Days, hour, minute, now)
	case types.FrequencyWeekly:
		return nextIntervalRun(7*24*time.Hour, hour, minute, now)
	case types.FrequencyBiweekly:
		return nextIntervalRun(14*24*time.Hour, hour, minute, now)
	default:
		return nextIntervalRun(24*time.Hour, hour, minute, now)
	}
}

func nextIntervalRun(interval time.Duration, hour, minute int, now time.Time) time.Time {
	today := pinTime(now, hour, minute)
	if today.After(now) {
		return today
	}
	candidate := pinTime(now.Add(interval), hour, minute)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

func nextCustomRun(days []int, hour, minute int, now time.Time) time.Time {
	if len(days) > 0 {
		allowed := make(map[int]bool, len(days))
		for _, d := range days {
			allowed[d] = true
		}
		for i := 0; i < customScanBoundDays; i++ {
			day := now.AddDate(0, 0, i)
			if !allowed[int(day.Weekday())] {
				continue
			}
			candidate := pinTime(day, hour, minute)
			if candidate.After(now) {
				return candidate
			}
		}
	}
	// Safety default when no configured day lands inside the scan bound.
	return now.Add(24 * time.Hour)
}

func pinTime(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

// parseClockTime parses "HH:MM"; malformed input falls back to 09:00.
func parseClockTime(v string) (int, int) {
	parts := strings.SplitN(strings.TrimSpace(v), ":", 2)
	if len(parts) != 2 {
		return 9, 0
	}
	hour, err1 := strconv.Atoi(parts[0])
	minute, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 9, 0
	}
	return hour, minute
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// ValidateAutoPilotConfig checks a user-submitted recurrence configuration.
func ValidateAutoPilotConfig(cfg types.AutoPilotConfig) error {
	if !types.ValidFrequency(cfg.Frequency) {
		return fmt.Errorf("invalid frequency %q", cfg.Frequency)
	}
	parts := strings.SplitN(strings.TrimSpace(cfg.Time), ":", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid time %q, expected HH:MM", cfg.Time)
	}
	hour, err1 := strconv.Atoi(parts[0])
	minute, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("invalid time %q, expected HH:MM", cfg.Time)
	}
	if cfg.Frequency == types.FrequencyCustom && len(cfg.Days) == 0 {
		return fmt.Errorf("custom frequency requires at least one weekday")
	}
	for _, d := range cfg.Days {
		if d < 0 || d > 6 {
			return fmt.Errorf("invalid weekday index %d", d)
		}
	}
	if cfg.PostCount < 0 || cfg.PostCount > maxBatchSize {
		return fmt.Errorf("post_count must be between 0 and %d", maxBatchSize)
	}
	return nil
}
