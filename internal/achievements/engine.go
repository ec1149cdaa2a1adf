// Package achievements advances per-user achievement progress from story
// mutation events. Rules are keyed by catalog id and are idempotent per
// triggering event; invoking a rule once per logical event is the caller's
// responsibility.
package achievements

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/VisualStoriesHCA/HCABackend/internal/interfaces"
	"github.com/VisualStoriesHCA/HCABackend/internal/models"
)

// Catalog ids of the fixed rule set.
const (
	StoriesCreatedID = "1" // count of stories created
	LongestStoryID   = "2" // longest story text written
	EditsMadeID      = "3" // count of text/image edits
	CreativeStreakID = "4" // time-gated session counter, gated on id 1
)

// streakInterval is the minimum gap between mutations for the streak rule to
// advance. Sub-interval mutations are ignored: they are the same session.
const streakInterval = time.Minute

// Engine updates a user's progress records in response to mutation events.
type Engine struct {
	repo interfaces.AchievementRepository
	now  func() time.Time
}

// NewEngine creates an achievement engine over the progress repository.
func NewEngine(repo interfaces.AchievementRepository) *Engine {
	return &Engine{repo: repo, now: time.Now}
}

// StoryCreated advances the story-creation counter and the streak counter.
func (e *Engine) StoryCreated(ctx context.Context, userID string) error {
	if err := e.bumpStoriesCreated(ctx, userID); err != nil {
		return err
	}
	return e.advanceStreak(ctx, userID)
}

// StoryMutated advances the longest-story, edit and streak counters for one
// text/image mutation. rawText is the story's current raw text.
func (e *Engine) StoryMutated(ctx context.Context, userID, rawText string) error {
	if err := e.updateLongestStory(ctx, userID, rawText); err != nil {
		return err
	}
	if err := e.bumpEditsMade(ctx, userID); err != nil {
		return err
	}
	return e.advanceStreak(ctx, userID)
}

// ListForUser projects the full catalog for a user. Achievements without a
// progress record read as locked with value 0; nothing is persisted on read.
func (e *Engine) ListForUser(ctx context.Context, userID string) ([]UserAchievementView, error) {
	catalog, err := e.repo.ListAchievements(ctx)
	if err != nil {
		return nil, err
	}
	records, err := e.repo.ListUserAchievements(ctx, userID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.UserAchievement, len(records))
	for _, rec := range records {
		byID[rec.AchievementID] = rec
	}

	views := make([]UserAchievementView, 0, len(catalog))
	for _, def := range catalog {
		view := UserAchievementView{
			Achievement: def,
			State:       models.AchievementStateLocked,
		}
		if rec, ok := byID[def.ID]; ok {
			view.State = rec.State
			view.CurrentValue = rec.CurrentValue
			view.CompletedAt = rec.CompletedAt
			view.LastUpdate = &rec.LastUpdate
		}
		views = append(views, view)
	}
	return views, nil
}

// UserAchievementView joins a catalog definition with the user's progress.
type UserAchievementView struct {
	models.Achievement
	State        models.AchievementState `json:"state"`
	CurrentValue int                     `json:"currentValue"`
	CompletedAt  *time.Time              `json:"completedAt,omitempty"`
	LastUpdate   *time.Time              `json:"lastUpdate,omitempty"`
}

// bumpStoriesCreated implements rule 1. Completing it may also unblock the
// streak achievement, whose threshold is gated on rule 1 being done.
func (e *Engine) bumpStoriesCreated(ctx context.Context, userID string) error {
	def, rec, err := e.loadProgress(ctx, userID, StoriesCreatedID)
	if err != nil {
		return err
	}
	rec.CurrentValue++
	wasCompleted := rec.State == models.AchievementStateCompleted
	e.settle(def, rec)
	if err := e.repo.SaveUserAchievement(ctx, rec); err != nil {
		return fmt.Errorf("save progress %s: %w", StoriesCreatedID, err)
	}

	if !wasCompleted && rec.State == models.AchievementStateCompleted {
		return e.reevaluateStreakUnlock(ctx, userID)
	}
	return nil
}

// updateLongestStory implements rule 2: a high-water mark over the
// whitespace-collapsed length of the story text.
func (e *Engine) updateLongestStory(ctx context.Context, userID, rawText string) error {
	def, rec, err := e.loadProgress(ctx, userID, LongestStoryID)
	if err != nil {
		return err
	}
	if n := collapsedLength(rawText); n > rec.CurrentValue {
		rec.CurrentValue = n
	}
	e.settle(def, rec)
	if err := e.repo.SaveUserAchievement(ctx, rec); err != nil {
		return fmt.Errorf("save progress %s: %w", LongestStoryID, err)
	}
	return nil
}

// bumpEditsMade implements rule 3.
func (e *Engine) bumpEditsMade(ctx context.Context, userID string) error {
	def, rec, err := e.loadProgress(ctx, userID, EditsMadeID)
	if err != nil {
		return err
	}
	rec.CurrentValue++
	e.settle(def, rec)
	if err := e.repo.SaveUserAchievement(ctx, rec); err != nil {
		return fmt.Errorf("save progress %s: %w", EditsMadeID, err)
	}
	return nil
}

// advanceStreak implements rule 4: the counter advances at most once per
// streakInterval, and completion additionally requires rule 1 to be done.
// The gate is re-checked on every event that re-evaluates the threshold, not
// only the one that crossed it.
func (e *Engine) advanceStreak(ctx context.Context, userID string) error {
	def, rec, err := e.loadProgress(ctx, userID, CreativeStreakID)
	if err != nil {
		return err
	}
	now := e.now()
	if now.Sub(rec.LastUpdate) >= streakInterval {
		rec.CurrentValue++
		rec.LastUpdate = now
		if rec.State == models.AchievementStateLocked {
			rec.State = models.AchievementStateInProgress
		}
	}
	if rec.State != models.AchievementStateCompleted && rec.CurrentValue >= def.TargetValue {
		done, err := e.isCompleted(ctx, userID, StoriesCreatedID)
		if err != nil {
			return err
		}
		if done {
			e.complete(rec)
		}
	}
	if err := e.repo.SaveUserAchievement(ctx, rec); err != nil {
		return fmt.Errorf("save progress %s: %w", CreativeStreakID, err)
	}
	return nil
}

// reevaluateStreakUnlock completes the streak achievement when its threshold
// was already reached while rule 1 was still incomplete.
func (e *Engine) reevaluateStreakUnlock(ctx context.Context, userID string) error {
	def, rec, err := e.loadProgress(ctx, userID, CreativeStreakID)
	if err != nil {
		return err
	}
	if rec.State == models.AchievementStateCompleted || rec.CurrentValue < def.TargetValue {
		return nil
	}
	e.complete(rec)
	if err := e.repo.SaveUserAchievement(ctx, rec); err != nil {
		return fmt.Errorf("save progress %s: %w", CreativeStreakID, err)
	}
	return nil
}

// loadProgress fetches the catalog definition and the user's record, creating
// a fresh in-memory record on first progress. A missing catalog entry is a
// hard error.
func (e *Engine) loadProgress(ctx context.Context, userID, achievementID string) (*models.Achievement, *models.UserAchievement, error) {
	def, err := e.repo.GetAchievement(ctx, achievementID)
	if err != nil {
		return nil, nil, fmt.Errorf("achievement %s: %w", achievementID, err)
	}
	rec, err := e.repo.GetUserAchievement(ctx, userID, achievementID)
	if err == nil {
		return def, rec, nil
	}
	if !isNotFound(err) {
		return nil, nil, err
	}
	return def, &models.UserAchievement{
		UserID:        userID,
		AchievementID: achievementID,
		State:         models.AchievementStateLocked,
	}, nil
}

// settle moves a record to in_progress on first progress and to completed
// exactly once at its target. Values may accumulate past the target; state
// never regresses.
func (e *Engine) settle(def *models.Achievement, rec *models.UserAchievement) {
	rec.LastUpdate = e.now()
	if rec.State == models.AchievementStateCompleted {
		return
	}
	if rec.CurrentValue >= def.TargetValue {
		e.complete(rec)
		return
	}
	if rec.CurrentValue > 0 {
		rec.State = models.AchievementStateInProgress
	}
}

func (e *Engine) complete(rec *models.UserAchievement) {
	rec.State = models.AchievementStateCompleted
	now := e.now()
	rec.CompletedAt = &now
	rec.LastUpdate = now
}

func (e *Engine) isCompleted(ctx context.Context, userID, achievementID string) (bool, error) {
	rec, err := e.repo.GetUserAchievement(ctx, userID, achievementID)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return rec.State == models.AchievementStateCompleted, nil
}

// collapsedLength counts the runes of the text with whitespace runs collapsed
// to single spaces.
func collapsedLength(text string) int {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	n := len(fields) - 1 // one space between fields
	for _, f := range fields {
		n += len([]rune(f))
	}
	return n
}

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}
