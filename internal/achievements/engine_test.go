package achievements

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VisualStoriesHCA/HCABackend/internal/models"
)

type fakeAchievementRepo struct {
	catalog map[string]*models.Achievement
	records map[string]*models.UserAchievement
}

func progressKey(userID, achievementID string) string { return userID + "/" + achievementID }

func newFakeAchievementRepo() *fakeAchievementRepo {
	return &fakeAchievementRepo{
		catalog: map[string]*models.Achievement{
			StoriesCreatedID: {ID: StoriesCreatedID, Title: "Storyteller", TargetValue: 10},
			LongestStoryID:   {ID: LongestStoryID, Title: "Novelist", TargetValue: 1000},
			EditsMadeID:      {ID: EditsMadeID, Title: "Busy Hands", TargetValue: 25},
			CreativeStreakID: {ID: CreativeStreakID, Title: "Creative Streak", TargetValue: 7},
		},
		records: make(map[string]*models.UserAchievement),
	}
}

func (r *fakeAchievementRepo) GetAchievement(_ context.Context, id string) (*models.Achievement, error) {
	def, ok := r.catalog[id]
	if !ok {
		return nil, fmt.Errorf("achievement %s: %w", id, models.ErrNotFound)
	}
	return def, nil
}

func (r *fakeAchievementRepo) ListAchievements(context.Context) ([]models.Achievement, error) {
	out := make([]models.Achievement, 0, len(r.catalog))
	for _, id := range []string{StoriesCreatedID, LongestStoryID, EditsMadeID, CreativeStreakID} {
		out = append(out, *r.catalog[id])
	}
	return out, nil
}

func (r *fakeAchievementRepo) GetUserAchievement(_ context.Context, userID, achievementID string) (*models.UserAchievement, error) {
	rec, ok := r.records[progressKey(userID, achievementID)]
	if !ok {
		return nil, fmt.Errorf("progress %s: %w", achievementID, models.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeAchievementRepo) SaveUserAchievement(_ context.Context, rec *models.UserAchievement) error {
	cp := *rec
	r.records[progressKey(rec.UserID, rec.AchievementID)] = &cp
	return nil
}

func (r *fakeAchievementRepo) ListUserAchievements(_ context.Context, userID string) ([]models.UserAchievement, error) {
	var out []models.UserAchievement
	for _, rec := range r.records {
		if rec.UserID == userID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// testClock advances a fixed amount per call site on demand.
type testClock struct {
	current time.Time
}

func newTestClock() *testClock {
	return &testClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) now() time.Time { return c.current }

func (c *testClock) advance(d time.Duration) { c.current = c.current.Add(d) }

func newTestEngine() (*Engine, *fakeAchievementRepo, *testClock) {
	repo := newFakeAchievementRepo()
	clock := newTestClock()
	e := NewEngine(repo)
	e.now = clock.now
	return e, repo, clock
}

const userID = "id_alice"

func record(t *testing.T, repo *fakeAchievementRepo, achievementID string) *models.UserAchievement {
	t.Helper()
	rec, ok := repo.records[progressKey(userID, achievementID)]
	require.True(t, ok, "no progress record for achievement %s", achievementID)
	return rec
}

func TestStoriesCreatedRule(t *testing.T) {
	e, repo, clock := newTestEngine()
	ctx := context.Background()

	for i := 0; i < 9; i++ {
		clock.advance(2 * time.Minute)
		require.NoError(t, e.StoryCreated(ctx, userID))
	}
	rec := record(t, repo, StoriesCreatedID)
	assert.Equal(t, 9, rec.CurrentValue)
	assert.Equal(t, models.AchievementStateInProgress, rec.State)
	assert.Nil(t, rec.CompletedAt)

	clock.advance(2 * time.Minute)
	require.NoError(t, e.StoryCreated(ctx, userID))
	rec = record(t, repo, StoriesCreatedID)
	assert.Equal(t, 10, rec.CurrentValue)
	assert.Equal(t, models.AchievementStateCompleted, rec.State)
	require.NotNil(t, rec.CompletedAt)
	completedAt := *rec.CompletedAt

	// Progress keeps accumulating, completion happens once.
	clock.advance(2 * time.Minute)
	require.NoError(t, e.StoryCreated(ctx, userID))
	rec = record(t, repo, StoriesCreatedID)
	assert.Equal(t, 11, rec.CurrentValue)
	assert.Equal(t, completedAt, *rec.CompletedAt)
}

func TestLongestStoryRule(t *testing.T) {
	e, repo, _ := newTestEngine()
	ctx := context.Background()

	require.NoError(t, e.StoryMutated(ctx, userID, "The  fox\n sleeps."))
	rec := record(t, repo, LongestStoryID)
	// "The fox sleeps." after collapsing whitespace.
	assert.Equal(t, 15, rec.CurrentValue)

	// A shorter text never lowers the high-water mark.
	require.NoError(t, e.StoryMutated(ctx, userID, "Short."))
	rec = record(t, repo, LongestStoryID)
	assert.Equal(t, 15, rec.CurrentValue)

	// Length is counted in runes, not bytes.
	require.NoError(t, e.StoryMutated(ctx, userID, strings.Repeat("ли", 500)))
	rec = record(t, repo, LongestStoryID)
	assert.Equal(t, 1000, rec.CurrentValue)
	assert.Equal(t, models.AchievementStateCompleted, rec.State)
}

func TestEditsMadeRule(t *testing.T) {
	e, repo, _ := newTestEngine()
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		require.NoError(t, e.StoryMutated(ctx, userID, "text"))
	}
	rec := record(t, repo, EditsMadeID)
	assert.Equal(t, 25, rec.CurrentValue)
	assert.Equal(t, models.AchievementStateCompleted, rec.State)
}

func TestCreativeStreakRule(t *testing.T) {
	t.Run("sub-interval mutations are one session", func(t *testing.T) {
		e, repo, clock := newTestEngine()
		ctx := context.Background()

		require.NoError(t, e.StoryMutated(ctx, userID, "text"))
		rec := record(t, repo, CreativeStreakID)
		assert.Equal(t, 1, rec.CurrentValue)

		clock.advance(30 * time.Second)
		require.NoError(t, e.StoryMutated(ctx, userID, "text"))
		rec = record(t, repo, CreativeStreakID)
		assert.Equal(t, 1, rec.CurrentValue)

		clock.advance(31 * time.Second)
		require.NoError(t, e.StoryMutated(ctx, userID, "text"))
		rec = record(t, repo, CreativeStreakID)
		assert.Equal(t, 2, rec.CurrentValue)
	})

	t.Run("completion is gated on the story-count rule", func(t *testing.T) {
		e, repo, clock := newTestEngine()
		ctx := context.Background()

		for i := 0; i < 7; i++ {
			clock.advance(2 * time.Minute)
			require.NoError(t, e.StoryMutated(ctx, userID, "text"))
		}
		rec := record(t, repo, CreativeStreakID)
		assert.Equal(t, 7, rec.CurrentValue)
		assert.Equal(t, models.AchievementStateInProgress, rec.State)

		// Completing the story-count rule unblocks the streak immediately.
		for i := 0; i < 10; i++ {
			clock.advance(2 * time.Minute)
			require.NoError(t, e.StoryCreated(ctx, userID))
		}
		rec = record(t, repo, CreativeStreakID)
		assert.Equal(t, models.AchievementStateCompleted, rec.State)
	})
}

func TestListForUser(t *testing.T) {
	e, _, _ := newTestEngine()
	ctx := context.Background()

	t.Run("fresh user reads the whole catalog as locked", func(t *testing.T) {
		views, err := e.ListForUser(ctx, userID)
		require.NoError(t, err)
		require.Len(t, views, 4)
		for _, view := range views {
			assert.Equal(t, models.AchievementStateLocked, view.State)
			assert.Equal(t, 0, view.CurrentValue)
		}
	})

	t.Run("progress shows up joined with the catalog", func(t *testing.T) {
		require.NoError(t, e.StoryCreated(ctx, userID))

		views, err := e.ListForUser(ctx, userID)
		require.NoError(t, err)
		byID := make(map[string]UserAchievementView)
		for _, view := range views {
			byID[view.ID] = view
		}
		assert.Equal(t, 1, byID[StoriesCreatedID].CurrentValue)
		assert.Equal(t, models.AchievementStateInProgress, byID[StoriesCreatedID].State)
		assert.Equal(t, models.AchievementStateLocked, byID[LongestStoryID].State)
	})
}

func TestCollapsedLength(t *testing.T) {
	assert.Equal(t, 0, collapsedLength(""))
	assert.Equal(t, 0, collapsedLength("   \n\t "))
	assert.Equal(t, 3, collapsedLength("abc"))
	assert.Equal(t, 7, collapsedLength("  abc \n def  "))
	assert.Equal(t, 5, collapsedLength("ли са"))
}
