package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VisualStoriesHCA/HCABackend/internal/achievements"
	"github.com/VisualStoriesHCA/HCABackend/internal/config"
	"github.com/VisualStoriesHCA/HCABackend/internal/engine"
	"github.com/VisualStoriesHCA/HCABackend/internal/models"
)

type memoryRepo struct {
	users   map[string]*models.User
	stories map[string]*models.Story
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		users:   make(map[string]*models.User),
		stories: make(map[string]*models.Story),
	}
}

func (r *memoryRepo) CreateUser(_ context.Context, user *models.User) error {
	if _, ok := r.users[user.ID]; ok {
		return fmt.Errorf("user %s: %w", user.ID, models.ErrAlreadyExists)
	}
	r.users[user.ID] = user
	return nil
}

func (r *memoryRepo) GetUser(_ context.Context, userID string) (*models.User, error) {
	user, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}
	return user, nil
}

func (r *memoryRepo) SaveUser(_ context.Context, user *models.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *memoryRepo) DeleteUser(_ context.Context, userID string) error {
	delete(r.users, userID)
	return nil
}

func (r *memoryRepo) GetStory(_ context.Context, userID, storyID string) (*models.Story, error) {
	story, ok := r.stories[userID+"/"+storyID]
	if !ok {
		return nil, fmt.Errorf("story %s: %w", storyID, models.ErrNotFound)
	}
	return story, nil
}

func (r *memoryRepo) ListStories(_ context.Context, userID string, _ int) ([]models.Story, error) {
	var out []models.Story
	for _, story := range r.stories {
		if story.UserID == userID {
			out = append(out, *story)
		}
	}
	return out, nil
}

func (r *memoryRepo) SaveStory(_ context.Context, story *models.Story) error {
	r.stories[story.UserID+"/"+story.ID] = story
	return nil
}

func (r *memoryRepo) DeleteStory(_ context.Context, userID, storyID string) error {
	delete(r.stories, userID+"/"+storyID)
	return nil
}

type memoryCatalog struct{}

func (memoryCatalog) ListImageModels(context.Context) ([]models.ImageModel, error) {
	return []models.ImageModel{{ID: 1, Name: "OpenAI"}}, nil
}
func (memoryCatalog) ListDrawingStyles(context.Context) ([]models.DrawingStyle, error) {
	return []models.DrawingStyle{{ID: 1, Name: "cartoonish"}}, nil
}
func (memoryCatalog) ListColorBlindOptions(context.Context) ([]models.ColorBlindOption, error) {
	return []models.ColorBlindOption{{ID: 1, Name: "default"}}, nil
}
func (memoryCatalog) GetImageModel(_ context.Context, id int) (*models.ImageModel, error) {
	if id != 1 {
		return nil, fmt.Errorf("image model %d: %w", id, models.ErrNotFound)
	}
	return &models.ImageModel{ID: 1, Name: "OpenAI"}, nil
}
func (memoryCatalog) GetDrawingStyle(_ context.Context, id int) (*models.DrawingStyle, error) {
	if id != 1 {
		return nil, fmt.Errorf("drawing style %d: %w", id, models.ErrNotFound)
	}
	return &models.DrawingStyle{ID: 1, Name: "cartoonish"}, nil
}
func (memoryCatalog) GetColorBlindOption(_ context.Context, id int) (*models.ColorBlindOption, error) {
	if id != 1 {
		return nil, fmt.Errorf("color blind option %d: %w", id, models.ErrNotFound)
	}
	return &models.ColorBlindOption{ID: 1, Name: "default"}, nil
}

type memoryAchievementRepo struct {
	records map[string]*models.UserAchievement
}

func (r *memoryAchievementRepo) GetAchievement(_ context.Context, id string) (*models.Achievement, error) {
	return &models.Achievement{ID: id, TargetValue: 10}, nil
}

func (r *memoryAchievementRepo) ListAchievements(context.Context) ([]models.Achievement, error) {
	return []models.Achievement{
		{ID: "1", Title: "Storyteller", TargetValue: 10},
		{ID: "2", Title: "Novelist", TargetValue: 1000},
	}, nil
}

func (r *memoryAchievementRepo) GetUserAchievement(_ context.Context, userID, achievementID string) (*models.UserAchievement, error) {
	rec, ok := r.records[userID+"/"+achievementID]
	if !ok {
		return nil, fmt.Errorf("progress: %w", models.ErrNotFound)
	}
	return rec, nil
}

func (r *memoryAchievementRepo) SaveUserAchievement(_ context.Context, rec *models.UserAchievement) error {
	r.records[rec.UserID+"/"+rec.AchievementID] = rec
	return nil
}

func (r *memoryAchievementRepo) ListUserAchievements(_ context.Context, userID string) ([]models.UserAchievement, error) {
	var out []models.UserAchievement
	for _, rec := range r.records {
		if rec.UserID == userID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	achRepo := &memoryAchievementRepo{records: make(map[string]*models.UserAchievement)}
	achievementEngine := achievements.NewEngine(achRepo)

	// Media and stores stay nil: these tests only cover routes that never
	// reach a generative call.
	storyEngine := engine.NewStoryEngine(repo, memoryCatalog{}, nil, nil, nil)
	storyEngine.AttachProgress(achievementEngine)

	cfg := &config.Config{}
	cfg.Storage.DataDir = t.TempDir()
	cfg.Storage.MediaURLPrefix = "/media"

	items := NewItemHandlers(storyEngine, achievementEngine, repo, memoryCatalog{}, nil)
	srv := httptest.NewServer(NewRouter(cfg, items, nil, nil))
	t.Cleanup(srv.Close)
	return srv, repo
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestUserEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	t.Run("create user derives the id", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/items/createNewUser", `{"userName":"alice","name":"Alice Example"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "id_alice", body["userId"])
		assert.Equal(t, "alice", body["userName"])
	})

	t.Run("duplicate username is a 400", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/items/createNewUser", `{"userName":"alice"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("lookup by username", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/items/getUserInformationByUserName?userName=alice", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "id_alice", body["userId"])
	})

	t.Run("missing query parameter is a 400", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/items/getUserInformation", "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown user is a 404", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/items/getUserInformation?userId=id_nobody", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestStoryEndpoints(t *testing.T) {
	srv, repo := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/items/createNewUser", `{"userName":"bob"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	t.Run("create story returns the listing projection", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/items/createNewStory", `{"userId":"id_bob"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "story_id_bob_1", body["storyId"])
		assert.Equal(t, models.DefaultStoryName, body["storyName"])
		assert.Equal(t, "completed", body["state"])
	})

	t.Run("get story by id returns the full shape", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/items/getStoryById?userId=id_bob&storyId=story_id_bob_1", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "story_id_bob_1", body["storyId"])
		assert.Contains(t, body, "storyText")
		assert.Contains(t, body, "storyImages")
	})

	t.Run("rename sticks", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/items/setStoryName", `{"userId":"id_bob","storyId":"story_id_bob_1","storyName":"My Tale"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "My Tale", body["storyName"])

		stored, err := repo.GetStory(context.Background(), "id_bob", "story_id_bob_1")
		require.NoError(t, err)
		assert.Equal(t, "My Tale", stored.Name)
	})

	t.Run("malformed image operation is a 400", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/items/updateTextByImages",
			`{"userId":"id_bob","storyId":"story_id_bob_1","imageOperations":[{"type":"repaint"}]}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body["detail"], "unknown")
	})

	t.Run("unknown story option is a 404", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/items/setStoryOptions",
			`{"userId":"id_bob","storyId":"story_id_bob_1","drawingStyleId":42}`)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("list stories for unknown user is a 404", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/items/getUserStories?userId=id_nobody", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestListAvailableOptions(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/items/listAvailableOptions", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "imageModels")
	assert.Contains(t, body, "drawingStyles")
	assert.Contains(t, body, "colorblindOptions")

	defaults, ok := body["defaultSettings"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(engine.DefaultImageModelID), defaults["imageModelId"])
	assert.Equal(t, true, defaults["regenerateImage"])
}

func TestGetUserAchievements(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/items/createNewUser", `{"userName":"carol"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, _ = doJSON(t, http.MethodPost, srv.URL+"/api/items/createNewStory", `{"userId":"id_carol"}`)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/items/getUserAchievements?userId=id_carol", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "id_carol", body["userId"])

	views, ok := body["achievements"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, views)
	first := views[0].(map[string]interface{})
	assert.Contains(t, first, "state")
	assert.Contains(t, first, "currentValue")
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "unknown", body["generative"])
}
