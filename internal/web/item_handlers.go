package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/VisualStoriesHCA/HCABackend/internal/achievements"
	"github.com/VisualStoriesHCA/HCABackend/internal/engine"
	"github.com/VisualStoriesHCA/HCABackend/internal/interfaces"
	"github.com/VisualStoriesHCA/HCABackend/internal/models"
	"github.com/VisualStoriesHCA/HCABackend/internal/storage"
)

const (
	optionsCacheKey = "catalog:options"
	optionsCacheTTL = time.Hour
)

// ItemHandlers serves the story co-authoring API. Mutations go through the
// story engine; plain reads hit the repository directly.
type ItemHandlers struct {
	storyEngine  *engine.StoryEngine
	achievements *achievements.Engine
	repo         interfaces.StoryRepository
	catalog      interfaces.CatalogRepository
	cache        *storage.RedisStore // nil when redis is unavailable
}

// NewItemHandlers creates the API handler set. cache may be nil.
func NewItemHandlers(
	storyEngine *engine.StoryEngine,
	achievementEngine *achievements.Engine,
	repo interfaces.StoryRepository,
	catalog interfaces.CatalogRepository,
	cache *storage.RedisStore,
) *ItemHandlers {
	return &ItemHandlers{
		storyEngine:  storyEngine,
		achievements: achievementEngine,
		repo:         repo,
		catalog:      catalog,
		cache:        cache,
	}
}

// StoryBasicInfo is the listing projection of a story
type StoryBasicInfo struct {
	StoryID    string            `json:"storyId"`
	StoryName  string            `json:"storyName"`
	CoverImage string            `json:"coverImage"`
	State      models.StoryState `json:"state"`
	LastEdited time.Time         `json:"lastEdited"`
}

func basicInfo(story *models.Story) StoryBasicInfo {
	return StoryBasicInfo{
		StoryID:    story.ID,
		StoryName:  story.Name,
		CoverImage: story.CoverImage(),
		State:      story.State,
		LastEdited: story.LastEdited,
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// User endpoints

type createUserRequest struct {
	UserName string `json:"userName"`
	Name     string `json:"name"`
}

func (h *ItemHandlers) CreateNewUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserName == "" {
		writeError(w, http.StatusBadRequest, "userName is required")
		return
	}

	user, err := h.storyEngine.CreateUser(r.Context(), req.Name, req.UserName)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type deleteUserRequest struct {
	UserID string `json:"userId"`
}

func (h *ItemHandlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	var req deleteUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.storyEngine.DeleteUser(r.Context(), req.UserID); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *ItemHandlers) GetUserInformation(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *ItemHandlers) GetUserInformationByUserName(w http.ResponseWriter, r *http.Request) {
	userName := r.URL.Query().Get("userName")
	if userName == "" {
		writeError(w, http.StatusBadRequest, "userName is required")
		return
	}
	// User ids are derived from the username, so this is a plain key lookup.
	user, err := h.repo.GetUser(r.Context(), models.UserIDFor(userName))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Story endpoints

type createStoryRequest struct {
	UserID    string `json:"userId"`
	StoryName string `json:"storyName"`
}

func (h *ItemHandlers) CreateNewStory(w http.ResponseWriter, r *http.Request) {
	var req createStoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	story, err := h.storyEngine.CreateStory(r.Context(), req.UserID, req.StoryName)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, basicInfo(story))
}

type setStoryNameRequest struct {
	UserID    string `json:"userId"`
	StoryID   string `json:"storyId"`
	StoryName string `json:"storyName"`
}

func (h *ItemHandlers) SetStoryName(w http.ResponseWriter, r *http.Request) {
	var req setStoryNameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.StoryName == "" {
		writeError(w, http.StatusBadRequest, "storyName is required")
		return
	}
	story, err := h.storyEngine.SetStoryName(r.Context(), req.UserID, req.StoryID, req.StoryName)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, basicInfo(story))
}

type deleteStoryRequest struct {
	UserID  string `json:"userId"`
	StoryID string `json:"storyId"`
}

func (h *ItemHandlers) DeleteStory(w http.ResponseWriter, r *http.Request) {
	var req deleteStoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.storyEngine.DeleteStory(r.Context(), req.UserID, req.StoryID); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *ItemHandlers) GetUserStories(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	maxEntries := 0
	if raw := r.URL.Query().Get("maxEntries"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "maxEntries must be a non-negative integer")
			return
		}
		maxEntries = n
	}

	// Existence check so an unknown user is a 404, not an empty list.
	if _, err := h.repo.GetUser(r.Context(), userID); err != nil {
		writeEngineError(w, err)
		return
	}

	stories, err := h.repo.ListStories(r.Context(), userID, maxEntries)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	infos := make([]StoryBasicInfo, 0, len(stories))
	for i := range stories {
		infos = append(infos, basicInfo(&stories[i]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stories": infos})
}

func (h *ItemHandlers) GetStoryByID(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	storyID := r.URL.Query().Get("storyId")
	if userID == "" || storyID == "" {
		writeError(w, http.StatusBadRequest, "userId and storyId are required")
		return
	}
	story, err := h.repo.GetStory(r.Context(), userID, storyID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, story)
}

// Mutation endpoints

type updateTextByImagesRequest struct {
	UserID          string                `json:"userId"`
	StoryID         string                `json:"storyId"`
	ImageOperations []engine.RawOperation `json:"imageOperations"`
}

func (h *ItemHandlers) UpdateTextByImages(w http.ResponseWriter, r *http.Request) {
	var req updateTextByImagesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.ImageOperations) == 0 {
		writeError(w, http.StatusBadRequest, "imageOperations must not be empty")
		return
	}

	ops, err := engine.ParseOperations(req.ImageOperations)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	story, err := h.storyEngine.ApplyImageOperations(r.Context(), req.UserID, req.StoryID, ops)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, story)
}

type updateImagesByTextRequest struct {
	UserID      string `json:"userId"`
	StoryID     string `json:"storyId"`
	UpdatedText string `json:"updatedText"`
}

func (h *ItemHandlers) UpdateImagesByText(w http.ResponseWriter, r *http.Request) {
	var req updateImagesByTextRequest
	if !decodeBody(w, r, &req) {
		return
	}
	story, err := h.storyEngine.UpdateImagesByText(r.Context(), req.UserID, req.StoryID, req.UpdatedText)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, story)
}

type uploadImageRequest struct {
	UserID    string `json:"userId"`
	StoryID   string `json:"storyId"`
	ImageData string `json:"imageData"` // data URI
	Alt       string `json:"alt"`
}

func (h *ItemHandlers) UploadImage(w http.ResponseWriter, r *http.Request) {
	var req uploadImageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	payload, err := engine.ParseImageDataURI(req.ImageData)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	story, err := h.storyEngine.UploadImage(r.Context(), req.UserID, req.StoryID, payload, req.Alt)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, story)
}

type generateAudioRequest struct {
	UserID  string `json:"userId"`
	StoryID string `json:"storyId"`
}

func (h *ItemHandlers) GenerateAudio(w http.ResponseWriter, r *http.Request) {
	var req generateAudioRequest
	if !decodeBody(w, r, &req) {
		return
	}
	// Narration always reads the story's current text.
	story, err := h.repo.GetStory(r.Context(), req.UserID, req.StoryID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	story, err = h.storyEngine.GenerateAudio(r.Context(), req.UserID, req.StoryID, story.RawText())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, story)
}

type setStoryOptionsRequest struct {
	UserID             string `json:"userId"`
	StoryID            string `json:"storyId"`
	ImageModelID       *int   `json:"imageModelId"`
	DrawingStyleID     *int   `json:"drawingStyleId"`
	ColorBlindOptionID *int   `json:"colorBlindOptionId"`
	RegenerateImage    *bool  `json:"regenerateImage"`
}

func (h *ItemHandlers) SetStoryOptions(w http.ResponseWriter, r *http.Request) {
	var req setStoryOptionsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	story, err := h.storyEngine.SetStoryOptions(
		r.Context(), req.UserID, req.StoryID,
		req.ImageModelID, req.DrawingStyleID, req.ColorBlindOptionID, req.RegenerateImage,
	)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, story)
}

// Catalog and achievements

type availableOptionsResponse struct {
	ImageModels       []models.ImageModel       `json:"imageModels"`
	DrawingStyles     []models.DrawingStyle     `json:"drawingStyles"`
	ColorBlindOptions []models.ColorBlindOption `json:"colorblindOptions"`
	DefaultSettings   map[string]interface{}    `json:"defaultSettings"`
}

func (h *ItemHandlers) ListAvailableOptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.cache != nil {
		var cached availableOptionsResponse
		hit, err := h.cache.GetJSON(ctx, optionsCacheKey, &cached)
		if err != nil {
			log.Warn().Err(err).Msg("options cache read failed")
		} else if hit {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	resp, err := h.loadOptions(ctx)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if h.cache != nil {
		if err := h.cache.SetJSON(ctx, optionsCacheKey, resp, optionsCacheTTL); err != nil {
			log.Warn().Err(err).Msg("options cache write failed")
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ItemHandlers) loadOptions(ctx context.Context) (*availableOptionsResponse, error) {
	imageModels, err := h.catalog.ListImageModels(ctx)
	if err != nil {
		return nil, err
	}
	drawingStyles, err := h.catalog.ListDrawingStyles(ctx)
	if err != nil {
		return nil, err
	}
	colorBlindOptions, err := h.catalog.ListColorBlindOptions(ctx)
	if err != nil {
		return nil, err
	}
	return &availableOptionsResponse{
		ImageModels:       imageModels,
		DrawingStyles:     drawingStyles,
		ColorBlindOptions: colorBlindOptions,
		DefaultSettings: map[string]interface{}{
			"imageModelId":       engine.DefaultImageModelID,
			"drawingStyleId":     engine.DefaultDrawingStyleID,
			"colorBlindOptionId": engine.DefaultColorBlindOptionID,
			"regenerateImage":    engine.DefaultRegenerateImage,
		},
	}, nil
}

func (h *ItemHandlers) GetUserAchievements(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	if _, err := h.repo.GetUser(r.Context(), userID); err != nil {
		writeEngineError(w, err)
		return
	}
	views, err := h.achievements.ListForUser(r.Context(), userID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"userId":       userID,
		"achievements": views,
	})
}
