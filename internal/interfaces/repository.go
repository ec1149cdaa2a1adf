package interfaces

import (
	"context"

	"github.com/VisualStoriesHCA/HCABackend/internal/models"
)

// StoryRepository persists users and story aggregates. Implementations must
// save a story together with its image rows; the engine mutates the aggregate
// in memory and persists it as a unit. Callers are expected to serialize
// writes per aggregate instance (the ordinal counters are not guarded here).
type StoryRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, userID string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, userID string) error

	// GetStory loads the aggregate with its images ordered by ordinal.
	GetStory(ctx context.Context, userID, storyID string) (*models.Story, error)
	ListStories(ctx context.Context, userID string, limit int) ([]models.Story, error)
	SaveStory(ctx context.Context, story *models.Story) error
	DeleteStory(ctx context.Context, userID, storyID string) error
}

// AchievementRepository persists achievement progress and reads the immutable
// catalog.
type AchievementRepository interface {
	GetAchievement(ctx context.Context, achievementID string) (*models.Achievement, error)
	ListAchievements(ctx context.Context) ([]models.Achievement, error)

	GetUserAchievement(ctx context.Context, userID, achievementID string) (*models.UserAchievement, error)
	SaveUserAchievement(ctx context.Context, progress *models.UserAchievement) error
	ListUserAchievements(ctx context.Context, userID string) ([]models.UserAchievement, error)
}

// CatalogRepository reads the per-story generation option catalogs.
type CatalogRepository interface {
	ListImageModels(ctx context.Context) ([]models.ImageModel, error)
	ListDrawingStyles(ctx context.Context) ([]models.DrawingStyle, error)
	ListColorBlindOptions(ctx context.Context) ([]models.ColorBlindOption, error)
	GetImageModel(ctx context.Context, id int) (*models.ImageModel, error)
	GetDrawingStyle(ctx context.Context, id int) (*models.DrawingStyle, error)
	GetColorBlindOption(ctx context.Context, id int) (*models.ColorBlindOption, error)
}
