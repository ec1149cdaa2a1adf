package interfaces

import (
	"context"

	"github.com/VisualStoriesHCA/HCABackend/internal/models"
)

// ImageVersionStore appends image versions to a story's history and serves
// their bytes back. Appending allocates the story's next image ordinal,
// normalizes the payload to the canonical on-disk format, writes the file
// and adds a record to the aggregate; nothing is persisted to the database
// here.
type ImageVersionStore interface {
	Append(ctx context.Context, userID string, story *models.Story, payload ImagePayload, alt string) (*models.Image, error)
	Read(ctx context.Context, userID, storyID, imageID string) (ImagePayload, error)
	DeleteStoryAssets(userID, storyID string) error
	DeleteUserAssets(userID string) error
}

// AudioStore writes synthesized narration under a story's next audio ordinal
// and returns its retrieval URL.
type AudioStore interface {
	Append(ctx context.Context, userID string, story *models.Story, audio []byte) (string, error)
	Read(ctx context.Context, userID, storyID, audioID string) ([]byte, error)
}

// ProgressTracker observes story mutations and advances achievement progress.
type ProgressTracker interface {
	StoryCreated(ctx context.Context, userID string) error
	StoryMutated(ctx context.Context, userID, rawText string) error
}

// StateNotifier receives story lifecycle transitions as they are persisted.
type StateNotifier interface {
	StoryStateChanged(userID, storyID string, state models.StoryState)
}
