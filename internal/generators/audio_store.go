package generators

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/VisualStoriesHCA/HCABackend/internal/models"
)

const audioExt = ".mp3"

// FileAudioStore keeps synthesized narrations as numbered MP3 files in the
// same per-user/per-story area as the images.
type FileAudioStore struct {
	baseDir   string
	urlPrefix string
	now       func() time.Time
}

// NewFileAudioStore creates a store rooted at baseDir, served under urlPrefix.
func NewFileAudioStore(baseDir, urlPrefix string) *FileAudioStore {
	return &FileAudioStore{baseDir: baseDir, urlPrefix: urlPrefix, now: time.Now}
}

// Append writes the narration under the story's next audio ordinal and
// returns its retrieval URL.
func (s *FileAudioStore) Append(ctx context.Context, userID string, story *models.Story, audio []byte) (string, error) {
	ordinal := story.NextAudioOrdinal()
	audioID := models.AudioIDFor(story.ID, ordinal)

	dir := filepath.Join(s.baseDir, userID, story.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create audio directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, audioID+audioExt), audio, 0o644); err != nil {
		return "", fmt.Errorf("write audio %s: %w", audioID, err)
	}
	story.LastEdited = s.now().UTC()
	return fmt.Sprintf("%s/%s/%s/%s%s", s.urlPrefix, userID, story.ID, audioID, audioExt), nil
}

// Read returns the stored bytes of one narration.
func (s *FileAudioStore) Read(ctx context.Context, userID, storyID, audioID string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, userID, storyID, audioID+audioExt))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("audio %s: %w", audioID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("read audio %s: %w", audioID, err)
	}
	return data, nil
}
