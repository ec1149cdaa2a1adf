// Package generators holds the media-producing collaborators of the story
// engine: the file-backed image and audio version stores and the OpenAI
// generative media client.
package generators

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/image/webp"

	"github.com/VisualStoriesHCA/HCABackend/internal/interfaces"
	"github.com/VisualStoriesHCA/HCABackend/internal/models"
)

// ErrUnsupportedImageFormat is returned when a payload's media type tag is
// not one of the supported raster formats.
var ErrUnsupportedImageFormat = errors.New("unsupported image format")

const (
	canonicalMediaType = "image/jpeg"
	canonicalExt       = ".jpg"
	jpegQuality        = 90
)

// FileImageStore keeps each story's image history as numbered JPEG files
// under baseDir/{userId}/{storyId}. All accepted formats are normalized to
// JPEG on write; transparency is flattened onto white since JPEG has no
// alpha.
type FileImageStore struct {
	baseDir   string
	urlPrefix string
	now       func() time.Time
}

// NewFileImageStore creates a store rooted at baseDir. urlPrefix is the URL
// path under which the files are served, e.g. "/media".
func NewFileImageStore(baseDir, urlPrefix string) *FileImageStore {
	return &FileImageStore{baseDir: baseDir, urlPrefix: urlPrefix, now: time.Now}
}

// Append normalizes the payload, allocates the story's next image ordinal,
// writes the file and appends the record to the aggregate. Ordinals are never
// reused, even when a later step of the same mutation fails.
func (s *FileImageStore) Append(ctx context.Context, userID string, story *models.Story, payload interfaces.ImagePayload, alt string) (*models.Image, error) {
	data, err := normalizeToJPEG(payload)
	if err != nil {
		return nil, err
	}

	ordinal := story.NextImageOrdinal()
	imageID := models.ImageIDFor(story.ID, ordinal)

	dir := filepath.Join(s.baseDir, userID, story.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, imageID+canonicalExt), data, 0o644); err != nil {
		return nil, fmt.Errorf("write image %s: %w", imageID, err)
	}

	img := models.Image{
		ID:      imageID,
		StoryID: story.ID,
		Ordinal: ordinal,
		URL:     fmt.Sprintf("%s/%s/%s/%s%s", s.urlPrefix, userID, story.ID, imageID, canonicalExt),
		Alt:     alt,
	}
	story.Images = append(story.Images, img)
	story.LastEdited = s.now().UTC()
	return &story.Images[len(story.Images)-1], nil
}

// Read returns the stored canonical bytes of one image version.
func (s *FileImageStore) Read(ctx context.Context, userID, storyID, imageID string) (interfaces.ImagePayload, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, userID, storyID, imageID+canonicalExt))
	if err != nil {
		if os.IsNotExist(err) {
			return interfaces.ImagePayload{}, fmt.Errorf("image %s: %w", imageID, models.ErrNotFound)
		}
		return interfaces.ImagePayload{}, fmt.Errorf("read image %s: %w", imageID, err)
	}
	return interfaces.ImagePayload{MediaType: canonicalMediaType, Data: data}, nil
}

// DeleteStoryAssets removes every stored file of one story.
func (s *FileImageStore) DeleteStoryAssets(userID, storyID string) error {
	return os.RemoveAll(filepath.Join(s.baseDir, userID, storyID))
}

// DeleteUserAssets removes every stored file of one user.
func (s *FileImageStore) DeleteUserAssets(userID string) error {
	return os.RemoveAll(filepath.Join(s.baseDir, userID))
}

// normalizeToJPEG re-encodes any supported raster payload to the canonical
// on-disk format. JPEG input passes through untouched.
func normalizeToJPEG(payload interfaces.ImagePayload) ([]byte, error) {
	var (
		src image.Image
		err error
	)
	switch payload.MediaType {
	case "image/jpeg", "image/jpg":
		return payload.Data, nil
	case "image/png":
		src, err = png.Decode(bytes.NewReader(payload.Data))
	case "image/gif":
		src, err = gif.Decode(bytes.NewReader(payload.Data))
	case "image/webp":
		src, err = webp.Decode(bytes.NewReader(payload.Data))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedImageFormat, payload.MediaType)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", payload.MediaType, err)
	}

	// Flatten onto white; JPEG cannot carry the alpha channel.
	bounds := src.Bounds()
	flat := image.NewRGBA(bounds)
	draw.Draw(flat, bounds, image.White, image.Point{}, draw.Src)
	draw.Draw(flat, bounds, src, bounds.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
