package generators

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VisualStoriesHCA/HCABackend/internal/interfaces"
	"github.com/VisualStoriesHCA/HCABackend/internal/models"
)

func pngPayload(t *testing.T, c color.Color) interfaces.ImagePayload {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return interfaces.ImagePayload{MediaType: "image/png", Data: buf.Bytes()}
}

func newTestStory() *models.Story {
	return &models.Story{ID: "story_id_alice_1", UserID: "id_alice"}
}

func TestImageStoreAppend(t *testing.T) {
	store := NewFileImageStore(t.TempDir(), "/media")
	story := newTestStory()
	ctx := context.Background()

	img, err := store.Append(ctx, "id_alice", story, pngPayload(t, color.White), "first sketch")
	require.NoError(t, err)

	assert.Equal(t, models.ImageIDFor(story.ID, 1), img.ID)
	assert.Equal(t, 1, img.Ordinal)
	assert.Equal(t, "/media/id_alice/story_id_alice_1/img_story_id_alice_1_1.jpg", img.URL)
	assert.Equal(t, "first sketch", img.Alt)
	require.Len(t, story.Images, 1)

	// Second append allocates the next ordinal.
	img2, err := store.Append(ctx, "id_alice", story, pngPayload(t, color.Black), "")
	require.NoError(t, err)
	assert.Equal(t, 2, img2.Ordinal)
	assert.Len(t, story.Images, 2)
}

func TestImageStoreNormalization(t *testing.T) {
	store := NewFileImageStore(t.TempDir(), "/media")
	ctx := context.Background()

	t.Run("png is stored as decodable jpeg", func(t *testing.T) {
		story := newTestStory()
		img, err := store.Append(ctx, "id_alice", story, pngPayload(t, color.White), "")
		require.NoError(t, err)

		payload, err := store.Read(ctx, "id_alice", story.ID, img.ID)
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", payload.MediaType)
		_, err = jpeg.Decode(bytes.NewReader(payload.Data))
		assert.NoError(t, err)
	})

	t.Run("transparency is flattened onto white", func(t *testing.T) {
		story := newTestStory()
		transparent := pngPayload(t, color.NRGBA{R: 0, G: 0, B: 0, A: 0})
		img, err := store.Append(ctx, "id_alice", story, transparent, "")
		require.NoError(t, err)

		payload, err := store.Read(ctx, "id_alice", story.ID, img.ID)
		require.NoError(t, err)
		decoded, err := jpeg.Decode(bytes.NewReader(payload.Data))
		require.NoError(t, err)

		r, g, b, _ := decoded.At(1, 1).RGBA()
		// Fully transparent pixels come back near-white, not black.
		assert.Greater(t, r, uint32(0xf000))
		assert.Greater(t, g, uint32(0xf000))
		assert.Greater(t, b, uint32(0xf000))
	})

	t.Run("jpeg passes through untouched", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2)), nil))
		original := buf.Bytes()

		story := newTestStory()
		img, err := store.Append(ctx, "id_alice", story, interfaces.ImagePayload{MediaType: "image/jpeg", Data: original}, "")
		require.NoError(t, err)

		payload, err := store.Read(ctx, "id_alice", story.ID, img.ID)
		require.NoError(t, err)
		assert.Equal(t, original, payload.Data)
	})

	t.Run("unsupported format is rejected", func(t *testing.T) {
		story := newTestStory()
		_, err := store.Append(ctx, "id_alice", story, interfaces.ImagePayload{MediaType: "image/tiff", Data: []byte("x")}, "")
		assert.ErrorIs(t, err, ErrUnsupportedImageFormat)
		// Rejection happens before the ordinal is allocated.
		assert.Empty(t, story.Images)
		assert.Equal(t, 0, story.ImageCounter)
	})
}

func TestImageStoreRead(t *testing.T) {
	store := NewFileImageStore(t.TempDir(), "/media")

	_, err := store.Read(context.Background(), "id_alice", "story_x", "img_story_x_1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestImageStoreDelete(t *testing.T) {
	baseDir := t.TempDir()
	store := NewFileImageStore(baseDir, "/media")
	ctx := context.Background()

	story := newTestStory()
	img, err := store.Append(ctx, "id_alice", story, pngPayload(t, color.White), "")
	require.NoError(t, err)

	require.NoError(t, store.DeleteStoryAssets("id_alice", story.ID))
	_, err = store.Read(ctx, "id_alice", story.ID, img.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, statErr := os.Stat(filepath.Join(baseDir, "id_alice", story.ID))
	assert.True(t, os.IsNotExist(statErr))
}
