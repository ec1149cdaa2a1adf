// Package engine drives story mutations: it parses edit operations, walks the
// pending/completed/error lifecycle, and orchestrates the generative media
// service, the image version store and the diff engine around the story
// aggregate.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/VisualStoriesHCA/HCABackend/internal/diff"
	"github.com/VisualStoriesHCA/HCABackend/internal/interfaces"
	"github.com/VisualStoriesHCA/HCABackend/internal/models"
)

// Settings applied to every newly created story.
const (
	DefaultImageModelID       = 1
	DefaultDrawingStyleID     = 1
	DefaultColorBlindOptionID = 1
	DefaultRegenerateImage    = true
)

// StoryEngine executes story mutations. It holds its collaborators behind
// interfaces so state-transition logic stays testable without a database or
// a live generative service.
//
// Concurrent mutations of the same story are not serialized here: the state
// field is an observability marker, not a lock. Callers own aggregate-level
// serialization.
type StoryEngine struct {
	repo    interfaces.StoryRepository
	catalog interfaces.CatalogRepository
	media   interfaces.MediaGenerator
	images  interfaces.ImageVersionStore
	audio   interfaces.AudioStore

	progress interfaces.ProgressTracker // optional
	notifier interfaces.StateNotifier   // optional

	now func() time.Time
}

// NewStoryEngine creates a story engine over the given collaborators.
func NewStoryEngine(
	repo interfaces.StoryRepository,
	catalog interfaces.CatalogRepository,
	media interfaces.MediaGenerator,
	images interfaces.ImageVersionStore,
	audio interfaces.AudioStore,
) *StoryEngine {
	return &StoryEngine{
		repo:    repo,
		catalog: catalog,
		media:   media,
		images:  images,
		audio:   audio,
		now:     time.Now,
	}
}

// AttachProgress wires the achievement progress tracker. Progress failures
// never fail the story mutation that triggered them; they are logged and
// dropped.
func (e *StoryEngine) AttachProgress(p interfaces.ProgressTracker) {
	e.progress = p
}

// AttachNotifier wires a listener for persisted state transitions.
func (e *StoryEngine) AttachNotifier(n interfaces.StateNotifier) {
	e.notifier = n
}

// CreateUser registers a new user under the deterministic id derived from the
// user name.
func (e *StoryEngine) CreateUser(ctx context.Context, name, userName string) (*models.User, error) {
	user := &models.User{
		ID:             models.UserIDFor(userName),
		Name:           name,
		UserName:       userName,
		AccountCreated: e.now().UTC(),
	}
	if err := e.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// DeleteUser removes the user, all owned stories and their stored assets.
func (e *StoryEngine) DeleteUser(ctx context.Context, userID string) error {
	if _, err := e.repo.GetUser(ctx, userID); err != nil {
		return err
	}
	if err := e.repo.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if err := e.images.DeleteUserAssets(userID); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("failed to remove user media files")
	}
	return nil
}

// CreateStory allocates the user's next story ordinal and creates an empty
// story in the completed state. An empty name gets the default placeholder,
// which auto-titling may later replace.
func (e *StoryEngine) CreateStory(ctx context.Context, userID, name string) (*models.Story, error) {
	user, err := e.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = models.DefaultStoryName
	}
	ordinal := user.NextStoryOrdinal()
	story := &models.Story{
		ID:                 models.StoryIDFor(userID, ordinal),
		UserID:             userID,
		Name:               name,
		State:              models.StoryStateCompleted,
		ImageModelID:       DefaultImageModelID,
		DrawingStyleID:     DefaultDrawingStyleID,
		ColorBlindOptionID: DefaultColorBlindOptionID,
		RegenerateImage:    DefaultRegenerateImage,
		LastEdited:         e.now().UTC(),
	}
	if err := e.repo.SaveUser(ctx, user); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	if err := e.repo.SaveStory(ctx, story); err != nil {
		return nil, fmt.Errorf("save story: %w", err)
	}
	e.trackCreated(ctx, userID)
	return story, nil
}

// SetStoryName renames a story. A user-assigned name is final: auto-titling
// never overwrites it.
func (e *StoryEngine) SetStoryName(ctx context.Context, userID, storyID, name string) (*models.Story, error) {
	story, err := e.repo.GetStory(ctx, userID, storyID)
	if err != nil {
		return nil, err
	}
	story.Name = name
	story.LastEdited = e.now().UTC()
	if err := e.repo.SaveStory(ctx, story); err != nil {
		return nil, fmt.Errorf("save story: %w", err)
	}
	return story, nil
}

// SetStoryOptions updates the story's generation settings after validating
// them against the catalogs.
func (e *StoryEngine) SetStoryOptions(ctx context.Context, userID, storyID string, imageModelID, drawingStyleID, colorBlindOptionID *int, regenerateImage *bool) (*models.Story, error) {
	story, err := e.repo.GetStory(ctx, userID, storyID)
	if err != nil {
		return nil, err
	}
	if imageModelID != nil {
		if _, err := e.catalog.GetImageModel(ctx, *imageModelID); err != nil {
			return nil, err
		}
		story.ImageModelID = *imageModelID
	}
	if drawingStyleID != nil {
		if _, err := e.catalog.GetDrawingStyle(ctx, *drawingStyleID); err != nil {
			return nil, err
		}
		story.DrawingStyleID = *drawingStyleID
	}
	if colorBlindOptionID != nil {
		if _, err := e.catalog.GetColorBlindOption(ctx, *colorBlindOptionID); err != nil {
			return nil, err
		}
		story.ColorBlindOptionID = *colorBlindOptionID
	}
	if regenerateImage != nil {
		story.RegenerateImage = *regenerateImage
	}
	story.LastEdited = e.now().UTC()
	if err := e.repo.SaveStory(ctx, story); err != nil {
		return nil, fmt.Errorf("save story: %w", err)
	}
	return story, nil
}

// DeleteStory removes the story, its image rows and its stored assets.
func (e *StoryEngine) DeleteStory(ctx context.Context, userID, storyID string) error {
	if _, err := e.repo.GetStory(ctx, userID, storyID); err != nil {
		return err
	}
	if err := e.repo.DeleteStory(ctx, userID, storyID); err != nil {
		return fmt.Errorf("delete story: %w", err)
	}
	if err := e.images.DeleteStoryAssets(userID, storyID); err != nil {
		log.Warn().Err(err).Str("story_id", storyID).Msg("failed to remove story media files")
	}
	return nil
}

// ApplyImageOperations runs a batch of image operations strictly in submitted
// order. The story is persisted as pending before the first external call, so
// a crash mid-batch leaves a durably observable pending story. On failure the
// story is left queryable in the error state with partial side effects kept.
func (e *StoryEngine) ApplyImageOperations(ctx context.Context, userID, storyID string, ops []ImageOperation) (*models.Story, error) {
	story, err := e.repo.GetStory(ctx, userID, storyID)
	if err != nil {
		return nil, err
	}
	if err := e.setState(ctx, story, models.StoryStatePending); err != nil {
		return nil, err
	}

	run := func() error {
		for _, op := range ops {
			if err := e.runOperation(ctx, userID, story, op); err != nil {
				return err
			}
		}
		return e.autoTitle(ctx, userID, story)
	}
	return e.finish(ctx, userID, story, run())
}

// runOperation executes one operation: its image work, then text regeneration
// from the resulting latest image, then audio invalidation.
func (e *StoryEngine) runOperation(ctx context.Context, userID string, story *models.Story, op ImageOperation) error {
	opts, err := e.styleOptions(ctx, story)
	if err != nil {
		return err
	}

	switch op := op.(type) {
	case NoChangeOperation:
		// Image history stays as is; the id in the request is only a hint.
		if story.LatestImage() == nil {
			return ErrNoImage
		}

	case SketchFromScratchOperation:
		if _, err := e.images.Append(ctx, userID, story, op.Canvas, op.Alt); err != nil {
			return err
		}
		if story.RegenerateImage {
			styled, err := e.media.ImageToImage(ctx, op.Canvas, story.RawText(), opts)
			if err != nil {
				return externalErr("image to image", err)
			}
			if _, err := e.images.Append(ctx, userID, story, styled, op.Alt); err != nil {
				return err
			}
		}

	case SketchOnImageOperation:
		prior := story.LatestImage()
		if prior == nil {
			return ErrNoImage
		}
		var priorPayload interfaces.ImagePayload
		if story.RegenerateImage {
			priorPayload, err = e.images.Read(ctx, userID, story.ID, prior.ID)
			if err != nil {
				return err
			}
		}
		if _, err := e.images.Append(ctx, userID, story, op.Canvas, op.Alt); err != nil {
			return err
		}
		if story.RegenerateImage {
			evolved, err := e.media.TwoImagesToImage(ctx, op.Canvas, priorPayload, story.RawText(), opts)
			if err != nil {
				return externalErr("two images to image", err)
			}
			if _, err := e.images.Append(ctx, userID, story, evolved, op.Alt); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("%w: %T", ErrUnknownOperationKind, op)
	}

	return e.regenerateText(ctx, userID, story)
}

// regenerateText derives new story text from the latest image, seeded with
// the current raw text for minimal-delta continuity, and highlights the
// additions. Previously generated audio no longer matches and is dropped.
func (e *StoryEngine) regenerateText(ctx context.Context, userID string, story *models.Story) error {
	latest := story.LatestImage()
	if latest == nil {
		return ErrNoImage
	}
	payload, err := e.images.Read(ctx, userID, story.ID, latest.ID)
	if err != nil {
		return err
	}
	oldRaw := story.RawText()
	newRaw, err := e.media.ImageToText(ctx, payload, oldRaw)
	if err != nil {
		return externalErr("image to text", err)
	}
	story.Text = diff.HighlightAdditions(oldRaw, newRaw)
	story.AudioURL = ""
	return nil
}

// autoTitle adopts a generated title while the story still carries the
// default placeholder name. One-time only: a real name is never overwritten.
func (e *StoryEngine) autoTitle(ctx context.Context, userID string, story *models.Story) error {
	if story.Name != models.DefaultStoryName {
		return nil
	}
	latest := story.LatestImage()
	if latest == nil {
		return nil
	}
	payload, err := e.images.Read(ctx, userID, story.ID, latest.ID)
	if err != nil {
		return err
	}
	title, err := e.media.ImageToTitle(ctx, payload)
	if err != nil {
		return externalErr("image to title", err)
	}
	if title != "" {
		story.Name = title
	}
	return nil
}

// UpdateImagesByText is the direct text edit path: the new text is stored as
// written, audio is invalidated, and the visual is re-synced by generating a
// new image version from the text (evolving the latest image when one exists).
func (e *StoryEngine) UpdateImagesByText(ctx context.Context, userID, storyID, updatedText string) (*models.Story, error) {
	story, err := e.repo.GetStory(ctx, userID, storyID)
	if err != nil {
		return nil, err
	}
	if err := e.setState(ctx, story, models.StoryStatePending); err != nil {
		return nil, err
	}

	run := func() error {
		opts, err := e.styleOptions(ctx, story)
		if err != nil {
			return err
		}
		story.Text = updatedText
		story.AudioURL = ""

		var generated interfaces.ImagePayload
		if latest := story.LatestImage(); latest != nil {
			payload, err := e.images.Read(ctx, userID, story.ID, latest.ID)
			if err != nil {
				return err
			}
			generated, err = e.media.ImageToImage(ctx, payload, updatedText, opts)
			if err != nil {
				return externalErr("image to image", err)
			}
		} else {
			generated, err = e.media.TextToImage(ctx, updatedText, opts)
			if err != nil {
				return externalErr("text to image", err)
			}
		}
		if _, err := e.images.Append(ctx, userID, story, generated, ""); err != nil {
			return err
		}
		return e.autoTitle(ctx, userID, story)
	}
	return e.finish(ctx, userID, story, run())
}

// UploadImage appends a user-supplied image as a new version without any
// generative calls.
func (e *StoryEngine) UploadImage(ctx context.Context, userID, storyID string, payload interfaces.ImagePayload, alt string) (*models.Story, error) {
	story, err := e.repo.GetStory(ctx, userID, storyID)
	if err != nil {
		return nil, err
	}
	if err := e.setState(ctx, story, models.StoryStatePending); err != nil {
		return nil, err
	}
	run := func() error {
		_, err := e.images.Append(ctx, userID, story, payload, alt)
		return err
	}
	return e.finish(ctx, userID, story, run())
}

// GenerateAudio synthesizes narration for the requested text. Idempotent by
// content: when audio already exists and the story's raw text equals the
// requested text, the stored narration is reused without a new service call.
func (e *StoryEngine) GenerateAudio(ctx context.Context, userID, storyID, text string) (*models.Story, error) {
	story, err := e.repo.GetStory(ctx, userID, storyID)
	if err != nil {
		return nil, err
	}
	if story.AudioURL != "" && story.RawText() == text {
		return story, nil
	}
	if err := e.setState(ctx, story, models.StoryStatePending); err != nil {
		return nil, err
	}
	run := func() error {
		story.Text = text
		speech, err := e.media.TextToSpeech(ctx, text)
		if err != nil {
			return externalErr("text to speech", err)
		}
		url, err := e.audio.Append(ctx, userID, story, speech)
		if err != nil {
			return err
		}
		story.AudioURL = url
		return nil
	}
	return e.finish(ctx, userID, story, run())
}

// finish closes out a pending mutation: completed on success, error on
// failure. Partial side effects (already appended images) are kept either
// way, and the triggering error is reported to the caller.
func (e *StoryEngine) finish(ctx context.Context, userID string, story *models.Story, runErr error) (*models.Story, error) {
	if runErr != nil {
		if err := e.setState(ctx, story, models.StoryStateError); err != nil {
			log.Error().Err(err).Str("story_id", story.ID).Msg("failed to persist error state")
		}
		return nil, fmt.Errorf("story mutation failed: %w", runErr)
	}
	if err := e.setState(ctx, story, models.StoryStateCompleted); err != nil {
		return nil, err
	}
	e.trackMutated(ctx, userID, story.RawText())
	return story, nil
}

// setState persists a lifecycle transition and notifies listeners. Terminal
// transitions refresh lastEdited.
func (e *StoryEngine) setState(ctx context.Context, story *models.Story, state models.StoryState) error {
	story.State = state
	if state != models.StoryStatePending {
		story.LastEdited = e.now().UTC()
	}
	if err := e.repo.SaveStory(ctx, story); err != nil {
		return fmt.Errorf("persist story state %s: %w", state, err)
	}
	if e.notifier != nil {
		e.notifier.StoryStateChanged(story.UserID, story.ID, state)
	}
	return nil
}

// styleOptions resolves the story's settings to the names the generative
// service understands.
func (e *StoryEngine) styleOptions(ctx context.Context, story *models.Story) (interfaces.StyleOptions, error) {
	var opts interfaces.StyleOptions
	model, err := e.catalog.GetImageModel(ctx, story.ImageModelID)
	if err != nil {
		return opts, err
	}
	style, err := e.catalog.GetDrawingStyle(ctx, story.DrawingStyleID)
	if err != nil {
		return opts, err
	}
	profile, err := e.catalog.GetColorBlindOption(ctx, story.ColorBlindOptionID)
	if err != nil {
		return opts, err
	}
	opts.ImageModel = model.Name
	opts.DrawingStyle = style.Name
	opts.ColorProfile = profile.Name
	return opts, nil
}

// Achievement bookkeeping is sequenced after the story mutation, not
// transactional with it: a story mutation stands even when progress tracking
// fails.
func (e *StoryEngine) trackCreated(ctx context.Context, userID string) {
	if e.progress == nil {
		return
	}
	if err := e.progress.StoryCreated(ctx, userID); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("achievement update failed")
	}
}

func (e *StoryEngine) trackMutated(ctx context.Context, userID, rawText string) {
	if e.progress == nil {
		return
	}
	if err := e.progress.StoryMutated(ctx, userID, rawText); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("achievement update failed")
	}
}

func externalErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrExternalService, err)
}
