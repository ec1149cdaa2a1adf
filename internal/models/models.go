package models

import (
	"fmt"
	"time"

	"github.com/VisualStoriesHCA/HCABackend/internal/diff"
)

// DefaultStoryName is the placeholder assigned to stories created without a
// name. Auto-titling only ever replaces this value, never a user-chosen one.
const DefaultStoryName = "Untitled Story"

// StoryState tracks the lifecycle of the last mutation applied to a story
type StoryState string

const (
	StoryStatePending   StoryState = "pending"
	StoryStateCompleted StoryState = "completed"
	StoryStateError     StoryState = "error"
)

// AchievementState tracks a user's progress against one achievement
type AchievementState string

const (
	AchievementStateLocked     AchievementState = "locked"
	AchievementStateInProgress AchievementState = "in_progress"
	AchievementStateCompleted  AchievementState = "completed"
)

// User owns stories and achievement progress
type User struct {
	ID             string    `gorm:"primaryKey;size:160" json:"userId"`
	Name           string    `gorm:"size:255" json:"name"`
	UserName       string    `gorm:"uniqueIndex;size:128" json:"userName"`
	AccountCreated time.Time `json:"accountCreated"`
	StoryCounter   int       `json:"-"` // next story ordinal, monotonic
	Stories        []Story   `gorm:"foreignKey:UserID" json:"-"`
	CreatedAt      time.Time `json:"-"`
	UpdatedAt      time.Time `json:"-"`
}

// Story combines narrative text with an ordered, append-only image history.
// Text is stored formatted: newly generated spans are wrapped in <mark> tags.
type Story struct {
	ID                 string     `gorm:"primaryKey;size:200" json:"storyId"`
	UserID             string     `gorm:"index;size:160" json:"-"`
	Name               string     `gorm:"size:255" json:"storyName"`
	Text               string     `gorm:"type:text" json:"storyText"`
	State              StoryState `gorm:"size:32" json:"state"`
	ImageCounter       int        `json:"-"` // next image ordinal, never reused
	AudioCounter       int        `json:"-"` // next audio ordinal
	AudioURL           string     `gorm:"size:512" json:"audioUrl,omitempty"`
	ImageModelID       int        `json:"imageModelId"`
	DrawingStyleID     int        `json:"drawingStyleId"`
	ColorBlindOptionID int        `json:"colorBlindOptionId"`
	RegenerateImage    bool       `json:"regenerateImage"`
	LastEdited         time.Time  `json:"lastEdited"`
	Images             []Image    `gorm:"foreignKey:StoryID;references:ID" json:"storyImages"`
	CreatedAt          time.Time  `json:"-"`
	UpdatedAt          time.Time  `json:"-"`
}

// LatestImage returns the most recent image version, or nil when the story
// has none. Images are ordered most-recent-last and never reordered.
func (s *Story) LatestImage() *Image {
	if len(s.Images) == 0 {
		return nil
	}
	return &s.Images[len(s.Images)-1]
}

// CoverImage returns the URL shown in story listings (latest version).
func (s *Story) CoverImage() string {
	if img := s.LatestImage(); img != nil {
		return img.URL
	}
	return ""
}

// RawText returns the story text with highlight markers stripped. Kept on the
// model so callers never need to know the marker syntax.
func (s *Story) RawText() string {
	return diff.RawText(s.Text)
}

// Image is one immutable version in a story's image history
type Image struct {
	ID        string    `gorm:"primaryKey;size:220" json:"imageId"`
	StoryID   string    `gorm:"index;size:200" json:"-"`
	Ordinal   int       `json:"-"`
	URL       string    `gorm:"size:512" json:"url"`
	Alt       string    `gorm:"size:512" json:"alt"`
	CreatedAt time.Time `json:"-"`
}

// Achievement is a catalog definition, loaded at startup and immutable at
// runtime
type Achievement struct {
	ID              string `gorm:"primaryKey;size:32" json:"achievementId"`
	Title           string `gorm:"size:255" json:"title"`
	Description     string `gorm:"type:text" json:"description"`
	Category        string `gorm:"size:64" json:"category"`
	Type            string `gorm:"size:64" json:"type"`
	ImageURL        string `gorm:"size:512" json:"imageUrl"`
	TargetValue     int    `json:"targetValue"`
	Unit            string `gorm:"size:64" json:"unit"`
	RewardPoints    int    `json:"rewardPoints"`
	RewardBadge     string `gorm:"size:255" json:"rewardBadge"`
	UnlockCondition string `gorm:"size:512" json:"unlockCondition,omitempty"`
}

// UserAchievement is one user's progress against one achievement. Records are
// created lazily on first progress; absent records read as locked/0.
type UserAchievement struct {
	UserID        string           `gorm:"primaryKey;size:160" json:"userId"`
	AchievementID string           `gorm:"primaryKey;size:32" json:"achievementId"`
	State         AchievementState `gorm:"size:32" json:"state"`
	CurrentValue  int              `json:"currentValue"`
	CompletedAt   *time.Time       `json:"completedAt,omitempty"`
	LastUpdate    time.Time        `json:"lastUpdate"`
}

// ImageModel is a catalog entry for a selectable generation backend
type ImageModel struct {
	ID          int    `gorm:"primaryKey" json:"imageModelId"`
	Name        string `gorm:"size:128" json:"name"`
	Description string `gorm:"size:512" json:"description"`
	Disabled    bool   `json:"disabled"`
}

// DrawingStyle is a catalog entry for a selectable rendering style
type DrawingStyle struct {
	ID              int    `gorm:"primaryKey" json:"drawingStyleId"`
	Name            string `gorm:"size:128" json:"name"`
	Description     string `gorm:"size:512" json:"description"`
	ExampleImageURL string `gorm:"size:512" json:"exampleImageUrl"`
	Disabled        bool   `json:"disabled"`
}

// ColorBlindOption is a catalog entry for an accessibility color profile
type ColorBlindOption struct {
	ID          int    `gorm:"primaryKey" json:"colorBlindOptionId"`
	Name        string `gorm:"size:128" json:"name"`
	Description string `gorm:"size:512" json:"description"`
}

// NextStoryOrdinal allocates the user's next story ordinal. Ordinals are
// monotonic and never reused, even after deletions.
func (u *User) NextStoryOrdinal() int {
	u.StoryCounter++
	return u.StoryCounter
}

// NextImageOrdinal allocates the story's next image ordinal.
func (s *Story) NextImageOrdinal() int {
	s.ImageCounter++
	return s.ImageCounter
}

// NextAudioOrdinal allocates the story's next audio ordinal.
func (s *Story) NextAudioOrdinal() int {
	s.AudioCounter++
	return s.AudioCounter
}

// UserIDFor derives the deterministic user id for a display user name.
func UserIDFor(userName string) string {
	return "id_" + userName
}

// StoryIDFor derives the story id for the owner's n-th story.
func StoryIDFor(userID string, ordinal int) string {
	return fmt.Sprintf("story_%s_%d", userID, ordinal)
}

// ImageIDFor derives the image id for a story's n-th image version.
func ImageIDFor(storyID string, ordinal int) string {
	return fmt.Sprintf("img_%s_%d", storyID, ordinal)
}

// AudioIDFor derives the audio id for a story's n-th synthesized narration.
func AudioIDFor(storyID string, ordinal int) string {
	return fmt.Sprintf("audio_%s_%d", storyID, ordinal)
}
