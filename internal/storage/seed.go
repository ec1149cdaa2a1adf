package storage

import (
	"context"

	"github.com/VisualStoriesHCA/HCABackend/internal/models"
)

// SeedCatalogs inserts the immutable catalogs on first startup: the fixed
// achievement definitions and the generation option lists. Existing rows are
// left untouched so a redeploy never resets catalog edits.
func (s *MySQLStore) SeedCatalogs(ctx context.Context) error {
	if err := s.seedAchievements(ctx); err != nil {
		return err
	}
	return s.seedOptions(ctx)
}

func (s *MySQLStore) seedAchievements(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Achievement{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	defs := []models.Achievement{
		{
			ID:           "1",
			Title:        "Storyteller",
			Description:  "Create 10 stories",
			Category:     "creation",
			Type:         "counter",
			TargetValue:  10,
			Unit:         "stories",
			RewardPoints: 100,
			RewardBadge:  "storyteller",
		},
		{
			ID:           "2",
			Title:        "Novelist",
			Description:  "Write a story of 1000 characters",
			Category:     "writing",
			Type:         "high_water_mark",
			TargetValue:  1000,
			Unit:         "characters",
			RewardPoints: 150,
			RewardBadge:  "novelist",
		},
		{
			ID:           "3",
			Title:        "Busy Hands",
			Description:  "Make 25 edits across your stories",
			Category:     "editing",
			Type:         "counter",
			TargetValue:  25,
			Unit:         "edits",
			RewardPoints: 75,
			RewardBadge:  "busy-hands",
		},
		{
			ID:              "4",
			Title:           "Creative Streak",
			Description:     "Come back to your stories in 7 separate sessions",
			Category:        "dedication",
			Type:            "streak",
			TargetValue:     7,
			Unit:            "sessions",
			RewardPoints:    200,
			RewardBadge:     "creative-streak",
			UnlockCondition: "Complete Storyteller first",
		},
	}
	return s.db.WithContext(ctx).Create(&defs).Error
}

func (s *MySQLStore) seedOptions(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.ImageModel{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		entries := []models.ImageModel{
			{ID: 1, Name: "OpenAI", Description: "OpenAI image generation"},
		}
		if err := s.db.WithContext(ctx).Create(&entries).Error; err != nil {
			return err
		}
	}

	if err := s.db.WithContext(ctx).Model(&models.DrawingStyle{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		entries := []models.DrawingStyle{
			{ID: 1, Name: "cartoonish", Description: "Simple cartoon rendering"},
			{ID: 2, Name: "watercolor", Description: "Soft watercolor rendering"},
			{ID: 3, Name: "pencil", Description: "Pencil sketch rendering"},
		}
		if err := s.db.WithContext(ctx).Create(&entries).Error; err != nil {
			return err
		}
	}

	if err := s.db.WithContext(ctx).Model(&models.ColorBlindOption{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		entries := []models.ColorBlindOption{
			{ID: 1, Name: "default", Description: "No color-blindness adjustment"},
			{ID: 2, Name: "deuteranopia", Description: "Red-green safe palette"},
			{ID: 3, Name: "tritanopia", Description: "Blue-yellow safe palette"},
		}
		if err := s.db.WithContext(ctx).Create(&entries).Error; err != nil {
			return err
		}
	}
	return nil
}
