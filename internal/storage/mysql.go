package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/VisualStoriesHCA/HCABackend/internal/config"
	"github.com/VisualStoriesHCA/HCABackend/internal/models"
)

// MySQLStore persists users, story aggregates, catalogs and achievement
// progress. It implements the StoryRepository, AchievementRepository and
// CatalogRepository contracts.
type MySQLStore struct {
	db *gorm.DB
}

func NewMySQLStore(cfg config.MySQLConfig) (*MySQLStore, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Story{},
		&models.Image{},
		&models.Achievement{},
		&models.UserAchievement{},
		&models.ImageModel{},
		&models.DrawingStyle{},
		&models.ColorBlindOption{},
	); err != nil {
		return nil, err
	}

	return &MySQLStore{db: db}, nil
}

func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *MySQLStore) GetDB() *gorm.DB {
	return s.db
}

// Transaction helper
func (s *MySQLStore) WithTx(fn func(*gorm.DB) error) error {
	return s.db.Transaction(fn)
}

// --- StoryRepository ---

func (s *MySQLStore) CreateUser(ctx context.Context, user *models.User) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("user %s: %w", user.ID, models.ErrAlreadyExists)
	}
	return s.db.WithContext(ctx).Create(user).Error
}

func (s *MySQLStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, wrapNotFound("user", userID, err)
	}
	return &user, nil
}

func (s *MySQLStore) SaveUser(ctx context.Context, user *models.User) error {
	return s.db.WithContext(ctx).Save(user).Error
}

func (s *MySQLStore) DeleteUser(ctx context.Context, userID string) error {
	return s.WithTx(func(tx *gorm.DB) error {
		var storyIDs []string
		if err := tx.WithContext(ctx).Model(&models.Story{}).Where("user_id = ?", userID).Pluck("id", &storyIDs).Error; err != nil {
			return err
		}
		if len(storyIDs) > 0 {
			if err := tx.WithContext(ctx).Where("story_id IN ?", storyIDs).Delete(&models.Image{}).Error; err != nil {
				return err
			}
			if err := tx.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Story{}).Error; err != nil {
				return err
			}
		}
		if err := tx.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.UserAchievement{}).Error; err != nil {
			return err
		}
		return tx.WithContext(ctx).Delete(&models.User{}, "id = ?", userID).Error
	})
}

func (s *MySQLStore) GetStory(ctx context.Context, userID, storyID string) (*models.Story, error) {
	var story models.Story
	err := s.db.WithContext(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("ordinal ASC") }).
		First(&story, "id = ? AND user_id = ?", storyID, userID).Error
	if err != nil {
		return nil, wrapNotFound("story", storyID, err)
	}
	return &story, nil
}

func (s *MySQLStore) ListStories(ctx context.Context, userID string, limit int) ([]models.Story, error) {
	var stories []models.Story
	q := s.db.WithContext(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("ordinal ASC") }).
		Where("user_id = ?", userID).
		Order("last_edited DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&stories).Error; err != nil {
		return nil, err
	}
	return stories, nil
}

// SaveStory upserts the aggregate together with its image rows. Image rows
// are append-only; rewriting an existing row stores identical values.
func (s *MySQLStore) SaveStory(ctx context.Context, story *models.Story) error {
	return s.WithTx(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Omit("Images").Clauses(clause.OnConflict{UpdateAll: true}).Create(story).Error; err != nil {
			return err
		}
		for i := range story.Images {
			if err := tx.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&story.Images[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *MySQLStore) DeleteStory(ctx context.Context, userID, storyID string) error {
	return s.WithTx(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Where("story_id = ?", storyID).Delete(&models.Image{}).Error; err != nil {
			return err
		}
		return tx.WithContext(ctx).Where("id = ? AND user_id = ?", storyID, userID).Delete(&models.Story{}).Error
	})
}

// --- AchievementRepository ---

func (s *MySQLStore) GetAchievement(ctx context.Context, achievementID string) (*models.Achievement, error) {
	var def models.Achievement
	if err := s.db.WithContext(ctx).First(&def, "id = ?", achievementID).Error; err != nil {
		return nil, wrapNotFound("achievement", achievementID, err)
	}
	return &def, nil
}

func (s *MySQLStore) ListAchievements(ctx context.Context) ([]models.Achievement, error) {
	var defs []models.Achievement
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&defs).Error; err != nil {
		return nil, err
	}
	return defs, nil
}

func (s *MySQLStore) GetUserAchievement(ctx context.Context, userID, achievementID string) (*models.UserAchievement, error) {
	var rec models.UserAchievement
	err := s.db.WithContext(ctx).First(&rec, "user_id = ? AND achievement_id = ?", userID, achievementID).Error
	if err != nil {
		return nil, wrapNotFound("user achievement", achievementID, err)
	}
	return &rec, nil
}

func (s *MySQLStore) SaveUserAchievement(ctx context.Context, rec *models.UserAchievement) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(rec).Error
}

func (s *MySQLStore) ListUserAchievements(ctx context.Context, userID string) ([]models.UserAchievement, error) {
	var recs []models.UserAchievement
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// --- CatalogRepository ---

func (s *MySQLStore) ListImageModels(ctx context.Context) ([]models.ImageModel, error) {
	var entries []models.ImageModel
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *MySQLStore) ListDrawingStyles(ctx context.Context) ([]models.DrawingStyle, error) {
	var entries []models.DrawingStyle
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *MySQLStore) ListColorBlindOptions(ctx context.Context) ([]models.ColorBlindOption, error) {
	var entries []models.ColorBlindOption
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *MySQLStore) GetImageModel(ctx context.Context, id int) (*models.ImageModel, error) {
	var entry models.ImageModel
	if err := s.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound("image model", fmt.Sprint(id), err)
	}
	return &entry, nil
}

func (s *MySQLStore) GetDrawingStyle(ctx context.Context, id int) (*models.DrawingStyle, error) {
	var entry models.DrawingStyle
	if err := s.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound("drawing style", fmt.Sprint(id), err)
	}
	return &entry, nil
}

func (s *MySQLStore) GetColorBlindOption(ctx context.Context, id int) (*models.ColorBlindOption, error) {
	var entry models.ColorBlindOption
	if err := s.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound("color blind option", fmt.Sprint(id), err)
	}
	return &entry, nil
}

func wrapNotFound(kind, id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", kind, id, models.ErrNotFound)
	}
	return err
}
