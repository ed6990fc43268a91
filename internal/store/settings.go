package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/swipedeck/swipedeck/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SwipeSettingsStore persists the singleton swipe routine configuration.
type SwipeSettingsStore struct {
	db *gorm.DB
}

// NewSwipeSettingsStore constructs a SwipeSettingsStore.
func NewSwipeSettingsStore(db *gorm.DB) *SwipeSettingsStore {
	return &SwipeSettingsStore{db: db}
}

// Load returns the current swipe settings, falling back to defaults when
// the row has not been seeded yet.
func (s *SwipeSettingsStore) Load(ctx context.Context) (models.SwipeSetting, error) {
	if s == nil || s.db == nil {
		return models.SwipeSetting{}, fmt.Errorf("store: not initialized")
	}
	var row models.SwipeSetting
	errFind := s.db.WithContext(ctx).First(&row, models.SwipeSettingID).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return models.SwipeSetting{ID: models.SwipeSettingID, EndHour: 23}, nil
		}
		return models.SwipeSetting{}, fmt.Errorf("store: load swipe settings: %w", errFind)
	}
	return row, nil
}

// Save overwrites the singleton swipe settings row in place.
func (s *SwipeSettingsStore) Save(ctx context.Context, setting models.SwipeSetting) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store: not initialized")
	}
	if setting.StartHour < 0 || setting.StartHour > 23 || setting.EndHour < 0 || setting.EndHour > 23 {
		return fmt.Errorf("store: hours must be within 0-23")
	}
	if setting.LikesPerDay < 0 {
		return fmt.Errorf("store: likes per day must be non-negative")
	}
	if setting.LeftSwipeRatio < 0 || setting.LeftSwipeRatio > 1 {
		return fmt.Errorf("store: left swipe ratio must be within [0,1]")
	}

	setting.ID = models.SwipeSettingID
	if errUpsert := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"start_hour", "end_hour", "likes_per_day", "left_swipe_ratio", "updated_at"}),
	}).Create(&setting).Error; errUpsert != nil {
		return fmt.Errorf("store: save swipe settings: %w", errUpsert)
	}
	return nil
}
