package models

import "time"

// SwipeSettingID is the fixed primary key of the singleton settings row.
const SwipeSettingID uint64 = 1

// SwipeSetting is the singleton swipe routine configuration.
type SwipeSetting struct {
	ID uint64 `gorm:"primaryKey"` // Always SwipeSettingID; updates overwrite in place.

	StartHour      int     `gorm:"not null;default:0"`                   // Window start hour (0-23).
	EndHour        int     `gorm:"not null;default:23"`                  // Window end hour (0-23).
	LikesPerDay    int     `gorm:"not null;default:0"`                   // Daily like quota.
	LeftSwipeRatio float64 `gorm:"type:decimal(5,4);not null;default:0"` // Fraction of candidates passed instead of liked.

	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
