package models

import "time"

// Credential stores an upstream account auth token and its proxy assignment.
type Credential struct {
	ID    uint64 `gorm:"primaryKey;autoIncrement"`       // Primary key.
	Token string `gorm:"type:text;not null;uniqueIndex"` // Upstream auth token.

	HTTPProxy  string `gorm:"type:text"` // Optional HTTP proxy URL.
	HTTPSProxy string `gorm:"type:text"` // Optional HTTPS proxy URL.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
