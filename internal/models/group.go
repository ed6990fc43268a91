package models

import "time"

// Group is a named set of credentials used for broadcast operations.
type Group struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement"`       // Primary key.
	Name string `gorm:"type:text;not null;uniqueIndex"` // Unique group name.

	Members []GroupMember `gorm:"foreignKey:GroupID"` // Membership rows.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// GroupMember links one credential token to one group.
type GroupMember struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	GroupID uint64 `gorm:"not null;uniqueIndex:idx_group_members_group_token"`           // Owning group ID.
	Token   string `gorm:"type:text;not null;uniqueIndex:idx_group_members_group_token"` // Member credential token.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
