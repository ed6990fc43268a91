package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/swipedeck/swipedeck/internal/models"
	"gorm.io/gorm"
)

// GroupResult describes the outcome of a group mutation.
type GroupResult string

// Group operation outcomes.
const (
	GroupCreated       GroupResult = "created"
	GroupAlreadyExists GroupResult = "already_exists"
	GroupRemoved       GroupResult = "removed"
	GroupMissing       GroupResult = "group_missing"
	MemberAdded        GroupResult = "added"
	AlreadyMember      GroupResult = "already_member"
	MemberRemoved      GroupResult = "removed"
	NotMember          GroupResult = "not_member"
)

// GroupStore manages named credential groups and their memberships.
type GroupStore struct {
	db *gorm.DB
}

// NewGroupStore constructs a GroupStore.
func NewGroupStore(db *gorm.DB) *GroupStore {
	return &GroupStore{db: db}
}

// Create creates a group, reporting AlreadyExists for a duplicate name. The
// unique index on name is the backstop for concurrent creators.
func (s *GroupStore) Create(ctx context.Context, name string) (GroupResult, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("store: not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("store: empty group name")
	}

	result := GroupCreated
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Group
		errFind := tx.Where("name = ?", name).First(&existing).Error
		if errFind == nil {
			result = GroupAlreadyExists
			return nil
		}
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return errFind
		}
		return tx.Create(&models.Group{Name: name}).Error
	})
	if errTx != nil {
		return "", fmt.Errorf("store: create group: %w", errTx)
	}
	return result, nil
}

// Remove deletes a group and cascades to its membership rows.
func (s *GroupStore) Remove(ctx context.Context, name string) (GroupResult, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("store: not initialized")
	}
	name = strings.TrimSpace(name)

	result := GroupRemoved
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group models.Group
		errFind := tx.Where("name = ?", name).First(&group).Error
		if errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				result = GroupMissing
				return nil
			}
			return errFind
		}
		if errMembers := tx.Where("group_id = ?", group.ID).Delete(&models.GroupMember{}).Error; errMembers != nil {
			return errMembers
		}
		return tx.Delete(&models.Group{}, group.ID).Error
	})
	if errTx != nil {
		return "", fmt.Errorf("store: remove group: %w", errTx)
	}
	return result, nil
}

// AddMember adds a token to a group. Re-adding reports AlreadyMember.
func (s *GroupStore) AddMember(ctx context.Context, token, groupName string) (GroupResult, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("store: not initialized")
	}
	token = strings.TrimSpace(token)
	groupName = strings.TrimSpace(groupName)
	if token == "" {
		return "", fmt.Errorf("store: empty token")
	}

	result := MemberAdded
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group models.Group
		errFind := tx.Where("name = ?", groupName).First(&group).Error
		if errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				result = GroupMissing
				return nil
			}
			return errFind
		}

		var existing models.GroupMember
		errMember := tx.Where("group_id = ? AND token = ?", group.ID, token).First(&existing).Error
		if errMember == nil {
			result = AlreadyMember
			return nil
		}
		if !errors.Is(errMember, gorm.ErrRecordNotFound) {
			return errMember
		}
		return tx.Create(&models.GroupMember{GroupID: group.ID, Token: token}).Error
	})
	if errTx != nil {
		return "", fmt.Errorf("store: add member: %w", errTx)
	}
	return result, nil
}

// RemoveMember removes a token from a group, reporting NotMember when the
// token was never added.
func (s *GroupStore) RemoveMember(ctx context.Context, token, groupName string) (GroupResult, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("store: not initialized")
	}
	token = strings.TrimSpace(token)
	groupName = strings.TrimSpace(groupName)

	result := MemberRemoved
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group models.Group
		errFind := tx.Where("name = ?", groupName).First(&group).Error
		if errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				result = GroupMissing
				return nil
			}
			return errFind
		}

		res := tx.Where("group_id = ? AND token = ?", group.ID, token).Delete(&models.GroupMember{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			result = NotMember
		}
		return nil
	})
	if errTx != nil {
		return "", fmt.Errorf("store: remove member: %w", errTx)
	}
	return result, nil
}

// List returns all group names ordered by creation.
func (s *GroupStore) List(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store: not initialized")
	}
	var rows []models.Group
	if errFind := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("store: list groups: %w", errFind)
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row.Name)
	}
	return names, nil
}

// Tokens returns a group's member tokens in insertion order. Unknown
// groups yield an empty list.
func (s *GroupStore) Tokens(ctx context.Context, groupName string) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store: not initialized")
	}

	var group models.Group
	errFind := s.db.WithContext(ctx).Where("name = ?", strings.TrimSpace(groupName)).First(&group).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("store: resolve group: %w", errFind)
	}

	var members []models.GroupMember
	if errMembers := s.db.WithContext(ctx).
		Where("group_id = ?", group.ID).
		Order("id ASC").
		Find(&members).Error; errMembers != nil {
		return nil, fmt.Errorf("store: list members: %w", errMembers)
	}
	tokens := make([]string, 0, len(members))
	for _, member := range members {
		tokens = append(tokens, member.Token)
	}
	return tokens, nil
}
