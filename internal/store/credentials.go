package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/swipedeck/swipedeck/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrCredentialNotFound indicates an unknown auth token.
var ErrCredentialNotFound = errors.New("store: credential not found")

// CredentialInput is one credential row for bulk insertion.
type CredentialInput struct {
	Token      string
	HTTPProxy  string
	HTTPSProxy string
}

// ProxyConfig is the resolved proxy assignment for one credential.
type ProxyConfig struct {
	HTTP  string
	HTTPS string
}

// Empty reports whether no proxy is assigned.
func (p ProxyConfig) Empty() bool { return p.HTTP == "" && p.HTTPS == "" }

// CredentialStore persists account credentials and proxy assignments.
type CredentialStore struct {
	db *gorm.DB
}

// NewCredentialStore constructs a CredentialStore.
func NewCredentialStore(db *gorm.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// Insert bulk-inserts credentials. Tokens carry a unique index; rows whose
// token already exists are skipped rather than failing the batch. Returns
// the number of rows actually inserted.
func (s *CredentialStore) Insert(ctx context.Context, inputs []CredentialInput) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("store: not initialized")
	}

	rows := make([]models.Credential, 0, len(inputs))
	for _, input := range inputs {
		token := strings.TrimSpace(input.Token)
		if token == "" {
			continue
		}
		rows = append(rows, models.Credential{
			Token:      token,
			HTTPProxy:  strings.TrimSpace(input.HTTPProxy),
			HTTPSProxy: strings.TrimSpace(input.HTTPSProxy),
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoNothing: true,
	}).Create(&rows)
	if res.Error != nil {
		return 0, fmt.Errorf("store: insert credentials: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// FetchAll returns every stored credential ordered by creation.
func (s *CredentialStore) FetchAll(ctx context.Context) ([]models.Credential, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store: not initialized")
	}
	var rows []models.Credential
	if errFind := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("store: list credentials: %w", errFind)
	}
	return rows, nil
}

// ProxyForToken resolves the proxy assignment for a token. ok is false when
// the credential exists but has no proxy fields set.
func (s *CredentialStore) ProxyForToken(ctx context.Context, token string) (ProxyConfig, bool, error) {
	if s == nil || s.db == nil {
		return ProxyConfig{}, false, fmt.Errorf("store: not initialized")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ProxyConfig{}, false, ErrCredentialNotFound
	}

	var row models.Credential
	if errFind := s.db.WithContext(ctx).Where("token = ?", token).First(&row).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return ProxyConfig{}, false, ErrCredentialNotFound
		}
		return ProxyConfig{}, false, fmt.Errorf("store: fetch proxy: %w", errFind)
	}

	proxy := ProxyConfig{HTTP: row.HTTPProxy, HTTPS: row.HTTPSProxy}
	return proxy, !proxy.Empty(), nil
}

// Remove deletes a credential and its group memberships in one transaction.
// Callers must also evict any cached session for the token.
func (s *CredentialStore) Remove(ctx context.Context, token string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store: not initialized")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrCredentialNotFound
	}

	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("token = ?", token).Delete(&models.Credential{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCredentialNotFound
		}
		return tx.Where("token = ?", token).Delete(&models.GroupMember{}).Error
	})
	if errTx != nil {
		if errors.Is(errTx, ErrCredentialNotFound) {
			return ErrCredentialNotFound
		}
		return fmt.Errorf("store: remove credential: %w", errTx)
	}
	return nil
}
