package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/swipedeck/swipedeck/internal/models"
	internalsettings "github.com/swipedeck/swipedeck/internal/settings"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite, DialectPostgres, "":
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.Admin{},
		&models.Credential{},
		&models.Group{},
		&models.GroupMember{},
		&models.SwipeSetting{},
		&models.Setting{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	if errSeed := ensureSwipeSetting(conn); errSeed != nil {
		return errSeed
	}
	if errSeed := ensureSetting(conn, internalsettings.RateLimitKey, internalsettings.DefaultRateLimit); errSeed != nil {
		return errSeed
	}
	if errSeed := ensureSetting(conn, internalsettings.SiteNameKey, internalsettings.DefaultSiteName); errSeed != nil {
		return errSeed
	}
	return RefreshDBConfigSnapshot(conn)
}

// ensureSetting seeds one settings row when no value is present yet.
func ensureSetting(conn *gorm.DB, key string, value any) error {
	var existing models.Setting
	errFind := conn.Where("key = ?", key).First(&existing).Error
	if errFind == nil {
		return nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return fmt.Errorf("db: load setting %s: %w", key, errFind)
	}

	encoded, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return fmt.Errorf("db: marshal setting %s: %w", key, errMarshal)
	}
	if errCreate := conn.Create(&models.Setting{Key: key, Value: datatypes.JSON(encoded)}).Error; errCreate != nil {
		return fmt.Errorf("db: seed setting %s: %w", key, errCreate)
	}
	return nil
}

// ensureSwipeSetting seeds the singleton swipe settings row.
func ensureSwipeSetting(conn *gorm.DB) error {
	var existing models.SwipeSetting
	errFind := conn.First(&existing, models.SwipeSettingID).Error
	if errFind == nil {
		return nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return fmt.Errorf("db: load swipe settings: %w", errFind)
	}

	seed := models.SwipeSetting{
		ID:          models.SwipeSettingID,
		StartHour:   0,
		EndHour:     23,
		LikesPerDay: 0,
	}
	if errCreate := conn.Create(&seed).Error; errCreate != nil {
		return fmt.Errorf("db: seed swipe settings: %w", errCreate)
	}
	return nil
}

// RefreshDBConfigSnapshot rebuilds the in-memory settings snapshot from the DB.
func RefreshDBConfigSnapshot(conn *gorm.DB) error {
	var rows []models.Setting
	if errFind := conn.
		Select("key", "value", "updated_at").
		Order("key ASC").
		Find(&rows).Error; errFind != nil {
		return fmt.Errorf("db: load settings snapshot: %w", errFind)
	}

	values := make(map[string]json.RawMessage, len(rows))
	maxUpdatedAt := time.Time{}
	for _, row := range rows {
		key := strings.TrimSpace(row.Key)
		if key == "" {
			continue
		}
		values[key] = json.RawMessage(row.Value)
		if rowUpdatedAt := row.UpdatedAt.UTC(); rowUpdatedAt.After(maxUpdatedAt) {
			maxUpdatedAt = rowUpdatedAt
		}
	}

	internalsettings.StoreDBConfig(maxUpdatedAt, values)
	return nil
}
