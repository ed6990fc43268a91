package db

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/swipedeck/swipedeck/internal/models"
	internalsettings "github.com/swipedeck/swipedeck/internal/settings"
)

func TestMigrateSeedsDefaults(t *testing.T) {
	conn, errOpen := Open("file:" + filepath.Join(t.TempDir(), "migrate-test.db"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	var swipeSetting models.SwipeSetting
	if errFind := conn.First(&swipeSetting, models.SwipeSettingID).Error; errFind != nil {
		t.Fatalf("load swipe setting: %v", errFind)
	}
	if swipeSetting.EndHour != 23 || swipeSetting.LikesPerDay != 0 {
		t.Fatalf("unexpected swipe setting seed: %+v", swipeSetting)
	}

	raw, ok := internalsettings.DBConfigValue(internalsettings.RateLimitKey)
	if !ok {
		t.Fatal("expected rate limit setting in snapshot")
	}
	var limit int
	if errUnmarshal := json.Unmarshal(raw, &limit); errUnmarshal != nil || limit != internalsettings.DefaultRateLimit {
		t.Fatalf("unexpected rate limit seed: %s", raw)
	}

	// A second run must not duplicate seed rows.
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("second migrate: %v", errMigrate)
	}
	var count int64
	if errCount := conn.Model(&models.Setting{}).Where("key = ?", internalsettings.RateLimitKey).Count(&count).Error; errCount != nil {
		t.Fatalf("count settings: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected 1 rate limit row, got %d", count)
	}
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	if _, errOpen := Open("  "); errOpen == nil {
		t.Fatal("expected error for empty dsn")
	}
}
