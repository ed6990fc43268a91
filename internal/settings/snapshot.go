package settings

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// dbConfigSnapshot holds the latest settings rows loaded from the database.
type dbConfigSnapshot struct {
	updatedAt time.Time
	values    map[string]json.RawMessage
}

var dbConfig atomic.Pointer[dbConfigSnapshot]

// StoreDBConfig replaces the in-memory settings snapshot.
func StoreDBConfig(updatedAt time.Time, values map[string]json.RawMessage) {
	copied := make(map[string]json.RawMessage, len(values))
	for key, value := range values {
		copied[key] = value
	}
	dbConfig.Store(&dbConfigSnapshot{updatedAt: updatedAt, values: copied})
}

// DBConfigValue returns the raw JSON value for a settings key, if present.
func DBConfigValue(key string) (json.RawMessage, bool) {
	snapshot := dbConfig.Load()
	if snapshot == nil {
		return nil, false
	}
	value, ok := snapshot.values[key]
	return value, ok
}

// DBConfigUpdatedAt returns the timestamp of the newest row in the snapshot.
func DBConfigUpdatedAt() time.Time {
	snapshot := dbConfig.Load()
	if snapshot == nil {
		return time.Time{}
	}
	return snapshot.updatedAt
}
