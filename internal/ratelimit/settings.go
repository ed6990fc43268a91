package ratelimit

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	internalsettings "github.com/swipedeck/swipedeck/internal/settings"
)

// SettingsConfig is the rate limit configuration read from the DB config
// snapshot: the per-token upstream request budget and the optional Redis
// backend for sharing windows across replicas.
type SettingsConfig struct {
	Limit         int
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// LoadSettingsConfig reads the current snapshot. Missing or malformed
// values fall back to defaults rather than failing the request path.
func LoadSettingsConfig() SettingsConfig {
	cfg := SettingsConfig{
		Limit:       intSetting(internalsettings.RateLimitKey, internalsettings.DefaultRateLimit),
		RedisDB:     intSetting(internalsettings.RateLimitRedisDBKey, 0),
		RedisPrefix: stringSetting(internalsettings.RateLimitRedisPrefixKey, internalsettings.DefaultRateLimitRedisPrefix),
	}
	cfg.RedisEnabled = boolSetting(internalsettings.RateLimitRedisEnabledKey)
	cfg.RedisAddr = stringSetting(internalsettings.RateLimitRedisAddrKey, "")
	cfg.RedisPassword = stringSetting(internalsettings.RateLimitRedisPasswordKey, "")
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = internalsettings.DefaultRateLimitRedisPrefix
	}
	return cfg
}

// DefaultSettingsLimit is the per-token request budget for sessions that
// carry no explicit limit of their own.
func DefaultSettingsLimit() int {
	return LoadSettingsConfig().Limit
}

// intSetting resolves a non-negative integer setting, accepting either a
// JSON number or a quoted numeric string.
func intSetting(key string, fallback int) int {
	raw, ok := internalsettings.DBConfigValue(key)
	if !ok {
		return fallback
	}
	raw = bytes.TrimSpace(raw)

	var n int
	if errUnmarshal := json.Unmarshal(raw, &n); errUnmarshal == nil && n >= 0 {
		return n
	}
	var s string
	if errUnmarshal := json.Unmarshal(raw, &s); errUnmarshal == nil {
		if parsed, errParse := strconv.Atoi(strings.TrimSpace(s)); errParse == nil && parsed >= 0 {
			return parsed
		}
	}
	return fallback
}

func stringSetting(key, fallback string) string {
	raw, ok := internalsettings.DBConfigValue(key)
	if !ok {
		return fallback
	}
	var s string
	if errUnmarshal := json.Unmarshal(bytes.TrimSpace(raw), &s); errUnmarshal != nil {
		return fallback
	}
	if s = strings.TrimSpace(s); s == "" {
		return fallback
	}
	return s
}

// boolSetting resolves a boolean setting, accepting a JSON bool or the
// usual string spellings.
func boolSetting(key string) bool {
	raw, ok := internalsettings.DBConfigValue(key)
	if !ok {
		return false
	}
	raw = bytes.TrimSpace(raw)

	var b bool
	if errUnmarshal := json.Unmarshal(raw, &b); errUnmarshal == nil {
		return b
	}
	var s string
	if errUnmarshal := json.Unmarshal(raw, &s); errUnmarshal == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "1", "true", "yes", "on":
			return true
		}
	}
	return false
}
