package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestManagerAllowBlocksAfterLimit(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	manager := NewManager(func() SettingsConfig {
		return SettingsConfig{}
	}, func() time.Time {
		return now
	}, nil)

	key := KeyForToken("token-a")
	first, errFirst := manager.Allow(context.Background(), key, 1)
	if errFirst != nil {
		t.Fatalf("first allow: %v", errFirst)
	}
	if !first.Allowed {
		t.Fatalf("expected first request allowed")
	}

	second, errSecond := manager.Allow(context.Background(), key, 1)
	if errSecond != nil {
		t.Fatalf("second allow: %v", errSecond)
	}
	if second.Allowed {
		t.Fatalf("expected second request blocked")
	}
}

func TestManagerAllowResetsNextWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	manager := NewManager(func() SettingsConfig {
		return SettingsConfig{}
	}, func() time.Time {
		return now
	}, nil)

	key := KeyForToken("token-b")
	if result, _ := manager.Allow(context.Background(), key, 1); !result.Allowed {
		t.Fatalf("expected first request allowed")
	}

	now = now.Add(time.Second)
	if result, _ := manager.Allow(context.Background(), key, 1); !result.Allowed {
		t.Fatalf("expected request allowed in next window")
	}
}

func TestManagerAllowZeroLimitUnlimited(t *testing.T) {
	manager := NewManager(nil, nil, nil)
	for i := 0; i < 10; i++ {
		result, errAllow := manager.Allow(context.Background(), KeyForToken("token-c"), 0)
		if errAllow != nil {
			t.Fatalf("allow: %v", errAllow)
		}
		if !result.Allowed {
			t.Fatalf("expected unlimited when limit is zero")
		}
	}
}

func TestWaitHonorsCancellation(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	manager := NewManager(func() SettingsConfig {
		return SettingsConfig{}
	}, func() time.Time {
		return now
	}, nil)

	key := KeyForToken("token-d")
	if errWait := manager.Wait(context.Background(), key, 1); errWait != nil {
		t.Fatalf("first wait: %v", errWait)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if errWait := manager.Wait(ctx, key, 1); errWait == nil {
		t.Fatalf("expected context error from cancelled wait")
	}
}

func TestKeyForToken(t *testing.T) {
	if key := KeyForToken("  "); key != "" {
		t.Fatalf("expected empty key for blank token, got %q", key)
	}
	if key := KeyForToken("abc"); key != "t:abc" {
		t.Fatalf("unexpected key: %q", key)
	}
}
