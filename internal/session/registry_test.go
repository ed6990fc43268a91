package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/swipedeck/swipedeck/internal/config"
	"github.com/swipedeck/swipedeck/internal/store"
	"github.com/swipedeck/swipedeck/internal/tinder"
)

type fakeResolver struct {
	proxies map[string]store.ProxyConfig
	err     error
}

func (f *fakeResolver) ProxyForToken(_ context.Context, token string) (store.ProxyConfig, bool, error) {
	if f.err != nil {
		return store.ProxyConfig{}, false, f.err
	}
	proxy, ok := f.proxies[token]
	return proxy, ok && !proxy.Empty(), nil
}

func TestGetOrCreateCachesClient(t *testing.T) {
	var dials atomic.Int64
	registry := NewRegistry(&fakeResolver{}, config.UpstreamConfig{}, nil,
		func(_ context.Context, _ tinder.Config) (*tinder.Client, error) {
			dials.Add(1)
			return &tinder.Client{}, nil
		})

	first, errFirst := registry.GetOrCreate(context.Background(), "tok-1")
	require.NoError(t, errFirst)
	second, errSecond := registry.GetOrCreate(context.Background(), "tok-1")
	require.NoError(t, errSecond)

	require.Same(t, first, second)
	require.EqualValues(t, 1, dials.Load())
	require.Equal(t, 1, registry.Len())
}

func TestGetOrCreateConcurrentSingleDial(t *testing.T) {
	var dials atomic.Int64
	registry := NewRegistry(&fakeResolver{}, config.UpstreamConfig{}, nil,
		func(_ context.Context, _ tinder.Config) (*tinder.Client, error) {
			dials.Add(1)
			return &tinder.Client{}, nil
		})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errGet := registry.GetOrCreate(context.Background(), "tok-1")
			require.NoError(t, errGet)
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, dials.Load())
}

func TestFailedDialNotCached(t *testing.T) {
	var dials atomic.Int64
	registry := NewRegistry(&fakeResolver{}, config.UpstreamConfig{}, nil,
		func(_ context.Context, _ tinder.Config) (*tinder.Client, error) {
			if dials.Add(1) == 1 {
				return nil, &tinder.LoginError{Err: errors.New("bad token")}
			}
			return &tinder.Client{}, nil
		})

	_, errFirst := registry.GetOrCreate(context.Background(), "tok-1")
	require.True(t, tinder.IsLoginError(errFirst))
	require.Equal(t, 0, registry.Len())

	_, errSecond := registry.GetOrCreate(context.Background(), "tok-1")
	require.NoError(t, errSecond)
	require.EqualValues(t, 2, dials.Load())
}

func TestEvictForcesFreshDial(t *testing.T) {
	var dials atomic.Int64
	registry := NewRegistry(&fakeResolver{}, config.UpstreamConfig{}, nil,
		func(_ context.Context, _ tinder.Config) (*tinder.Client, error) {
			dials.Add(1)
			return &tinder.Client{}, nil
		})

	_, errFirst := registry.GetOrCreate(context.Background(), "tok-1")
	require.NoError(t, errFirst)
	registry.Evict("tok-1")
	require.Equal(t, 0, registry.Len())

	_, errSecond := registry.GetOrCreate(context.Background(), "tok-1")
	require.NoError(t, errSecond)
	require.EqualValues(t, 2, dials.Load())
}

func TestProxyAssignmentPassedToDial(t *testing.T) {
	resolver := &fakeResolver{proxies: map[string]store.ProxyConfig{
		"tok-1": {HTTP: "http://proxy:8080", HTTPS: "https://proxy:8443"},
	}}
	var seen tinder.Config
	registry := NewRegistry(resolver, config.UpstreamConfig{BaseURL: "https://upstream"}, nil,
		func(_ context.Context, cfg tinder.Config) (*tinder.Client, error) {
			seen = cfg
			return &tinder.Client{}, nil
		})

	_, errGet := registry.GetOrCreate(context.Background(), "tok-1")
	require.NoError(t, errGet)
	require.Equal(t, "http://proxy:8080", seen.HTTPProxy)
	require.Equal(t, "https://proxy:8443", seen.HTTPSProxy)
	require.Equal(t, "https://upstream", seen.BaseURL)
}

func TestUnknownCredentialPropagates(t *testing.T) {
	registry := NewRegistry(&fakeResolver{err: store.ErrCredentialNotFound}, config.UpstreamConfig{}, nil,
		func(_ context.Context, _ tinder.Config) (*tinder.Client, error) {
			t.Fatal("dial must not run for unknown credential")
			return nil, nil
		})

	_, errGet := registry.GetOrCreate(context.Background(), "tok-1")
	require.ErrorIs(t, errGet, store.ErrCredentialNotFound)
}
