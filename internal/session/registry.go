// Package session maintains live upstream clients keyed by auth token so
// repeated requests for the same account reuse one authenticated client.
package session

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/swipedeck/swipedeck/internal/config"
	"github.com/swipedeck/swipedeck/internal/ratelimit"
	"github.com/swipedeck/swipedeck/internal/store"
	"github.com/swipedeck/swipedeck/internal/tinder"
)

// ProxyResolver resolves the proxy assignment stored for a token.
type ProxyResolver interface {
	ProxyForToken(ctx context.Context, token string) (store.ProxyConfig, bool, error)
}

// DialFunc constructs an authenticated upstream client.
type DialFunc func(ctx context.Context, cfg tinder.Config) (*tinder.Client, error)

type entry struct {
	once   sync.Once
	client *tinder.Client
	err    error
}

// Registry caches one upstream client per token. Construction performs the
// login handshake, so concurrent callers for the same token share a single
// attempt.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry

	proxies  ProxyResolver
	upstream config.UpstreamConfig
	limiter  *ratelimit.Manager
	dial     DialFunc
}

// NewRegistry constructs a Registry. dial may be nil, in which case the
// default upstream constructor is used.
func NewRegistry(proxies ProxyResolver, upstream config.UpstreamConfig, limiter *ratelimit.Manager, dial DialFunc) *Registry {
	if dial == nil {
		dial = tinder.New
	}
	return &Registry{
		entries:  make(map[string]*entry),
		proxies:  proxies,
		upstream: upstream,
		limiter:  limiter,
		dial:     dial,
	}
}

// GetOrCreate returns the cached client for token, constructing and logging
// in on first use. Failed construction is not cached; the next call retries.
func (r *Registry) GetOrCreate(ctx context.Context, token string) (*tinder.Client, error) {
	if r == nil {
		return nil, fmt.Errorf("session: registry not initialized")
	}
	if token == "" {
		return nil, &tinder.LoginError{Err: fmt.Errorf("empty token")}
	}

	r.mu.Lock()
	e, ok := r.entries[token]
	if !ok {
		e = &entry{}
		r.entries[token] = e
	}
	r.mu.Unlock()

	e.once.Do(func() {
		e.client, e.err = r.build(ctx, token)
	})
	if e.err != nil {
		// Drop the failed entry so a later call can retry, unless another
		// construction already replaced it.
		r.mu.Lock()
		if cur, ok := r.entries[token]; ok && cur == e {
			delete(r.entries, token)
		}
		r.mu.Unlock()
		return nil, e.err
	}
	return e.client, nil
}

func (r *Registry) build(ctx context.Context, token string) (*tinder.Client, error) {
	cfg := tinder.Config{
		Token:     token,
		BaseURL:   r.upstream.BaseURL,
		RateLimit: r.upstream.RateLimit,
		Limiter:   r.limiter,
	}
	if r.proxies != nil {
		proxy, assigned, errProxy := r.proxies.ProxyForToken(ctx, token)
		if errProxy != nil {
			return nil, errProxy
		}
		if assigned {
			cfg.HTTPProxy = proxy.HTTP
			cfg.HTTPSProxy = proxy.HTTPS
		}
	}

	client, errDial := r.dial(ctx, cfg)
	if errDial != nil {
		log.WithField("error", errDial).Debug("session: upstream login failed")
		return nil, errDial
	}
	return client, nil
}

// Evict removes the cached client for token, if any. The next GetOrCreate
// performs a fresh login.
func (r *Registry) Evict(token string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	delete(r.entries, token)
	r.mu.Unlock()
}

// Len reports the number of cached sessions.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
