package tinder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/swipedeck/swipedeck/internal/ratelimit"
)

// Config describes one authenticated client session.
type Config struct {
	Token      string
	HTTPProxy  string
	HTTPSProxy string
	BaseURL    string
	RateLimit  int // Requests per second; 0 falls back to the settings value.
	Limiter    *ratelimit.Manager
}

// Client issues requests to the upstream dating API on behalf of one
// account. It holds the authenticated handle, the cached self profile,
// and a local match cache.
type Client struct {
	token     string
	baseURL   string
	rateLimit int
	installID string
	http      *http.Client
	limiter   *ratelimit.Manager
	logger    *log.Entry

	mu       sync.Mutex
	selfUser *SelfUser
	matches  map[string]Match
}

// New constructs a client and performs the eager authentication handshake:
// the self profile is fetched immediately and a rejection surfaces as a
// LoginError.
func New(ctx context.Context, cfg Config) (*Client, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, &LoginError{Err: errors.New("empty auth token")}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("tinder: missing base url")
	}
	if cfg.Limiter == nil {
		return nil, fmt.Errorf("tinder: missing rate limiter")
	}

	httpClient, errHTTP := newHTTPClient(cfg.HTTPProxy, cfg.HTTPSProxy)
	if errHTTP != nil {
		return nil, errHTTP
	}

	c := &Client{
		token:     token,
		baseURL:   baseURL,
		rateLimit: cfg.RateLimit,
		installID: uuid.NewString(),
		http:      httpClient,
		limiter:   cfg.Limiter,
		logger:    log.WithField("component", "tinder"),
		matches:   make(map[string]Match),
	}

	self, errSelf := c.fetchSelfProfile(ctx)
	if errSelf != nil {
		if errors.Is(errSelf, ErrUnauthorized) {
			return nil, &LoginError{Err: errSelf}
		}
		return nil, errSelf
	}
	if self == nil || self.ID == "" {
		return nil, &LoginError{Err: errors.New("no profile returned")}
	}

	c.mu.Lock()
	c.selfUser = self
	c.mu.Unlock()
	c.logger.WithField("user", self.ID).Debug("session authenticated")
	return c, nil
}

// SelfProfile returns the cached self profile, fetching it when invalidated.
func (c *Client) SelfProfile(ctx context.Context) (*SelfUser, error) {
	c.mu.Lock()
	cached := c.selfUser
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	self, errFetch := c.fetchSelfProfile(ctx)
	if errFetch != nil {
		return nil, errFetch
	}
	c.mu.Lock()
	c.selfUser = self
	c.mu.Unlock()
	return self, nil
}

// InvalidateSelf drops the cached self profile.
func (c *Client) InvalidateSelf() {
	c.mu.Lock()
	c.selfUser = nil
	c.mu.Unlock()
}

func (c *Client) fetchSelfProfile(ctx context.Context) (*SelfUser, error) {
	var self SelfUser
	if errGet := c.makeRequest(ctx, http.MethodGet, "/profile", nil, &self); errGet != nil {
		return nil, errGet
	}
	return &self, nil
}

// recommendationsResponse maps the recs feed payload.
type recommendationsResponse struct {
	Results []Recommendation `json:"results"`
}

// Recommendations fetches a fresh batch of swipeable candidates.
func (c *Client) Recommendations(ctx context.Context) ([]Recommendation, error) {
	var resp recommendationsResponse
	if errGet := c.makeRequest(ctx, http.MethodGet, "/recs/core", nil, &resp); errGet != nil {
		return nil, errGet
	}
	return resp.Results, nil
}

// Like issues a like action on a candidate.
func (c *Client) Like(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("tinder: empty user id")
	}
	return c.makeRequest(ctx, http.MethodPost, "/like/"+userID, nil, nil)
}

// Pass issues a pass (left swipe) action on a candidate.
func (c *Client) Pass(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("tinder: empty user id")
	}
	return c.makeRequest(ctx, http.MethodPost, "/pass/"+userID, nil, nil)
}

// UpdateBio replaces the profile bio.
func (c *Client) UpdateBio(ctx context.Context, bio string) error {
	body := map[string]string{"bio": bio}
	if errPost := c.makeRequest(ctx, http.MethodPost, "/profile", body, nil); errPost != nil {
		return errPost
	}
	c.InvalidateSelf()
	return nil
}

// matchesResponse maps one page of the matches listing.
type matchesResponse struct {
	Data struct {
		Matches       []Match `json:"matches"`
		NextPageToken string  `json:"next_page_token"`
	} `json:"data"`
}

// Matches loads all matches page by page and replaces the local cache.
func (c *Client) Matches(ctx context.Context) ([]Match, error) {
	var all []Match
	pageToken := ""
	for {
		route := "/v2/matches?count=60"
		if pageToken != "" {
			route += "&page_token=" + pageToken
		}
		var resp matchesResponse
		if errGet := c.makeRequest(ctx, http.MethodGet, route, nil, &resp); errGet != nil {
			return nil, errGet
		}
		all = append(all, resp.Data.Matches...)
		if resp.Data.NextPageToken == "" {
			break
		}
		pageToken = resp.Data.NextPageToken
	}

	cache := make(map[string]Match, len(all))
	for _, match := range all {
		cache[match.ID] = match
	}
	c.mu.Lock()
	c.matches = cache
	c.mu.Unlock()
	return all, nil
}

// matchResponse maps a single match lookup.
type matchResponse struct {
	Data Match `json:"data"`
}

// GetMatch returns a match by id, consulting the local cache first.
func (c *Client) GetMatch(ctx context.Context, matchID string) (Match, error) {
	c.mu.Lock()
	cached, ok := c.matches[matchID]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	var resp matchResponse
	if errGet := c.makeRequest(ctx, http.MethodGet, "/v2/matches/"+matchID, nil, &resp); errGet != nil {
		return Match{}, errGet
	}
	c.mu.Lock()
	c.matches[resp.Data.ID] = resp.Data
	c.mu.Unlock()
	return resp.Data, nil
}

// InvalidateMatch removes one match from the local cache.
func (c *Client) InvalidateMatch(matchID string) {
	c.mu.Lock()
	delete(c.matches, matchID)
	c.mu.Unlock()
}

// updatesResponse maps the updates payload.
type updatesResponse struct {
	Matches []Match `json:"matches"`
}

// Updates fetches activity (new matches, messages) since the given date.
func (c *Client) Updates(ctx context.Context, lastActivityDate string) (*Update, error) {
	body := map[string]any{"nudge": true, "last_activity_date": lastActivityDate}
	var resp updatesResponse
	if errPost := c.makeRequest(ctx, http.MethodPost, "/updates", body, &resp); errPost != nil {
		return nil, errPost
	}
	return &Update{Matches: resp.Matches}, nil
}

// Token returns the auth token this client is bound to.
func (c *Client) Token() string { return c.token }
