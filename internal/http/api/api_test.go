package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/swipedeck/swipedeck/internal/config"
	"github.com/swipedeck/swipedeck/internal/db"
	"github.com/swipedeck/swipedeck/internal/models"
	"github.com/swipedeck/swipedeck/internal/ratelimit"
	"github.com/swipedeck/swipedeck/internal/security"
	"github.com/swipedeck/swipedeck/internal/session"
	"github.com/swipedeck/swipedeck/internal/store"
	"github.com/swipedeck/swipedeck/internal/swipe"
	"github.com/swipedeck/swipedeck/internal/tinder"
)

const goodToken = "good-token"

type fakeUpstream struct {
	mu    sync.Mutex
	bios  []string
	likes []string
	recs  []string
}

func (f *fakeUpstream) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Auth-Token") != goodToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"_id": "self-1", "name": "Self"})
	})
	mux.HandleFunc("POST /profile", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Bio string `json:"bio"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.bios = append(f.bios, body.Bio)
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /recs/core", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		recs := f.recs
		f.mu.Unlock()
		results := make([]map[string]any, 0, len(recs))
		for _, id := range recs {
			results = append(results, map[string]any{"user": map[string]string{"_id": id}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	})
	mux.HandleFunc("POST /like/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.likes = append(f.likes, strings.TrimPrefix(r.URL.Path, "/like/"))
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /pass/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /sms/send", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"sms_sent": true}})
	})
	mux.HandleFunc("POST /sms/validate", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"refresh_token": "refresh-1",
			"validated":     true,
		}})
	})
	mux.HandleFunc("POST /login/sms", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"api_token": goodToken}})
	})
	return mux
}

type testEnv struct {
	engine      *gin.Engine
	upstream    *fakeUpstream
	credentials *store.CredentialStore
	sessions    *session.Registry
	authHeader  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, errOpen := db.Open("file:" + filepath.Join(t.TempDir(), "api-test.db"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	hashed, errHash := security.HashPassword("secret123")
	if errHash != nil {
		t.Fatalf("hash password: %v", errHash)
	}
	if errSeed := conn.Create(&models.Admin{Username: "admin", Password: hashed, Active: true}).Error; errSeed != nil {
		t.Fatalf("seed admin: %v", errSeed)
	}

	upstream := &fakeUpstream{}
	server := httptest.NewServer(upstream.handler())
	t.Cleanup(server.Close)

	jwtCfg := config.JWTConfig{Secret: "test-secret", Expiry: time.Hour}
	upstreamCfg := config.UpstreamConfig{
		BaseURL:     server.URL,
		AuthBaseURL: server.URL,
		RateLimit:   1000,
	}
	limiter := ratelimit.NewManager(nil, nil, nil)
	credentials := store.NewCredentialStore(conn)
	sessions := session.NewRegistry(credentials, upstreamCfg, limiter, nil)

	engine := gin.New()
	RegisterRoutes(engine, Deps{
		DB:            conn,
		JWT:           jwtCfg,
		Credentials:   credentials,
		Groups:        store.NewGroupStore(conn),
		SwipeSettings: store.NewSwipeSettingsStore(conn),
		Sessions:      sessions,
		Engine:        swipe.NewEngine(),
		Phone:         tinder.NewPhoneAuth(server.URL),
	})

	token, errSign := security.SignAdminToken(jwtCfg.Secret, 1, "admin", time.Hour)
	if errSign != nil {
		t.Fatalf("sign token: %v", errSign)
	}

	return &testEnv{
		engine:      engine,
		upstream:    upstream,
		credentials: credentials,
		sessions:    sessions,
		authHeader:  "Bearer " + token,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			t.Fatalf("marshal body: %v", errMarshal)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", e.authHeader)
	}
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &out); errDecode != nil {
		t.Fatalf("decode response: %v (%s)", errDecode, rec.Body.String())
	}
	return out
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAdminLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v0/admin/login", gin.H{"username": "admin", "password": "secret123"}, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["token"] == "" {
		t.Fatal("expected token in response")
	}

	rec = env.do(t, http.MethodPost, "/v0/admin/login", gin.H{"username": "admin", "password": "wrong"}, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", rec.Code)
	}
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v0/credentials", nil, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCredentialLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v0/credentials", gin.H{"credentials": []gin.H{
		{"token": "tok-1", "http_proxy": "http://proxy:8080"},
		{"token": "tok-2"},
	}}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["inserted"].(float64) != 2 {
		t.Fatalf("expected 2 inserted, got %v", body["inserted"])
	}

	rec = env.do(t, http.MethodGet, "/v0/credentials", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if rows := body["credentials"].([]any); len(rows) != 2 {
		t.Fatalf("expected 2 credentials, got %d", len(rows))
	}

	rec = env.do(t, http.MethodDelete, "/v0/credentials/tok-1", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodDelete, "/v0/credentials/tok-1", nil, true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestGroupLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v0/groups", gin.H{"name": "alpha"}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/v0/groups", gin.H{"name": "alpha"}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for duplicate, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["result"] != "already_exists" {
		t.Fatalf("expected already_exists, got %v", body["result"])
	}

	rec = env.do(t, http.MethodPost, "/v0/groups/alpha/members", gin.H{"token": "tok-1"}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/v0/groups/alpha/members", nil, true)
	body := decodeBody(t, rec)
	if members := body["members"].([]any); len(members) != 1 || members[0] != "tok-1" {
		t.Fatalf("unexpected members: %v", members)
	}

	rec = env.do(t, http.MethodDelete, "/v0/groups/alpha/members/tok-2", nil, true)
	if body := decodeBody(t, rec); body["result"] != "not_member" {
		t.Fatalf("expected not_member, got %v", body["result"])
	}

	rec = env.do(t, http.MethodPost, "/v0/groups/missing/members", gin.H{"token": "tok-1"}, true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown group, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, "/v0/groups/alpha", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestSwipeRunUnknownCredential(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/v0/swipe/unknown-token", nil, true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSwipeRunBadUpstreamToken(t *testing.T) {
	env := newTestEnv(t)
	if _, errInsert := env.credentials.Insert(context.Background(), []store.CredentialInput{{Token: "bad-token"}}); errInsert != nil {
		t.Fatalf("insert: %v", errInsert)
	}

	rec := env.do(t, http.MethodPost, "/v0/swipe/bad-token", nil, true)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSwipeRunZeroQuota(t *testing.T) {
	env := newTestEnv(t)
	if _, errInsert := env.credentials.Insert(context.Background(), []store.CredentialInput{{Token: goodToken}}); errInsert != nil {
		t.Fatalf("insert: %v", errInsert)
	}

	// Default settings carry a zero quota, so the run ends immediately.
	rec := env.do(t, http.MethodPost, "/v0/swipe/"+goodToken, nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	report := body["report"].(map[string]any)
	if report["likes"].(float64) != 0 {
		t.Fatalf("expected 0 likes, got %v", report["likes"])
	}
}

func TestBioBroadcast(t *testing.T) {
	env := newTestEnv(t)
	if _, errInsert := env.credentials.Insert(context.Background(), []store.CredentialInput{{Token: goodToken}}); errInsert != nil {
		t.Fatalf("insert: %v", errInsert)
	}
	env.do(t, http.MethodPost, "/v0/groups", gin.H{"name": "alpha"}, true)
	env.do(t, http.MethodPost, "/v0/groups/alpha/members", gin.H{"token": goodToken}, true)

	rec := env.do(t, http.MethodPost, "/v0/groups/alpha/bio", gin.H{"bio": "hello there"}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	results := body["results"].([]any)
	if len(results) != 1 || results[0].(map[string]any)["status"] != "updated" {
		t.Fatalf("unexpected results: %v", results)
	}

	env.upstream.mu.Lock()
	defer env.upstream.mu.Unlock()
	if len(env.upstream.bios) != 1 || env.upstream.bios[0] != "hello there" {
		t.Fatalf("bio not delivered upstream: %v", env.upstream.bios)
	}
}

func TestSwipeSettingsEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/v0/settings/swipe", gin.H{
		"start_hour":       9,
		"end_hour":         21,
		"likes_per_day":    40,
		"left_swipe_ratio": 0.2,
	}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/v0/settings/swipe", nil, true)
	body := decodeBody(t, rec)
	if body["start_hour"].(float64) != 9 || body["likes_per_day"].(float64) != 40 {
		t.Fatalf("settings did not round-trip: %v", body)
	}

	rec = env.do(t, http.MethodPut, "/v0/settings/swipe", gin.H{"end_hour": 24}, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid hours, got %d", rec.Code)
	}
}

func TestRawSettings(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/v0/settings/RATE_LIMIT", gin.H{"value": 5}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodGet, "/v0/settings/RATE_LIMIT", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["value"].(float64) != 5 {
		t.Fatalf("expected value 5, got %v", body["value"])
	}

	rec = env.do(t, http.MethodPut, "/v0/settings/RATE_LIMIT", gin.H{"value": "not-a-number"}, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-integer, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/v0/settings/UNKNOWN_KEY", nil, true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown key, got %d", rec.Code)
	}
}

func TestOTPFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v0/auth/otp/send", gin.H{"phone": "+15551234567"}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["sent"] != true {
		t.Fatalf("expected sent=true, got %v", body["sent"])
	}

	rec = env.do(t, http.MethodPost, "/v0/auth/otp/verify", gin.H{
		"phone":    "+15551234567",
		"otp_code": "123456",
		"store":    true,
	}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["api_token"] != goodToken || body["stored"] != true {
		t.Fatalf("unexpected verify response: %v", body)
	}

	rec = env.do(t, http.MethodGet, "/v0/credentials", nil, true)
	if rows := decodeBody(t, rec)["credentials"].([]any); len(rows) != 1 {
		t.Fatalf("expected stored credential, got %v", rows)
	}
}
