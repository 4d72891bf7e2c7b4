package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"lodestone/internal/app"
	"lodestone/internal/config"
	"lodestone/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "test-token"

func newTestAPI(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{
		HTTP: config.HTTP{
			ListenAddr:   ":0",
			Token:        testToken,
			MaxBodyBytes: 1 << 16,
		},
		Storage:  config.Storage{Path: filepath.Join(dir, "test.db")},
		Registry: config.Registry{LivenessThreshold: time.Minute},
		Control:  config.Control{Timeout: 200 * time.Millisecond, PathPrefix: "/lodestone"},
		Ban: config.Ban{
			SweepInterval:     time.Minute,
			FirstContactTypes: []string{"hub"},
			ProxyTypes:        []string{"proxy"},
		},
		Fanout:   config.Fanout{PingInterval: time.Second, HistorySize: 10, SendBuffer: 16},
		Snapshot: config.Snapshot{Path: filepath.Join(dir, "snap.json")},
	}

	ctx, cancel := context.WithCancel(context.Background())
	container, err := app.New(ctx, cfg)
	require.NoError(t, err)

	api := NewAPIServer(container)
	t.Cleanup(func() {
		cancel()
		close(api.done)
		container.Close()
	})
	return api, api.Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthIsPublic(t *testing.T) {
	_, h := newTestAPI(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	_, h := newTestAPI(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/servers", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/servers", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/servers?token="+testToken, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerRegisterAndHeartbeat(t *testing.T) {
	_, h := newTestAPI(t)

	rec := do(t, h, http.MethodPost, "/api/servers/heartbeat", map[string]any{"name": "hub"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/servers/register", map[string]any{
		"name": "hub", "type": "hub", "host": "10.0.0.1", "port": 25565, "maxPlayers": 100,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	srv := decodeBody[domain.ServerRecord](t, rec)
	assert.Equal(t, "hub", srv.Name)
	assert.Equal(t, domain.StatusOnline, srv.Status)

	rec = do(t, h, http.MethodPost, "/api/servers/heartbeat", map[string]any{"name": "HUB", "currentPlayers": 7})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, decodeBody[domain.ServerRecord](t, rec).CurrentPlayers)

	rec = do(t, h, http.MethodGet, "/api/servers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]domain.ServerRecord](t, rec), 1)

	rec = do(t, h, http.MethodPost, "/api/servers/unregister", map[string]any{"name": "hub"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"removed": true}, decodeBody[map[string]bool](t, rec))

	rec = do(t, h, http.MethodGet, "/api/servers/hub", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidationErrors(t *testing.T) {
	_, h := newTestAPI(t)

	rec := do(t, h, http.MethodPost, "/api/servers/register", map[string]any{"type": "hub"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[errorResponse](t, rec).Error, "Name")

	req := httptest.NewRequest(http.MethodPost, "/api/players/join", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/servers/register", map[string]any{
		"name": "x", "host": string(make([]byte, 1<<17)),
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestPlayerLifecycle(t *testing.T) {
	_, h := newTestAPI(t)

	rec := do(t, h, http.MethodPost, "/api/players/join", map[string]any{
		"uuid": "u-alice", "name": "Alice", "client": "java.1.20", "server": "hub",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	join := decodeBody[joinResponse](t, rec)
	assert.False(t, join.Banned)
	assert.Equal(t, "hub", join.Session.CurrentServer)

	rec = do(t, h, http.MethodPost, "/api/players/switch", map[string]any{"uuid": "u-alice", "server": "anarchy"})
	require.Equal(t, http.StatusOK, rec.Code)
	sw := decodeBody[switchResponse](t, rec)
	require.True(t, sw.Updated)
	assert.Equal(t, "anarchy", sw.Session.CurrentServer)

	rec = do(t, h, http.MethodGet, "/api/players?server=anarchy", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]domain.Session](t, rec), 1)

	rec = do(t, h, http.MethodGet, "/api/players/u-alice/last-seen", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.SeenOnline, decodeBody[domain.LastSeen](t, rec).Source)

	rec = do(t, h, http.MethodPost, "/api/players/leave", map[string]any{"uuid": "u-alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[leaveResponse](t, rec).Removed)

	rec = do(t, h, http.MethodGet, "/api/players/u-alice/last-seen", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	seen := decodeBody[domain.LastSeen](t, rec)
	assert.Equal(t, domain.SeenLastLeave, seen.Source)
	assert.Equal(t, "anarchy", seen.Server)

	rec = do(t, h, http.MethodGet, "/api/players/u-alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	player := decodeBody[playerResponse](t, rec)
	assert.Nil(t, player.Session)
	require.NotNil(t, player.Profile)
	assert.Equal(t, "Alice", player.Profile.Name)
	require.Len(t, player.Clients, 1)
	assert.Equal(t, "java.1.20", player.Clients[0].Client)

	rec = do(t, h, http.MethodGet, "/api/players/u-nobody", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/players/u-nobody/last-seen", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.SeenNever, decodeBody[domain.LastSeen](t, rec).Source)
}

func TestFullSync(t *testing.T) {
	_, h := newTestAPI(t)

	do(t, h, http.MethodPost, "/api/players/join", map[string]any{"uuid": "u-gone", "name": "Gone", "server": "hub"})

	rec := do(t, h, http.MethodPost, "/api/players/full-sync", map[string]any{
		"server": "hub",
		"players": []map[string]any{
			{"uuid": "u-a", "name": "A", "client": "java"},
			{"uuid": "u-b", "name": "B"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeBody[map[string]int](t, rec)
	assert.Equal(t, 2, res["processed"])
	assert.Equal(t, 1, res["dropped"])

	rec = do(t, h, http.MethodGet, "/api/players?server=hub", nil)
	assert.Len(t, decodeBody[[]domain.Session](t, rec), 2)

	rec = do(t, h, http.MethodPost, "/api/players/full-sync", map[string]any{
		"server":  "hub",
		"players": []map[string]any{{"uuid": "u-a"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBanFlow(t *testing.T) {
	_, h := newTestAPI(t)

	rec := do(t, h, http.MethodPost, "/api/bans/ban", map[string]any{
		"uuid": "u-griefer", "name": "Griefer", "reason": "griefing", "by": "mod",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	b := decodeBody[domain.Ban](t, rec)
	assert.True(t, b.Active)
	assert.Equal(t, "mod", b.By)

	rec = do(t, h, http.MethodPost, "/api/bans/ban", map[string]any{"uuid": "u-griefer", "name": "Griefer"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/bans/u-griefer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeBody[banStatusResponse](t, rec)
	assert.True(t, status.Banned)
	require.NotNil(t, status.Ban)
	assert.Equal(t, "griefing", status.Ban.Reason)

	rec = do(t, h, http.MethodPost, "/api/players/join", map[string]any{"uuid": "u-griefer", "name": "Griefer2"})
	require.Equal(t, http.StatusOK, rec.Code)
	join := decodeBody[joinResponse](t, rec)
	assert.True(t, join.Banned)
	require.NotNil(t, join.Ban)
	assert.Equal(t, "Griefer2", join.Ban.Name)

	rec = do(t, h, http.MethodGet, "/api/bans", nil)
	assert.Len(t, decodeBody[[]domain.Ban](t, rec), 1)

	rec = do(t, h, http.MethodPost, "/api/bans/unban", map[string]any{"uuid": "u-griefer", "by": "admin"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"unbanned": true}, decodeBody[map[string]bool](t, rec))

	rec = do(t, h, http.MethodPost, "/api/bans/unban", map[string]any{"uuid": "u-griefer"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/bans/u-griefer", nil)
	assert.False(t, decodeBody[banStatusResponse](t, rec).Banned)

	rec = do(t, h, http.MethodGet, "/api/bans/u-griefer/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeBody[[]domain.BanHistoryEntry](t, rec)
	require.Len(t, history, 2)
	assert.Equal(t, domain.BanActionBan, history[0].Action)
	assert.Equal(t, domain.BanActionUnban, history[1].Action)
	assert.Equal(t, "admin", history[1].Actor)
}

func TestBanDuration(t *testing.T) {
	_, h := newTestAPI(t)

	rec := do(t, h, http.MethodPost, "/api/bans/ban", map[string]any{"uuid": "u1", "name": "P", "duration": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/bans/ban", map[string]any{"uuid": "u1", "name": "P", "duration": "2h"})
	require.Equal(t, http.StatusOK, rec.Code)
	b := decodeBody[domain.Ban](t, rec)
	require.NotNil(t, b.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), *b.ExpiresAt, time.Minute)
}

func TestBanRejectsPastExpiry(t *testing.T) {
	_, h := newTestAPI(t)

	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	rec := do(t, h, http.MethodPost, "/api/bans/ban", map[string]any{"uuid": "u1", "name": "P", "expiresAt": past})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/bans/u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[banStatusResponse](t, rec).Banned)

	rec = do(t, h, http.MethodGet, "/api/bans/u1/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]domain.BanHistoryEntry](t, rec))
}

func TestServerLogs(t *testing.T) {
	_, h := newTestAPI(t)

	rec := do(t, h, http.MethodPost, "/api/servers/hub/logs", map[string]any{"lines": []string{"a"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	do(t, h, http.MethodPost, "/api/servers/register", map[string]any{"name": "hub", "host": "127.0.0.1", "port": 25565})

	rec = do(t, h, http.MethodPost, "/api/servers/hub/logs", map[string]any{"lines": []string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/servers/hub/logs", map[string]any{"lines": []string{"[INFO] started", "[INFO] done"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"published": 2}, decodeBody[map[string]int](t, rec))

	assert.Eventually(t, func() bool {
		rec := do(t, h, http.MethodGet, "/api/servers/hub/logs", nil)
		var lines []json.RawMessage
		return rec.Code == http.StatusOK && json.Unmarshal(rec.Body.Bytes(), &lines) == nil && len(lines) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestStatusAndRCON(t *testing.T) {
	_, h := newTestAPI(t)

	do(t, h, http.MethodPost, "/api/servers/register", map[string]any{"name": "hub", "host": "127.0.0.1", "port": 25565})
	do(t, h, http.MethodPost, "/api/players/join", map[string]any{"uuid": "u1", "name": "One", "server": "hub"})

	rec := do(t, h, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody[domain.CoordinatorStats](t, rec)
	assert.Equal(t, 1, stats.Servers)
	assert.Equal(t, 1, stats.Online)
	assert.Equal(t, 1, stats.Sessions)
	assert.Equal(t, 0, stats.ActiveBans)

	rec = do(t, h, http.MethodGet, "/api/rcon/players", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total":0,"servers":[]}`, rec.Body.String())
}
