package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qninhdt/dnd-campaign/server/internal/campaign"
	"github.com/qninhdt/dnd-campaign/server/internal/db"
)

type staticSource struct {
	state  *campaign.State
	roster *campaign.Roster
}

func (s *staticSource) Snapshot() *campaign.State {
	if s.state == nil {
		return nil
	}
	return s.state.Clone()
}

func (s *staticSource) Roster() *campaign.Roster { return s.roster }

func newTestSource() *staticSource {
	roster := campaign.DefaultRoster()
	state := campaign.NewState(roster)
	base := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	state.AppendLog(campaign.LogEntry{Actor: campaign.NarratorActor, Event: "The tavern falls silent.", Timestamp: base})
	state.AppendLog(campaign.LogEntry{Actor: "Thorne", Event: "I stand up.", Timestamp: base.Add(time.Second)})
	state.AppendLog(campaign.LogEntry{Actor: "Lyra", Event: "I read the map.", Timestamp: base.Add(2 * time.Second)})
	state.AppendLog(campaign.LogEntry{Actor: "Thorne", Event: "I pay the barkeep.", Timestamp: base.Add(3 * time.Second)})
	state.Characters["Thorne"].Health = 30
	return &staticSource{state: state, roster: roster}
}

func do(t *testing.T, h http.Handler, target string, header ...string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "192.0.2.10:4000"
	if len(header) == 2 {
		req.Header.Set(header[0], header[1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp Response
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestGetCampaign(t *testing.T) {
	srv := NewServer(newTestSource(), Options{}, zap.NewNop())

	rec, resp := do(t, srv, "/api/campaign")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(4), data["totalEvents"])
	stats := data["characterStats"].([]interface{})
	require.Len(t, stats, 5)
	thorne := stats[1].(map[string]interface{})
	assert.Equal(t, "Thorne", thorne["name"])
	assert.Equal(t, float64(30), thorne["health"])
}

func TestGetCharacter(t *testing.T) {
	srv := NewServer(newTestSource(), Options{}, zap.NewNop())

	rec, resp := do(t, srv, "/api/characters/Thorne")
	require.Equal(t, http.StatusOK, rec.Code)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(2), data["totalActions"])
	assert.Len(t, data["recentActions"], 2)
	info := data["characterInfo"].(map[string]interface{})
	assert.Equal(t, "Fighter", info["class"])

	rec, _ = do(t, srv, "/api/characters/"+url.PathEscape("Dungeon Master"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetCharacterErrors(t *testing.T) {
	srv := NewServer(newTestSource(), Options{}, zap.NewNop())

	rec, resp := do(t, srv, "/api/characters/Nobody")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, resp.Success)

	rec, _ = do(t, srv, "/api/characters/"+url.PathEscape("<script>"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetLog(t *testing.T) {
	srv := NewServer(newTestSource(), Options{}, zap.NewNop())

	rec, resp := do(t, srv, "/api/log?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	entries := resp.Data.([]interface{})
	require.Len(t, entries, 2)
	assert.Equal(t, "I read the map.", entries[0].(map[string]interface{})["event"])
	assert.Equal(t, "I pay the barkeep.", entries[1].(map[string]interface{})["event"])

	_, resp = do(t, srv, "/api/log?actor=Thorne")
	entries = resp.Data.([]interface{})
	require.Len(t, entries, 2)
	assert.Equal(t, "I stand up.", entries[0].(map[string]interface{})["event"])

	rec, _ = do(t, srv, "/api/log?limit=9000")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotLoadedYet(t *testing.T) {
	srv := NewServer(&staticSource{roster: campaign.DefaultRoster()}, Options{}, zap.NewNop())

	rec, _ := do(t, srv, "/api/campaign")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "loading")
}

func TestBearerAuth(t *testing.T) {
	srv := NewServer(newTestSource(), Options{JWTSecret: "s3cret"}, zap.NewNop())

	rec, _ := do(t, srv, "/api/campaign")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "dm",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	rec, _ = do(t, srv, "/api/campaign", "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)

	// health and metrics stay public
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	srv := NewServer(newTestSource(), Options{RateLimit: 1}, zap.NewNop())

	first, _ := do(t, srv, "/api/campaign")
	second, _ := do(t, srv, "/api/campaign")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := NewServer(newTestSource(), Options{}, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestSnapshotRoutes(t *testing.T) {
	source := newTestSource()
	store, err := db.NewSQLiteStore(filepath.Join(t.TempDir(), "campaign.db"), "mistwood", source.roster, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()
	store.SetRetention(2)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Commit(context.Background(), source.state))
	}

	srv := NewServer(source, Options{Snapshots: store}, zap.NewNop())

	rec, resp := do(t, srv, "/api/snapshots")
	require.Equal(t, http.StatusOK, rec.Code)
	snapshots := resp.Data.([]interface{})
	require.Len(t, snapshots, 2)
	first := snapshots[0].(map[string]interface{})
	assert.Equal(t, "mistwood", first["campaignId"])
	assert.Equal(t, float64(4), first["logEntries"])

	rec, resp = do(t, srv, "/api/campaigns")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{"mistwood"}, resp.Data)
}

func TestSnapshotRoutesNeedSQLite(t *testing.T) {
	srv := NewServer(newTestSource(), Options{}, zap.NewNop())

	rec, _ := do(t, srv, "/api/snapshots")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
