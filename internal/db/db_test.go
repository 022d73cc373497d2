package db

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qninhdt/dnd-campaign/server/internal/campaign"
)

// playedState returns a state that has been through a few turns
func playedState(roster *campaign.Roster) *campaign.State {
	state := campaign.NewState(roster)
	base := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	state.AppendLog(campaign.LogEntry{Actor: campaign.NarratorActor, Event: "A fight breaks out in the tavern!", Timestamp: base})
	state.AppendLog(campaign.LogEntry{Actor: "Thorne", Event: "I drink the healing potion", Timestamp: base.Add(time.Millisecond)})
	state.Campaign.CombatActive = true
	state.Campaign.Quest = "Your quest is to find the missing heir"
	state.Campaign.NPCs = append(state.Campaign.NPCs, campaign.NPC{Name: "Barkeep", Description: "Nervous"})
	state.Characters["Thorne"].Health = 30
	state.Characters["Thorne"].Inventory = []string{"Greatsword", "Chain Mail", "Backpack", "Rations"}
	return state
}

func TestFileStoreMissingFileYieldsInitialState(t *testing.T) {
	roster := campaign.DefaultRoster()
	store := NewFileStore(filepath.Join(t.TempDir(), "campaign.json"), roster, zap.NewNop())

	state, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, campaign.NewState(roster), state)
}

func TestFileStoreRoundTrip(t *testing.T) {
	roster := campaign.DefaultRoster()
	path := filepath.Join(t.TempDir(), "campaign.json")
	store := NewFileStore(path, roster, zap.NewNop())
	ctx := context.Background()

	want := playedState(roster)
	require.NoError(t, store.Commit(ctx, want))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{\n  \"gameLog\": ["))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campaign.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"gameLog": [`), 0o644))

	_, err := NewFileStore(path, campaign.DefaultRoster(), zap.NewNop()).Load(context.Background())
	assert.ErrorIs(t, err, ErrLoadFailure)
}

func TestFileStoreMergesNewRosterActors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campaign.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "gameLog": [],
  "campaignState": {"location": "Cave", "quest": "q", "currentScene": "s", "combatActive": false},
  "characters": {"Thorne": {"name": "Thorne", "maxHealth": 45, "health": 12, "inventory": ["Rope"]}}
}`), 0o644))

	state, err := NewFileStore(path, campaign.DefaultRoster(), zap.NewNop()).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 12, state.Characters["Thorne"].Health)
	assert.Equal(t, []string{"Rope"}, state.Characters["Thorne"].Inventory)
	assert.Equal(t, 28, state.Characters["Lyra"].Health)
	assert.NotNil(t, state.Campaign.Inventory)
	assert.NotNil(t, state.Campaign.NPCs)
}

func TestFileStoreCommitFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "campaign.json")
	store := NewFileStore(path, campaign.DefaultRoster(), zap.NewNop())

	err := store.Commit(context.Background(), campaign.NewState(campaign.DefaultRoster()))
	assert.ErrorIs(t, err, ErrCommitFailure)
}

func newTestSQLiteStore(t *testing.T, path, campaignID string) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(path, campaignID, campaign.DefaultRoster(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t, filepath.Join(t.TempDir(), "campaign.db"), "default")
	ctx := context.Background()

	initial, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, campaign.NewState(campaign.DefaultRoster()), initial)

	want := playedState(campaign.DefaultRoster())
	require.NoError(t, store.Commit(ctx, initial))
	require.NoError(t, store.Commit(ctx, want))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	snapshots, err := store.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, 2, snapshots[0].LogEntries)
	assert.True(t, snapshots[0].CombatActive)
	assert.False(t, snapshots[1].CombatActive)
	assert.NotEqual(t, snapshots[0].ID, snapshots[1].ID)
}

func TestSQLiteStoreRetention(t *testing.T) {
	store := newTestSQLiteStore(t, filepath.Join(t.TempDir(), "campaign.db"), "default")
	store.SetRetention(3)
	ctx := context.Background()

	state := campaign.NewState(campaign.DefaultRoster())
	for i := 0; i < 5; i++ {
		state.AppendLog(campaign.LogEntry{Actor: "Lyra", Event: "cast", Timestamp: time.Unix(int64(i), 0).UTC()})
		require.NoError(t, store.Commit(ctx, state))
	}

	snapshots, err := store.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snapshots, 3)
	assert.Equal(t, 5, snapshots[0].LogEntries)
	assert.Equal(t, 3, snapshots[2].LogEntries)
}

func TestSQLiteStoreSeparatesCampaigns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campaign.db")
	first := newTestSQLiteStore(t, path, "first")
	second := newTestSQLiteStore(t, path, "second")
	ctx := context.Background()

	require.NoError(t, first.Commit(ctx, playedState(campaign.DefaultRoster())))

	state, err := second.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.GameLog)

	ids, err := first.CampaignIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, ids)
}

func TestSQLiteStoreCorruptSnapshot(t *testing.T) {
	store := newTestSQLiteStore(t, filepath.Join(t.TempDir(), "campaign.db"), "default")
	ctx := context.Background()

	_, err := store.conn.Exec(`INSERT INTO campaigns (id) VALUES ('default')`)
	require.NoError(t, err)
	_, err = store.conn.Exec(`
		INSERT INTO campaign_snapshots (id, campaign_id, state_json, log_entries, combat_active)
		VALUES ('broken', 'default', '{not json', 0, 0)
	`)
	require.NoError(t, err)

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrLoadFailure)
}
