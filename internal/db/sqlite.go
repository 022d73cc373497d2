package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/qninhdt/dnd-campaign/server/internal/campaign"
)

// DefaultSnapshotRetention is how many snapshots are kept per campaign
const DefaultSnapshotRetention = 20

// SnapshotInfo describes one stored version of a campaign
type SnapshotInfo struct {
	ID           string `json:"id"`
	CampaignID   string `json:"campaignId"`
	LogEntries   int    `json:"logEntries"`
	CombatActive bool   `json:"combatActive"`
	CreatedAt    string `json:"createdAt"`
}

// SQLiteStore keeps every committed version of a campaign as a JSON
// snapshot row; Load returns the newest one.
type SQLiteStore struct {
	conn       *sql.DB
	campaignID string
	roster     *campaign.Roster
	retention  int
	logger     *zap.Logger
	mu         sync.RWMutex
}

// NewSQLiteStore opens the database and runs migrations
func NewSQLiteStore(dbPath, campaignID string, roster *campaign.Roster, logger *zap.Logger) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	s := &SQLiteStore{
		conn:       conn,
		campaignID: campaignID,
		roster:     roster,
		retention:  DefaultSnapshotRetention,
		logger:     logger.Named("sqlite_store").With(zap.String("campaign_id", campaignID)),
	}

	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// SetRetention changes how many snapshots are kept; values below one keep all
func (s *SQLiteStore) SetRetention(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retention = n
}

// migrate runs database migrations
func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS campaigns (
		id TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS campaign_snapshots (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		campaign_id TEXT NOT NULL,
		state_json TEXT NOT NULL,
		log_entries INTEGER NOT NULL,
		combat_active INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (campaign_id) REFERENCES campaigns(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_campaign_snapshots_campaign_id ON campaign_snapshots(campaign_id, seq);
	`

	_, err := s.conn.Exec(schema)
	return err
}

// Load returns the newest snapshot, or the initial state for a new campaign
func (s *SQLiteStore) Load(ctx context.Context) (*campaign.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stateJSON string
	err := s.conn.QueryRowContext(ctx, `
		SELECT state_json FROM campaign_snapshots
		WHERE campaign_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, s.campaignID).Scan(&stateJSON)

	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Info("No snapshot found, starting a new campaign")
		return campaign.NewState(s.roster), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailure, err)
	}

	var state campaign.State
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return nil, fmt.Errorf("%w: snapshot for %s: %v", ErrLoadFailure, s.campaignID, err)
	}
	normalize(&state, s.roster)

	s.logger.Info("Campaign loaded", zap.Int("log_entries", len(state.GameLog)))
	return &state, nil
}

// Commit stores a new snapshot and prunes old ones in one transaction
func (s *SQLiteStore) Commit(ctx context.Context, state *campaign.State) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommitFailure, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.commitTx(ctx, state, stateJSON); err != nil {
		return fmt.Errorf("%w: %v", ErrCommitFailure, err)
	}
	return nil
}

func (s *SQLiteStore) commitTx(ctx context.Context, state *campaign.State, stateJSON []byte) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO campaigns (id, created_at, updated_at)
		VALUES (?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET updated_at = CURRENT_TIMESTAMP
	`, s.campaignID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO campaign_snapshots (id, campaign_id, state_json, log_entries, combat_active)
		VALUES (?, ?, ?, ?, ?)
	`, uuid.NewString(), s.campaignID, string(stateJSON), len(state.GameLog), boolToInt(state.Campaign.CombatActive))
	if err != nil {
		return err
	}

	if s.retention > 0 {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM campaign_snapshots
			WHERE campaign_id = ? AND seq NOT IN (
				SELECT seq FROM campaign_snapshots
				WHERE campaign_id = ?
				ORDER BY seq DESC
				LIMIT ?
			)
		`, s.campaignID, s.campaignID, s.retention)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Snapshots lists the stored versions of the campaign, newest first
func (s *SQLiteStore) Snapshots(ctx context.Context) ([]SnapshotInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, campaign_id, log_entries, combat_active, created_at
		FROM campaign_snapshots
		WHERE campaign_id = ?
		ORDER BY seq DESC
	`, s.campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := make([]SnapshotInfo, 0)
	for rows.Next() {
		var (
			info   SnapshotInfo
			combat int
		)
		if err := rows.Scan(&info.ID, &info.CampaignID, &info.LogEntries, &combat, &info.CreatedAt); err != nil {
			return nil, err
		}
		info.CombatActive = intToBool(combat)
		snapshots = append(snapshots, info)
	}

	return snapshots, rows.Err()
}

// CampaignIDs returns every campaign in the database, most recently updated first
func (s *SQLiteStore) CampaignIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.QueryContext(ctx, "SELECT id FROM campaigns ORDER BY updated_at DESC, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Helper functions
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(i int) bool {
	return i != 0
}
