package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/qninhdt/dnd-campaign/server/internal/campaign"
)

// FileStore keeps the campaign as one pretty-printed JSON document
type FileStore struct {
	path   string
	roster *campaign.Roster
	logger *zap.Logger
	mu     sync.Mutex
}

// NewFileStore creates a store backed by the file at path
func NewFileStore(path string, roster *campaign.Roster, logger *zap.Logger) *FileStore {
	return &FileStore{
		path:   path,
		roster: roster,
		logger: logger.Named("file_store"),
	}
}

// Load reads the document. A missing file yields the initial state.
func (s *FileStore) Load(ctx context.Context) (*campaign.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("No campaign file found, starting a new campaign", zap.String("path", s.path))
		return campaign.NewState(s.roster), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailure, err)
	}

	var state campaign.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoadFailure, s.path, err)
	}
	normalize(&state, s.roster)

	s.logger.Info("Campaign loaded",
		zap.String("path", s.path),
		zap.Int("log_entries", len(state.GameLog)),
		zap.Int("characters", len(state.Characters)))
	return &state, nil
}

// Commit replaces the document atomically: a crash leaves either the old
// or the new version, never a partial write.
func (s *FileStore) Commit(ctx context.Context, state *campaign.State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommitFailure, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("%w: %v", ErrCommitFailure, err)
	}
	return nil
}

// Close is a no-op
func (s *FileStore) Close() error {
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
