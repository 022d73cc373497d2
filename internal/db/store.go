package db

import (
	"errors"

	"github.com/qninhdt/dnd-campaign/server/internal/campaign"
)

var (
	// ErrLoadFailure means persisted state exists but cannot be read or parsed
	ErrLoadFailure = errors.New("failed to load campaign state")
	// ErrCommitFailure means the state could not be written durably
	ErrCommitFailure = errors.New("failed to commit campaign state")
)

// normalize fills fields an older or hand-edited document may lack and
// materializes characters for roster actors that have no state yet
func normalize(state *campaign.State, roster *campaign.Roster) {
	if state.GameLog == nil {
		state.GameLog = make([]campaign.LogEntry, 0)
	}
	if state.Campaign.Inventory == nil {
		state.Campaign.Inventory = make(map[string][]string)
	}
	if state.Campaign.NPCs == nil {
		state.Campaign.NPCs = make([]campaign.NPC, 0)
	}
	for _, cs := range state.Characters {
		if cs != nil && cs.Inventory == nil {
			cs.Inventory = make([]string, 0)
		}
	}
	state.EnsureCharacters(roster)
}
