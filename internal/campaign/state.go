package campaign

import (
	"time"
)

const (
	InitialLocation = "Tavern in Mistwood Village"
	InitialQuest    = "No active quest yet"
	InitialScene    = "Campaign Start"

	// NarratorActor is the actor name written to the log for narration
	NarratorActor = "Narrator"

	// DefaultLogRetention is the maximum number of log entries kept
	DefaultLogRetention = 500
)

// NPC represents a non-player character carried through the campaign
type NPC struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// LogEntry is one append-only record in the game log
type LogEntry struct {
	Actor     string    `json:"actor"`
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
}

// Campaign holds the scene-level fields of the campaign
type Campaign struct {
	Location     string              `json:"location"`
	Quest        string              `json:"quest"`
	CurrentScene string              `json:"currentScene"`
	CombatActive bool                `json:"combatActive"`
	Inventory    map[string][]string `json:"inventory"` // party stash, carried through
	NPCs         []NPC               `json:"npcs"`
}

// CharacterState is the mutable projection of a roster actor.
// Static fields are copied from the roster for readability of the
// persisted document; the roster stays authoritative for them.
type CharacterState struct {
	Name        string   `json:"name"`
	Race        string   `json:"race,omitempty"`
	Class       string   `json:"class,omitempty"`
	Level       int      `json:"level,omitempty"`
	MaxHealth   int      `json:"maxHealth"`
	Abilities   []string `json:"abilities,omitempty"`
	Personality string   `json:"personality,omitempty"`
	Health      int      `json:"health"`
	Inventory   []string `json:"inventory"`
}

// State is the single mutable root, persisted as one document
type State struct {
	GameLog    []LogEntry                 `json:"gameLog"`
	Campaign   Campaign                   `json:"campaignState"`
	Characters map[string]*CharacterState `json:"characters"`
}

// NewState creates the initial campaign state seeded from the roster
func NewState(roster *Roster) *State {
	state := &State{
		GameLog: make([]LogEntry, 0),
		Campaign: Campaign{
			Location:     InitialLocation,
			Quest:        InitialQuest,
			CurrentScene: InitialScene,
			CombatActive: false,
			Inventory:    make(map[string][]string),
			NPCs:         make([]NPC, 0),
		},
		Characters: make(map[string]*CharacterState),
	}
	state.EnsureCharacters(roster)
	return state
}

// newCharacterState seeds a character from its roster template
func newCharacterState(actor RosterActor) *CharacterState {
	inventory := make([]string, len(actor.StartingItems))
	copy(inventory, actor.StartingItems)

	return &CharacterState{
		Name:        actor.Name,
		Race:        actor.Race,
		Class:       actor.Class,
		Level:       actor.Level,
		MaxHealth:   actor.EffectiveMaxHealth(),
		Abilities:   append([]string(nil), actor.Abilities...),
		Personality: actor.Personality,
		Health:      actor.EffectiveMaxHealth(),
		Inventory:   inventory,
	}
}

// EnsureCharacters materializes a CharacterState for every roster actor
// missing one and reports whether anything was added. Existing entries
// are never overwritten.
func (s *State) EnsureCharacters(roster *Roster) bool {
	if s.Characters == nil {
		s.Characters = make(map[string]*CharacterState)
	}

	added := false
	for _, actor := range roster.Actors() {
		if cs, ok := s.Characters[actor.Name]; ok && cs != nil {
			continue
		}
		s.Characters[actor.Name] = newCharacterState(actor)
		added = true
	}
	return added
}

// Character returns the mutable state for a character
func (s *State) Character(name string) (*CharacterState, bool) {
	cs, ok := s.Characters[name]
	if !ok || cs == nil {
		return nil, false
	}
	return cs, true
}

// AppendLog appends an entry to the game log
func (s *State) AppendLog(entry LogEntry) {
	s.GameLog = append(s.GameLog, entry)
}

// RecentLog returns up to n most recent entries, oldest first
func (s *State) RecentLog(n int) []LogEntry {
	if n <= 0 {
		return nil
	}
	start := len(s.GameLog) - n
	if start < 0 {
		start = 0
	}
	return s.GameLog[start:]
}

// LastTimestamp returns the timestamp of the newest log entry
func (s *State) LastTimestamp() (time.Time, bool) {
	if len(s.GameLog) == 0 {
		return time.Time{}, false
	}
	return s.GameLog[len(s.GameLog)-1].Timestamp, true
}

// PruneLog keeps only the most recent limit entries and returns how many
// were dropped.
func (s *State) PruneLog(limit int) int {
	if limit <= 0 || len(s.GameLog) <= limit {
		return 0
	}
	dropped := len(s.GameLog) - limit
	kept := make([]LogEntry, limit)
	copy(kept, s.GameLog[dropped:])
	s.GameLog = kept
	return dropped
}

// Clone returns a deep copy of the state
func (s *State) Clone() *State {
	clone := &State{Campaign: s.Campaign}

	if s.GameLog != nil {
		clone.GameLog = append(make([]LogEntry, 0, len(s.GameLog)), s.GameLog...)
	}
	if s.Campaign.NPCs != nil {
		clone.Campaign.NPCs = append(make([]NPC, 0, len(s.Campaign.NPCs)), s.Campaign.NPCs...)
	}
	if s.Campaign.Inventory != nil {
		clone.Campaign.Inventory = make(map[string][]string, len(s.Campaign.Inventory))
		for k, v := range s.Campaign.Inventory {
			clone.Campaign.Inventory[k] = append([]string(nil), v...)
		}
	}

	if s.Characters != nil {
		clone.Characters = make(map[string]*CharacterState, len(s.Characters))
	}
	for name, cs := range s.Characters {
		if cs == nil {
			continue
		}
		c := *cs
		if cs.Abilities != nil {
			c.Abilities = append(make([]string, 0, len(cs.Abilities)), cs.Abilities...)
		}
		if cs.Inventory != nil {
			c.Inventory = append(make([]string, 0, len(cs.Inventory)), cs.Inventory...)
		}
		clone.Characters[name] = &c
	}
	return clone
}
