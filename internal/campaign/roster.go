package campaign

import (
	"encoding/json"
	"fmt"
	"os"
)

// Role identifies who drives an actor's turns
type Role string

const (
	RoleNarrator Role = "Narrator"
	RolePlayer   Role = "Player"

	// roleGameMaster is accepted in roster files as a narrator alias
	roleGameMaster Role = "Game Master"
)

// DefaultMaxHealth applies when a roster entry omits maxHealth
const DefaultMaxHealth = 100

// RosterActor is the immutable static definition of an actor
type RosterActor struct {
	Name          string   `json:"name"`
	Role          Role     `json:"role"`
	Race          string   `json:"race,omitempty"`
	Class         string   `json:"class,omitempty"`
	Level         int      `json:"level,omitempty"`
	MaxHealth     int      `json:"maxHealth,omitempty"`
	Abilities     []string `json:"abilities,omitempty"`
	StartingItems []string `json:"startingItems,omitempty"`
	Personality   string   `json:"personality,omitempty"`
}

// EffectiveMaxHealth returns MaxHealth or the default when unset
func (a RosterActor) EffectiveMaxHealth() int {
	if a.MaxHealth <= 0 {
		return DefaultMaxHealth
	}
	return a.MaxHealth
}

// IsNarrator reports whether the actor narrates
func (a RosterActor) IsNarrator() bool {
	return a.Role == RoleNarrator
}

// Roster is the ordered, read-only list of actors loaded at start.
// Roster order is commit order.
type Roster struct {
	actors []RosterActor
}

// NewRoster validates and wraps a list of actor definitions
func NewRoster(actors []RosterActor) (*Roster, error) {
	seen := make(map[string]bool, len(actors))
	narrators := 0
	copied := make([]RosterActor, len(actors))
	for i, a := range actors {
		if a.Role == roleGameMaster {
			a.Role = RoleNarrator
		}
		if a.Name == "" {
			return nil, fmt.Errorf("roster actor without a name")
		}
		if seen[a.Name] {
			return nil, fmt.Errorf("duplicate roster actor: %s", a.Name)
		}
		seen[a.Name] = true

		switch a.Role {
		case RoleNarrator:
			narrators++
		case RolePlayer:
		default:
			return nil, fmt.Errorf("actor %s has unknown role %q", a.Name, a.Role)
		}

		a.Abilities = append([]string(nil), a.Abilities...)
		a.StartingItems = append([]string(nil), a.StartingItems...)
		copied[i] = a
	}
	if narrators > 1 {
		return nil, fmt.Errorf("roster has %d narrators, expected at most one", narrators)
	}

	return &Roster{actors: copied}, nil
}

// LoadRosterFile reads a JSON array of actor definitions
func LoadRosterFile(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}

	var actors []RosterActor
	if err := json.Unmarshal(data, &actors); err != nil {
		return nil, fmt.Errorf("failed to parse roster %s: %w", path, err)
	}
	return NewRoster(actors)
}

// Actors returns a copy of every actor in roster order
func (r *Roster) Actors() []RosterActor {
	return append([]RosterActor(nil), r.actors...)
}

// Narrator returns the narrator actor, if any
func (r *Roster) Narrator() (RosterActor, bool) {
	for _, a := range r.actors {
		if a.IsNarrator() {
			return a, true
		}
	}
	return RosterActor{}, false
}

// Players returns the player actors in roster order
func (r *Roster) Players() []RosterActor {
	players := make([]RosterActor, 0, len(r.actors))
	for _, a := range r.actors {
		if a.Role == RolePlayer {
			players = append(players, a)
		}
	}
	return players
}

// Find looks up an actor by name
func (r *Roster) Find(name string) (RosterActor, bool) {
	for _, a := range r.actors {
		if a.Name == name {
			return a, true
		}
	}
	return RosterActor{}, false
}

// DefaultRoster is the built-in party: one narrator and four level 5 adventurers
func DefaultRoster() *Roster {
	roster, err := NewRoster([]RosterActor{
		{
			Name:        "Dungeon Master",
			Role:        RoleNarrator,
			Personality: "Creative storyteller, fair judge, and world builder. Balances challenge and fun for the players.",
		},
		{
			Name:          "Thorne",
			Role:          RolePlayer,
			Race:          "Human",
			Class:         "Fighter",
			Level:         5,
			MaxHealth:     45,
			Abilities:     []string{"Second Wind", "Action Surge", "Extra Attack", "Great Weapon Fighting"},
			StartingItems: []string{"Greatsword", "Chain Mail", "Healing Potion", "Backpack", "Rations"},
			Personality:   "Bold, protective, and direct. Former soldier who values loyalty and honor. Takes point in combat situations.",
		},
		{
			Name:          "Lyra",
			Role:          RolePlayer,
			Race:          "Elf",
			Class:         "Wizard",
			Level:         5,
			MaxHealth:     28,
			Abilities:     []string{"Arcane Recovery", "Fireball", "Counterspell", "Fly", "Invisibility"},
			StartingItems: []string{"Spellbook", "Wand", "Component Pouch", "Scholar's Pack", "Mage Armor Scroll"},
			Personality:   "Intelligent, curious, and occasionally arrogant. Fascinated by magical knowledge and ancient history.",
		},
		{
			Name:          "Grimble",
			Role:          RolePlayer,
			Race:          "Halfling",
			Class:         "Rogue",
			Level:         5,
			MaxHealth:     35,
			Abilities:     []string{"Sneak Attack", "Cunning Action", "Uncanny Dodge", "Thieves' Tools Expertise"},
			StartingItems: []string{"Shortsword", "Shortbow", "Leather Armor", "Thieves' Tools", "Invisibility Potion"},
			Personality:   "Witty, light-fingered, and surprisingly brave. Always looking for treasure and tends to act before thinking.",
		},
		{
			Name:          "Aurelia",
			Role:          RolePlayer,
			Race:          "Aasimar",
			Class:         "Cleric",
			Level:         5,
			MaxHealth:     40,
			Abilities:     []string{"Channel Divinity", "Spiritual Weapon", "Cure Wounds", "Revivify", "Radiant Soul"},
			StartingItems: []string{"Mace", "Shield", "Chain Shirt", "Holy Symbol", "Healer's Kit", "Greater Healing Potion"},
			Personality:   "Compassionate, wise, and steadfast. Dedicated to her deity and protecting the innocent. Voice of reason in the party.",
		},
	})
	if err != nil {
		panic(err)
	}
	return roster
}
