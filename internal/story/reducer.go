package story

import (
	"errors"
	"strings"
	"time"

	"github.com/qninhdt/dnd-campaign/server/internal/campaign"
)

// ErrEmptyNarration is returned for generated text with no content
var ErrEmptyNarration = errors.New("empty narration")

// HealingAmount is the health restored by a healing potion
const HealingAmount = 20

// Turn is one actor's generated text, ready to be folded into state
type Turn struct {
	Actor campaign.RosterActor
	Text  string
	At    time.Time
}

// Delta is the set of state changes produced by a single turn.
// Nil pointer fields leave the corresponding state untouched.
type Delta struct {
	Entry campaign.LogEntry `json:"entry"`

	CombatActive *bool    `json:"combatActive,omitempty"`
	Quest        *string  `json:"quest,omitempty"`
	Location     *string  `json:"location,omitempty"`
	Rules        []string `json:"rules,omitempty"` // narrator rules that fired

	Character string   `json:"character,omitempty"`
	Inventory []string `json:"inventory,omitempty"` // replacement inventory
	Health    *int     `json:"health,omitempty"`
	Consumed  []string `json:"consumed,omitempty"`
	Healed    int      `json:"healed,omitempty"`
}

// Reducer folds narration into campaign state through ordered rules
type Reducer struct {
	rules []NarratorRule
}

// NewReducer compiles the narrator rules, keeping their order
func NewReducer(rules []NarratorRule) (*Reducer, error) {
	compiled := make([]NarratorRule, len(rules))
	for i, rule := range rules {
		if err := rule.compile(); err != nil {
			return nil, err
		}
		compiled[i] = rule
	}
	return &Reducer{rules: compiled}, nil
}

// NewDefaultReducer returns a reducer with the built-in rules
func NewDefaultReducer() *Reducer {
	r, err := NewReducer(DefaultNarratorRules())
	if err != nil {
		panic(err)
	}
	return r
}

// Reduce computes the delta for a turn without touching state
func (r *Reducer) Reduce(turn Turn, state *campaign.State) (*Delta, error) {
	if strings.TrimSpace(turn.Text) == "" {
		return nil, ErrEmptyNarration
	}

	if turn.Actor.IsNarrator() {
		return r.reduceNarrator(turn)
	}
	return r.reducePlayer(turn, state), nil
}

// Commit reduces a turn and applies the result to state
func (r *Reducer) Commit(turn Turn, state *campaign.State) (*Delta, error) {
	delta, err := r.Reduce(turn, state)
	if err != nil {
		return nil, err
	}
	delta.Apply(state)
	return delta, nil
}

func (r *Reducer) reduceNarrator(turn Turn) (*Delta, error) {
	delta := &Delta{
		Entry: campaign.LogEntry{
			Actor:     campaign.NarratorActor,
			Event:     turn.Text,
			Timestamp: turn.At,
		},
	}

	env := ruleEnv{Text: turn.Text, Keywords: LocationKeywords}
	for i := range r.rules {
		rule := &r.rules[i]
		matched, err := rule.matches(env)
		if err != nil {
			return nil, err
		}
		if !matched {
			continue
		}
		rule.Extract(turn.Text, delta)
		delta.Rules = append(delta.Rules, rule.Name)
	}
	return delta, nil
}

func (r *Reducer) reducePlayer(turn Turn, state *campaign.State) *Delta {
	delta := &Delta{
		Entry: campaign.LogEntry{
			Actor:     turn.Actor.Name,
			Event:     turn.Text,
			Timestamp: turn.At,
		},
		Character: turn.Actor.Name,
	}

	cs, ok := state.Character(turn.Actor.Name)
	if !ok {
		return delta
	}

	lower := strings.ToLower(turn.Text)
	maxHealth := turn.Actor.EffectiveMaxHealth()
	health := cs.Health
	inventory := append(make([]string, 0, len(cs.Inventory)), cs.Inventory...)
	evaluated := make(map[string]bool, len(cs.Inventory))

	// Every item is matched against the same text; removals only change
	// the resulting inventory, never what else matches. A matched name
	// consumes a single copy, so duplicates survive for later turns and
	// heal at most once per turn. Dropping every copy on one mention is
	// intentionally not done.
	for _, item := range cs.Inventory {
		key := strings.ToLower(item)
		if evaluated[key] {
			continue
		}
		evaluated[key] = true

		if !strings.Contains(key, "potion") || !itemPattern(item).MatchString(lower) {
			continue
		}

		inventory = removeFirst(inventory, item)
		delta.Consumed = append(delta.Consumed, item)

		if strings.Contains(key, "healing") {
			healed := min(maxHealth, health+HealingAmount)
			if healed > health {
				delta.Healed += healed - health
				health = healed
			}
		}
	}

	if len(delta.Consumed) > 0 {
		delta.Inventory = inventory
		delta.Health = &health
	}
	return delta
}

// Apply writes the delta into state
func (d *Delta) Apply(state *campaign.State) {
	state.AppendLog(d.Entry)

	if d.CombatActive != nil {
		state.Campaign.CombatActive = *d.CombatActive
	}
	if d.Quest != nil {
		state.Campaign.Quest = *d.Quest
	}
	if d.Location != nil {
		state.Campaign.Location = *d.Location
	}

	if d.Character == "" {
		return
	}
	cs, ok := state.Character(d.Character)
	if !ok {
		return
	}
	if d.Inventory != nil {
		cs.Inventory = append(make([]string, 0, len(d.Inventory)), d.Inventory...)
	}
	if d.Health != nil {
		cs.Health = *d.Health
	}
}

func removeFirst(items []string, item string) []string {
	for i, it := range items {
		if it == item {
			return append(items[:i], items[i+1:]...)
		}
	}
	return items
}
