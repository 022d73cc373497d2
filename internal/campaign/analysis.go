package campaign

import "fmt"

// recentActionsLimit bounds the history returned by AnalyzeCharacter
const recentActionsLimit = 10

// CharacterInfo merges an actor's static definition with its current state
type CharacterInfo struct {
	RosterActor
	Health    int      `json:"health"`
	Inventory []string `json:"inventory"`
}

// CharacterReport is the per-character action history
type CharacterReport struct {
	CharacterInfo CharacterInfo `json:"characterInfo"`
	TotalActions  int           `json:"totalActions"`
	RecentActions []LogEntry    `json:"recentActions"`
}

// CharacterStat is the per-character line of a campaign summary
type CharacterStat struct {
	Name      string   `json:"name"`
	Health    int      `json:"health"`
	Inventory []string `json:"inventory"`
}

// CampaignReport summarizes the whole campaign
type CampaignReport struct {
	TotalEvents    int             `json:"totalEvents"`
	CampaignState  Campaign        `json:"campaignState"`
	CharacterStats []CharacterStat `json:"characterStats"`
}

// AnalyzeCharacter filters the log by actor and returns the character's
// static and dynamic info with its most recent entries. The narrator is
// looked up under its log actor name.
func AnalyzeCharacter(state *State, roster *Roster, name string) (*CharacterReport, error) {
	actor, ok := roster.Find(name)
	if !ok {
		return nil, fmt.Errorf("character not found: %s", name)
	}

	logActor := actor.Name
	if actor.IsNarrator() {
		logActor = NarratorActor
	}

	var events []LogEntry
	for _, entry := range state.GameLog {
		if entry.Actor == logActor {
			events = append(events, entry)
		}
	}

	info := CharacterInfo{RosterActor: actor, Health: actor.EffectiveMaxHealth(), Inventory: copyItems(actor.StartingItems)}
	if cs, ok := state.Character(name); ok {
		info.Health = cs.Health
		info.Inventory = copyItems(cs.Inventory)
	}

	recent := events
	if len(recent) > recentActionsLimit {
		recent = recent[len(recent)-recentActionsLimit:]
	}
	if recent == nil {
		recent = make([]LogEntry, 0)
	}

	return &CharacterReport{
		CharacterInfo: info,
		TotalActions:  len(events),
		RecentActions: recent,
	}, nil
}

// AnalyzeCampaign returns the log length, campaign state and party stats
// in roster order.
func AnalyzeCampaign(state *State, roster *Roster) *CampaignReport {
	stats := make([]CharacterStat, 0, len(state.Characters))
	for _, actor := range roster.Actors() {
		cs, ok := state.Character(actor.Name)
		if !ok {
			continue
		}
		stats = append(stats, CharacterStat{
			Name:      cs.Name,
			Health:    cs.Health,
			Inventory: copyItems(cs.Inventory),
		})
	}

	return &CampaignReport{
		TotalEvents:    len(state.GameLog),
		CampaignState:  state.Campaign,
		CharacterStats: stats,
	}
}

func copyItems(items []string) []string {
	out := make([]string, len(items))
	copy(out, items)
	return out
}
