package agents

import (
	"embed"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/qninhdt/dnd-campaign/server/internal/campaign"
)

const (
	narratorHistory = 10
	playerHistory   = 8

	// logTimeLayout renders log timestamps with millisecond precision
	logTimeLayout = "2006-01-02T15:04:05.000Z07:00"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.ParseFS(promptFS, "prompts/*.tmpl"))

type partyLine struct {
	Name   string
	Level  int
	Race   string
	Class  string
	Health string
}

type narratorPrompt struct {
	Location     string
	Quest        string
	Scene        string
	CombatActive bool
	Events       []string
	Party        []partyLine
}

type playerPrompt struct {
	Name         string
	Level        int
	Race         string
	Class        string
	Health       int
	MaxHealth    int
	Abilities    string
	Personality  string
	Inventory    string
	Location     string
	Quest        string
	Scene        string
	CombatActive bool
	Events       []string
}

// BuildNarratorContext renders the narrator prompt: scene fields, the last
// ten log entries and every player's health
func BuildNarratorContext(state *campaign.State, roster *campaign.Roster) string {
	data := narratorPrompt{
		Location:     state.Campaign.Location,
		Quest:        state.Campaign.Quest,
		Scene:        state.Campaign.CurrentScene,
		CombatActive: state.Campaign.CombatActive,
		Events:       formatEvents(state.RecentLog(narratorHistory)),
	}

	for _, actor := range roster.Players() {
		health := "Unknown"
		if cs, ok := state.Character(actor.Name); ok {
			health = strconv.Itoa(cs.Health)
		}
		data.Party = append(data.Party, partyLine{
			Name:   actor.Name,
			Level:  actor.Level,
			Race:   actor.Race,
			Class:  actor.Class,
			Health: health,
		})
	}

	return render("narrator.tmpl", data)
}

// BuildPlayerContext renders a player's prompt from its own state and the
// last eight log entries. Missing character state falls back to the roster.
func BuildPlayerContext(actor campaign.RosterActor, state *campaign.State) string {
	health := actor.EffectiveMaxHealth()
	inventory := actor.StartingItems
	if cs, ok := state.Character(actor.Name); ok {
		health = cs.Health
		inventory = cs.Inventory
	}

	data := playerPrompt{
		Name:         actor.Name,
		Level:        actor.Level,
		Race:         actor.Race,
		Class:        actor.Class,
		Health:       health,
		MaxHealth:    actor.EffectiveMaxHealth(),
		Abilities:    strings.Join(actor.Abilities, ", "),
		Personality:  actor.Personality,
		Inventory:    joinOr(inventory, "nothing"),
		Location:     state.Campaign.Location,
		Quest:        state.Campaign.Quest,
		Scene:        state.Campaign.CurrentScene,
		CombatActive: state.Campaign.CombatActive,
		Events:       formatEvents(state.RecentLog(playerHistory)),
	}

	return render("player.tmpl", data)
}

func formatEvents(entries []campaign.LogEntry) []string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s: %s", e.Timestamp.UTC().Format(logTimeLayout), e.Event))
	}
	return lines
}

func joinOr(items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	return strings.Join(items, ", ")
}

// render executes a named prompt template. The templates are embedded and
// their data types fixed, so an execution error is a programming error.
func render(name string, data interface{}) string {
	var sb strings.Builder
	if err := prompts.ExecuteTemplate(&sb, name, data); err != nil {
		panic(fmt.Sprintf("render %s: %v", name, err))
	}
	return sb.String()
}
