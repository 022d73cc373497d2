package game

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/qninhdt/dnd-campaign/server/internal/agents"
	"github.com/qninhdt/dnd-campaign/server/internal/campaign"
	"github.com/qninhdt/dnd-campaign/server/internal/db"
)

var testEpoch = time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

// fixedClock always returns the same instant
func fixedClock() time.Time {
	return testEpoch
}

// scriptedGenerator answers by actor name with optional per-actor delay
// or failure. The narrator is keyed as "Narrator".
type scriptedGenerator struct {
	responses map[string]string
	delays    map[string]time.Duration
	failures  map[string]error

	mu          sync.Mutex
	prompts     map[string]string
	completed   []string
	inFlight    int
	maxInFlight int
}

func newScriptedGenerator(responses map[string]string) *scriptedGenerator {
	return &scriptedGenerator{
		responses: responses,
		delays:    map[string]time.Duration{},
		failures:  map[string]error{},
		prompts:   map[string]string{},
	}
}

// actorFromPrompt recovers the actor from a rendered prompt
func actorFromPrompt(role campaign.Role, prompt string) string {
	if role == campaign.RoleNarrator {
		return campaign.NarratorActor
	}
	name := strings.TrimPrefix(prompt, "You are ")
	if i := strings.Index(name, ","); i >= 0 {
		name = name[:i]
	}
	return name
}

func (g *scriptedGenerator) Generate(ctx context.Context, role campaign.Role, prompt string) (string, error) {
	actor := actorFromPrompt(role, prompt)

	g.mu.Lock()
	g.prompts[actor] = prompt
	g.inFlight++
	if g.inFlight > g.maxInFlight {
		g.maxInFlight = g.inFlight
	}
	delay := g.delays[actor]
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.inFlight--
		g.completed = append(g.completed, actor)
		g.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", agents.ErrGenerationFailed, ctx.Err())
		}
	}

	if err := g.failures[actor]; err != nil {
		return "", err
	}
	text, ok := g.responses[actor]
	if !ok {
		return "", fmt.Errorf("%w: no script for %s", agents.ErrGenerationFailed, actor)
	}
	return text, nil
}

func (g *scriptedGenerator) prompt(actor string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prompts[actor]
}

// memoryStore keeps committed copies of the state
type memoryStore struct {
	mu        sync.Mutex
	initial   *campaign.State
	commits   []*campaign.State
	loadErr   error
	commitErr error
}

func newMemoryStore(initial *campaign.State) *memoryStore {
	return &memoryStore{initial: initial}
}

func (s *memoryStore) Load(ctx context.Context) (*campaign.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.initial.Clone(), nil
}

func (s *memoryStore) Commit(ctx context.Context, state *campaign.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitErr != nil {
		return fmt.Errorf("%w: %v", db.ErrCommitFailure, s.commitErr)
	}
	s.commits = append(s.commits, state.Clone())
	return nil
}

func (s *memoryStore) commitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.commits)
}

func (s *memoryStore) last() *campaign.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.commits) == 0 {
		return nil
	}
	return s.commits[len(s.commits)-1]
}

// defaultScript is a complete round for the default roster
func defaultScript() map[string]string {
	return map[string]string{
		campaign.NarratorActor: "A goblin ambush begins in the tavern. Combat!",
		"Thorne":               "I raise my greatsword and charge the nearest goblin.",
		"Lyra":                 "I cast Fireball at the goblins by the door.",
		"Grimble":              "I slip behind the bar and look for a back exit.",
		"Aurelia":              "I call on my deity to shield my friends.",
	}
}

func actorsOf(log []campaign.LogEntry) []string {
	actors := make([]string, len(log))
	for i, e := range log {
		actors[i] = e.Actor
	}
	return actors
}
