package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/qninhdt/dnd-campaign/server/internal/agents"
	"github.com/qninhdt/dnd-campaign/server/internal/campaign"
	"github.com/qninhdt/dnd-campaign/server/internal/story"
)

// ErrNotStarted is returned by PlayRound before Start loaded the state
var ErrNotStarted = errors.New("engine not started")

// StateStore loads and durably commits the campaign state
type StateStore interface {
	Load(ctx context.Context) (*campaign.State, error)
	Commit(ctx context.Context, state *campaign.State) error
}

// Options tune the round loop
type Options struct {
	RoundDelay       time.Duration
	LogRetention     int
	MaxParallelTurns int // 0 means unlimited
	MaxRounds        int // 0 means run until cancelled
	Clock            func() time.Time
}

// DefaultOptions mirror the configuration defaults
func DefaultOptions() Options {
	return Options{
		RoundDelay:   3 * time.Second,
		LogRetention: campaign.DefaultLogRetention,
	}
}

// TurnOutcome is what happened to one actor in a round
type TurnOutcome struct {
	Actor     string       `json:"actor"`
	Text      string       `json:"text,omitempty"`
	Delta     *story.Delta `json:"delta,omitempty"`
	Committed bool         `json:"committed"`
	Error     string       `json:"error,omitempty"`
}

// RoundResult summarizes a played round
type RoundResult struct {
	ID         string        `json:"id"`
	Number     int           `json:"number"`
	Narrator   *TurnOutcome  `json:"narrator,omitempty"`
	Players    []TurnOutcome `json:"players"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
}

// Engine runs the narrator/player round loop over a single campaign state.
// Only the engine goroutine mutates state; readers go through Snapshot.
type Engine struct {
	store     StateStore
	generator agents.Generator
	reducer   *story.Reducer
	roster    *campaign.Roster
	opts      Options
	logger    *zap.Logger
	jobs      *JobQueue

	mu        sync.RWMutex
	state     *campaign.State
	lastStamp time.Time
	rounds    int
}

// NewEngine wires the engine; call Start before playing rounds
func NewEngine(store StateStore, generator agents.Generator, reducer *story.Reducer,
	roster *campaign.Roster, opts Options, logger *zap.Logger) *Engine {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.LogRetention <= 0 {
		opts.LogRetention = campaign.DefaultLogRetention
	}
	if reducer == nil {
		reducer = story.NewDefaultReducer()
	}

	return &Engine{
		store:     store,
		generator: generator,
		reducer:   reducer,
		roster:    roster,
		opts:      opts,
		logger:    logger.Named("engine"),
		jobs:      NewJobQueue(),
	}
}

// Start loads the campaign from the store. A load failure is fatal.
func (e *Engine) Start(ctx context.Context) error {
	state, err := e.store.Load(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.state = state
	e.lastStamp, _ = state.LastTimestamp()
	e.mu.Unlock()

	gameLogEntries.Set(float64(len(state.GameLog)))
	e.logger.Info("Campaign ready",
		zap.String("location", state.Campaign.Location),
		zap.String("quest", state.Campaign.Quest),
		zap.Bool("combat_active", state.Campaign.CombatActive),
		zap.Int("log_entries", len(state.GameLog)))
	return nil
}

// Snapshot returns a deep copy of the current state, or nil before Start
func (e *Engine) Snapshot() *campaign.State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state == nil {
		return nil
	}
	return e.state.Clone()
}

// Roster returns the actor roster
func (e *Engine) Roster() *campaign.Roster {
	return e.roster
}

// Rounds returns how many rounds have been played since Start
func (e *Engine) Rounds() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rounds
}

// Run plays rounds until ctx is cancelled, MaxRounds is reached or a
// commit fails. Cancellation is a clean stop and returns nil.
func (e *Engine) Run(ctx context.Context) error {
	if e.Snapshot() == nil {
		if err := e.Start(ctx); err != nil {
			return err
		}
	}

	for {
		if ctx.Err() != nil {
			e.logger.Info("Stop requested, leaving round loop")
			return nil
		}

		result, err := e.PlayRound(ctx)
		if err != nil {
			return err
		}

		if e.opts.MaxRounds > 0 && result.Number >= e.opts.MaxRounds {
			e.logger.Info("Round limit reached", zap.Int("rounds", result.Number))
			return e.enforceRetention(ctx)
		}

		if !e.idle(ctx) {
			e.logger.Info("Stop requested during idle")
			return e.enforceRetention(ctx)
		}
		if err := e.enforceRetention(ctx); err != nil {
			return err
		}
	}
}

// PlayRound runs one narrator turn, fans out the player turns, commits them
// in roster order and persists. Only a commit failure is returned as an error.
func (e *Engine) PlayRound(ctx context.Context) (*RoundResult, error) {
	e.mu.RLock()
	started := e.state != nil
	e.mu.RUnlock()
	if !started {
		return nil, ErrNotStarted
	}

	result := &RoundResult{
		ID:        uuid.NewString(),
		StartedAt: e.opts.Clock().UTC(),
		Players:   make([]TurnOutcome, 0, len(e.roster.Players())),
	}
	log := e.logger.With(zap.String("round_id", result.ID))

	if narrator, ok := e.roster.Narrator(); ok {
		outcome, err := e.narratorTurn(ctx, narrator, log)
		result.Narrator = outcome
		if err != nil {
			return result, err
		}
	}

	players := e.roster.Players()
	e.planPlayerTurns(players)
	texts, errs := e.fanOut(ctx, len(players))

	for i, actor := range players {
		result.Players = append(result.Players, e.commitTurn(actor, texts[i], errs[i], log))
	}

	if err := e.persist(ctx); err != nil {
		return result, err
	}

	e.mu.Lock()
	e.rounds++
	result.Number = e.rounds
	e.mu.Unlock()

	result.FinishedAt = e.opts.Clock().UTC()
	roundsTotal.Inc()
	roundDuration.Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())
	log.Debug("Round complete", zap.Int("round", result.Number))
	return result, nil
}

// narratorTurn generates, commits and persists the narration on its own
func (e *Engine) narratorTurn(ctx context.Context, narrator campaign.RosterActor, log *zap.Logger) (*TurnOutcome, error) {
	e.mu.RLock()
	prompt := agents.BuildNarratorContext(e.state, e.roster)
	e.mu.RUnlock()

	text, err := e.generator.Generate(ctx, campaign.RoleNarrator, prompt)
	outcome := e.commitTurn(narrator, text, err, log)
	if !outcome.Committed {
		return &outcome, nil
	}
	return &outcome, e.persist(ctx)
}

// planPlayerTurns queues every player prompt, built against the current state
func (e *Engine) planPlayerTurns(players []campaign.RosterActor) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for i, actor := range players {
		e.jobs.Enqueue(&TurnJob{
			Index:  i,
			Actor:  actor,
			Prompt: agents.BuildPlayerContext(actor, e.state),
		})
	}
}

// fanOut drains the job queue with at most MaxParallelTurns workers and
// joins them. Results are indexed by job so completion order never leaks
// into commit order.
func (e *Engine) fanOut(ctx context.Context, n int) ([]string, []error) {
	texts := make([]string, n)
	errs := make([]error, n)

	workers := e.jobs.Count()
	if e.opts.MaxParallelTurns > 0 && e.opts.MaxParallelTurns < workers {
		workers = e.opts.MaxParallelTurns
	}

	// A plain group: one failure must not cancel the other calls.
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				job, ok := e.jobs.Dequeue()
				if !ok {
					return nil
				}
				texts[job.Index], errs[job.Index] = e.generator.Generate(ctx, job.Actor.Role, job.Prompt)
			}
		})
	}
	_ = g.Wait()

	return texts, errs
}

// commitTurn folds one generated text into state, or records why it was skipped
func (e *Engine) commitTurn(actor campaign.RosterActor, text string, genErr error, log *zap.Logger) TurnOutcome {
	role := strings.ToLower(string(actor.Role))
	outcome := TurnOutcome{Actor: actor.Name, Text: text}

	if genErr != nil {
		turnsTotal.WithLabelValues(role, "generation_failed").Inc()
		outcome.Error = genErr.Error()
		log.Warn("Turn skipped, generation failed", zap.String("actor", actor.Name), zap.Error(genErr))
		return outcome
	}

	e.mu.Lock()
	delta, err := e.reducer.Commit(story.Turn{Actor: actor, Text: text, At: e.nextTimestamp()}, e.state)
	entries := len(e.state.GameLog)
	e.mu.Unlock()

	if err != nil {
		status := "reducer_error"
		if errors.Is(err, story.ErrEmptyNarration) {
			status = "empty"
		}
		turnsTotal.WithLabelValues(role, status).Inc()
		outcome.Error = err.Error()
		log.Warn("Turn skipped", zap.String("actor", actor.Name), zap.Error(err))
		return outcome
	}

	turnsTotal.WithLabelValues(role, "committed").Inc()
	gameLogEntries.Set(float64(entries))
	outcome.Delta = delta
	outcome.Committed = true

	log.Info(text, zap.String("actor", delta.Entry.Actor), zap.Strings("rules", delta.Rules))
	if len(delta.Consumed) > 0 {
		msg := fmt.Sprintf("[System: %s used %s]", actor.Name, strings.Join(delta.Consumed, ", "))
		if delta.Healed > 0 {
			msg = fmt.Sprintf("[System: %s used %s and recovered %d health]", actor.Name, strings.Join(delta.Consumed, ", "), delta.Healed)
		}
		log.Info(msg, zap.String("actor", actor.Name))
	}
	return outcome
}

// nextTimestamp returns the clock reading, bumped past the last log entry
// so log timestamps stay strictly increasing. Caller holds e.mu.
func (e *Engine) nextTimestamp() time.Time {
	now := e.opts.Clock().UTC()
	if !now.After(e.lastStamp) {
		now = e.lastStamp.Add(time.Millisecond)
	}
	e.lastStamp = now
	return now
}

// persist commits the full state. It outlives ctx so a stop requested
// mid-round still saves what was committed.
func (e *Engine) persist(ctx context.Context) error {
	e.mu.RLock()
	err := e.store.Commit(context.WithoutCancel(ctx), e.state)
	e.mu.RUnlock()

	if err != nil {
		persistFailuresTotal.Inc()
		e.logger.Error("Failed to persist campaign state", zap.Error(err))
		return err
	}
	return nil
}

// idle waits out the round delay; false means ctx was cancelled
func (e *Engine) idle(ctx context.Context) bool {
	if e.opts.RoundDelay <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(e.opts.RoundDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// enforceRetention prunes the log above the cap and persists if anything was dropped
func (e *Engine) enforceRetention(ctx context.Context) error {
	e.mu.Lock()
	dropped := e.state.PruneLog(e.opts.LogRetention)
	entries := len(e.state.GameLog)
	e.mu.Unlock()

	if dropped == 0 {
		return nil
	}

	logPrunedTotal.Add(float64(dropped))
	gameLogEntries.Set(float64(entries))
	e.logger.Info("Game log pruned", zap.Int("dropped", dropped), zap.Int("kept", entries))
	return e.persist(ctx)
}
