// Package session owns the authoritative game state for one table. The
// engine is pure; the session is the single writer that applies transitions,
// keeps the bounded undo stack, and mirrors snapshots to the store and the
// broadcast channel.
package session

import (
	"context"
	"errors"
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"chiptally/internal/engine"
	"chiptally/internal/randutil"
	"chiptally/internal/store"
)

// maxUndoDepth bounds the undo stack; the oldest snapshot is evicted first.
const maxUndoDepth = 20

var (
	ErrNoSettings  = errors.New("session has no settings configured")
	ErrNoGame      = errors.New("no game in progress")
	ErrNotShowdown = errors.New("winners can only be selected at showdown")
)

// Broadcaster pushes whole-state snapshots to read-only observers.
type Broadcaster interface {
	Publish(ctx context.Context, code string, snapshot []byte)
}

// Record is one entry in the action history log.
type Record struct {
	GameNumber int               `json:"gameNumber"`
	Stage      engine.Stage      `json:"stage"`
	PlayerID   string            `json:"playerId"`
	PlayerName string            `json:"playerName"`
	Action     engine.ActionType `json:"action"`
	Amount     int               `json:"amount,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Session serializes all mutations of a single table's state. Spectator
// reads go through State(), which returns deep copies, so a stored or
// broadcast snapshot can never be altered retroactively.
type Session struct {
	mu     sync.Mutex
	logger *log.Logger
	clock  quartz.Clock
	rng    *rand.Rand

	code        string
	settings    *engine.Settings
	state       *engine.GameState
	undo        []snapshot
	history     []Record
	store       store.Store
	broadcaster Broadcaster
}

// snapshot pairs a deep-copied state with the history length at the time it
// was taken, so an undo rolls the action log back in step.
type snapshot struct {
	state      *engine.GameState
	historyLen int
}

// Option configures a Session.
type Option func(*Session)

// WithClock injects the clock used for history timestamps.
func WithClock(clock quartz.Clock) Option {
	return func(s *Session) { s.clock = clock }
}

// WithRNG injects the random source used for dealer selection.
func WithRNG(rng *rand.Rand) Option {
	return func(s *Session) { s.rng = rng }
}

// WithStore mirrors every snapshot to the given store.
func WithStore(st store.Store) Option {
	return func(s *Session) { s.store = st }
}

// WithBroadcaster publishes every snapshot to the given channel.
func WithBroadcaster(b Broadcaster) Option {
	return func(s *Session) { s.broadcaster = b }
}

// New creates a session for the given room code.
func New(code string, logger *log.Logger, opts ...Option) *Session {
	s := &Session{
		code:   code,
		logger: logger.WithPrefix("session").With("room", code),
		clock:  quartz.NewReal(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = randutil.New(time.Now().UnixNano())
	}
	return s
}

// Code returns the room code.
func (s *Session) Code() string { return s.code }

// Configure sets the table settings used by the next Start.
func (s *Session) Configure(settings engine.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = &settings
}

// Start begins a fresh game from the configured settings, discarding any
// prior state, undo history, and action log.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settings == nil {
		return ErrNoSettings
	}
	s.state = engine.NewGame(*s.settings, s.rng)
	s.undo = nil
	s.history = nil
	s.logger.Info("game started", "players", s.settings.PlayerCount, "stage", s.state.Stage)
	s.mirror(ctx)
	return nil
}

// Act applies one betting action. Illegal actions are absorbed by the
// engine's no-op contract; the session still records the attempt's snapshot
// for undo so the flow matches what the table saw.
func (s *Session) Act(ctx context.Context, action engine.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return ErrNoGame
	}

	s.pushUndo()
	s.record(action)
	s.state = engine.ProcessAction(s.state, action)
	s.logger.Debug("action applied",
		"player", action.PlayerID, "action", action.Type, "amount", action.Amount,
		"stage", s.state.Stage, "pot", s.state.TotalPot)
	s.mirror(ctx)
	return nil
}

// SelectWinners distributes the pots to the declared winners. Only legal at
// showdown; the caller is responsible for drawing winners from each pot's
// eligible set.
func (s *Session) SelectWinners(ctx context.Context, potWinners []engine.PotWinners) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return ErrNoGame
	}
	if s.state.Stage != engine.StageShowdown {
		return ErrNotShowdown
	}

	s.pushUndo()
	s.state = engine.DistributeChips(s.state, potWinners)
	s.logger.Info("pots distributed", "game", s.state.GameNumber)
	s.mirror(ctx)
	return nil
}

// NextGame rolls over to the next hand. Returns false without mutating when
// fewer than two players still have chips.
func (s *Session) NextGame(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return false, ErrNoGame
	}

	next := engine.StartNextGame(s.state, s.rng)
	if next == s.state {
		s.logger.Info("next game is a no-op, not enough funded players")
		return false, nil
	}

	s.state = next
	s.undo = nil
	s.logger.Info("next game started",
		"game", next.GameNumber,
		"smallBlind", next.Settings.SmallBlind,
		"bigBlind", next.Settings.BigBlind)
	s.mirror(ctx)
	return true, nil
}

// Undo restores the most recent snapshot. Returns false when there is
// nothing to undo.
func (s *Session) Undo(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.undo) == 0 {
		return false
	}
	top := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	s.state = top.state
	if top.historyLen <= len(s.history) {
		s.history = s.history[:top.historyLen]
	}
	s.logger.Debug("action undone", "depth", len(s.undo))
	s.mirror(ctx)
	return true
}

// Reset clears all state, settings, and history.
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = nil
	s.settings = nil
	s.undo = nil
	s.history = nil
	if s.store != nil {
		if err := s.store.Delete(ctx, s.code); err != nil && !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("failed to delete stored snapshot", "err", err)
		}
	}
	s.logger.Info("session reset")
}

// State returns a deep copy of the current state, or nil before Start.
func (s *Session) State() *engine.GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil
	}
	return s.state.Clone()
}

// AvailableActions returns the legal actions for the player to act.
func (s *Session) AvailableActions() []engine.ActionType {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil
	}
	return engine.AvailableActions(s.state)
}

// History returns a copy of the action log.
func (s *Session) History() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.history...)
}

// pushUndo snapshots the live state before a mutation. Callers hold mu.
func (s *Session) pushUndo() {
	s.undo = append(s.undo, snapshot{state: s.state.Clone(), historyLen: len(s.history)})
	if len(s.undo) > maxUndoDepth {
		s.undo = s.undo[1:]
	}
}

// record appends a history entry for the action. Callers hold mu.
func (s *Session) record(action engine.Action) {
	name := action.PlayerID
	if p := s.state.PlayerByID(action.PlayerID); p != nil {
		name = p.Name
	}
	s.history = append(s.history, Record{
		GameNumber: s.state.GameNumber,
		Stage:      s.state.Stage,
		PlayerID:   action.PlayerID,
		PlayerName: name,
		Action:     action.Type,
		Amount:     action.Amount,
		Timestamp:  s.clock.Now(),
	})
}

// mirror persists and broadcasts the current snapshot. Failures are logged
// and never interrupt play; the in-memory state remains authoritative.
// Callers hold mu.
func (s *Session) mirror(ctx context.Context) {
	if s.store == nil && s.broadcaster == nil {
		return
	}

	data, err := store.EncodeState(s.state)
	if err != nil {
		s.logger.Error("failed to encode snapshot", "err", err)
		return
	}
	if s.store != nil {
		if err := s.store.Save(ctx, s.code, data); err != nil {
			s.logger.Error("failed to persist snapshot", "err", err)
		}
	}
	if s.broadcaster != nil {
		s.broadcaster.Publish(ctx, s.code, data)
	}
}
