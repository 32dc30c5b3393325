package session

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chiptally/internal/engine"
	"chiptally/internal/randutil"
	"chiptally/internal/store"
)

func testSettings() engine.Settings {
	return engine.Settings{
		PlayerCount:   3,
		BetUnit:       100,
		StartingChips: 10000,
		BlindsEnabled: true,
		SmallBlind:    100,
		BigBlind:      200,
	}
}

func newTestSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	base := []Option{
		WithRNG(randutil.New(1)),
		WithClock(quartz.NewMock(t)),
	}
	s := New("TEST42", log.New(io.Discard), append(base, opts...)...)
	s.Configure(testSettings())
	require.NoError(t, s.Start(context.Background()))
	return s
}

type fakeBroadcaster struct {
	mu        sync.Mutex
	snapshots [][]byte
}

func (f *fakeBroadcaster) Publish(_ context.Context, _ string, snapshot []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, snapshot)
}

func (f *fakeBroadcaster) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snapshots)
}

func TestStartRequiresSettings(t *testing.T) {
	s := New("TEST42", log.New(io.Discard))
	assert.ErrorIs(t, s.Start(context.Background()), ErrNoSettings)
}

func TestStartDealsFreshGame(t *testing.T) {
	s := newTestSession(t)

	state := s.State()
	require.NotNil(t, state)
	assert.Equal(t, engine.StagePreFlop, state.Stage)
	assert.Len(t, state.Players, 3)
	assert.Equal(t, 300, state.TotalPot)
}

func TestActBeforeStart(t *testing.T) {
	s := New("TEST42", log.New(io.Discard))
	err := s.Act(context.Background(), engine.Action{Type: engine.ActionFold, PlayerID: "player-0"})
	assert.ErrorIs(t, err, ErrNoGame)
}

func TestActAppliesAndRecords(t *testing.T) {
	clock := quartz.NewMock(t)
	s := New("TEST42", log.New(io.Discard), WithRNG(randutil.New(1)), WithClock(clock))
	s.Configure(testSettings())
	require.NoError(t, s.Start(context.Background()))

	state := s.State()
	actor := state.Players[state.CurrentPlayerIndex]
	err := s.Act(context.Background(), engine.Action{Type: engine.ActionCall, PlayerID: actor.ID})
	require.NoError(t, err)

	after := s.State()
	assert.Equal(t, 200, after.PlayerByID(actor.ID).CurrentBet)

	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, actor.ID, history[0].PlayerID)
	assert.Equal(t, engine.ActionCall, history[0].Action)
	assert.Equal(t, clock.Now(), history[0].Timestamp)
}

func TestStateReturnsIsolatedCopies(t *testing.T) {
	s := newTestSession(t)

	first := s.State()
	first.Players[0].Chips = 1

	second := s.State()
	assert.NotEqual(t, 1, second.Players[0].Chips)
}

func TestUndoRestoresStateAndHistory(t *testing.T) {
	s := newTestSession(t)

	before := s.State()
	actor := before.Players[before.CurrentPlayerIndex]
	require.NoError(t, s.Act(context.Background(), engine.Action{Type: engine.ActionCall, PlayerID: actor.ID}))
	require.Len(t, s.History(), 1)

	require.True(t, s.Undo(context.Background()))
	assert.Equal(t, before, s.State())
	assert.Empty(t, s.History())
}

func TestUndoEmptyStack(t *testing.T) {
	s := newTestSession(t)
	assert.False(t, s.Undo(context.Background()))
}

func TestUndoDepthIsBounded(t *testing.T) {
	s := newTestSession(t)

	// Alternate harmless actions well past the stack bound.
	for i := 0; i < maxUndoDepth+10; i++ {
		state := s.State()
		actor := state.Players[state.CurrentPlayerIndex]
		require.NoError(t, s.Act(context.Background(), engine.Action{
			Type:     engine.ActionRaise,
			PlayerID: actor.ID,
			Amount:   state.MinRaise,
		}))
	}

	undone := 0
	for s.Undo(context.Background()) {
		undone++
	}
	assert.Equal(t, maxUndoDepth, undone)
}

func TestSelectWinnersOnlyAtShowdown(t *testing.T) {
	s := newTestSession(t)

	err := s.SelectWinners(context.Background(), []engine.PotWinners{{PotIndex: 0, Winners: []string{"player-0"}}})
	assert.ErrorIs(t, err, ErrNotShowdown)
}

func TestSelectWinnersDistributes(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()

	// Call and check every turn until showdown.
	for {
		state := s.State()
		if state.Stage == engine.StageShowdown {
			break
		}
		actor := state.Players[state.CurrentPlayerIndex]
		action := engine.Action{Type: engine.ActionCall, PlayerID: actor.ID}
		if engine.CanCheck(state, actor.ID) {
			action.Type = engine.ActionCheck
		}
		require.NoError(t, s.Act(ctx, action))
	}

	state := s.State()
	require.NotEmpty(t, state.Pots)
	winner := state.Pots[0].EligiblePlayers[0]
	pot := state.TotalPot
	before := state.PlayerByID(winner).Chips

	require.NoError(t, s.SelectWinners(ctx, []engine.PotWinners{{PotIndex: 0, Winners: []string{winner}}}))

	after := s.State()
	assert.Equal(t, engine.StageGameOver, after.Stage)
	assert.Zero(t, after.TotalPot)
	assert.Equal(t, before+pot, after.PlayerByID(winner).Chips)
}

func TestNextGameClearsUndo(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()

	state := s.State()
	for range state.Players[:len(state.Players)-1] {
		cur := s.State()
		actor := cur.Players[cur.CurrentPlayerIndex]
		require.NoError(t, s.Act(ctx, engine.Action{Type: engine.ActionFold, PlayerID: actor.ID}))
	}
	require.Equal(t, engine.StageGameOver, s.State().Stage)

	advanced, err := s.NextGame(ctx)
	require.NoError(t, err)
	require.True(t, advanced)
	assert.Equal(t, 2, s.State().GameNumber)
	assert.False(t, s.Undo(ctx))
}

func TestNextGameNoOpWithOneFundedPlayer(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()

	// Drive everyone but one player to zero chips via all-ins, then fold
	// the short stacks out and award everything to one winner.
	for {
		state := s.State()
		if state.Stage == engine.StageShowdown || state.Stage == engine.StageGameOver {
			break
		}
		actor := state.Players[state.CurrentPlayerIndex]
		require.NoError(t, s.Act(ctx, engine.Action{Type: engine.ActionAllIn, PlayerID: actor.ID}))
	}

	state := s.State()
	require.NotEmpty(t, state.Pots)
	winner := state.Pots[0].EligiblePlayers[0]
	var winners []engine.PotWinners
	for i := range state.Pots {
		winners = append(winners, engine.PotWinners{PotIndex: i, Winners: []string{winner}})
	}
	require.NoError(t, s.SelectWinners(ctx, winners))

	advanced, err := s.NextGame(ctx)
	require.NoError(t, err)
	assert.False(t, advanced)
}

func TestMirrorPersistsAndBroadcasts(t *testing.T) {
	st := store.NewMemoryStore()
	bc := &fakeBroadcaster{}
	s := newTestSession(t, WithStore(st), WithBroadcaster(bc))
	ctx := context.Background()

	data, err := st.Load(ctx, "TEST42")
	require.NoError(t, err)
	stored, err := store.DecodeState(data)
	require.NoError(t, err)
	assert.Equal(t, s.State(), stored)
	assert.Equal(t, 1, bc.count())

	state := s.State()
	actor := state.Players[state.CurrentPlayerIndex]
	require.NoError(t, s.Act(ctx, engine.Action{Type: engine.ActionFold, PlayerID: actor.ID}))
	assert.Equal(t, 2, bc.count())
}

func TestResetDeletesStoredSnapshot(t *testing.T) {
	st := store.NewMemoryStore()
	s := newTestSession(t, WithStore(st))
	ctx := context.Background()

	s.Reset(ctx)

	assert.Nil(t, s.State())
	_, err := st.Load(ctx, "TEST42")
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.Act(ctx, engine.Action{Type: engine.ActionFold, PlayerID: "player-0"})
	assert.ErrorIs(t, err, ErrNoGame)
}

func TestHistoryTimestampsFollowClock(t *testing.T) {
	clock := quartz.NewMock(t)
	s := New("TEST42", log.New(io.Discard), WithRNG(randutil.New(1)), WithClock(clock))
	s.Configure(testSettings())
	require.NoError(t, s.Start(context.Background()))

	first := clock.Now()
	state := s.State()
	actor := state.Players[state.CurrentPlayerIndex]
	require.NoError(t, s.Act(context.Background(), engine.Action{Type: engine.ActionCall, PlayerID: actor.ID}))

	clock.Advance(5 * time.Second)
	state = s.State()
	actor = state.Players[state.CurrentPlayerIndex]
	require.NoError(t, s.Act(context.Background(), engine.Action{Type: engine.ActionFold, PlayerID: actor.ID}))

	history := s.History()
	require.Len(t, history, 2)
	assert.Equal(t, first, history[0].Timestamp)
	assert.Equal(t, first.Add(5*time.Second), history[1].Timestamp)
}
