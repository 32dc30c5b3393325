package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rulesState() *GameState {
	return &GameState{
		CurrentBet: 200,
		MinRaise:   200,
		Players: []Player{
			{ID: "player-0", Chips: 1000, CurrentBet: 200, Status: StatusActive},
			{ID: "player-1", Chips: 500, CurrentBet: 50, Status: StatusActive},
			{ID: "player-2", Chips: 100, CurrentBet: 0, Status: StatusActive},
		},
	}
}

func TestCallAmount(t *testing.T) {
	t.Parallel()
	s := rulesState()

	assert.Equal(t, 0, CallAmount(s, "player-0"), "matched player owes nothing")
	assert.Equal(t, 150, CallAmount(s, "player-1"))
	assert.Equal(t, 100, CallAmount(s, "player-2"), "call is capped at the stack")
	assert.Equal(t, 0, CallAmount(s, "nobody"))
}

func TestCanCheck(t *testing.T) {
	t.Parallel()
	s := rulesState()

	assert.True(t, CanCheck(s, "player-0"))
	assert.False(t, CanCheck(s, "player-1"))
	assert.False(t, CanCheck(s, "nobody"))
}

func TestMinimumAndMaximumRaise(t *testing.T) {
	t.Parallel()
	s := rulesState()

	assert.Equal(t, 200, MinimumRaise(s))
	assert.Equal(t, 1000, MaximumRaise(s, "player-0"))
	assert.Equal(t, 350, MaximumRaise(s, "player-1"))
	assert.Equal(t, 0, MaximumRaise(s, "nobody"))
}

func TestValidateRaise(t *testing.T) {
	t.Parallel()
	s := rulesState()

	require.NoError(t, ValidateRaise(s, s.PlayerByID("player-0"), 200))
	require.NoError(t, ValidateRaise(s, s.PlayerByID("player-1"), 350))

	err := ValidateRaise(s, s.PlayerByID("player-1"), 400)
	require.ErrorIs(t, err, ErrInsufficientChips)

	err = ValidateRaise(s, s.PlayerByID("player-0"), 100)
	require.ErrorIs(t, err, ErrRaiseBelowMin)
}

func TestValidateRaiseChecksChipsBeforeMinimum(t *testing.T) {
	t.Parallel()

	// A raise that is both below the minimum and beyond the stack must
	// report insufficiency, not the minimum.
	s := &GameState{
		CurrentBet: 500,
		MinRaise:   500,
		Players: []Player{
			{ID: "player-0", Chips: 300, CurrentBet: 0, Status: StatusActive},
		},
	}

	err := ValidateRaise(s, s.PlayerByID("player-0"), 100)
	require.ErrorIs(t, err, ErrInsufficientChips)
	require.False(t, errors.Is(err, ErrRaiseBelowMin))
}

func TestAvailableActions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		state *GameState
		want  []ActionType
	}{
		{
			name: "matched bet offers check and raise",
			state: &GameState{
				CurrentBet: 200, MinRaise: 200, CurrentPlayerIndex: 0,
				Players: []Player{{ID: "player-0", Chips: 1000, CurrentBet: 200, Status: StatusActive}},
			},
			want: []ActionType{ActionFold, ActionAllIn, ActionCheck, ActionRaise},
		},
		{
			name: "unmatched bet offers call",
			state: &GameState{
				CurrentBet: 200, MinRaise: 200, CurrentPlayerIndex: 0,
				Players: []Player{{ID: "player-0", Chips: 1000, CurrentBet: 0, Status: StatusActive}},
			},
			want: []ActionType{ActionFold, ActionAllIn, ActionCall, ActionRaise},
		},
		{
			name: "no raise when calling leaves less than the minimum",
			state: &GameState{
				CurrentBet: 200, MinRaise: 200, CurrentPlayerIndex: 0,
				Players: []Player{{ID: "player-0", Chips: 400, CurrentBet: 0, Status: StatusActive}},
			},
			want: []ActionType{ActionFold, ActionAllIn, ActionCall},
		},
		{
			name: "exactly call plus minimum is still not raisable",
			state: &GameState{
				CurrentBet: 100, MinRaise: 100, CurrentPlayerIndex: 0,
				Players: []Player{{ID: "player-0", Chips: 200, CurrentBet: 0, Status: StatusActive}},
			},
			want: []ActionType{ActionFold, ActionAllIn, ActionCall},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, AvailableActions(tc.state))
		})
	}
}
