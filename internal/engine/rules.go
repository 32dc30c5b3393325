package engine

import (
	"errors"
	"fmt"
)

// Validation errors for raise sizing. These are the only user-correctable
// errors the engine reports; everything else is a silent no-op.
var (
	ErrInsufficientChips = errors.New("not enough chips for that raise")
	ErrRaiseBelowMin     = errors.New("raise is below the minimum")
)

// CallAmount returns the chips the player must add to match the table bet,
// capped at their stack. 0 for an unknown player.
func CallAmount(s *GameState, playerID string) int {
	p := s.PlayerByID(playerID)
	if p == nil {
		return 0
	}
	return min(s.CurrentBet-p.CurrentBet, p.Chips)
}

// CanCheck reports whether the player already matches the table bet.
func CanCheck(s *GameState, playerID string) bool {
	p := s.PlayerByID(playerID)
	if p == nil {
		return false
	}
	return p.CurrentBet == s.CurrentBet
}

// MinimumRaise returns the incremental raise floor for this round.
func MinimumRaise(s *GameState) int {
	return s.MinRaise
}

// MaximumRaise returns the most the player could add on top of calling.
// 0 for an unknown player.
func MaximumRaise(s *GameState, playerID string) int {
	p := s.PlayerByID(playerID)
	if p == nil {
		return 0
	}
	return p.Chips - (s.CurrentBet - p.CurrentBet)
}

// ValidateRaise checks a proposed raise increment for the player. Chip
// sufficiency is checked before the minimum-raise floor, so a raise that is
// both too large and too small reports insufficiency.
func ValidateRaise(s *GameState, p *Player, raiseAmount int) error {
	toCall := s.CurrentBet - p.CurrentBet
	if toCall+raiseAmount > p.Chips {
		return ErrInsufficientChips
	}
	if raiseAmount < s.MinRaise {
		return fmt.Errorf("%w: minimum is %d", ErrRaiseBelowMin, s.MinRaise)
	}
	return nil
}

// AvailableActions returns the legal actions for the player whose turn it
// is. Fold and all-in are always offered; check when the player matches the
// table bet, otherwise call; raise only when enough chips remain to make at
// least the minimum raise after calling.
func AvailableActions(s *GameState) []ActionType {
	p := s.CurrentPlayer()
	if p == nil {
		return nil
	}

	actions := []ActionType{ActionFold, ActionAllIn}
	if p.CurrentBet == s.CurrentBet {
		actions = append(actions, ActionCheck)
	} else {
		actions = append(actions, ActionCall)
	}

	toCall := s.CurrentBet - p.CurrentBet
	if p.Chips > toCall+s.MinRaise {
		actions = append(actions, ActionRaise)
	}
	return actions
}
