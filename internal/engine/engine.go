package engine

import (
	"fmt"
	rand "math/rand/v2"
)

var stageOrder = []Stage{StagePreFlop, StageFlop, StageTurn, StageRiver, StageShowdown}

// NewGame builds a fresh pre-flop state from the settings. The dealer button
// is chosen uniformly at random from the injected rng; blinds are posted
// immediately when enabled.
func NewGame(settings Settings, rng *rand.Rand) *GameState {
	players := make([]Player, settings.PlayerCount)
	for i := range players {
		name := fmt.Sprintf("Player %d", i+1)
		if i < len(settings.PlayerNames) && settings.PlayerNames[i] != "" {
			name = settings.PlayerNames[i]
		}
		players[i] = Player{
			ID:       fmt.Sprintf("player-%d", i),
			Name:     name,
			Chips:    settings.StartingChips,
			Status:   StatusActive,
			Position: i,
		}
	}

	dealer := rng.IntN(settings.PlayerCount)
	sb := (dealer + 1) % settings.PlayerCount
	bb := (dealer + 2) % settings.PlayerCount

	s := &GameState{
		GameNumber:         1,
		Stage:              StagePreFlop,
		Players:            players,
		TotalPot:           0,
		CurrentPlayerIndex: (bb + 1) % settings.PlayerCount,
		DealerButtonIndex:  dealer,
		SmallBlindIndex:    sb,
		BigBlindIndex:      bb,
		MinRaise:           settings.BigBlind,
		Settings:           settings,
	}

	if settings.BlindsEnabled {
		s.postBlinds()
	}
	return s
}

// postBlinds deducts the blinds, capped at each player's stack. A blind that
// consumes the whole stack puts that player all-in before any action.
func (s *GameState) postBlinds() {
	sb := &s.Players[s.SmallBlindIndex]
	sbAmount := min(sb.Chips, s.Settings.SmallBlind)
	sb.Chips -= sbAmount
	sb.CurrentBet = sbAmount
	if sb.Chips == 0 {
		sb.Status = StatusAllIn
	}

	bb := &s.Players[s.BigBlindIndex]
	bbAmount := min(bb.Chips, s.Settings.BigBlind)
	bb.Chips -= bbAmount
	bb.CurrentBet = bbAmount
	if bb.Chips == 0 {
		bb.Status = StatusAllIn
	}

	s.TotalPot = sbAmount + bbAmount
	s.CurrentBet = max(sbAmount, bbAmount)
	s.MinRaise = s.Settings.BigBlind
}

// ProcessAction applies one betting action and returns the resulting state.
// The input state is never mutated. Unknown players, players who are not
// active, and malformed raises are silently rejected: the returned state is
// value-equal to the input (the acting player is still marked as having
// acted on a malformed raise, matching the round bookkeeping of a submitted
// turn). Validation for user display belongs to ValidateRaise and CanCheck.
func ProcessAction(s *GameState, action Action) *GameState {
	next := s.Clone()
	p := next.PlayerByID(action.PlayerID)
	if p == nil || p.Status != StatusActive {
		return next
	}

	p.HasActed = true

	switch action.Type {
	case ActionFold:
		p.Status = StatusFolded

	case ActionCheck:
		// Accepted as given. Callers gate with CanCheck; the engine does
		// not re-verify at mutation time.

	case ActionCall:
		toCall := min(next.CurrentBet-p.CurrentBet, p.Chips)
		p.Chips -= toCall
		p.CurrentBet += toCall
		next.TotalPot += toCall
		if p.Chips == 0 {
			p.Status = StatusAllIn
		}

	case ActionRaise:
		if action.Amount <= 0 || action.Amount < next.MinRaise {
			return next
		}
		toCall := next.CurrentBet - p.CurrentBet
		total := toCall + action.Amount
		if total > p.Chips {
			return next
		}

		p.Chips -= total
		p.CurrentBet += total
		next.TotalPot += total
		next.CurrentBet += action.Amount
		next.MinRaise = action.Amount
		next.LastRaiseAmount = action.Amount
		if p.Chips == 0 {
			p.Status = StatusAllIn
		}
		next.reopenAction(p.ID)

	case ActionAllIn:
		amount := p.Chips
		p.Chips = 0
		p.CurrentBet += amount
		next.TotalPot += amount
		p.Status = StatusAllIn

		// An all-in above the table bet counts as a raise and reopens
		// action; a short all-in call does not.
		if p.CurrentBet > next.CurrentBet {
			raised := p.CurrentBet - next.CurrentBet
			next.CurrentBet = p.CurrentBet
			next.MinRaise = max(next.MinRaise, raised)
			next.reopenAction(p.ID)
		}

	default:
		return next
	}

	if next.roundComplete() {
		next.advanceStage()
	} else {
		next.CurrentPlayerIndex = next.nextActivePlayer(next.CurrentPlayerIndex)
	}
	return next
}

// reopenAction clears hasActed for every other still-active player so the
// raise gives them a fresh decision.
func (s *GameState) reopenAction(raiserID string) {
	for i := range s.Players {
		if s.Players[i].ID != raiserID && s.Players[i].Status == StatusActive {
			s.Players[i].HasActed = false
		}
	}
}

// roundComplete reports whether the betting round is over: at most one
// player left in the hand, nobody left who can act, or every active player
// has acted and matches the table bet.
func (s *GameState) roundComplete() bool {
	inHand := 0
	canAct := 0
	for i := range s.Players {
		switch s.Players[i].Status {
		case StatusActive:
			inHand++
			canAct++
		case StatusAllIn:
			inHand++
		}
	}
	if inHand <= 1 || canAct == 0 {
		return true
	}

	for i := range s.Players {
		p := &s.Players[i]
		if p.Status != StatusActive {
			continue
		}
		if !p.HasActed || p.CurrentBet != s.CurrentBet {
			return false
		}
	}
	return true
}

// nextActivePlayer returns the next seat after from with status active,
// wrapping around. Returns from unchanged when no seat qualifies.
func (s *GameState) nextActivePlayer(from int) int {
	n := len(s.Players)
	for i := 1; i <= n; i++ {
		idx := (from + i) % n
		if s.Players[idx].Status == StatusActive {
			return idx
		}
	}
	return from
}

// firstActiveAfterDealer returns the first active seat clockwise of the
// button, falling back to the button itself.
func (s *GameState) firstActiveAfterDealer() int {
	n := len(s.Players)
	for i := 1; i <= n; i++ {
		idx := (s.DealerButtonIndex + i) % n
		if s.Players[idx].Status == StatusActive {
			return idx
		}
	}
	return s.DealerButtonIndex
}

// advanceStage folds the round's bets into the accumulated pots and moves to
// the next stage. When a single non-folded player remains the whole pot is
// awarded without a showdown; when fewer than two players can still act the
// remaining streets are skipped straight through to showdown.
func (s *GameState) advanceStage() {
	for _, roundPot := range CalculatePots(s) {
		s.mergePot(roundPot)
	}

	for i := range s.Players {
		s.Players[i].CurrentBet = 0
		s.Players[i].HasActed = false
	}
	s.CurrentBet = 0

	remaining := 0
	canAct := 0
	var last *Player
	for i := range s.Players {
		switch s.Players[i].Status {
		case StatusActive:
			remaining++
			canAct++
			last = &s.Players[i]
		case StatusAllIn:
			remaining++
			last = &s.Players[i]
		}
	}

	if remaining == 1 {
		// Walk: everyone else folded, no showdown needed.
		last.Chips += s.TotalPot
		s.TotalPot = 0
		s.Pots = nil
		s.Stage = StageGameOver
		return
	}

	for i, stage := range stageOrder {
		if stage == s.Stage && i < len(stageOrder)-1 {
			s.Stage = stageOrder[i+1]
			break
		}
	}

	switch s.Stage {
	case StageFlop:
		s.CommunityCards = 3
	case StageTurn:
		s.CommunityCards = 4
	case StageRiver:
		s.CommunityCards = 5
	}

	if s.Stage != StageShowdown {
		if canAct < 2 {
			// Betting cannot proceed with nobody able to act.
			s.advanceStage()
			return
		}
		s.CurrentPlayerIndex = s.firstActiveAfterDealer()
		s.MinRaise = s.Settings.BigBlind
		s.LastRaiseAmount = 0
	}

	s.BettingRound++
}

// mergePot folds a round pot into the accumulated list. Tiers with an
// identical eligible set (order-independent) merge; anything else appends,
// which preserves main-before-side ordering.
func (s *GameState) mergePot(roundPot Pot) {
	for i := range s.Pots {
		if sameEligible(s.Pots[i].EligiblePlayers, roundPot.EligiblePlayers) {
			s.Pots[i].Amount += roundPot.Amount
			return
		}
	}
	if len(s.Pots) > 0 {
		roundPot.Type = PotSide
	}
	s.Pots = append(s.Pots, roundPot)
}

func sameEligible(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, id := range a {
		set[id] = true
	}
	for _, id := range b {
		if !set[id] {
			return false
		}
	}
	return true
}

// DistributeChips pays each pot to its declared winners: floor share each,
// remainder to the first listed winner. Eligibility is not re-validated;
// the showdown workflow supplying the winners is responsible for drawing
// them from the pot's eligible set.
func DistributeChips(s *GameState, potWinners []PotWinners) *GameState {
	next := s.Clone()

	for _, pw := range potWinners {
		if pw.PotIndex < 0 || pw.PotIndex >= len(next.Pots) || len(pw.Winners) == 0 {
			continue
		}
		pot := next.Pots[pw.PotIndex]
		share := pot.Amount / len(pw.Winners)
		remainder := pot.Amount % len(pw.Winners)

		for i, winnerID := range pw.Winners {
			p := next.PlayerByID(winnerID)
			if p == nil {
				continue
			}
			p.Chips += share
			if i == 0 {
				p.Chips += remainder
			}
		}
	}

	next.TotalPot = 0
	next.Pots = nil
	next.Stage = StageGameOver
	return next
}

// StartNextGame rolls over to the next hand: players with no chips are
// dropped, blinds optionally scale 1.5x (compounding on the current values),
// the button rotates one seat over the surviving roster, and blinds are
// posted. With fewer than two funded players this is a no-op and the same
// state pointer is returned so callers can detect it by identity.
func StartNextGame(s *GameState, rng *rand.Rand) *GameState {
	survivors := make([]Player, 0, len(s.Players))
	for i := range s.Players {
		if s.Players[i].Chips > 0 {
			survivors = append(survivors, s.Players[i])
		}
	}
	if len(survivors) < 2 {
		return s
	}

	settings := s.Settings
	if settings.AutoIncreaseBlind {
		settings.SmallBlind = settings.SmallBlind * 3 / 2
		settings.BigBlind = settings.BigBlind * 3 / 2
	}
	settings.PlayerCount = len(survivors)
	settings.PlayerNames = make([]string, len(survivors))
	for i := range survivors {
		settings.PlayerNames[i] = survivors[i].Name
	}

	next := NewGame(settings, rng)

	// Restore chip counts and undo NewGame's blind posting; blinds are
	// re-posted below once the button has been rotated.
	for i := range next.Players {
		next.Players[i].Chips = survivors[i].Chips
		next.Players[i].CurrentBet = 0
		next.Players[i].Status = StatusActive
		next.Players[i].HasActed = false
	}
	next.TotalPot = 0
	next.CurrentBet = 0

	n := len(survivors)
	next.DealerButtonIndex = (s.DealerButtonIndex + 1) % n
	next.SmallBlindIndex = (next.DealerButtonIndex + 1) % n
	next.BigBlindIndex = (next.DealerButtonIndex + 2) % n
	next.CurrentPlayerIndex = (next.BigBlindIndex + 1) % n
	next.GameNumber = s.GameNumber + 1

	if settings.BlindsEnabled {
		next.postBlinds()
	}
	return next
}
