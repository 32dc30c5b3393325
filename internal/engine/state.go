// Package engine implements the betting and pot-settlement state machine for
// a hold'em chip tracker. Cards are never modelled; the engine only accounts
// for chips, turn order, and stage transitions. Every operation is a pure
// function from one GameState value to a new one.
package engine

// Stage represents the phase of the current hand.
type Stage string

const (
	StagePreFlop  Stage = "preFlop"
	StageFlop     Stage = "flop"
	StageTurn     Stage = "turn"
	StageRiver    Stage = "river"
	StageShowdown Stage = "showdown"
	StageGameOver Stage = "gameOver"
)

// PlayerStatus represents a player's standing in the current hand.
type PlayerStatus string

const (
	StatusActive PlayerStatus = "active"
	StatusFolded PlayerStatus = "folded"
	StatusAllIn  PlayerStatus = "allIn"
	StatusOut    PlayerStatus = "out"
)

// ActionType identifies a betting action.
type ActionType string

const (
	ActionFold  ActionType = "fold"
	ActionCheck ActionType = "check"
	ActionCall  ActionType = "call"
	ActionRaise ActionType = "raise"
	ActionAllIn ActionType = "allIn"
)

// PotType distinguishes the main pot from side pots.
type PotType string

const (
	PotMain PotType = "main"
	PotSide PotType = "side"
)

// Player is one seat at the table.
type Player struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Chips      int          `json:"chips"`
	CurrentBet int          `json:"currentBet"` // wagered in this betting round only
	Status     PlayerStatus `json:"status"`
	Position   int          `json:"position"` // seat index, clockwise from 0
	HasActed   bool         `json:"hasActed"`
}

// Pot is a settlement bucket. Side pots appear in ascending contribution
// order after the main pot.
type Pot struct {
	Amount          int      `json:"amount"`
	EligiblePlayers []string `json:"eligiblePlayers"`
	Type            PotType  `json:"type"`
}

// Settings holds the table configuration. Immutable within a hand; only
// blind increases between hands mutate it.
type Settings struct {
	PlayerCount       int      `json:"playerCount"`
	PlayerNames       []string `json:"playerNames"`
	BetUnit           int      `json:"betUnit"`
	StartingChips     int      `json:"startingChips"`
	BlindsEnabled     bool     `json:"blindsEnabled"`
	SmallBlind        int      `json:"smallBlind"`
	BigBlind          int      `json:"bigBlind"`
	AutoIncreaseBlind bool     `json:"autoIncreaseBlind"`
}

// Action is a single player action submitted to ProcessAction. Amount is
// meaningful only for raises, where it is the increment above the call.
type Action struct {
	Type     ActionType `json:"type"`
	PlayerID string     `json:"playerId"`
	Amount   int        `json:"amount,omitempty"`
}

// PotWinners declares the winners for one pot at showdown. The first listed
// winner receives any odd chip left by the split.
type PotWinners struct {
	PotIndex int      `json:"potIndex"`
	Winners  []string `json:"winners"`
}

// GameState is the aggregate root for one hand. It is fully serializable and
// holds no references outside itself.
type GameState struct {
	GameNumber         int      `json:"gameNumber"`
	Stage              Stage    `json:"stage"`
	Players            []Player `json:"players"`
	Pots               []Pot    `json:"pots"`
	TotalPot           int      `json:"totalPot"`
	CurrentPlayerIndex int      `json:"currentPlayerIndex"`
	DealerButtonIndex  int      `json:"dealerButtonIndex"`
	SmallBlindIndex    int      `json:"smallBlindIndex"`
	BigBlindIndex      int      `json:"bigBlindIndex"`
	CommunityCards     int      `json:"communityCards"` // display-only count: 0, 3, 4 or 5
	CurrentBet         int      `json:"currentBet"`
	MinRaise           int      `json:"minRaise"` // incremental raise floor, not cumulative
	LastRaiseAmount    int      `json:"lastRaiseAmount"`
	BettingRound       int      `json:"bettingRound"`
	Settings           Settings `json:"settings"`
}

// Clone returns a deep copy. Mutating the copy never affects the original,
// which is what makes undo snapshots and the pure-transition contract safe.
func (s *GameState) Clone() *GameState {
	next := *s

	if s.Players != nil {
		next.Players = make([]Player, len(s.Players))
		copy(next.Players, s.Players)
	}

	// nil stays nil so that a no-op transition deep-equals its input.
	if s.Pots != nil {
		next.Pots = make([]Pot, len(s.Pots))
		for i, pot := range s.Pots {
			next.Pots[i] = pot
			next.Pots[i].EligiblePlayers = append([]string(nil), pot.EligiblePlayers...)
		}
	}

	next.Settings.PlayerNames = append([]string(nil), s.Settings.PlayerNames...)

	return &next
}

// PlayerByID returns the player with the given id, or nil.
func (s *GameState) PlayerByID(id string) *Player {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i]
		}
	}
	return nil
}

// CurrentPlayer returns the player whose turn it is, or nil when the index
// is out of range (terminal states).
func (s *GameState) CurrentPlayer() *Player {
	if s.CurrentPlayerIndex < 0 || s.CurrentPlayerIndex >= len(s.Players) {
		return nil
	}
	return &s.Players[s.CurrentPlayerIndex]
}
