package engine

import (
	"fmt"
	"sort"
	"strings"
)

// CalculatePots computes the pot tiers implied by the players' current-round
// bets. Each distinct bet level becomes one tier: its amount is the level
// delta times the number of players who contributed at least that much, and
// its eligible set is every contributor who has not folded. Folded chips
// count toward amounts but never toward eligibility. The first kept tier is
// the main pot; the rest are side pots in ascending contribution order.
func CalculatePots(s *GameState) []Pot {
	levels := make([]int, 0, len(s.Players))
	for i := range s.Players {
		if s.Players[i].CurrentBet > 0 {
			levels = append(levels, s.Players[i].CurrentBet)
		}
	}
	if len(levels) == 0 {
		return nil
	}
	sort.Ints(levels)

	var pots []Pot
	previous := 0
	for _, level := range levels {
		diff := level - previous
		if diff == 0 {
			// Two players all-in at the same amount collapse into one tier.
			continue
		}

		var eligible []string
		contributors := 0
		for i := range s.Players {
			p := &s.Players[i]
			if p.CurrentBet < level {
				continue
			}
			contributors++
			if p.Status == StatusActive || p.Status == StatusAllIn {
				eligible = append(eligible, p.ID)
			}
		}

		if len(eligible) == 0 {
			continue
		}

		potType := PotSide
		if len(pots) == 0 {
			potType = PotMain
		}
		pots = append(pots, Pot{
			Amount:          diff * contributors,
			EligiblePlayers: eligible,
			Type:            potType,
		})
		previous = level
	}

	return pots
}

// TotalPotAmount sums the amounts across all pots.
func TotalPotAmount(pots []Pot) int {
	total := 0
	for _, pot := range pots {
		total += pot.Amount
	}
	return total
}

// FormatPotDisplay renders a short human-readable pot summary, main pot
// first then side pots in order.
func FormatPotDisplay(pots []Pot) string {
	if len(pots) == 0 {
		return "0"
	}

	var b strings.Builder
	var sides []string
	for _, pot := range pots {
		if pot.Type == PotMain {
			fmt.Fprintf(&b, "main pot: %d", pot.Amount)
		} else {
			sides = append(sides, fmt.Sprintf("%d", pot.Amount))
		}
	}
	if len(sides) > 0 {
		if b.Len() > 0 {
			b.WriteString(" | ")
		}
		fmt.Fprintf(&b, "side pots: %s", strings.Join(sides, ", "))
	}
	return b.String()
}
