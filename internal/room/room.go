// Package room generates and validates the short codes players use to join
// a table. Codes are join handles, not secrets; the alphabet drops the
// easily confused characters (0/O, 1/I) so codes survive being read aloud.
package room

import (
	"fmt"
	"strings"
	"time"

	"chiptally/internal/randutil"
)

const (
	alphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength = 6
)

// RandSource is the randomness a Generator needs, satisfied by
// *math/rand/v2.Rand. Injected so tests get deterministic codes.
type RandSource interface {
	IntN(n int) int
}

// Generator produces room codes from a RandSource.
type Generator struct {
	rand RandSource
}

// NewGenerator creates a generator. A nil source falls back to a
// time-seeded one.
func NewGenerator(rand RandSource) *Generator {
	if rand == nil {
		rand = randutil.New(time.Now().UnixNano())
	}
	return &Generator{rand: rand}
}

// Generate returns a new 6-character room code.
func (g *Generator) Generate() string {
	var b strings.Builder
	b.Grow(codeLength)
	for i := 0; i < codeLength; i++ {
		b.WriteByte(alphabet[g.rand.IntN(len(alphabet))])
	}
	return b.String()
}

// Validate checks that a code has the right length and alphabet. The input
// is upper-cased first, matching how codes are typed by players.
func Validate(code string) error {
	code = strings.ToUpper(code)
	if len(code) != codeLength {
		return fmt.Errorf("room code must be %d characters, got %d", codeLength, len(code))
	}
	for i, c := range code {
		if !strings.ContainsRune(alphabet, c) {
			return fmt.Errorf("invalid character %q at position %d", c, i)
		}
	}
	return nil
}

// Normalize upper-cases a code for lookup.
func Normalize(code string) string {
	return strings.ToUpper(code)
}
