// Package bot implements the automated word chain player.
//
// A Policy only picks a word; the move is always submitted through
// game.ProcessTurn, so the computer is held to exactly the same rules
// (including the rising length threshold) as a human.
package bot

import (
	"errors"
	"math/rand/v2"

	"github.com/robalobadob/wordchain/internal/game"
)

// ErrNoLegalMove means no unused dictionary word starts with the required letter.
var ErrNoLegalMove = errors.New("bot: no legal move")

// Lexicon lists dictionary words by first letter.
type Lexicon interface {
	StartingWith(letter rune) []string
}

// Policy chooses the next word for the current player of g.
type Policy interface {
	Choose(g *game.Game) (string, error)
}

// Random picks uniformly among unused words starting with the required letter.
type Random struct {
	lex Lexicon
	rng *rand.Rand
}

// NewRandom returns a Random policy. A nil rng uses the package-level source.
func NewRandom(lex Lexicon, rng *rand.Rand) *Random {
	return &Random{lex: lex, rng: rng}
}

func (r *Random) Choose(g *game.Game) (string, error) {
	var candidates []string
	for _, w := range r.lex.StartingWith(g.RequiredLetter()) {
		if !g.IsUsed(w) {
			candidates = append(candidates, w)
		}
	}
	if len(candidates) == 0 {
		return "", ErrNoLegalMove
	}
	if r.rng == nil {
		return candidates[rand.IntN(len(candidates))], nil
	}
	return candidates[r.rng.IntN(len(candidates))], nil
}

// Play makes one move for the computer player whose turn it is.
// Running out of words is a loss for that player, reported in the
// verdict's Result rather than as an error.
func Play(g *game.Game, p Policy) (game.Verdict, error) {
	if g.Finished() {
		return game.Verdict{}, game.ErrGameOver
	}
	player := g.CurrentPlayer()
	if !player.Computer {
		return game.Verdict{}, game.ErrNotComputerTurn
	}

	word, err := p.Choose(g)
	if errors.Is(err, ErrNoLegalMove) {
		res, err := g.NoLegalMove()
		if err != nil {
			return game.Verdict{}, err
		}
		return game.Verdict{Player: player, Violations: []game.Reason{game.ReasonNoLegalMove}, Result: &res}, nil
	}
	if err != nil {
		return game.Verdict{}, err
	}
	return g.ProcessTurn(word)
}
