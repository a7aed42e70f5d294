// internal/game/engine.go
//
// Rules engine for a single word chain game.
// Responsibilities:
//   - Create new games from a roster, a dictionary, and a random source.
//   - Validate and apply submitted words (length, linking letter, reuse,
//     dictionary membership).
//   - Advance turns cyclically and raise the minimum length every few turns.
//   - Record the terminal result (invalid word, timeout, no legal move).
//
// Notes:
//   - The engine has no clock and no locks. Callers serialize ProcessTurn,
//     Timeout and NoLegalMove for one game and own any turn timer.
//   - A rejected word ends the game; there is no retry within a turn.

package game

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	DefaultBaseMinLength = 3
	DefaultEscalateEvery = 5
	StartWordMinLength   = 4
)

var (
	ErrGameOver         = errors.New("game: already finished")
	ErrTooFewPlayers    = errors.New("game: at least two players required")
	ErrNoStartingWord   = errors.New("game: no eligible starting word")
	ErrNotComputerTurn  = errors.New("game: current player is not a computer")
	ErrInvalidStartWord = errors.New("game: invalid starting word")
)

// Dictionary is what the engine needs from a word list.
type Dictionary interface {
	Contains(word string) bool
	StartCandidates(minLen int) []string
}

type settings struct {
	baseMinLength  int
	escalateEvery  int
	startMinLength int
	startWord      string
}

// Option customizes a new game.
type Option func(*settings)

// WithStartWord forces the starting word instead of drawing one.
func WithStartWord(w string) Option { return func(s *settings) { s.startWord = w } }

// WithBaseMinLength sets the floor for word length (default 3).
func WithBaseMinLength(n int) Option { return func(s *settings) { s.baseMinLength = n } }

// WithEscalateEvery sets how many accepted turns raise the threshold by one (default 5).
func WithEscalateEvery(n int) Option { return func(s *settings) { s.escalateEvery = n } }

// WithStartMinLength sets the minimum length of a drawn starting word (default 4).
func WithStartMinLength(n int) Option { return func(s *settings) { s.startMinLength = n } }

// Game holds the state of one word chain game.
type Game struct {
	id     string
	roster Roster
	dict   Dictionary
	cfg    settings

	chain []string
	used  map[string]struct{} // exactly the entries of chain

	current int // index into roster
	turns   int // accepted turns
	minLen  int // current threshold

	result *Result
}

// New starts a game: it draws the starting word uniformly from the
// dictionary's common words of length >= 4 using rng (or the package-level
// source if rng is nil), and seeds the chain with it.
func New(roster Roster, dict Dictionary, rng *rand.Rand, opts ...Option) (*Game, error) {
	if len(roster) < 2 {
		return nil, ErrTooFewPlayers
	}
	cfg := settings{
		baseMinLength:  DefaultBaseMinLength,
		escalateEvery:  DefaultEscalateEvery,
		startMinLength: StartWordMinLength,
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.escalateEvery <= 0 {
		cfg.escalateEvery = DefaultEscalateEvery
	}

	start := normalize(cfg.startWord)
	if cfg.startWord != "" && start == "" {
		return nil, ErrInvalidStartWord
	}
	if start == "" {
		candidates := dict.StartCandidates(cfg.startMinLength)
		if len(candidates) == 0 {
			return nil, ErrNoStartingWord
		}
		start = candidates[intN(rng, len(candidates))]
	}

	return &Game{
		id:     uuid.NewString(),
		roster: append(Roster(nil), roster...),
		dict:   dict,
		cfg:    cfg,
		chain:  []string{start},
		used:   map[string]struct{}{start: {}},
		minLen: cfg.baseMinLength,
	}, nil
}

// ProcessTurn validates word for the current player.
//
// Validation rules (all evaluated, none mutate state):
//   - length >= MinLength()
//   - first letter == last letter of the previous word
//   - not used earlier in this game
//   - present in the dictionary
//
// On acceptance the word is appended, the turn passes to the next player
// and every DefaultEscalateEvery-th accepted turn raises the threshold.
// On rejection the current player loses and the game is over.
// Returns ErrGameOver if the game has already finished.
func (g *Game) ProcessTurn(raw string) (Verdict, error) {
	if g.result != nil {
		return Verdict{}, ErrGameOver
	}
	word := normalize(raw)
	player := g.roster[g.current]

	if violations := g.check(word); len(violations) > 0 {
		res := g.finish(violations[0], word)
		return Verdict{Word: word, Player: player, Violations: violations, Result: &res}, nil
	}

	g.chain = append(g.chain, word)
	g.used[word] = struct{}{}
	g.current = (g.current + 1) % len(g.roster)
	g.turns++
	if g.turns%g.cfg.escalateEvery == 0 {
		g.minLen++
	}
	return Verdict{Accepted: true, Word: word, Player: player}, nil
}

// check returns every rule the word breaks, in a fixed order.
func (g *Game) check(word string) []Reason {
	var out []Reason
	if utf8.RuneCountInString(word) < g.MinLength() {
		out = append(out, ReasonTooShort)
	}
	first, _ := utf8.DecodeRuneInString(word)
	if first != g.RequiredLetter() {
		out = append(out, ReasonWrongLetter)
	}
	if g.IsUsed(word) {
		out = append(out, ReasonAlreadyUsed)
	}
	if !g.dict.Contains(word) {
		out = append(out, ReasonNotInDictionary)
	}
	return out
}

// Timeout ends the game with the current player losing because their
// turn timer expired. Returns ErrGameOver if already finished.
func (g *Game) Timeout() (Result, error) {
	if g.result != nil {
		return Result{}, ErrGameOver
	}
	return g.finish(ReasonTimeout, ""), nil
}

// NoLegalMove ends the game with the current (computer) player conceding.
func (g *Game) NoLegalMove() (Result, error) {
	if g.result != nil {
		return Result{}, ErrGameOver
	}
	if !g.roster[g.current].Computer {
		return Result{}, ErrNotComputerTurn
	}
	return g.finish(ReasonNoLegalMove, ""), nil
}

func (g *Game) finish(reason Reason, word string) Result {
	p := g.roster[g.current]
	res := Result{
		Loser:      p,
		LoserIndex: g.current,
		Reason:     reason,
		Word:       word,
		Message:    fmt.Sprintf("%s. %s loses!", capitalize(reason.Describe()), p.Name),
	}
	g.result = &res
	return res
}

// ID returns the game identifier.
func (g *Game) ID() string { return g.id }

// Chain returns a copy of the accepted words, starting word first.
func (g *Game) Chain() []string { return append([]string(nil), g.chain...) }

// LastWord returns the tail of the chain.
func (g *Game) LastWord() string { return g.chain[len(g.chain)-1] }

// RequiredLetter is the letter the next word must start with.
func (g *Game) RequiredLetter() rune {
	r, _ := utf8.DecodeLastRuneInString(g.LastWord())
	return r
}

// Roster returns a copy of the players.
func (g *Game) Roster() Roster { return append(Roster(nil), g.roster...) }

// CurrentIndex is the roster index of the player to move.
func (g *Game) CurrentIndex() int { return g.current }

// CurrentPlayer is the player to move (or the loser, once finished).
func (g *Game) CurrentPlayer() Player { return g.roster[g.current] }

// MinLength is the minimum accepted word length right now.
func (g *Game) MinLength() int { return max(g.cfg.baseMinLength, g.minLen) }

// Turns is the number of accepted turns so far.
func (g *Game) Turns() int { return g.turns }

// IsUsed reports whether w is already in the chain.
func (g *Game) IsUsed(w string) bool {
	_, ok := g.used[normalize(w)]
	return ok
}

// Finished reports whether the game has a terminal result.
func (g *Game) Finished() bool { return g.result != nil }

// Result returns the terminal result, or nil while the game is running.
func (g *Game) Result() *Result {
	if g.result == nil {
		return nil
	}
	r := *g.result
	return &r
}

// Snapshot copies the public state.
func (g *Game) Snapshot() Snapshot {
	return Snapshot{
		ID:             g.id,
		Chain:          g.Chain(),
		LastWord:       g.LastWord(),
		RequiredLetter: string(g.RequiredLetter()),
		Players:        g.Roster(),
		CurrentPlayer:  g.CurrentPlayer(),
		CurrentIndex:   g.current,
		MinLength:      g.MinLength(),
		Turns:          g.turns,
		Finished:       g.Finished(),
		Result:         g.Result(),
	}
}

func normalize(w string) string { return strings.ToLower(strings.TrimSpace(w)) }

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func intN(rng *rand.Rand, n int) int {
	if rng == nil {
		return rand.IntN(n)
	}
	return rng.IntN(n)
}
