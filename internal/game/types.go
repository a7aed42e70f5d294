// internal/game/types.go
//
// Core type definitions for the word chain engine.
// Defines:
//   - Reason:  why a player lost (rule violation, timeout, no legal move).
//   - Player / Roster: the fixed, ordered participants of one game.
//   - Result:  the terminal outcome of a game.
//   - Verdict: the outcome of a single submitted word.
//   - Snapshot: a read-only view for presentation layers.

package game

import "fmt"

// Reason identifies why a player lost.
type Reason string

const (
	ReasonTooShort        Reason = "too_short"
	ReasonWrongLetter     Reason = "wrong_letter"
	ReasonAlreadyUsed     Reason = "already_used"
	ReasonNotInDictionary Reason = "not_in_dictionary"
	ReasonTimeout         Reason = "timeout"
	ReasonNoLegalMove     Reason = "no_legal_move"
)

// Describe returns a short human-readable explanation.
func (r Reason) Describe() string {
	switch r {
	case ReasonTooShort:
		return "word too short"
	case ReasonWrongLetter:
		return "word does not start with the required letter"
	case ReasonAlreadyUsed:
		return "word already used"
	case ReasonNotInDictionary:
		return "word not in dictionary"
	case ReasonTimeout:
		return "time ran out"
	case ReasonNoLegalMove:
		return "no legal move left"
	default:
		return string(r)
	}
}

// ComputerName is the display name of the automated player.
const ComputerName = "Computer"

// Player is one participant in a game.
type Player struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Computer bool   `json:"computer"`
}

// Roster is the ordered list of players. It never changes once a game starts.
type Roster []Player

// NewRoster labels humans "Player 1".."Player N" (overridden by any
// non-empty names[i]) and appends the computer player last when requested.
func NewRoster(humans int, names []string, computer bool) Roster {
	r := make(Roster, 0, humans+1)
	for i := 0; i < humans; i++ {
		name := fmt.Sprintf("Player %d", i+1)
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		r = append(r, Player{ID: fmt.Sprintf("p%d", i+1), Name: name})
	}
	if computer {
		r = append(r, Player{ID: "cpu", Name: ComputerName, Computer: true})
	}
	return r
}

// Result is the terminal outcome of a game.
type Result struct {
	Loser      Player `json:"loser"`
	LoserIndex int    `json:"loserIndex"`
	Reason     Reason `json:"reason"`
	Word       string `json:"word,omitempty"` // offending submission, if any
	Message    string `json:"message"`
}

// Verdict is the outcome of one submission.
// When Accepted is false, Result is set and the game is over.
type Verdict struct {
	Accepted   bool     `json:"accepted"`
	Word       string   `json:"word"`
	Player     Player   `json:"player"`
	Violations []Reason `json:"violations,omitempty"`
	Result     *Result  `json:"result,omitempty"`
}

// Snapshot is a copy of the public game state.
type Snapshot struct {
	ID             string   `json:"id"`
	Chain          []string `json:"chain"`
	LastWord       string   `json:"lastWord"`
	RequiredLetter string   `json:"requiredLetter"`
	Players        Roster   `json:"players"`
	CurrentPlayer  Player   `json:"currentPlayer"`
	CurrentIndex   int      `json:"currentIndex"`
	MinLength      int      `json:"minLength"`
	Turns          int      `json:"turns"`
	Finished       bool     `json:"finished"`
	Result         *Result  `json:"result,omitempty"`
}
