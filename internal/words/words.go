// internal/words/words.go
//
// Word list loading for the game engine.
//
// Responsibilities:
//   - Read plain-text word lists (one word per line) into lookup sets.
//   - Normalize entries to lowercase with surrounding whitespace trimmed.
//   - Degrade gracefully: a missing or unreadable source becomes an empty
//     set plus a SourceError for the caller to log, never a failed load.
//
// Word Lists:
//   - "common": approachable words, used only to pick the starting word.
//   - "all":    the full validation list (always includes common).
//
// Initialization behavior (Init):
//   1. If both Sources.Common and Sources.All are set, load each.
//   2. If only one of them is set, that file serves as both lists.
//   3. If neither is set, fall back to the embedded lists in package assets.

package words

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/robalobadob/wordchain/assets"
)

// Set is a lookup set of normalized words.
type Set map[string]struct{}

// Has reports whether w (after normalization) is in the set.
func (s Set) Has(w string) bool {
	_, ok := s[Normalize(w)]
	return ok
}

// Len returns the number of words in the set.
func (s Set) Len() int { return len(s) }

// Equal reports whether both sets contain exactly the same words.
func (s Set) Equal(o Set) bool {
	if len(s) != len(o) {
		return false
	}
	for w := range s {
		if _, ok := o[w]; !ok {
			return false
		}
	}
	return true
}

// union adds every word of o into s.
func (s Set) union(o Set) {
	for w := range o {
		s[w] = struct{}{}
	}
}

// Normalize lowercases and trims a raw word.
func Normalize(w string) string {
	return strings.ToLower(strings.TrimSpace(w))
}

// SourceError records a word source that could not be read.
type SourceError struct {
	Path string
	Err  error
}

func (e *SourceError) Error() string { return fmt.Sprintf("words: source %s: %v", e.Path, e.Err) }
func (e *SourceError) Unwrap() error { return e.Err }

// ParseLines reads one word per line from r.
// Blank lines and lines starting with '#' are skipped; duplicates collapse.
func ParseLines(r io.Reader) (Set, error) {
	out := make(Set)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		w := Normalize(sc.Text())
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		out[w] = struct{}{}
	}
	return out, sc.Err()
}

// LoadFile reads a single word list file.
func LoadFile(path string) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseLines(f)
}

// LoadSources loads and merges every path. A source that fails contributes
// nothing (not even the lines read before the failure) and is reported in
// the returned slice; the remaining sources still load.
func LoadSources(paths ...string) (Set, []SourceError) {
	out := make(Set)
	var failed []SourceError
	for _, p := range paths {
		s, err := LoadFile(p)
		if err != nil {
			failed = append(failed, SourceError{Path: p, Err: err})
			continue
		}
		out.union(s)
	}
	return out, failed
}

// Sources names the word list files to load. Empty fields are unset.
type Sources struct {
	Common string
	All    string
}

// Init builds a Dictionary from the configured sources (see file header).
// Failed sources are returned for logging; the error is reserved for the
// embedded fallback being unreadable, which means a broken build.
func Init(src Sources) (*Dictionary, []SourceError, error) {
	switch {
	case src.Common != "" && src.All != "":
		common, failedCommon := LoadSources(src.Common)
		all, failedAll := LoadSources(src.All)
		return New(common, all), append(failedCommon, failedAll...), nil

	case src.Common != "" || src.All != "":
		path := src.All
		if path == "" {
			path = src.Common
		}
		set, failed := LoadSources(path)
		return New(set, set), failed, nil

	default:
		common, err := loadEmbedded(assets.CommonFile)
		if err != nil {
			return nil, nil, err
		}
		all, err := loadEmbedded(assets.AllFile)
		if err != nil {
			return nil, nil, err
		}
		return New(common, all), nil, nil
	}
}

func loadEmbedded(name string) (Set, error) {
	f, err := assets.Open(name)
	if err != nil {
		return nil, fmt.Errorf("words: embedded %s: %w", name, err)
	}
	defer f.Close()
	return ParseLines(f)
}
