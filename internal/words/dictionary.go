package words

import (
	"sort"
	"unicode/utf8"
)

// Dictionary is the immutable word lookup shared by every game.
//
// There is a single validation set: the common list is merged into the
// full list at construction, and the common list is kept only as the pool
// for starting words. Safe for concurrent reads.
type Dictionary struct {
	all     Set
	common  []string          // sorted
	byFirst map[rune][]string // sorted, over all
}

// New builds a Dictionary. Neither argument is retained or modified.
func New(common, all Set) *Dictionary {
	d := &Dictionary{
		all:     make(Set, len(all)+len(common)),
		common:  make([]string, 0, len(common)),
		byFirst: make(map[rune][]string),
	}
	d.all.union(all)
	d.all.union(common)

	for w := range common {
		d.common = append(d.common, w)
	}
	sort.Strings(d.common)

	for w := range d.all {
		r, _ := utf8.DecodeRuneInString(w)
		d.byFirst[r] = append(d.byFirst[r], w)
	}
	for _, list := range d.byFirst {
		sort.Strings(list)
	}
	return d
}

// Contains reports whether w is a valid word (case-insensitive).
func (d *Dictionary) Contains(w string) bool {
	return d.all.Has(w)
}

// StartCandidates returns the common words with at least minLen characters,
// sorted so that a seeded random pick is reproducible.
func (d *Dictionary) StartCandidates(minLen int) []string {
	var out []string
	for _, w := range d.common {
		if utf8.RuneCountInString(w) >= minLen {
			out = append(out, w)
		}
	}
	return out
}

// StartingWith returns every word beginning with letter, sorted.
// The returned slice must not be modified.
func (d *Dictionary) StartingWith(letter rune) []string {
	return d.byFirst[letter]
}

// Stats returns counts of loaded words: (common, all).
func (d *Dictionary) Stats() (commonCount int, allCount int) {
	return len(d.common), len(d.all)
}
