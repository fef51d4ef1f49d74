package main

// ===========================================================================
// CHARACTER TOKENIZER
// ===========================================================================
//
// The simplest tokenizer that can work: every distinct character in the
// corpus gets an integer id, plus one reserved id that marks both the start
// and the end of a document.
//
// Why character-level? With a corpus of short documents and a tiny
// embedding space, subword schemes buy nothing — and a vocabulary of a few
// dozen characters keeps the output projection small enough to train in
// seconds.
//
// The character set is SORTED before ids are assigned. This matters more
// than it looks: parameter initialization draws Gaussians in vocabulary
// order from a seeded generator, so the id assignment must be a canonical
// function of the corpus for runs to be reproducible. Map iteration order
// would silently break that.
//
// The table is immutable once built. Encoding a character that was not in
// the training corpus is a configuration error and fails loudly.
//
// ===========================================================================

import (
	"fmt"
	"sort"
)

// markerDisplay is the printable stand-in for the start/end marker when
// collaborators render raw token ids.
const markerDisplay = "§"

// Tokenizer is an immutable bijection between corpus characters and small
// integer ids, with one reserved start/end marker id.
type Tokenizer struct {
	chars []rune       // sorted; index == id
	ids   map[rune]int // inverse of chars
}

// NewTokenizer scans the corpus and builds the vocabulary. A corpus with no
// documents, or whose documents contain no characters, cannot define a model
// and is rejected.
func NewTokenizer(docs []string) (*Tokenizer, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("tokenizer: empty corpus")
	}

	seen := make(map[rune]bool)
	for _, doc := range docs {
		for _, r := range doc {
			seen[r] = true
		}
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("tokenizer: corpus contains no characters")
	}

	chars := make([]rune, 0, len(seen))
	for r := range seen {
		chars = append(chars, r)
	}
	sort.Slice(chars, func(i, j int) bool { return chars[i] < chars[j] })

	ids := make(map[rune]int, len(chars))
	for i, r := range chars {
		ids[r] = i
	}
	return &Tokenizer{chars: chars, ids: ids}, nil
}

// VocabSize returns the number of ids including the reserved marker.
func (t *Tokenizer) VocabSize() int { return len(t.chars) + 1 }

// Marker returns the reserved start/end marker id (always the highest id).
func (t *Tokenizer) Marker() int { return len(t.chars) }

// ID returns the id for a character, if it is in the vocabulary.
func (t *Tokenizer) ID(r rune) (int, bool) {
	id, ok := t.ids[r]
	return id, ok
}

// Char returns a printable representation of an id for collaborators that
// render raw tokens. The marker renders as markerDisplay.
func (t *Tokenizer) Char(id int) (string, bool) {
	switch {
	case id >= 0 && id < len(t.chars):
		return string(t.chars[id]), true
	case id == t.Marker():
		return markerDisplay, true
	default:
		return "", false
	}
}

// Encode maps a document to ids, wrapped in the start/end marker on both
// sides. A character outside the trained vocabulary is a fatal input error.
func (t *Tokenizer) Encode(s string) ([]int, error) {
	ids := make([]int, 0, len(s)+2)
	ids = append(ids, t.Marker())
	for _, r := range s {
		id, ok := t.ids[r]
		if !ok {
			return nil, fmt.Errorf("tokenizer: character %q not in vocabulary", r)
		}
		ids = append(ids, id)
	}
	ids = append(ids, t.Marker())
	return ids, nil
}

// Decode maps ids back to text, dropping marker ids. Unknown ids are
// skipped; Decode is the forgiving direction since its inputs come from
// the model, not the user.
func (t *Tokenizer) Decode(ids []int) string {
	out := make([]rune, 0, len(ids))
	for _, id := range ids {
		if id >= 0 && id < len(t.chars) {
			out = append(out, t.chars[id])
		}
	}
	return string(out)
}
