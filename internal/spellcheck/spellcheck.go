// Package spellcheck computes dictionary-exemption decorations: document
// ranges covering words the author has added to their dictionary, so the
// editing surface can suppress spellcheck squiggles over them.
package spellcheck

import (
	"sort"
	"strings"
	"sync"

	"inkwell/api/internal/doc"
)

// Set is a case-insensitive word set. The zero value is not usable; use
// NewSet.
type Set struct {
	words map[string]struct{}
}

// NewSet builds a set from any number of word lists. Lists merge into one
// set; lookups are case-insensitive.
func NewSet(lists ...[]string) *Set {
	s := &Set{words: make(map[string]struct{})}
	for _, list := range lists {
		for _, w := range list {
			s.Add(w)
		}
	}
	return s
}

// Add inserts a word. Newly added words take effect on the next
// decoration build without any reload.
func (s *Set) Add(word string) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return
	}
	s.words[word] = struct{}{}
}

// Contains reports whether word is exempt, ignoring case.
func (s *Set) Contains(word string) bool {
	_, ok := s.words[strings.ToLower(word)]
	return ok
}

// Len returns the number of distinct words.
func (s *Set) Len() int {
	return len(s.words)
}

// Words returns the set contents sorted, for persistence.
func (s *Set) Words() []string {
	out := make([]string, 0, len(s.words))
	for w := range s.words {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// Decoration marks one exempt word occurrence in absolute document
// positions. The editing surface disables spellcheck for the span.
type Decoration struct {
	From int    `json:"from"`
	To   int    `json:"to"`
	Word string `json:"word"`
}

// BuildDecorations walks every text leaf of the document, tokenizes it
// into word runs, and returns a decoration for each token found in the
// exemption set. The function is pure: same tree and set, same output.
// Ranges are disjoint and ordered by position.
func BuildDecorations(root doc.Node, set *Set) []Decoration {
	if set == nil || set.Len() == 0 {
		return nil
	}
	var decos []Decoration
	for _, leaf := range doc.TextLeaves(root) {
		for _, tok := range tokenize(leaf.Text) {
			if set.Contains(tok.text) {
				decos = append(decos, Decoration{
					From: leaf.From + tok.start,
					To:   leaf.From + tok.end,
					Word: tok.text,
				})
			}
		}
	}
	return decos
}

type token struct {
	text       string
	start, end int
}

// tokenize splits text into maximal runs of word characters (letters,
// digits, underscore), yielding rune offsets into the leaf.
func tokenize(text string) []token {
	var toks []token
	start := -1
	pos := 0
	var buf []rune
	for _, r := range text {
		if isWordRune(r) {
			if start < 0 {
				start = pos
			}
			buf = append(buf, r)
		} else if start >= 0 {
			toks = append(toks, token{text: string(buf), start: start, end: pos})
			start = -1
			buf = buf[:0]
		}
		pos++
	}
	if start >= 0 {
		toks = append(toks, token{text: string(buf), start: start, end: pos})
	}
	return toks
}

func isWordRune(r rune) bool {
	return r == '_' ||
		(r >= '0' && r <= '9') ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		r > 127 && isLetterish(r)
}

func isLetterish(r rune) bool {
	// Accented letters and other non-ASCII word characters count as part
	// of a word so "café" is one token, not two.
	return !strings.ContainsRune(" \t\n\r.,;:!?\"'()[]{}<>/\\|@#$%^&*+=~`—–-", r)
}

// Engine caches the most recent decoration build per chapter and only
// recomputes when the document version changes or the exemption set was
// explicitly marked dirty. Pure position-only changes (selection moves,
// focus) never trigger a rebuild.
type Engine struct {
	mu    sync.Mutex
	set   *Set
	cache map[int]engineEntry
}

type engineEntry struct {
	version int64
	decos   []Decoration
}

// NewEngine creates an engine over the given exemption set.
func NewEngine(set *Set) *Engine {
	return &Engine{set: set, cache: make(map[int]engineEntry)}
}

// AddWord grows the exemption set and invalidates every cached build, so
// the next Apply call per chapter recomputes.
func (e *Engine) AddWord(word string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.set.Add(word)
	e.cache = make(map[int]engineEntry)
}

// ReplaceSet swaps the whole exemption set, invalidating all caches. Used
// when a project opens and its word list merges with the global one.
func (e *Engine) ReplaceSet(set *Set) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.set = set
	e.cache = make(map[int]engineEntry)
}

// Apply returns the decorations for a chapter document at the given
// version. The cached result is reused while the version is unchanged.
func (e *Engine) Apply(chapterID int, root doc.Node, version int64) []Decoration {
	e.mu.Lock()
	defer e.mu.Unlock()

	if entry, ok := e.cache[chapterID]; ok && entry.version == version {
		return entry.decos
	}
	decos := BuildDecorations(root, e.set)
	e.cache[chapterID] = engineEntry{version: version, decos: decos}
	return decos
}

// Forget drops the cached build for a chapter, for delete and close.
func (e *Engine) Forget(chapterID int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.cache, chapterID)
}
