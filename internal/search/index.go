// Package search provides a small, deterministic, concurrency-safe in-memory
// vocabulary index of medication names and their codes. It backs name
// suggestions when the remote lookup service is unavailable and learns every
// candidate the remote service returns.
//
//   - No logging in the library (callers decide how/what to log)
//   - Functional options (Option pattern)
//   - Accent- and case-insensitive matching ("Paracetamol" ~ "paracétamol")
//   - Prefix-aware scoring, so partial input typed in a form matches
//   - Deterministic scoring and sorting (stable order for ties)
//
// Scoring, highest first: exact folded name, folded name prefix, every query
// token prefixing some name token, then plain token overlap (Jaccard).
package search

import (
	"io"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"
)

// Entry is a vocabulary item: a display name and its code (an RxCUI).
type Entry struct {
	Name string
	Code string
}

// Result is a ranked entry with its score.
type Result struct {
	Entry
	Score float64
}

// Index is the interface implemented by vocabulary indices.
type Index interface {
	// TopK returns up to k entries matching query, best first.
	TopK(query string, k int) []Result
	// Add inserts entries, ignoring blanks and duplicates.
	Add(entries ...Entry)
	// Len reports the number of indexed entries.
	Len() int
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	minQueryRunes int
	stopwords     map[string]struct{}
	maxEntries    int
}

func defaultConfig() config {
	return config{
		minQueryRunes: 3,
		stopwords:     nil,
		maxEntries:    0,
	}
}

// WithMinQueryRunes sets the shortest folded query that is answered.
func WithMinQueryRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minQueryRunes = n
		}
	}
}

// WithStopwords drops the given words from names and queries ("de", "mg").
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = Fold(w)
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

// WithMaxEntries caps the vocabulary size; further Adds are ignored.
func WithMaxEntries(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	entry  Entry
	folded string
	tokens map[string]struct{}
	tLen   int
}

type index struct {
	cfg config

	mu   sync.RWMutex
	docs []doc
	seen map[string]struct{}
}

// NewIndex builds an Index from entries.
func NewIndex(entries []Entry, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	i := &index{cfg: cfg, seen: make(map[string]struct{}, len(entries))}
	i.Add(entries...)
	return i
}

// NewIndexFromReader builds an Index from a vocabulary listing read from r
// (see ParseVocabulary). The reader is fully consumed.
func NewIndexFromReader(r io.Reader, opts ...Option) (Index, error) {
	entries, err := ParseVocabulary(r)
	if err != nil {
		return NewIndex(nil, opts...), err
	}
	return NewIndex(entries, opts...), nil
}

// Add implements Index.
func (i *index) Add(entries ...Entry) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, e := range entries {
		e.Name = strings.TrimSpace(normalizeWhitespace(e.Name))
		e.Code = strings.TrimSpace(e.Code)
		if e.Name == "" {
			continue
		}
		if i.cfg.maxEntries > 0 && len(i.docs) >= i.cfg.maxEntries {
			return
		}
		folded := Fold(e.Name)
		key := e.Code
		if key == "" {
			key = "name:" + folded
		}
		if _, dup := i.seen[key]; dup {
			continue
		}
		toks := tokenize(folded, i.cfg.stopwords)
		if len(toks) == 0 {
			continue
		}
		i.seen[key] = struct{}{}
		i.docs = append(i.docs, doc{entry: e, folded: folded, tokens: toks, tLen: len(toks)})
	}
}

// Len implements Index.
func (i *index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.docs)
}

// TopK implements Index.
func (i *index) TopK(q string, k int) []Result {
	fq := Fold(q)
	if fq == "" || utf8.RuneCountInString(fq) < i.cfg.minQueryRunes {
		return nil
	}
	if k <= 0 {
		k = 10
	}
	qTokens := tokenize(fq, i.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}

	i.mu.RLock()
	buf := make([]Result, 0, min(k*4, len(i.docs)))
	for _, d := range i.docs {
		if s := score(fq, qTokens, d); s > 0 {
			buf = append(buf, Result{Entry: d.entry, Score: s})
		}
	}
	i.mu.RUnlock()
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].Score != buf[b].Score {
			return buf[a].Score > buf[b].Score
		}
		la, lb := utf8.RuneCountInString(buf[a].Name), utf8.RuneCountInString(buf[b].Name)
		if la != lb {
			return la < lb
		}
		if buf[a].Name != buf[b].Name {
			return buf[a].Name < buf[b].Name
		}
		return buf[a].Code < buf[b].Code
	})

	if k > len(buf) {
		k = len(buf)
	}
	return buf[:k:k]
}

func score(fq string, qTokens map[string]struct{}, d doc) float64 {
	switch {
	case d.folded == fq:
		return 4
	case strings.HasPrefix(d.folded, fq):
		return 3
	}
	over := overlap(qTokens, d.tokens)
	if prefixCovered(qTokens, d.tokens) {
		return 2 + jaccard(over, len(qTokens), d.tLen)
	}
	if over == 0 {
		return 0
	}
	return jaccard(over, len(qTokens), d.tLen)
}

// prefixCovered reports whether every query token prefixes some name token.
func prefixCovered(q, d map[string]struct{}) bool {
	for qt := range q {
		found := false
		for dt := range d {
			if strings.HasPrefix(dt, qt) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func jaccard(over, qLen, dLen int) float64 {
	union := qLen + dLen - over
	if union <= 0 {
		return 0
	}
	return float64(over) / float64(union)
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := 0
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
