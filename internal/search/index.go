// Package search provides a concurrency-safe in-memory index used for
// free-text title search (GET /titles?q=...).
//
// Each title is one document (name, description, year). Scoring is Jaccard
// similarity between the query token set Q and a document token set D:
// score = |Q ∩ D| / |Q ∪ D|. Ties are broken by shorter document, then by
// lower id, so results are deterministic.
//
// Tokens are case-folded and stripped of diacritics, so "Amelie" finds
// "Amélie".
package search

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Result is a matching document id with its similarity score.
type Result struct {
	ID    int64
	Score float64
}

// Document is one indexed entry.
type Document struct {
	ID   int64
	Text string
}

// Index is the read side of the search index.
type Index interface {
	TopK(query string, k int) []Result
}

// Option configures a Catalog.
type Option func(*config)

type config struct {
	stopwords map[string]struct{}
	minScore  float64
}

func defaultConfig() config {
	return config{}
}

// WithStopwords drops the given words from both documents and queries.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = fold(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

// WithMinScore drops results scoring below s. Values outside (0,1] are
// ignored.
func WithMinScore(s float64) Option {
	return func(c *config) {
		if s > 0 && s <= 1 {
			c.minScore = s
		}
	}
}

type doc struct {
	tokens map[string]struct{}
	runes  int
}

// Catalog is a mutable Index. Reads and writes may run concurrently.
type Catalog struct {
	cfg  config
	mu   sync.RWMutex
	docs map[int64]doc
}

// New returns an empty Catalog.
func New(opts ...Option) *Catalog {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &Catalog{cfg: cfg, docs: make(map[int64]doc)}
}

// Reset replaces the whole content with docs.
func (c *Catalog) Reset(docs []Document) {
	next := make(map[int64]doc, len(docs))
	for _, d := range docs {
		if nd, ok := c.build(d.Text); ok {
			next[d.ID] = nd
		}
	}
	c.mu.Lock()
	c.docs = next
	c.mu.Unlock()
}

// Upsert indexes text under id, replacing any previous entry. Text without
// tokens removes the entry.
func (c *Catalog) Upsert(id int64, text string) {
	nd, ok := c.build(text)
	c.mu.Lock()
	defer c.mu.Unlock()
	if !ok {
		delete(c.docs, id)
		return
	}
	c.docs[id] = nd
}

// Remove drops id from the index.
func (c *Catalog) Remove(id int64) {
	c.mu.Lock()
	delete(c.docs, id)
	c.mu.Unlock()
}

// Len returns the number of indexed documents.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

// TopK returns up to k best matches. k <= 0 means no limit.
func (c *Catalog) TopK(q string, k int) []Result {
	qTokens := tokenize(q, c.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}
	qLen := len(qTokens)

	type scored struct {
		id    int64
		score float64
		runes int
	}

	c.mu.RLock()
	buf := make([]scored, 0, 16)
	for id, d := range c.docs {
		over := overlap(qTokens, d.tokens)
		if over == 0 {
			continue
		}
		score := float64(over) / float64(qLen+len(d.tokens)-over)
		if score < c.cfg.minScore {
			continue
		}
		buf = append(buf, scored{id: id, score: score, runes: d.runes})
	}
	c.mu.RUnlock()

	if len(buf) == 0 {
		return nil
	}
	sort.Slice(buf, func(a, b int) bool {
		if buf[a].score != buf[b].score {
			return buf[a].score > buf[b].score
		}
		if buf[a].runes != buf[b].runes {
			return buf[a].runes < buf[b].runes
		}
		return buf[a].id < buf[b].id
	})

	if k <= 0 || k > len(buf) {
		k = len(buf)
	}
	out := make([]Result, k)
	for i := 0; i < k; i++ {
		out[i] = Result{ID: buf[i].id, Score: buf[i].score}
	}
	return out
}

func (c *Catalog) build(text string) (doc, bool) {
	toks := tokenize(text, c.cfg.stopwords)
	if len(toks) == 0 {
		return doc{}, false
	}
	return doc{tokens: toks, runes: len([]rune(strings.TrimSpace(text)))}, true
}

var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

// fold case-folds s and removes combining marks. Casers and transformers
// are stateful, so fresh ones are built per call.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return cases.Fold().String(out)
}

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(fold(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
