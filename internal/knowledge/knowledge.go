// Package knowledge provides the medical knowledge base used to ground
// generated responses.
//
// Snippets are ingested from CSV dumps of department Q&A pairs and persisted
// through the store. Retrieval is lexical: queries and snippets are compared
// by character bigram overlap, which works well enough for short Chinese
// medical queries without an embedding service.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/medpipe/medpipe/internal/models"
	"github.com/medpipe/medpipe/internal/store"
)

// Retriever finds knowledge snippets relevant to a query.
type Retriever interface {
	// Search returns up to k snippets ranked by relevance. An empty slice
	// means nothing matched; it is not an error.
	Search(ctx context.Context, query string, k int) ([]models.Snippet, error)
}

// Base is a store-backed retriever. Snippets are loaded once and cached;
// AddSnippets keeps the cache and the store in sync.
type Base struct {
	st store.Store

	mu       sync.RWMutex
	snippets []models.Snippet
	loaded   bool
}

// NewBase creates a knowledge base over the given store.
func NewBase(st store.Store) *Base {
	return &Base{st: st}
}

// Len returns the number of indexed snippets.
func (b *Base) Len(ctx context.Context) (int, error) {
	if err := b.ensureLoaded(); err != nil {
		return 0, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.snippets), nil
}

// AddSnippets persists new snippets and adds them to the cache.
func (b *Base) AddSnippets(snippets []models.Snippet) error {
	if len(snippets) == 0 {
		return nil
	}
	if err := b.ensureLoaded(); err != nil {
		return err
	}
	if err := b.st.AddSnippets(snippets); err != nil {
		return fmt.Errorf("failed to persist snippets: %w", err)
	}
	b.mu.Lock()
	b.snippets = append(b.snippets, snippets...)
	b.mu.Unlock()
	slog.Info("Knowledge base updated", "added", len(snippets))
	return nil
}

// Search ranks cached snippets by bigram overlap with the query and returns
// the top k. Snippets with zero overlap are excluded.
func (b *Base) Search(ctx context.Context, query string, k int) ([]models.Snippet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := b.ensureLoaded(); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" || k <= 0 {
		return []models.Snippet{}, nil
	}

	qgrams := bigrams(query)
	if len(qgrams) == 0 {
		return []models.Snippet{}, nil
	}

	b.mu.RLock()
	scored := make([]models.Snippet, 0, len(b.snippets))
	for _, sn := range b.snippets {
		score := overlapScore(qgrams, bigrams(sn.Text))
		if score <= 0 {
			continue
		}
		sn.Score = score
		scored = append(scored, sn)
	}
	b.mu.RUnlock()

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	slog.Debug("Knowledge search completed", "query_len", len([]rune(query)), "hits", len(scored))
	return scored, nil
}

func (b *Base) ensureLoaded() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loaded {
		return nil
	}
	snippets, err := b.st.ListSnippets()
	if err != nil {
		return fmt.Errorf("failed to load knowledge snippets: %w", err)
	}
	b.snippets = snippets
	b.loaded = true
	slog.Debug("Knowledge base loaded", "snippets", len(snippets))
	return nil
}

// bigrams returns the set of character bigrams of s, lowercased, skipping
// whitespace and punctuation boundaries. Single-rune inputs yield the rune
// itself so very short queries still match.
func bigrams(s string) map[string]struct{} {
	runes := make([]rune, 0, len(s))
	for _, r := range strings.ToLower(s) {
		if isSeparator(r) {
			continue
		}
		runes = append(runes, r)
	}
	grams := make(map[string]struct{}, len(runes))
	if len(runes) == 1 {
		grams[string(runes)] = struct{}{}
		return grams
	}
	for i := 0; i+1 < len(runes); i++ {
		grams[string(runes[i:i+2])] = struct{}{}
	}
	return grams
}

func isSeparator(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '，', '。', '！', '？', '、', '：', '；', ',', '.', '!', '?', ':', ';':
		return true
	}
	return false
}

// overlapScore is the fraction of query bigrams present in the snippet.
func overlapScore(query, text map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	hits := 0
	for g := range query {
		if _, ok := text[g]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}

// FormatContext joins snippets into the context block handed to generation.
func FormatContext(snippets []models.Snippet) string {
	if len(snippets) == 0 {
		return ""
	}
	parts := make([]string, 0, len(snippets))
	for _, sn := range snippets {
		parts = append(parts, sn.Text)
	}
	return strings.Join(parts, "\n\n")
}
