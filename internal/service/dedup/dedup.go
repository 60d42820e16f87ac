// Package dedup collapses near-duplicate scenarios and test cases.
//
// Two mechanisms run in order: a zero-cost normalized-title comparison and
// an optional embedding cosine-similarity pass. When two items are judged
// duplicates the earlier-inserted one survives, so running the
// deduplicator on its own output is a no-op.
package dedup

import (
	"context"
	"math"
	"regexp"
	"strings"

	"k8s.io/klog/v2"
)

const (
	// TitleOverlapThreshold is the token-overlap ratio above which two
	// normalized titles are considered the same scenario.
	TitleOverlapThreshold = 0.85
	// EmbeddingThreshold is the cosine similarity above which two items
	// are considered semantic duplicates.
	EmbeddingThreshold = 0.90
)

// fillerPhrases are verb framings that carry no scenario identity.
// "Verify that user logs in" and "user logs in" are the same scenario.
var fillerPhrases = []string{
	"validate that",
	"ensure that",
	"verify that",
	"check that",
	"confirm that",
	"make sure that",
	"ensure ",
	"validate ",
	"verify ",
	"check ",
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9 ]+`)
var spaceRe = regexp.MustCompile(`\s+`)

// Item is one candidate for deduplication. Title drives the cheap pass;
// Text (typically title + description) drives the embedding pass.
type Item struct {
	Title string
	Text  string
}

// Embedder is the optional semantic capability. A nil Embedder is valid
// and means title-only deduplication.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

type Deduplicator struct {
	embedder       Embedder
	titleThreshold float64
	embedThreshold float64
}

func New(embedder Embedder) *Deduplicator {
	return &Deduplicator{
		embedder:       embedder,
		titleThreshold: TitleOverlapThreshold,
		embedThreshold: EmbeddingThreshold,
	}
}

// NormalizeTitle lowercases, strips filler phrasing and punctuation, and
// collapses whitespace.
func NormalizeTitle(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	for _, phrase := range fillerPhrases {
		s = strings.ReplaceAll(s, phrase, " ")
	}
	s = nonAlnumRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// TokenOverlap returns the Jaccard overlap of the two titles' token sets.
func TokenOverlap(a, b string) float64 {
	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(tokensA))
	for _, t := range tokensA {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(tokensB))
	for _, t := range tokensB {
		setB[t] = struct{}{}
	}
	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// CosineSimilarity of two vectors; 0 when lengths differ or a norm is zero.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Dedupe returns the indices of surviving items, in insertion order. The
// title pass always runs; the embedding pass runs only when an embedder is
// available, and any embedding failure silently degrades to the title-only
// result.
func (d *Deduplicator) Dedupe(ctx context.Context, items []Item) []int {
	if len(items) <= 1 {
		kept := make([]int, len(items))
		for i := range items {
			kept[i] = i
		}
		return kept
	}

	kept := d.dedupeByTitle(items)

	if d.embedder == nil || len(kept) <= 1 {
		return kept
	}
	return d.dedupeByEmbedding(ctx, items, kept)
}

func (d *Deduplicator) dedupeByTitle(items []Item) []int {
	normalized := make([]string, len(items))
	for i, item := range items {
		normalized[i] = NormalizeTitle(item.Title)
	}

	var kept []int
	for j := range items {
		dup := false
		for _, i := range kept {
			if d.titlesMatch(normalized[i], normalized[j]) {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, j)
		}
	}
	if len(kept) < len(items) {
		klog.V(6).Infof("title dedup: %d -> %d items", len(items), len(kept))
	}
	return kept
}

func (d *Deduplicator) titlesMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	// Substring containment is deliberately not a match: a shared prefix
	// does not make two scenarios the same.
	return TokenOverlap(a, b) >= d.titleThreshold
}

func (d *Deduplicator) dedupeByEmbedding(ctx context.Context, items []Item, candidates []int) []int {
	texts := make([]string, len(candidates))
	for k, idx := range candidates {
		texts[k] = strings.TrimSpace(items[idx].Title + " " + items[idx].Text)
	}

	vectors, err := d.embedder.Embed(ctx, texts)
	if err != nil || len(vectors) != len(candidates) {
		// Not an error condition: fall back to the title-only result.
		klog.Warningf("embedding dedup unavailable, keeping title-only result: %v", err)
		return candidates
	}

	var kept []int
	for j := range candidates {
		dup := false
		for _, i := range kept {
			if CosineSimilarity(vectors[i], vectors[j]) >= d.embedThreshold {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, j)
		}
	}

	result := make([]int, len(kept))
	for k, pos := range kept {
		result[k] = candidates[pos]
	}
	if len(result) < len(candidates) {
		klog.V(6).Infof("embedding dedup: %d -> %d items", len(candidates), len(result))
	}
	return result
}
