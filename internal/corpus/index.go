package corpus

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	stderrors "admission-orchestrator/internal/common/errors"
	"admission-orchestrator/internal/common/logger"
)

// Match is one retrieval hit: either a ranked chunk or, in degraded mode, a
// whole document body.
type Match struct {
	Text     string  `json:"text"`
	SourceID string  `json:"sourceId"`
	Score    float64 `json:"score"`
}

type Options struct {
	ChunkSize    int
	ChunkOverlap int
	QueryTimeout time.Duration
}

type chunk struct {
	sourceID  string
	ordinal   int
	text      string
	embedding []float32
}

// Index answers "most relevant passage" lookups over the knowledge corpus.
// Read-only after Load; safe for concurrent use without locking.
type Index struct {
	docs     []Document
	byID     map[string]string
	chunks   []chunk
	embedder Embedder
	degraded bool
	timeout  time.Duration
	logger   logger.Logger
}

// Load builds the index. Zero documents is the one fatal condition (CorpusEmpty).
// An unavailable embedding backend is not: the index comes up in degraded mode
// and Query serves the keyword-overlap fallback for the process lifetime.
func Load(ctx context.Context, docs []Document, embedder Embedder, opts Options, log logger.Logger) (*Index, error) {
	if len(docs) == 0 {
		return nil, stderrors.NewCorpusEmptyError("corpus")
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = 500
	}
	if opts.ChunkOverlap == 0 {
		opts.ChunkOverlap = 50
	}
	if opts.QueryTimeout == 0 {
		opts.QueryTimeout = 3 * time.Second
	}

	ix := &Index{
		docs:     docs,
		byID:     make(map[string]string, len(docs)),
		embedder: embedder,
		timeout:  opts.QueryTimeout,
		logger:   log.WithFields(map[string]interface{}{"component": "corpus-index"}),
	}

	for _, doc := range docs {
		ix.byID[doc.SourceID] = doc.Body
		for i, text := range splitChunks(doc.Body, opts.ChunkSize, opts.ChunkOverlap) {
			ix.chunks = append(ix.chunks, chunk{sourceID: doc.SourceID, ordinal: i, text: text})
		}
	}

	if embedder == nil {
		ix.degraded = true
		ix.logger.Warn("no embedding backend configured, keyword fallback active", nil)
		return ix, nil
	}

	texts := make([]string, len(ix.chunks))
	for i, c := range ix.chunks {
		texts[i] = c.text
	}

	embedCtx, cancel := context.WithTimeout(ctx, opts.QueryTimeout*time.Duration(len(texts)))
	defer cancel()

	vectors, err := embedder.EmbedDocuments(embedCtx, texts)
	if err != nil || len(vectors) != len(ix.chunks) {
		ix.degraded = true
		ix.logger.Warn("embedding backend unavailable, keyword fallback active", map[string]interface{}{
			"error": stderrors.NewRetrievalDegradedError(err),
		})
		return ix, nil
	}
	for i := range ix.chunks {
		ix.chunks[i].embedding = vectors[i]
	}

	ix.logger.Info("knowledge corpus indexed", map[string]interface{}{
		"documents": len(docs),
		"chunks":    len(ix.chunks),
	})
	return ix, nil
}

// Degraded reports whether ranked retrieval is unavailable.
func (ix *Index) Degraded() bool {
	return ix.degraded
}

// DocumentBody returns the full text of a document by logical name.
func (ix *Index) DocumentBody(sourceID string) (string, bool) {
	body, ok := ix.byID[sourceID]
	return body, ok
}

// Query returns up to k matches ordered by similarity, ties broken by original
// chunk order. In degraded mode it returns the single best keyword-overlap
// document. Retrieval is bounded: a slow embedding call falls back rather than
// stalling the caller.
func (ix *Index) Query(ctx context.Context, text string, k int) ([]Match, error) {
	if k <= 0 {
		k = 1
	}
	if ix.degraded {
		return ix.fallbackQuery(text), nil
	}

	queryCtx, cancel := context.WithTimeout(ctx, ix.timeout)
	defer cancel()

	queryVec, err := ix.embedder.EmbedQuery(queryCtx, text)
	if err != nil {
		ix.logger.Warn("query embedding failed, serving keyword fallback", map[string]interface{}{
			"error": err,
		})
		return ix.fallbackQuery(text), nil
	}

	scored := make([]Match, len(ix.chunks))
	for i, c := range ix.chunks {
		scored[i] = Match{
			Text:     c.text,
			SourceID: c.sourceID,
			Score:    cosine(queryVec, c.embedding),
		}
	}
	// Chunks start in original order; a stable sort keeps that order for ties.
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// fallbackQuery picks the single best document by shared-term count and returns
// its whole body.
func (ix *Index) fallbackQuery(text string) []Match {
	queryTerms := termSet(text)

	best := 0
	bestScore := -1
	for i, doc := range ix.docs {
		score := 0
		docTerms := termSet(doc.Body)
		for term := range queryTerms {
			if docTerms[term] {
				score++
			}
		}
		if score > bestScore {
			best = i
			bestScore = score
		}
	}

	doc := ix.docs[best]
	return []Match{{Text: doc.Body, SourceID: doc.SourceID, Score: float64(bestScore)}}
}

func termSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, field := range strings.Fields(strings.ToLower(text)) {
		set[strings.Trim(field, ".,:;!?()\"'")] = true
	}
	return set
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
