package rag

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/codeclass-ai/schoolbot/internal/intent"
	"github.com/codeclass-ai/schoolbot/internal/llm"
)

// Document is one chunk of knowledge-base text.
type Document struct {
	Source  string
	Content string
}

// Store is an in-memory vector index over knowledge-base chunks. Documents
// are embedded once on insert; queries embed only the query text.
type Store struct {
	embedder llm.Embedder

	mu      sync.RWMutex
	docs    []Document
	vectors [][]float32
}

func NewStore(embedder llm.Embedder) *Store {
	return &Store{embedder: embedder}
}

// AddDocuments embeds and indexes the given chunks.
func (s *Store) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("rag: embed documents: %w", err)
	}
	if len(vecs) != len(docs) {
		return fmt.Errorf("rag: embedder returned %d vectors for %d documents", len(vecs), len(docs))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, docs...)
	s.vectors = append(s.vectors, vecs...)
	return nil
}

// Len reports the number of indexed chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Query returns up to topK chunks most similar to the query, best first.
func (s *Store) Query(ctx context.Context, query string, topK int) ([]Document, error) {
	if topK <= 0 {
		return nil, nil
	}
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("rag: embedder returned no vector for query")
	}
	qv := vecs[0]

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		idx int
		sim float32
	}
	ranked := make([]scored, len(s.docs))
	for i := range s.docs {
		ranked[i] = scored{idx: i, sim: intent.Cosine(qv, s.vectors[i])}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].sim > ranked[j].sim })

	if topK > len(ranked) {
		topK = len(ranked)
	}
	out := make([]Document, topK)
	for i := 0; i < topK; i++ {
		out[i] = s.docs[ranked[i].idx]
	}
	return out, nil
}
