package intent

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/codeclass-ai/schoolbot/internal/llm"
	"github.com/codeclass-ai/schoolbot/pkg/logging"
)

// Recognizer resolves a message to an intent tag. Stages short-circuit in
// order: exact template key, configured keyword/callback rules, then semantic
// similarity against pre-computed phrase embeddings.
type Recognizer struct {
	cfg       *Config
	embedder  llm.Embedder
	threshold float32
	logger    *logging.Logger

	// phrase embeddings per intent tag, built once at construction.
	embeddings map[string][][]float32
}

// NewRecognizer embeds every configured keyword phrase up front so that
// Recognize only embeds the incoming query. A nil embedder disables the
// semantic stage.
func NewRecognizer(ctx context.Context, cfg *Config, embedder llm.Embedder, threshold float32, logger *logging.Logger) (*Recognizer, error) {
	if logger == nil {
		logger = logging.Default()
	}
	r := &Recognizer{
		cfg:        cfg,
		embedder:   embedder,
		threshold:  threshold,
		logger:     logger,
		embeddings: make(map[string][][]float32),
	}
	if embedder == nil {
		return r, nil
	}
	for _, tag := range cfg.Tags() {
		phrases := cfg.Intents[tag].Keywords
		if len(phrases) == 0 {
			continue
		}
		vecs, err := embedder.Embed(ctx, phrases)
		if err != nil {
			return nil, fmt.Errorf("intent: embed phrases for %q: %w", tag, err)
		}
		r.embeddings[tag] = vecs
	}
	return r, nil
}

// Recognize returns the matched intent tag, or "" when no stage matched.
func (r *Recognizer) Recognize(ctx context.Context, query string) string {
	if tag := r.byTemplateKey(query); tag != "" {
		return tag
	}
	if tag := r.byRule(query); tag != "" {
		return tag
	}
	return r.bySemantic(ctx, query)
}

// byTemplateKey handles button callbacks that carry the intent tag verbatim.
func (r *Recognizer) byTemplateKey(query string) string {
	if _, ok := r.cfg.Intents[query]; ok {
		return query
	}
	return ""
}

func (r *Recognizer) byRule(query string) string {
	lower := strings.ToLower(query)
	for _, tag := range r.cfg.Tags() {
		def := r.cfg.Intents[tag]
		for _, key := range def.CallbackKeys {
			if lower == strings.ToLower(key) {
				r.logger.Info("intent matched by callback key", "intent", tag, "key", key)
				return tag
			}
		}
		for _, phrase := range def.Keywords {
			if strings.Contains(lower, strings.ToLower(phrase)) {
				r.logger.Info("intent matched by keyword", "intent", tag, "phrase", phrase)
				return tag
			}
		}
	}
	return ""
}

func (r *Recognizer) bySemantic(ctx context.Context, query string) string {
	if r.embedder == nil || len(r.embeddings) == 0 {
		return ""
	}
	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil || len(vecs) == 0 {
		r.logger.Warn("query embedding failed", "error", err)
		return ""
	}
	qv := vecs[0]

	var best string
	var bestSim float32
	for tag, phraseVecs := range r.embeddings {
		for _, pv := range phraseVecs {
			if sim := Cosine(qv, pv); sim > bestSim {
				bestSim = sim
				best = tag
			}
		}
	}
	if bestSim >= r.threshold {
		r.logger.Info("intent matched semantically", "intent", best, "similarity", bestSim)
		return best
	}
	return ""
}

// Cosine returns the cosine similarity of two vectors, 0 for mismatched or
// zero-length input.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
