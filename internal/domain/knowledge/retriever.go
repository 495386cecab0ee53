package knowledge

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"nuvia-server/internal/utils/functional"
)

const (
	// maxDistance filters out matches too far from the query to be
	// useful grounding. Tuned against the embedding model in use.
	maxDistance = 0.45

	// overFetchFactor widens the candidate pool before the distance
	// filter trims it back down.
	overFetchFactor = 3

	// Queries longer than either bound get an LLM rewrite before
	// embedding; short ones make do with the cheap heuristic.
	rewriteCharThreshold  = 80
	rewriteTokenThreshold = 12
)

// greetingFillers are conversational openers that add noise to an
// embedding without adding meaning.
var greetingFillers = []string{
	"hola", "buenas tardes", "buenos dias", "buenos días", "buenas noches",
	"buen dia", "buen día", "buenas", "que tal", "qué tal", "hey", "hello", "hi",
	"por favor", "porfavor", "disculpa", "disculpe", "oye", "oiga",
}

// QueryRewriter condenses a long query into a retrieval-friendly one.
type QueryRewriter interface {
	RewriteQuery(ctx context.Context, model, query string) (string, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// Retriever answers "what does this tenant's knowledge base say about
// X". Retrieval is best effort: any failure degrades to an empty result
// so the conversation can continue without grounding.
type Retriever struct {
	repo     Repository
	embedder Embedder
	rewriter QueryRewriter

	// rewriteModel is the chat model used for query condensation; the
	// embedding model only vectorizes the result.
	rewriteModel string
	limit        int
	log          zerolog.Logger
}

func NewRetriever(repo Repository, embedder Embedder, rewriter QueryRewriter, rewriteModel string, limit int, log zerolog.Logger) *Retriever {
	return &Retriever{
		repo:         repo,
		embedder:     embedder,
		rewriter:     rewriter,
		rewriteModel: rewriteModel,
		limit:        limit,
		log:          log.With().Str("component", "knowledge-retriever").Logger(),
	}
}

// Retrieve returns the chunks most relevant to the query, at most
// r.limit of them, all within maxDistance. An empty slice and nil error
// means the knowledge base had nothing close enough, or that retrieval
// failed and the turn should proceed ungrounded.
func (r *Retriever) Retrieve(ctx context.Context, tenantID uint, embeddingModel, query string) []*ScoredChunk {
	normalized := r.normalize(ctx, query)
	if normalized == "" {
		return nil
	}

	embedding, err := r.embedder.Embed(ctx, embeddingModel, normalized)
	if err != nil {
		r.log.Warn().Err(err).Msg("query embedding failed, continuing without knowledge context")
		return nil
	}

	candidates, err := r.repo.SearchChunks(ctx, tenantID, embedding, r.limit*overFetchFactor)
	if err != nil {
		r.log.Warn().Err(err).Msg("chunk search failed, continuing without knowledge context")
		return nil
	}

	// The index returns candidates nearest-first, but the contract here
	// is ascending distance regardless of the backend, so re-sort.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})
	out := functional.Filter(candidates, func(c *ScoredChunk) bool {
		return c.Distance <= maxDistance
	})
	if len(out) > r.limit {
		out = out[:r.limit]
	}
	return out
}

// normalize strips greeting noise and, for long queries, asks the model
// for a condensed rewrite. A failed rewrite silently falls back to the
// heuristic result.
func (r *Retriever) normalize(ctx context.Context, query string) string {
	cleaned := stripFillers(query)
	if cleaned == "" {
		return ""
	}

	if r.rewriter != nil && needsRewrite(cleaned) {
		rewritten, err := r.rewriter.RewriteQuery(ctx, r.rewriteModel, cleaned)
		if err != nil {
			r.log.Debug().Err(err).Msg("query rewrite failed, using heuristic normalization")
		} else if rewritten = strings.TrimSpace(rewritten); rewritten != "" {
			return rewritten
		}
	}
	return cleaned
}

func needsRewrite(query string) bool {
	return len(query) > rewriteCharThreshold || len(strings.Fields(query)) > rewriteTokenThreshold
}

func stripFillers(query string) string {
	s := strings.ToLower(strings.TrimSpace(query))
	for _, filler := range greetingFillers {
		s = strings.ReplaceAll(s, filler, "")
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ',', '.', ';', ':', '!', '?', '¡', '¿':
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
