package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nuvia-server/internal/infrastructure/logger"
)

type fakeKnowledgeRepo struct {
	documents map[uint]*Document
	chunks    map[uint][]*Chunk
	results   []*ScoredChunk
	searchErr error
	nextID    uint

	lastSearchLimit int
}

func newFakeKnowledgeRepo() *fakeKnowledgeRepo {
	return &fakeKnowledgeRepo{
		documents: make(map[uint]*Document),
		chunks:    make(map[uint][]*Chunk),
		nextID:    1,
	}
}

func (r *fakeKnowledgeRepo) CreateDocument(_ context.Context, d *Document) error {
	d.ID = r.nextID
	r.nextID++
	r.documents[d.ID] = d
	return nil
}

func (r *fakeKnowledgeRepo) FindDocument(_ context.Context, tenantID, documentID uint) (*Document, error) {
	d, ok := r.documents[documentID]
	if !ok || d.TenantID != tenantID {
		return nil, errors.New("not found")
	}
	return d, nil
}

func (r *fakeKnowledgeRepo) ListDocuments(_ context.Context, tenantID uint) ([]*Document, error) {
	var out []*Document
	for _, d := range r.documents {
		if d.TenantID == tenantID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *fakeKnowledgeRepo) DeleteDocument(_ context.Context, tenantID, documentID uint) error {
	delete(r.documents, documentID)
	delete(r.chunks, documentID)
	return nil
}

func (r *fakeKnowledgeRepo) ReplaceChunks(_ context.Context, documentID uint, chunks []*Chunk) error {
	r.chunks[documentID] = chunks
	return nil
}

func (r *fakeKnowledgeRepo) SearchChunks(_ context.Context, _ uint, _ []float32, limit int) ([]*ScoredChunk, error) {
	r.lastSearchLimit = limit
	if r.searchErr != nil {
		return nil, r.searchErr
	}
	if len(r.results) > limit {
		return r.results[:limit], nil
	}
	return r.results, nil
}

type fakeEmbedder struct {
	err       error
	lastText  string
	lastTexts []string
}

func (e *fakeEmbedder) Embed(_ context.Context, _, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.lastText = text
	return []float32{0.1, 0.2, 0.3}, nil
}

func (e *fakeEmbedder) EmbedBatch(_ context.Context, _ string, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.lastTexts = append(e.lastTexts, texts...)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

type fakeRewriter struct {
	result string
	err    error
	calls  int
}

func (w *fakeRewriter) RewriteQuery(_ context.Context, _, _ string) (string, error) {
	w.calls++
	return w.result, w.err
}

func scored(content string, distance float64) *ScoredChunk {
	return &ScoredChunk{Chunk: Chunk{Content: content}, Distance: distance}
}

func TestRetrieveFiltersByDistance(t *testing.T) {
	repo := newFakeKnowledgeRepo()
	repo.results = []*ScoredChunk{
		scored("horario de atención", 0.21),
		scored("política de devoluciones", 0.40),
		scored("texto lejano", 0.62),
	}
	r := NewRetriever(repo, &fakeEmbedder{}, nil, "chat-model", 5, logger.GetLogger())

	got := r.Retrieve(context.Background(), 1, "embed-model", "cual es el horario")
	require.Len(t, got, 2)
	assert.Equal(t, "horario de atención", got[0].Content)
	assert.Equal(t, "política de devoluciones", got[1].Content)
}

func TestRetrieveOverFetchesThenCaps(t *testing.T) {
	repo := newFakeKnowledgeRepo()
	for i := 0; i < 10; i++ {
		repo.results = append(repo.results, scored("chunk", 0.1))
	}
	r := NewRetriever(repo, &fakeEmbedder{}, nil, "chat-model", 3, logger.GetLogger())

	got := r.Retrieve(context.Background(), 1, "embed-model", "precio de envío")
	assert.Equal(t, 9, repo.lastSearchLimit)
	assert.Len(t, got, 3)
}

func TestRetrieveDegradesOnEmbedFailure(t *testing.T) {
	repo := newFakeKnowledgeRepo()
	repo.results = []*ScoredChunk{scored("chunk", 0.1)}
	r := NewRetriever(repo, &fakeEmbedder{err: errors.New("provider down")}, nil, "chat-model", 5, logger.GetLogger())

	got := r.Retrieve(context.Background(), 1, "embed-model", "precio de envío")
	assert.Empty(t, got)
}

func TestRetrieveDegradesOnSearchFailure(t *testing.T) {
	repo := newFakeKnowledgeRepo()
	repo.searchErr = errors.New("db down")
	r := NewRetriever(repo, &fakeEmbedder{}, nil, "chat-model", 5, logger.GetLogger())

	got := r.Retrieve(context.Background(), 1, "embed-model", "precio de envío")
	assert.Empty(t, got)
}

func TestNormalizeStripsGreetings(t *testing.T) {
	embedder := &fakeEmbedder{}
	r := NewRetriever(newFakeKnowledgeRepo(), embedder, nil, "chat-model", 5, logger.GetLogger())

	r.Retrieve(context.Background(), 1, "embed-model", "Hola, buenas tardes! ¿Tienen envío a Monterrey?")
	assert.Equal(t, "tienen envío a monterrey", embedder.lastText)
}

func TestNormalizePureGreetingSkipsRetrieval(t *testing.T) {
	repo := newFakeKnowledgeRepo()
	repo.results = []*ScoredChunk{scored("chunk", 0.1)}
	r := NewRetriever(repo, &fakeEmbedder{}, nil, "chat-model", 5, logger.GetLogger())

	got := r.Retrieve(context.Background(), 1, "embed-model", "Hola, buenas tardes!")
	assert.Empty(t, got)
	assert.Zero(t, repo.lastSearchLimit)
}

func TestRewriteOnlyForLongQueries(t *testing.T) {
	rewriter := &fakeRewriter{result: "envío tarifas monterrey"}
	embedder := &fakeEmbedder{}
	r := NewRetriever(newFakeKnowledgeRepo(), embedder, rewriter, "chat-model", 5, logger.GetLogger())
	ctx := context.Background()

	r.Retrieve(ctx, 1, "embed-model", "cuánto cuesta el envío")
	assert.Zero(t, rewriter.calls)

	long := strings.Repeat("necesito saber si ", 6) + "hacen envíos a monterrey"
	r.Retrieve(ctx, 1, "embed-model", long)
	assert.Equal(t, 1, rewriter.calls)
	assert.Equal(t, "envío tarifas monterrey", embedder.lastText)
}

func TestRewriteFailureFallsBackToHeuristic(t *testing.T) {
	rewriter := &fakeRewriter{err: errors.New("model timeout")}
	embedder := &fakeEmbedder{}
	r := NewRetriever(newFakeKnowledgeRepo(), embedder, rewriter, "chat-model", 5, logger.GetLogger())

	long := strings.Repeat("quisiera preguntar sobre ", 5) + "la garantía de la lavadora"
	r.Retrieve(context.Background(), 1, "embed-model", long)
	assert.Equal(t, 1, rewriter.calls)
	assert.Contains(t, embedder.lastText, "garantía de la lavadora")
}

func TestSplitContentParagraphs(t *testing.T) {
	text := strings.Repeat("Una política de la tienda. ", 20) + "\n\n" +
		strings.Repeat("Otra sección del documento. ", 20)
	chunks := SplitContent(text)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), chunkTargetSize+100)
	}
}

func TestSplitContentMergesShortTail(t *testing.T) {
	text := strings.Repeat("Frase razonablemente larga del manual de soporte. ", 10) +
		"\n\nGracias."
	chunks := SplitContent(text)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], "Gracias.")
}

func TestIndexerBatchesEmbeddings(t *testing.T) {
	repo := newFakeKnowledgeRepo()
	embedder := &fakeEmbedder{}
	idx := NewIndexer(repo, embedder, logger.GetLogger())

	var b strings.Builder
	for i := 0; i < 12; i++ {
		b.WriteString(strings.Repeat("Sección con contenido suficiente para un fragmento propio. ", 6))
		b.WriteString("\n\n")
	}

	doc, err := idx.Ingest(context.Background(), 1, "Manual", "upload", "embed-model", b.String())
	require.NoError(t, err)

	chunks := repo.chunks[doc.ID]
	require.NotEmpty(t, chunks)
	assert.Equal(t, len(chunks), len(embedder.lastTexts))
	for i, c := range chunks {
		assert.Equal(t, i, c.Ordinal)
		assert.Equal(t, uint(1), c.TenantID)
		assert.Equal(t, EstimateTokens(c.Content), c.TokenCount)
		assert.Positive(t, c.TokenCount)
	}
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("hola"))
	assert.Equal(t, 3, EstimateTokens("hola mundo"))
	assert.Equal(t, 25, EstimateTokens(strings.Repeat("a", 100)))
}

func TestIngestRejectsEmptyContent(t *testing.T) {
	idx := NewIndexer(newFakeKnowledgeRepo(), &fakeEmbedder{}, logger.GetLogger())
	_, err := idx.Ingest(context.Background(), 1, "Vacío", "upload", "embed-model", "   ")
	require.Error(t, err)
}

func TestRetrieveSortsByAscendingDistance(t *testing.T) {
	repo := newFakeKnowledgeRepo()
	repo.results = []*ScoredChunk{
		scored("tercero", 0.41),
		scored("primero", 0.12),
		scored("segundo", 0.30),
	}
	r := NewRetriever(repo, &fakeEmbedder{}, nil, "chat-model", 5, logger.GetLogger())

	got := r.Retrieve(context.Background(), 1, "embed-model", "cual es el horario")
	require.Len(t, got, 3)
	assert.Equal(t, "primero", got[0].Content)
	assert.Equal(t, "segundo", got[1].Content)
	assert.Equal(t, "tercero", got[2].Content)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].Distance, got[i].Distance)
	}
}

func TestRetrieveCapKeepsNearestWhenBackendIsUnordered(t *testing.T) {
	repo := newFakeKnowledgeRepo()
	repo.results = []*ScoredChunk{
		scored("lejano", 0.44),
		scored("cercano", 0.05),
		scored("medio", 0.20),
	}
	r := NewRetriever(repo, &fakeEmbedder{}, nil, "chat-model", 2, logger.GetLogger())

	got := r.Retrieve(context.Background(), 1, "embed-model", "precio de envío")
	require.Len(t, got, 2)
	assert.Equal(t, "cercano", got[0].Content)
	assert.Equal(t, "medio", got[1].Content)
}
