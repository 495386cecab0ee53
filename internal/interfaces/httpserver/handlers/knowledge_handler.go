package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"nuvia-server/internal/domain/knowledge"
	"nuvia-server/internal/domain/tenant"
	"nuvia-server/internal/interfaces/httpserver/requests"
	"nuvia-server/internal/interfaces/httpserver/responses"
	"nuvia-server/internal/utils/functional"
)

// KnowledgeHandler exposes document ingestion and retrieval tuning.
type KnowledgeHandler struct {
	tenants   tenant.Repository
	repo      knowledge.Repository
	indexer   *knowledge.Indexer
	retriever *knowledge.Retriever

	defaultChatModel      string
	defaultEmbeddingModel string
	log                   zerolog.Logger
}

func NewKnowledgeHandler(tenants tenant.Repository, repo knowledge.Repository, indexer *knowledge.Indexer, retriever *knowledge.Retriever, defaultChatModel, defaultEmbeddingModel string, log zerolog.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{
		tenants:               tenants,
		repo:                  repo,
		indexer:               indexer,
		retriever:             retriever,
		defaultChatModel:      defaultChatModel,
		defaultEmbeddingModel: defaultEmbeddingModel,
		log:                   log.With().Str("component", "knowledge-handler").Logger(),
	}
}

func (h *KnowledgeHandler) resolveTenant(c *gin.Context) (*tenant.Tenant, tenant.Config, bool) {
	tn, err := h.tenants.FindBySlug(c.Request.Context(), c.Param("tenant"))
	if err != nil {
		responses.HandleError(c, err, "tenant not found")
		return nil, tenant.Config{}, false
	}
	return tn, tn.ResolveConfig(h.defaultChatModel, h.defaultEmbeddingModel), true
}

// IngestDocument uploads and indexes a knowledge document.
func (h *KnowledgeHandler) IngestDocument(c *gin.Context) {
	tn, cfg, ok := h.resolveTenant(c)
	if !ok {
		return
	}

	var req requests.IngestDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc, err := h.indexer.Ingest(c.Request.Context(), tn.ID, req.Title, req.Source, cfg.EmbeddingModel, req.Content)
	if err != nil {
		responses.HandleError(c, err, "failed to ingest document")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"document_id": doc.ID, "title": doc.Title})
}

// ReindexDocument replaces a document's content and rebuilds its
// chunks and embeddings.
func (h *KnowledgeHandler) ReindexDocument(c *gin.Context) {
	tn, cfg, ok := h.resolveTenant(c)
	if !ok {
		return
	}

	documentID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return
	}

	var req requests.ReindexDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc, err := h.repo.FindDocument(c.Request.Context(), tn.ID, uint(documentID))
	if err != nil {
		responses.HandleError(c, err, "failed to load document")
		return
	}
	if err := h.indexer.Reindex(c.Request.Context(), doc, cfg.EmbeddingModel, req.Content); err != nil {
		responses.HandleError(c, err, "failed to reindex document")
		return
	}
	c.JSON(http.StatusOK, gin.H{"document_id": doc.ID, "reindexed": true})
}

// ListDocuments lists the tenant's knowledge documents.
func (h *KnowledgeHandler) ListDocuments(c *gin.Context) {
	tn, _, ok := h.resolveTenant(c)
	if !ok {
		return
	}

	docs, err := h.repo.ListDocuments(c.Request.Context(), tn.ID)
	if err != nil {
		responses.HandleError(c, err, "failed to list documents")
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// DeleteDocument removes a document and its chunks.
func (h *KnowledgeHandler) DeleteDocument(c *gin.Context) {
	tn, _, ok := h.resolveTenant(c)
	if !ok {
		return
	}

	documentID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return
	}

	if err := h.repo.DeleteDocument(c.Request.Context(), tn.ID, uint(documentID)); err != nil {
		responses.HandleError(c, err, "failed to delete document")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": documentID})
}

// Search runs a retrieval query directly, so operators can see what
// the bot would ground its answers on.
func (h *KnowledgeHandler) Search(c *gin.Context) {
	tn, cfg, ok := h.resolveTenant(c)
	if !ok {
		return
	}

	var req requests.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chunks := h.retriever.Retrieve(c.Request.Context(), tn.ID, cfg.EmbeddingModel, req.Query)
	results := functional.Map(chunks, func(chunk *knowledge.ScoredChunk) gin.H {
		return gin.H{
			"document_id": chunk.DocumentID,
			"content":     chunk.Content,
			"distance":    chunk.Distance,
		}
	})
	c.JSON(http.StatusOK, gin.H{"results": results})
}
