package requests

// AgentMessageRequest is a reply typed by a human agent.
type AgentMessageRequest struct {
	CustomerID uint   `json:"customer_id" binding:"required"`
	Channel    string `json:"channel"`
	Text       string `json:"text" binding:"required"`
}

// AutoReplyRequest toggles automated replies for a customer.
type AutoReplyRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// IngestDocumentRequest uploads a knowledge document.
type IngestDocumentRequest struct {
	Title   string `json:"title" binding:"required"`
	Source  string `json:"source"`
	Content string `json:"content" binding:"required"`
}

// ReindexDocumentRequest replaces a document's content.
type ReindexDocumentRequest struct {
	Content string `json:"content" binding:"required"`
}

// SearchRequest queries the knowledge base directly, mainly for tenant
// operators tuning their content.
type SearchRequest struct {
	Query string `json:"query" binding:"required"`
}
