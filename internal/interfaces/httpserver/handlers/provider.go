package handlers

// Provider wires HTTP handlers.
type Provider struct {
	Webhook   *WebhookHandler
	Agent     *AgentHandler
	Knowledge *KnowledgeHandler
}

func NewProvider(webhook *WebhookHandler, agent *AgentHandler, knowledge *KnowledgeHandler) *Provider {
	return &Provider{
		Webhook:   webhook,
		Agent:     agent,
		Knowledge: knowledge,
	}
}
