package assistant

import (
	"context"
	"encoding/json"

	"github.com/sashabaranov/go-openai"
)

// ToolName is the closed set of functions the model may call. Anything
// outside this set in a completion response is ignored.
type ToolName string

const (
	ToolCreateSupportTicket ToolName = "create_support_ticket"
	ToolSearchCatalog       ToolName = "search_catalog"
)

// TicketRequest is the payload the model fills in when the customer
// asks for human follow-up.
type TicketRequest struct {
	TenantID        uint
	CustomerID      uint
	SessionID       uint
	CustomerAddress string
	Subject         string `json:"asunto"`
	Description     string `json:"descripcion"`
}

// Ticket is the CRM's acknowledgement of a created ticket.
type Ticket struct {
	ID     string
	Folio  string
	Status string
}

// TicketCreator raises support tickets in the CRM.
type TicketCreator interface {
	CreateTicket(ctx context.Context, req TicketRequest) (*Ticket, error)
}

// CatalogItem is one product hit from the tenant's catalog.
type CatalogItem struct {
	Name        string  `json:"nombre"`
	Description string  `json:"descripcion"`
	Price       float64 `json:"precio"`
	Available   bool    `json:"disponible"`
}

// CatalogSearcher looks up products in the tenant's catalog, optionally
// narrowed to the given category names.
type CatalogSearcher interface {
	SearchCatalog(ctx context.Context, tenantID uint, query string, categories []string) ([]CatalogItem, error)
}

// chatTools is the tool schema advertised on the first completion round.
var chatTools = []openai.Tool{
	{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        string(ToolCreateSupportTicket),
			Description: "Crea un ticket de soporte cuando el cliente pide hablar con una persona o su problema no se puede resolver con la información disponible.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"asunto": map[string]any{
						"type":        "string",
						"description": "Resumen corto del problema del cliente.",
					},
					"descripcion": map[string]any{
						"type":        "string",
						"description": "Detalle del problema con los datos que el cliente proporcionó.",
					},
				},
				"required": []string{"asunto", "descripcion"},
			},
		},
	},
	{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        string(ToolSearchCatalog),
			Description: "Busca productos en el catálogo de la tienda por nombre o característica.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"consulta": map[string]any{
						"type":        "string",
						"description": "Términos de búsqueda del producto.",
					},
					"categorias": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Categorías del catálogo para acotar la búsqueda. Opcional.",
					},
				},
				"required": []string{"consulta"},
			},
		},
	},
}

// toolResult is what goes back to the model as the tool message content.
// Failures are reported inside the payload so the model can apologize
// instead of the turn aborting.
func toolResultJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{"error":"resultado no disponible"}`
	}
	return string(b)
}
