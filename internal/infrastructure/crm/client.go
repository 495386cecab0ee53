package crm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"resty.dev/v3"

	"nuvia-server/internal/domain/assistant"
	"nuvia-server/internal/utils/platformerrors"
)

const requestTimeout = 15 * time.Second

// Client talks to the CRM backend for support tickets and catalog
// lookups. Requests authenticate with the shared internal secret.
type Client struct {
	http *resty.Client
	log  zerolog.Logger
}

// Config carries the CRM connection settings.
type Config struct {
	BaseURL        string
	InternalSecret string
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	http := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(requestTimeout).
		SetHeader("x-internal-secret", cfg.InternalSecret)
	return &Client{
		http: http,
		log:  log.With().Str("component", "crm-client").Logger(),
	}
}

type ticketResponse struct {
	ID     string `json:"id"`
	Folio  string `json:"folio"`
	Status string `json:"estado"`
}

func (c *Client) CreateTicket(ctx context.Context, req assistant.TicketRequest) (*assistant.Ticket, error) {
	body := map[string]any{
		"tenant_id":   req.TenantID,
		"customer_id": req.CustomerID,
		"session_id":  req.SessionID,
		"telefono":    req.CustomerAddress,
		"asunto":      req.Subject,
		"descripcion": req.Description,
	}

	var result ticketResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post("/internal/tickets")
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeExternal, "create ticket request failed", err, "")
	}
	if resp.IsError() {
		return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeExternal, "crm rejected ticket", nil, "",
			map[string]any{"status": resp.StatusCode(), "body": resp.String()})
	}
	return &assistant.Ticket{ID: result.ID, Folio: result.Folio, Status: result.Status}, nil
}

type catalogResponse struct {
	Items []assistant.CatalogItem `json:"productos"`
}

func (c *Client) SearchCatalog(ctx context.Context, tenantID uint, query string, categories []string) ([]assistant.CatalogItem, error) {
	var result catalogResponse
	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("q", query).
		SetResult(&result)
	if len(categories) > 0 {
		req.SetQueryParam("categorias", strings.Join(categories, ","))
	}
	resp, err := req.Get(fmt.Sprintf("/internal/tenants/%d/catalog", tenantID))
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeExternal, "catalog search request failed", err, "")
	}
	if resp.IsError() {
		return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeExternal, "crm rejected catalog search", nil, "",
			map[string]any{"status": resp.StatusCode()})
	}
	return result.Items, nil
}
