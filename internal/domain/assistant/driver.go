package assistant

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"nuvia-server/internal/domain/knowledge"
	"nuvia-server/internal/domain/message"
	"nuvia-server/internal/domain/tenant"
)

// FallbackReply is sent when the model cannot produce an answer. It is
// the only text the engine ever invents on its own.
const FallbackReply = "Lo siento, en este momento tengo problemas para responder. " +
	"Un agente revisará tu mensaje en breve."

// Completer is the slice of the inference client the driver needs.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// AnswerInput is everything one turn hands to the driver.
type AnswerInput struct {
	Config          tenant.Config
	SessionID       uint
	CustomerID      uint
	CustomerAddress string
	Question        string

	// ImageURLs are attachments on the current customer turn, passed
	// to the model as multimodal image parts.
	ImageURLs []string

	History []*message.Message
	Context []*knowledge.ScoredChunk
}

// AnswerResult is the driver's outcome for one turn.
type AnswerResult struct {
	Text string

	// Fallback marks that Text is the canned reply, not model output.
	Fallback bool

	// TicketID is set when the model raised a support ticket during
	// the turn, so the caller can attach it to the session.
	TicketID string
}

// Driver runs the bounded tool-calling protocol: at most two completion
// rounds. Round one advertises the tool schema; if the model calls
// tools, their results feed a second round that advertises no tools, so
// the protocol cannot loop.
type Driver struct {
	completer Completer
	tickets   TicketCreator
	catalog   CatalogSearcher
	log       zerolog.Logger
}

func NewDriver(completer Completer, tickets TicketCreator, catalog CatalogSearcher, log zerolog.Logger) *Driver {
	return &Driver{
		completer: completer,
		tickets:   tickets,
		catalog:   catalog,
		log:       log.With().Str("component", "assistant-driver").Logger(),
	}
}

// Answer produces the reply text for a customer question. It never
// returns an error for model failures; those degrade to FallbackReply
// so the customer always hears something.
func (d *Driver) Answer(ctx context.Context, in AnswerInput) AnswerResult {
	messages := d.buildMessages(in)

	first, err := d.complete(ctx, in.Config, messages, chatTools)
	if err != nil {
		d.log.Error().Err(err).Uint("session_id", in.SessionID).Msg("first completion round failed")
		return AnswerResult{Text: FallbackReply, Fallback: true}
	}

	choice := first.Choices[0].Message
	if len(choice.ToolCalls) == 0 {
		return d.finish(in, choice.Content)
	}

	// Round two: execute the calls and let the model phrase the
	// outcome, with no tools on offer.
	messages = append(messages, choice)
	result := AnswerResult{}
	for _, call := range choice.ToolCalls {
		payload := d.executeTool(ctx, in, call, &result)
		messages = append(messages, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    payload,
			ToolCallID: call.ID,
		})
	}

	second, err := d.complete(ctx, in.Config, messages, nil)
	if err != nil {
		d.log.Error().Err(err).Uint("session_id", in.SessionID).Msg("second completion round failed")
		return AnswerResult{Text: FallbackReply, Fallback: true, TicketID: result.TicketID}
	}

	final := d.finish(in, second.Choices[0].Message.Content)
	final.TicketID = result.TicketID
	return final
}

func (d *Driver) complete(ctx context.Context, cfg tenant.Config, messages []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:               cfg.ChatModel,
		Messages:            messages,
		Temperature:         cfg.Temperature,
		TopP:                cfg.TopP,
		PresencePenalty:     cfg.PresencePenalty,
		FrequencyPenalty:    cfg.FrequencyPenalty,
		MaxCompletionTokens: cfg.MaxCompletionTokens,
	}
	if len(tools) > 0 {
		req.Tools = tools
		req.ToolChoice = "auto"
	}

	resp, err := d.completer.CreateChatCompletion(ctx, req)
	if err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	if len(resp.Choices) == 0 {
		return openai.ChatCompletionResponse{}, errEmptyCompletion
	}
	return resp, nil
}

// executeTool dispatches one tool call. Malformed or unknown calls and
// handler failures all come back as error payloads for the model; they
// never abort the turn.
func (d *Driver) executeTool(ctx context.Context, in AnswerInput, call openai.ToolCall, result *AnswerResult) string {
	switch ToolName(call.Function.Name) {
	case ToolCreateSupportTicket:
		var req TicketRequest
		if err := json.Unmarshal([]byte(call.Function.Arguments), &req); err != nil {
			d.log.Warn().Err(err).Str("tool", call.Function.Name).Msg("malformed tool arguments")
			return toolResultJSON(map[string]string{"error": "argumentos inválidos"})
		}
		req.TenantID = in.Config.TenantID
		req.CustomerID = in.CustomerID
		req.SessionID = in.SessionID
		req.CustomerAddress = in.CustomerAddress

		ticket, err := d.tickets.CreateTicket(ctx, req)
		if err != nil {
			d.log.Error().Err(err).Uint("session_id", in.SessionID).Msg("ticket creation failed")
			return toolResultJSON(map[string]string{"error": "no se pudo crear el ticket, intenta más tarde"})
		}
		result.TicketID = ticket.ID
		return toolResultJSON(map[string]string{"ticket_id": ticket.ID, "folio": ticket.Folio, "estado": ticket.Status})

	case ToolSearchCatalog:
		var args struct {
			Query      string   `json:"consulta"`
			Categories []string `json:"categorias"`
		}
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			d.log.Warn().Err(err).Str("tool", call.Function.Name).Msg("malformed tool arguments")
			return toolResultJSON(map[string]string{"error": "argumentos inválidos"})
		}

		items, err := d.catalog.SearchCatalog(ctx, in.Config.TenantID, args.Query, args.Categories)
		if err != nil {
			d.log.Error().Err(err).Uint("session_id", in.SessionID).Msg("catalog search failed")
			return toolResultJSON(map[string]string{"error": "catálogo no disponible"})
		}
		if len(items) == 0 {
			return toolResultJSON(map[string]string{"resultado": "sin coincidencias"})
		}
		return toolResultJSON(map[string]any{"productos": items})

	default:
		d.log.Warn().Str("tool", call.Function.Name).Msg("model requested unknown tool")
		return toolResultJSON(map[string]string{"error": "función no disponible"})
	}
}

func (d *Driver) buildMessages(in AnswerInput) []openai.ChatCompletionMessage {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: buildSystemPrompt(in.Config, in.Context, len(in.History) > 0)},
	}

	history := in.History
	if window := in.Config.HistoryWindowSize; window > 0 && len(history) > window {
		history = history[len(history)-window:]
	}
	for _, m := range history {
		role := openai.ChatMessageRoleAssistant
		if m.Direction == message.DirectionInbound {
			role = openai.ChatMessageRoleUser
		}
		if m.Direction == message.DirectionInbound && m.Kind == message.ContentKindImage && m.MediaURL != "" {
			messages = append(messages, userMessageWithImages(m.Body, []string{m.MediaURL}))
			continue
		}
		if m.Body == "" {
			continue
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Body})
	}

	if len(in.ImageURLs) > 0 {
		return append(messages, userMessageWithImages(in.Question, in.ImageURLs))
	}
	return append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: in.Question,
	})
}

// userMessageWithImages builds a multimodal user message: optional text
// part followed by one image part per URL.
func userMessageWithImages(text string, urls []string) openai.ChatCompletionMessage {
	parts := make([]openai.ChatMessagePart, 0, len(urls)+1)
	if text != "" {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: text,
		})
	}
	for _, url := range urls {
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: url},
		})
	}
	return openai.ChatCompletionMessage{
		Role:         openai.ChatMessageRoleUser,
		MultiContent: parts,
	}
}

func (d *Driver) finish(in AnswerInput, content string) AnswerResult {
	if content == "" {
		d.log.Warn().Uint("session_id", in.SessionID).Msg("model returned empty content")
		return AnswerResult{Text: FallbackReply, Fallback: true}
	}
	return AnswerResult{Text: content}
}
