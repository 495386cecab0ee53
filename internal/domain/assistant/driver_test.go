package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nuvia-server/internal/domain/knowledge"
	"nuvia-server/internal/domain/message"
	"nuvia-server/internal/domain/tenant"
	"nuvia-server/internal/infrastructure/logger"
)

type scriptedCompleter struct {
	responses []openai.ChatCompletionResponse
	errs      []error
	requests  []openai.ChatCompletionRequest
}

func (c *scriptedCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	i := len(c.requests)
	c.requests = append(c.requests, req)
	if i < len(c.errs) && c.errs[i] != nil {
		return openai.ChatCompletionResponse{}, c.errs[i]
	}
	if i < len(c.responses) {
		return c.responses[i], nil
	}
	return openai.ChatCompletionResponse{}, errors.New("unscripted completion call")
}

func textResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
		},
	}
}

func toolCallResponse(name, id, args string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{
					{
						ID:       id,
						Type:     openai.ToolTypeFunction,
						Function: openai.FunctionCall{Name: name, Arguments: args},
					},
				},
			}},
		},
	}
}

type fakeTickets struct {
	ticket *Ticket
	err    error
	got    []TicketRequest
}

func (f *fakeTickets) CreateTicket(_ context.Context, req TicketRequest) (*Ticket, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.ticket, nil
}

type fakeCatalog struct {
	items          []CatalogItem
	err            error
	gotQuery       string
	gotCategories  []string
}

func (f *fakeCatalog) SearchCatalog(_ context.Context, _ uint, query string, categories []string) ([]CatalogItem, error) {
	f.gotQuery = query
	f.gotCategories = categories
	return f.items, f.err
}

func testConfig() tenant.Config {
	return tenant.Config{
		TenantID:            1,
		ChatModel:           "accounts/fireworks/models/gpt-oss-120b",
		Temperature:         0.3,
		TopP:                0.9,
		MaxCompletionTokens: 512,
		HistoryWindowSize:   4,
	}
}

func newTestDriver(c Completer, tickets TicketCreator, catalog CatalogSearcher) *Driver {
	if tickets == nil {
		tickets = &fakeTickets{}
	}
	if catalog == nil {
		catalog = &fakeCatalog{}
	}
	return NewDriver(c, tickets, catalog, logger.GetLogger())
}

func TestAnswerPlainText(t *testing.T) {
	completer := &scriptedCompleter{responses: []openai.ChatCompletionResponse{
		textResponse("Abrimos de 9 a 18 horas."),
	}}
	d := newTestDriver(completer, nil, nil)

	res := d.Answer(context.Background(), AnswerInput{
		Config:   testConfig(),
		Question: "¿A qué hora abren?",
	})

	assert.Equal(t, "Abrimos de 9 a 18 horas.", res.Text)
	assert.False(t, res.Fallback)
	require.Len(t, completer.requests, 1)
	assert.NotEmpty(t, completer.requests[0].Tools)
	assert.Equal(t, "auto", completer.requests[0].ToolChoice)
}

func TestAnswerTwoRoundsWithTicket(t *testing.T) {
	completer := &scriptedCompleter{responses: []openai.ChatCompletionResponse{
		toolCallResponse("create_support_ticket", "call_1", `{"asunto":"Pedido dañado","descripcion":"El paquete llegó roto"}`),
		textResponse("Ya levanté tu ticket, folio TK-99."),
	}}
	tickets := &fakeTickets{ticket: &Ticket{ID: "t-1", Folio: "TK-99", Status: "abierto"}}
	d := newTestDriver(completer, tickets, nil)

	res := d.Answer(context.Background(), AnswerInput{
		Config:          testConfig(),
		SessionID:       7,
		CustomerID:      10,
		CustomerAddress: "5215550001111",
		Question:        "Mi paquete llegó roto, quiero levantar una queja",
	})

	assert.Equal(t, "Ya levanté tu ticket, folio TK-99.", res.Text)
	assert.Equal(t, "t-1", res.TicketID)

	require.Len(t, tickets.got, 1)
	assert.Equal(t, uint(1), tickets.got[0].TenantID)
	assert.Equal(t, uint(7), tickets.got[0].SessionID)
	assert.Equal(t, "Pedido dañado", tickets.got[0].Subject)

	// The protocol is bounded: round two must not offer tools.
	require.Len(t, completer.requests, 2)
	assert.Empty(t, completer.requests[1].Tools)
	assert.Nil(t, completer.requests[1].ToolChoice)

	// The tool result rides back as a tool-role message.
	last := completer.requests[1].Messages[len(completer.requests[1].Messages)-1]
	assert.Equal(t, openai.ChatMessageRoleTool, last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Contains(t, last.Content, "TK-99")
}

func TestAnswerMalformedToolArguments(t *testing.T) {
	completer := &scriptedCompleter{responses: []openai.ChatCompletionResponse{
		toolCallResponse("create_support_ticket", "call_1", `{"asunto": `),
		textResponse("No pude levantar el ticket, ¿me repites el problema?"),
	}}
	tickets := &fakeTickets{ticket: &Ticket{ID: "t-1"}}
	d := newTestDriver(completer, tickets, nil)

	res := d.Answer(context.Background(), AnswerInput{Config: testConfig(), Question: "queja"})

	assert.Empty(t, tickets.got, "handler must not run on malformed arguments")
	assert.Empty(t, res.TicketID)
	assert.False(t, res.Fallback)

	last := completer.requests[1].Messages[len(completer.requests[1].Messages)-1]
	assert.Contains(t, last.Content, "argumentos inválidos")
}

func TestAnswerToolFailureFeedsErrorPayload(t *testing.T) {
	completer := &scriptedCompleter{responses: []openai.ChatCompletionResponse{
		toolCallResponse("create_support_ticket", "call_1", `{"asunto":"a","descripcion":"b"}`),
		textResponse("Hubo un problema con el sistema de tickets, lo intento más tarde."),
	}}
	tickets := &fakeTickets{err: errors.New("crm 503")}
	d := newTestDriver(completer, tickets, nil)

	res := d.Answer(context.Background(), AnswerInput{Config: testConfig(), Question: "queja"})

	assert.Empty(t, res.TicketID)
	last := completer.requests[1].Messages[len(completer.requests[1].Messages)-1]
	assert.Contains(t, last.Content, "error")
}

func TestAnswerUnknownToolIgnored(t *testing.T) {
	completer := &scriptedCompleter{responses: []openai.ChatCompletionResponse{
		toolCallResponse("delete_database", "call_1", `{}`),
		textResponse("¿En qué más puedo ayudarte?"),
	}}
	d := newTestDriver(completer, nil, nil)

	res := d.Answer(context.Background(), AnswerInput{Config: testConfig(), Question: "hola"})

	assert.Equal(t, "¿En qué más puedo ayudarte?", res.Text)
	last := completer.requests[1].Messages[len(completer.requests[1].Messages)-1]
	assert.Contains(t, last.Content, "función no disponible")
}

func TestAnswerFallbackOnCompletionError(t *testing.T) {
	completer := &scriptedCompleter{errs: []error{errors.New("timeout")}}
	d := newTestDriver(completer, nil, nil)

	res := d.Answer(context.Background(), AnswerInput{Config: testConfig(), Question: "hola"})

	assert.True(t, res.Fallback)
	assert.Equal(t, FallbackReply, res.Text)
}

func TestAnswerFallbackOnSecondRoundError(t *testing.T) {
	completer := &scriptedCompleter{
		responses: []openai.ChatCompletionResponse{
			toolCallResponse("create_support_ticket", "call_1", `{"asunto":"a","descripcion":"b"}`),
		},
		errs: []error{nil, errors.New("timeout")},
	}
	tickets := &fakeTickets{ticket: &Ticket{ID: "t-1"}}
	d := newTestDriver(completer, tickets, nil)

	res := d.Answer(context.Background(), AnswerInput{Config: testConfig(), Question: "queja"})

	assert.True(t, res.Fallback)
	// The ticket was still created; the caller must learn about it.
	assert.Equal(t, "t-1", res.TicketID)
}

func TestAnswerFallbackOnEmptyContent(t *testing.T) {
	completer := &scriptedCompleter{responses: []openai.ChatCompletionResponse{textResponse("")}}
	d := newTestDriver(completer, nil, nil)

	res := d.Answer(context.Background(), AnswerInput{Config: testConfig(), Question: "hola"})
	assert.True(t, res.Fallback)
}

func TestBuildMessagesWindowsHistory(t *testing.T) {
	completer := &scriptedCompleter{responses: []openai.ChatCompletionResponse{textResponse("ok")}}
	d := newTestDriver(completer, nil, nil)

	var history []*message.Message
	for i := 0; i < 10; i++ {
		dir := message.DirectionInbound
		if i%2 == 1 {
			dir = message.DirectionOutbound
		}
		history = append(history, &message.Message{Direction: dir, Body: "m"})
	}

	d.Answer(context.Background(), AnswerInput{
		Config:   testConfig(), // window of 4
		Question: "pregunta",
		History:  history,
	})

	req := completer.requests[0]
	// system + 4 history + current question
	require.Len(t, req.Messages, 6)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, "pregunta", req.Messages[len(req.Messages)-1].Content)
}

func TestSystemPromptCarriesKnowledgeContext(t *testing.T) {
	completer := &scriptedCompleter{responses: []openai.ChatCompletionResponse{textResponse("ok")}}
	d := newTestDriver(completer, nil, nil)

	d.Answer(context.Background(), AnswerInput{
		Config:   testConfig(),
		Question: "horario",
		Context: []*knowledge.ScoredChunk{
			{Chunk: knowledge.Chunk{Content: "Horario: lunes a viernes de 9 a 18."}, Distance: 0.2},
		},
	})

	system := completer.requests[0].Messages[0].Content
	assert.Contains(t, system, "Horario: lunes a viernes de 9 a 18.")
}

func TestImageAttachmentBecomesMultimodalPart(t *testing.T) {
	completer := &scriptedCompleter{responses: []openai.ChatCompletionResponse{textResponse("veo el recibo")}}
	d := newTestDriver(completer, nil, nil)

	d.Answer(context.Background(), AnswerInput{
		Config:    testConfig(),
		Question:  "¿este es el comprobante correcto?",
		ImageURLs: []string{"https://cdn.example.com/recibo.jpg"},
	})

	last := completer.requests[0].Messages[len(completer.requests[0].Messages)-1]
	assert.Equal(t, openai.ChatMessageRoleUser, last.Role)
	require.Len(t, last.MultiContent, 2)
	assert.Equal(t, openai.ChatMessagePartTypeText, last.MultiContent[0].Type)
	assert.Equal(t, "¿este es el comprobante correcto?", last.MultiContent[0].Text)
	assert.Equal(t, openai.ChatMessagePartTypeImageURL, last.MultiContent[1].Type)
	assert.Equal(t, "https://cdn.example.com/recibo.jpg", last.MultiContent[1].ImageURL.URL)
}

func TestHistoryImageTurnsKeepTheirAttachment(t *testing.T) {
	completer := &scriptedCompleter{responses: []openai.ChatCompletionResponse{textResponse("ok")}}
	d := newTestDriver(completer, nil, nil)

	d.Answer(context.Background(), AnswerInput{
		Config:   testConfig(),
		Question: "¿y ese modelo cuánto cuesta?",
		History: []*message.Message{
			{Direction: message.DirectionInbound, Kind: message.ContentKindImage,
				Body: "¿tienen este?", MediaURL: "https://cdn.example.com/foto.jpg"},
			{Direction: message.DirectionOutbound, Kind: message.ContentKindText, Body: "Sí, lo manejamos."},
		},
	})

	msgs := completer.requests[0].Messages
	// system + image turn + assistant turn + current question
	require.Len(t, msgs, 4)
	require.Len(t, msgs[1].MultiContent, 2)
	assert.Equal(t, openai.ChatMessagePartTypeImageURL, msgs[1].MultiContent[1].Type)
	assert.Equal(t, "Sí, lo manejamos.", msgs[2].Content)
}

func TestSystemPromptCarriesHistoryInstructions(t *testing.T) {
	completer := &scriptedCompleter{responses: []openai.ChatCompletionResponse{textResponse("ok")}}
	d := newTestDriver(completer, nil, nil)

	cfg := testConfig()
	cfg.HistoryPrompt = "Si el cliente ya dio su número de pedido, no lo pidas de nuevo."

	d.Answer(context.Background(), AnswerInput{
		Config:   cfg,
		Question: "¿ya salió mi pedido?",
		History: []*message.Message{
			{Direction: message.DirectionInbound, Body: "mi pedido es el A-102"},
		},
	})

	system := completer.requests[0].Messages[0].Content
	assert.Contains(t, system, "no lo pidas de nuevo")
}

func TestSystemPromptSkipsHistoryInstructionsOnFirstTurn(t *testing.T) {
	completer := &scriptedCompleter{responses: []openai.ChatCompletionResponse{textResponse("ok")}}
	d := newTestDriver(completer, nil, nil)

	cfg := testConfig()
	cfg.HistoryPrompt = "Si el cliente ya dio su número de pedido, no lo pidas de nuevo."

	d.Answer(context.Background(), AnswerInput{Config: cfg, Question: "hola, ¿qué venden?"})

	system := completer.requests[0].Messages[0].Content
	assert.NotContains(t, system, "no lo pidas de nuevo")
}

func TestCatalogSearchPassesCategories(t *testing.T) {
	completer := &scriptedCompleter{responses: []openai.ChatCompletionResponse{
		toolCallResponse(string(ToolSearchCatalog), "call-1",
			`{"consulta":"taladro","categorias":["herramientas","eléctrico"]}`),
		textResponse("Tenemos dos taladros disponibles."),
	}}
	catalog := &fakeCatalog{items: []CatalogItem{{Name: "Taladro X", Available: true}}}
	d := newTestDriver(completer, nil, catalog)

	res := d.Answer(context.Background(), AnswerInput{Config: testConfig(), Question: "¿tienen taladros?"})

	assert.Equal(t, "Tenemos dos taladros disponibles.", res.Text)
	assert.Equal(t, "taladro", catalog.gotQuery)
	assert.Equal(t, []string{"herramientas", "eléctrico"}, catalog.gotCategories)
}
