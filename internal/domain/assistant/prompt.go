package assistant

import (
	"strings"

	"nuvia-server/internal/domain/knowledge"
	"nuvia-server/internal/domain/tenant"
)

const defaultSystemPrompt = "Eres un asistente de atención a clientes. Responde de forma breve, " +
	"amable y en el idioma del cliente. Si no sabes la respuesta, dilo con honestidad."

const defaultOutputStyle = "Responde en texto plano, sin markdown ni listas numeradas. " +
	"Máximo tres oraciones por respuesta."

const defaultHistoryPrompt = "Mantén coherencia con lo ya dicho en la conversación, " +
	"pero no repitas textualmente todo el historial."

// buildSystemPrompt assembles the per-turn system instruction from the
// tenant's prompt blocks and the retrieved knowledge context. The
// history instructions are only included when prior turns exist.
func buildSystemPrompt(cfg tenant.Config, chunks []*knowledge.ScoredChunk, hasHistory bool) string {
	var b strings.Builder

	persona := cfg.SystemPrompt
	if persona == "" {
		persona = defaultSystemPrompt
	}
	b.WriteString(persona)

	if len(chunks) > 0 {
		b.WriteString("\n\n")
		header := cfg.ContextPrompt
		if header == "" {
			header = "Información de la empresa relevante para esta conversación:"
		}
		b.WriteString(header)
		for _, c := range chunks {
			b.WriteString("\n- ")
			b.WriteString(strings.TrimSpace(c.Content))
		}
		b.WriteString("\n\nUsa únicamente esta información para responder preguntas sobre la empresa. " +
			"Si la información no cubre la pregunta, dilo.")
	}

	if hasHistory {
		historyNote := cfg.HistoryPrompt
		if historyNote == "" {
			historyNote = defaultHistoryPrompt
		}
		b.WriteString("\n\n")
		b.WriteString(historyNote)
	}

	style := cfg.OutputStyle
	if style == "" {
		style = defaultOutputStyle
	}
	b.WriteString("\n\n")
	b.WriteString(style)

	return b.String()
}
