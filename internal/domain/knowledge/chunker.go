package knowledge

import "strings"

const (
	chunkTargetSize = 800
	chunkMinSize    = 200
)

// SplitContent cuts document text into retrieval-sized fragments. It
// prefers paragraph boundaries, falls back to sentence boundaries when
// a paragraph runs long, and merges trailing fragments shorter than
// chunkMinSize into their predecessor.
func SplitContent(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var pieces []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) <= chunkTargetSize {
			pieces = append(pieces, para)
			continue
		}
		pieces = append(pieces, splitLongParagraph(para)...)
	}

	return mergeShort(pieces)
}

// EstimateTokens approximates the token count of a fragment at four
// characters per token, rounded.
func EstimateTokens(text string) int {
	return (len(text) + 2) / 4
}

func splitLongParagraph(para string) []string {
	var out []string
	var current strings.Builder
	for _, sentence := range splitSentences(para) {
		if current.Len() > 0 && current.Len()+len(sentence) > chunkTargetSize {
			out = append(out, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(sentence)
		current.WriteByte(' ')
	}
	if current.Len() > 0 {
		out = append(out, strings.TrimSpace(current.String()))
	}
	return out
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '?' || r == '!' {
			end := i + 1
			if end < len(text) && text[end] == ' ' {
				out = append(out, text[start:end])
				start = end + 1
			}
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

func mergeShort(pieces []string) []string {
	var out []string
	for _, p := range pieces {
		if len(out) > 0 && len(p) < chunkMinSize {
			out[len(out)-1] = out[len(out)-1] + "\n\n" + p
			continue
		}
		out = append(out, p)
	}
	return out
}
