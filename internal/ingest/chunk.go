package ingest

import (
	"regexp"
	"strings"
)

// DefaultChunkTokens caps the approximate token count per chunk. Tokens are
// estimated as len/4, which tracks the embedding tokenizer closely enough for
// budgeting.
const DefaultChunkTokens = 800

var sentenceEnd = regexp.MustCompile(`([.!?])\s+`)

// ChunkText splits text into chunks of at most maxTokens approximate tokens,
// breaking on sentence boundaries where possible. A single sentence longer
// than the budget becomes its own chunk rather than being split mid-sentence.
func ChunkText(text string, maxTokens int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxTokens <= 0 {
		maxTokens = DefaultChunkTokens
	}
	maxChars := maxTokens * 4
	if len(text) <= maxChars {
		return []string{text}
	}

	sentences := splitSentences(text)
	var chunks []string
	var current strings.Builder
	for _, s := range sentences {
		if current.Len() > 0 && current.Len()+1+len(s) > maxChars {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(s)
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}

func splitSentences(text string) []string {
	marked := sentenceEnd.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
