// Package answer turns a support question plus retrieved context into a
// reply. Generation never fails outward: any transport or model problem
// degrades to a fixed apology so the thread is never left silent.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Fallback is the defined degraded output, returned when the model is
// unreachable or answers with nothing.
const Fallback = "Sorry, I couldn't find an answer to that. Please reach out to the support team and a human will pick this up."

const defaultTemperature = 0.3

type ChatFunc func(ctx context.Context, system, user string, temperature float64) (string, error)

type Generated struct {
	Text string
	// Grounded reports whether the answer came back on top of retrieved
	// context; ungrounded answers are the fallback or a "not sure" reply.
	Grounded bool
}

// ContextItem is the slice of a retrieved item the prompt needs.
type ContextItem struct {
	URL  string
	Body string
}

type GeneratorOptions struct {
	Chat ChatFunc
	// Domain names the knowledge area the system prompt scopes the model to,
	// e.g. "MutinyHQ support tickets and help-center articles".
	Domain      string
	Temperature float64
	Logger      *slog.Logger
}

type Generator struct {
	chat        ChatFunc
	domain      string
	temperature float64
	logger      *slog.Logger
}

func NewGenerator(opts GeneratorOptions) (*Generator, error) {
	if opts.Chat == nil {
		return nil, fmt.Errorf("chat func is required")
	}
	domain := strings.TrimSpace(opts.Domain)
	if domain == "" {
		domain = "historical support tickets and help-center articles"
	}
	temperature := opts.Temperature
	if temperature <= 0 || temperature > 0.4 {
		temperature = defaultTemperature
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		chat:        opts.Chat,
		domain:      domain,
		temperature: temperature,
		logger:      logger,
	}, nil
}

// Generate asks the model for an answer grounded in items. It always
// returns a usable Generated value, never an error.
func (g *Generator) Generate(ctx context.Context, question string, items []ContextItem) Generated {
	if g == nil || g.chat == nil {
		return Generated{Text: Fallback}
	}
	text, err := g.chat(ctx, g.systemPrompt(), userPrompt(question, items), g.temperature)
	if err != nil {
		g.logger.Warn("generate_error", "error", err.Error())
		return Generated{Text: Fallback}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		g.logger.Warn("generate_empty_response")
		return Generated{Text: Fallback}
	}
	return Generated{Text: text, Grounded: len(items) > 0}
}

func (g *Generator) systemPrompt() string {
	return strings.Join([]string{
		"You are a support assistant answering questions about " + g.domain + ".",
		"Use only the context provided. Cite the numbered sources you relied on in your answer.",
		"If the context does not contain the answer, say \"I'm not sure\" and suggest contacting the support team. Never invent an answer.",
	}, "\n")
}

func userPrompt(question string, items []ContextItem) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n\nContext:\n")
	if len(items) == 0 {
		b.WriteString("(no context retrieved)")
		return b.String()
	}
	for i, item := range items {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		fmt.Fprintf(&b, "Source #%d (%s):\n%s", i+1, item.URL, item.Body)
	}
	return b.String()
}
