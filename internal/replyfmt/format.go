// Package replyfmt builds the Slack message payload for a generated answer.
package replyfmt

import (
	"fmt"
	"strings"

	"github.com/slack-go/slack"
)

const (
	// MaxCitations caps the number of source links attached to a reply.
	MaxCitations = 3

	// ActionHelpful and ActionNotHelpful identify the feedback buttons.
	ActionHelpful    = "answer_feedback_helpful"
	ActionNotHelpful = "answer_feedback_not_helpful"
)

// Citation is a source link rendered under the answer.
type Citation struct {
	Title string
	URL   string
}

// Payload carries both the plain-text fallback and the block layout of a
// reply. Text is used by clients that cannot render blocks.
type Payload struct {
	Text   string
	Blocks []slack.Block
}

// Build assembles the reply for userID. The answer is always rendered; at most
// MaxCitations citations follow it, then the feedback buttons.
func Build(userID, answer string, citations []Citation) Payload {
	answer = strings.TrimSpace(answer)

	greeting := "Here's what I found:"
	if userID != "" {
		greeting = fmt.Sprintf("👋 Hi <@%s>! Here's what I found:", userID)
	}

	blocks := []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, greeting, false, false), nil, nil),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, answer, false, false), nil, nil),
	}

	if lines := citationLines(citations); len(lines) > 0 {
		text := "*Sources*\n" + strings.Join(lines, "\n")
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil))
	}

	blocks = append(blocks, slack.NewActionBlock("answer_feedback",
		slack.NewButtonBlockElement(ActionHelpful, "helpful", slack.NewTextBlockObject(slack.PlainTextType, "Helpful", false, false)),
		slack.NewButtonBlockElement(ActionNotHelpful, "not_helpful", slack.NewTextBlockObject(slack.PlainTextType, "Not Helpful", false, false)),
	))

	return Payload{Text: answer, Blocks: blocks}
}

func citationLines(citations []Citation) []string {
	var lines []string
	for _, c := range citations {
		if len(lines) == MaxCitations {
			break
		}
		url := strings.TrimSpace(c.URL)
		if url == "" {
			continue
		}
		title := strings.TrimSpace(c.Title)
		if title == "" {
			title = url
		}
		lines = append(lines, fmt.Sprintf("• <%s|%s>", url, title))
	}
	return lines
}
