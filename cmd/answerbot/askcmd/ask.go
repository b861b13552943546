// Package askcmd answers one question on the terminal, without Slack.
package askcmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quailyquaily/answerbot/internal/answer"
	"github.com/quailyquaily/answerbot/internal/bootstrap"
	"github.com/quailyquaily/answerbot/internal/logutil"
)

func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question from the terminal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return fmt.Errorf("question is empty")
			}

			ctx := cmd.Context()
			retriever, generator, err := bootstrap.NewAnswering(ctx, logger)
			if err != nil {
				return err
			}

			items := retriever.Retrieve(ctx, question)
			contextItems := make([]answer.ContextItem, 0, len(items))
			for _, item := range items {
				contextItems = append(contextItems, answer.ContextItem{URL: item.URL, Body: item.Body})
			}
			generated := generator.Generate(ctx, question, contextItems)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, generated.Text)
			if generated.Grounded {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Sources:")
				seen := make(map[string]bool)
				for _, item := range items {
					url := strings.TrimSpace(item.URL)
					if url == "" || seen[url] {
						continue
					}
					seen[url] = true
					fmt.Fprintf(out, "- %s (%s)\n", item.Title, url)
				}
			}
			return nil
		},
	}
}
