// Package ingestcmd runs one offline ticket ingestion pass.
package ingestcmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/quailyquaily/answerbot/internal/bootstrap"
	"github.com/quailyquaily/answerbot/internal/configutil"
	"github.com/quailyquaily/answerbot/internal/logutil"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Embed helpdesk tickets into the vector index",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			ctx := cmd.Context()
			pipeline, err := bootstrap.NewIngest(ctx, logger)
			if err != nil {
				return err
			}

			maxTickets := configutil.FlagOrViperInt(cmd, "max-tickets", "ingest.max_tickets")
			stats, err := pipeline.Run(ctx, maxTickets)
			if err != nil {
				return err
			}
			logger.Info("ingest_summary",
				"tickets", stats.Tickets,
				"chunks", stats.Chunks,
				"upserted", stats.Upserted,
				"failed_batches", stats.FailedBatches)
			return nil
		},
	}
	cmd.Flags().Int("max-tickets", 0, "Max tickets to ingest (0 uses the default cap of 100).")
	return cmd
}
