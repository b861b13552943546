// Package socketcmd runs the Socket Mode transport for deployments without a
// public events endpoint.
package socketcmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quailyquaily/answerbot/internal/bootstrap"
	"github.com/quailyquaily/answerbot/internal/logutil"
	"github.com/quailyquaily/answerbot/internal/socket"
)

func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "socket",
		Short: "Consume mentions over Slack Socket Mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			appToken := strings.TrimSpace(viper.GetString("slack.app_token"))
			if appToken == "" {
				return fmt.Errorf("missing slack.app_token (set ANSWERBOT_SLACK_APP_TOKEN)")
			}

			ctx := cmd.Context()
			pipeline, err := bootstrap.NewPipeline(ctx, logger)
			if err != nil {
				return err
			}
			consumer, err := socket.NewConsumer(socket.ConsumerOptions{
				AppToken: appToken,
				Sink:     pipeline,
				Timeout:  viper.GetDuration("pipeline.timeout"),
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			return consumer.Run(ctx)
		},
	}
}
