// Package servecmd runs the HTTP events endpoint.
package servecmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quailyquaily/answerbot/internal/bootstrap"
	"github.com/quailyquaily/answerbot/internal/configutil"
	"github.com/quailyquaily/answerbot/internal/events"
	"github.com/quailyquaily/answerbot/internal/logutil"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Slack Events API endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			ctx := cmd.Context()
			pipeline, err := bootstrap.NewPipeline(ctx, logger)
			if err != nil {
				return err
			}
			handler, err := events.NewHandler(events.HandlerOptions{
				Pipeline: pipeline,
				Timeout:  viper.GetDuration("pipeline.timeout"),
				Logger:   logger,
			})
			if err != nil {
				return err
			}

			listen := strings.TrimSpace(configutil.FlagOrViperString(cmd, "listen", "listen"))
			if listen == "" {
				listen = ":8080"
			}

			mux := http.NewServeMux()
			mux.Handle("/slack/events", handler)
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok"))
			})

			httpSrv := &http.Server{
				Addr:              listen,
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
			}

			logger.Info("events_server_start", "listen", listen)
			errCh := make(chan error, 1)
			go func() { errCh <- httpSrv.ListenAndServe() }()

			select {
			case <-ctx.Done():
				logger.Info("events_server_stop", "reason", "context_canceled")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return httpSrv.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}
	cmd.Flags().String("listen", ":8080", "Listen address for the events endpoint.")
	return cmd
}
