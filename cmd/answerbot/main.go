package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quailyquaily/answerbot/cmd/answerbot/askcmd"
	"github.com/quailyquaily/answerbot/cmd/answerbot/ingestcmd"
	"github.com/quailyquaily/answerbot/cmd/answerbot/servecmd"
	"github.com/quailyquaily/answerbot/cmd/answerbot/socketcmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "answerbot",
		Short:         "Slack support bot that answers mentions from past tickets and help-center articles",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			return initConfig(cfgPath)
		},
	}
	root.PersistentFlags().String("config", "", "Config file path (default: ./answerbot.yaml if present).")

	root.AddCommand(servecmd.NewCommand())
	root.AddCommand(socketcmd.NewCommand())
	root.AddCommand(ingestcmd.NewCommand())
	root.AddCommand(askcmd.NewCommand())
	return root
}

func initConfig(cfgPath string) error {
	viper.SetEnvPrefix("ANSWERBOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()

	if cfgPath = strings.TrimSpace(cfgPath); cfgPath != "" {
		viper.SetConfigFile(cfgPath)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgPath, err)
		}
		return nil
	}

	viper.SetConfigName("answerbot")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("listen", ":8080")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("openai.chat_model", "gpt-4o")
	viper.SetDefault("openai.embed_model", "text-embedding-3-small")
	viper.SetDefault("vector.collection", "zendesk_embeddings")
	viper.SetDefault("vector.dim", 1536)
	viper.SetDefault("retrieval.top_k", 5)
	viper.SetDefault("answer.temperature", 0.3)
	viper.SetDefault("dedup.ttl", "5m")
	viper.SetDefault("pipeline.timeout", "60s")
	viper.SetDefault("ingest.chunk_tokens", 800)
	viper.SetDefault("ingest.batch_size", 100)
}
