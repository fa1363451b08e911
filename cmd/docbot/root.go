package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/brunobiangulo/docbot"
)

// newAssistant is replaced in tests.
var newAssistant = docbot.New

// NewRootCmd creates the root command for docbot.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docbot",
		Short: "Chat assistant for images, PDF documents and web search",
		Long: `docbot describes images and PDF documents with a vision model, answers
questions and summarises web searches. It runs as a Telegram bot and JSON
HTTP API (serve) or as one-shot commands.

Configuration is read from --config (YAML or JSON), then from the
environment. A .env file in the working directory is loaded first.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("loading .env: %w", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Path to config file (YAML or JSON)")
	cmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewAnalyzeCmd())
	cmd.AddCommand(NewSearchCmd())
	cmd.AddCommand(NewAskCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration named by --config and installs the
// JSON logger on the command's error stream.
func loadConfig(cmd *cobra.Command) (docbot.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := docbot.LoadConfig(path)
	if err != nil {
		return cfg, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	setupLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	return cfg, nil
}

func setupLogger(w io.Writer, level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})))
}
