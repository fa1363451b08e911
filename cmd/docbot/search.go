package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/docbot"
)

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search the web and summarise the top results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(cmd, func(a docbot.Assistant) string {
				return a.WebSearch(cmd.Context(), strings.Join(args, " "))
			})
		},
	}
}

// NewAskCmd creates the ask command.
func NewAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <text>",
		Short: "Ask the assistant a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(cmd, func(a docbot.Assistant) string {
				return a.Reply(cmd.Context(), 0, strings.Join(args, " "))
			})
		},
	}
}

// runOneShot builds an assistant without history, prints fn's answer and
// closes it.
func runOneShot(cmd *cobra.Command, fn func(docbot.Assistant) string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	assistant, err := newAssistant(cfg, docbot.WithoutHistory())
	if err != nil {
		return fmt.Errorf("creating assistant: %w", err)
	}
	defer assistant.Close()

	fmt.Fprintln(cmd.OutOrStdout(), fn(assistant))
	return nil
}
