package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/docbot"
	"github.com/brunobiangulo/docbot/analysis"
)

// NewAnalyzeCmd creates the analyze command.
func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <url|path>",
		Short: "Describe an image or PDF document",
		Long: `Describe an image or PDF document. The argument is downloaded when it is
an http(s) URL and read from disk otherwise.`,
		Example: `  docbot analyze https://example.com/report.pdf
  docbot analyze ./photo.png
  docbot analyze https://example.com/file_7 --content-type image/jpeg`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyze,
	}
	cmd.Flags().String("content-type", "", "Declared content type, used when the server's is missing or generic")
	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	contentType, _ := cmd.Flags().GetString("content-type")

	assistant, err := newAssistant(cfg, docbot.WithoutHistory())
	if err != nil {
		return fmt.Errorf("creating assistant: %w", err)
	}
	defer assistant.Close()

	target := args[0]
	var out string
	if isRemote(target) {
		ref := analysis.FileReference{URL: target, DeclaredContentType: contentType}
		out = assistant.AnalyzeFile(cmd.Context(), 0, ref, filepath.Base(target))
	} else {
		data, err := os.ReadFile(target)
		if err != nil {
			return fmt.Errorf("reading %s: %w", target, err)
		}
		out = assistant.AnalyzeData(cmd.Context(), data, contentType, filepath.Base(target))
	}

	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func isRemote(target string) bool {
	lower := strings.ToLower(target)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
