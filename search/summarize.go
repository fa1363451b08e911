package search

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/samber/lo"
)

const (
	MsgSearchError = "I couldn't perform the search. Please try again later."
	MsgNoResults   = "No results found."

	summaryPrompt = "Summarize this in one sentence: "
)

// TextDescriber answers a prompt, absorbing its own failures.
type TextDescriber interface {
	DescribeText(ctx context.Context, prompt string) string
}

// SummaryLine pairs a result with its one-sentence summary.
type SummaryLine struct {
	Title   string
	Link    string
	Summary string
}

// Summarizer turns search results into a markdown digest.
type Summarizer struct {
	searcher  Searcher
	describer TextDescriber
	limit     int
}

// NewSummarizer returns a Summarizer. limit <= 0 selects DefaultLimit.
func NewSummarizer(searcher Searcher, describer TextDescriber, limit int) *Summarizer {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Summarizer{searcher: searcher, describer: describer, limit: limit}
}

// Search runs query and returns the digest, or MsgSearchError when the
// backend fails.
func (s *Summarizer) Search(ctx context.Context, query string) string {
	results, err := s.searcher.Search(ctx, query, s.limit)
	if err != nil {
		slog.Error("search: retrieval failed", "query", query, "error", err)
		return MsgSearchError
	}
	return s.Summarize(ctx, query, results, s.limit)
}

// Summarize condenses the first limit results, in order. limit <= 0 keeps
// every result.
func (s *Summarizer) Summarize(ctx context.Context, query string, results []Result, limit int) string {
	if limit > 0 {
		results = lo.Slice(results, 0, limit)
	}

	lines := lo.Map(results, func(r Result, _ int) SummaryLine {
		summary := s.describer.DescribeText(ctx, summaryPrompt+r.Snippet)
		return SummaryLine{
			Title:   r.Title,
			Link:    r.Link,
			Summary: oneLine(summary),
		}
	})
	return Render(query, lines)
}

// oneLine collapses runs of whitespace, newlines included, so each summary
// stays on its bullet.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Render formats summary lines as the digest text.
func Render(query string, lines []SummaryLine) string {
	md := markdown.NewMarkdown(io.Discard)
	md.PlainTextf("Here's a summary of the top search results for '%s':", query)
	md.PlainText("")

	if len(lines) == 0 {
		md.PlainText(MsgNoResults)
	} else {
		md.BulletList(lo.Map(lines, func(l SummaryLine, _ int) string {
			return fmt.Sprintf("%s: %s", markdown.Link(l.Title, l.Link), l.Summary)
		})...)
	}

	return strings.TrimRight(md.String(), "\n")
}
