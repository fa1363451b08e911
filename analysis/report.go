package analysis

import (
	"fmt"
	"strings"
)

// Fixed user-facing messages.
const (
	MsgUnsupported = "Unsupported file type. Please upload an image or PDF file."
	MsgFetchError  = "There was an error processing the file. Please try again later."
	MsgPDFError    = "There was an error processing the PDF. Please ensure it is a valid PDF file."
	MsgEmpty       = "No text or images found."
)

// FileReference points at an uploaded file. An empty DeclaredContentType
// means the transport did not supply one.
type FileReference struct {
	URL                 string `json:"url"`
	DeclaredContentType string `json:"content_type,omitempty"`
}

// AnalysisResult is one labelled piece of a report.
type AnalysisResult struct {
	Label   string `json:"label"`
	Content string `json:"content"`
}

// Report is the outcome of analysing one file. Message carries a whole-file
// answer (image description or fixed error text); Results carries the
// per-unit entries of a document.
type Report struct {
	Kind    Kind             `json:"kind"`
	Results []AnalysisResult `json:"results,omitempty"`
	Message string           `json:"message,omitempty"`
}

func (r *Report) add(label, content string) {
	r.Results = append(r.Results, AnalysisResult{Label: label, Content: content})
}

// String renders the report as the single reply text.
func (r Report) String() string {
	if r.Message != "" {
		return r.Message
	}
	if len(r.Results) == 0 {
		return MsgEmpty
	}
	parts := make([]string, len(r.Results))
	for i, res := range r.Results {
		parts[i] = fmt.Sprintf("%s:\n%s\n", res.Label, res.Content)
	}
	return strings.Join(parts, "\n")
}

func pageTextLabel(page int) string {
	return fmt.Sprintf("Page %d Text", page)
}

func pageImageLabel(page, image int) string {
	return fmt.Sprintf("Page %d, Image %d Analysis", page, image)
}
