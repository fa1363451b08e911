// Package analysis routes uploaded files to the right extraction path and
// assembles the per-unit model output into one report.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/brunobiangulo/docbot/document"
)

// ErrUnsupportedType is returned by Route for files that are neither
// images nor PDFs.
var ErrUnsupportedType = errors.New("analysis: unsupported file type")

// Fetcher downloads a file, returning its bytes and server content type.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (data []byte, contentType string, err error)
}

// ImageAnalyzer describes raw image bytes. It never fails; failures come
// back as fallback text.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, raw []byte) string
}

// DocumentOpener opens PDF bytes.
type DocumentOpener interface {
	Open(data []byte) (*document.Document, error)
}

// Analyzer runs the file analysis pipeline.
type Analyzer struct {
	fetcher   Fetcher
	describer ImageAnalyzer
	opener    DocumentOpener
}

// NewAnalyzer wires the pipeline. opener may be nil for the default PDF
// extractor.
func NewAnalyzer(fetcher Fetcher, describer ImageAnalyzer, opener DocumentOpener) *Analyzer {
	if opener == nil {
		opener = document.NewExtractor()
	}
	return &Analyzer{fetcher: fetcher, describer: describer, opener: opener}
}

// Route classifies a file, returning ErrUnsupportedType when it cannot be
// analysed.
func Route(contentType, fileURL string) (Kind, error) {
	kind := Classify(contentType, fileURL)
	if kind == KindUnsupported {
		return kind, fmt.Errorf("%w: content type %q", ErrUnsupportedType, contentType)
	}
	return kind, nil
}

// AnalyzeFile downloads ref and analyses it. The server's Content-Type
// wins over the declared one unless it is missing or generic.
func (a *Analyzer) AnalyzeFile(ctx context.Context, ref FileReference) Report {
	log := slog.With("request_id", uuid.NewString())

	data, contentType, err := a.fetcher.Fetch(ctx, ref.URL)
	if err != nil {
		log.Error("analysis: fetch failed", "error", err)
		return Report{Kind: KindUnsupported, Message: MsgFetchError}
	}
	if mediaType(contentType) == "" || mediaType(contentType) == "application/octet-stream" {
		if ref.DeclaredContentType != "" {
			contentType = ref.DeclaredContentType
		}
	}

	kind, err := Route(contentType, ref.URL)
	if err != nil {
		log.Info("analysis: rejected file", "error", err)
		return Report{Kind: kind, Message: MsgUnsupported}
	}

	log.Info("analysis: analysing file", "kind", kind, "bytes", len(data))
	return a.Aggregate(ctx, kind, data)
}

// AnalyzeData analyses bytes that are already in hand, such as an HTTP
// upload. A missing or generic contentType is replaced by the sniffed one.
func (a *Analyzer) AnalyzeData(ctx context.Context, data []byte, contentType, filename string) Report {
	log := slog.With("request_id", uuid.NewString())

	if mt := mediaType(contentType); mt == "" || mt == "application/octet-stream" {
		contentType = mimetype.Detect(data).String()
	}
	kind, err := Route(contentType, filename)
	if err != nil {
		log.Info("analysis: rejected upload", "error", err)
		return Report{Kind: kind, Message: MsgUnsupported}
	}

	log.Info("analysis: analysing upload", "kind", kind, "bytes", len(data))
	return a.Aggregate(ctx, kind, data)
}

// Aggregate analyses data along the path chosen by kind.
func (a *Analyzer) Aggregate(ctx context.Context, kind Kind, data []byte) Report {
	switch kind {
	case KindImage:
		return Report{Kind: kind, Message: a.describer.AnalyzeImage(ctx, data)}
	case KindDocument:
		return a.aggregateDocument(ctx, data)
	default:
		return Report{Kind: kind, Message: MsgUnsupported}
	}
}

func (a *Analyzer) aggregateDocument(ctx context.Context, data []byte) Report {
	report := Report{Kind: KindDocument}

	doc, err := a.opener.Open(data)
	if err != nil {
		slog.Warn("analysis: document rejected", "error", err)
		report.Message = MsgPDFError
		return report
	}
	defer doc.Close()

	for unit := range doc.Pages() {
		page := unit.Index + 1
		if strings.TrimSpace(unit.Text) != "" {
			report.add(pageTextLabel(page), unit.Text)
		}
		for j, img := range unit.Images {
			report.add(pageImageLabel(page, j+1), a.describer.AnalyzeImage(ctx, img))
		}
	}

	if len(report.Results) == 0 {
		report.Message = MsgEmpty
	}
	return report
}
