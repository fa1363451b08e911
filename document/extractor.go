// Package document splits a PDF into per-page analysable units: the page's
// plain text and the raster images it draws.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

// ErrOpen is returned when the input bytes are not a readable PDF.
var ErrOpen = errors.New("document: not a valid PDF")

// PageUnit is the content of one page. Index is zero-based.
type PageUnit struct {
	Index  int
	Text   string
	Images [][]byte
}

// Extractor opens PDF documents.
type Extractor struct{}

// NewExtractor returns an Extractor.
func NewExtractor() *Extractor { return &Extractor{} }

// Open parses data as a PDF.
func (e *Extractor) Open(data []byte) (*Document, error) { return Open(data) }

// Document is an open PDF. Its pages can be iterated once.
type Document struct {
	mu       sync.Mutex
	data     []byte
	reader   *pdf.Reader
	numPages int
	consumed bool
	closed   bool

	streams []rawStream // indexed on first use
	taken   []bool
}

// Open parses data as a PDF. The library panics on some malformed inputs,
// so reader construction runs under recover.
func Open(data []byte) (doc *Document, err error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrOpen)
	}
	if mt := mimetype.Detect(data); !mt.Is("application/pdf") {
		return nil, fmt.Errorf("%w: detected %s", ErrOpen, mt.String())
	}

	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("%w: %v", ErrOpen, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}

	return &Document{
		data:     data,
		reader:   reader,
		numPages: reader.NumPage(),
	}, nil
}

// NumPages returns the page count read from the page tree.
func (d *Document) NumPages() int { return d.numPages }

// Pages yields one PageUnit per page in document order. The sequence is
// single use: the document is closed when iteration ends or the consumer
// stops early, and later calls yield nothing.
func (d *Document) Pages() iter.Seq[PageUnit] {
	return func(yield func(PageUnit) bool) {
		d.mu.Lock()
		if d.consumed || d.closed {
			d.mu.Unlock()
			return
		}
		d.consumed = true
		d.mu.Unlock()
		defer d.Close()

		for i := 0; i < d.numPages; i++ {
			if !yield(d.page(i)) {
				return
			}
		}
	}
}

// Close releases the document. It is safe to call more than once.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.reader = nil
	d.data = nil
	d.streams = nil
	d.taken = nil
	return nil
}

func (d *Document) page(i int) (unit PageUnit) {
	unit.Index = i
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("document: page unreadable", "page", i+1, "panic", r)
		}
	}()

	p := d.reader.Page(i + 1)
	if p.V.IsNull() {
		return unit
	}

	text, err := p.GetPlainText(nil)
	if err != nil {
		slog.Warn("document: text extraction failed", "page", i+1, "error", err)
	} else {
		unit.Text = text
	}

	unit.Images = d.pageImages(p)
	return unit
}
