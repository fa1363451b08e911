package docbot

import (
	"errors"

	"github.com/brunobiangulo/docbot/analysis"
	"github.com/brunobiangulo/docbot/describe"
	"github.com/brunobiangulo/docbot/document"
	"github.com/brunobiangulo/docbot/fetch"
	"github.com/brunobiangulo/docbot/imaging"
	"github.com/brunobiangulo/docbot/search"
	"github.com/brunobiangulo/docbot/store"
)

var (
	// ErrFetch is returned when an uploaded file cannot be downloaded.
	ErrFetch = fetch.ErrFetch

	// ErrDecode is returned when image bytes cannot be decoded.
	ErrDecode = imaging.ErrDecode

	// ErrOpen is returned for bytes that are not a readable PDF.
	ErrOpen = document.ErrOpen

	// ErrDescribe is returned when the model produces no description.
	ErrDescribe = describe.ErrDescribe

	// ErrUnsupportedType is returned for files that are neither images nor PDFs.
	ErrUnsupportedType = analysis.ErrUnsupportedType

	// ErrSearch is returned when the search backend fails.
	ErrSearch = search.ErrSearch

	// ErrUserNotFound is returned when a chat has no registered user.
	ErrUserNotFound = store.ErrNotFound

	// ErrStoreClosed is returned when operating on a closed or disabled store.
	ErrStoreClosed = store.ErrClosed

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("docbot: invalid configuration")
)
