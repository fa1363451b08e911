package analysis

import (
	"mime"
	"net/url"
	"strings"
)

// Kind is the analysis path chosen for a file.
type Kind int

const (
	KindUnsupported Kind = iota
	KindImage
	KindDocument
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindDocument:
		return "document"
	default:
		return "unsupported"
	}
}

var imageExtensions = []string{".jpeg", ".jpg", ".png", ".gif", ".bmp"}

// Classify picks the analysis path from a Content-Type header value
// (possibly empty) and the file's URL. PDF is checked before images.
func Classify(contentType, fileURL string) Kind {
	media := mediaType(contentType)
	path := urlPath(fileURL)

	if media == "application/pdf" || strings.HasSuffix(path, ".pdf") {
		return KindDocument
	}
	if strings.HasPrefix(media, "image/") {
		return KindImage
	}
	for _, ext := range imageExtensions {
		if strings.HasSuffix(path, ext) {
			return KindImage
		}
	}
	return KindUnsupported
}

// mediaType returns the lower-cased media type without parameters, or ""
// when the header is absent or unparsable.
func mediaType(contentType string) string {
	if strings.TrimSpace(contentType) == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(mt)
}

// urlPath returns the lower-cased path of rawURL with query and fragment
// removed. Unparsable URLs are used as-is.
func urlPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.ToLower(rawURL)
	}
	return strings.ToLower(u.Path)
}
