package document

import (
	"bytes"
	"regexp"
	"slices"
	"strconv"
)

// The reader decodes Flate and ASCII85 streams only and panics on image
// codecs such as DCTDecode. Encoded image data is therefore sliced straight
// out of the file buffer, matched by the image dictionary's dimensions,
// filter chain and stream length.

var (
	streamStart = regexp.MustCompile(`>>\s*stream(?:\r\n|\n)`)
	imageSub    = regexp.MustCompile(`/Subtype\s*/Image\b`)
	widthKey    = regexp.MustCompile(`/Width\s+(\d+)`)
	heightKey   = regexp.MustCompile(`/Height\s+(\d+)`)
	filterKey   = regexp.MustCompile(`/Filter\s*(/[A-Za-z0-9]+|\[[^\]]*\])`)
	nameToken   = regexp.MustCompile(`/([A-Za-z0-9]+)`)
)

const dictLookback = 4096

type rawStream struct {
	width   int
	height  int
	filters []string
	start   int
}

// indexStreams finds every image stream whose dictionary is written in
// plain text. Image XObjects cannot live inside object streams, so that
// covers all of them.
func indexStreams(data []byte) []rawStream {
	var out []rawStream
	for _, loc := range streamStart.FindAllIndex(data, -1) {
		lo := max(loc[0]-dictLookback, 0)
		objAt := bytes.LastIndex(data[lo:loc[0]], []byte("obj"))
		if objAt < 0 {
			continue
		}
		dict := data[lo+objAt+3 : loc[0]+2]
		if !imageSub.Match(dict) {
			continue
		}

		w := intField(widthKey, dict)
		h := intField(heightKey, dict)
		if w <= 0 || h <= 0 {
			continue
		}

		var filters []string
		if m := filterKey.FindSubmatch(dict); m != nil {
			for _, n := range nameToken.FindAllSubmatch(m[1], -1) {
				filters = append(filters, string(n[1]))
			}
		}

		out = append(out, rawStream{width: w, height: h, filters: filters, start: loc[1]})
	}
	return out
}

func intField(re *regexp.Regexp, dict []byte) int {
	m := re.FindSubmatch(dict)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return 0
	}
	return n
}

// rawImageData returns the undecoded bytes of an indexed image stream
// matching the given attributes, or nil. Matches are handed out in file
// order, each once, so same-shaped images get their own data; a stream is
// reused only after every match has been taken, as happens when one image
// is drawn on several pages. length <= 0 means unknown, in which case the
// data runs to the endstream keyword.
func (d *Document) rawImageData(width, height int, filters []string, length int64) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.data == nil {
		return nil
	}
	if d.taken == nil {
		d.streams = indexStreams(d.data)
		d.taken = make([]bool, len(d.streams))
	}

	var reused []byte
	for i, s := range d.streams {
		if s.width != width || s.height != height || !slices.Equal(s.filters, filters) {
			continue
		}
		b := streamData(d.data, s.start, length)
		if b == nil {
			continue
		}
		if !d.taken[i] {
			d.taken[i] = true
			return b
		}
		if reused == nil {
			reused = b
		}
	}
	return reused
}

func streamData(data []byte, start int, length int64) []byte {
	if length > 0 {
		end := start + int(length)
		if end > len(data) {
			return nil
		}
		if !bytes.HasPrefix(bytes.TrimLeft(data[end:], " \t\r\n"), []byte("endstream")) {
			return nil
		}
		return data[start:end]
	}
	end := bytes.Index(data[start:], []byte("endstream"))
	if end < 0 {
		return nil
	}
	return bytes.TrimRight(data[start:start+end], "\r\n")
}
