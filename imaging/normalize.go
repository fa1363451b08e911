// Package imaging converts arbitrary raster input into the bounded, opaque
// JPEG form sent to the vision model.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	stddraw "image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// DefaultMaxSide bounds the longer edge of a normalized image.
	DefaultMaxSide = 1024
	// DefaultQuality is the JPEG quality used when none is configured.
	DefaultQuality = 75
	// MaxPixels caps the decoded size. Headers can declare far more pixels
	// than the compressed payload holds.
	MaxPixels = 50_000_000
)

// ErrDecode is returned when the input bytes are not a decodable image.
var ErrDecode = errors.New("imaging: image could not be decoded")

// NormalizedImage is an opaque RGB JPEG no larger than the normalizer's
// MaxSide on either axis.
type NormalizedImage struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Data     []byte `json:"-"`
	Encoding string `json:"encoding"`
}

// MIMEType returns the media type of Data.
func (n *NormalizedImage) MIMEType() string { return "image/jpeg" }

// Base64 returns Data in standard base64.
func (n *NormalizedImage) Base64() string {
	return base64.StdEncoding.EncodeToString(n.Data)
}

// DataURL returns Data as a data: URL suitable for an image_url content part.
func (n *NormalizedImage) DataURL() string {
	return "data:" + n.MIMEType() + ";base64," + n.Base64()
}

// Config controls normalization output.
type Config struct {
	MaxSide int `json:"max_side" yaml:"max_side"`
	Quality int `json:"jpeg_quality" yaml:"jpeg_quality"`
}

// Normalizer decodes, flattens, downscales and re-encodes images.
type Normalizer struct {
	maxSide int
	quality int
}

// NewNormalizer returns a Normalizer, substituting defaults for zero values.
func NewNormalizer(cfg Config) *Normalizer {
	n := &Normalizer{maxSide: cfg.MaxSide, quality: cfg.Quality}
	if n.maxSide <= 0 {
		n.maxSide = DefaultMaxSide
	}
	if n.quality <= 0 || n.quality > 100 {
		n.quality = DefaultQuality
	}
	return n
}

// MaxSide reports the configured bound.
func (n *Normalizer) MaxSide() int { return n.maxSide }

// Normalize converts raw image bytes into a NormalizedImage.
func (n *Normalizer) Normalize(raw []byte) (*NormalizedImage, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, mimetype.Detect(raw).String(), err)
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, MaxPixels)
	}

	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, mimetype.Detect(raw).String(), err)
	}

	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %s has empty bounds", ErrDecode, format)
	}

	w, h := fitWithin(b.Dx(), b.Dy(), n.maxSide)

	// Flatten on white first so transparent regions don't turn black.
	flat := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	stddraw.Draw(flat, flat.Bounds(), image.NewUniform(color.White), image.Point{}, stddraw.Src)
	stddraw.Draw(flat, flat.Bounds(), src, b.Min, stddraw.Over)

	var out image.Image = flat
	if w != b.Dx() || h != b.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), flat, flat.Bounds(), draw.Src, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: n.quality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}

	return &NormalizedImage{
		Width:    w,
		Height:   h,
		Data:     buf.Bytes(),
		Encoding: "JPEG",
	}, nil
}

// fitWithin scales (w, h) down so the longer side is at most maxSide,
// preserving aspect ratio. It never scales up.
func fitWithin(w, h, maxSide int) (int, int) {
	if w <= maxSide && h <= maxSide {
		return w, h
	}
	if w >= h {
		nh := int(int64(h) * int64(maxSide) / int64(w))
		return maxSide, max(nh, 1)
	}
	nw := int(int64(w) * int64(maxSide) / int64(h))
	return max(nw, 1), maxSide
}
