package imaging

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestNormalizeDownscalesLargeImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4000, 3000))
	raw := encodePNG(t, src)

	img, err := NewNormalizer(Config{}).Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if img.Width != 1024 || img.Height != 768 {
		t.Errorf("size = %dx%d, want 1024x768", img.Width, img.Height)
	}
	if img.Encoding != "JPEG" {
		t.Errorf("encoding = %q", img.Encoding)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(img.Data))
	if err != nil {
		t.Fatalf("output is not jpeg: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 1024 || b.Dy() != 768 {
		t.Errorf("decoded bounds = %v", b)
	}
}

func TestNormalizeKeepsSmallImageSize(t *testing.T) {
	tests := []struct {
		name string
		w, h int
	}{
		{"square", 100, 100},
		{"portrait", 300, 900},
		{"exact bound", 1024, 1024},
	}
	n := NewNormalizer(Config{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := n.Normalize(encodePNG(t, image.NewRGBA(image.Rect(0, 0, tt.w, tt.h))))
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if img.Width != tt.w || img.Height != tt.h {
				t.Errorf("size = %dx%d, want %dx%d", img.Width, img.Height, tt.w, tt.h)
			}
		})
	}
}

func TestNormalizeFlattensTransparencyOnWhite(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 16, 16)) // fully transparent
	img, err := NewNormalizer(Config{}).Normalize(encodePNG(t, src))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(img.Data))
	if err != nil {
		t.Fatalf("jpeg.Decode: %v", err)
	}
	r, g, b, _ := decoded.At(8, 8).RGBA()
	if r>>8 < 240 || g>>8 < 240 || b>>8 < 240 {
		t.Errorf("pixel = (%d,%d,%d), want near white", r>>8, g>>8, b>>8)
	}
}

func TestNormalizeGIFInput(t *testing.T) {
	pal := image.NewPaletted(image.Rect(0, 0, 2048, 10), color.Palette{color.Black, color.White})
	var buf bytes.Buffer
	if err := gif.Encode(&buf, pal, nil); err != nil {
		t.Fatalf("gif.Encode: %v", err)
	}
	img, err := NewNormalizer(Config{MaxSide: 512}).Normalize(buf.Bytes())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if img.Width != 512 || img.Height != 2 {
		t.Errorf("size = %dx%d, want 512x2", img.Width, img.Height)
	}
}

func TestNormalizeIsIdempotentOnBounds(t *testing.T) {
	n := NewNormalizer(Config{})
	first, err := n.Normalize(encodePNG(t, image.NewRGBA(image.Rect(0, 0, 3000, 1000))))
	if err != nil {
		t.Fatalf("first Normalize: %v", err)
	}
	second, err := n.Normalize(first.Data)
	if err != nil {
		t.Fatalf("second Normalize: %v", err)
	}
	if second.Width != first.Width || second.Height != first.Height {
		t.Errorf("second pass changed size: %dx%d -> %dx%d", first.Width, first.Height, second.Width, second.Height)
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	for _, raw := range [][]byte{nil, []byte("%PDF-1.4 not an image"), {0xff, 0xd8, 0xff}} {
		_, err := NewNormalizer(Config{}).Normalize(raw)
		if !errors.Is(err, ErrDecode) {
			t.Errorf("Normalize(%q) error = %v, want ErrDecode", raw, err)
		}
	}
}

// pngHeader returns a PNG that declares w×h RGBA pixels and carries no
// image data.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	chunk := func(typ string, data []byte) {
		binary.Write(&buf, binary.BigEndian, uint32(len(data)))
		body := append([]byte(typ), data...)
		buf.Write(body)
		binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(body))
	}
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // RGBA
	chunk("IHDR", ihdr)
	chunk("IEND", nil)
	return buf.Bytes()
}

func TestNormalizeRejectsOversizedHeader(t *testing.T) {
	raw := pngHeader(30000, 30000)
	if len(raw) > 100 {
		t.Fatalf("fixture is %d bytes", len(raw))
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(raw))
	if err != nil || cfg.Width != 30000 {
		t.Fatalf("fixture header not readable: %v %+v", err, cfg)
	}

	_, err = NewNormalizer(Config{}).Normalize(raw)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("Normalize error = %v, want ErrDecode", err)
	}
	if !strings.Contains(err.Error(), "30000x30000") {
		t.Errorf("error = %v, want the declared size", err)
	}
}

func TestDataURL(t *testing.T) {
	img := &NormalizedImage{Data: []byte{1, 2, 3}, Encoding: "JPEG"}
	if got := img.DataURL(); !strings.HasPrefix(got, "data:image/jpeg;base64,") || !strings.HasSuffix(got, "AQID") {
		t.Errorf("DataURL = %q", got)
	}
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{4000, 3000, 1024, 1024, 768},
		{3000, 4000, 1024, 768, 1024},
		{5000, 1, 1024, 1024, 1},
		{10, 10, 1024, 10, 10},
	}
	for _, tt := range tests {
		w, h := fitWithin(tt.w, tt.h, tt.max)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("fitWithin(%d,%d,%d) = %d,%d, want %d,%d", tt.w, tt.h, tt.max, w, h, tt.wantW, tt.wantH)
		}
	}
}
