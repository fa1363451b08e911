package document

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"slices"

	"github.com/ledongthuc/pdf"

	"github.com/brunobiangulo/docbot/imaging"
)

const maxFormDepth = 8

// pageImages returns the page's image XObjects in resource-name order,
// descending into form XObjects.
func (d *Document) pageImages(p pdf.Page) [][]byte {
	var out [][]byte
	d.collectImages(p.Resources(), 0, &out)
	return out
}

func (d *Document) collectImages(res pdf.Value, depth int, out *[][]byte) {
	xobjs := res.Key("XObject")
	if xobjs.Kind() != pdf.Dict {
		return
	}
	names := xobjs.Keys()
	slices.Sort(names)

	for _, name := range names {
		x := xobjs.Key(name)
		switch x.Key("Subtype").Name() {
		case "Image":
			*out = append(*out, d.imageBytes(name, x))
		case "Form":
			if depth < maxFormDepth {
				d.collectImages(x.Key("Resources"), depth+1, out)
			}
		}
	}
}

// imageBytes returns something the image normalizer can attempt: the
// encoded bytes for DCT/JPX streams, a PNG for plain 8-bit samples, or
// whatever could be read otherwise.
func (d *Document) imageBytes(name string, x pdf.Value) (b []byte) {
	filters := filterNames(x.Key("Filter"))
	width := int(x.Key("Width").Int64())
	height := int(x.Key("Height").Int64())
	length := x.Key("Length").Int64()

	defer func() {
		if r := recover(); r != nil {
			slog.Debug("document: image stream not decodable", "name", name, "filters", filters, "panic", r)
			b = d.rawImageData(width, height, filters, length)
		}
	}()

	last := ""
	if len(filters) > 0 {
		last = filters[len(filters)-1]
	}

	switch last {
	case "", "FlateDecode":
		px := int64(width) * int64(height)
		if width <= 0 || height <= 0 || px > imaging.MaxPixels {
			slog.Debug("document: image samples not decoded", "name", name, "width", width, "height", height)
			return d.rawImageData(width, height, filters, length)
		}
		rc := x.Reader()
		samples, err := io.ReadAll(io.LimitReader(rc, sampleBytes(x, px)))
		rc.Close()
		if err != nil {
			slog.Debug("document: reading image samples", "name", name, "error", err)
			return d.rawImageData(width, height, filters, length)
		}
		if encoded, ok := samplesToPNG(x, width, height, samples); ok {
			return encoded
		}
		return samples
	default:
		return d.rawImageData(width, height, filters, length)
	}
}

// sampleBytes is the most sample data an image of px pixels can need.
func sampleBytes(x pdf.Value, px int64) int64 {
	cs := x.Key("ColorSpace")
	n := int64(components(cs))
	if cs.Kind() == pdf.Array && cs.Index(0).Name() == "Indexed" {
		n = 1
	} else if n == 0 {
		n = 4
	}
	bpc := max(x.Key("BitsPerComponent").Int64(), 8)
	return px * n * (bpc / 8)
}

func filterNames(v pdf.Value) []string {
	switch v.Kind() {
	case pdf.Name:
		return []string{v.Name()}
	case pdf.Array:
		names := make([]string, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			names = append(names, v.Index(i).Name())
		}
		return names
	}
	return nil
}

// samplesToPNG rebuilds 8 bits-per-component samples as an image and
// PNG-encodes it.
func samplesToPNG(x pdf.Value, w, h int, samples []byte) ([]byte, bool) {
	if w <= 0 || h <= 0 || x.Key("BitsPerComponent").Int64() != 8 {
		return nil, false
	}

	img := samplesToImage(x.Key("ColorSpace"), w, h, samples)
	if img == nil {
		return nil, false
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

func samplesToImage(cs pdf.Value, w, h int, samples []byte) image.Image {
	rect := image.Rect(0, 0, w, h)
	px := int64(w) * int64(h)

	if cs.Kind() == pdf.Array && cs.Index(0).Name() == "Indexed" {
		pal := indexedPalette(cs)
		if len(pal) == 0 || int64(len(samples)) < px {
			return nil
		}
		img := image.NewPaletted(rect, pal)
		for i := range img.Pix {
			img.Pix[i] = min(samples[i], uint8(len(pal)-1))
		}
		return img
	}

	n := components(cs)
	if n == 0 || int64(len(samples)) < px*int64(n) {
		return nil
	}

	switch n {
	case 1:
		return &image.Gray{Pix: samples[:px], Stride: w, Rect: rect}
	case 3:
		img := image.NewRGBA(rect)
		for i, j := 0, 0; i < len(img.Pix); i, j = i+4, j+3 {
			img.Pix[i] = samples[j]
			img.Pix[i+1] = samples[j+1]
			img.Pix[i+2] = samples[j+2]
			img.Pix[i+3] = 0xff
		}
		return img
	case 4:
		return &image.CMYK{Pix: samples[:px*4], Stride: w * 4, Rect: rect}
	}
	return nil
}

// components returns the number of color components of a color space the
// sample rebuilder understands, or 0.
func components(cs pdf.Value) int {
	switch cs.Kind() {
	case pdf.Name:
		switch cs.Name() {
		case "DeviceGray", "CalGray":
			return 1
		case "DeviceRGB", "CalRGB":
			return 3
		case "DeviceCMYK":
			return 4
		}
	case pdf.Array:
		switch cs.Index(0).Name() {
		case "ICCBased":
			if n := int(cs.Index(1).Key("N").Int64()); n == 1 || n == 3 || n == 4 {
				return n
			}
		case "CalGray":
			return 1
		case "CalRGB":
			return 3
		}
	}
	return 0
}

// indexedPalette reads [/Indexed base hival lookup] over a gray or RGB base.
func indexedPalette(cs pdf.Value) color.Palette {
	n := components(cs.Index(1))
	if n != 1 && n != 3 {
		return nil
	}
	entries := int(cs.Index(2).Int64()) + 1
	if entries <= 0 || entries > 256 {
		return nil
	}

	var lookup []byte
	switch v := cs.Index(3); v.Kind() {
	case pdf.String:
		lookup = []byte(v.RawString())
	case pdf.Stream:
		rc := v.Reader()
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil
		}
		lookup = data
	default:
		return nil
	}
	if len(lookup) < entries*n {
		return nil
	}

	pal := make(color.Palette, entries)
	for i := range pal {
		if n == 1 {
			pal[i] = color.Gray{Y: lookup[i]}
			continue
		}
		pal[i] = color.RGBA{R: lookup[i*3], G: lookup[i*3+1], B: lookup[i*3+2], A: 0xff}
	}
	return pal
}
