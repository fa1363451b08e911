// Package pdftest builds small, well-formed PDF files for tests.
package pdftest

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"slices"
	"strings"
)

// Builder assembles a PDF with a correct xref table. Objects are numbered
// from 1 in the order they are added.
type Builder struct {
	objs []string
}

// Add appends an object body and returns its number.
func (b *Builder) Add(body string) int {
	b.objs = append(b.objs, body)
	return len(b.objs)
}

// Reserve allocates an object number to be filled in with Set.
func (b *Builder) Reserve() int { return b.Add("null") }

// Set replaces the body of object n.
func (b *Builder) Set(n int, body string) { b.objs[n-1] = body }

// Bytes serialises the objects with root as the catalog.
func (b *Builder) Bytes(root int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(b.objs))
	for i, body := range b.objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(b.objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(b.objs)+1, root, xref)
	return buf.Bytes()
}

// Stream formats a stream object body with the given extra dictionary
// entries.
func Stream(dict string, data []byte) string {
	return fmt.Sprintf("<< %s /Length %d >>\nstream\n%s\nendstream", dict, len(data), data)
}

// Page describes one page: a line of text drawn in Helvetica and the
// XObjects in its resources, by name.
type Page struct {
	Text     string
	XObjects map[string]int
}

// Build lays out pages under one page tree node and returns the file.
func (b *Builder) Build(pages []Page) []byte {
	font := b.Add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	tree := b.Reserve()

	kids := make([]string, 0, len(pages))
	for _, p := range pages {
		content := ""
		if p.Text != "" {
			content = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", p.Text)
		}
		contents := b.Add(Stream("", []byte(content)))

		names := make([]string, 0, len(p.XObjects))
		for name := range p.XObjects {
			names = append(names, name)
		}
		slices.Sort(names)
		var xo strings.Builder
		for _, name := range names {
			fmt.Fprintf(&xo, " /%s %d 0 R", name, p.XObjects[name])
		}

		page := b.Add(fmt.Sprintf(
			"<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 %d 0 R >> /XObject <<%s >> >> >>",
			tree, contents, font, xo.String()))
		kids = append(kids, fmt.Sprintf("%d 0 R", page))
	}

	b.Set(tree, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(kids)))
	catalog := b.Add(fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", tree))
	return b.Bytes(catalog)
}

// AddJPEG adds a DCTDecode image XObject holding data.
func (b *Builder) AddJPEG(data []byte, w, h int) int {
	return b.Add(Stream(fmt.Sprintf(
		"/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode", w, h), data))
}

// AddFlateRGB adds a FlateDecode DeviceRGB image XObject filled with c.
func (b *Builder) AddFlateRGB(w, h int, c color.RGBA) int {
	raw := make([]byte, 0, w*h*3)
	for i := 0; i < w*h; i++ {
		raw = append(raw, c.R, c.G, c.B)
	}
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write(raw)
	zw.Close()
	return b.Add(Stream(fmt.Sprintf(
		"/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /FlateDecode", w, h), buf.Bytes()))
}

// AddOpaque adds an image XObject whose filter the reader cannot decode.
func (b *Builder) AddOpaque(w, h int) int {
	return b.Add(Stream(fmt.Sprintf(
		"/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceGray /BitsPerComponent 1 /Filter /CCITTFaxDecode", w, h), []byte{0x00, 0x01, 0x02}))
}

// JPEG encodes a solid w×h image.
func JPEG(w, h int, c color.RGBA) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, nil)
	return buf.Bytes()
}
