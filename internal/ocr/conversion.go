package ocr

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// normalizeInput converts inputs tesseract cannot read directly (PDF pages,
// HEIC screenshots from phones) into PNG bytes. Everything else is passed
// through untouched; tesseract handles PNG, JPEG, BMP, GIF and TIFF natively.
func normalizeInput(data []byte, ext string) ([]byte, error) {
	switch {
	case ext == ".pdf":
		return renderPDFPage(data)
	case ext == ".heic" || ext == ".heif" || isHEIC(data):
		return decodeHEIC(data)
	}
	return data, nil
}

// renderPDFPage renders the first page of a PDF to a PNG image. Trading
// platform exports are single-page, so only the first page is considered.
func renderPDFPage(data []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeHEIC decodes a HEIC/HEIF image and re-encodes it as PNG
func decodeHEIC(data []byte) ([]byte, error) {
	img, err := heic.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEIC checks the ftyp box for HEIC/HEIF brands, so misnamed phone
// screenshots are still converted
func isHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}
