package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"os"
	"path/filepath"
	"strings"

	"github.com/otiai10/gosseract/v2"
	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
)

// ErrImageNotFound is returned when the input path does not exist
var ErrImageNotFound = errors.New("image not found")

// Info carries the confidence metrics for one recognized image
type Info struct {
	Confidence float64 `json:"confidence"`  // mean word confidence, 0-100
	TotalWords int     `json:"total_words"` // non-blank recognized tokens
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

// Extractor defines the interface for text extraction from images
type Extractor interface {
	// Extract runs OCR on the image at the given path and returns the raw
	// recognized text plus confidence metrics
	Extract(imagePath string) (string, Info, error)
}

// Tesseract implements the Extractor interface using the tesseract engine
type Tesseract struct{}

// NewTesseract creates a new Tesseract Extractor instance
func NewTesseract() *Tesseract {
	return &Tesseract{}
}

// Extract reads the image, normalizes PDF/HEIC inputs to PNG, and runs
// word-level recognition. Word confidences at or below zero are treated as
// no-detection noise and excluded from the average.
func (t *Tesseract) Extract(imagePath string) (string, Info, error) {
	if _, err := os.Stat(imagePath); err != nil {
		return "", Info{}, fmt.Errorf("%w: %s", ErrImageNotFound, imagePath)
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", Info{}, fmt.Errorf("reading image: %w", err)
	}

	data, err = normalizeInput(data, strings.ToLower(filepath.Ext(imagePath)))
	if err != nil {
		return "", Info{}, err
	}

	var width, height int
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		width, height = cfg.Width, cfg.Height
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetImageFromBytes(data); err != nil {
		return "", Info{}, fmt.Errorf("loading image into tesseract: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", Info{}, fmt.Errorf("recognizing text: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return "", Info{}, fmt.Errorf("reading word confidences: %w", err)
	}

	var confidences []float64
	totalWords := 0
	for _, box := range boxes {
		if strings.TrimSpace(box.Word) != "" {
			totalWords++
		}
		if box.Confidence > 0 {
			confidences = append(confidences, box.Confidence)
		}
	}

	info := Info{
		Confidence: averageConfidence(confidences),
		TotalWords: totalWords,
		Width:      width,
		Height:     height,
	}
	return text, info, nil
}

// averageConfidence returns the mean of the qualifying word confidences,
// or 0.0 when no word qualifies
func averageConfidence(confidences []float64) float64 {
	if len(confidences) == 0 {
		return 0.0
	}
	var sum float64
	for _, c := range confidences {
		sum += c
	}
	return sum / float64(len(confidences))
}
