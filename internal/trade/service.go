package trade

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"tradejournal/internal/ocr"
	"tradejournal/internal/structuring"
)

var (
	// ErrFolderNotFound is returned when the batch path is not a directory
	ErrFolderNotFound = errors.New("folder not found")
	// ErrNoImagesFound is returned when a batch folder holds no recognized images
	ErrNoImagesFound = errors.New("no image files found")
)

// imageExtensions are the inputs accepted in batch mode
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".gif":  true,
	".tiff": true,
}

// IDGenerator generates unique IDs for trade records
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates short IDs from v4 UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()[:8]
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Summary is the caller-facing result of processing one image
type Summary struct {
	TradeID    string   `json:"trade_id"`
	Image      string   `json:"image"`
	Ticker     *string  `json:"ticker"`
	Direction  *string  `json:"direction"`
	PnLAmount  *float64 `json:"pnl_amount"`
	Confidence float64  `json:"confidence"`
	Outcome    string   `json:"outcome"`
	SavedFiles []string `json:"saved_files"`
}

// BatchItem records the per-image result of a batch run: either a success
// summary or the error message
type BatchItem struct {
	Image   string   `json:"image"`
	Summary *Summary `json:"summary,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// BatchResult summarizes a batch run
type BatchResult struct {
	Total   int         `json:"total"`
	OK      int         `json:"ok"`
	Fail    int         `json:"fail"`
	Details []BatchItem `json:"details"`
}

// Service composes the OCR extractor, the structuring client and the
// persistence sink into the extraction pipeline
type Service struct {
	extractor   ocr.Extractor
	structurer  structuring.Structurer
	sink        Sink
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(extractor ocr.Extractor, structurer structuring.Structurer, sink Sink) *Service {
	return &Service{
		extractor:   extractor,
		structurer:  structurer,
		sink:        sink,
		idGenerator: &defaultIDGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(extractor ocr.Extractor, structurer structuring.Structurer, sink Sink, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		extractor:   extractor,
		structurer:  structurer,
		sink:        sink,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// ProcessImage runs the full pipeline for one image: OCR, structuring,
// record build, persistence. A failure in OCR, the structuring call or the
// sink aborts the image; parse failures inside the builder do not.
func (s *Service) ProcessImage(imagePath string, mode SaveMode) (*Summary, error) {
	slog.Info("Starting OCR extraction", "image", imagePath)
	rawText, info, err := s.extractor.Extract(imagePath)
	if err != nil {
		return nil, fmt.Errorf("extracting text: %w", err)
	}
	slog.Info("OCR complete", "image", imagePath, "confidence", info.Confidence, "words", info.TotalWords)

	response, err := s.structurer.StructureTrade(rawText, filepath.Base(imagePath))
	if err != nil {
		return nil, fmt.Errorf("structuring trade: %w", err)
	}

	rec, outcome := BuildRecord(response, imagePath, info, s.idGenerator.Generate(), s.timeSource.Now())
	if outcome != Structured {
		slog.Warn("Degraded extraction",
			"image", imagePath,
			"outcome", outcome.String(),
			"parse_error", rec.ParseError,
		)
	}

	files, err := s.sink.Save(rec, mode)
	if err != nil {
		return nil, fmt.Errorf("saving trade: %w", err)
	}
	slog.Info("Trade logged", "trade_id", rec.TradeID, "files", len(files))

	return &Summary{
		TradeID:    rec.TradeID,
		Image:      filepath.Base(imagePath),
		Ticker:     rec.Ticker,
		Direction:  rec.Direction,
		PnLAmount:  rec.PnLAmount,
		Confidence: info.Confidence,
		Outcome:    outcome.String(),
		SavedFiles: files,
	}, nil
}

// ProcessFolder runs ProcessImage over every recognized image in the folder,
// isolating failures per item: every image is attempted regardless of prior
// failures, and nothing is shared across items.
func (s *Service) ProcessFolder(folder string, mode SaveMode) (*BatchResult, error) {
	fi, err := os.Stat(folder)
	if err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrFolderNotFound, folder)
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("reading folder: %w", err)
	}

	var images []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			images = append(images, filepath.Join(folder, entry.Name()))
		}
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImagesFound, folder)
	}

	result := &BatchResult{Total: len(images)}
	for _, img := range images {
		summary, err := s.ProcessImage(img, mode)
		if err != nil {
			slog.Error("Failed to process image", "image", img, "error", err)
			result.Fail++
			result.Details = append(result.Details, BatchItem{
				Image: filepath.Base(img),
				Error: err.Error(),
			})
			continue
		}
		result.OK++
		result.Details = append(result.Details, BatchItem{
			Image:   filepath.Base(img),
			Summary: summary,
		})
	}
	return result, nil
}
