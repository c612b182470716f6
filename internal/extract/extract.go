// Package extract pulls page-level text out of uploaded PDF documents,
// falling back to OCR for pages that yield too little direct text.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrUnsupportedFormat indicates the upload is not a PDF. Checked before
	// any parsing work happens.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrExtraction indicates the PDF could not be read or produced no text.
	ErrExtraction = errors.New("document text extraction failed")
)

// DefaultMinPageChars is the direct-extraction threshold below which a page
// is considered scanned and handed to OCR.
const DefaultMinPageChars = 16

// Page is one page of extracted text. Numbers are 1-based.
type Page struct {
	Number int
	Text   string
}

// OCRFunc recognizes text on a single page of the given PDF. Implementations
// return an empty string when nothing is recognized.
type OCRFunc func(ctx context.Context, doc []byte, page int) (string, error)

// PDFExtractor extracts text from PDF bytes, one entry per page.
type PDFExtractor struct {
	ocr          OCRFunc
	minPageChars int
	logger       *slog.Logger
}

// NewPDFExtractor creates an extractor. ocr may be nil to disable the OCR
// fallback; minPageChars <= 0 selects DefaultMinPageChars.
func NewPDFExtractor(ocr OCRFunc, minPageChars int, logger *slog.Logger) *PDFExtractor {
	if minPageChars <= 0 {
		minPageChars = DefaultMinPageChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFExtractor{
		ocr:          ocr,
		minPageChars: minPageChars,
		logger:       logger,
	}
}

// IsPDF reports whether data starts with the PDF magic header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// Extract returns the text of every page in document order. Pages whose
// direct extraction yields fewer than minPageChars characters go through the
// OCR fallback when one is configured; pages that remain empty are skipped.
func (e *PDFExtractor) Extract(ctx context.Context, data []byte) (pages []Page, err error) {
	if !IsPDF(data) {
		return nil, fmt.Errorf("%w: missing PDF header", ErrUnsupportedFormat)
	}

	// The pdf package panics on some malformed content streams; a corrupt
	// upload must surface as ErrExtraction, not take the process down.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: malformed document: %v", ErrExtraction, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	numPages := reader.NumPage()
	ocrUsed := 0

	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text := ""
		if direct, err := page.GetPlainText(nil); err == nil {
			text = strings.TrimSpace(direct)
		}

		if len(text) < e.minPageChars && e.ocr != nil {
			recognized, err := e.ocr(ctx, data, i)
			if err != nil {
				e.logger.Warn("OCR failed, keeping direct text", "page", i, "error", err)
			} else if rt := strings.TrimSpace(recognized); len(rt) > len(text) {
				text = rt
				ocrUsed++
			}
		}

		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}

	e.logger.Debug("Extracted document",
		"pages", len(pages),
		"total_pages", numPages,
		"ocr_pages", ocrUsed,
	)

	return pages, nil
}
