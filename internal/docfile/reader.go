// Package docfile acquires raw text from uploaded receipt documents.
// Digitally generated PDFs are read directly; scanned PDFs are rasterized
// page by page and handed to an OCR engine; photos are OCR'd as-is.
package docfile

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"almacena/backend/internal/ocr"
)

// minDirectTextLen is the threshold below which a PDF's embedded text is
// considered too thin to be real content, so the document is treated as a
// scan and sent through the OCR fallback.
const minDirectTextLen = 50

type ProgressFunc func(stage string, percent int)

type Reader struct {
	engine ocr.Engine

	// Extraction hooks default to the pdfcpu/go-fitz implementations and
	// are swapped out in tests.
	pdfText   func(data []byte) (string, error)
	rasterize func(data []byte) ([][]byte, error)
	toPNG     func(data []byte) ([]byte, error)

	progress   ProgressFunc
	minTextLen int
}

// New builds a Reader. A nil engine disables OCR: scanned documents then
// degrade to empty text and the downstream parser falls back to defaults.
func New(engine ocr.Engine) *Reader {
	return &Reader{
		engine:     engine,
		pdfText:    pdfText,
		rasterize:  rasterizePDF,
		toPNG:      imageToPNG,
		progress:   logProgress,
		minTextLen: minDirectTextLen,
	}
}

func logProgress(stage string, percent int) {
	log.Printf("[docfile] %s: %d%%", stage, percent)
}

// Text returns the raw text of a PDF or image document. It fails only
// when the document itself cannot be read; OCR trouble degrades to empty
// text so extraction can still produce its defaults.
func (r *Reader) Text(ctx context.Context, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("pdf processing: empty document")
	}

	if isPDF(data) || strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return r.textFromPDF(ctx, data)
	}
	return r.textFromImage(ctx, data)
}

func (r *Reader) textFromPDF(ctx context.Context, data []byte) (string, error) {
	text, err := r.pdfText(data)
	if err != nil {
		return "", fmt.Errorf("pdf processing: %w", err)
	}
	if len(strings.TrimSpace(text)) >= r.minTextLen {
		return text, nil
	}
	// Too little embedded text: treat as a scanned document.
	return r.ocrScannedPDF(ctx, data), nil
}

// ocrScannedPDF rasterizes every page and recognizes each one. Failures
// are logged and degrade to whatever text was recovered so far.
func (r *Reader) ocrScannedPDF(ctx context.Context, data []byte) string {
	if r.engine == nil {
		log.Printf("[docfile] scanned pdf detected but no ocr engine is configured")
		return ""
	}

	pages, err := r.rasterize(data)
	if err != nil {
		log.Printf("[docfile] rasterize failed: %v", err)
		return ""
	}

	var sb strings.Builder
	for i, page := range pages {
		text, err := r.engine.RecognizeImage(ctx, page)
		if err != nil {
			log.Printf("[docfile] ocr page %d failed: %v", i+1, err)
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(text)
		r.progress("ocr", (i+1)*100/len(pages))
	}
	return sb.String()
}

func (r *Reader) textFromImage(ctx context.Context, data []byte) (string, error) {
	png, err := r.toPNG(data)
	if err != nil {
		return "", fmt.Errorf("image processing: %w", err)
	}

	if r.engine == nil {
		log.Printf("[docfile] image received but no ocr engine is configured")
		return "", nil
	}

	r.progress("ocr", 0)
	text, err := r.engine.RecognizeImage(ctx, png)
	if err != nil {
		log.Printf("[docfile] image ocr failed: %v", err)
		return "", nil
	}
	r.progress("ocr", 100)
	return text, nil
}
