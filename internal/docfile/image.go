package docfile

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	"image/png"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// rasterizePDF renders every page of a PDF to a PNG so an OCR engine can
// read scanned documents that carry no embedded text.
func rasterizePDF(data []byte) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer doc.Close()

	pages := make([][]byte, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		img, err := doc.Image(i)
		if err != nil {
			return nil, fmt.Errorf("rendering page %d: %w", i+1, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encoding page %d: %w", i+1, err)
		}
		pages = append(pages, buf.Bytes())
	}
	return pages, nil
}

// imageToPNG normalizes an uploaded photo (JPEG, PNG, GIF, HEIC) to PNG.
func imageToPNG(data []byte) ([]byte, error) {
	var img image.Image
	var err error

	if isHEIC(data) {
		img, err = heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding heic image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding image: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEIC sniffs the ftyp box brands used by HEIC/HEIF files, which the
// standard image package cannot decode.
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

// isPDF sniffs the PDF header magic.
func isPDF(data []byte) bool {
	return len(data) >= 5 && bytes.HasPrefix(data, []byte("%PDF-"))
}
