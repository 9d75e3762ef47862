// Package ocr abstracts text recognition for scanned receipt images.
package ocr

import "context"

// Engine recognizes text in a PNG-encoded image. Implementations must be
// safe for concurrent use by multiple request handlers.
type Engine interface {
	RecognizeImage(ctx context.Context, png []byte) (string, error)
	Close() error
}
