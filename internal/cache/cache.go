package cache

import (
	"context"
	"time"

	"almacena/backend/internal/domain"
)

// ExtractionCache memoizes extraction results keyed by document digest so
// re-uploading the same file skips OCR and parsing.
type ExtractionCache interface {
	Get(ctx context.Context, key string) (*domain.ExtractionResult, bool, error)
	Set(ctx context.Context, key string, value *domain.ExtractionResult, ttl time.Duration) error
}

type NoopExtractionCache struct{}

func (NoopExtractionCache) Get(_ context.Context, _ string) (*domain.ExtractionResult, bool, error) {
	return nil, false, nil
}

func (NoopExtractionCache) Set(_ context.Context, _ string, _ *domain.ExtractionResult, _ time.Duration) error {
	return nil
}
