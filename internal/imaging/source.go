// Package imaging fetches source photos and reads their pixel dimensions.
// No decoding beyond the image header happens here.
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	_ "image/jpeg"
	_ "image/png"
)

// Photo is one downloaded source image.
type Photo struct {
	Data     []byte
	WidthPx  int
	HeightPx int
}

// Source resolves a photo reference into raw bytes and dimensions. Failures
// are download errors the caller may retry by resubmitting the assessment.
type Source interface {
	Fetch(ctx context.Context, url string) (Photo, error)
}

// HTTPSource downloads photos over HTTP, typically from object-storage
// public URLs.
type HTTPSource struct {
	client  *http.Client
	maxSize int64
}

const defaultMaxPhotoSize = 20 << 20

func NewHTTPSource(timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		client:  &http.Client{Timeout: timeout},
		maxSize: defaultMaxPhotoSize,
	}
}

func (s *HTTPSource) Fetch(ctx context.Context, url string) (Photo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Photo{}, fmt.Errorf("build photo request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Photo{}, fmt.Errorf("download photo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Photo{}, fmt.Errorf("download photo: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxSize))
	if err != nil {
		return Photo{}, fmt.Errorf("read photo body: %w", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Photo{}, fmt.Errorf("read photo dimensions: %w", err)
	}

	return Photo{Data: data, WidthPx: cfg.Width, HeightPx: cfg.Height}, nil
}
