package background

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/skycastapp/skycast/internal/errors"
	"github.com/skycastapp/skycast/internal/httpx"
)

// Downloader fetches raw image bytes from a remote URL.
type Downloader interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPDownloader is the production Downloader.
type HTTPDownloader struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewHTTPDownloader creates a downloader with the given request timeout.
func NewHTTPDownloader(timeout time.Duration) *HTTPDownloader {
	return &HTTPDownloader{
		client:  &http.Client{Timeout: timeout},
		breaker: httpx.NewBreaker("imagecdn"),
	}
}

// Fetch downloads the image at url.
func (d *HTTPDownloader) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := httpx.Do(ctx, d.client, d.breaker, httpx.DefaultBackoff, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, url, nil)
	})
	if err != nil {
		return nil, errors.NewNetwork("download image", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewNetwork("read image body", err)
	}
	return data, nil
}
