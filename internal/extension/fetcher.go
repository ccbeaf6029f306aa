package extension

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Fetcher downloads the package body from the update service.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// RestyFetcher is the production Fetcher.
// It follows the update-service redirect and never retries.
type RestyFetcher struct {
	client *resty.Client
}

// NewRestyFetcher creates a RestyFetcher that sends userAgent on every request.
func NewRestyFetcher(userAgent string, timeout time.Duration) *RestyFetcher {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10)).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "*/*")
	return &RestyFetcher{client: client}
}

// Fetch performs a single GET and returns the body of a 2xx response.
func (f *RestyFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unexpected status %s", resp.Status())
	}
	return resp.Body(), nil
}
