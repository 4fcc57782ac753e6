package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/eatsdeals/eats-deals-bot/internal/util"
)

// DetailFetcher retrieves restaurant detail pages over short-lived plain
// HTTP connections, independent of the browser session.
type DetailFetcher struct {
	client     *http.Client
	maxRetries int
}

func NewDetailFetcher() *DetailFetcher {
	return &DetailFetcher{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 2,
	}
}

// FetchDetailHTML downloads the raw HTML of a restaurant detail page.
// Non-2xx responses and transport failures are errors; the orchestrator
// recovers them as zero deals for the card.
func (f *DetailFetcher) FetchDetailHTML(ctx context.Context, url string) (string, error) {
	var body string
	err := util.RetryWithBackoff(ctx, f.maxRetries, func(attempt int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("failed to create request for %s: %w", url, err)
		}
		req.Header.Set("User-Agent", browserUserAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.5")

		res, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to fetch %s: %w", url, err)
		}
		defer res.Body.Close()

		// 4xx responses are deterministic; retrying a dead card URL only
		// delays its siblings.
		if res.StatusCode >= 400 && res.StatusCode < 500 {
			return fmt.Errorf("failed to fetch %s: status code %d: %w", url, res.StatusCode, util.ErrPermanent)
		}
		if res.StatusCode < 200 || res.StatusCode >= 300 {
			return fmt.Errorf("failed to fetch %s: status code %d", url, res.StatusCode)
		}

		data, err := io.ReadAll(res.Body)
		if err != nil {
			return fmt.Errorf("failed to read body of %s: %w", url, err)
		}
		body = string(data)
		return nil
	})
	if err != nil {
		return "", err
	}
	return body, nil
}
