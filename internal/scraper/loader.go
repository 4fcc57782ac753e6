package scraper

import (
	"context"
	"fmt"
	"log/slog"
	neturl "net/url"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/eatsdeals/eats-deals-bot/internal/models"
)

const listingSettleWait = 5 * time.Second

const browserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

// Browser owns a headless Chrome allocator. One discovery run holds the
// rendering session exclusively; detail pages go through plain HTTP instead.
type Browser struct {
	allocCtx context.Context
	cancel   context.CancelFunc
}

// NewBrowser configures a headless Chrome allocator. chromePath may be empty,
// in which case chromedp finds the binary itself.
func NewBrowser(chromePath string) *Browser {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(browserUserAgent),
	)
	if chromePath != "" {
		opts = append(opts, chromedp.ExecPath(chromePath))
	}
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Browser{allocCtx: allocCtx, cancel: cancel}
}

func (b *Browser) Close() {
	b.cancel()
}

// Loader renders the listing page and enumerates its restaurant cards.
type Loader struct {
	browser        *Browser
	scrollInterval time.Duration
}

func NewLoader(browser *Browser, scrollInterval time.Duration) *Loader {
	return &Loader{browser: browser, scrollInterval: scrollInterval}
}

// LoadCards renders the listing URL, scrolls until the page height stops
// growing, and returns the restaurant cards found in the rendered markup.
func (l *Loader) LoadCards(ctx context.Context, url string) ([]models.CardInfo, error) {
	rendered, err := l.renderListing(ctx, url)
	if err != nil {
		return nil, err
	}

	cards, err := ParseCards(rendered)
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page %s: %w", url, err)
	}

	// Card hrefs come out of the markup relative to the listing origin.
	if base, err := neturl.Parse(url); err == nil {
		for i := range cards {
			if abs, err := base.Parse(cards[i].DetailURL); err == nil {
				cards[i].DetailURL = abs.String()
			}
		}
	}

	slog.Info("Enumerated store cards", "url", url, "count", len(cards))
	return cards, nil
}

// renderListing drives the scroll-to-load loop: scroll to the bottom, wait a
// fixed interval, re-read the page height, and stop once two consecutive
// readings agree. The loop has no timeout of its own; the run context bounds
// it.
func (l *Loader) renderListing(ctx context.Context, url string) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(l.browser.allocCtx)
	defer cancelTab()

	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		tabCtx, cancelDeadline = context.WithDeadline(tabCtx, deadline)
		defer cancelDeadline()
	}

	var lastHeight float64
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(listingSettleWait),
		chromedp.Evaluate(`document.body.scrollHeight`, &lastHeight),
	)
	if err != nil {
		return "", fmt.Errorf("failed to load listing page %s: %w", url, err)
	}

	for {
		var height float64
		err := chromedp.Run(tabCtx,
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(l.scrollInterval),
			chromedp.Evaluate(`document.body.scrollHeight`, &height),
		)
		if err != nil {
			return "", fmt.Errorf("scroll loop failed on %s: %w", url, err)
		}
		if height == lastHeight {
			break
		}
		lastHeight = height
	}

	var rendered string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &rendered)); err != nil {
		return "", fmt.Errorf("failed to capture rendered listing %s: %w", url, err)
	}
	return rendered, nil
}
