package processor

import (
	"context"

	"github.com/eatsdeals/eats-deals-bot/internal/models"
)

// PageLoader renders the listing page and enumerates its restaurant cards.
type PageLoader interface {
	LoadCards(ctx context.Context, url string) ([]models.CardInfo, error)
}

// DetailFetcher retrieves the raw HTML of one restaurant detail page.
type DetailFetcher interface {
	FetchDetailHTML(ctx context.Context, url string) (string, error)
}

// Extractor turns one HTML fragment into raw deal records.
type Extractor interface {
	ExtractDeals(ctx context.Context, fragment string) ([]models.RawDeal, error)
}

// DealStore abstracts the persistence layer for deal rows.
type DealStore interface {
	Lookup(ctx context.Context, fingerprint string) ([]models.Deal, error)
	Upsert(ctx context.Context, deal models.Deal) error
}

// ProgressNotifier receives best-effort progress events. Implementations
// must never let a delivery failure surface to the pipeline.
type ProgressNotifier interface {
	Notify(sessionID, message string, progress float64)
}
