package processor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/eatsdeals/eats-deals-bot/internal/config"
	"github.com/eatsdeals/eats-deals-bot/internal/models"
	"github.com/eatsdeals/eats-deals-bot/internal/scraper"
	"github.com/eatsdeals/eats-deals-bot/internal/util"
	"github.com/eatsdeals/eats-deals-bot/internal/validator"
)

// Processor runs one deal-discovery pass over a listing URL.
type Processor interface {
	FindDeals(ctx context.Context, listingURL, sessionID string) (*Result, error)
}

// cardOutcome is the typed result of processing one restaurant card. Cards
// never abort siblings; the outcome records how each one ended.
type cardOutcome int

const (
	cardCached cardOutcome = iota
	cardEmpty
	cardExtracted
	cardFailed
)

type cardResult struct {
	outcome cardOutcome
	deals   []models.Deal
}

// Result aggregates a full discovery run.
type Result struct {
	ListingURL  string
	Fingerprint string
	Deals       []models.Deal
	NewDeals    int
	CachedCards int
	EmptyCards  int
	FailedCards int
}

// DealFinder composes loader, fetcher, extractor and store into the
// concurrent discovery pipeline.
type DealFinder struct {
	loader    PageLoader
	fetcher   DetailFetcher
	extractor Extractor
	store     DealStore
	progress  ProgressNotifier
	validate  *validator.Validator
	limiter   *rate.Limiter
	segment   func(html string, depth int) []string

	cardConcurrency     int
	fragmentConcurrency int
	ancestorDepth       int
}

func New(loader PageLoader, fetcher DetailFetcher, extractor Extractor, store DealStore, progress ProgressNotifier, cfg *config.Config) *DealFinder {
	return &DealFinder{
		loader:              loader,
		fetcher:             fetcher,
		extractor:           extractor,
		store:               store,
		progress:            progress,
		validate:            validator.New(),
		limiter:             rate.NewLimiter(rate.Limit(cfg.ExtractionRPS), cfg.FragmentConcurrency),
		segment:             scraper.SegmentPromotions,
		cardConcurrency:     cfg.CardConcurrency,
		fragmentConcurrency: cfg.FragmentConcurrency,
		ancestorDepth:       cfg.PromoAncestorDepth,
	}
}

// FindDeals renders the listing page and fans out over its restaurant cards.
// A failing card or fragment contributes zero deals and never aborts its
// siblings; only a listing page that cannot be rendered fails the run.
func (f *DealFinder) FindDeals(ctx context.Context, listingURL, sessionID string) (*Result, error) {
	f.notify(sessionID, "Setting up browser session...", 0.1)

	cards, err := f.loader.LoadCards(ctx, listingURL)
	if err != nil {
		return nil, fmt.Errorf("failed to load listing page: %w", err)
	}
	f.notify(sessionID, "Scanning restaurant page...", 0.2)

	result := &Result{
		ListingURL:  listingURL,
		Fingerprint: util.Fingerprint(listingURL),
	}

	var (
		mu    sync.Mutex
		found atomic.Int64
	)

	g := new(errgroup.Group)
	g.SetLimit(f.cardConcurrency)
	for _, card := range cards {
		g.Go(func() error {
			res := f.processCard(ctx, card, sessionID, &found)

			mu.Lock()
			defer mu.Unlock()
			result.Deals = append(result.Deals, res.deals...)
			switch res.outcome {
			case cardCached:
				result.CachedCards++
			case cardEmpty:
				result.EmptyCards++
			case cardExtracted:
				result.NewDeals += len(res.deals)
			case cardFailed:
				result.FailedCards++
			}
			return nil
		})
	}
	g.Wait()

	f.notify(sessionID, "Completed!", 1.0)
	slog.Info("Discovery run finished",
		"url", listingURL,
		"cards", len(cards),
		"new_deals", result.NewDeals,
		"cached_cards", result.CachedCards,
		"failed_cards", result.FailedCards,
	)
	return result, nil
}

func (f *DealFinder) processCard(ctx context.Context, card models.CardInfo, sessionID string, found *atomic.Int64) cardResult {
	fingerprint := util.Fingerprint(card.DetailURL)

	cached, err := f.store.Lookup(ctx, fingerprint)
	if err != nil {
		// A failed lookup degrades to a cache miss rather than losing the card.
		slog.Warn("Cache lookup failed, re-scraping", "restaurant", card.Restaurant, "error", err)
	}
	if len(cached) > 0 {
		slog.Info("Cache hit, skipping scrape", "restaurant", card.Restaurant, "rows", len(cached))
		return cardResult{outcome: cardCached, deals: cached}
	}

	pageHTML, err := f.fetcher.FetchDetailHTML(ctx, card.DetailURL)
	if err != nil {
		slog.Warn("Failed to fetch detail page", "restaurant", card.Restaurant, "url", card.DetailURL, "error", err)
		return cardResult{outcome: cardFailed}
	}

	fragments := f.segment(pageHTML, f.ancestorDepth)
	if len(fragments) == 0 {
		slog.Info("No promotion markers found", "restaurant", card.Restaurant)
		return cardResult{outcome: cardEmpty}
	}

	var (
		mu    sync.Mutex
		deals []models.Deal
	)

	g := new(errgroup.Group)
	g.SetLimit(f.fragmentConcurrency)
	for i, fragment := range fragments {
		g.Go(func() error {
			extracted := f.processFragment(ctx, fragment, i, card, sessionID, found)
			mu.Lock()
			deals = append(deals, extracted...)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return cardResult{outcome: cardExtracted, deals: deals}
}

// processFragment runs extract → normalize → persist for one fragment.
// Every failure mode here is isolated to this fragment.
func (f *DealFinder) processFragment(ctx context.Context, fragment string, index int, card models.CardInfo, sessionID string, found *atomic.Int64) []models.Deal {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil
	}

	raws, err := f.extractor.ExtractDeals(ctx, fragment)
	if err != nil {
		slog.Warn("Fragment extraction failed", "restaurant", card.Restaurant, "fragment", index, "error", err)
		return nil
	}

	var deals []models.Deal
	for _, raw := range raws {
		deal := validator.Normalize(raw, card, card.DetailURL)
		if err := f.validate.ValidateStruct(deal); err != nil {
			slog.Warn("Dropping invalid extracted deal", "restaurant", card.Restaurant, "item", raw.Name, "error", err)
			continue
		}

		if err := f.store.Upsert(ctx, deal); err != nil {
			slog.Warn("Failed to persist deal", "restaurant", card.Restaurant, "item", deal.ItemName, "error", err)
			continue
		}

		n := found.Add(1)
		f.notify(sessionID,
			fmt.Sprintf("Found deal: %s from %s", deal.ItemName, deal.Restaurant),
			dealProgress(n))
		deals = append(deals, deal)
	}
	return deals
}

// dealProgress maps the running deal count onto [0.1, 0.9]; the final 10%
// is reserved for run completion.
func dealProgress(found int64) float64 {
	p := 0.1 + float64(found)*0.8/20
	if p > 0.9 {
		return 0.9
	}
	return p
}

func (f *DealFinder) notify(sessionID, message string, progress float64) {
	if f.progress == nil {
		return
	}
	f.progress.Notify(sessionID, message, progress)
}
