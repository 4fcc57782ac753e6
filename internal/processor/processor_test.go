package processor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/eatsdeals/eats-deals-bot/internal/config"
	"github.com/eatsdeals/eats-deals-bot/internal/models"
	"github.com/eatsdeals/eats-deals-bot/internal/util"
)

type mockLoader struct {
	cards []models.CardInfo
	err   error
}

func (m *mockLoader) LoadCards(ctx context.Context, url string) ([]models.CardInfo, error) {
	return m.cards, m.err
}

type mockFetcher struct {
	mu      sync.Mutex
	calls   int
	pages   map[string]string
	failFor map[string]bool
}

func (m *mockFetcher) FetchDetailHTML(ctx context.Context, url string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.failFor[url] {
		return "", errors.New("detail page unreachable")
	}
	return m.pages[url], nil
}

func (m *mockFetcher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockExtractor struct {
	calls atomic.Int64
	fn    func(fragment string) ([]models.RawDeal, error)
}

func (m *mockExtractor) ExtractDeals(ctx context.Context, fragment string) ([]models.RawDeal, error) {
	m.calls.Add(1)
	if m.fn == nil {
		return nil, nil
	}
	return m.fn(fragment)
}

type mockStore struct {
	mu        sync.Mutex
	rows      map[string][]models.Deal
	upserts   []models.Deal
	lookupErr error
	upsertErr error
}

func newMockStore() *mockStore {
	return &mockStore{rows: make(map[string][]models.Deal)}
}

func (m *mockStore) Lookup(ctx context.Context, fingerprint string) ([]models.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	return m.rows[fingerprint], nil
}

func (m *mockStore) Upsert(ctx context.Context, deal models.Deal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserts = append(m.upserts, deal)
	return nil
}

type progressEvent struct {
	message  string
	progress float64
}

type mockNotifier struct {
	mu     sync.Mutex
	events []progressEvent
}

func (m *mockNotifier) Notify(sessionID, message string, progress float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, progressEvent{message, progress})
}

func (m *mockNotifier) snapshot() []progressEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]progressEvent(nil), m.events...)
}

func testConfig() *config.Config {
	return &config.Config{
		CardConcurrency:     4,
		FragmentConcurrency: 2,
		ExtractionRPS:       1000,
		PromoAncestorDepth:  9,
	}
}

func newTestFinder(loader *mockLoader, fetcher *mockFetcher, extractor *mockExtractor, store *mockStore, notifier *mockNotifier) *DealFinder {
	f := New(loader, fetcher, extractor, store, notifier, testConfig())
	// One fragment per promotion marker keeps fixtures readable.
	f.segment = func(html string, depth int) []string {
		var fragments []string
		for _, part := range strings.Split(html, "|") {
			if strings.Contains(part, "promo-tag") {
				fragments = append(fragments, part)
			}
		}
		return fragments
	}
	return f
}

func TestFindDealsListingFailureIsFatal(t *testing.T) {
	loader := &mockLoader{err: errors.New("browser crashed")}
	finder := newTestFinder(loader, &mockFetcher{}, &mockExtractor{}, newMockStore(), &mockNotifier{})

	_, err := finder.FindDeals(context.Background(), "https://example.com/feed", "s1")
	if err == nil {
		t.Fatal("expected error when the listing page cannot be loaded")
	}
}

func TestFindDealsEndToEnd(t *testing.T) {
	cards := []models.CardInfo{
		{Restaurant: "Burger Barn", DetailURL: "https://example.com/store/burger-barn?mod=quickView", DeliveryFee: "€0.49 Delivery Fee"},
		{Restaurant: "Salad Stop", DetailURL: "https://example.com/store/salad-stop?mod=quickView"},
	}
	fetcher := &mockFetcher{pages: map[string]string{
		cards[0].DetailURL: `<li>promo-tag burger</li>|<li>plain salad</li>`,
		cards[1].DetailURL: `<li>no markers here</li>`,
	}}
	extractor := &mockExtractor{fn: func(fragment string) ([]models.RawDeal, error) {
		return []models.RawDeal{{
			Name:      "Double Cheeseburger",
			Price:     9.99,
			Promotion: "Buy 1, Get 1 Free",
		}}, nil
	}}
	store := newMockStore()
	notifier := &mockNotifier{}

	finder := newTestFinder(&mockLoader{cards: cards}, fetcher, extractor, store, notifier)
	result, err := finder.FindDeals(context.Background(), "https://example.com/feed", "s1")
	if err != nil {
		t.Fatalf("FindDeals() error = %v", err)
	}

	if result.NewDeals != 1 {
		t.Errorf("NewDeals = %d, want 1", result.NewDeals)
	}
	if result.EmptyCards != 1 {
		t.Errorf("EmptyCards = %d, want 1", result.EmptyCards)
	}
	if len(result.Deals) != 1 {
		t.Fatalf("expected 1 deal, got %d", len(result.Deals))
	}

	deal := result.Deals[0]
	if deal.ItemName != "Double Cheeseburger" || deal.Price != 9.99 {
		t.Errorf("unexpected deal: %+v", deal)
	}
	if deal.Restaurant != "Burger Barn" {
		t.Errorf("Restaurant = %q", deal.Restaurant)
	}
	if deal.Fingerprint != util.Fingerprint(cards[0].DetailURL) {
		t.Errorf("Fingerprint = %q", deal.Fingerprint)
	}
	if len(store.upserts) != 1 {
		t.Errorf("expected 1 upsert, got %d", len(store.upserts))
	}

	// Only the marked fragment reaches the extractor.
	if got := extractor.calls.Load(); got != 1 {
		t.Errorf("extractor called %d times, want 1", got)
	}

	events := notifier.snapshot()
	if len(events) < 3 {
		t.Fatalf("expected at least 3 progress events, got %d", len(events))
	}
	if events[0].progress != 0.1 {
		t.Errorf("first event progress = %v, want 0.1", events[0].progress)
	}
	last := events[len(events)-1]
	if last.message != "Completed!" || last.progress != 1.0 {
		t.Errorf("last event = %+v", last)
	}
}

func TestFindDealsCacheShortCircuits(t *testing.T) {
	card := models.CardInfo{Restaurant: "Burger Barn", DetailURL: "https://example.com/store/burger-barn"}
	cached := models.Deal{
		Fingerprint: util.Fingerprint(card.DetailURL),
		Restaurant:  "Burger Barn",
		ItemName:    "Double Cheeseburger",
		Price:       9.99,
		URL:         card.DetailURL,
	}
	store := newMockStore()
	store.rows[cached.Fingerprint] = []models.Deal{cached}

	fetcher := &mockFetcher{}
	extractor := &mockExtractor{}
	finder := newTestFinder(&mockLoader{cards: []models.CardInfo{card}}, fetcher, extractor, store, &mockNotifier{})

	result, err := finder.FindDeals(context.Background(), "https://example.com/feed", "s1")
	if err != nil {
		t.Fatalf("FindDeals() error = %v", err)
	}

	if result.CachedCards != 1 {
		t.Errorf("CachedCards = %d, want 1", result.CachedCards)
	}
	if result.NewDeals != 0 {
		t.Errorf("NewDeals = %d, want 0", result.NewDeals)
	}
	if len(result.Deals) != 1 || result.Deals[0].ItemName != "Double Cheeseburger" {
		t.Errorf("cached deals not returned: %+v", result.Deals)
	}
	if fetcher.callCount() != 0 {
		t.Errorf("fetcher called %d times on cache hit, want 0", fetcher.callCount())
	}
	if extractor.calls.Load() != 0 {
		t.Errorf("extractor called on cache hit")
	}
}

func TestFindDealsLookupFailureDegradesToMiss(t *testing.T) {
	card := models.CardInfo{Restaurant: "Burger Barn", DetailURL: "https://example.com/store/burger-barn"}
	store := newMockStore()
	store.lookupErr = errors.New("db locked")

	fetcher := &mockFetcher{pages: map[string]string{card.DetailURL: "<li>no markers</li>"}}
	finder := newTestFinder(&mockLoader{cards: []models.CardInfo{card}}, fetcher, &mockExtractor{}, store, &mockNotifier{})

	result, err := finder.FindDeals(context.Background(), "https://example.com/feed", "s1")
	if err != nil {
		t.Fatalf("FindDeals() error = %v", err)
	}
	if fetcher.callCount() != 1 {
		t.Errorf("card not re-scraped after lookup failure")
	}
	if result.FailedCards != 0 {
		t.Errorf("FailedCards = %d, want 0", result.FailedCards)
	}
}

func TestFindDealsCardFailureIsIsolated(t *testing.T) {
	good := models.CardInfo{Restaurant: "Burger Barn", DetailURL: "https://example.com/store/burger-barn"}
	bad := models.CardInfo{Restaurant: "Ghost Kitchen", DetailURL: "https://example.com/store/ghost"}

	fetcher := &mockFetcher{
		pages:   map[string]string{good.DetailURL: "<li>promo-tag burger</li>"},
		failFor: map[string]bool{bad.DetailURL: true},
	}
	extractor := &mockExtractor{fn: func(string) ([]models.RawDeal, error) {
		return []models.RawDeal{{Name: "Double Cheeseburger", Price: 9.99, Promotion: "Top Offer"}}, nil
	}}
	store := newMockStore()

	finder := newTestFinder(&mockLoader{cards: []models.CardInfo{good, bad}}, fetcher, extractor, store, &mockNotifier{})
	result, err := finder.FindDeals(context.Background(), "https://example.com/feed", "s1")
	if err != nil {
		t.Fatalf("FindDeals() error = %v", err)
	}

	if result.FailedCards != 1 {
		t.Errorf("FailedCards = %d, want 1", result.FailedCards)
	}
	if result.NewDeals != 1 {
		t.Errorf("NewDeals = %d, want 1", result.NewDeals)
	}
}

func TestFindDealsFragmentFailureIsIsolated(t *testing.T) {
	card := models.CardInfo{Restaurant: "Burger Barn", DetailURL: "https://example.com/store/burger-barn"}
	fetcher := &mockFetcher{pages: map[string]string{
		card.DetailURL: "<li>promo-tag broken</li>|<li>promo-tag burger</li>",
	}}
	extractor := &mockExtractor{fn: func(fragment string) ([]models.RawDeal, error) {
		if strings.Contains(fragment, "broken") {
			return nil, errors.New("model returned prose")
		}
		return []models.RawDeal{{Name: "Double Cheeseburger", Price: 9.99, Promotion: "Top Offer"}}, nil
	}}
	store := newMockStore()

	finder := newTestFinder(&mockLoader{cards: []models.CardInfo{card}}, fetcher, extractor, store, &mockNotifier{})
	result, err := finder.FindDeals(context.Background(), "https://example.com/feed", "s1")
	if err != nil {
		t.Fatalf("FindDeals() error = %v", err)
	}

	if result.NewDeals != 1 {
		t.Errorf("NewDeals = %d, want 1", result.NewDeals)
	}
	if len(store.upserts) != 1 {
		t.Errorf("expected 1 upsert, got %d", len(store.upserts))
	}
}

func TestFindDealsInvalidDealDropped(t *testing.T) {
	card := models.CardInfo{Restaurant: "Burger Barn", DetailURL: "https://example.com/store/burger-barn"}
	fetcher := &mockFetcher{pages: map[string]string{card.DetailURL: "<li>promo-tag burger</li>"}}
	extractor := &mockExtractor{fn: func(string) ([]models.RawDeal, error) {
		return []models.RawDeal{
			{Name: "", Price: 9.99},
			{Name: "Fries", Price: 3.5, Promotion: "Top Offer"},
		}, nil
	}}
	store := newMockStore()

	finder := newTestFinder(&mockLoader{cards: []models.CardInfo{card}}, fetcher, extractor, store, &mockNotifier{})
	result, err := finder.FindDeals(context.Background(), "https://example.com/feed", "s1")
	if err != nil {
		t.Fatalf("FindDeals() error = %v", err)
	}

	if result.NewDeals != 1 {
		t.Errorf("NewDeals = %d, want 1", result.NewDeals)
	}
	if len(store.upserts) != 1 || store.upserts[0].ItemName != "Fries" {
		t.Errorf("unexpected upserts: %+v", store.upserts)
	}
}

func TestFindDealsUpsertFailureSkipsDeal(t *testing.T) {
	card := models.CardInfo{Restaurant: "Burger Barn", DetailURL: "https://example.com/store/burger-barn"}
	fetcher := &mockFetcher{pages: map[string]string{card.DetailURL: "<li>promo-tag burger</li>"}}
	extractor := &mockExtractor{fn: func(string) ([]models.RawDeal, error) {
		return []models.RawDeal{{Name: "Double Cheeseburger", Price: 9.99, Promotion: "Top Offer"}}, nil
	}}
	store := newMockStore()
	store.upsertErr = errors.New("disk full")

	finder := newTestFinder(&mockLoader{cards: []models.CardInfo{card}}, fetcher, extractor, store, &mockNotifier{})
	result, err := finder.FindDeals(context.Background(), "https://example.com/feed", "s1")
	if err != nil {
		t.Fatalf("FindDeals() error = %v", err)
	}

	if result.NewDeals != 0 {
		t.Errorf("NewDeals = %d, want 0 when persistence fails", result.NewDeals)
	}
}

func TestDealProgressCapped(t *testing.T) {
	first := dealProgress(1)
	if first <= 0.1 || first >= 0.2 {
		t.Errorf("dealProgress(1) = %v, want just above 0.1", first)
	}
	if got := dealProgress(10); got <= first {
		t.Errorf("dealProgress(10) = %v, want monotonic increase", got)
	}
	if got := dealProgress(500); got != 0.9 {
		t.Errorf("dealProgress(500) = %v, want capped at 0.9", got)
	}
}
