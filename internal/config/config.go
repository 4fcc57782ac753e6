package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

type Config struct {
	GeminiAPIKey string
	GeminiModel  string
	DBPath       string
	Port         string

	// Fan-out bounds for one discovery run.
	CardConcurrency     int
	FragmentConcurrency int

	// Extraction calls per second across all fragments.
	ExtractionRPS float64

	// Fixed polling interval of the scroll-to-bottom loop.
	ScrollInterval time.Duration

	// How many ancestor levels the segmenter climbs from a promotion
	// marker to bracket one menu-item card. Tuned empirically; raising it
	// widens fragments, lowering it risks dropping price and description
	// context.
	PromoAncestorDepth int

	// Janitor policy: rows older than StaleAfter are deleted every
	// JanitorInterval.
	StaleAfter      time.Duration
	JanitorInterval time.Duration

	// Optional path to the Chrome binary for chromedp.
	ChromePath string
}

func Load() (*Config, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required but not set")
	}

	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = "gemini-2.0-flash"
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "uber_deals.db"
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
		slog.Info("Defaulting to port", "port", port)
	}

	cardConcurrency, err := intEnv("CARD_CONCURRENCY", 8)
	if err != nil {
		return nil, err
	}
	fragmentConcurrency, err := intEnv("FRAGMENT_CONCURRENCY", 5)
	if err != nil {
		return nil, err
	}
	ancestorDepth, err := intEnv("PROMO_ANCESTOR_DEPTH", 9)
	if err != nil {
		return nil, err
	}

	extractionRPS := 4.0
	if v := os.Getenv("EXTRACTION_RPS"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid EXTRACTION_RPS %q", v)
		}
		extractionRPS = parsed
	}

	scrollInterval, err := durationEnv("SCROLL_INTERVAL", 2*time.Second)
	if err != nil {
		return nil, err
	}
	staleAfter, err := durationEnv("STALE_AFTER", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	janitorInterval, err := durationEnv("JANITOR_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	return &Config{
		GeminiAPIKey:        apiKey,
		GeminiModel:         model,
		DBPath:              dbPath,
		Port:                port,
		CardConcurrency:     cardConcurrency,
		FragmentConcurrency: fragmentConcurrency,
		ExtractionRPS:       extractionRPS,
		ScrollInterval:      scrollInterval,
		PromoAncestorDepth:  ancestorDepth,
		StaleAfter:          staleAfter,
		JanitorInterval:     janitorInterval,
		ChromePath:          os.Getenv("CHROME_PATH"),
	}, nil
}

func intEnv(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return parsed, nil
}

func durationEnv(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return parsed, nil
}
