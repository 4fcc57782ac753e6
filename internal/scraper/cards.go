package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/eatsdeals/eats-deals-bot/internal/models"
)

const storeCardSelector = `[data-testid="store-card"]`

// fieldStrategy is one way to pull a card field out of the markup. Strategies
// run in order; the first one that succeeds wins.
type fieldStrategy struct {
	name    string
	extract func(*goquery.Selection) (string, bool)
}

var restaurantNameStrategies = []fieldStrategy{
	{
		name: "heading",
		extract: func(s *goquery.Selection) (string, bool) {
			text := strings.TrimSpace(s.Find("h3").First().Text())
			return text, text != ""
		},
	},
	{
		name: "aria-label",
		extract: func(s *goquery.Selection) (string, bool) {
			label, ok := s.Attr("aria-label")
			label = strings.TrimSpace(label)
			return label, ok && label != ""
		},
	},
}

// ParseCards enumerates the restaurant cards in a rendered listing page.
// Every per-card lookup tolerates absence: missing fields degrade to
// sentinel values, and only a card without a name or link is dropped.
func ParseCards(renderedHTML string) ([]models.CardInfo, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(renderedHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rendered listing: %w", err)
	}

	var cards []models.CardInfo
	doc.Find(storeCardSelector).Each(func(_ int, inner *goquery.Selection) {
		// The clickable anchor is either the card element itself or its
		// parent wrapper.
		link := inner
		if !inner.Is("a") {
			if parent := inner.Parent(); parent.Is("a") {
				link = parent
			}
		}

		card := parseCard(link)
		if card == nil {
			return
		}
		cards = append(cards, *card)
	})
	return cards, nil
}

func parseCard(link *goquery.Selection) *models.CardInfo {
	name := firstStrategyMatch(link, restaurantNameStrategies)
	if name == "" {
		return nil
	}

	href, ok := link.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return nil
	}

	card := models.CardInfo{
		Restaurant:       name,
		DetailURL:        quickViewURL(strings.TrimSpace(href)),
		Promotion:        "No promotion displayed",
		DeliveryFee:      models.NotSpecified,
		RatingAndReviews: "",
		DeliveryTime:     models.NotSpecified,
	}

	if promos := deepestTextMatches(link, func(t string) bool {
		return strings.Contains(t, "Buy 1, Get 1") || strings.Contains(t, "Top Offer")
	}); len(promos) > 0 {
		card.Promotion = strings.TrimSpace(promos[0].Text())
	}

	if fees := deepestTextMatches(link, func(t string) bool {
		return strings.Contains(t, "€") && strings.Contains(t, "Delivery Fee")
	}); len(fees) > 0 {
		card.DeliveryFee = strings.TrimSpace(fees[0].Text())
	}

	// Rating appears as a span titled with the score ("4.6"), review count
	// as a span titled with a plus suffix ("500+").
	rating := firstTitleContaining(link, ".")
	reviews := firstTitleContaining(link, "+")
	if rating != "" && reviews != "" {
		card.RatingAndReviews = fmt.Sprintf("%s (%s)", rating, reviews)
	}

	if times := deepestTextMatches(link, func(t string) bool {
		return strings.Contains(t, "Min")
	}); len(times) > 0 {
		card.DeliveryTime = strings.TrimSpace(times[len(times)-1].Text())
	}

	return &card
}

func firstStrategyMatch(s *goquery.Selection, strategies []fieldStrategy) string {
	for _, strat := range strategies {
		if value, ok := strat.extract(s); ok {
			return value
		}
	}
	return ""
}

// deepestTextMatches returns the deepest elements whose text satisfies match,
// skipping ancestors whose match comes only from a matching child.
func deepestTextMatches(root *goquery.Selection, match func(string) bool) []*goquery.Selection {
	var out []*goquery.Selection
	root.Find("*").Each(func(_ int, s *goquery.Selection) {
		if !match(s.Text()) {
			return
		}
		childMatches := false
		s.Children().Each(func(_ int, c *goquery.Selection) {
			if match(c.Text()) {
				childMatches = true
			}
		})
		if !childMatches {
			out = append(out, s)
		}
	})
	return out
}

func firstTitleContaining(root *goquery.Selection, substr string) string {
	var found string
	root.Find("span[title]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		title, _ := s.Attr("title")
		if strings.Contains(title, substr) {
			found = title
			return false
		}
		return true
	})
	return found
}

// quickViewURL appends the quick-view modifier so the detail page serves the
// full menu markup without interactive navigation.
func quickViewURL(link string) string {
	if strings.Contains(link, "?") {
		return link + "&mod=quickView"
	}
	return link + "?mod=quickView"
}
