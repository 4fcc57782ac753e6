package scraper

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// promoMarkerSignature identifies the image asset rendered next to every
// promoted menu item.
const promoMarkerSignature = "promo-tag"

// DefaultAncestorDepth is how many levels the segmenter climbs from a
// promotion marker to bracket one full menu-item card. The value is an
// empirical compromise: shallower fragments lose price and description
// context, deeper ones absorb sibling items and waste model tokens. Tune it
// through PROMO_ANCESTOR_DEPTH when the page structure drifts.
const DefaultAncestorDepth = 9

// SegmentPromotions isolates one HTML fragment per promotion marker in a
// restaurant detail page. No markers means the restaurant has no visible
// promotions and the result is empty — callers skip extraction entirely.
// The walk is idempotent and tolerant of malformed markup.
func SegmentPromotions(pageHTML string, depth int) []string {
	if depth <= 0 {
		depth = DefaultAncestorDepth
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil
	}

	var fragments []string
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok || !strings.Contains(src, promoMarkerSignature) {
			return
		}

		node := s.Get(0)
		for i := 0; i < depth; i++ {
			if node.Parent == nil || node.Parent.Type == html.DocumentNode {
				break
			}
			node = node.Parent
		}

		var buf bytes.Buffer
		if err := html.Render(&buf, node); err != nil {
			return
		}
		fragments = append(fragments, buf.String())
	})
	return fragments
}
