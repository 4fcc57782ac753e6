package validator

import (
	"strings"

	"github.com/eatsdeals/eats-deals-bot/internal/models"
	"github.com/eatsdeals/eats-deals-bot/internal/util"
)

// Normalize merges card-level metadata with the fields extracted from one
// fragment into a canonical Deal. Fragment-level fields win on collision.
// It never fails: malformed prices become 0.0 and absent strings become
// empty, so a best-effort Deal always comes back.
func Normalize(raw models.RawDeal, card models.CardInfo, detailURL string) models.Deal {
	deal := models.Deal{
		Fingerprint:      util.Fingerprint(detailURL),
		Restaurant:       card.Restaurant,
		ItemName:         strings.TrimSpace(raw.Name),
		Price:            coercePrice(raw.Price),
		Description:      raw.Description,
		PromotionType:    raw.Promotion,
		DeliveryFee:      card.DeliveryFee,
		RatingAndReviews: card.RatingAndReviews,
		DeliveryTime:     card.DeliveryTime,
		URL:              detailURL,
	}
	if deal.PromotionType == "" {
		deal.PromotionType = card.Promotion
	}
	return deal
}

// coercePrice accepts whatever the model put in the price field. The prompt
// asks for a plain float but string prices and junk still show up.
func coercePrice(v any) float64 {
	switch p := v.(type) {
	case float64:
		if p < 0 {
			return 0.0
		}
		return p
	case int:
		if p < 0 {
			return 0.0
		}
		return float64(p)
	case string:
		return util.ParsePrice(p)
	default:
		return 0.0
	}
}
