package models

import (
	"time"
)

// NotSpecified is the sentinel stored when a card-level field cannot be
// read from the listing page.
const NotSpecified = "Not specified"

// Deal is one promoted menu item observed on one restaurant's detail page.
// Identity is the (Fingerprint, ItemName) pair; a later write for the same
// pair replaces the earlier row.
type Deal struct {
	Fingerprint      string    `json:"-" validate:"required"`
	Restaurant       string    `json:"restaurant"`
	ItemName         string    `json:"item_name" validate:"required"`
	Price            float64   `json:"price" validate:"gte=0"`
	Description      string    `json:"description"`
	PromotionType    string    `json:"promotion_type"`
	DeliveryFee      string    `json:"delivery_fee"`
	RatingAndReviews string    `json:"rating_and_reviews"`
	DeliveryTime     string    `json:"delivery_time"`
	URL              string    `json:"url" validate:"required,url"`
	Timestamp        time.Time `json:"timestamp"`
}

// RawDeal is a single entry of the extraction model's "deals" array, before
// normalization. Price is untyped because the model sometimes returns it as
// a string despite the prompt.
type RawDeal struct {
	Name        string `json:"name"`
	Price       any    `json:"price"`
	Description string `json:"description"`
	Promotion   string `json:"promotion"`
}

// CardInfo is the metadata read defensively from one restaurant card on the
// listing page. Fields the page does not expose carry sentinel defaults.
type CardInfo struct {
	Restaurant       string
	DetailURL        string
	Promotion        string
	DeliveryFee      string
	RatingAndReviews string
	DeliveryTime     string
}
