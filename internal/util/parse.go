package util

import (
	"regexp"
	"strconv"
	"strings"
)

// Matches the first decimal number in a string, after comma-decimals have
// been converted. Ranges like "12.99 - 15.99" therefore yield the lower bound.
var priceNumberRegex = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ParsePrice coerces a displayed price string into a float. Comma-decimal
// notation is converted to dot-decimal, currency symbols are ignored, and a
// price range yields its lower bound. Anything unparseable yields 0.0.
func ParsePrice(s string) float64 {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	match := priceNumberRegex.FindString(cleaned)
	if match == "" {
		return 0.0
	}
	price, err := strconv.ParseFloat(match, 64)
	if err != nil || price < 0 {
		return 0.0
	}
	return price
}
