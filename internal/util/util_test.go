package util

import (
	"testing"
)

func TestFingerprintDeterministic(t *testing.T) {
	url := "https://www.ubereats.com/city/offers"
	first := Fingerprint(url)
	second := Fingerprint(url)
	if first != second {
		t.Errorf("Fingerprint() not deterministic: %q vs %q", first, second)
	}
	if len(first) != 16 {
		t.Errorf("Fingerprint() length = %d, want 16", len(first))
	}
}

func TestFingerprintDistinctURLs(t *testing.T) {
	a := Fingerprint("https://www.ubereats.com/store/pizza-place")
	b := Fingerprint("https://www.ubereats.com/store/burger-place")
	if a == b {
		t.Errorf("Fingerprint() collided for distinct URLs: %q", a)
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
	}{
		{name: "Comma decimal with currency", input: "12,99 €", want: 12.99},
		{name: "Range uses lower bound", input: "12,99 € - 15,99 €", want: 12.99},
		{name: "Dot decimal", input: "9.50", want: 9.5},
		{name: "Integer", input: "7", want: 7},
		{name: "Currency prefix", input: "EUR 4,20", want: 4.2},
		{name: "Empty", input: "", want: 0.0},
		{name: "Garbage", input: "free delivery!", want: 0.0},
		{name: "Whitespace only", input: "   ", want: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParsePrice(tt.input); got != tt.want {
				t.Errorf("ParsePrice(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
