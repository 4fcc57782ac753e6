package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/eatsdeals/eats-deals-bot/internal/models"
)

const systemInstruction = "You are a specialized HTML parser focused on extracting deal information from Uber Eats pages."

const extractionPrompt = `
Extract deal information from the following HTML snippet of an Uber Eats restaurant page.
Focus on items that have promotions like "Buy 1, Get 1 Free" or "Top Offer".

For each deal found, provide:
1. Item name
2. Price as a float number (remove the € symbol and convert to float, e.g., "12,99 €" should become 12.99)
3. Description (if available)
4. Promotion type (e.g., "Buy 1, Get 1 Free")

Return the information in this JSON format:
{
    "deals": [
        {
            "name": "Item name",
            "price": 12.99,
            "description": "Item description",
            "promotion": "Promotion type"
        }
    ]
}

Important formatting rules:
- Price must be a float number, not a string
- Convert comma-separated prices to dot-separated (e.g., "12,99" → 12.99)
- Remove any currency symbols (€, EUR, etc.)
- If a price range is given (e.g., "12,99 € - 15,99 €"), use the lower price
- If no price is found, use 0.0

If no deals are found, return an empty deals array.
HTML:
`

type Client struct {
	client  *genai.Client
	modelID string
}

func NewClient(ctx context.Context, apiKey, modelID string) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Client{client: client, modelID: modelID}, nil
}

// ExtractDeals sends one HTML fragment to the model and returns the raw deal
// records it reports. A malformed response returns an error; callers treat
// that as zero deals for this fragment, never as a pipeline failure.
func (c *Client) ExtractDeals(ctx context.Context, fragment string) ([]models.RawDeal, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr[float32](0.1),
		MaxOutputTokens:   1000,
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.modelID, genai.Text(extractionPrompt+fragment), cfg)
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}

	return decodeDeals(resp.Text())
}

// unwrapJSON strips an optional markdown code fence. When a ```json fence is
// present only the content between the first fence and its closing fence is
// kept; otherwise the whole trimmed response is returned.
func unwrapJSON(s string) string {
	if i := strings.Index(s, "```json"); i >= 0 {
		rest := s[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(s)
}

func decodeDeals(response string) ([]models.RawDeal, error) {
	payload := unwrapJSON(response)

	var parsed struct {
		Deals []models.RawDeal `json:"deals"`
	}
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse model response as JSON: %w", err)
	}
	if parsed.Deals == nil {
		return nil, fmt.Errorf("model response has no \"deals\" key")
	}
	return parsed.Deals, nil
}
