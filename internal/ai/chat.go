package ai

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string // "user" or "model"
	Content string
}

// Converse sends a full conversation to the model and returns its reply.
// The deals context travels as the first user turn, so history replay stays
// cheap and the system instruction stays fixed.
func (c *Client) Converse(ctx context.Context, system string, messages []Message) (string, error) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		var role genai.Role = genai.RoleUser
		if m.Role == "model" || m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr[float32](0.7),
		MaxOutputTokens:   1000,
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.modelID, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}

	reply := resp.Text()
	if reply == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return reply, nil
}
