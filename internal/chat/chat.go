package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/eatsdeals/eats-deals-bot/internal/ai"
	"github.com/eatsdeals/eats-deals-bot/internal/models"
	"github.com/eatsdeals/eats-deals-bot/internal/storage"
)

const systemPrompt = `You are a helpful assistant that helps users find deals from Uber Eats.
You have access to a database of deals that will be provided in the next message.
When suggesting deals:
1. Always include the restaurant name, item name, price, and promotion type
2. Always include the URL so the user can check it out
3. Try to sort or prioritize deals based on what seems most relevant to the user's request
4. If you're showing multiple deals, use a numbered list
5. If the user asks about prices, always show the actual price
6. If you're not sure about something, say so
7. Keep your responses conversational but concise

The deals data will be provided in JSON format in the user's first message.
`

// historyWindow bounds how many stored turns are replayed per request.
const historyWindow = 20

// DealStore is the slice of storage the chat layer reads and writes.
type DealStore interface {
	All(ctx context.Context) ([]models.Deal, error)
	ChatHistory(ctx context.Context, sessionID string, limit int) ([]storage.ChatMessage, error)
	SaveChatMessage(ctx context.Context, sessionID, role, content string) error
	ClearChatHistory(ctx context.Context, sessionID string) error
}

// Conversationalist produces a model reply for a conversation.
type Conversationalist interface {
	Converse(ctx context.Context, system string, messages []ai.Message) (string, error)
}

// Service answers questions about the stored deals. Deals are read-only
// here; the chat layer never mutates deal rows.
type Service struct {
	store DealStore
	model Conversationalist
}

func New(store DealStore, model Conversationalist) *Service {
	return &Service{store: store, model: model}
}

// Ask answers one user question in the context of a session. The stored
// deal set rides along as the first user turn, followed by the session's
// recent history and the new question.
func (s *Service) Ask(ctx context.Context, sessionID, question string) (string, error) {
	deals, err := s.store.All(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load deals for chat: %w", err)
	}
	if len(deals) == 0 {
		return "", fmt.Errorf("no deals stored yet; run a discovery first")
	}

	dealsJSON, err := json.Marshal(deals)
	if err != nil {
		return "", fmt.Errorf("failed to serialize deals: %w", err)
	}

	history, err := s.store.ChatHistory(ctx, sessionID, historyWindow)
	if err != nil {
		return "", fmt.Errorf("failed to load chat history: %w", err)
	}

	messages := make([]ai.Message, 0, len(history)+2)
	messages = append(messages, ai.Message{
		Role:    "user",
		Content: "Here is the deals data to work with: " + string(dealsJSON),
	})
	for _, m := range history {
		messages = append(messages, ai.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, ai.Message{Role: "user", Content: question})

	reply, err := s.model.Converse(ctx, systemPrompt, messages)
	if err != nil {
		return "", err
	}

	// History persistence is best-effort; a failed write loses context on
	// the next turn but never the reply.
	if err := s.store.SaveChatMessage(ctx, sessionID, "user", question); err != nil {
		slog.Warn("Failed to persist chat turn", "session", sessionID, "error", err)
		return reply, nil
	}
	if err := s.store.SaveChatMessage(ctx, sessionID, "model", reply); err != nil {
		slog.Warn("Failed to persist chat turn", "session", sessionID, "error", err)
	}
	return reply, nil
}

// Reset drops a session's stored history so the next question starts a fresh
// conversation over the current deal set.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	if err := s.store.ClearChatHistory(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to clear chat history: %w", err)
	}
	return nil
}
