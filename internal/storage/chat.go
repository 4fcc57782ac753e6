package storage

import (
	"context"
	"fmt"
)

// ChatMessage is one stored turn of a chat session.
type ChatMessage struct {
	Role    string
	Content string
}

// SaveChatMessage appends one turn to a session's history.
func (s *Store) SaveChatMessage(ctx context.Context, sessionID, role, content string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_history (session_id, role, content) VALUES (?, ?, ?)`,
		sessionID, role, content)
	if err != nil {
		return fmt.Errorf("sqlite save chat message: %w", err)
	}
	return nil
}

// ChatHistory returns the last limit turns of a session in chronological
// order.
func (s *Store) ChatHistory(ctx context.Context, sessionID string, limit int) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content FROM (
			SELECT id, role, content FROM chat_history
			WHERE session_id = ?
			ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite chat history: %w", err)
	}
	defer rows.Close()

	var messages []ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, fmt.Errorf("sqlite scan chat message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite iterate chat history: %w", err)
	}
	return messages, nil
}

// ClearChatHistory drops every stored turn of a session.
func (s *Store) ClearChatHistory(ctx context.Context, sessionID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM chat_history WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("sqlite clear chat history: %w", err)
	}
	return nil
}
