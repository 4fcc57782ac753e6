package notifier

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds one progress write. A client that stops reading trips the
// deadline and loses its connection instead of blocking the pipeline.
const writeWait = 2 * time.Second

// ProgressUpdate is the frame pushed to a listening client after each
// persisted deal and at run milestones.
type ProgressUpdate struct {
	Message  string  `json:"message"`
	Progress float64 `json:"progress"`
}

// Hub tracks one WebSocket connection per session and fans progress events
// out to them. Delivery is best-effort: a dead or absent connection never
// affects the pipeline.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*websocket.Conn
}

func NewHub() *Hub {
	return &Hub{sessions: make(map[string]*websocket.Conn)}
}

// Register attaches a connection to a session, replacing any previous one.
func (h *Hub) Register(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.sessions[sessionID]; ok {
		old.Close()
	}
	h.sessions[sessionID] = conn
}

// Unregister detaches and closes a session's connection if it is still the
// registered one.
func (h *Hub) Unregister(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.sessions[sessionID]; ok && current == conn {
		delete(h.sessions, sessionID)
		current.Close()
	}
}

// Notify pushes one progress frame to the session's connection, if any.
// The hub mutex doubles as the per-connection write lock.
func (h *Hub) Notify(sessionID, message string, progress float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(ProgressUpdate{Message: message, Progress: progress}); err != nil {
		slog.Warn("Dropping dead progress connection", "session", sessionID, "error", err)
		delete(h.sessions, sessionID)
		conn.Close()
	}
}
