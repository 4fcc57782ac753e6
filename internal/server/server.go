package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/eatsdeals/eats-deals-bot/internal/models"
	"github.com/eatsdeals/eats-deals-bot/internal/notifier"
	"github.com/eatsdeals/eats-deals-bot/internal/processor"
)

// runTimeout bounds one discovery run, scroll loop included.
const runTimeout = 10 * time.Minute

// DealReader is the read-only slice of storage the API exposes.
type DealReader interface {
	All(ctx context.Context) ([]models.Deal, error)
	Lookup(ctx context.Context, fingerprint string) ([]models.Deal, error)
}

// ChatService answers questions over the stored deals.
type ChatService interface {
	Ask(ctx context.Context, sessionID, question string) (string, error)
	Reset(ctx context.Context, sessionID string) error
}

type Server struct {
	processor processor.Processor
	deals     DealReader
	chat      ChatService
	hub       *notifier.Hub
	upgrader  websocket.Upgrader
}

func New(p processor.Processor, deals DealReader, chat ChatService, hub *notifier.Hub) *Server {
	return &Server{
		processor: p,
		deals:     deals,
		chat:      chat,
		hub:       hub,
		upgrader: websocket.Upgrader{
			// The progress channel is fed to browser frontends on other origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Post("/api/find-deals", s.handleFindDeals)
	r.Get("/api/deals", s.handleListDeals)
	r.Get("/api/deals/{hash}", s.handleDealsByHash)
	r.Post("/api/chat", s.handleChat)
	r.Post("/api/chat/reset", s.handleChatReset)
	r.Get("/ws/{session}", s.handleProgressSocket)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

type findDealsRequest struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
}

type findDealsResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Hash    string `json:"hash"`
}

func (s *Server) handleFindDeals(w http.ResponseWriter, r *http.Request) {
	var req findDealsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	ctx, cancel := context.WithTimeout(r.Context(), runTimeout)
	defer cancel()

	result, err := s.processor.FindDeals(ctx, req.URL, req.SessionID)
	if err != nil {
		slog.Error("Discovery run failed", "url", req.URL, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, findDealsResponse{
		Status:  "success",
		Message: fmt.Sprintf("Found %d deals", result.NewDeals),
		Hash:    result.Fingerprint,
	})
}

func (s *Server) handleListDeals(w http.ResponseWriter, r *http.Request) {
	deals, err := s.deals.All(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, deals)
}

func (s *Server) handleDealsByHash(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	deals, err := s.deals.Lookup(r.Context(), hash)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(deals) == 0 {
		writeError(w, http.StatusNotFound, "No deals found for this hash")
		return
	}
	writeJSON(w, http.StatusOK, deals)
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	reply, err := s.chat.Ask(r.Context(), req.SessionID, req.Message)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": req.SessionID,
		"reply":      reply,
	})
}

func (s *Server) handleChatReset(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	if err := s.chat.Reset(r.Context(), req.SessionID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": req.SessionID,
		"status":     "cleared",
	})
}

// handleProgressSocket upgrades the connection and parks it in the hub until
// the client goes away. Inbound frames only keep the connection alive.
func (s *Server) handleProgressSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session")
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "session", sessionID, "error", err)
		return
	}

	s.hub.Register(sessionID, conn)
	defer s.hub.Unregister(sessionID, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
